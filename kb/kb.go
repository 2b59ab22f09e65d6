package kb

import (
	"sort"
	"sync"

	"github.com/signalsfoundry/transport-simulator/model"
)

// EventType indicates what kind of change happened in the KB.
type EventType int

const (
	// EventSnapshotPublished is emitted after every published step.
	EventSnapshotPublished EventType = iota
	// EventMoverDetached is emitted when a mover that was on a path is no
	// longer bound to one.
	EventMoverDetached
)

func (t EventType) String() string {
	switch t {
	case EventSnapshotPublished:
		return "snapshot"
	case EventMoverDetached:
		return "mover_detached"
	default:
		return "unknown"
	}
}

// Event is emitted to subscribers when something interesting happens.
type Event struct {
	Type     EventType
	Snapshot model.Snapshot
	Mover    model.MoverSnapshot // set for mover events
}

// KnowledgeBase is an in-memory, thread-safe store for the latest simulation
// state. The simulation goroutine publishes; servers and the dashboard read.
type KnowledgeBase struct {
	mu sync.RWMutex

	latest    model.Snapshot
	published bool
	movers    map[string]model.MoverSnapshot
	stations  map[string]model.StationSnapshot

	nextSub int
	subs    map[int]func(Event)
}

// NewKnowledgeBase constructs an empty KB.
func NewKnowledgeBase() *KnowledgeBase {
	return &KnowledgeBase{
		movers:   make(map[string]model.MoverSnapshot),
		stations: make(map[string]model.StationSnapshot),
		subs:     make(map[int]func(Event)),
	}
}

// Publish stores snap as the latest state and notifies subscribers.
func (kb *KnowledgeBase) Publish(snap model.Snapshot) {
	kb.mu.Lock()
	var events []Event
	movers := make(map[string]model.MoverSnapshot, len(snap.Movers))
	for _, m := range snap.Movers {
		if prev, ok := kb.movers[m.ID]; ok && prev.Segment != "" && m.Segment == "" {
			events = append(events, Event{Type: EventMoverDetached, Snapshot: snap, Mover: m})
		}
		movers[m.ID] = m
	}
	stations := make(map[string]model.StationSnapshot, len(snap.Stations))
	for _, s := range snap.Stations {
		stations[s.ID] = s
	}
	kb.latest = snap
	kb.published = true
	kb.movers = movers
	kb.stations = stations
	events = append(events, Event{Type: EventSnapshotPublished, Snapshot: snap})

	subs := make([]func(Event), 0, len(kb.subs))
	ids := make([]int, 0, len(kb.subs))
	for id := range kb.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		subs = append(subs, kb.subs[id])
	}
	kb.mu.Unlock()

	// Notify subscribers outside the lock to avoid deadlocks.
	for _, ev := range events {
		for _, sub := range subs {
			sub(ev)
		}
	}
}

// Latest returns the last published snapshot, and false before the first.
func (kb *KnowledgeBase) Latest() (model.Snapshot, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	return kb.latest, kb.published
}

// GetMover returns the latest state of a mover.
func (kb *KnowledgeBase) GetMover(id string) (model.MoverSnapshot, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	m, ok := kb.movers[id]
	return m, ok
}

// GetStation returns the latest state of a station.
func (kb *KnowledgeBase) GetStation(id string) (model.StationSnapshot, bool) {
	kb.mu.RLock()
	defer kb.mu.RUnlock()
	s, ok := kb.stations[id]
	return s, ok
}

// ListMovers returns the latest mover states sorted by ID.
func (kb *KnowledgeBase) ListMovers() []model.MoverSnapshot {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.MoverSnapshot, 0, len(kb.movers))
	for _, m := range kb.movers {
		res = append(res, m)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// ListStations returns the latest station states sorted by ID.
func (kb *KnowledgeBase) ListStations() []model.StationSnapshot {
	kb.mu.RLock()
	defer kb.mu.RUnlock()

	res := make([]model.StationSnapshot, 0, len(kb.stations))
	for _, s := range kb.stations {
		res = append(res, s)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

// Subscribe registers a callback for KB events. It returns an unsubscribe function.
func (kb *KnowledgeBase) Subscribe(fn func(Event)) (unsubscribe func()) {
	kb.mu.Lock()
	defer kb.mu.Unlock()
	kb.nextSub++
	id := kb.nextSub
	kb.subs[id] = fn

	return func() {
		kb.mu.Lock()
		defer kb.mu.Unlock()
		delete(kb.subs, id)
	}
}
