package serve

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/r3labs/sse/v2"
	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/kb"
)

// SSE stream names. Clients select one with ?stream=<name>.
const (
	SnapshotStream = "snapshot"
	DetachStream   = "detach"
)

// EventStream forwards knowledge base events to server-sent event clients.
// Snapshots are dropped for slow clients rather than stalling the simulation.
type EventStream struct {
	srv         *sse.Server
	log         logging.Logger
	unsubscribe func()
}

// NewEventStream subscribes to store and starts serving its events.
func NewEventStream(store *kb.KnowledgeBase, log logging.Logger) *EventStream {
	if log == nil {
		log = logging.Noop()
	}
	srv := sse.New()
	srv.AutoReplay = false
	srv.CreateStream(SnapshotStream)
	srv.CreateStream(DetachStream)

	es := &EventStream{srv: srv, log: log}
	es.unsubscribe = store.Subscribe(es.forward)
	return es
}

func (es *EventStream) forward(ev kb.Event) {
	var (
		stream  string
		payload any
	)
	switch ev.Type {
	case kb.EventSnapshotPublished:
		stream, payload = SnapshotStream, ev.Snapshot
	case kb.EventMoverDetached:
		stream, payload = DetachStream, ev.Mover
	default:
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		es.log.Warn(context.Background(), "marshal event failed",
			logging.String("stream", stream), logging.Err(err))
		return
	}
	es.srv.TryPublish(stream, &sse.Event{
		Event: []byte(ev.Type.String()),
		Data:  data,
	})
}

func (es *EventStream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	es.srv.ServeHTTP(w, r)
}

// Close stops forwarding and disconnects all clients.
func (es *EventStream) Close() {
	if es.unsubscribe != nil {
		es.unsubscribe()
	}
	es.srv.Close()
}
