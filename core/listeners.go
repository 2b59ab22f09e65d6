package core

// MoverListener is called with the segment a mover event happened on. seg is
// empty when the mover is not on a path.
type MoverListener func(seg SegmentID, m *Mover)

// StationListener is called for station events on a mover.
type StationListener func(s *Station, m *Mover)

// listeners is an ordered set of callbacks. Callbacks may remove themselves
// (or others) while being dispatched.
type listeners[F any] struct {
	next    int
	entries []listenerEntry[F]
}

type listenerEntry[F any] struct {
	id int
	fn F
}

// add registers fn and returns a function that removes it again.
func (l *listeners[F]) add(fn F) (remove func()) {
	l.next++
	id := l.next
	l.entries = append(l.entries, listenerEntry[F]{id: id, fn: fn})
	return func() {
		for i, e := range l.entries {
			if e.id == id {
				l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
				return
			}
		}
	}
}

func (l *listeners[F]) snapshot() []F {
	out := make([]F, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.fn
	}
	return out
}

func (l *listeners[F]) len() int { return len(l.entries) }

type moverListeners struct {
	listeners[MoverListener]
}

func (l *moverListeners) fire(seg SegmentID, m *Mover) {
	for _, fn := range l.snapshot() {
		fn(seg, m)
	}
}

type stationListeners struct {
	listeners[StationListener]
}

func (l *stationListeners) fire(s *Station, m *Mover) {
	for _, fn := range l.snapshot() {
		fn(s, m)
	}
}
