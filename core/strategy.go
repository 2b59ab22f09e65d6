package core

import (
	"math/rand"

	"golang.org/x/exp/slices"
)

// Strategy chooses among the candidate segments a mover may continue onto.
// It may reorder, filter or replace the list; the first remaining entry wins.
// Implementations must not mutate candidates in place.
type Strategy interface {
	SelectNext(m *Mover, candidates []SegmentID) []SegmentID
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(m *Mover, candidates []SegmentID) []SegmentID

// SelectNext implements Strategy.
func (f StrategyFunc) SelectNext(m *Mover, candidates []SegmentID) []SegmentID {
	return f(m, candidates)
}

// Retrier is implemented by strategies that hold back movers and want to
// re-drive them later. The engine calls Retry once per tick.
type Retrier interface {
	Retry() int
}

// composeStrategies applies mover strategies, then the segment's shared
// strategy, then the segment's own strategies.
func composeStrategies(m *Mover, seg Segment, candidates []SegmentID) []SegmentID {
	list := slices.Clone(candidates)
	for _, s := range m.strategies {
		list = s.SelectNext(m, list)
	}
	if ps := seg.PathStrategy(); ps != nil {
		list = ps.SelectNext(m, list)
	}
	for _, s := range seg.base().strategies {
		list = s.SelectNext(m, list)
	}
	return list
}

// PreferSegments moves the preferred IDs to the front, in preference order.
// Candidates not in the preference list keep their relative order.
func PreferSegments(preferred ...SegmentID) Strategy {
	return StrategyFunc(func(_ *Mover, candidates []SegmentID) []SegmentID {
		out := make([]SegmentID, 0, len(candidates))
		for _, p := range preferred {
			if slices.Contains(candidates, p) && !slices.Contains(out, p) {
				out = append(out, p)
			}
		}
		for _, c := range candidates {
			if !slices.Contains(out, c) {
				out = append(out, c)
			}
		}
		return out
	})
}

// OnlySegments drops every candidate not in allowed.
func OnlySegments(allowed ...SegmentID) Strategy {
	return StrategyFunc(func(_ *Mover, candidates []SegmentID) []SegmentID {
		out := make([]SegmentID, 0, len(candidates))
		for _, c := range candidates {
			if slices.Contains(allowed, c) {
				out = append(out, c)
			}
		}
		return out
	})
}

// RoundRobin alternates between branches on every decision that has more
// than one candidate.
type RoundRobin struct {
	next int
}

// SelectNext implements Strategy.
func (r *RoundRobin) SelectNext(_ *Mover, candidates []SegmentID) []SegmentID {
	if len(candidates) < 2 {
		return candidates
	}
	k := r.next % len(candidates)
	r.next++
	out := make([]SegmentID, 0, len(candidates))
	out = append(out, candidates[k:]...)
	return append(out, candidates[:k]...)
}

// RandomBranch puts a pseudo-randomly chosen candidate first. The sequence is
// fully determined by the seed.
type RandomBranch struct {
	rng *rand.Rand
}

// NewRandomBranch returns a RandomBranch seeded with seed.
func NewRandomBranch(seed int64) *RandomBranch {
	return &RandomBranch{rng: rand.New(rand.NewSource(seed))}
}

// SelectNext implements Strategy.
func (r *RandomBranch) SelectNext(_ *Mover, candidates []SegmentID) []SegmentID {
	if len(candidates) < 2 {
		return candidates
	}
	k := r.rng.Intn(len(candidates))
	out := make([]SegmentID, 0, len(candidates))
	out = append(out, candidates[k])
	out = append(out, candidates[:k]...)
	return append(out, candidates[k+1:]...)
}

// RetryQueue holds movers a strategy turned away. Retry re-drives them in
// arrival order and stops at the first one that gets through.
type RetryQueue struct {
	pending []*Mover
}

// Add queues m unless it is already pending.
func (q *RetryQueue) Add(m *Mover) {
	if m != nil && !slices.Contains(q.pending, m) {
		q.pending = append(q.pending, m)
	}
}

// Pending returns a copy of the queued movers.
func (q *RetryQueue) Pending() []*Mover { return slices.Clone(q.pending) }

// Len returns the number of queued movers.
func (q *RetryQueue) Len() int { return len(q.pending) }

// Retry implements Retrier. Movers no longer on a path are dropped.
func (q *RetryQueue) Retry() int {
	for _, m := range slices.Clone(q.pending) {
		if !m.OnPath() || !m.AtPathEnd() {
			q.remove(m)
			continue
		}
		if m.TryMoveNext() {
			q.remove(m)
			return 1
		}
	}
	return 0
}

func (q *RetryQueue) remove(m *Mover) {
	if i := slices.Index(q.pending, m); i >= 0 {
		q.pending = slices.Delete(q.pending, i, i+1)
	}
}

// JunctionLock admits one mover at a time into a guarded set of segments.
// Movers that would enter while another holds the lock wait at their path
// end and are retried once the holder has left the guarded set.
type JunctionLock struct {
	RetryQueue

	guarded []SegmentID
	holder  *Mover
}

// NewJunctionLock guards the given segments.
func NewJunctionLock(guarded ...SegmentID) *JunctionLock {
	return &JunctionLock{guarded: slices.Clone(guarded)}
}

// Holder returns the mover currently inside the junction, if any.
func (j *JunctionLock) Holder() *Mover { return j.holder }

// SelectNext implements Strategy.
func (j *JunctionLock) SelectNext(m *Mover, candidates []SegmentID) []SegmentID {
	j.releaseIfLeft()
	out := make([]SegmentID, 0, len(candidates))
	contested := false
	for _, c := range candidates {
		if slices.Contains(j.guarded, c) && j.holder != nil && j.holder != m {
			contested = true
			continue
		}
		out = append(out, c)
	}
	if len(out) > 0 && slices.Contains(j.guarded, out[0]) {
		j.holder = m
	}
	if len(out) == 0 && contested {
		j.Add(m)
	}
	return out
}

// Retry implements Retrier.
func (j *JunctionLock) Retry() int {
	j.releaseIfLeft()
	if j.holder != nil {
		return 0
	}
	return j.RetryQueue.Retry()
}

func (j *JunctionLock) releaseIfLeft() {
	if j.holder == nil {
		return
	}
	if !j.holder.OnPath() || !slices.Contains(j.guarded, j.holder.SegmentID()) {
		j.holder = nil
	}
}
