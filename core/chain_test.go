package core

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

// loop builds a→b→c→a with lengths 1, 1 and 2.
func loop(t *testing.T) *Network {
	t.Helper()
	net := NewNetwork()
	drive := NewRunningDrive("chain", 1000)
	for _, s := range []struct {
		id     SegmentID
		length float64
	}{{"a", 1}, {"b", 1}, {"c", 2}} {
		l := MustLine(s.id, s.length, IdentityFrame)
		l.SetDrive(drive)
		net.MustAdd(l)
	}
	for _, p := range [][2]SegmentID{{"a", "b"}, {"b", "c"}, {"c", "a"}} {
		if err := net.Snap(p[0], p[1]); err != nil {
			t.Fatalf("Snap %v: %v", p, err)
		}
	}
	return net
}

func TestChainCumulative(t *testing.T) {
	c := MustChain(loop(t), "a")
	if diff := cmp.Diff([]SegmentID{"a", "b", "c"}, c.Segments()); diff != "" {
		t.Fatalf("segments (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]float64{0.25, 0.5, 1}, c.Cumulative()); diff != "" {
		t.Fatalf("cumulative (-want +got):\n%s", diff)
	}
	if c.TotalLength() != 4000 {
		t.Fatalf("total = %v, want 4000", c.TotalLength())
	}
}

func TestChainResolve(t *testing.T) {
	c := MustChain(loop(t), "a")
	cases := []struct {
		u     float64
		index int
		local float64
	}{
		{0, 0, 0},
		{0.125, 0, 0.5},
		{0.25, 0, 1},
		{0.5, 1, 1},
		{0.75, 2, 0.5},
		{1, 2, 1},
		{1.5, 2, 1},
		{-1, 0, 0},
	}
	for _, tc := range cases {
		i, local := c.Resolve(tc.u)
		if i != tc.index || !approx(local, tc.local, 1e-12) {
			t.Errorf("Resolve(%v) = (%d, %v), want (%d, %v)", tc.u, i, local, tc.index, tc.local)
		}
	}
}

func TestChainNotClosed(t *testing.T) {
	net := loop(t)
	if err := net.Unsnap("c", "a"); err != nil {
		t.Fatalf("Unsnap: %v", err)
	}
	if _, err := NewChain(net, "a"); !errors.Is(err, ErrChainNotClosed) {
		t.Fatalf("err = %v, want ErrChainNotClosed", err)
	}
	if _, err := NewChain(net, "missing"); !errors.Is(err, ErrSegmentNotFound) {
		t.Fatalf("missing start err = %v, want ErrSegmentNotFound", err)
	}
}

func TestChainStartingMidLoop(t *testing.T) {
	c := MustChain(loop(t), "b")
	if diff := cmp.Diff([]SegmentID{"b", "c", "a"}, c.Segments()); diff != "" {
		t.Fatalf("segments (-want +got):\n%s", diff)
	}
}

func TestChainCarrierWraps(t *testing.T) {
	net := loop(t)
	c := MustChain(net, "a")
	body := &BodyState{}
	cc := NewChainCarrier("k", c, 0.9, body)

	if err := cc.Update(1); err != nil { // 1000 mm of 4000
		t.Fatalf("Update: %v", err)
	}
	if !approx(cc.Offset(), 0.15, 1e-12) {
		t.Fatalf("offset = %v, want 0.15", cc.Offset())
	}
	if !body.Position.ApproxEqual(c.Position(0.15), eps) {
		t.Fatalf("body at %+v, want %+v", body.Position, c.Position(0.15))
	}

	rev := NewSimDrive("rev", 1000, 0)
	rev.SetReverse(true)
	rev.Accelerate()
	c.SetDrive(rev)
	if err := cc.Update(1); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !approx(cc.Offset(), 0.9, 1e-12) {
		t.Fatalf("reverse offset = %v, want 0.9", cc.Offset())
	}
}

func TestChainCarrierHoldsWhenSegmentRemoved(t *testing.T) {
	net := loop(t)
	c := MustChain(net, "a")
	body := &BodyState{}
	cc := NewChainCarrier("k", c, 0.1, body)
	e := NewSimulationEngine(net)
	e.AddCarrier(cc)

	if err := net.Remove("c"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	err := e.Step(context.Background(), 0.1)
	if !errors.Is(err, ErrChainNotClosed) {
		t.Fatalf("step after removal err = %v, want ErrChainNotClosed", err)
	}
	if !errors.Is(c.Broken(), ErrChainNotClosed) {
		t.Fatalf("Broken() = %v", c.Broken())
	}
	if err := e.Step(context.Background(), 0.1); err != nil {
		t.Fatalf("broken chain reported again: %v", err)
	}
	if cc.Offset() != 0.1 || body.Velocity != (Vec3{}) {
		t.Fatalf("carrier moved on broken chain: offset=%v velocity=%+v", cc.Offset(), body.Velocity)
	}

	repl := MustLine("c", 2, IdentityFrame)
	repl.SetDrive(c.Drive())
	net.MustAdd(repl)
	for _, p := range [][2]SegmentID{{"b", "c"}, {"c", "a"}} {
		if err := net.Snap(p[0], p[1]); err != nil {
			t.Fatalf("Snap %v: %v", p, err)
		}
	}
	if err := e.Step(context.Background(), 0.1); err != nil {
		t.Fatalf("step after repair: %v", err)
	}
	if c.Broken() != nil || !approx(cc.Offset(), 0.125, 1e-12) {
		t.Fatalf("after repair broken=%v offset=%v, want 0.125", c.Broken(), cc.Offset())
	}
}
