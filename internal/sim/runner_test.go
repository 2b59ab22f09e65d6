package sim

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/signalsfoundry/transport-simulator/core"
	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/kb"
	"github.com/signalsfoundry/transport-simulator/timectrl"
)

const beltLayout = `
{
  "name": "belt",
  "drives": [{ "id": "belt", "speed": 1000 }],
  "segments": [{ "id": "a", "kind": "line", "length": 5, "drive": "belt" }],
  "movers": [{ "id": "m1", "segment": "a", "offset": 0 }]
}
`

type recordingStatus struct {
	calls []bool
}

func (r *recordingStatus) SetRunning(running bool) { r.calls = append(r.calls, running) }

func newRunner(t *testing.T, opts ...RunnerOption) (*Runner, *kb.KnowledgeBase) {
	t.Helper()
	layout, err := core.LoadLayout(strings.NewReader(beltLayout))
	if err != nil {
		t.Fatalf("LoadLayout: %v", err)
	}
	sc, err := core.BuildScenario(layout, logging.Noop())
	if err != nil {
		t.Fatalf("BuildScenario: %v", err)
	}
	store := kb.NewKnowledgeBase()
	return NewRunner(sc, store, logging.Noop(), opts...), store
}

func TestRunnerPublishesEveryStep(t *testing.T) {
	status := &recordingStatus{}
	runner, store := newRunner(t, WithStatusReporter(status))

	var ticks []int
	unsubscribe := store.Subscribe(func(e kb.Event) {
		if e.Type == kb.EventSnapshotPublished {
			ticks = append(ticks, e.Snapshot.Tick)
		}
	})
	defer unsubscribe()

	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := timectrl.NewTimeController(start, 20*time.Millisecond, timectrl.Accelerated)
	if err := runner.Run(context.Background(), tc, 200*time.Millisecond); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if diff := cmp.Diff([]int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, ticks); diff != "" {
		t.Fatalf("published ticks (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]bool{true, false}, status.calls); diff != "" {
		t.Fatalf("status calls (-want +got):\n%s", diff)
	}

	m, ok := store.GetMover("m1")
	if !ok || m.Segment != "a" {
		t.Fatalf("mover snapshot = %+v, %v", m, ok)
	}
	if m.Offset <= 0 || m.Offset > 0.2+1e-9 {
		t.Fatalf("mover offset = %v, want in (0, 0.2]", m.Offset)
	}
	if runner.Failures() != 0 {
		t.Fatalf("failures = %d, want 0", runner.Failures())
	}
}

func TestRunnerStopsOnCancel(t *testing.T) {
	runner, _ := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	tc := timectrl.NewTimeController(time.Now(), 20*time.Millisecond, timectrl.Accelerated)
	if err := runner.Run(ctx, tc, 0); err != context.Canceled {
		t.Fatalf("Run err = %v, want context.Canceled", err)
	}
	if tc.Steps() != 0 {
		t.Fatalf("steps = %d after cancelled run", tc.Steps())
	}
}

func TestRunnerDoSerialisesWithSteps(t *testing.T) {
	runner, store := newRunner(t)

	if err := runner.Do(func(sc *core.Scenario) error {
		m, err := sc.Engine.Mover("m1")
		if err != nil {
			return err
		}
		return m.RemoveFromPath()
	}); err != nil {
		t.Fatalf("Do: %v", err)
	}
	if err := runner.RunSimTick(context.Background(), 0.02); err != nil {
		t.Fatalf("RunSimTick: %v", err)
	}
	m, ok := store.GetMover("m1")
	if !ok || m.Segment != "" {
		t.Fatalf("mover after removal = %+v, %v", m, ok)
	}
	if err := runner.Do(nil); err != nil {
		t.Fatalf("Do(nil) = %v", err)
	}
}
