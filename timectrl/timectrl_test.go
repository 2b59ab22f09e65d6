package timectrl

import (
	"context"
	"testing"
	"time"
)

func TestTimeControllerSetTime(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Second, RealTime)

	newNow := start.Add(42 * time.Second)
	tc.SetTime(newNow)

	if got := tc.Now(); !got.Equal(newNow) {
		t.Fatalf("Now() = %v, want %v", got, newNow)
	}
}

func TestTimeControllerRunSteps(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 20*time.Millisecond, RealTime)

	var seen []time.Time
	tc.AddListener(func(now time.Time) { seen = append(seen, now) })
	tc.RunSteps(3)

	if tc.Steps() != 3 || len(seen) != 3 {
		t.Fatalf("steps=%d listener calls=%d, want 3/3", tc.Steps(), len(seen))
	}
	if want := start.Add(60 * time.Millisecond); !seen[2].Equal(want) || !tc.Now().Equal(want) {
		t.Fatalf("last step at %v (Now %v), want %v", seen[2], tc.Now(), want)
	}
}

func TestTimeControllerStartUpdatesNow(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, 5*time.Millisecond, Accelerated)

	done := tc.Start(context.Background(), 15*time.Millisecond)
	<-done

	expected := start.Add(15 * time.Millisecond)
	if got := tc.Now(); !got.Equal(expected) {
		t.Fatalf("Now() = %v, want %v", got, expected)
	}
	if tc.Steps() != 3 {
		t.Fatalf("Steps() = %d, want 3", tc.Steps())
	}
}

func TestTimeControllerRealTimeStopsOnCancel(t *testing.T) {
	start := time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC)
	tc := NewTimeController(start, time.Millisecond, RealTime)

	ctx, cancel := context.WithCancel(context.Background())
	stepped := make(chan struct{}, 1)
	tc.AddListener(func(time.Time) {
		select {
		case stepped <- struct{}{}:
		default:
		}
	})
	done := tc.Start(ctx, 0)

	select {
	case <-stepped:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller never stepped")
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("controller did not stop after cancel")
	}
}
