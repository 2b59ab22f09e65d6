// Package sim couples a built scenario to the simulation clock and the
// knowledge base that external readers observe.
package sim

import (
	"context"
	"sync"
	"time"

	"github.com/signalsfoundry/transport-simulator/core"
	"github.com/signalsfoundry/transport-simulator/internal/logging"
	"github.com/signalsfoundry/transport-simulator/kb"
	"github.com/signalsfoundry/transport-simulator/model"
	"github.com/signalsfoundry/transport-simulator/timectrl"
)

// StatusReporter is told when the run loop starts and stops. The gRPC
// health server implements it.
type StatusReporter interface {
	SetRunning(running bool)
}

// Runner owns the scenario for the lifetime of a run. Every engine access
// goes through mu so that Do callers never observe a half-applied step.
type Runner struct {
	mu       sync.Mutex
	scenario *core.Scenario
	store    *kb.KnowledgeBase
	log      logging.Logger
	status   StatusReporter

	failures int
}

// RunnerOption customises Runner construction.
type RunnerOption func(*Runner)

// WithStatusReporter attaches a reporter notified around Run.
func WithStatusReporter(s StatusReporter) RunnerOption {
	return func(r *Runner) {
		r.status = s
	}
}

// NewRunner wires a scenario to a knowledge base.
func NewRunner(sc *core.Scenario, store *kb.KnowledgeBase, log logging.Logger, opts ...RunnerOption) *Runner {
	if log == nil {
		log = logging.Noop()
	}
	r := &Runner{
		scenario: sc,
		store:    store,
		log:      log,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// RunSimTick advances the engine by dt seconds and publishes the resulting
// snapshot. The snapshot is published even when the step reports errors.
func (r *Runner) RunSimTick(ctx context.Context, dt float64) error {
	r.mu.Lock()
	err := r.scenario.Engine.Step(ctx, dt)
	if err != nil {
		r.failures++
	}
	snap := r.scenario.Engine.Snapshot()
	r.mu.Unlock()

	if r.store != nil {
		r.store.Publish(snap)
	}
	return err
}

// Publish pushes the current state without stepping.
func (r *Runner) Publish() model.Snapshot {
	r.mu.Lock()
	snap := r.scenario.Engine.Snapshot()
	r.mu.Unlock()
	if r.store != nil {
		r.store.Publish(snap)
	}
	return snap
}

// Do runs fn with exclusive access to the scenario between steps.
func (r *Runner) Do(fn func(*core.Scenario) error) error {
	if fn == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fn(r.scenario)
}

// Failures returns the number of steps that reported errors.
func (r *Runner) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

// Run steps the scenario on every tick of tc until duration of simulated
// time has elapsed or ctx is done. Step errors are logged and the run
// continues.
func (r *Runner) Run(ctx context.Context, tc *timectrl.TimeController, duration time.Duration) error {
	dt := tc.Tick.Seconds()
	r.Publish()

	tc.AddListener(func(simTime time.Time) {
		if err := r.RunSimTick(ctx, dt); err != nil {
			r.log.Warn(ctx, "tick completed with errors",
				logging.String("sim_time", simTime.Format(time.RFC3339Nano)),
				logging.Err(err),
			)
		}
	})

	if r.status != nil {
		r.status.SetRunning(true)
		defer r.status.SetRunning(false)
	}

	r.log.Info(ctx, "simulation started",
		logging.String("scenario", r.scenario.Name),
		logging.Duration("tick", tc.Tick),
		logging.Duration("duration", duration),
		logging.String("mode", tc.Mode.String()),
	)
	<-tc.Start(ctx, duration)
	r.log.Info(ctx, "simulation finished",
		logging.Int("steps", tc.Steps()),
		logging.Int("failed_steps", r.Failures()),
	)
	return ctx.Err()
}
