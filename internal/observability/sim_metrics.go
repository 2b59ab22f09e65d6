package observability

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SimCollector exposes per-tick simulation metrics. It satisfies
// core.MetricsRecorder.
type SimCollector struct {
	gatherer prometheus.Gatherer

	TickDuration    prometheus.Histogram
	StepErrors      prometheus.Counter
	MoverStates     *prometheus.GaugeVec
	Transitions     *prometheus.CounterVec
	Detaches        prometheus.Counter
	Admissions      *prometheus.CounterVec
	StationOccupied *prometheus.GaugeVec
	StationQueues   *prometheus.GaugeVec
}

// NewSimCollector registers simulation metrics against the provided
// registerer, defaulting to the global Prometheus registry when nil.
func NewSimCollector(reg prometheus.Registerer) (*SimCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	tickHistogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "pathsim_tick_duration_seconds",
		Help:    "Wall-clock duration of one simulation step.",
		Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
	tickHistogram, err := registerHistogram(reg, tickHistogram, "pathsim_tick_duration_seconds")
	if err != nil {
		return nil, err
	}

	stepErrors, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pathsim_step_errors_total",
		Help: "Errors reported by simulation steps.",
	}), "pathsim_step_errors_total")
	if err != nil {
		return nil, err
	}

	moverStates, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pathsim_movers",
		Help: "Current number of movers, labeled by kinematic state.",
	}, []string{"state"}), "pathsim_movers")
	if err != nil {
		return nil, err
	}

	transitions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pathsim_transitions_total",
		Help: "Segment transitions, labeled by the segment entered.",
	}, []string{"segment"}), "pathsim_transitions_total")
	if err != nil {
		return nil, err
	}

	detaches, err := registerCounter(reg, prometheus.NewCounter(prometheus.CounterOpts{
		Name: "pathsim_detaches_total",
		Help: "Movers removed from the network.",
	}), "pathsim_detaches_total")
	if err != nil {
		return nil, err
	}

	admissions, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "pathsim_station_admissions_total",
		Help: "Movers admitted into a station.",
	}, []string{"station"}), "pathsim_station_admissions_total")
	if err != nil {
		return nil, err
	}

	occupied, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pathsim_station_occupied",
		Help: "1 while a station holds an occupant.",
	}, []string{"station"}), "pathsim_station_occupied")
	if err != nil {
		return nil, err
	}

	queues, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "pathsim_station_movers",
		Help: "Movers tracked by a station, labeled by queue (waiting, moving_in, moving_out).",
	}, []string{"station", "queue"}), "pathsim_station_movers")
	if err != nil {
		return nil, err
	}

	return &SimCollector{
		gatherer:        gatherer,
		TickDuration:    tickHistogram,
		StepErrors:      stepErrors,
		MoverStates:     moverStates,
		Transitions:     transitions,
		Detaches:        detaches,
		Admissions:      admissions,
		StationOccupied: occupied,
		StationQueues:   queues,
	}, nil
}

// Gatherer returns the Prometheus gatherer associated with the collector.
func (c *SimCollector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.gatherer
}

// ObserveTick records a step duration.
func (c *SimCollector) ObserveTick(d time.Duration) {
	if c == nil || c.TickDuration == nil {
		return
	}
	c.TickDuration.Observe(d.Seconds())
}

// SetMoverStates replaces the per-state mover gauges.
func (c *SimCollector) SetMoverStates(counts map[string]int) {
	if c == nil || c.MoverStates == nil {
		return
	}
	for state, n := range counts {
		c.MoverStates.WithLabelValues(state).Set(float64(n))
	}
}

// IncTransition counts a mover entering segment to.
func (c *SimCollector) IncTransition(to string) {
	if c == nil || c.Transitions == nil {
		return
	}
	c.Transitions.WithLabelValues(to).Inc()
}

// IncDetach counts a mover leaving the network.
func (c *SimCollector) IncDetach() {
	if c == nil || c.Detaches == nil {
		return
	}
	c.Detaches.Inc()
}

// IncAdmission counts a station admission.
func (c *SimCollector) IncAdmission(station string) {
	if c == nil || c.Admissions == nil {
		return
	}
	c.Admissions.WithLabelValues(station).Inc()
}

// SetStationCounts updates the occupancy and queue gauges of a station.
func (c *SimCollector) SetStationCounts(station string, occupied bool, waiting, movingIn, movingOut int) {
	if c == nil {
		return
	}
	if c.StationOccupied != nil {
		v := 0.0
		if occupied {
			v = 1
		}
		c.StationOccupied.WithLabelValues(station).Set(v)
	}
	if c.StationQueues != nil {
		c.StationQueues.WithLabelValues(station, "waiting").Set(float64(waiting))
		c.StationQueues.WithLabelValues(station, "moving_in").Set(float64(movingIn))
		c.StationQueues.WithLabelValues(station, "moving_out").Set(float64(movingOut))
	}
}

// IncStepErrors adds n to the step error counter.
func (c *SimCollector) IncStepErrors(n int) {
	if c == nil || c.StepErrors == nil || n <= 0 {
		return
	}
	c.StepErrors.Add(float64(n))
}

func registerHistogram(reg prometheus.Registerer, hist prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(hist); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return hist, nil
}

func registerCounter(reg prometheus.Registerer, counter prometheus.Counter, name string) (prometheus.Counter, error) {
	if err := reg.Register(counter); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return counter, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}
