package observability

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/waypoint"
	"github.com/aretw0/waypoint/pkg/rejection"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics is a waypoint.Plugin recording transition and state metrics.
type Metrics struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	entered     *prometheus.CounterVec
	exited      *prometheus.CounterVec
	inFlight    prometheus.Gauge

	mu      sync.Mutex
	started map[*waypoint.Transition]time.Time
	detach  []func()
}

// NewMetrics creates the collectors under namespace ("waypoint" when empty)
// and registers them with reg.
func NewMetrics(reg prometheus.Registerer, namespace string) (*Metrics, error) {
	if namespace == "" {
		namespace = "waypoint"
	}
	m := &Metrics{
		transitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transitions_total",
				Help:      "Total number of settled transitions by result",
			},
			[]string{"result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transition_duration_seconds",
				Help:      "Duration of transitions from creation to settlement",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
			},
			[]string{"result"},
		),
		entered: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_enter_total",
				Help:      "Total number of times a state was entered",
			},
			[]string{"state"},
		),
		exited: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "state_exit_total",
				Help:      "Total number of times a state was exited",
			},
			[]string{"state"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "transitions_in_flight",
			Help:      "Transitions created but not settled yet",
		}),
		started: make(map[*waypoint.Transition]time.Time),
	}
	for _, c := range []prometheus.Collector{m.transitions, m.duration, m.entered, m.exited, m.inFlight} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Name implements waypoint.Plugin.
func (m *Metrics) Name() string { return "metrics" }

// Install implements waypoint.Plugin.
func (m *Metrics) Install(r *waypoint.Router) error {
	name := waypoint.WithHookName("metrics")
	every := waypoint.HookCriteria{}
	m.detach = append(m.detach,
		r.OnCreate(every, m.onCreate, name),
		r.OnEnter(waypoint.HookCriteria{Entering: waypoint.Always()}, m.onEnter, name),
		r.OnExit(waypoint.HookCriteria{Exiting: waypoint.Always()}, m.onExit, name),
		r.OnSuccess(every, m.onSettle, name),
		r.OnError(every, m.onSettle, name),
	)
	return nil
}

// Uninstall removes the plugin hooks.
func (m *Metrics) Uninstall() {
	for _, fn := range m.detach {
		fn()
	}
	m.detach = nil
}

func (m *Metrics) onCreate(_ context.Context, t *waypoint.Transition, _ *waypoint.StateNode) (any, error) {
	m.mu.Lock()
	m.started[t] = time.Now()
	m.mu.Unlock()
	m.inFlight.Inc()
	return nil, nil
}

func (m *Metrics) onEnter(_ context.Context, _ *waypoint.Transition, s *waypoint.StateNode) (any, error) {
	m.entered.WithLabelValues(s.Name).Inc()
	return nil, nil
}

func (m *Metrics) onExit(_ context.Context, _ *waypoint.Transition, s *waypoint.StateNode) (any, error) {
	m.exited.WithLabelValues(s.Name).Inc()
	return nil, nil
}

func (m *Metrics) onSettle(_ context.Context, t *waypoint.Transition, _ *waypoint.StateNode) (any, error) {
	result := resultOf(t.Err())

	m.mu.Lock()
	start, ok := m.started[t]
	delete(m.started, t)
	m.mu.Unlock()

	m.transitions.WithLabelValues(result).Inc()
	if ok {
		m.inFlight.Dec()
		m.duration.WithLabelValues(result).Observe(time.Since(start).Seconds())
	}
	return nil, nil
}

func resultOf(err error) string {
	if err == nil {
		return "success"
	}
	if rej, ok := rejection.As(err); ok {
		return strings.ToLower(rej.Type.String())
	}
	return "error"
}
