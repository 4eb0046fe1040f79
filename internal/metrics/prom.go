package metrics

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

// Recorder records scheduler activity in Prometheus metrics. It observes
// every decided move.
type Recorder struct {
	moves     *prometheus.CounterVec
	conflicts prometheus.Counter
	latency   *prometheus.HistogramVec
	actions   *prometheus.CounterVec
}

// NewRecorder registers the scheduler metrics on reg. If reg is nil, the
// default registerer is used. Collectors that are already registered are
// reused.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	moves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_moves_total",
		Help: "Total number of decided moves by outcome",
	}, []string{"outcome"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "scheduler_move_conflicts_total",
		Help: "Total number of conflicting events reported by rejected moves",
	})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "scheduler_move_duration_seconds",
		Help:    "Time spent inside the lane critical section",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})
	actions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "scheduler_actions_total",
		Help: "Total number of operator actions by result",
	}, []string{"action", "result"})

	var err error
	if moves, err = register(reg, moves); err != nil {
		return nil, err
	}
	if conflicts, err = register(reg, conflicts); err != nil {
		return nil, err
	}
	if latency, err = register(reg, latency); err != nil {
		return nil, err
	}
	if actions, err = register(reg, actions); err != nil {
		return nil, err
	}
	return &Recorder{moves: moves, conflicts: conflicts, latency: latency, actions: actions}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// ObserveMove implements schedule.Observer.
func (r *Recorder) ObserveMove(_ context.Context, rec schedule.MoveRecord) {
	outcome := string(rec.Result.Outcome)
	r.moves.WithLabelValues(outcome).Inc()
	r.latency.WithLabelValues(outcome).Observe(rec.Duration.Seconds())
	if n := len(rec.Result.Conflicts); n > 0 {
		r.conflicts.Add(float64(n))
	}
}

// RecordAction counts one operator action. result is "ok", "not_allowed"
// or "failed".
func (r *Recorder) RecordAction(action schedule.Action, result string) {
	r.actions.WithLabelValues(string(action), result).Inc()
}
