package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Query selects the events of a view window, optionally narrowed to a lane.
// An event matches when it intersects [From, To).
type Query struct {
	From      time.Time
	To        time.Time
	VehicleID string
}

// EventSource supplies the current event set. Implementations must read
// committed state on every call; the coordinator relies on that to see
// moves committed by the goroutine that held the lane before it.
type EventSource interface {
	Event(ctx context.Context, id string) (Event, error)
	Events(ctx context.Context, q Query) ([]Event, error)
}

// Committer durably applies a new placement in the system of record.
// It must honour ctx cancellation and leave state untouched on error.
type Committer interface {
	CommitMove(ctx context.Context, eventID, vehicleID string, iv Interval) (Event, error)
}

// Outcome is the terminal state of a move.
type Outcome string

const (
	OutcomeCommitted         Outcome = "committed"
	OutcomeRejected          Outcome = "rejected"
	OutcomePersistenceFailed Outcome = "persistence_failed"
)

// MoveRequest asks for an event to be placed at [Start, End) on VehicleID.
// A nil VehicleID keeps the current lane; a pointer to "" unassigns.
type MoveRequest struct {
	EventID   string
	Start     time.Time
	End       time.Time
	VehicleID *string
}

// MoveResult is the outcome of one move. Event holds the updated event when
// committed and the untouched original otherwise.
type MoveResult struct {
	Outcome   Outcome
	Event     Event
	Conflicts []Conflict
	Cause     error
}

// Err returns ErrPersistenceFailed wrapping the cause for failed commits and
// nil for the other outcomes.
func (r MoveResult) Err() error {
	if r.Outcome != OutcomePersistenceFailed {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailed, r.Cause)
}

// MoveRecord is what observers learn about a finished move.
type MoveRecord struct {
	Request  MoveRequest
	Before   Event
	Target   Placement
	Result   MoveResult
	Duration time.Duration
	At       time.Time
}

// Observer is notified after every decided move, outside the lane lock.
type Observer interface {
	ObserveMove(ctx context.Context, rec MoveRecord)
}

// Coordinator runs the validate, detect, commit-or-reject protocol with a
// critical section per target vehicle.
type Coordinator struct {
	source        EventSource
	committer     Committer
	locks         *laneLocks
	commitTimeout time.Duration
	observers     []Observer
	now           func() time.Time
	log           zerolog.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithCommitTimeout bounds each CommitMove call. Zero means only the
// caller's context applies.
func WithCommitTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.commitTimeout = d }
}

// WithObservers appends move observers.
func WithObservers(obs ...Observer) Option {
	return func(c *Coordinator) { c.observers = append(c.observers, obs...) }
}

// WithLogger sets the coordinator's logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Coordinator) { c.log = log }
}

// WithClock overrides the time source used for records.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator creates a Coordinator reading from source and writing
// through committer.
func NewCoordinator(source EventSource, committer Committer, opts ...Option) *Coordinator {
	c := &Coordinator{
		source:    source,
		committer: committer,
		locks:     newLaneLocks(),
		now:       time.Now,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// MoveEvent validates req, checks the target lane and commits or rejects.
// The returned error covers invalid input, unknown events, failed lane
// snapshots and context expiry while waiting for the lane; every decided
// move is reported through MoveResult instead.
func (c *Coordinator) MoveEvent(ctx context.Context, req MoveRequest) (MoveResult, error) {
	iv, err := NewInterval(req.Start, req.End)
	if err != nil {
		return MoveResult{}, err
	}
	current, err := c.source.Event(ctx, req.EventID)
	if err != nil {
		return MoveResult{}, fmt.Errorf("load event %s: %w", req.EventID, err)
	}
	target := Placement{VehicleID: current.VehicleID, Interval: iv}
	if req.VehicleID != nil {
		target.VehicleID = *req.VehicleID
	}

	log := c.log.With().
		Str("event_id", current.ID).
		Str("vehicle_id", target.VehicleID).
		Time("start", iv.Start).
		Time("end", iv.End).
		Logger()

	unlock := func() {}
	if target.VehicleID != "" {
		unlock, err = c.locks.Lock(ctx, target.VehicleID)
		if err != nil {
			return MoveResult{}, fmt.Errorf("wait for lane %s: %w", target.VehicleID, err)
		}
	}
	started := c.now()
	res, err := c.decide(ctx, current, target)
	unlock()
	if err != nil {
		return MoveResult{}, err
	}

	switch res.Outcome {
	case OutcomeCommitted:
		log.Info().Msg("move committed")
	case OutcomeRejected:
		log.Info().Int("conflicts", len(res.Conflicts)).Msg("move rejected")
	case OutcomePersistenceFailed:
		log.Error().Err(res.Cause).Msg("move could not be persisted")
	}

	rec := MoveRecord{
		Request:  req,
		Before:   current,
		Target:   target,
		Result:   res,
		Duration: c.now().Sub(started),
		At:       started,
	}
	obsCtx := context.WithoutCancel(ctx)
	for _, o := range c.observers {
		o.ObserveMove(obsCtx, rec)
	}
	return res, nil
}

// Preview runs validation and conflict detection without taking the lane
// lock or committing. Drag-over feedback uses it; its answer may be stale
// by the time MoveEvent runs.
func (c *Coordinator) Preview(ctx context.Context, req MoveRequest) ([]Conflict, error) {
	iv, err := NewInterval(req.Start, req.End)
	if err != nil {
		return nil, err
	}
	current, err := c.source.Event(ctx, req.EventID)
	if err != nil {
		return nil, fmt.Errorf("load event %s: %w", req.EventID, err)
	}
	target := Placement{VehicleID: current.VehicleID, Interval: iv}
	if req.VehicleID != nil {
		target.VehicleID = *req.VehicleID
	}
	return c.detect(ctx, current.ID, target)
}

// decide runs inside the lane's critical section.
func (c *Coordinator) decide(ctx context.Context, current Event, target Placement) (MoveResult, error) {
	conflicts, err := c.detect(ctx, current.ID, target)
	if err != nil {
		return MoveResult{}, err
	}
	if len(conflicts) > 0 {
		return MoveResult{Outcome: OutcomeRejected, Event: current, Conflicts: conflicts}, nil
	}

	commitCtx := ctx
	if c.commitTimeout > 0 {
		var cancel context.CancelFunc
		commitCtx, cancel = context.WithTimeout(ctx, c.commitTimeout)
		defer cancel()
	}
	updated, err := c.committer.CommitMove(commitCtx, current.ID, target.VehicleID, target.Interval)
	if err != nil {
		return MoveResult{Outcome: OutcomePersistenceFailed, Event: current, Cause: err}, nil
	}
	return MoveResult{Outcome: OutcomeCommitted, Event: updated, Conflicts: conflicts}, nil
}

func (c *Coordinator) detect(ctx context.Context, eventID string, target Placement) ([]Conflict, error) {
	if target.VehicleID == "" {
		return make([]Conflict, 0), nil
	}
	existing, err := c.source.Events(ctx, Query{
		From:      target.Interval.Start,
		To:        target.Interval.End,
		VehicleID: target.VehicleID,
	})
	if err != nil {
		return nil, fmt.Errorf("load lane %s: %w", target.VehicleID, err)
	}
	return Detect(target, existing, eventID), nil
}
