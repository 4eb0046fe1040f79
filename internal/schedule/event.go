// Package schedule holds the vehicle timeline scheduling core: events,
// the action policy, conflict detection and the reschedule coordinator.
package schedule

import (
	"fmt"
	"time"
)

// Kind is the closed set of schedulable unit variants.
type Kind string

const (
	KindReservation Kind = "reservation"
	KindAgreement   Kind = "agreement"
	KindHold        Kind = "hold"
	KindMaintenance Kind = "maintenance"
)

// ParseKind maps a raw kind tag onto a Kind.
func ParseKind(raw string) (Kind, error) {
	k := Kind(raw)
	if !k.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, raw)
	}
	return k, nil
}

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindReservation, KindAgreement, KindHold, KindMaintenance:
		return true
	}
	return false
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewInterval builds an interval, rejecting empty and inverted ranges.
func NewInterval(start, end time.Time) (Interval, error) {
	if !start.Before(end) {
		return Interval{}, fmt.Errorf("%w: start %s is not before end %s",
			ErrInvalidInterval, start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Interval{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (iv Interval) Duration() time.Duration {
	return iv.End.Sub(iv.Start)
}

// Intersects reports whether the two half-open ranges share any instant.
// Back-to-back ranges (iv.End == o.Start) do not intersect.
func (iv Interval) Intersects(o Interval) bool {
	return iv.Start.Before(o.End) && o.Start.Before(iv.End)
}

// Intersection returns the shared sub-range, if any.
func (iv Interval) Intersection(o Interval) (Interval, bool) {
	if !iv.Intersects(o) {
		return Interval{}, false
	}
	start := iv.Start
	if o.Start.After(start) {
		start = o.Start
	}
	end := iv.End
	if o.End.Before(end) {
		end = o.End
	}
	return Interval{Start: start, End: end}, true
}

// Flags carries the eligibility bits the system of record computes for an
// event. The scheduler never derives them itself.
type Flags struct {
	Convertible      bool `json:"convertible"`
	CheckOutEligible bool `json:"check_out_eligible"`
	CheckInEligible  bool `json:"check_in_eligible"`
	Unassigned       bool `json:"unassigned"`
	Cancellable      bool `json:"cancellable"`
}

// Event is a reservation, agreement, hold or maintenance block placed
// (or waiting to be placed) on a vehicle lane.
type Event struct {
	ID        string   `json:"id"`
	Kind      Kind     `json:"kind"`
	Status    string   `json:"status"`
	VehicleID string   `json:"vehicle_id,omitempty"`
	Interval  Interval `json:"interval"`

	// Eligibility as supplied upstream. Unassigned is ignored here and
	// recomputed from VehicleID.
	Eligibility Flags `json:"-"`

	// Display only.
	Customer    string `json:"customer,omitempty"`
	Origin      string `json:"origin,omitempty"`
	Destination string `json:"destination,omitempty"`
	ShortNo     string `json:"short_no,omitempty"`
}

// Validate checks the kind and the interval invariant.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("event %s: %w: %q", e.ID, ErrUnknownKind, e.Kind)
	}
	if _, err := NewInterval(e.Interval.Start, e.Interval.End); err != nil {
		return fmt.Errorf("event %s: %w", e.ID, err)
	}
	return nil
}

// Assigned reports whether the event occupies a vehicle lane.
func (e Event) Assigned() bool {
	return e.VehicleID != ""
}

// Flags returns the eligibility flags with Unassigned derived from the lane.
func (e Event) Flags() Flags {
	f := e.Eligibility
	f.Unassigned = !e.Assigned()
	return f
}

// Actions returns the operator actions the event currently exposes.
func (e Event) Actions() ActionSet {
	return AllowedActions(e.Kind, e.Status, e.Flags())
}

// Placement returns the event's current (vehicle, interval) tuple.
func (e Event) Placement() Placement {
	return Placement{VehicleID: e.VehicleID, Interval: e.Interval}
}

// Overlaps reports whether a and b occupy the same vehicle at the same time.
// Unassigned events never overlap anything.
func Overlaps(a, b Event) bool {
	if !a.Assigned() || !b.Assigned() || a.VehicleID != b.VehicleID {
		return false
	}
	return a.Interval.Intersects(b.Interval)
}

// DurationMinutes returns the event length in minutes.
func DurationMinutes(e Event) float64 {
	return e.Interval.Duration().Minutes()
}
