// Package timeline maps scheduled events onto bounded time axes for the
// day, week, month and resource views.
package timeline

import (
	"sort"
	"time"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

// Axis is the visible window [Origin, Origin+Span).
type Axis struct {
	Origin time.Time
	Span   time.Duration
}

// DayAxis spans the local calendar day containing t. Days with a DST
// transition are 23 or 25 hours long.
func DayAxis(t time.Time) Axis {
	start := midnight(t)
	return Axis{Origin: start, Span: start.AddDate(0, 0, 1).Sub(start)}
}

// WeekAxis spans seven local days starting at the midnight of start.
func WeekAxis(start time.Time) Axis {
	origin := midnight(start)
	return Axis{Origin: origin, Span: origin.AddDate(0, 0, 7).Sub(origin)}
}

// MonthAxis spans the local calendar month containing t.
func MonthAxis(t time.Time) Axis {
	origin := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return Axis{Origin: origin, Span: origin.AddDate(0, 1, 0).Sub(origin)}
}

// End returns the exclusive end of the axis.
func (a Axis) End() time.Time {
	return a.Origin.Add(a.Span)
}

// Days splits the axis into local calendar days. A partial first or last
// day is clipped to the axis.
func (a Axis) Days() []Axis {
	var days []Axis
	end := a.End()
	for cur := a.Origin; cur.Before(end); {
		next := midnight(cur).AddDate(0, 0, 1)
		if next.After(end) {
			next = end
		}
		days = append(days, Axis{Origin: cur, Span: next.Sub(cur)})
		cur = next
	}
	return days
}

// Position is an event's placement on an axis as fractions of its span.
type Position struct {
	Offset float64 `json:"offset"`
	Width  float64 `json:"width"`
}

// Layout positions e on axis. Parts of the event outside the axis are
// clipped, so Offset and Width stay in [0, 1] and never sum past 1. An
// event entirely before the axis gets width 0 at offset 0, one entirely
// after it width 0 at offset 1. A non-positive span yields the zero value.
// Width is always the visible part: an event starting before the origin is
// not drawn with its full duration from offset 0.
func Layout(e schedule.Event, axis Axis) Position {
	if axis.Span <= 0 {
		return Position{}
	}
	span := float64(axis.Span)
	start := clamp01(float64(e.Interval.Start.Sub(axis.Origin)) / span)
	end := clamp01(float64(e.Interval.End.Sub(axis.Origin)) / span)
	if end < start {
		end = start
	}
	return Position{Offset: start, Width: end - start}
}

// Day is a calendar date.
type Day struct {
	Year  int
	Month time.Month
	Day   int
}

// DayOf returns the calendar date of t in loc.
func DayOf(t time.Time, loc *time.Location) Day {
	y, m, d := t.In(loc).Date()
	return Day{Year: y, Month: m, Day: d}
}

// Start returns local midnight of d in loc.
func (d Day) Start(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

func (d Day) String() string {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).Format(time.DateOnly)
}

// BucketByDay groups events by the local date their interval starts on.
// Events keep their relative order inside a bucket.
func BucketByDay(events []schedule.Event, loc *time.Location) map[Day][]schedule.Event {
	buckets := make(map[Day][]schedule.Event)
	for _, e := range events {
		d := DayOf(e.Interval.Start, loc)
		buckets[d] = append(buckets[d], e)
	}
	return buckets
}

// Lane is one vehicle row of the resource view.
type Lane struct {
	VehicleID string
	Events    []schedule.Event
}

// Lanes groups events per vehicle. Lanes follow vehicleIDs, then vehicles
// only seen on events in first-seen order, then a trailing unassigned lane
// when any event lacks a vehicle. Events within a lane are ordered by start.
func Lanes(events []schedule.Event, vehicleIDs []string) []Lane {
	index := make(map[string]int, len(vehicleIDs))
	lanes := make([]Lane, 0, len(vehicleIDs)+1)
	for _, id := range vehicleIDs {
		if _, dup := index[id]; dup || id == "" {
			continue
		}
		index[id] = len(lanes)
		lanes = append(lanes, Lane{VehicleID: id})
	}

	var unassigned []schedule.Event
	for _, e := range events {
		if !e.Assigned() {
			unassigned = append(unassigned, e)
			continue
		}
		i, ok := index[e.VehicleID]
		if !ok {
			i = len(lanes)
			index[e.VehicleID] = i
			lanes = append(lanes, Lane{VehicleID: e.VehicleID})
		}
		lanes[i].Events = append(lanes[i].Events, e)
	}
	if len(unassigned) > 0 {
		lanes = append(lanes, Lane{Events: unassigned})
	}
	for i := range lanes {
		sortByStart(lanes[i].Events)
	}
	return lanes
}

func sortByStart(events []schedule.Event) {
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Interval.Start.Before(events[j].Interval.Start)
	})
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
