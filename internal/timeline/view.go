package timeline

import (
	"fmt"
	"time"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

// ViewKind selects how a window is laid out.
type ViewKind string

const (
	ViewDay      ViewKind = "day"
	ViewWeek     ViewKind = "week"
	ViewMonth    ViewKind = "month"
	ViewResource ViewKind = "resource"
)

// ParseViewKind maps a query value onto a ViewKind. Empty means resource.
func ParseViewKind(raw string) (ViewKind, error) {
	switch ViewKind(raw) {
	case "":
		return ViewResource, nil
	case ViewDay, ViewWeek, ViewMonth, ViewResource:
		return ViewKind(raw), nil
	}
	return "", fmt.Errorf("unknown view %q", raw)
}

// Window returns the axis a view of the given kind covers around anchor.
// Weeks start on Monday.
func Window(kind ViewKind, anchor time.Time) Axis {
	switch kind {
	case ViewWeek:
		offset := (int(anchor.Weekday()) + 6) % 7
		return WeekAxis(anchor.AddDate(0, 0, -offset))
	case ViewMonth:
		return MonthAxis(anchor)
	default:
		return DayAxis(anchor)
	}
}

// Item is one positioned event with its action menu.
type Item struct {
	Event    schedule.Event      `json:"event"`
	Position Position            `json:"position"`
	Actions  [][]schedule.Action `json:"actions"`
}

// LaneView is a vehicle row.
type LaneView struct {
	VehicleID string `json:"vehicle_id"`
	Items     []Item `json:"items"`
}

// DayColumn is one day of the week view.
type DayColumn struct {
	Date  string `json:"date"`
	Items []Item `json:"items"`
}

// DayCount is one cell of the month view.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// View is a rendering-neutral timeline. Only the section matching Kind is
// populated.
type View struct {
	Kind  ViewKind    `json:"kind"`
	From  time.Time   `json:"from"`
	To    time.Time   `json:"to"`
	Items []Item      `json:"items,omitempty"`
	Lanes []LaneView  `json:"lanes,omitempty"`
	Days  []DayColumn `json:"days,omitempty"`
	Month []DayCount  `json:"month,omitempty"`
}

// BuildView lays out events for the view of kind around anchor. The
// anchor's location defines day boundaries. vehicleIDs fixes the lane
// order of the resource view.
func BuildView(kind ViewKind, anchor time.Time, events []schedule.Event, vehicleIDs []string) View {
	axis := Window(kind, anchor)
	v := View{Kind: kind, From: axis.Origin, To: axis.End()}
	loc := anchor.Location()

	switch kind {
	case ViewDay:
		visible := clip(events, axis)
		sortByStart(visible)
		v.Items = items(visible, axis)
	case ViewResource:
		for _, l := range Lanes(clip(events, axis), vehicleIDs) {
			v.Lanes = append(v.Lanes, LaneView{VehicleID: l.VehicleID, Items: items(l.Events, axis)})
		}
	case ViewWeek:
		buckets := BucketByDay(events, loc)
		for _, d := range axis.Days() {
			key := DayOf(d.Origin, loc)
			dayEvents := append([]schedule.Event(nil), buckets[key]...)
			sortByStart(dayEvents)
			v.Days = append(v.Days, DayColumn{Date: key.String(), Items: items(dayEvents, d)})
		}
	case ViewMonth:
		buckets := BucketByDay(events, loc)
		for _, d := range axis.Days() {
			key := DayOf(d.Origin, loc)
			v.Month = append(v.Month, DayCount{Date: key.String(), Count: len(buckets[key])})
		}
	}
	return v
}

// clip keeps the events intersecting axis.
func clip(events []schedule.Event, axis Axis) []schedule.Event {
	window := schedule.Interval{Start: axis.Origin, End: axis.End()}
	out := make([]schedule.Event, 0, len(events))
	for _, e := range events {
		if e.Interval.Intersects(window) {
			out = append(out, e)
		}
	}
	return out
}

func items(events []schedule.Event, axis Axis) []Item {
	out := make([]Item, 0, len(events))
	for _, e := range events {
		out = append(out, Item{
			Event:    e,
			Position: Layout(e, axis),
			Actions:  e.Actions().Groups(),
		})
	}
	return out
}
