package schedule

// Placement is a candidate (vehicle, interval) tuple.
type Placement struct {
	VehicleID string   `json:"vehicle_id,omitempty"`
	Interval  Interval `json:"interval"`
}

// Conflict describes an existing event clashing with a candidate placement.
type Conflict struct {
	Event   Event    `json:"event"`
	Overlap Interval `json:"overlap"`
}

// Detect returns the events in existing that overlap candidate, skipping the
// event identified by excludeID. The result keeps the order of existing and
// is empty, never nil, when the lane is free. An unassigned candidate never
// conflicts.
func Detect(candidate Placement, existing []Event, excludeID string) []Conflict {
	conflicts := make([]Conflict, 0)
	if candidate.VehicleID == "" {
		return conflicts
	}
	probe := Event{ID: excludeID, VehicleID: candidate.VehicleID, Interval: candidate.Interval}
	for _, e := range existing {
		if e.ID == excludeID || e.VehicleID != candidate.VehicleID {
			continue
		}
		if !Overlaps(probe, e) {
			continue
		}
		overlap, _ := candidate.Interval.Intersection(e.Interval)
		conflicts = append(conflicts, Conflict{Event: e, Overlap: overlap})
	}
	return conflicts
}
