package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var day = time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return day.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

func ev(id, vehicleID string, start, end time.Time) Event {
	return Event{
		ID:        id,
		Kind:      KindReservation,
		Status:    "open",
		VehicleID: vehicleID,
		Interval:  Interval{Start: start, End: end},
	}
}

func TestNewInterval(t *testing.T) {
	iv, err := NewInterval(at(9, 0), at(11, 0))
	require.NoError(t, err)
	assert.Equal(t, 2*time.Hour, iv.Duration())

	_, err = NewInterval(at(8, 0), at(7, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval)

	_, err = NewInterval(at(8, 0), at(8, 0))
	assert.ErrorIs(t, err, ErrInvalidInterval, "empty interval must be rejected")
}

func TestOverlaps(t *testing.T) {
	testCases := []struct {
		name string
		a, b Event
		want bool
	}{
		{
			name: "touching at the boundary",
			a:    ev("a", "V1", at(9, 0), at(11, 0)),
			b:    ev("b", "V1", at(11, 0), at(12, 0)),
			want: false,
		},
		{
			name: "a ends before b starts",
			a:    ev("a", "V1", at(9, 0), at(10, 0)),
			b:    ev("b", "V1", at(11, 0), at(12, 0)),
			want: false,
		},
		{
			name: "partial overlap",
			a:    ev("a", "V1", at(9, 0), at(11, 0)),
			b:    ev("b", "V1", at(10, 0), at(12, 0)),
			want: true,
		},
		{
			name: "containment",
			a:    ev("a", "V1", at(9, 0), at(17, 0)),
			b:    ev("b", "V1", at(10, 0), at(10, 30)),
			want: true,
		},
		{
			name: "identical intervals",
			a:    ev("a", "V1", at(9, 0), at(10, 0)),
			b:    ev("b", "V1", at(9, 0), at(10, 0)),
			want: true,
		},
		{
			name: "different vehicles",
			a:    ev("a", "V1", at(9, 0), at(11, 0)),
			b:    ev("b", "V2", at(10, 0), at(12, 0)),
			want: false,
		},
		{
			name: "one unassigned",
			a:    ev("a", "", at(9, 0), at(11, 0)),
			b:    ev("b", "V1", at(10, 0), at(12, 0)),
			want: false,
		},
		{
			name: "both unassigned",
			a:    ev("a", "", at(9, 0), at(11, 0)),
			b:    ev("b", "", at(10, 0), at(12, 0)),
			want: false,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Overlaps(tc.a, tc.b))
			assert.Equal(t, tc.want, Overlaps(tc.b, tc.a), "overlap must be symmetric")
		})
	}
}

func TestOverlaps_Exhaustive(t *testing.T) {
	// Every pair of quarter-hour aligned intervals within a four hour window.
	var slots []Interval
	for s := 0; s < 16; s++ {
		for e := s + 1; e <= 16; e++ {
			slots = append(slots, Interval{
				Start: day.Add(time.Duration(s) * 15 * time.Minute),
				End:   day.Add(time.Duration(e) * 15 * time.Minute),
			})
		}
	}
	for _, x := range slots {
		for _, y := range slots {
			a := ev("a", "V1", x.Start, x.End)
			b := ev("b", "V1", y.Start, y.End)
			if !a.Interval.End.After(b.Interval.Start) {
				assert.False(t, Overlaps(a, b), "%v / %v", x, y)
			}
			if a.Interval.Start.Before(b.Interval.End) && b.Interval.Start.Before(a.Interval.End) {
				assert.True(t, Overlaps(a, b), "%v / %v", x, y)
			}
			b.VehicleID = "V2"
			assert.False(t, Overlaps(a, b))
		}
	}
}

func TestIntersection(t *testing.T) {
	a := Interval{Start: at(9, 0), End: at(11, 0)}
	b := Interval{Start: at(10, 0), End: at(10, 30)}

	got, ok := a.Intersection(b)
	require.True(t, ok)
	assert.Equal(t, Interval{Start: at(10, 0), End: at(10, 30)}, got)

	_, ok = a.Intersection(Interval{Start: at(11, 0), End: at(12, 0)})
	assert.False(t, ok)
}

func TestDurationMinutes(t *testing.T) {
	assert.Equal(t, 90.0, DurationMinutes(ev("a", "V1", at(9, 0), at(10, 30))))
	assert.Equal(t, 0.5, DurationMinutes(ev("a", "V1", at(9, 0), at(9, 0).Add(30*time.Second))))
}

func TestEvent_Validate(t *testing.T) {
	assert.NoError(t, ev("a", "V1", at(9, 0), at(10, 0)).Validate())

	bad := ev("a", "V1", at(10, 0), at(9, 0))
	assert.ErrorIs(t, bad.Validate(), ErrInvalidInterval)

	unknown := ev("a", "V1", at(9, 0), at(10, 0))
	unknown.Kind = "lease"
	assert.ErrorIs(t, unknown.Validate(), ErrUnknownKind)
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("maintenance")
	require.NoError(t, err)
	assert.Equal(t, KindMaintenance, k)

	_, err = ParseKind("quote")
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestEvent_FlagsDerivesUnassigned(t *testing.T) {
	e := ev("a", "", at(9, 0), at(10, 0))
	e.Eligibility.Unassigned = false
	assert.True(t, e.Flags().Unassigned)
	assert.True(t, e.Actions().Has(ActionAssign))

	e.VehicleID = "V1"
	e.Eligibility.Unassigned = true
	assert.False(t, e.Flags().Unassigned)
	assert.False(t, e.Actions().Has(ActionAssign))
}
