package seed

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/model"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

const fixture = `
vehicles:
  - id: V1
    plate: DXB-1
    label: Corolla
    position: 1
events:
  - id: R1
    kind: reservation
    status: confirmed
    vehicle_id: V1
    start: 2026-05-11T09:00:00Z
    end: 2026-05-11T11:00:00Z
    short_no: RSV-1
    convertible: true
  - id: H1
    kind: hold
    start: 2026-05-11T12:00:00+04:00
    end: 2026-05-11T13:00:00+04:00
`

type recordingWriter struct {
	vehicles []model.Vehicle
	events   []schedule.Event
	err      error
}

func (w *recordingWriter) UpsertVehicles(_ context.Context, v []model.Vehicle) error {
	w.vehicles = v
	return w.err
}

func (w *recordingWriter) UpsertEvents(_ context.Context, e []schedule.Event) error {
	w.events = e
	return nil
}

func TestDecodeAndApply(t *testing.T) {
	f, err := Decode(strings.NewReader(fixture))
	require.NoError(t, err)

	w := &recordingWriter{}
	require.NoError(t, f.Apply(context.Background(), w))

	require.Len(t, w.vehicles, 1)
	assert.Equal(t, "Corolla", w.vehicles[0].Label)
	require.Len(t, w.events, 2)

	r1 := w.events[0]
	assert.Equal(t, schedule.KindReservation, r1.Kind)
	assert.True(t, r1.Eligibility.Convertible)
	assert.Equal(t, []schedule.Action{schedule.ActionOpen, schedule.ActionConvert}, []schedule.Action(r1.Actions()))

	h1 := w.events[1]
	assert.False(t, h1.Assigned())
	assert.True(t, h1.Interval.Start.Equal(time.Date(2026, 5, 11, 8, 0, 0, 0, time.UTC)))
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(strings.NewReader("events:\n  - id: X\n    kind: lease\n"))
	assert.ErrorIs(t, err, schedule.ErrUnknownKind)

	_, err = Decode(strings.NewReader("vehicles:\n  - id: V1\n    colour: red\n"))
	assert.Error(t, err)

	_, err = LoadFile("does-not-exist.yaml")
	assert.Error(t, err)
}

func TestApply_StopsOnVehicleError(t *testing.T) {
	f, err := Decode(strings.NewReader(fixture))
	require.NoError(t, err)

	w := &recordingWriter{err: errors.New("disk full")}
	assert.ErrorContains(t, f.Apply(context.Background(), w), "seed vehicles")
	assert.Nil(t, w.events)
}
