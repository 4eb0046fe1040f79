// Package seed loads vehicle and event fixtures from YAML into the store.
package seed

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/model"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

// Fixtures is the document layout of a seed file.
type Fixtures struct {
	Vehicles []Vehicle `yaml:"vehicles"`
	Events   []Event   `yaml:"events"`
}

type Vehicle struct {
	ID       string `yaml:"id"`
	Plate    string `yaml:"plate"`
	Label    string `yaml:"label"`
	Position int    `yaml:"position"`
}

type Event struct {
	ID          string    `yaml:"id"`
	Kind        string    `yaml:"kind"`
	Status      string    `yaml:"status"`
	VehicleID   string    `yaml:"vehicle_id"`
	Start       time.Time `yaml:"start"`
	End         time.Time `yaml:"end"`
	Customer    string    `yaml:"customer"`
	Origin      string    `yaml:"origin"`
	Destination string    `yaml:"destination"`
	ShortNo     string    `yaml:"short_no"`

	Convertible      bool `yaml:"convertible"`
	CheckOutEligible bool `yaml:"check_out_eligible"`
	CheckInEligible  bool `yaml:"check_in_eligible"`
	Cancellable      bool `yaml:"cancellable"`
}

// Writer is the part of the store seeding needs.
type Writer interface {
	UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) error
	UpsertEvents(ctx context.Context, events []schedule.Event) error
}

// Decode parses a fixtures document. Events with an unknown kind are an
// error so typos do not silently disappear.
func Decode(r io.Reader) (*Fixtures, error) {
	var f Fixtures
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixtures: %w", err)
	}
	for i, e := range f.Events {
		if _, err := schedule.ParseKind(e.Kind); err != nil {
			return nil, fmt.Errorf("events[%d] %s: %w", i, e.ID, err)
		}
	}
	return &f, nil
}

// LoadFile decodes the fixtures stored at path.
func LoadFile(path string) (*Fixtures, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixtures file: %w", err)
	}
	defer file.Close()
	return Decode(file)
}

// Apply upserts vehicles first so events can reference them.
func (f *Fixtures) Apply(ctx context.Context, w Writer) error {
	vehicles := make([]model.Vehicle, 0, len(f.Vehicles))
	for _, v := range f.Vehicles {
		vehicles = append(vehicles, model.Vehicle{ID: v.ID, Plate: v.Plate, Label: v.Label, Position: v.Position})
	}
	if err := w.UpsertVehicles(ctx, vehicles); err != nil {
		return fmt.Errorf("seed vehicles: %w", err)
	}
	if err := w.UpsertEvents(ctx, f.events()); err != nil {
		return fmt.Errorf("seed events: %w", err)
	}
	return nil
}

func (f *Fixtures) events() []schedule.Event {
	out := make([]schedule.Event, 0, len(f.Events))
	for _, e := range f.Events {
		out = append(out, schedule.Event{
			ID:        e.ID,
			Kind:      schedule.Kind(e.Kind),
			Status:    e.Status,
			VehicleID: e.VehicleID,
			Interval:  schedule.Interval{Start: e.Start, End: e.End},
			Eligibility: schedule.Flags{
				Convertible:      e.Convertible,
				CheckOutEligible: e.CheckOutEligible,
				CheckInEligible:  e.CheckInEligible,
				Cancellable:      e.Cancellable,
			},
			Customer:    e.Customer,
			Origin:      e.Origin,
			Destination: e.Destination,
			ShortNo:     e.ShortNo,
		})
	}
	return out
}
