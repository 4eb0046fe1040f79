package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/logger"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/model"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

// ErrLaneOccupied is returned by CommitMove when the database already holds
// an overlapping event on the target vehicle. It only fires when something
// other than the coordinator wrote to the lane.
var ErrLaneOccupied = errors.New("lane occupied")

// exclusionViolation is the postgres SQLSTATE raised by the optional
// EXCLUDE constraint on scheduled_events.
const exclusionViolation = "23P01"

// Store defines all database operations of the scheduler.
type Store interface {
	schedule.EventSource
	schedule.Committer
	schedule.Observer

	ListVehicles(ctx context.Context) ([]model.Vehicle, error)
	UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) error
	UpsertEvents(ctx context.Context, events []schedule.Event) error
	MoveAttempts(ctx context.Context, eventID string) ([]model.MoveAttempt, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db  *gorm.DB
	log zerolog.Logger
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB, log zerolog.Logger) Store {
	return &gormStore{db: db, log: logger.Component(log, "store")}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// Event loads one event by id.
func (s *gormStore) Event(ctx context.Context, id string) (schedule.Event, error) {
	row, err := s.fetchEvent(s.db.WithContext(ctx), id)
	if err != nil {
		return schedule.Event{}, err
	}
	return toEvent(row)
}

// Events returns the events intersecting [q.From, q.To), optionally on one
// vehicle, ordered by start. Zero bounds are open.
func (s *gormStore) Events(ctx context.Context, q schedule.Query) ([]schedule.Event, error) {
	tx := s.db.WithContext(ctx).Model(&model.ScheduledEvent{})
	if !q.To.IsZero() {
		tx = tx.Where("starts_at < ?", q.To.UTC())
	}
	if !q.From.IsZero() {
		tx = tx.Where("ends_at > ?", q.From.UTC())
	}
	if q.VehicleID != "" {
		tx = tx.Where("vehicle_id = ?", q.VehicleID)
	}

	var rows []model.ScheduledEvent
	if err := tx.Order("starts_at").Order("id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}

	events := make([]schedule.Event, 0, len(rows))
	for _, r := range rows {
		e, err := toEvent(r)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// CommitMove writes the new placement of eventID transactionally. An empty
// vehicleID unassigns the event.
func (s *gormStore) CommitMove(ctx context.Context, eventID, vehicleID string, iv schedule.Interval) (schedule.Event, error) {
	var updated model.ScheduledEvent
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row, err := s.fetchEvent(tx, eventID)
		if err != nil {
			return err
		}

		if vehicleID != "" {
			var overlapping int64
			if err := tx.Model(&model.ScheduledEvent{}).
				Where("vehicle_id = ? AND id <> ? AND starts_at < ? AND ends_at > ?",
					vehicleID, eventID, iv.End.UTC(), iv.Start.UTC()).
				Count(&overlapping).Error; err != nil {
				return fmt.Errorf("failed to check lane %s: %w", vehicleID, err)
			}
			if overlapping > 0 {
				return fmt.Errorf("%w: %d event(s) on vehicle %s", ErrLaneOccupied, overlapping, vehicleID)
			}
		}

		if err := tx.Model(&row).Updates(map[string]any{
			"vehicle_id": nullable(vehicleID),
			"starts_at":  iv.Start.UTC(),
			"ends_at":    iv.End.UTC(),
		}).Error; err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == exclusionViolation {
				return fmt.Errorf("%w: %s", ErrLaneOccupied, pgErr.Message)
			}
			return fmt.Errorf("failed to update event %s: %w", eventID, err)
		}

		updated, err = s.fetchEvent(tx, eventID)
		return err
	})
	if err != nil {
		return schedule.Event{}, err
	}
	return toEvent(updated)
}

// ObserveMove writes the audit row of a decided move. Failures are logged
// and never surface to the caller of the move.
func (s *gormStore) ObserveMove(ctx context.Context, rec schedule.MoveRecord) {
	attempt := toMoveAttempt(uuid.NewString(), rec)
	if err := s.db.WithContext(ctx).Create(&attempt).Error; err != nil {
		s.log.Error().Err(err).Str("event_id", attempt.EventID).Msg("failed to record move attempt")
	}
}

// MoveAttempts returns the recorded moves of an event, newest first.
func (s *gormStore) MoveAttempts(ctx context.Context, eventID string) ([]model.MoveAttempt, error) {
	var attempts []model.MoveAttempt
	if err := s.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("attempted_at DESC").
		Find(&attempts).Error; err != nil {
		return nil, fmt.Errorf("failed to query move attempts for %s: %w", eventID, err)
	}
	return attempts, nil
}

// ListVehicles returns all lanes in display order.
func (s *gormStore) ListVehicles(ctx context.Context) ([]model.Vehicle, error) {
	var vehicles []model.Vehicle
	if err := s.db.WithContext(ctx).Order("position").Order("id").Find(&vehicles).Error; err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

// UpsertVehicles inserts or refreshes vehicle metadata.
func (s *gormStore) UpsertVehicles(ctx context.Context, vehicles []model.Vehicle) error {
	if len(vehicles) == 0 {
		return nil
	}
	s.log.Info().Int("count", len(vehicles)).Msg("batch upserting vehicles")
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"plate", "label", "position", "updated_at"}),
	}).Create(&vehicles).Error
}

// UpsertEvents inserts or replaces events as supplied by the back-office.
// Events failing validation are skipped.
func (s *gormStore) UpsertEvents(ctx context.Context, events []schedule.Event) error {
	rows := make([]model.ScheduledEvent, 0, len(events))
	for _, e := range events {
		if err := e.Validate(); err != nil {
			s.log.Warn().Err(err).Msg("skipping invalid event")
			continue
		}
		rows = append(rows, fromEvent(e))
	}
	if len(rows) == 0 {
		return nil
	}

	s.log.Info().Int("count", len(rows)).Msg("batch upserting events")
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"kind", "status", "vehicle_id", "starts_at", "ends_at",
				"convertible", "check_out_eligible", "check_in_eligible", "cancellable",
				"customer", "origin", "destination", "short_no", "updated_at",
			}),
		}).Create(&rows).Error
	})
}

func (s *gormStore) fetchEvent(tx *gorm.DB, id string) (model.ScheduledEvent, error) {
	var row model.ScheduledEvent
	if err := tx.First(&row, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return row, fmt.Errorf("event %s: %w", id, schedule.ErrEventNotFound)
		}
		return row, fmt.Errorf("failed to load event %s: %w", id, err)
	}
	return row, nil
}

func toEvent(r model.ScheduledEvent) (schedule.Event, error) {
	kind, err := schedule.ParseKind(r.Kind)
	if err != nil {
		return schedule.Event{}, fmt.Errorf("event %s: %w", r.ID, err)
	}
	e := schedule.Event{
		ID:       r.ID,
		Kind:     kind,
		Status:   r.Status,
		Interval: schedule.Interval{Start: r.StartsAt.UTC(), End: r.EndsAt.UTC()},
		Eligibility: schedule.Flags{
			Convertible:      r.Convertible,
			CheckOutEligible: r.CheckOutEligible,
			CheckInEligible:  r.CheckInEligible,
			Cancellable:      r.Cancellable,
		},
		Customer:    r.Customer,
		Origin:      r.Origin,
		Destination: r.Destination,
		ShortNo:     r.ShortNo,
	}
	if r.VehicleID != nil {
		e.VehicleID = *r.VehicleID
	}
	return e, nil
}

func fromEvent(e schedule.Event) model.ScheduledEvent {
	return model.ScheduledEvent{
		ID:               e.ID,
		Kind:             string(e.Kind),
		Status:           e.Status,
		VehicleID:        nullable(e.VehicleID),
		StartsAt:         e.Interval.Start.UTC(),
		EndsAt:           e.Interval.End.UTC(),
		Convertible:      e.Eligibility.Convertible,
		CheckOutEligible: e.Eligibility.CheckOutEligible,
		CheckInEligible:  e.Eligibility.CheckInEligible,
		Cancellable:      e.Eligibility.Cancellable,
		Customer:         e.Customer,
		Origin:           e.Origin,
		Destination:      e.Destination,
		ShortNo:          e.ShortNo,
	}
}

func toMoveAttempt(id string, rec schedule.MoveRecord) model.MoveAttempt {
	ids := make([]string, 0, len(rec.Result.Conflicts))
	for _, c := range rec.Result.Conflicts {
		ids = append(ids, c.Event.ID)
	}
	var reason string
	if rec.Result.Cause != nil {
		reason = rec.Result.Cause.Error()
	}
	at := rec.At
	if at.IsZero() {
		at = time.Now()
	}
	return model.MoveAttempt{
		ID:            id,
		EventID:       rec.Before.ID,
		AttemptedAt:   at.UTC(),
		Outcome:       string(rec.Result.Outcome),
		FromVehicleID: rec.Before.VehicleID,
		FromStart:     rec.Before.Interval.Start.UTC(),
		FromEnd:       rec.Before.Interval.End.UTC(),
		ToVehicleID:   rec.Target.VehicleID,
		ToStart:       rec.Target.Interval.Start.UTC(),
		ToEnd:         rec.Target.Interval.End.UTC(),
		Conflicts:     len(ids),
		ConflictIDs:   strings.Join(ids, ","),
		Reason:        reason,
		DurationMS:    rec.Duration.Milliseconds(),
	}
}

// nullable maps the empty vehicle id onto NULL.
func nullable(id string) *string {
	if id == "" {
		return nil
	}
	return &id
}
