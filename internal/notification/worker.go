package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/logger"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/model"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

// NotificationSender defines the interface for sending a web push notification.
type NotificationSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of NotificationSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// MoveNotice describes a committed move to the lanes it touched.
type MoveNotice struct {
	EventID     string        `json:"event_id"`
	ShortNo     string        `json:"short_no,omitempty"`
	Kind        schedule.Kind `json:"kind"`
	FromVehicle string        `json:"from_vehicle_id,omitempty"`
	ToVehicle   string        `json:"to_vehicle_id,omitempty"`
	Start       time.Time     `json:"start"`
	End         time.Time     `json:"end"`
}

// vehicles returns the distinct lanes of the notice.
func (n MoveNotice) vehicles() []string {
	var ids []string
	if n.FromVehicle != "" {
		ids = append(ids, n.FromVehicle)
	}
	if n.ToVehicle != "" && n.ToVehicle != n.FromVehicle {
		ids = append(ids, n.ToVehicle)
	}
	return ids
}

type payload struct {
	Title string     `json:"title"`
	Body  string     `json:"body"`
	Move  MoveNotice `json:"move"`
}

// WorkerPool manages a pool of workers for sending notifications.
type WorkerPool struct {
	size    int
	jobs    chan MoveNotice
	db      *gorm.DB
	webpush *webpush.Options
	sender  NotificationSender
	log     zerolog.Logger
}

// NewWorkerPool creates a new worker pool with a job queue of queueSize.
func NewWorkerPool(size, queueSize int, db *gorm.DB, webpushOptions *webpush.Options, log zerolog.Logger) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan MoveNotice, queueSize),
		db:      db,
		webpush: webpushOptions,
		sender:  &WebPushSender{}, // Use the real sender by default
		log:     logger.Component(log, "notification"),
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log := wp.log.With().Int("worker", id).Logger()
	log.Debug().Msg("worker started")
	for {
		select {
		case notice := <-wp.jobs:
			log.Debug().Str("event_id", notice.EventID).Msg("processing move notice")
			wp.sendNotificationsForMove(ctx, notice)
		case <-ctx.Done():
			log.Debug().Msg("worker shutting down")
			return
		}
	}
}

// Dispatch queues a notice without blocking. It reports false when the
// queue is full and the notice was dropped.
func (wp *WorkerPool) Dispatch(notice MoveNotice) bool {
	select {
	case wp.jobs <- notice:
		return true
	default:
		wp.log.Warn().Str("event_id", notice.EventID).Msg("notification queue full, dropping notice")
		return false
	}
}

// ObserveMove queues a notice for every committed move.
func (wp *WorkerPool) ObserveMove(_ context.Context, rec schedule.MoveRecord) {
	if rec.Result.Outcome != schedule.OutcomeCommitted {
		return
	}
	wp.Dispatch(MoveNotice{
		EventID:     rec.Before.ID,
		ShortNo:     rec.Before.ShortNo,
		Kind:        rec.Before.Kind,
		FromVehicle: rec.Before.VehicleID,
		ToVehicle:   rec.Target.VehicleID,
		Start:       rec.Target.Interval.Start,
		End:         rec.Target.Interval.End,
	})
}

// sendNotificationsForMove fetches the subscribers of both lanes and
// notifies each of them once.
func (wp *WorkerPool) sendNotificationsForMove(ctx context.Context, notice MoveNotice) {
	vehicleIDs := notice.vehicles()
	if len(vehicleIDs) == 0 {
		return
	}

	var subscriptions []model.PushSubscription
	err := wp.db.WithContext(ctx).
		Joins("JOIN subscription_vehicle_mapping svm ON svm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("svm.vehicle_id IN ?", vehicleIDs).
		Find(&subscriptions).Error
	if err != nil {
		wp.log.Error().Err(err).Strs("vehicle_ids", vehicleIDs).Msg("error fetching subscriptions")
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	body, err := json.Marshal(payload{
		Title: "Booking moved",
		Body:  wp.describe(ctx, notice),
		Move:  notice,
	})
	if err != nil {
		wp.log.Error().Err(err).Msg("error encoding notification")
		return
	}

	seen := make(map[string]bool, len(subscriptions))
	for _, sub := range subscriptions {
		if seen[sub.Endpoint] {
			continue
		}
		seen[sub.Endpoint] = true
		wp.sendNotification(ctx, sub, body)
	}
	wp.log.Info().Str("event_id", notice.EventID).Int("subscribers", len(seen)).Msg("move notifications sent")
}

// describe renders the human readable line, falling back to vehicle ids
// when the labels cannot be loaded.
func (wp *WorkerPool) describe(ctx context.Context, notice MoveNotice) string {
	labels := map[string]string{}
	var vehicles []model.Vehicle
	if err := wp.db.WithContext(ctx).
		Select("id", "label").
		Where("id IN ?", notice.vehicles()).
		Find(&vehicles).Error; err != nil {
		wp.log.Warn().Err(err).Msg("error fetching vehicle labels")
	}
	for _, v := range vehicles {
		if v.Label != "" {
			labels[v.ID] = v.Label
		}
	}
	label := func(id string) string {
		if id == "" {
			return "unassigned"
		}
		if l, ok := labels[id]; ok {
			return l
		}
		return id
	}

	name := notice.ShortNo
	if name == "" {
		name = notice.EventID
	}
	when := notice.Start.Format("2006-01-02 15:04")
	if notice.FromVehicle == notice.ToVehicle {
		return fmt.Sprintf("%s %s on %s now starts %s", notice.Kind, name, label(notice.ToVehicle), when)
	}
	return fmt.Sprintf("%s %s moved from %s to %s, starts %s",
		notice.Kind, name, label(notice.FromVehicle), label(notice.ToVehicle), when)
}

// sendNotification sends a single web push notification.
func (wp *WorkerPool) sendNotification(ctx context.Context, sub model.PushSubscription, body []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(body, wpSub, wp.webpush)
	if err != nil {
		wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("error sending notification")
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == http.StatusGone {
		wp.log.Info().Str("endpoint", sub.Endpoint).Msg("subscription expired, deleting")
		if err := wp.db.WithContext(ctx).Select("Vehicles").Delete(&sub).Error; err != nil {
			wp.log.Error().Err(err).Str("endpoint", sub.Endpoint).Msg("failed to delete expired subscription")
		}
	}
}
