package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/SherClockHolmes/webpush-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/model"
	"github.com/aimanhafez-cec/drivewise-fleetflow-sub006/internal/schedule"
)

// mockSender records every push and answers with a fixed status.
type mockSender struct {
	mu     sync.Mutex
	status int
	sent   map[string][]byte
	calls  chan string
}

func newMockSender(status int) *mockSender {
	return &mockSender{status: status, sent: map[string][]byte{}, calls: make(chan string, 16)}
}

// Send records the payload per endpoint.
func (m *mockSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	m.mu.Lock()
	m.sent[sub.Endpoint] = payload
	m.mu.Unlock()
	m.calls <- sub.Endpoint
	return &http.Response{
		StatusCode: m.status,
		Body:       io.NopCloser(bytes.NewBufferString("")),
	}, nil
}

func (m *mockSender) payload(endpoint string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[endpoint]
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	require.NoError(t, db.AutoMigrate(&model.Vehicle{}, &model.PushSubscription{}))
	return db
}

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func committed(from, to string) schedule.MoveRecord {
	before := schedule.Event{
		ID:        "R1",
		ShortNo:   "RSV-0042",
		Kind:      schedule.KindReservation,
		VehicleID: from,
		Interval: schedule.Interval{
			Start: time.Date(2026, 5, 11, 9, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 5, 11, 11, 0, 0, 0, time.UTC),
		},
	}
	target := schedule.Placement{
		VehicleID: to,
		Interval: schedule.Interval{
			Start: time.Date(2026, 5, 11, 13, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 5, 11, 15, 0, 0, 0, time.UTC),
		},
	}
	return schedule.MoveRecord{
		Before: before,
		Target: target,
		Result: schedule.MoveResult{Outcome: schedule.OutcomeCommitted},
	}
}

func receive(t *testing.T, calls chan string, n int) []string {
	t.Helper()
	var got []string
	for i := 0; i < n; i++ {
		select {
		case endpoint := <-calls:
			got = append(got, endpoint)
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out after %d of %d notifications", len(got), n)
		}
	}
	return got
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, 1, nil, &webpush.Options{}, zerolog.Nop())

	assert.True(t, wp.Dispatch(MoveNotice{EventID: "R1"}))
	assert.False(t, wp.Dispatch(MoveNotice{EventID: "R2"}), "full queue drops instead of blocking")

	select {
	case job := <-wp.jobs:
		assert.Equal(t, "R1", job.EventID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}
}

func TestWorkerPool_ObserveMove(t *testing.T) {
	wp := NewWorkerPool(1, 4, nil, &webpush.Options{}, zerolog.Nop())

	rejected := committed("V1", "V2")
	rejected.Result.Outcome = schedule.OutcomeRejected
	wp.ObserveMove(context.Background(), rejected)
	assert.Empty(t, wp.jobs)

	wp.ObserveMove(context.Background(), committed("V1", "V2"))
	require.Len(t, wp.jobs, 1)
	notice := <-wp.jobs
	assert.Equal(t, "V1", notice.FromVehicle)
	assert.Equal(t, "V2", notice.ToVehicle)
	assert.Equal(t, []string{"V1", "V2"}, notice.vehicles())
	assert.Equal(t, 13, notice.Start.Hour())
}

func TestWorkerPool_NotifiesBothLanes(t *testing.T) {
	db := newSQLiteDB(t)
	v1 := &model.Vehicle{ID: "V1", Label: "Corolla"}
	v2 := &model.Vehicle{ID: "V2", Label: "Yaris"}
	v3 := &model.Vehicle{ID: "V3", Label: "Hilux"}
	require.NoError(t, db.Create([]*model.Vehicle{v1, v2, v3}).Error)
	for _, sub := range []model.PushSubscription{
		{Endpoint: "https://push.example/a", P256DH: "k", Auth: "a", Vehicles: []*model.Vehicle{v1}},
		{Endpoint: "https://push.example/b", P256DH: "k", Auth: "a", Vehicles: []*model.Vehicle{v2}},
		{Endpoint: "https://push.example/both", P256DH: "k", Auth: "a", Vehicles: []*model.Vehicle{v1, v2}},
		{Endpoint: "https://push.example/other", P256DH: "k", Auth: "a", Vehicles: []*model.Vehicle{v3}},
	} {
		require.NoError(t, db.Create(&sub).Error)
	}

	sender := newMockSender(http.StatusCreated)
	wp := NewWorkerPool(1, 4, db, &webpush.Options{}, zerolog.Nop())
	wp.sender = sender
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.ObserveMove(ctx, committed("V1", "V2"))
	got := receive(t, sender.calls, 3)
	assert.ElementsMatch(t, []string{
		"https://push.example/a",
		"https://push.example/b",
		"https://push.example/both",
	}, got)

	var msg payload
	require.NoError(t, json.Unmarshal(sender.payload("https://push.example/both"), &msg))
	assert.Equal(t, "reservation RSV-0042 moved from Corolla to Yaris, starts 2026-05-11 13:00", msg.Body)
	assert.Equal(t, "R1", msg.Move.EventID)

	select {
	case extra := <-sender.calls:
		t.Fatalf("unexpected notification to %s", extra)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestWorkerPool_DeletesExpiredSubscription(t *testing.T) {
	db := newSQLiteDB(t)
	v1 := &model.Vehicle{ID: "V1", Label: "Corolla"}
	require.NoError(t, db.Create(v1).Error)
	require.NoError(t, db.Create(&model.PushSubscription{
		Endpoint: "https://push.example/expired", P256DH: "k", Auth: "a", Vehicles: []*model.Vehicle{v1},
	}).Error)

	sender := newMockSender(http.StatusGone)
	wp := NewWorkerPool(1, 4, db, &webpush.Options{}, zerolog.Nop())
	wp.sender = sender
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	wp.Dispatch(MoveNotice{EventID: "R1", Kind: schedule.KindHold, FromVehicle: "V1", ToVehicle: "V1"})
	receive(t, sender.calls, 1)

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.PushSubscription{}).Count(&count)
		return count == 0
	}, 2*time.Second, 20*time.Millisecond)

	var mappings int64
	require.NoError(t, db.Table("subscription_vehicle_mapping").Count(&mappings).Error)
	assert.Zero(t, mappings)
}

func TestWorkerPool_SubscriptionQueryFails(t *testing.T) {
	gormDB, mock := newMockDB(t)
	sender := newMockSender(http.StatusCreated)
	wp := NewWorkerPool(1, 1, gormDB, &webpush.Options{}, zerolog.Nop())
	wp.sender = sender

	mock.ExpectQuery(`SELECT .* FROM "push_subscriptions".*JOIN subscription_vehicle_mapping svm.*WHERE svm\.vehicle_id IN \(\$1\)`).
		WillReturnError(errors.New("connection refused"))

	wp.sendNotificationsForMove(context.Background(), MoveNotice{EventID: "R1", ToVehicle: "V9"})
	assert.Empty(t, sender.calls)
	assert.NoError(t, mock.ExpectationsWereMet())
}
