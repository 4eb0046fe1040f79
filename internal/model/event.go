package model

import "time"

// ScheduledEvent is the persisted form of a reservation, agreement, hold
// or maintenance block. A NULL VehicleID means the event is unassigned.
type ScheduledEvent struct {
	ID        string    `gorm:"primaryKey;size:64"`
	Kind      string    `gorm:"size:16;not null"`
	Status    string    `gorm:"size:32;not null"`
	VehicleID *string   `gorm:"size:64;index:idx_event_lane,priority:1"`
	StartsAt  time.Time `gorm:"not null;index:idx_event_lane,priority:2"`
	EndsAt    time.Time `gorm:"not null"`

	// Eligibility computed by the back-office.
	Convertible      bool `gorm:"not null;default:false"`
	CheckOutEligible bool `gorm:"not null;default:false"`
	CheckInEligible  bool `gorm:"not null;default:false"`
	Cancellable      bool `gorm:"not null;default:false"`

	Customer    string `gorm:"size:256"`
	Origin      string `gorm:"size:128"`
	Destination string `gorm:"size:128"`
	ShortNo     string `gorm:"size:32"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Vehicle *Vehicle `gorm:"constraint:OnDelete:SET NULL"`
}
