package model

import "time"

// MoveAttempt is the audit row written for every decided move.
type MoveAttempt struct {
	ID            string    `gorm:"primaryKey;size:36"`
	EventID       string    `gorm:"size:64;not null;index:idx_move_event,priority:1"`
	AttemptedAt   time.Time `gorm:"not null;index:idx_move_event,priority:2"`
	Outcome       string    `gorm:"size:32;not null"`
	FromVehicleID string    `gorm:"size:64"`
	FromStart     time.Time `gorm:"not null"`
	FromEnd       time.Time `gorm:"not null"`
	ToVehicleID   string    `gorm:"size:64"`
	ToStart       time.Time `gorm:"not null"`
	ToEnd         time.Time `gorm:"not null"`
	Conflicts     int       `gorm:"not null;default:0"`
	ConflictIDs   string    `gorm:"size:1024"` // Comma separated
	Reason        string    `gorm:"size:1024"`
	DurationMS    int64     `gorm:"column:duration_ms;not null"`
}
