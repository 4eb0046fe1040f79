package model

import "time"

// Vehicle is one lane of the resource timeline.
type Vehicle struct {
	ID        string    `gorm:"primaryKey;size:64"` // Back-office vehicle ID
	Plate     string    `gorm:"size:32;index"`
	Label     string    `gorm:"size:256;not null"`
	Position  int       `gorm:"not null;default:0"` // Lane order
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
