package models

import (
	"time"
)

// User model
type User struct {
	ID             uint `gorm:"primaryKey"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
	Username       string `gorm:"size:255;not null;unique"`
	FirstName      string `gorm:"size:255"`
	LastName       string `gorm:"size:255"`
	Email          string `gorm:"size:255"`
	HashedPassword []byte `gorm:"not null"`
	// Active gates sign-in. Disabled accounts keep their row but cannot
	// authenticate. Defaults to true.
	Active  bool     `gorm:"default:true;not null"`
	Profile *Profile `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
}
