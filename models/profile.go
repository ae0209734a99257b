package models

import "time"

// Profile represents a user's extended attributes (one-to-one with User).
// It is created lazily on the first profile submission, not at sign-up.
type Profile struct {
	ID        uint `gorm:"primaryKey"`
	CreatedAt time.Time
	UpdatedAt time.Time
	UserID    uint      `gorm:"uniqueIndex;not null"` // one-to-one relation
	User      User      `gorm:"foreignKey:UserID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Birth     time.Time `gorm:"not null"`
	Bio       string    `gorm:"type:text;not null"`
	// Avatar fields are set when an image is uploaded. AvatarPath is the
	// public relative path (e.g. avatars/xxx.jpg).
	AvatarPath        string `gorm:"size:512"`
	AvatarContentType string `gorm:"size:128"`
}
