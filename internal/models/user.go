// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Privilege tiers. Lower values are more privileged.
const (
	LevelAdmin    = 1
	LevelManager  = 2
	LevelMember   = 3
	LevelNewcomer = 4
)

// ValidLevel reports whether level is one of the known privilege tiers.
func ValidLevel(level int) bool {
	return level >= LevelAdmin && level <= LevelNewcomer
}

// User represents a member of the community.
type User struct {
	ID              string         `gorm:"primaryKey;size:36" json:"id"`
	Username        string         `gorm:"uniqueIndex;size:30;not null" json:"username"`
	Email           string         `gorm:"uniqueIndex;not null" json:"email"`
	Password        string         `gorm:"not null" json:"-"`
	Level           int            `gorm:"not null;default:4" json:"level"`
	InfractionCount int            `gorm:"not null;default:0" json:"infraction_count"`
	SuspendedUntil  *time.Time     `json:"suspended_until,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate assigns an opaque identifier and the entry tier.
func (u *User) BeforeCreate(_ *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.Level == 0 {
		u.Level = LevelNewcomer
	}
	return nil
}

// IsSuspended reports whether the suspension window is still open at now.
func (u *User) IsSuspended(now time.Time) bool {
	return u.SuspendedUntil != nil && u.SuspendedUntil.After(now)
}

// IsAdmin reports whether the user holds the top tier.
func (u *User) IsAdmin() bool {
	return u.Level == LevelAdmin
}
