package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserStreak is a consecutive-day counter for one activity category.
type UserStreak struct {
	ID               string    `gorm:"primaryKey;type:uuid" json:"id"`
	UserID           string    `gorm:"not null;uniqueIndex:idx_user_streak_type,priority:1" json:"user_id"`
	StreakType       string    `gorm:"not null;type:varchar(64);uniqueIndex:idx_user_streak_type,priority:2" json:"streak_type"` // e.g. "LOGIN", "LESSON_COMPLETED"
	CurrentStreak    int       `gorm:"not null;default:0" json:"current_streak"`
	LongestStreak    int       `gorm:"not null;default:0" json:"longest_streak"`
	LastActivityDate time.Time `gorm:"type:date;not null;index" json:"last_activity_date"` // midnight UTC
	IsActive         bool      `gorm:"not null;default:true" json:"is_active"`

	Timestamps
}

func (s *UserStreak) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	return nil
}
