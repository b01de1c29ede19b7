package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type LeaderboardCategory string

const (
	LeaderboardPoints LeaderboardCategory = "POINTS"
)

type LeaderboardPeriod string

const (
	PeriodAllTime LeaderboardPeriod = "ALL_TIME"
	PeriodWeekly  LeaderboardPeriod = "WEEKLY"
	PeriodMonthly LeaderboardPeriod = "MONTHLY"
)

// LeaderboardEntry is a score snapshot per user/category/period. Rank is computed
// by a separate projection and is never written here.
type LeaderboardEntry struct {
	ID          string              `gorm:"primaryKey;type:uuid" json:"id"`
	UserID      string              `gorm:"not null;uniqueIndex:idx_leaderboard_slot,priority:1" json:"user_id"`
	Category    LeaderboardCategory `gorm:"not null;type:varchar(32);uniqueIndex:idx_leaderboard_slot,priority:2" json:"category"`
	Period      LeaderboardPeriod   `gorm:"not null;type:varchar(16);uniqueIndex:idx_leaderboard_slot,priority:3" json:"period"`
	PeriodStart time.Time           `gorm:"type:date;not null;uniqueIndex:idx_leaderboard_slot,priority:4" json:"period_start"`
	Score       int64               `gorm:"not null;default:0;index" json:"score"`
	Rank        int                 `gorm:"not null;default:0" json:"rank"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func (e *LeaderboardEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	return nil
}
