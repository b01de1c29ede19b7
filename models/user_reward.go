package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type RewardCategory string

const (
	RewardCategoryAchievement RewardCategory = "achievement"
	RewardCategoryMilestone   RewardCategory = "milestone"
)

// UserReward marks an automatic reward as granted so it is never re-issued.
type UserReward struct {
	ID           string         `gorm:"primaryKey;type:uuid" json:"id"`
	UserID       string         `gorm:"not null;uniqueIndex:idx_user_reward_key,priority:1" json:"user_id"`
	MilestoneKey string         `gorm:"not null;type:varchar(64);uniqueIndex:idx_user_reward_key,priority:2" json:"milestone_key"` // e.g. "points_10000"
	Category     RewardCategory `gorm:"type:varchar(32);not null" json:"category"`
	Title        string         `json:"title"`
	Threshold    int64          `json:"threshold"`
	Points       int64          `json:"points"`
	GrantedAt    time.Time      `gorm:"not null" json:"granted_at"`
}

func (r *UserReward) BeforeCreate(tx *gorm.DB) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	return nil
}
