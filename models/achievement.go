package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Rarity string

const (
	RarityCommon    Rarity = "COMMON"
	RarityRare      Rarity = "RARE"
	RarityEpic      Rarity = "EPIC"
	RarityLegendary Rarity = "LEGENDARY"
)

// Achievement is catalog data. System achievements (points_1000, level_12, ...)
// are created on demand the first time someone earns them.
type Achievement struct {
	ID            string            `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Slug          string            `gorm:"type:varchar(128);index" json:"slug"`
	Name          string            `gorm:"not null" json:"name"`
	Description   string            `json:"description"`
	Category      string            `gorm:"type:varchar(32);index" json:"category"`
	Rarity        Rarity            `gorm:"type:varchar(16);default:'COMMON'" json:"rarity"`
	PointsAwarded int64             `gorm:"not null;default:0" json:"points_awarded"`
	Criteria      datatypes.JSONMap `json:"criteria"` // e.g. {"dimension": "lessons", "threshold": 25}
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt     time.Time         `gorm:"autoCreateTime" json:"created_at"`
}

// UserAchievement: presence of the row is the grant.
type UserAchievement struct {
	ID            string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string            `gorm:"not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	AchievementID string            `gorm:"not null;type:varchar(64);uniqueIndex:idx_user_achievement,priority:2" json:"achievement_id"`
	UnlockedAt    time.Time         `gorm:"not null" json:"unlocked_at"`
	Metadata      datatypes.JSONMap `json:"metadata,omitempty"` // e.g. {"eventType": "LESSON_COMPLETED"}
}

func (a *UserAchievement) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
