package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Event types produced by the surrounding platform. Unknown types are accepted.
const (
	EventLessonCompleted   = "LESSON_COMPLETED"
	EventEventParticipated = "EVENT_PARTICIPATED"
	EventDailyLogin        = "DAILY_LOGIN"
	EventProfileCompleted  = "PROFILE_COMPLETED"
	EventSocialShare       = "SOCIAL_SHARE"
)

// ActivityRecord journals every accepted event once; category counters
// (completed lessons, attended events) are counted from here.
type ActivityRecord struct {
	ID             string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string            `gorm:"not null;index:idx_activity_user_type,priority:1;uniqueIndex:idx_activity_user_key,priority:1" json:"user_id"`
	EventType      string            `gorm:"not null;type:varchar(64);index:idx_activity_user_type,priority:2" json:"event_type"`
	IdempotencyKey *string           `gorm:"uniqueIndex:idx_activity_user_key,priority:2" json:"idempotency_key,omitempty"`
	Points         int64             `gorm:"not null;default:0" json:"points"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	OccurredAt     time.Time         `gorm:"not null;index" json:"occurred_at"`
}

func (a *ActivityRecord) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
