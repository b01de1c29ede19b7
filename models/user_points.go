package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserPoints is the rolling balance for a user (denormalized from the ledger).
type UserPoints struct {
	ID     string `gorm:"primaryKey;type:uuid" json:"id"`
	UserID string `gorm:"uniqueIndex;not null" json:"user_id"` // external user id

	TotalPoints       int64 `json:"total_points" gorm:"not null;default:0"`
	CurrentLevel      int   `json:"current_level" gorm:"not null;default:1"`
	PointsToNextLevel int64 `json:"points_to_next_level" gorm:"not null;default:0"`

	Timestamps
}

func (p *UserPoints) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	return nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type TransactionKind string

const (
	TransactionEarned   TransactionKind = "EARNED"
	TransactionSpent    TransactionKind = "SPENT"
	TransactionAdjusted TransactionKind = "ADJUSTED"
)

// PointTransaction is one immutable ledger line. The sum of Points per user
// always equals UserPoints.TotalPoints.
type PointTransaction struct {
	ID             string            `gorm:"primaryKey;type:uuid" json:"id"`
	UserID         string            `gorm:"not null;index;uniqueIndex:idx_point_tx_user_key,priority:1" json:"user_id"`
	Kind           TransactionKind   `gorm:"type:varchar(16);not null" json:"kind"`
	Points         int64             `gorm:"not null" json:"points"`
	ReasonCode     string            `gorm:"type:varchar(64);not null;index" json:"reason_code"`
	Description    string            `json:"description"`
	EventType      string            `gorm:"type:varchar(64)" json:"event_type,omitempty"`
	IdempotencyKey *string           `gorm:"uniqueIndex:idx_point_tx_user_key,priority:2" json:"idempotency_key,omitempty"`
	Multiplier     int64             `gorm:"not null;default:1" json:"multiplier"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}

func (t *PointTransaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	return nil
}
