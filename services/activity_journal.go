package services

import (
	"context"
	"time"

	"gamification-engine/logger"
	"gamification-engine/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ActivityJournal records accepted events once per idempotency key and
// answers the per-category counts used by achievement rules.
type ActivityJournal struct {
	DB  *gorm.DB
	log *logger.Logger
	now func() time.Time
}

func NewActivityJournal(db *gorm.DB, baseLog *logger.Logger) *ActivityJournal {
	return &ActivityJournal{
		DB:  db,
		log: baseLog.With("service", "ActivityJournal"),
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Record journals the event. It returns false when the idempotency key was
// already journaled for this user.
func (s *ActivityJournal) Record(ctx context.Context, ev Event) (bool, error) {
	rec := models.ActivityRecord{
		UserID:     ev.UserID,
		EventType:  ev.EventType,
		Points:     ev.Points,
		Metadata:   datatypes.JSONMap(ev.Metadata),
		OccurredAt: s.now(),
	}
	if ev.IdempotencyKey != "" {
		key := ev.IdempotencyKey
		rec.IdempotencyKey = &key
	}
	res := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec)
	if res.Error != nil {
		return false, persistenceErr("journal activity", res.Error)
	}
	if res.RowsAffected == 0 {
		s.log.Debug("Duplicate event not journaled", "user_id", ev.UserID, "idempotency_key", ev.IdempotencyKey)
		return false, nil
	}
	return true, nil
}

// Count returns how many events of eventType the user has produced.
func (s *ActivityJournal) Count(ctx context.Context, userID, eventType string) (int64, error) {
	var n int64
	err := s.DB.WithContext(ctx).
		Model(&models.ActivityRecord{}).
		Where("user_id = ? AND event_type = ?", userID, eventType).
		Count(&n).Error
	if err != nil {
		return 0, persistenceErr("count activity", err)
	}
	return n, nil
}
