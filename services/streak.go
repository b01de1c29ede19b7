package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gamification-engine/logger"
	"gamification-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type StreakOutcome string

const (
	StreakStarted   StreakOutcome = "started"
	StreakExtended  StreakOutcome = "extended"
	StreakReset     StreakOutcome = "reset"
	StreakUnchanged StreakOutcome = "unchanged"
)

type StreakState struct {
	Streak  models.UserStreak `json:"streak"`
	Outcome StreakOutcome     `json:"outcome"`
}

type StreakTracker struct {
	DB  *gorm.DB
	log *logger.Logger
	now func() time.Time
	// beforeWrite runs after the row is read and before it is written.
	beforeWrite func()
}

func NewStreakTracker(db *gorm.DB, baseLog *logger.Logger) *StreakTracker {
	return &StreakTracker{
		DB:  db,
		log: baseLog.With("service", "StreakTracker"),
		now: time.Now,
	}
}

// CalendarDay truncates t to midnight UTC.
func CalendarDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(CalendarDay(to).Sub(CalendarDay(from)).Hours() / 24)
}

// RecordActivity advances the (user, streakType) streak for today. Same-day
// calls are no-ops. Writes are conditional on the row not having changed since
// it was read; on a lost race the row is re-read and the step retried once.
func (s *StreakTracker) RecordActivity(ctx context.Context, userID, streakType string) (*StreakState, error) {
	userID = strings.TrimSpace(userID)
	streakType = strings.TrimSpace(streakType)
	if userID == "" || streakType == "" {
		return nil, validationErr("userId and streakType are required")
	}

	today := CalendarDay(s.now())
	for attempt := 0; attempt < 2; attempt++ {
		state, conflicted, err := s.apply(ctx, userID, streakType, today)
		if err != nil {
			return nil, persistenceErr("record streak", err)
		}
		if !conflicted {
			return state, nil
		}
		s.log.Debug("Streak changed concurrently, retrying", "user_id", userID, "streak_type", streakType, "attempt", attempt)
	}

	// Best effort: another writer got there first twice; report what is stored.
	var current models.UserStreak
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND streak_type = ?", userID, streakType).
		First(&current).Error; err != nil {
		return nil, persistenceErr("reload streak", err)
	}
	s.log.Warn("Streak update lost to concurrent writer", "user_id", userID, "streak_type", streakType)
	return &StreakState{Streak: current, Outcome: StreakUnchanged}, nil
}

func (s *StreakTracker) apply(ctx context.Context, userID, streakType string, today time.Time) (*StreakState, bool, error) {
	db := s.DB.WithContext(ctx)

	var st models.UserStreak
	err := db.Where("user_id = ? AND streak_type = ?", userID, streakType).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		st = models.UserStreak{
			UserID:           userID,
			StreakType:       streakType,
			CurrentStreak:    1,
			LongestStreak:    1,
			LastActivityDate: today,
			IsActive:         true,
		}
		s.runBeforeWrite()
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&st)
		if res.Error != nil {
			return nil, false, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, true, nil
		}
		return &StreakState{Streak: st, Outcome: StreakStarted}, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	gap := daysBetween(st.LastActivityDate, today)
	if gap <= 0 {
		return &StreakState{Streak: st, Outcome: StreakUnchanged}, false, nil
	}

	next := st
	next.LastActivityDate = today
	next.IsActive = true
	outcome := StreakReset
	if gap == 1 {
		next.CurrentStreak = st.CurrentStreak + 1
		if next.CurrentStreak > next.LongestStreak {
			next.LongestStreak = next.CurrentStreak
		}
		outcome = StreakExtended
	} else {
		next.CurrentStreak = 1
		if next.LongestStreak < 1 {
			next.LongestStreak = 1
		}
	}

	s.runBeforeWrite()
	res := db.Model(&models.UserStreak{}).
		Where("id = ? AND last_activity_date = ? AND current_streak = ?", st.ID, st.LastActivityDate, st.CurrentStreak).
		Updates(map[string]interface{}{
			"current_streak":     next.CurrentStreak,
			"longest_streak":     next.LongestStreak,
			"last_activity_date": today,
			"is_active":          true,
		})
	if res.Error != nil {
		return nil, false, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, true, nil
	}
	return &StreakState{Streak: next, Outcome: outcome}, false, nil
}

func (s *StreakTracker) runBeforeWrite() {
	if s.beforeWrite != nil {
		s.beforeWrite()
	}
}

// DeactivateLapsed closes out streaks whose last activity is before
// yesterday. Rows touched today or yesterday are never modified.
func (s *StreakTracker) DeactivateLapsed(ctx context.Context) (int64, error) {
	cutoff := CalendarDay(s.now()).AddDate(0, 0, -1)
	res := s.DB.WithContext(ctx).
		Model(&models.UserStreak{}).
		Where("is_active = ? AND last_activity_date < ?", true, cutoff).
		Updates(map[string]interface{}{
			"is_active":      false,
			"current_streak": 0,
		})
	if res.Error != nil {
		return 0, persistenceErr("deactivate lapsed streaks", res.Error)
	}
	if res.RowsAffected > 0 {
		s.log.Info("Deactivated lapsed streaks", "count", res.RowsAffected, "cutoff", cutoff.Format("2006-01-02"))
	}
	return res.RowsAffected, nil
}

// ForUser lists the user's streaks.
func (s *StreakTracker) ForUser(ctx context.Context, userID string) ([]models.UserStreak, error) {
	var streaks []models.UserStreak
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("streak_type ASC").
		Find(&streaks).Error; err != nil {
		return nil, persistenceErr("list streaks", err)
	}
	return streaks, nil
}
