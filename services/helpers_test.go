package services

import (
	"context"
	"testing"

	"gamification-engine/models"
	"gamification-engine/testutil"

	"gorm.io/gorm"
)

type engine struct {
	db           *gorm.DB
	journal      *ActivityJournal
	ledger       *PointsLedger
	streaks      *StreakTracker
	achievements *AchievementEvaluator
	leaderboard  *LeaderboardMaintainer
	rewards      *RewardService
	processor    *EventProcessor
}

func newEngine(t *testing.T) *engine {
	t.Helper()
	db := testutil.DB(t)
	log := testutil.Logger(t)

	e := &engine{db: db}
	e.journal = NewActivityJournal(db, log)
	e.ledger = NewPointsLedger(db, log)
	e.streaks = NewStreakTracker(db, log)
	e.achievements = NewAchievementEvaluator(db, e.ledger, e.journal, log)
	e.ledger.SetLevelUpGranter(e.achievements)
	e.leaderboard = NewLeaderboardMaintainer(db, e.ledger, log)
	e.rewards = NewRewardService(db, e.ledger, log)
	e.processor = NewEventProcessor(e.journal, e.ledger, e.streaks, e.achievements, e.leaderboard, e.rewards, log)
	return e
}

func (e *engine) total(t *testing.T, userID string) int64 {
	t.Helper()
	bal, err := e.ledger.Balance(context.Background(), userID)
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	return bal.TotalPoints
}

func (e *engine) hasAchievement(t *testing.T, userID, achievementID string) bool {
	t.Helper()
	var n int64
	if err := e.db.Model(&models.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		Count(&n).Error; err != nil {
		t.Fatalf("count achievements: %v", err)
	}
	if n > 1 {
		t.Fatalf("%s granted %d times", achievementID, n)
	}
	return n == 1
}

func (e *engine) countRows(t *testing.T, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	if err := e.db.Model(model).Where(query, args...).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
