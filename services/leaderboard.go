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

var epoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

type LeaderboardMaintainer struct {
	DB     *gorm.DB
	log    *logger.Logger
	ledger *PointsLedger
	now    func() time.Time
}

func NewLeaderboardMaintainer(db *gorm.DB, ledger *PointsLedger, baseLog *logger.Logger) *LeaderboardMaintainer {
	return &LeaderboardMaintainer{
		DB:     db,
		log:    baseLog.With("service", "LeaderboardMaintainer"),
		ledger: ledger,
		now:    time.Now,
	}
}

// PeriodStart returns the first UTC day of the period containing t. Weeks
// start on Monday.
func PeriodStart(period models.LeaderboardPeriod, t time.Time) time.Time {
	day := CalendarDay(t)
	switch period {
	case models.PeriodWeekly:
		offset := (int(day.Weekday()) + 6) % 7
		return day.AddDate(0, 0, -offset)
	case models.PeriodMonthly:
		return time.Date(day.Year(), day.Month(), 1, 0, 0, 0, 0, time.UTC)
	default:
		return epoch
	}
}

// RefreshEntry upserts the score for one leaderboard slot. Rank is left to
// whatever projection owns it.
func (s *LeaderboardMaintainer) RefreshEntry(ctx context.Context, userID string, category models.LeaderboardCategory, period models.LeaderboardPeriod, periodStart time.Time, score int64) error {
	userID = strings.TrimSpace(userID)
	if userID == "" || category == "" || period == "" {
		return validationErr("userId, category and period are required")
	}

	entry := models.LeaderboardEntry{
		UserID:      userID,
		Category:    category,
		Period:      period,
		PeriodStart: CalendarDay(periodStart),
		Score:       score,
		UpdatedAt:   s.now().UTC(),
	}
	err := s.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "user_id"}, {Name: "category"}, {Name: "period"}, {Name: "period_start"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
	}).Create(&entry).Error
	if err != nil {
		return persistenceErr("refresh leaderboard entry", err)
	}
	return nil
}

// RefreshPoints refreshes the POINTS board for every period.
func (s *LeaderboardMaintainer) RefreshPoints(ctx context.Context, userID string) error {
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return err
	}
	now := s.now()

	var errs []error
	if err := s.RefreshEntry(ctx, userID, models.LeaderboardPoints, models.PeriodAllTime, epoch, balance.TotalPoints); err != nil {
		errs = append(errs, err)
	}
	for _, period := range []models.LeaderboardPeriod{models.PeriodWeekly, models.PeriodMonthly} {
		start := PeriodStart(period, now)
		score, err := s.ledger.SumSince(ctx, userID, start)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.RefreshEntry(ctx, userID, models.LeaderboardPoints, period, start, score); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		s.log.Warn("Leaderboard refresh incomplete", "user_id", userID, "errors", len(errs))
	}
	return errors.Join(errs...)
}
