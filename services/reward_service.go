package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gamification-engine/logger"
	"gamification-engine/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RewardMilestones are the point totals that unlock an automatic bonus.
var RewardMilestones = []int64{1000, 5000, 10000, 25000, 50000}

type IssuedReward struct {
	MilestoneKey string `json:"milestone_key"`
	Threshold    int64  `json:"threshold"`
	Points       int64  `json:"points"`
}

type RewardService struct {
	DB     *gorm.DB
	log    *logger.Logger
	ledger *PointsLedger
	now    func() time.Time
}

func NewRewardService(db *gorm.DB, ledger *PointsLedger, baseLog *logger.Logger) *RewardService {
	return &RewardService{
		DB:     db,
		log:    baseLog.With("service", "RewardService"),
		ledger: ledger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func milestoneKey(threshold int64) string {
	return fmt.Sprintf("points_%d", threshold)
}

// milestoneBonus is 10% of the milestone, rounded down.
func milestoneBonus(threshold int64) int64 {
	return threshold / 10
}

// IssueAutomaticRewards grants the bonus for every milestone the user has
// reached and not yet claimed. Safe to call any number of times.
func (s *RewardService) IssueAutomaticRewards(ctx context.Context, userID string) ([]IssuedReward, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationErr("userId is required")
	}

	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	claimed, err := s.claimed(ctx, userID)
	if err != nil {
		return nil, err
	}

	running := balance.TotalPoints
	var issued []IssuedReward
	for _, m := range RewardMilestones {
		if running < m {
			break
		}
		key := milestoneKey(m)
		if claimed[key] {
			continue
		}

		bonus := milestoneBonus(m)
		res, err := s.ledger.AwardPoints(ctx, AwardRequest{
			UserID:         userID,
			Points:         bonus,
			ReasonCode:     ReasonAutoReward,
			Description:    fmt.Sprintf("Milestone bonus for reaching %d points", m),
			IdempotencyKey: fmt.Sprintf("auto_reward:%d", m),
			Metadata:       map[string]interface{}{"milestone": m},
		})
		if err != nil {
			return issued, err
		}
		if res.TotalPoints > running {
			running = res.TotalPoints
		}

		marker := models.UserReward{
			UserID:       userID,
			MilestoneKey: key,
			Category:     models.RewardCategoryMilestone,
			Title:        fmt.Sprintf("%d points milestone", m),
			Threshold:    m,
			Points:       bonus,
			GrantedAt:    s.now(),
		}
		ins := s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&marker)
		if ins.Error != nil {
			return issued, persistenceErr("mark milestone", ins.Error)
		}
		if ins.RowsAffected == 0 {
			continue
		}

		s.log.Info("Milestone reward issued", "user_id", userID, "milestone", m, "bonus", bonus)
		issued = append(issued, IssuedReward{MilestoneKey: key, Threshold: m, Points: bonus})
	}
	return issued, nil
}

// ForUser lists the user's claimed milestones.
func (s *RewardService) ForUser(ctx context.Context, userID string) ([]models.UserReward, error) {
	var rows []models.UserReward
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("threshold ASC").
		Find(&rows).Error; err != nil {
		return nil, persistenceErr("list rewards", err)
	}
	return rows, nil
}

func (s *RewardService) claimed(ctx context.Context, userID string) (map[string]bool, error) {
	var keys []string
	if err := s.DB.WithContext(ctx).
		Model(&models.UserReward{}).
		Where("user_id = ?", userID).
		Pluck("milestone_key", &keys).Error; err != nil {
		return nil, persistenceErr("load rewards", err)
	}
	out := make(map[string]bool, len(keys))
	for _, k := range keys {
		out[k] = true
	}
	return out, nil
}
