package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gamification-engine/logger"
	"gamification-engine/models"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Reason codes written by the engine itself.
const (
	ReasonAchievement = "ACHIEVEMENT"
	ReasonAutoReward  = "AUTO_REWARD"
	ReasonAdminGrant  = "ADMIN_GRANT"
)

// LevelUpGranter is notified after a committed award moved a user from one
// level to a higher one.
type LevelUpGranter interface {
	GrantLevelUps(ctx context.Context, userID string, fromLevel, toLevel int) ([]GrantedAchievement, error)
}

type AwardRequest struct {
	UserID         string
	Points         int64
	ReasonCode     string
	Description    string
	EventType      string
	IdempotencyKey string
	Kind           models.TransactionKind // defaults to EARNED
	Metadata       map[string]interface{}
}

type AwardResult struct {
	TransactionID string `json:"transaction_id,omitempty"`
	PointsAwarded int64  `json:"points_awarded"`
	// Multiplier is reserved for bonus-multiplier rewards and is always 1.
	Multiplier    int64                `json:"multiplier"`
	TotalPoints   int64                `json:"total_points"`
	PreviousLevel int                  `json:"previous_level"`
	Level         int                  `json:"level"`
	LeveledUp     bool                 `json:"leveled_up"`
	Replayed      bool                 `json:"replayed"`
	LevelUps      []GrantedAchievement `json:"level_ups,omitempty"`
}

type PointsLedger struct {
	DB       *gorm.DB
	log      *logger.Logger
	levelUps LevelUpGranter
}

func NewPointsLedger(db *gorm.DB, baseLog *logger.Logger) *PointsLedger {
	return &PointsLedger{DB: db, log: baseLog.With("service", "PointsLedger")}
}

// SetLevelUpGranter wires the achievement evaluator in after construction;
// the two depend on each other.
func (s *PointsLedger) SetLevelUpGranter(g LevelUpGranter) {
	s.levelUps = g
}

// AwardPoints appends a ledger line and atomically bumps the user's balance.
// A repeated IdempotencyKey is a no-op that reports the first grant.
func (s *PointsLedger) AwardPoints(ctx context.Context, req AwardRequest) (*AwardResult, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.ReasonCode = strings.TrimSpace(req.ReasonCode)
	if req.UserID == "" {
		return nil, validationErr("userId is required")
	}
	if req.ReasonCode == "" {
		return nil, validationErr("reasonCode is required")
	}
	if req.Points < 0 {
		return nil, validationErr("points must be non-negative, got %d", req.Points)
	}
	if req.Points == 0 {
		return &AwardResult{Multiplier: 1}, nil
	}
	if req.Kind == "" {
		req.Kind = models.TransactionEarned
	}

	multiplier := s.multiplierFor()
	granted := req.Points * multiplier

	var result AwardResult
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if req.IdempotencyKey != "" {
			prev, found, err := findByKey(tx, req.UserID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			if found {
				result = replayResult(prev)
				return nil
			}
		}

		line := models.PointTransaction{
			UserID:      req.UserID,
			Kind:        req.Kind,
			Points:      granted,
			ReasonCode:  req.ReasonCode,
			Description: req.Description,
			EventType:   req.EventType,
			Multiplier:  multiplier,
			Metadata:    transactionMetadata(req, multiplier),
		}
		if req.IdempotencyKey != "" {
			key := req.IdempotencyKey
			line.IdempotencyKey = &key
		}
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&line)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			// Lost the race for this key to a concurrent award.
			prev, _, err := findByKey(tx, req.UserID, req.IdempotencyKey)
			if err != nil {
				return err
			}
			result = replayResult(prev)
			return nil
		}

		seed := models.UserPoints{
			UserID:            req.UserID,
			CurrentLevel:      1,
			PointsToNextLevel: PointsToNextLevel(0),
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).Create(&seed).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.UserPoints{}).
			Where("user_id = ?", req.UserID).
			Update("total_points", gorm.Expr("total_points + ?", granted)).Error; err != nil {
			return err
		}

		var balance models.UserPoints
		if err := tx.Where("user_id = ?", req.UserID).First(&balance).Error; err != nil {
			return err
		}

		newLevel := LevelForPoints(balance.TotalPoints)
		if err := tx.Model(&models.UserPoints{}).
			Where("user_id = ?", req.UserID).
			Updates(map[string]interface{}{
				"current_level":        newLevel,
				"points_to_next_level": PointsToNextLevel(balance.TotalPoints),
			}).Error; err != nil {
			return err
		}

		result = AwardResult{
			TransactionID: line.ID,
			PointsAwarded: granted,
			Multiplier:    multiplier,
			TotalPoints:   balance.TotalPoints,
			PreviousLevel: LevelForPoints(balance.TotalPoints - granted),
			Level:         newLevel,
		}
		result.LeveledUp = result.Level > result.PreviousLevel
		return nil
	})
	if err != nil {
		s.log.Error("Failed to award points", "user_id", req.UserID, "reason", req.ReasonCode, "error", err)
		return nil, persistenceErr("award points", err)
	}

	if result.Replayed {
		s.log.Debug("Duplicate award ignored", "user_id", req.UserID, "idempotency_key", req.IdempotencyKey)
		if balance, err := s.Balance(ctx, req.UserID); err == nil {
			result.TotalPoints = balance.TotalPoints
			result.Level = balance.CurrentLevel
			result.PreviousLevel = balance.CurrentLevel
		}
		return &result, nil
	}

	s.log.Info("Points awarded",
		"user_id", req.UserID,
		"points", result.PointsAwarded,
		"total", result.TotalPoints,
		"level", result.Level,
		"reason", req.ReasonCode,
	)

	if result.LeveledUp && s.levelUps != nil {
		badges, err := s.levelUps.GrantLevelUps(ctx, req.UserID, result.PreviousLevel, result.Level)
		result.LevelUps = badges
		if err != nil {
			// The points are committed; a later evaluation backfills the badges.
			s.log.Warn("Level-up grant failed", "user_id", req.UserID, "level", result.Level, "error", err)
		}
	}
	return &result, nil
}

// multiplierFor is where premium multiplier rewards will plug in.
func (s *PointsLedger) multiplierFor() int64 {
	return 1
}

// Balance returns the user's balance row, or a level-1 zero balance if the
// user has never been awarded anything.
func (s *PointsLedger) Balance(ctx context.Context, userID string) (*models.UserPoints, error) {
	var up models.UserPoints
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&up).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserPoints{
			UserID:            userID,
			CurrentLevel:      1,
			PointsToNextLevel: PointsToNextLevel(0),
		}, nil
	}
	if err != nil {
		return nil, persistenceErr("load balance", err)
	}
	return &up, nil
}

// SumSince totals the user's ledger lines created at or after since.
func (s *PointsLedger) SumSince(ctx context.Context, userID string, since time.Time) (int64, error) {
	var total int64
	err := s.DB.WithContext(ctx).
		Model(&models.PointTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where("user_id = ? AND created_at >= ?", userID, since.UTC()).
		Scan(&total).Error
	if err != nil {
		return 0, persistenceErr("sum ledger", err)
	}
	return total, nil
}

// Drift is a user whose balance no longer matches their ledger.
type Drift struct {
	UserID      string `json:"user_id"`
	TotalPoints int64  `json:"total_points"`
	LedgerSum   int64  `json:"ledger_sum"`
}

// FindDrift lists every user violating SUM(points) == total_points.
func (s *PointsLedger) FindDrift(ctx context.Context) ([]Drift, error) {
	var rows []Drift
	err := s.DB.WithContext(ctx).Raw(`
		SELECT up.user_id AS user_id, up.total_points AS total_points, COALESCE(SUM(pt.points), 0) AS ledger_sum
		FROM user_points up
		LEFT JOIN point_transactions pt ON pt.user_id = up.user_id
		GROUP BY up.user_id, up.total_points
		HAVING up.total_points <> COALESCE(SUM(pt.points), 0)
	`).Scan(&rows).Error
	if err != nil {
		return nil, persistenceErr("find drift", err)
	}
	return rows, nil
}

// TransactionsBetween returns ledger lines in [from, to), oldest first.
func (s *PointsLedger) TransactionsBetween(ctx context.Context, from, to time.Time) ([]models.PointTransaction, error) {
	var lines []models.PointTransaction
	err := s.DB.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from.UTC(), to.UTC()).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, persistenceErr("list transactions", err)
	}
	return lines, nil
}

func findByKey(tx *gorm.DB, userID, key string) (*models.PointTransaction, bool, error) {
	var prev models.PointTransaction
	err := tx.Where("user_id = ? AND idempotency_key = ?", userID, key).First(&prev).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &prev, true, nil
}

func replayResult(prev *models.PointTransaction) AwardResult {
	if prev == nil {
		return AwardResult{Multiplier: 1, Replayed: true}
	}
	return AwardResult{
		TransactionID: prev.ID,
		PointsAwarded: prev.Points,
		Multiplier:    prev.Multiplier,
		Replayed:      true,
	}
}

func transactionMetadata(req AwardRequest, multiplier int64) datatypes.JSONMap {
	meta := datatypes.JSONMap{}
	for k, v := range req.Metadata {
		meta[k] = v
	}
	meta["eventType"] = req.EventType
	meta["multiplier"] = multiplier
	if req.IdempotencyKey != "" {
		meta["uniqueKey"] = req.IdempotencyKey
	}
	return meta
}
