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

type GrantedAchievement struct {
	AchievementID string        `json:"achievement_id"`
	Name          string        `json:"name"`
	Rarity        models.Rarity `json:"rarity"`
	PointsAwarded int64         `json:"points_awarded"`
	UnlockedAt    time.Time     `json:"unlocked_at"`
}

type AchievementEvaluator struct {
	DB      *gorm.DB
	log     *logger.Logger
	ledger  *PointsLedger
	journal *ActivityJournal
	now     func() time.Time
}

func NewAchievementEvaluator(db *gorm.DB, ledger *PointsLedger, journal *ActivityJournal, baseLog *logger.Logger) *AchievementEvaluator {
	return &AchievementEvaluator{
		DB:      db,
		log:     baseLog.With("service", "AchievementEvaluator"),
		ledger:  ledger,
		journal: journal,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// EvaluateAndGrant grants every achievement the user now qualifies for and
// does not yet hold. Each grant is independent; failures are joined.
func (s *AchievementEvaluator) EvaluateAndGrant(ctx context.Context, userID, eventType string, metadata map[string]interface{}) ([]GrantedAchievement, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, validationErr("userId is required")
	}

	owned, err := s.owned(ctx, userID)
	if err != nil {
		return nil, err
	}
	balance, err := s.ledger.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}

	var candidates []models.Achievement
	for _, t := range reachedThresholds(PointsThresholds, balance.TotalPoints) {
		candidates = append(candidates, catalogEntry(DimensionPoints, t))
	}
	for level := 2; level <= balance.CurrentLevel; level++ {
		candidates = append(candidates, catalogEntry(DimensionLevel, int64(level)))
	}

	var countErr error
	switch eventType {
	case models.EventLessonCompleted:
		n, err := s.journal.Count(ctx, userID, models.EventLessonCompleted)
		countErr = err
		for _, t := range reachedThresholds(LessonThresholds, n) {
			candidates = append(candidates, catalogEntry(DimensionLessons, t))
		}
	case models.EventEventParticipated:
		n, err := s.journal.Count(ctx, userID, models.EventEventParticipated)
		countErr = err
		for _, t := range reachedThresholds(EventThresholds, n) {
			candidates = append(candidates, catalogEntry(DimensionEvents, t))
		}
	}

	granted, errs := s.grantAll(ctx, userID, eventType, metadata, candidates, owned)
	if countErr != nil {
		errs = append(errs, countErr)
	}

	// Bonus points may have crossed a points threshold. Only one extra pass
	// runs; whatever its own bonuses cross is granted on the next evaluation.
	if bonusAwarded(granted) {
		if after, err := s.ledger.Balance(ctx, userID); err == nil && after.TotalPoints > balance.TotalPoints {
			var more []models.Achievement
			for _, t := range reachedThresholds(PointsThresholds, after.TotalPoints) {
				more = append(more, catalogEntry(DimensionPoints, t))
			}
			extra, extraErrs := s.grantAll(ctx, userID, eventType, metadata, more, owned)
			granted = append(granted, extra...)
			errs = append(errs, extraErrs...)
		} else if err != nil {
			errs = append(errs, err)
		}
	}

	return granted, errors.Join(errs...)
}

// GrantLevelUps grants level_N for every level in (fromLevel, toLevel].
func (s *AchievementEvaluator) GrantLevelUps(ctx context.Context, userID string, fromLevel, toLevel int) ([]GrantedAchievement, error) {
	start := fromLevel + 1
	if start < 2 {
		start = 2
	}
	var candidates []models.Achievement
	for level := start; level <= toLevel; level++ {
		candidates = append(candidates, catalogEntry(DimensionLevel, int64(level)))
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	granted, errs := s.grantAll(ctx, userID, "LEVEL_UP", nil, candidates, map[string]bool{})
	return granted, errors.Join(errs...)
}

// ForUser lists the user's unlocked achievements, newest first.
func (s *AchievementEvaluator) ForUser(ctx context.Context, userID string) ([]models.UserAchievement, error) {
	var rows []models.UserAchievement
	if err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("unlocked_at DESC").
		Find(&rows).Error; err != nil {
		return nil, persistenceErr("list achievements", err)
	}
	return rows, nil
}

func (s *AchievementEvaluator) grantAll(ctx context.Context, userID, eventType string, metadata map[string]interface{}, candidates []models.Achievement, owned map[string]bool) ([]GrantedAchievement, []error) {
	var granted []GrantedAchievement
	var errs []error
	for _, def := range candidates {
		if owned[def.ID] {
			continue
		}
		g, err := s.grant(ctx, userID, eventType, metadata, def)
		if err != nil {
			s.log.Error("Achievement grant failed", "user_id", userID, "achievement_id", def.ID, "error", err)
			errs = append(errs, err)
			continue
		}
		owned[def.ID] = true
		if g != nil {
			granted = append(granted, *g)
		}
	}
	return granted, errs
}

// grant awards the bonus (keyed, so at most once) and then records the
// unlock. A nil result with nil error means someone else already holds it.
func (s *AchievementEvaluator) grant(ctx context.Context, userID, eventType string, metadata map[string]interface{}, def models.Achievement) (*GrantedAchievement, error) {
	db := s.DB.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&def).Error; err != nil {
		return nil, persistenceErr("ensure achievement", err)
	}

	if def.PointsAwarded > 0 {
		if _, err := s.ledger.AwardPoints(ctx, AwardRequest{
			UserID:         userID,
			Points:         def.PointsAwarded,
			ReasonCode:     ReasonAchievement,
			Description:    "Achievement unlocked: " + def.Name,
			EventType:      eventType,
			IdempotencyKey: "achievement:" + def.ID,
			Metadata:       map[string]interface{}{"achievementId": def.ID},
		}); err != nil {
			return nil, err
		}
	}

	unlock := models.UserAchievement{
		UserID:        userID,
		AchievementID: def.ID,
		UnlockedAt:    s.now(),
		Metadata:      map[string]interface{}{"eventType": eventType},
	}
	for k, v := range metadata {
		if _, taken := unlock.Metadata[k]; !taken {
			unlock.Metadata[k] = v
		}
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&unlock)
	if res.Error != nil {
		return nil, persistenceErr("grant achievement", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}

	s.log.Info("Achievement unlocked", "user_id", userID, "achievement_id", def.ID, "points", def.PointsAwarded)
	return &GrantedAchievement{
		AchievementID: def.ID,
		Name:          def.Name,
		Rarity:        def.Rarity,
		PointsAwarded: def.PointsAwarded,
		UnlockedAt:    unlock.UnlockedAt,
	}, nil
}

func (s *AchievementEvaluator) owned(ctx context.Context, userID string) (map[string]bool, error) {
	var ids []string
	if err := s.DB.WithContext(ctx).
		Model(&models.UserAchievement{}).
		Where("user_id = ?", userID).
		Pluck("achievement_id", &ids).Error; err != nil {
		return nil, persistenceErr("load achievements", err)
	}
	owned := make(map[string]bool, len(ids))
	for _, id := range ids {
		owned[id] = true
	}
	return owned, nil
}

func bonusAwarded(granted []GrantedAchievement) bool {
	for _, g := range granted {
		if g.PointsAwarded > 0 {
			return true
		}
	}
	return false
}
