package services

import (
	"context"
	"errors"
	"strings"

	"gamification-engine/logger"
	"gamification-engine/models"
)

// Event is one user activity reported by an upstream service.
type Event struct {
	UserID         string                 `json:"user_id"`
	EventType      string                 `json:"event_type"`
	Points         int64                  `json:"points"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

type Stage string

const (
	StageJournal      Stage = "journal"
	StagePoints       Stage = "points"
	StageStreak       Stage = "streak"
	StageAchievements Stage = "achievements"
	StageLeaderboard  Stage = "leaderboard"
	StageRewards      Stage = "rewards"
)

type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageFailed  StageStatus = "failed"
	StageSkipped StageStatus = "skipped"
)

type StageResult struct {
	Stage     Stage       `json:"stage"`
	Status    StageStatus `json:"status"`
	ErrorKind ErrorKind   `json:"error_kind,omitempty"`
	Error     string      `json:"error,omitempty"`
}

type ProcessResult struct {
	Success      bool                 `json:"success"`
	Duplicate    bool                 `json:"duplicate"`
	FailedStages []Stage              `json:"failed_stages,omitempty"`
	Stages       []StageResult        `json:"stages"`
	Award        *AwardResult         `json:"award,omitempty"`
	Streak       *StreakState         `json:"streak,omitempty"`
	Achievements []GrantedAchievement `json:"achievements,omitempty"`
	Rewards      []IssuedReward       `json:"rewards,omitempty"`
}

func (r *ProcessResult) record(stage Stage, err error) {
	sr := StageResult{Stage: stage, Status: StageOK}
	if err != nil {
		sr.Status = StageFailed
		sr.ErrorKind = ErrorKindOf(err)
		sr.Error = err.Error()
		r.FailedStages = append(r.FailedStages, stage)
	}
	r.Stages = append(r.Stages, sr)
}

func (r *ProcessResult) skip(stage Stage) {
	r.Stages = append(r.Stages, StageResult{Stage: stage, Status: StageSkipped})
}

type EventProcessor struct {
	log          *logger.Logger
	journal      *ActivityJournal
	ledger       *PointsLedger
	streaks      *StreakTracker
	achievements *AchievementEvaluator
	leaderboard  *LeaderboardMaintainer
	rewards      *RewardService
}

func NewEventProcessor(
	journal *ActivityJournal,
	ledger *PointsLedger,
	streaks *StreakTracker,
	achievements *AchievementEvaluator,
	leaderboard *LeaderboardMaintainer,
	rewards *RewardService,
	baseLog *logger.Logger,
) *EventProcessor {
	return &EventProcessor{
		log:          baseLog.With("service", "EventProcessor"),
		journal:      journal,
		ledger:       ledger,
		streaks:      streaks,
		achievements: achievements,
		leaderboard:  leaderboard,
		rewards:      rewards,
	}
}

// StreakTypeFor maps an event type onto the streak it feeds.
func StreakTypeFor(eventType string) string {
	if eventType == models.EventDailyLogin {
		return "LOGIN"
	}
	return eventType
}

// ProcessEvent runs every stage for the event in order. Stages commit on
// their own; a failing stage is reported and the rest still run. The only
// error returned is ErrValidation, before anything is written. A redelivered
// event skips the streak stage, since it carries no new activity day.
func (p *EventProcessor) ProcessEvent(ctx context.Context, ev Event) (*ProcessResult, error) {
	ev.UserID = strings.TrimSpace(ev.UserID)
	ev.EventType = strings.TrimSpace(ev.EventType)
	ev.IdempotencyKey = strings.TrimSpace(ev.IdempotencyKey)
	if ev.UserID == "" {
		return nil, validationErr("userId is required")
	}
	if ev.EventType == "" {
		return nil, validationErr("eventType is required")
	}
	if ev.Points < 0 {
		return nil, validationErr("points must be non-negative, got %d", ev.Points)
	}

	log := p.log.With("user_id", ev.UserID, "event_type", ev.EventType)
	result := &ProcessResult{}

	fresh, err := p.journal.Record(ctx, ev)
	result.Duplicate = err == nil && !fresh
	result.record(StageJournal, err)

	award := AwardRequest{
		UserID:      ev.UserID,
		Points:      ev.Points,
		ReasonCode:  ev.EventType,
		Description: ev.EventType,
		EventType:   ev.EventType,
		Metadata:    ev.Metadata,
	}
	if ev.IdempotencyKey != "" {
		award.IdempotencyKey = "event:" + ev.IdempotencyKey
	}
	result.Award, err = p.ledger.AwardPoints(ctx, award)
	result.record(StagePoints, err)

	if result.Duplicate {
		result.skip(StageStreak)
	} else {
		result.Streak, err = p.streaks.RecordActivity(ctx, ev.UserID, StreakTypeFor(ev.EventType))
		result.record(StageStreak, err)
	}

	result.Achievements, err = p.achievements.EvaluateAndGrant(ctx, ev.UserID, ev.EventType, ev.Metadata)
	result.record(StageAchievements, err)

	err = p.leaderboard.RefreshPoints(ctx, ev.UserID)
	result.record(StageLeaderboard, err)

	result.Rewards, err = p.rewards.IssueAutomaticRewards(ctx, ev.UserID)
	if len(result.Rewards) > 0 {
		// Milestone bonuses land after the leaderboard stage has run.
		err = errors.Join(err, p.leaderboard.RefreshPoints(ctx, ev.UserID))
	}
	result.record(StageRewards, err)

	result.Success = len(result.FailedStages) == 0
	if !result.Success {
		log.Warn("Event processed with failures", "failed_stages", result.FailedStages)
	} else {
		log.Debug("Event processed", "duplicate", result.Duplicate)
	}
	return result, nil
}
