package handlers

import (
	"gamification-engine/logger"
	"gamification-engine/middleware"
	"gamification-engine/models"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

// ProgressServices are the read and grant paths behind the /s/ routes.
type ProgressServices struct {
	Ledger       *services.PointsLedger
	Streaks      *services.StreakTracker
	Achievements *services.AchievementEvaluator
	Rewards      *services.RewardService
}

func SetupProgressionRoutes(app fiber.Router, svc ProgressServices, baseLog *logger.Logger) {
	log := baseLog.With("handler", "progression")

	// The gateway forwards /api/v1/game/s/user/progress -> /s/user/progress
	secured := app.Group("/s", middleware.UserContextMiddleware(baseLog))

	secured.Get("/user/progress", func(c *fiber.Ctx) error {
		userID := middleware.UserID(c)
		ctx := c.UserContext()

		balance, err := svc.Ledger.Balance(ctx, userID)
		if err != nil {
			return errorResponse(c, err)
		}
		streaks, err := svc.Streaks.ForUser(ctx, userID)
		if err != nil {
			return errorResponse(c, err)
		}
		achievements, err := svc.Achievements.ForUser(ctx, userID)
		if err != nil {
			return errorResponse(c, err)
		}
		rewards, err := svc.Rewards.ForUser(ctx, userID)
		if err != nil {
			return errorResponse(c, err)
		}

		return c.JSON(fiber.Map{
			"user_id":              userID,
			"total_points":         balance.TotalPoints,
			"level":                balance.CurrentLevel,
			"points_to_next_level": balance.PointsToNextLevel,
			"streaks":              streaks,
			"achievements":         achievements,
			"rewards":              rewards,
		})
	})

	admin := secured.Group("/admin", middleware.RequireRole("admin"))

	admin.Post("/points/grant", func(c *fiber.Ctx) error {
		type Req struct {
			UserID         string `json:"user_id"`
			Points         int64  `json:"points"`
			Reason         string `json:"reason"`
			IdempotencyKey string `json:"idempotency_key"`
		}
		var req Req
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		res, err := svc.Ledger.AwardPoints(c.UserContext(), services.AwardRequest{
			UserID:         req.UserID,
			Points:         req.Points,
			ReasonCode:     services.ReasonAdminGrant,
			Description:    req.Reason,
			IdempotencyKey: req.IdempotencyKey,
			Kind:           models.TransactionAdjusted,
			Metadata:       map[string]interface{}{"grantedBy": middleware.UserID(c)},
		})
		if err != nil {
			return errorResponse(c, err)
		}

		log.Info("Admin points grant", "admin_id", middleware.UserID(c), "user_id", req.UserID, "points", req.Points)
		return c.JSON(fiber.Map{
			"message": "points granted",
			"result":  res,
		})
	})
}
