package handlers

import (
	"gamification-engine/logger"
	"gamification-engine/services"

	"github.com/gofiber/fiber/v2"
)

type eventRequest struct {
	UserID         string                 `json:"user_id"`
	EventType      string                 `json:"event_type"`
	Points         int64                  `json:"points"`
	IdempotencyKey string                 `json:"idempotency_key"`
	Metadata       map[string]interface{} `json:"metadata"`
}

// SetupEventRoutes exposes event intake. Upstream services post one request
// per user activity.
func SetupEventRoutes(router fiber.Router, processor *services.EventProcessor, baseLog *logger.Logger) {
	log := baseLog.With("handler", "events")

	router.Post("/events", func(c *fiber.Ctx) error {
		var req eventRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid JSON",
				"cause": err.Error(),
			})
		}

		res, err := processor.ProcessEvent(c.UserContext(), services.Event{
			UserID:         req.UserID,
			EventType:      req.EventType,
			Points:         req.Points,
			IdempotencyKey: req.IdempotencyKey,
			Metadata:       req.Metadata,
		})
		if err != nil {
			log.Warn("Event rejected", "user_id", req.UserID, "event_type", req.EventType, "error", err)
			return errorResponse(c, err)
		}
		return c.JSON(res)
	})
}

// errorResponse maps engine error kinds onto HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	if services.ErrorKindOf(err) == services.KindValidation {
		status = fiber.StatusBadRequest
	}
	return c.Status(status).JSON(fiber.Map{
		"error": err.Error(),
		"kind":  services.ErrorKindOf(err),
	})
}
