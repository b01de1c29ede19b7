package middleware

import (
	"strings"

	"gamification-engine/logger"

	"github.com/gofiber/fiber/v2"
)

const (
	LocalUserID    = "user_id"
	LocalUserRoles = "user_roles"
)

// UserContextMiddleware reads the identity the gateway forwards in
// X-User-ID / X-User-Roles. Routes under /s/ require a user.
func UserContextMiddleware(baseLog *logger.Logger) fiber.Handler {
	log := baseLog.With("middleware", "UserContext")

	return func(c *fiber.Ctx) error {
		userID := strings.TrimSpace(c.Get("X-User-ID"))
		path := c.Path()
		if strings.HasPrefix(path, "/s/") && userID == "" {
			log.Warn("X-User-ID missing on secured route", "path", path)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "missing X-User-ID, request must come through gateway with auth context",
			})
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		c.Locals(LocalUserID, userID)
		c.Locals(LocalUserRoles, roles)
		log.Debug("User context attached", "user_id", userID, "roles", roles, "path", path)
		return c.Next()
	}
}

// RequireRole rejects callers whose forwarded roles do not include role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !HasRole(c, role) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": role + " role required",
			})
		}
		return c.Next()
	}
}

func HasRole(c *fiber.Ctx, role string) bool {
	roles, _ := c.Locals(LocalUserRoles).([]string)
	for _, r := range roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

func UserID(c *fiber.Ctx) string {
	id, _ := c.Locals(LocalUserID).(string)
	return id
}
