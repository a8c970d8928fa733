package middleware

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	icuser "github.com/mywallet/mywallet/internal/pkg/usercontext"
)

// ProfileChecker verifies that a profile belongs to a user.
type ProfileChecker interface {
	BelongsTo(userID, profileID string) (bool, error)
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error":   "unauthorized",
		"message": message,
	})
}

// RequireUser ensures an identified caller and returns JSON 401 otherwise.
func RequireUser(c *fiber.Ctx) error {
	if !icuser.IsLoggedIn(c) {
		return unauthorized(c, "login required")
	}
	return c.Next()
}

// RequireProfile ensures an identified caller with an active profile that
// belongs to them. A nil checker only enforces presence.
func RequireProfile(profiles ProfileChecker) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := icuser.GetUserContext(c)
		if !ctx.IsLoggedIn {
			return unauthorized(c, "login required")
		}
		if ctx.ProfileID == "" {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error":   "validation_error",
				"message": "header " + icuser.HeaderProfileID + " is required",
			})
		}
		if profiles == nil {
			return c.Next()
		}

		ok, err := profiles.BelongsTo(ctx.UserID, ctx.ProfileID)
		if err != nil {
			log.Errorf("[Auth] Profile lookup failed for user %s: %v", ctx.UserID, err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error":   "internal_server_error",
				"message": "profile verification failed",
			})
		}
		if !ok {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error":   "forbidden",
				"message": "profile does not belong to user",
			})
		}
		return c.Next()
	}
}
