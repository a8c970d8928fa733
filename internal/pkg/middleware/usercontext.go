package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/mywallet/mywallet/internal/pkg/usercontext"
)

// UserContextMiddleware reads the identity forwarded by the authentication
// layer and stores it on the request. Requests without one stay anonymous.
func UserContextMiddleware(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Get(usercontext.HeaderUserID))
	profileID := strings.TrimSpace(c.Get(usercontext.HeaderProfileID))

	usercontext.SetUserContext(c, usercontext.UserContext{
		UserID:     userID,
		ProfileID:  profileID,
		IsLoggedIn: userID != "",
	})
	return c.Next()
}
