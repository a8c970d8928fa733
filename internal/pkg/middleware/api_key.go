package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"

	"github.com/mywallet/mywallet/internal/pkg/usercontext"
)

// APIKeyAuthMiddleware protects internal routes with a shared key sent in the
// X-API-Key header or as a bearer token. An empty key disables the check.
func APIKeyAuthMiddleware(key string) fiber.Handler {
	key = strings.TrimSpace(key)
	if key == "" {
		log.Warn("[Auth] INTERNAL_API_KEY not set, internal API is not key protected")
		return func(c *fiber.Ctx) error { return c.Next() }
	}

	return func(c *fiber.Ctx) error {
		provided := extractAPIKeyFromHeader(c)
		if provided == "" {
			return unauthorized(c, "Missing API key")
		}
		if subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			return unauthorized(c, "Invalid API key")
		}
		return c.Next()
	}
}

func extractAPIKeyFromHeader(c *fiber.Ctx) string {
	if v := strings.TrimSpace(c.Get(usercontext.HeaderAPIKey)); v != "" {
		return v
	}
	auth := strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return ""
}
