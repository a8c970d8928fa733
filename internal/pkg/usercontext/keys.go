package usercontext

// Shared Locals keys and headers used across controllers and middlewares
const (
	KeyUserContext = "USER_CONTEXT"

	// Set by the upstream authentication layer.
	HeaderUserID    = "X-User-ID"
	HeaderProfileID = "X-Profile-ID"
	HeaderAPIKey    = "X-API-Key"
)
