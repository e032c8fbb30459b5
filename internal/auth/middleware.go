package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/spec-kit/auth-service/pkg/util"
)

const bearerTokenKey = "auth_bearer_token"

// BearerMiddleware extracts the bearer credential for protected routes.
// Verification happens in the session layer so that every rejection, missing
// header included, looks the same to the caller.
type BearerMiddleware struct{}

// NewBearerMiddleware constructs middleware.
func NewBearerMiddleware() *BearerMiddleware {
	return &BearerMiddleware{}
}

// Handle rejects requests without a well-formed Authorization header.
func (m *BearerMiddleware) Handle(c *fiber.Ctx) error {
	authHeader := c.Get(fiber.HeaderAuthorization)
	if authHeader == "" {
		return apperrors.NewUnauthorized(apperrors.MsgUnauthenticated)
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return apperrors.NewUnauthorized(apperrors.MsgUnauthenticated)
	}

	c.Locals(bearerTokenKey, strings.TrimSpace(parts[1]))
	return c.Next()
}

// BearerTokenFromContext retrieves the token stored by Handle.
func BearerTokenFromContext(c *fiber.Ctx) (string, bool) {
	val := c.Locals(bearerTokenKey)
	if val == nil {
		return "", false
	}
	token, ok := val.(string)
	return token, ok && token != ""
}
