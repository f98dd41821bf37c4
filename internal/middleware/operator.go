package middleware

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/edgewallet/internal/auth"
)

const operatorLocal = "operator"

// OperatorAuth requires a bearer operator token on the wrapped routes.
// An empty secret disables the check.
func OperatorAuth(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if len(secret) == 0 {
			return c.Next()
		}
		authz := c.Get(fiber.HeaderAuthorization)
		if !strings.HasPrefix(strings.ToLower(authz), "bearer ") {
			return fiber.NewError(http.StatusUnauthorized, "missing bearer token")
		}
		claims, err := auth.VerifyOperatorToken(strings.TrimSpace(authz[len("Bearer "):]), secret, time.Now())
		if err != nil {
			if errors.Is(err, auth.ErrExpiredToken) {
				return fiber.NewError(http.StatusUnauthorized, "token expired")
			}
			return fiber.NewError(http.StatusUnauthorized, "invalid token")
		}
		c.Locals(operatorLocal, claims.Subject)
		return c.Next()
	}
}

// Operator returns the subject of the verified operator token.
func Operator(c *fiber.Ctx) string {
	sub, _ := c.Locals(operatorLocal).(string)
	return sub
}
