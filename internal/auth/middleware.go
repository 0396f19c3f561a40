package auth

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// Middleware validates the access token from the cookie or the Authorization
// header and stores the identity in request locals.
func Middleware(m *JWTManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		token := c.Cookies("access_token")
		if token == "" {
			header := c.Get("Authorization")
			if strings.HasPrefix(header, "Bearer ") {
				token = strings.TrimPrefix(header, "Bearer ")
			}
		}
		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "missing access token"})
		}

		claims, err := m.ValidateAccessToken(token)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "invalid access token"})
		}

		c.Locals("userID", claims.UserID)
		c.Locals("nickname", claims.Nickname)
		return c.Next()
	}
}
