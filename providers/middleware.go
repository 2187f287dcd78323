package providers

import (
	"strings"

	"github.com/gofiber/fiber/v3"
)

const userIDKey = "userId"

// requireAuth accepts "Authorization: Bearer <token>" or the bare token and
// stores the caller's user id in the request locals.
func (p *ChatServer) requireAuth(c fiber.Ctx) error {
	id, err := p.tokens.Verify(bearerToken(c.Get(fiber.HeaderAuthorization)))
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error":   "unauthorized",
			"message": err.Error(),
		})
	}
	c.Locals(userIDKey, id.UserID)
	return c.Next()
}

func userID(c fiber.Ctx) string {
	id, _ := c.Locals(userIDKey).(string)
	return id
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return header
}
