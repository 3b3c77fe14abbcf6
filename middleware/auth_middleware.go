package middleware

import (
	"strings"

	config "github.com/anjiri1684/marketplace_booking/configs"
	"github.com/gofiber/fiber/v2"
	jwtware "github.com/gofiber/jwt/v3"
	"github.com/golang-jwt/jwt/v4"
)

func Protected() fiber.Handler {
	return jwtware.New(jwtware.Config{
		SigningKey:   []byte(config.Config("JWT_SECRET")),
		ErrorHandler: jwtError,
	})
}

func jwtError(c *fiber.Ctx, err error) error {
	// jwtware has spelled this message with both capitalisations.
	if strings.EqualFold(err.Error(), "Missing or malformed JWT") {
		return c.Status(fiber.StatusBadRequest).
			JSON(fiber.Map{"status": "error", "message": "Missing or malformed JWT", "data": nil})
	}
	return c.Status(fiber.StatusUnauthorized).
		JSON(fiber.Map{"status": "error", "message": "Invalid or expired JWT", "data": nil})
}

// RoleRequired lets the request through when the token's role claim is one
// of roles. It must run after Protected.
func RoleRequired(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := roleOf(c)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
			"error": "Forbidden: " + roles[0] + " access required",
		})
	}
}

func CustomerRequired() fiber.Handler {
	return RoleRequired("customer")
}

func PerformerRequired() fiber.Handler {
	return RoleRequired("performer")
}

func AdminRequired() fiber.Handler {
	return RoleRequired("admin")
}

func roleOf(c *fiber.Ctx) string {
	token, ok := c.Locals("user").(*jwt.Token)
	if !ok {
		return ""
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ""
	}
	role, _ := claims["role"].(string)
	return role
}
