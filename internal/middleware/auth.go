package middleware

import (
	"crypto/subtle"
	"log"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/estatepress/sitesync/internal/types"
)

// AuthAdmin validates that the request carries the admin bearer token.
// An empty configured token disables the check (development only).
func AuthAdmin(adminToken string) fiber.Handler {
	warned := false

	return func(c *fiber.Ctx) error {
		if adminToken == "" {
			if !warned {
				log.Printf("ADMIN_TOKEN is not set; admin routes are unprotected")
				warned = true
			}
			return c.Next()
		}

		header := c.Get(fiber.HeaderAuthorization)
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
			return &types.CustomError{
				Code:    fiber.StatusForbidden,
				Message: "Admin authorization required",
				Type:    "data.authorization.admin",
			}
		}

		return c.Next()
	}
}
