package middleware

import (
	"github.com/gofiber/fiber/v2"
)

// ServiceVersion is reported on every API response.
const ServiceVersion = "1.0.0"

// VersionMiddleware parses the X-Api-Version request header into the request
// context and stamps the service version on the response.
func VersionMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		version := c.Get("X-Api-Version", ServiceVersion)

		// Support version aliases
		if version == "1.0" {
			version = "1.0.0"
		}

		c.Locals("apiVersion", version)
		c.Set("X-Sitesync-Version", ServiceVersion)

		return c.Next()
	}
}
