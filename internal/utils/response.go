package utils

import (
	"time"

	"github.com/gofiber/fiber/v2"
)

// SuccessResponse sends a standard success response
func SuccessResponse(c *fiber.Ctx, data interface{}, status int) error {
	return c.Status(status).JSON(data)
}

// ErrorResponse sends a standard error response
func ErrorResponse(c *fiber.Ctx, message string, status int, errorType string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":    status,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      errorType,
	})
}

// VersionErrorResponse sends a version conflict error (409)
func VersionErrorResponse(c *fiber.Ctx) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"status":       fiber.StatusConflict,
		"message":      "E_VERSION - Refresh and reconcile with current version and retry.",
		"ok":           false,
		"versionError": true,
		"timestamp":    time.Now().UTC().Format(time.RFC3339),
		"url":          c.OriginalURL(),
		"type":         "version",
	})
}

// DuplicateErrorResponse sends a duplicate constraint error (409)
func DuplicateErrorResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusConflict).JSON(fiber.Map{
		"status":    fiber.StatusConflict,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
		"type":      "duplicate",
	})
}

// NotFoundResponse sends a 404 not found response
func NotFoundResponse(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"status":    fiber.StatusNotFound,
		"message":   message,
		"ok":        false,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"url":       c.OriginalURL(),
	})
}

// SaveSuccessResponse sends a success response for save/rollback mutations.
// Degraded saves (cache-only persistence) still report ok with a warning.
func SaveSuccessResponse(c *fiber.Ctx, payload interface{}, versionNumber uint64, degraded bool, warning string) error {
	body := fiber.Map{
		"message":       "Success",
		"ok":            true,
		"payload":       payload,
		"versionNumber": versionNumber,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	if degraded {
		body["degraded"] = true
	}
	if warning != "" {
		body["warning"] = warning
	}
	return c.Status(fiber.StatusOK).JSON(body)
}

// ErrorResponseStruct defines the schema for error responses
type ErrorResponseStruct struct {
	Status       int    `json:"status"`
	Message      string `json:"message"`
	Ok           bool   `json:"ok"`
	Timestamp    string `json:"timestamp"`
	URL          string `json:"url"`
	Type         string `json:"type,omitempty"`
	VersionError bool   `json:"versionError,omitempty"`
}

// SaveResponseStruct defines the schema for save success responses
type SaveResponseStruct struct {
	Message       string      `json:"message"`
	Ok            bool        `json:"ok"`
	Payload       interface{} `json:"payload"`
	VersionNumber uint64      `json:"versionNumber"`
	Timestamp     string      `json:"timestamp"`
	Degraded      bool        `json:"degraded,omitempty"`
	Warning       string      `json:"warning,omitempty"`
}
