package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// respond renders the uniform lifecycle envelope.
func respond(c *fiber.Ctx, status int, message string, data any) error {
	body := fiber.Map{
		"success": status < 400,
		"status":  status,
		"message": message,
	}
	if data != nil {
		body["data"] = data
	}
	return c.Status(status).JSON(body)
}
