package handlers

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// internalError logs the real error under a correlation ID and sends the
// client a generic message plus that ID, never the underlying detail.
func internalError(c *fiber.Ctx, context string, err error) error {
	correlationID := uuid.NewString()
	log.Printf("ERROR [%s] %s: %v", correlationID, context, err)

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error":         "internal error",
		"correlationId": correlationID,
	})
}
