package handlers

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/civicwatch/internal/service"
	"github.com/jjenkins/civicwatch/internal/store"
)

// refreshRequest is the body of POST /api/refresh.
type refreshRequest struct {
	Scope     string `json:"scope"`
	SessionID string `json:"sessionID"`
}

// RefreshHandler admits or rejects a guest refresh request. Busy rejections
// answer 503, session cooldowns 429; an admitted request answers 202
// immediately, before any connector has run.
func RefreshHandler(jobs *service.JobManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		var req refreshRequest
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid request body",
				})
			}
		}

		receipt, err := jobs.RequestRefresh(ctx, req.Scope, req.SessionID)
		if err != nil {
			var cooldown *service.CooldownError
			switch {
			case errors.Is(err, service.ErrSystemBusy):
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
					"error": err.Error(),
				})
			case errors.As(err, &cooldown):
				return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
					"error":        cooldown.Error(),
					"retryAfterMs": cooldown.RetryAfter.Milliseconds(),
				})
			default:
				return internalError(c, "refresh request", err)
			}
		}

		return c.Status(fiber.StatusAccepted).JSON(receipt)
	}
}

// JobStatusHandler returns one guest job row so pollers can watch progress.
func JobStatusHandler(jobStore *store.JobStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		job, err := jobStore.GetByID(ctx, c.Params("id"))
		if err != nil {
			return internalError(c, "job lookup", err)
		}
		if job == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "job not found",
			})
		}

		resp := fiber.Map{
			"jobId":               job.ID,
			"scope":               job.Scope,
			"status":              job.Status,
			"estimatedDurationMs": job.EstimatedDurationMs,
			"progressMessage":     job.ProgressMessage,
			"startedAt":           job.StartedAt,
		}
		if job.CompletedAt.Valid {
			resp["completedAt"] = job.CompletedAt.Time
		}

		return c.JSON(resp)
	}
}
