package handlers

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/civicwatch/internal/service"
	"github.com/jjenkins/civicwatch/internal/store"
)

// RunScopeHandler triggers a synchronous fan-out over a scope. Transport
// status is 200 even when individual connectors failed; those failures live
// in results[].status.
func RunScopeHandler(orchestrator *service.Orchestrator) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		var req struct {
			Scope string `json:"scope"`
		}
		if len(c.Body()) > 0 {
			if err := c.BodyParser(&req); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "invalid request body",
				})
			}
		}

		result, err := orchestrator.RunScope(ctx, req.Scope)
		if err != nil {
			return internalError(c, "scope fan-out", err)
		}

		return c.JSON(result)
	}
}

// RunConnectorHandler triggers one connector run by ID.
func RunConnectorHandler(runner *service.Runner) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		var req struct {
			ConnectorID int64 `json:"connectorId"`
		}
		if err := c.BodyParser(&req); err != nil || req.ConnectorID == 0 {
			// also accept the ID as a query param for curl convenience
			id, qerr := strconv.ParseInt(c.Query("connectorId"), 10, 64)
			if qerr != nil {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
					"error": "connectorId is required",
				})
			}
			req.ConnectorID = id
		}

		result, err := runner.RunConnector(ctx, req.ConnectorID)
		if err != nil {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
				"error": err.Error(),
			})
		}

		return c.JSON(result)
	}
}

// ConnectorsHandler lists the enabled connector catalog with last outcomes.
func ConnectorsHandler(connectorStore *store.ConnectorStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		connectors, err := connectorStore.ListEnabled(ctx, nil, nil)
		if err != nil {
			return internalError(c, "connector list", err)
		}

		list := make([]fiber.Map, 0, len(connectors))
		for _, conn := range connectors {
			entry := fiber.Map{
				"id":               conn.ID,
				"key":              conn.Key,
				"jurisdictionSlug": conn.JurisdictionSlug,
				"kind":             conn.Kind,
				"parserKey":        conn.ParserKey,
				"enabled":          conn.Enabled,
			}
			if conn.LastRunAt.Valid {
				entry["lastRunAt"] = conn.LastRunAt.Time
			}
			if conn.LastStatus.Valid {
				entry["lastStatus"] = conn.LastStatus.String
			}
			list = append(list, entry)
		}

		return c.JSON(fiber.Map{"connectors": list})
	}
}

// ConnectorRunsHandler returns the recent run history for one connector,
// most recent first. A connector that has never run has no source yet and
// returns an empty list.
func ConnectorRunsHandler(connectorStore *store.ConnectorStore, runStore *store.RunStore) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		id, err := strconv.ParseInt(c.Params("id"), 10, 64)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "invalid connector id",
			})
		}

		connector, err := connectorStore.GetByID(ctx, id)
		if err != nil {
			return internalError(c, "connector lookup", err)
		}
		if connector == nil {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "connector not found",
			})
		}

		if !connector.SourceID.Valid {
			return c.JSON(fiber.Map{"runs": []fiber.Map{}})
		}

		runs, err := runStore.GetBySource(ctx, connector.SourceID.Int64, 20)
		if err != nil {
			return internalError(c, "run history", err)
		}

		list := make([]fiber.Map, 0, len(runs))
		for _, run := range runs {
			entry := fiber.Map{
				"id":        run.ID,
				"status":    run.Status,
				"stats":     run.Stats,
				"startedAt": run.StartedAt,
			}
			if run.FinishedAt.Valid {
				entry["finishedAt"] = run.FinishedAt.Time
			}
			if run.Log != "" {
				entry["log"] = run.Log
			}
			list = append(list, entry)
		}

		return c.JSON(fiber.Map{"runs": list})
	}
}
