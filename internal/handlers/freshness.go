package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/jjenkins/civicwatch/internal/service"
)

// FreshnessHandler answers the live-vs-seed question for a scope. Always 200
// when the evaluation succeeds; seed is an expected state, not an error.
func FreshnessHandler(evaluator *service.Evaluator, defaultScope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := context.Background()

		scope := c.Query("scope", defaultScope)

		verdict, err := evaluator.Evaluate(ctx, scope)
		if err != nil {
			return internalError(c, "freshness evaluation", err)
		}

		return c.JSON(verdict)
	}
}

// JurisdictionsHandler expands a scope into the full descendant jurisdiction
// set, so the presentation layer can bound its own queries.
func JurisdictionsHandler(resolver *service.Resolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		slugs := service.ParseScope(c.Query("scope"))
		expanded := resolver.Expand(slugs)

		jurisdictions := make([]fiber.Map, 0, len(expanded))
		for _, j := range expanded {
			jurisdictions = append(jurisdictions, fiber.Map{
				"id":   j.ID,
				"slug": j.Slug,
				"name": j.Name,
				"type": j.Type,
			})
		}

		return c.JSON(fiber.Map{"jurisdictions": jurisdictions})
	}
}
