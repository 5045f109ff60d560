// Package service implements the connector orchestration and freshness engine.
package service

import (
	"strings"

	"github.com/jjenkins/civicwatch/internal/model"
)

// trackedKinds are the data kinds refresh fan-outs and freshness checks cover.
var trackedKinds = []string{model.KindMeetings, model.KindElections, model.KindOrdinances}

// ParseScope parses a comma-separated list of kind:slug tokens into the flat,
// deduplicated list of jurisdiction slugs. The kind prefix only namespaces
// the token; matching at this layer is by slug alone. Duplicate tokens are
// harmless and empty input yields an empty list.
func ParseScope(scope string) []string {
	var slugs []string
	seen := make(map[string]bool)

	for _, token := range strings.Split(scope, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}

		slug := token
		if idx := strings.LastIndex(token, ":"); idx >= 0 {
			slug = token[idx+1:]
		}
		slug = strings.TrimSpace(slug)
		if slug == "" || seen[slug] {
			continue
		}

		seen[slug] = true
		slugs = append(slugs, slug)
	}

	return slugs
}
