package service

import (
	"sort"

	"github.com/jjenkins/civicwatch/internal/model"
)

// Resolver expands selected jurisdictions into their descendant sets. It
// holds the full forest in memory; the forest is seeded once and read-only,
// so the resolver is built once at startup.
type Resolver struct {
	bySlug   map[string]*model.Jurisdiction
	byID     map[int64]*model.Jurisdiction
	children map[int64][]int64
}

// NewResolver builds a resolver over the given jurisdiction forest.
func NewResolver(jurisdictions []model.Jurisdiction) *Resolver {
	r := &Resolver{
		bySlug:   make(map[string]*model.Jurisdiction, len(jurisdictions)),
		byID:     make(map[int64]*model.Jurisdiction, len(jurisdictions)),
		children: make(map[int64][]int64),
	}

	for i := range jurisdictions {
		j := &jurisdictions[i]
		r.bySlug[j.Slug] = j
		r.byID[j.ID] = j
		if j.ParentID.Valid {
			r.children[j.ParentID.Int64] = append(r.children[j.ParentID.Int64], j.ID)
		}
	}

	return r
}

// Expand resolves the selected slugs to jurisdictions plus all their
// descendants: a state pulls in its counties and their cities, a county its
// cities, a city only itself. Unknown slugs are silently skipped. The result
// is deduplicated and ordered by ID.
func (r *Resolver) Expand(selectedSlugs []string) []model.Jurisdiction {
	included := make(map[int64]bool)

	for _, slug := range selectedSlugs {
		j, ok := r.bySlug[slug]
		if !ok {
			continue
		}
		included[j.ID] = true

		switch j.Type {
		case model.JurisdictionState:
			for _, countyID := range r.children[j.ID] {
				included[countyID] = true
				for _, cityID := range r.children[countyID] {
					included[cityID] = true
				}
			}
		case model.JurisdictionCounty:
			// cities are leaves, no recursion needed
			for _, cityID := range r.children[j.ID] {
				included[cityID] = true
			}
		}
	}

	ids := make([]int64, 0, len(included))
	for id := range included {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })

	result := make([]model.Jurisdiction, 0, len(ids))
	for _, id := range ids {
		result = append(result, *r.byID[id])
	}
	return result
}

// ExpandIDs is Expand returning only the jurisdiction IDs.
func (r *Resolver) ExpandIDs(selectedSlugs []string) []int64 {
	expanded := r.Expand(selectedSlugs)
	ids := make([]int64, 0, len(expanded))
	for _, j := range expanded {
		ids = append(ids, j.ID)
	}
	return ids
}
