package service

import (
	"database/sql"
	"testing"

	"github.com/jjenkins/civicwatch/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testForest builds: texas -> {travis-county (austin, pflugerville),
// williamson-county (round-rock)}, plus a second state with no children.
func testForest() []model.Jurisdiction {
	parent := func(id int64) sql.NullInt64 {
		return sql.NullInt64{Int64: id, Valid: true}
	}
	return []model.Jurisdiction{
		{ID: 1, Slug: "texas", Name: "Texas", Type: model.JurisdictionState},
		{ID: 2, Slug: "travis-county-tx", Name: "Travis County", Type: model.JurisdictionCounty, ParentID: parent(1)},
		{ID: 3, Slug: "austin-tx", Name: "Austin", Type: model.JurisdictionCity, ParentID: parent(2)},
		{ID: 4, Slug: "pflugerville-tx", Name: "Pflugerville", Type: model.JurisdictionCity, ParentID: parent(2)},
		{ID: 5, Slug: "williamson-county-tx", Name: "Williamson County", Type: model.JurisdictionCounty, ParentID: parent(1)},
		{ID: 6, Slug: "round-rock-tx", Name: "Round Rock", Type: model.JurisdictionCity, ParentID: parent(5)},
		{ID: 7, Slug: "oklahoma", Name: "Oklahoma", Type: model.JurisdictionState},
	}
}

func slugsOf(jurisdictions []model.Jurisdiction) []string {
	slugs := make([]string, 0, len(jurisdictions))
	for _, j := range jurisdictions {
		slugs = append(slugs, j.Slug)
	}
	return slugs
}

func TestExpandState(t *testing.T) {
	r := NewResolver(testForest())

	expanded := r.Expand([]string{"texas"})

	// full subtree to depth 2 below the state
	assert.ElementsMatch(t,
		[]string{"texas", "travis-county-tx", "austin-tx", "pflugerville-tx", "williamson-county-tx", "round-rock-tx"},
		slugsOf(expanded))
}

func TestExpandCounty(t *testing.T) {
	r := NewResolver(testForest())

	expanded := r.Expand([]string{"travis-county-tx"})

	assert.ElementsMatch(t,
		[]string{"travis-county-tx", "austin-tx", "pflugerville-tx"},
		slugsOf(expanded))
}

func TestExpandCityYieldsOnlyItself(t *testing.T) {
	r := NewResolver(testForest())

	expanded := r.Expand([]string{"austin-tx"})

	require.Len(t, expanded, 1)
	assert.Equal(t, "austin-tx", expanded[0].Slug)
}

func TestExpandIsIdempotent(t *testing.T) {
	r := NewResolver(testForest())

	once := r.Expand([]string{"texas"})
	twice := r.Expand(slugsOf(once))

	assert.Equal(t, slugsOf(once), slugsOf(twice))
}

func TestExpandUnknownSlugSilentlySkipped(t *testing.T) {
	r := NewResolver(testForest())

	assert.Empty(t, r.Expand([]string{"atlantis"}))

	expanded := r.Expand([]string{"atlantis", "austin-tx"})
	assert.Equal(t, []string{"austin-tx"}, slugsOf(expanded))
}

func TestExpandEmptyInputYieldsEmptySet(t *testing.T) {
	r := NewResolver(testForest())

	assert.Empty(t, r.Expand(nil))
}

func TestExpandDeduplicates(t *testing.T) {
	r := NewResolver(testForest())

	// county and one of its cities selected together
	expanded := r.Expand([]string{"travis-county-tx", "austin-tx"})

	assert.ElementsMatch(t,
		[]string{"travis-county-tx", "austin-tx", "pflugerville-tx"},
		slugsOf(expanded))
}

func TestExpandIDs(t *testing.T) {
	r := NewResolver(testForest())

	assert.Equal(t, []int64{2, 3, 4}, r.ExpandIDs([]string{"travis-county-tx"}))
}
