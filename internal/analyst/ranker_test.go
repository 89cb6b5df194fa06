package analyst

import (
	"testing"

	"github.com/retailpulse-lab/retailpulse/internal/analyst/index"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func match(id string, score float64, store, family, date string) index.ScoredMatch {
	return index.ScoredMatch{
		ID:    id,
		Score: score,
		Metadata: index.Metadata{
			"store_id":       store,
			"product_family": family,
			"date":           date,
		},
	}
}

func TestRank_FiltersThenTruncates(t *testing.T) {
	matches := []index.ScoredMatch{
		match("a", 0.9, "25", "GROCERY", "2026-08-01"),
		match("b", 0.8, "3", "GROCERY", "2026-08-02"),
		match("c", 0.7, "25", "GROCERY", "2026-08-03"),
		match("d", 0.6, "25", "BEVERAGES", "2026-08-04"),
		match("e", 0.5, "25", "GROCERY", "2026-08-05"),
	}

	store := 25
	family := "GROCERY"
	q := SemanticQuery{StoreID: &store, ProductFamily: &family}

	ranked := Rank(matches, q, 2)
	require.Len(t, ranked, 2)
	assert.Equal(t, "a", ranked[0].ID)
	assert.Equal(t, "c", ranked[1].ID)
}

func TestRank_OutputIsScorePrefixOfFiltered(t *testing.T) {
	matches := []index.ScoredMatch{
		match("low", 0.1, "1", "DAIRY", "2026-08-01"),
		match("high", 0.9, "1", "DAIRY", "2026-08-02"),
		match("mid", 0.5, "1", "DAIRY", "2026-08-03"),
	}

	ranked := Rank(matches, SemanticQuery{}, 10)
	require.Len(t, ranked, 3)
	assert.Equal(t, []string{"high", "mid", "low"}, []string{ranked[0].ID, ranked[1].ID, ranked[2].ID})
}

func TestRank_EqualScoresBreakTiesByRecency(t *testing.T) {
	matches := []index.ScoredMatch{
		match("older", 0.8, "1", "DAIRY", "2026-08-01"),
		match("newer", 0.8, "1", "DAIRY", "2026-08-15"),
		match("oldest", 0.8, "1", "DAIRY", "2025-12-31"),
	}

	ranked := Rank(matches, SemanticQuery{}, 3)
	require.Len(t, ranked, 3)
	assert.Equal(t, "newer", ranked[0].ID)
	assert.Equal(t, "older", ranked[1].ID)
	assert.Equal(t, "oldest", ranked[2].ID)
}

func TestRank_DateFilterIsExact(t *testing.T) {
	matches := []index.ScoredMatch{
		match("a", 0.9, "1", "DAIRY", "2026-12-25"),
		match("b", 0.8, "1", "DAIRY", "2026-12-24"),
	}

	date := "2026-12-25"
	ranked := Rank(matches, SemanticQuery{Date: &date}, 10)
	require.Len(t, ranked, 1)
	assert.Equal(t, "a", ranked[0].ID)
}

func TestRank_FewerSurvivorsThanTopK(t *testing.T) {
	matches := []index.ScoredMatch{
		match("a", 0.9, "25", "GROCERY", "2026-08-01"),
	}

	store := 25
	ranked := Rank(matches, SemanticQuery{StoreID: &store}, 5)
	assert.Len(t, ranked, 1)
}
