package analyst

import (
	"sort"
	"strconv"

	"github.com/retailpulse-lab/retailpulse/internal/analyst/index"
)

// Rank applies the structured filters as a hard post-filter, orders the
// survivors by score descending with a most-recent-date tie-break, and
// truncates to topK. The output is always a strict score-prefix of the
// filtered candidates: filtering never reorders, only removes.
func Rank(matches []index.ScoredMatch, q SemanticQuery, topK int) []index.ScoredMatch {
	filtered := make([]index.ScoredMatch, 0, len(matches))
	for _, m := range matches {
		if !matchesQuery(m.Metadata, q) {
			continue
		}
		filtered = append(filtered, m)
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		if filtered[i].Score != filtered[j].Score {
			return filtered[i].Score > filtered[j].Score
		}
		// ISO dates compare lexicographically; newer first.
		return filtered[i].Metadata["date"] > filtered[j].Metadata["date"]
	})

	if topK > 0 && len(filtered) > topK {
		filtered = filtered[:topK]
	}
	return filtered
}

func matchesQuery(meta index.Metadata, q SemanticQuery) bool {
	if q.StoreID != nil && meta["store_id"] != strconv.Itoa(*q.StoreID) {
		return false
	}
	if q.ProductFamily != nil && meta["product_family"] != *q.ProductFamily {
		return false
	}
	if q.Date != nil && meta["date"] != *q.Date {
		return false
	}
	return true
}
