// Package index holds the semantic index the analyst retrieves from.
package index

import "context"

// Dimensions is the embedding width the index accepts. Vectors of any
// other width are rejected on both the write and the query path.
const Dimensions = 384

// Metadata is the structured payload stored alongside a vector, used
// for hard filtering at query time.
type Metadata map[string]string

// ScoredMatch is one retrieval result.
type ScoredMatch struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// SemanticIndex stores record embeddings and answers nearest-neighbour
// queries. The in-memory implementation is exact; an external vector
// database slots in behind the same interface.
type SemanticIndex interface {
	Upsert(ctx context.Context, id string, vector []float32, metadata Metadata) error
	Query(ctx context.Context, vector []float32, topK int, filter Metadata) ([]ScoredMatch, error)
	Count() int
}
