package analyst

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/retailpulse-lab/retailpulse/internal/analyst/embed"
	"github.com/retailpulse-lab/retailpulse/internal/analyst/index"
	"github.com/retailpulse-lab/retailpulse/internal/metrics"
)

// Service wires the full ask path: parse, embed, retrieve, rank,
// generate.
type Service struct {
	parser    *Parser
	embedder  embed.Embedder
	index     index.SemanticIndex
	generator Generator

	// retrieveMultiple widens the index query beyond topK so the hard
	// post-filter still has candidates to keep.
	retrieveMultiple int
}

func NewService(parser *Parser, embedder embed.Embedder, idx index.SemanticIndex, generator Generator) *Service {
	return &Service{
		parser:           parser,
		embedder:         embedder,
		index:            idx,
		generator:        generator,
		retrieveMultiple: 5,
	}
}

// Ask answers one analyst question.
func (s *Service) Ask(ctx context.Context, question string) (Answer, error) {
	query := s.parser.Parse(question)

	vector, err := s.embedder.EmbedQuery(ctx, query.RawText)
	if err != nil {
		metrics.AnalystQueries.WithLabelValues("embed_error").Inc()
		return Answer{}, fmt.Errorf("embed question: %w", err)
	}

	// The index already filters on extracted metadata; over-fetch so
	// ranking still has a full candidate set after the defensive
	// post-filter.
	matches, err := s.index.Query(ctx, vector, query.TopK*s.retrieveMultiple, indexFilter(query))
	if err != nil {
		metrics.AnalystQueries.WithLabelValues("index_error").Inc()
		return Answer{}, fmt.Errorf("query index: %w", err)
	}

	ranked := Rank(matches, query, query.TopK)
	records := toRecords(ranked)

	if len(records) == 0 {
		metrics.AnalystQueries.WithLabelValues("no_results").Inc()
		return Answer{
			Text:    "No matching sales records were found for this question.",
			Records: []Record{},
		}, nil
	}

	text, err := s.generator.Answer(ctx, question, records)
	if err != nil {
		metrics.AnalystQueries.WithLabelValues("generate_error").Inc()
		return Answer{}, fmt.Errorf("generate answer: %w", err)
	}

	metrics.AnalystQueries.WithLabelValues("ok").Inc()
	slog.Info("[Analyst] Answered question",
		"filters_extracted", query.HasFilters(),
		"top_k", query.TopK,
		"records", len(records),
	)
	return Answer{Text: text, Records: records}, nil
}

func indexFilter(q SemanticQuery) index.Metadata {
	filter := index.Metadata{}
	if q.StoreID != nil {
		filter["store_id"] = fmt.Sprintf("%d", *q.StoreID)
	}
	if q.ProductFamily != nil {
		filter["product_family"] = *q.ProductFamily
	}
	if q.Date != nil {
		filter["date"] = *q.Date
	}
	return filter
}

func toRecords(matches []index.ScoredMatch) []Record {
	records := make([]Record, 0, len(matches))
	for _, m := range matches {
		records = append(records, Record{
			EventID:       m.ID,
			StoreID:       m.Metadata["store_id"],
			ProductFamily: m.Metadata["product_family"],
			Date:          m.Metadata["date"],
			Sales:         m.Metadata["sales"],
			Text:          m.Metadata["text"],
			Score:         m.Score,
		})
	}
	return records
}
