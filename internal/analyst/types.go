// Package analyst implements the retrieval-backed question answering
// layer: parse structured filters out of a natural-language question,
// retrieve matching sale records semantically, and generate a grounded
// answer.
package analyst

// SemanticQuery is the parsed form of an analyst question: the raw text
// always retained for embedding, plus any structured filters the parser
// could extract.
type SemanticQuery struct {
	RawText       string
	StoreID       *int
	ProductFamily *string
	Date          *string // YYYY-MM-DD
	TopK          int
}

// HasFilters reports whether any structured filter was extracted.
func (q SemanticQuery) HasFilters() bool {
	return q.StoreID != nil || q.ProductFamily != nil || q.Date != nil
}

// Record is one retrieved sale record handed to the generator.
type Record struct {
	EventID       string  `json:"event_id"`
	StoreID       string  `json:"store_id"`
	ProductFamily string  `json:"product_family"`
	Date          string  `json:"date"`
	Sales         string  `json:"sales"`
	Text          string  `json:"text"`
	Score         float64 `json:"score"`
}

// Answer is the analyst response: the generated text plus the records
// it was grounded on.
type Answer struct {
	Text    string   `json:"answer"`
	Records []Record `json:"records"`
}
