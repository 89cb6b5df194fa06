package analyst

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Vocabulary is the closed product-family vocabulary the parser matches
// against. Families outside it are never extracted as filters.
type Vocabulary struct {
	Families []string `yaml:"families"`
}

// LoadVocabulary reads the vocabulary YAML file.
func LoadVocabulary(path string) (Vocabulary, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Vocabulary{}, fmt.Errorf("open vocabulary: %w", err)
	}
	var vocab Vocabulary
	if err := yaml.Unmarshal(raw, &vocab); err != nil {
		return Vocabulary{}, fmt.Errorf("parse vocabulary: %w", err)
	}
	return vocab, nil
}

var (
	topNPattern  = regexp.MustCompile(`(?i)\btop\s+(\d+)\b`)
	storePattern = regexp.MustCompile(`(?i)\bstore\s+#?(\d+)\b`)
	datePattern  = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
)

// parserRule is one entry of the declarative extraction table: a
// pattern and what its first capture group sets on the query.
type parserRule struct {
	name    string
	pattern *regexp.Regexp
	apply   func(capture string, q *SemanticQuery)
}

// Parser extracts structured filters from free-text questions.
// Extraction is best-effort: unrecognized terms are ignored and the raw
// text is always retained for semantic retrieval, so an ambiguous
// question degrades to an unfiltered search instead of failing.
type Parser struct {
	families    []string // longest-first, uppercase
	rules       []parserRule
	defaultTopK int
	maxTopK     int
}

func NewParser(vocab Vocabulary, defaultTopK, maxTopK int) *Parser {
	if defaultTopK <= 0 {
		defaultTopK = 20
	}
	if maxTopK < defaultTopK {
		maxTopK = defaultTopK
	}

	families := make([]string, len(vocab.Families))
	for i, f := range vocab.Families {
		families[i] = strings.ToUpper(f)
	}
	// Longest first so "HOME CARE" wins over a hypothetical "CARE".
	sort.Slice(families, func(i, j int) bool { return len(families[i]) > len(families[j]) })

	p := &Parser{
		families:    families,
		defaultTopK: defaultTopK,
		maxTopK:     maxTopK,
	}
	p.rules = []parserRule{
		{
			name:    "top_n",
			pattern: topNPattern,
			apply: func(capture string, q *SemanticQuery) {
				if n, err := strconv.Atoi(capture); err == nil && n > 0 {
					q.TopK = n
				}
			},
		},
		{
			name:    "store_number",
			pattern: storePattern,
			apply: func(capture string, q *SemanticQuery) {
				if id, err := strconv.Atoi(capture); err == nil && id > 0 {
					q.StoreID = &id
				}
			},
		},
		{
			name:    "exact_date",
			pattern: datePattern,
			apply: func(capture string, q *SemanticQuery) {
				q.Date = &capture
			},
		},
	}
	return p
}

// Parse extracts filters from a question. Never fails.
func (p *Parser) Parse(question string) SemanticQuery {
	q := SemanticQuery{
		RawText: question,
		TopK:    p.defaultTopK,
	}

	for _, rule := range p.rules {
		if match := rule.pattern.FindStringSubmatch(question); match != nil {
			rule.apply(match[1], &q)
		}
	}

	upper := strings.ToUpper(question)
	for _, family := range p.families {
		if strings.Contains(upper, family) {
			f := family
			q.ProductFamily = &f
			break
		}
	}

	if q.TopK > p.maxTopK {
		q.TopK = p.maxTopK
	}
	return q
}
