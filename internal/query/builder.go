// Package query builds Bleve query trees for simple and advanced document search.
package query

import (
	"math"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/crisrs/cris-server/internal/domain"
	"github.com/crisrs/cris-server/internal/normalize"
	"github.com/crisrs/cris-server/internal/search"
)

// ExpressionTransformer parses advanced search syntax into a query tree.
type ExpressionTransformer interface {
	Parse(tokens []string) (query.Query, error)
}

// Options tune simple mode.
type Options struct {
	// MinimumShouldMatch, when in (0, 1], requires ceil(tokens × value) of
	// the per-token groups to match instead of all of them.
	MinimumShouldMatch float64
}

// Builder constructs query trees for both search modes.
type Builder struct {
	transformer ExpressionTransformer
}

// NewBuilder creates a builder. A nil transformer uses the bundled expression parser.
func NewBuilder(transformer ExpressionTransformer) *Builder {
	if transformer == nil {
		transformer = NewExpressionParser()
	}
	return &Builder{transformer: transformer}
}

// Simple builds a token match query. Each token becomes an OR group across the
// searchable fields; groups are AND-ed (or min-matched) together. Proceedings
// are never returned since they only group proceedings publications.
func (b *Builder) Simple(tokens []string, filters Filters, opts Options) query.Query {
	groups := make([]query.Query, 0, len(tokens))
	for _, raw := range tokens {
		if g := tokenGroup(raw); g != nil {
			groups = append(groups, g)
		}
	}

	var text query.Query
	switch {
	case len(groups) == 0:
		text = bleve.NewMatchAllQuery()
	case opts.MinimumShouldMatch > 0 && opts.MinimumShouldMatch < 1:
		dq := bleve.NewDisjunctionQuery(groups...)
		dq.SetMin(MinimumMatches(len(groups), opts.MinimumShouldMatch))
		text = dq
	default:
		text = bleve.NewConjunctionQuery(groups...)
	}

	bq := compose(text, filters)
	bq.AddMustNot(TypeQuery(domain.TypeProceedings))
	return bq
}

// Advanced parses tokens with the expression transformer and layers filters over the result.
func (b *Builder) Advanced(tokens []string, filters Filters) (query.Query, error) {
	tree, err := b.transformer.Parse(tokens)
	if err != nil {
		return nil, err
	}
	return compose(tree, filters), nil
}

// MinimumMatches returns ceil(n × threshold), at least 1.
func MinimumMatches(n int, threshold float64) float64 {
	// 10 × 0.7 is 7.000000000000001 in floating point
	m := math.Ceil(float64(n)*threshold - 1e-9)
	if m < 1 {
		m = 1
	}
	return m
}

func compose(text query.Query, filters Filters) *query.BooleanQuery {
	bq := bleve.NewBooleanQuery()
	bq.AddMust(text)
	for _, clause := range filters.Clauses() {
		bq.AddMust(clause)
	}
	return bq
}

// tokenGroup returns the OR group for one token, or nil for a blank token.
// A quoted token must additionally match a title bucket as a phrase.
func tokenGroup(raw string) query.Query {
	text, quoted := unquote(raw)
	if text == "" {
		return nil
	}
	folded := normalize.FoldName(text)

	var clauses []query.Query
	for _, field := range search.TitleFields {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(field)
		mq.SetBoost(3.0)
		clauses = append(clauses, mq)

		if !strings.Contains(folded, " ") {
			pq := bleve.NewPrefixQuery(folded)
			pq.SetField(field)
			pq.SetBoost(2.0)
			clauses = append(clauses, pq)
		}
	}

	for _, field := range search.KeywordFields {
		if strings.Contains(folded, " ") {
			mq := bleve.NewMatchPhraseQuery(text)
			mq.SetField(field)
			clauses = append(clauses, mq)
			continue
		}
		substring := stripWildcards(folded)
		if substring == "" {
			continue
		}
		wq := bleve.NewWildcardQuery("*" + substring + "*")
		wq.SetField(field)
		clauses = append(clauses, wq)
	}

	for _, field := range append(append([]string{}, search.DescriptionFields...), search.NameFields...) {
		mq := bleve.NewMatchQuery(text)
		mq.SetField(field)
		clauses = append(clauses, mq)
	}

	doi := bleve.NewMatchQuery(text)
	doi.SetField(search.FieldDOI)
	clauses = append(clauses, doi)

	typeTerm := bleve.NewTermQuery(strings.ToUpper(text))
	typeTerm.SetField(search.FieldType)
	clauses = append(clauses, typeTerm)

	group := bleve.NewDisjunctionQuery(clauses...)
	if !quoted {
		return group
	}
	return bleve.NewConjunctionQuery(titlePhrase(text), group)
}

func titlePhrase(text string) query.Query {
	phrases := make([]query.Query, 0, len(search.TitleFields))
	for _, field := range search.TitleFields {
		pq := bleve.NewMatchPhraseQuery(text)
		pq.SetField(field)
		phrases = append(phrases, pq)
	}
	return bleve.NewDisjunctionQuery(phrases...)
}

// unquote strips one pair of surrounding double quotes.
func unquote(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if len(s) >= 2 && strings.HasPrefix(s, `"`) && strings.HasSuffix(s, `"`) {
		return strings.TrimSpace(s[1 : len(s)-1]), true
	}
	return strings.Trim(s, `"`), false
}

// stripWildcards removes wildcard characters; Bleve has no escape for them.
func stripWildcards(s string) string {
	return strings.NewReplacer("*", "", "?", "").Replace(s)
}

// Tokenize splits user input on whitespace, keeping double-quoted runs together
// (quotes included) so they reach the builder as phrase tokens.
func Tokenize(input string) []string {
	var (
		tokens []string
		cur    strings.Builder
		quoted bool
	)
	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}
	for _, r := range input {
		switch {
		case r == '"':
			cur.WriteRune(r)
			if quoted {
				quoted = false
				flush()
			} else {
				quoted = true
			}
		case !quoted && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	flush()
	return tokens
}
