package query

import (
	"errors"
	"strconv"
	"strings"
	"unicode"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
	"github.com/crisrs/cris-server/internal/normalize"
	"github.com/crisrs/cris-server/internal/search"
)

// ExpressionParser parses the advanced search mini-language:
//
//	expr  := or
//	or    := and ("OR" and)*
//	and   := unary (["AND"] unary)*
//	unary := "NOT" unary | "(" or ")" | term
//	term  := [field ":"] value
//
// Values may be double-quoted phrases and may contain * and ? wildcards.
// Operators are case-insensitive. An unqualified value searches the title,
// keyword, description and contributor name buckets.
type ExpressionParser struct {
	fields map[string][]string
}

// NewExpressionParser creates a parser with the standard field aliases.
func NewExpressionParser() *ExpressionParser {
	return &ExpressionParser{
		fields: map[string][]string{
			"title":       search.TitleFields,
			"description": {search.FieldDescriptionSr, search.FieldDescriptionOther},
			"keywords":    search.KeywordFields,
			"fulltext":    {search.FieldFullTextSr, search.FieldFullTextOther},
			"author":      {search.FieldAuthorNames},
			"editor":      {search.FieldEditorNames},
			"advisor":     {search.FieldAdvisorNames},
			"reviewer":    {search.FieldReviewerNames},
			"doi":         {search.FieldDOI},
		},
	}
}

// Parse implements ExpressionTransformer. Syntax errors are validation errors.
func (p *ExpressionParser) Parse(tokens []string) (query.Query, error) {
	lexemes, err := lex(strings.Join(tokens, " "))
	if err != nil {
		return nil, err
	}
	if len(lexemes) == 0 {
		return bleve.NewMatchAllQuery(), nil
	}

	st := &parseState{parser: p, lexemes: lexemes}
	q, err := st.parseOr()
	if err != nil {
		return nil, err
	}
	if !st.done() {
		return nil, domainerrors.Validationf("unexpected %q at position %d", st.peek().text, st.pos+1)
	}
	return q, nil
}

// errSkip marks input that carries no term, such as a lone ':'.
var errSkip = errors.New("skip")

type lexKind int

const (
	lexTerm lexKind = iota
	lexAnd
	lexOr
	lexNot
	lexOpen
	lexClose
)

type lexeme struct {
	kind   lexKind
	text   string
	field  string
	quoted bool
}

func lex(input string) ([]lexeme, error) {
	var out []lexeme
	runes := []rune(input)

	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			out = append(out, lexeme{kind: lexOpen, text: "("})
			i++
		case r == ')':
			out = append(out, lexeme{kind: lexClose, text: ")"})
			i++
		default:
			var lx lexeme
			var err error
			lx, i, err = lexTermAt(runes, i)
			if errors.Is(err, errSkip) {
				continue
			}
			if err != nil {
				return nil, err
			}
			out = append(out, lx)
		}
	}
	return out, nil
}

// lexTermAt reads [field:]value starting at i and returns the next position.
func lexTermAt(runes []rune, i int) (lexeme, int, error) {
	lx := lexeme{kind: lexTerm}

	if runes[i] != '"' {
		start := i
		for i < len(runes) && !isTermEnd(runes[i]) && runes[i] != ':' {
			i++
		}
		if i < len(runes) && runes[i] == ':' && i > start {
			lx.field = strings.ToLower(string(runes[start:i]))
			i++
		} else {
			i = start
		}
	}

	if i < len(runes) && runes[i] == '"' {
		end := i + 1
		for end < len(runes) && runes[end] != '"' {
			end++
		}
		if end >= len(runes) {
			return lexeme{}, 0, domainerrors.Validation("unterminated quoted phrase")
		}
		lx.text = strings.TrimSpace(string(runes[i+1 : end]))
		lx.quoted = true
		return lx, end + 1, nil
	}

	start := i
	for i < len(runes) && !isTermEnd(runes[i]) {
		i++
	}
	lx.text = strings.Trim(string(runes[start:i]), `:"`)
	if lx.text == "" {
		if lx.field != "" {
			return lexeme{}, 0, domainerrors.Validationf("missing value for field %q", lx.field)
		}
		return lexeme{}, max(i, start+1), errSkip
	}

	if lx.field == "" {
		switch strings.ToUpper(lx.text) {
		case "AND", "&&":
			lx.kind = lexAnd
		case "OR", "||":
			lx.kind = lexOr
		case "NOT":
			lx.kind = lexNot
		}
	}
	return lx, i, nil
}

func isTermEnd(r rune) bool {
	return unicode.IsSpace(r) || r == '(' || r == ')'
}

type parseState struct {
	parser  *ExpressionParser
	lexemes []lexeme
	pos     int
}

func (s *parseState) done() bool { return s.pos >= len(s.lexemes) }

func (s *parseState) peek() lexeme { return s.lexemes[s.pos] }

func (s *parseState) parseOr() (query.Query, error) {
	left, err := s.parseAnd()
	if err != nil {
		return nil, err
	}
	disjuncts := []query.Query{left}
	for !s.done() && s.peek().kind == lexOr {
		s.pos++
		right, err := s.parseAnd()
		if err != nil {
			return nil, err
		}
		disjuncts = append(disjuncts, right)
	}
	if len(disjuncts) == 1 {
		return left, nil
	}
	return bleve.NewDisjunctionQuery(disjuncts...), nil
}

func (s *parseState) parseAnd() (query.Query, error) {
	left, err := s.parseUnary()
	if err != nil {
		return nil, err
	}
	conjuncts := []query.Query{left}
	for !s.done() {
		switch s.peek().kind {
		case lexAnd:
			s.pos++
		case lexOr, lexClose:
			return conjunction(conjuncts), nil
		}
		right, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		conjuncts = append(conjuncts, right)
	}
	return conjunction(conjuncts), nil
}

func (s *parseState) parseUnary() (query.Query, error) {
	if s.done() {
		return nil, domainerrors.Validation("unexpected end of expression")
	}
	lx := s.peek()
	switch lx.kind {
	case lexNot:
		s.pos++
		inner, err := s.parseUnary()
		if err != nil {
			return nil, err
		}
		bq := bleve.NewBooleanQuery()
		bq.AddMust(bleve.NewMatchAllQuery())
		bq.AddMustNot(inner)
		return bq, nil
	case lexOpen:
		s.pos++
		inner, err := s.parseOr()
		if err != nil {
			return nil, err
		}
		if s.done() || s.peek().kind != lexClose {
			return nil, domainerrors.Validation("missing closing parenthesis")
		}
		s.pos++
		return inner, nil
	case lexTerm:
		s.pos++
		return s.parser.termQuery(lx)
	default:
		return nil, domainerrors.Validationf("unexpected %q at position %d", lx.text, s.pos+1)
	}
}

func conjunction(qs []query.Query) query.Query {
	if len(qs) == 1 {
		return qs[0]
	}
	return bleve.NewConjunctionQuery(qs...)
}

func (p *ExpressionParser) termQuery(lx lexeme) (query.Query, error) {
	switch lx.field {
	case "":
		var fields []string
		fields = append(fields, search.TitleFields...)
		fields = append(fields, search.KeywordFields...)
		fields = append(fields, search.FieldDescriptionSr, search.FieldDescriptionOther)
		fields = append(fields, search.NameFields...)
		return textQuery(fields, lx), nil
	case "type":
		return TypeQuery(typeValue(lx.text)), nil
	case "year":
		return yearQuery(lx.text)
	}

	fields, ok := p.fields[lx.field]
	if !ok {
		return nil, domainerrors.Validationf("unknown search field %q", lx.field)
	}
	return textQuery(fields, lx), nil
}

func textQuery(fields []string, lx lexeme) query.Query {
	disjuncts := make([]query.Query, 0, len(fields))
	for _, field := range fields {
		switch {
		case lx.quoted:
			pq := bleve.NewMatchPhraseQuery(lx.text)
			pq.SetField(field)
			disjuncts = append(disjuncts, pq)
		case strings.ContainsAny(lx.text, "*?"):
			wq := bleve.NewWildcardQuery(normalize.FoldName(lx.text))
			wq.SetField(field)
			disjuncts = append(disjuncts, wq)
		default:
			mq := bleve.NewMatchQuery(lx.text)
			mq.SetField(field)
			disjuncts = append(disjuncts, mq)
		}
	}
	if len(disjuncts) == 1 {
		return disjuncts[0]
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

func typeValue(s string) domain.DocumentType {
	return domain.DocumentType(strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", "_")))
}

// yearQuery accepts "2020" or an inclusive range "2010-2020".
func yearQuery(value string) (query.Query, error) {
	from, to, found := strings.Cut(value, "-")
	if !found {
		to = from
	}
	lo, err := strconv.Atoi(strings.TrimSpace(from))
	if err != nil {
		return nil, domainerrors.Validationf("invalid year %q", value)
	}
	hi, err := strconv.Atoi(strings.TrimSpace(to))
	if err != nil {
		return nil, domainerrors.Validationf("invalid year %q", value)
	}
	if lo <= 0 || lo > hi {
		return nil, domainerrors.Validationf("invalid year range %q", value)
	}
	return yearRange(lo, hi), nil
}
