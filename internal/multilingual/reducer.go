// Package multilingual merges per-language text fragments into the two
// index buckets: the primary language and everything else.
package multilingual

import (
	"sort"
	"strings"

	"github.com/crisrs/cris-server/internal/domain"
	"github.com/crisrs/cris-server/internal/normalize"
)

// Separator joins fragments within a bucket.
const Separator = " | "

// Buckets is the reduced form of one multilingual field.
type Buckets struct {
	Primary string
	Other   string
}

// IsEmpty reports whether no language had content.
func (b Buckets) IsEmpty() bool {
	return b.Primary == "" && b.Other == ""
}

// Reducer splits multilingual content by language.
type Reducer struct {
	langs normalize.Languages
}

// NewReducer creates a reducer for the given language configuration.
func NewReducer(langs normalize.Languages) *Reducer {
	return &Reducer{langs: langs}
}

// Languages returns the language configuration the reducer buckets by.
func (r *Reducer) Languages() normalize.Languages {
	return r.langs
}

// Reduce merges one or more fields (e.g. title then subtitle) into buckets.
// Within a field, fragments are taken in priority order.
func (r *Reducer) Reduce(fields ...[]domain.MultiLingualContent) Buckets {
	return r.ReduceFunc(nil, fields...)
}

// ReduceFunc is Reduce with a cleanup applied to every fragment first.
func (r *Reducer) ReduceFunc(clean func(string) string, fields ...[]domain.MultiLingualContent) Buckets {
	c := r.Collector()
	for _, field := range fields {
		for _, mc := range byPriority(field) {
			text := mc.Content
			if clean != nil {
				text = clean(text)
			}
			c.Add(mc.LanguageTag, text)
		}
	}
	return c.Buckets()
}

// Collector accumulates fragments one at a time. Use Reducer.Collector.
type Collector struct {
	langs   normalize.Languages
	primary strings.Builder
	other   strings.Builder
}

// Collector starts an empty accumulation.
func (r *Reducer) Collector() *Collector {
	return &Collector{langs: r.langs}
}

// Add appends text to the bucket its language belongs to. Blank text is ignored.
func (c *Collector) Add(languageTag, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	b := &c.other
	if c.langs.IsPrimary(languageTag) {
		b = &c.primary
	}
	b.WriteString(text)
	b.WriteString(Separator)
}

// Buckets returns the accumulated content. An empty bucket mirrors the other one.
func (c *Collector) Buckets() Buckets {
	out := Buckets{
		Primary: TrimSeparators(c.primary.String()),
		Other:   TrimSeparators(c.other.String()),
	}
	if out.Primary == "" {
		out.Primary = out.Other
	}
	if out.Other == "" {
		out.Other = out.Primary
	}
	return out
}

// TrimSeparators strips trailing pipe separators and whitespace.
func TrimSeparators(s string) string {
	return strings.TrimRight(s, " |")
}

func byPriority(field []domain.MultiLingualContent) []domain.MultiLingualContent {
	sorted := make([]domain.MultiLingualContent, len(field))
	copy(sorted, field)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority < sorted[j].Priority
	})
	return sorted
}
