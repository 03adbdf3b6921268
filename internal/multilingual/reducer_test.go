package multilingual

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/crisrs/cris-server/internal/domain"
	"github.com/crisrs/cris-server/internal/normalize"
)

func testReducer() *Reducer {
	return NewReducer(normalize.NewLanguages("sr", "hr"))
}

func mc(tag, content string, priority int) domain.MultiLingualContent {
	return domain.MultiLingualContent{LanguageTag: tag, Content: content, Priority: priority}
}

func TestReduce_SplitsByLanguage(t *testing.T) {
	b := testReducer().Reduce([]domain.MultiLingualContent{
		mc("SR", "Рад", 1),
		mc("EN", "Paper", 2),
	})

	assert.Equal(t, "Рад", b.Primary)
	assert.Equal(t, "Paper", b.Other)
}

func TestReduce_RelatedLanguageIsPrimary(t *testing.T) {
	b := testReducer().Reduce([]domain.MultiLingualContent{
		mc("HR", "Članak", 1),
		mc("DE", "Artikel", 2),
		mc("EN", "Article", 3),
	})

	assert.Equal(t, "Članak", b.Primary)
	assert.Equal(t, "Artikel | Article", b.Other)
}

func TestReduce_TitleAndSubtitlePipeDelimited(t *testing.T) {
	title := []domain.MultiLingualContent{mc("SR", "Наслов", 1), mc("EN", "Title", 2)}
	subtitle := []domain.MultiLingualContent{mc("SR", "Поднаслов", 1), mc("EN", "Subtitle", 2)}

	b := testReducer().Reduce(title, subtitle)

	assert.Equal(t, "Наслов | Поднаслов", b.Primary)
	assert.Equal(t, "Title | Subtitle", b.Other)
}

func TestReduce_PriorityOrdersFragments(t *testing.T) {
	b := testReducer().Reduce([]domain.MultiLingualContent{
		mc("EN", "second", 2),
		mc("EN", "first", 1),
	})

	assert.Equal(t, "first | second", b.Other)
}

func TestReduce_MirrorsEmptyBucket(t *testing.T) {
	tests := []struct {
		name    string
		content []domain.MultiLingualContent
		want    string
	}{
		{"only primary", []domain.MultiLingualContent{mc("SR", "Рад", 1)}, "Рад"},
		{"only other", []domain.MultiLingualContent{mc("EN", "Paper", 1)}, "Paper"},
		{"blank primary", []domain.MultiLingualContent{mc("SR", "  ", 1), mc("EN", "Paper", 2)}, "Paper"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := testReducer().Reduce(tt.content)
			assert.Equal(t, tt.want, b.Primary)
			assert.Equal(t, tt.want, b.Other)
		})
	}
}

func TestReduce_Empty(t *testing.T) {
	b := testReducer().Reduce(nil, []domain.MultiLingualContent{})
	assert.True(t, b.IsEmpty())
}

func TestReduceFunc_CleansFragments(t *testing.T) {
	b := testReducer().ReduceFunc(StripHTML, []domain.MultiLingualContent{
		mc("EN", "<p>First <b>bold</b></p><p>Second &amp; last</p>", 1),
	})

	assert.Equal(t, "First bold Second & last", b.Other)
}

func TestTrimSeparators(t *testing.T) {
	assert.Equal(t, "a | b", TrimSeparators("a | b | "))
	assert.Equal(t, "a", TrimSeparators("a |||"))
	assert.Equal(t, "", TrimSeparators(" | "))
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"plain   text", "plain text"},
		{"<div>one</div><div>two</div>", "one two"},
		{"line<br>break", "line break"},
		{"<script>alert(1)</script>visible", "visible"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, StripHTML(tt.input))
		})
	}
}
