package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crisrs/cris-server/internal/domain"
	domainerrors "github.com/crisrs/cris-server/internal/errors"
)

func TestAdvanced_Expressions(t *testing.T) {
	index := setupIndex(t, corpus()...)
	b := NewBuilder(nil)

	tests := []struct {
		name  string
		input string
		want  []int64
	}{
		{"bare term", "learning", []int64{2}},
		{"field term", "title:graph", []int64{1, 3, 4}},
		{"implicit and", "graph theory", []int64{1, 4}},
		{"explicit and", "title:graph AND author:petrovic", []int64{1}},
		{"or", "author:markovic OR advisor:petrovic", []int64{2, 4}},
		{"not", "title:graph NOT type:proceedings", []int64{1, 4}},
		{"parentheses", "(title:learning OR title:colouring) AND year:2019", []int64{1}},
		{"phrase", `title:"graph theory"`, []int64{4}},
		{"wildcard", "keywords:combin*", []int64{1}},
		{"year range", "year:2018-2019", []int64{1, 4}},
		{"doi", "doi:10.1000/ML.2021", []int64{2}},
		{"lowercase operators", "title:graph and not type:thesis", []int64{1, 3}},
		{"empty", "", []int64{1, 2, 3, 4}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := b.Advanced(Tokenize(tt.input), Filters{})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(t, index, q))
		})
	}
}

func TestAdvanced_LayersFilters(t *testing.T) {
	index := setupIndex(t, corpus()...)
	b := NewBuilder(nil)

	q, err := b.Advanced([]string{"title:graph"}, Filters{Types: []domain.DocumentType{domain.TypeThesis}})
	require.NoError(t, err)
	assert.Equal(t, []int64{4}, ids(t, index, q))
}

func TestAdvanced_SyntaxErrors(t *testing.T) {
	b := NewBuilder(nil)

	tests := []struct {
		name  string
		input string
	}{
		{"unknown field", "publisher:elsevier"},
		{"unbalanced open", "(title:graph"},
		{"unbalanced close", "title:graph)"},
		{"dangling operator", "title:graph AND"},
		{"leading operator", "OR title:graph"},
		{"unterminated phrase", `title:"graph`},
		{"missing value", "title:"},
		{"bad year", "year:twenty"},
		{"inverted year range", "year:2020-2010"},
		{"zero year", "year:0"},
		{"range from zero", "year:0-2020"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Advanced(Tokenize(tt.input), Filters{})
			require.Error(t, err)
			assert.True(t, domainerrors.Is(err, domainerrors.ErrValidation), "got %v", err)
		})
	}
}
