package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/char/asciifolding"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"
)

const (
	// FoldedAnalyzer tokenizes on unicode word boundaries, folds diacritics and
	// lowercases. Latin "Petrović" and "petrovic" index to the same term.
	FoldedAnalyzer = "folded"

	// LowerKeywordAnalyzer keeps the whole value as one lowercased term.
	LowerKeywordAnalyzer = "keyword_lower"
)

// buildIndexMapping creates the Bleve index mapping for index entries.
//
// Text buckets use the folded analyzer so both scripts and both diacritic
// spellings of Serbo-Croatian names are searchable. Id lists are keyword
// terms so the sentinel -1 is matchable. The full entry is stored as JSON.
func buildIndexMapping() (mapping.IndexMapping, error) {
	indexMapping := bleve.NewIndexMapping()

	if err := indexMapping.AddCustomAnalyzer(FoldedAnalyzer, map[string]any{
		"type":          custom.Name,
		"char_filters":  []string{asciifolding.Name},
		"tokenizer":     unicode.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register %s analyzer: %w", FoldedAnalyzer, err)
	}
	if err := indexMapping.AddCustomAnalyzer(LowerKeywordAnalyzer, map[string]any{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	}); err != nil {
		return nil, fmt.Errorf("register %s analyzer: %w", LowerKeywordAnalyzer, err)
	}

	indexMapping.DefaultAnalyzer = FoldedAnalyzer

	docMapping := bleve.NewDocumentMapping()
	docMapping.Dynamic = false

	// --- Text buckets ---

	for _, field := range TitleFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = FoldedAnalyzer
		fm.IncludeTermVectors = true // phrase queries
		docMapping.AddFieldMappingsAt(field, fm)
	}
	for _, field := range append(append([]string{}, KeywordFields...), DescriptionFields...) {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = FoldedAnalyzer
		fm.IncludeTermVectors = true
		docMapping.AddFieldMappingsAt(field, fm)
	}
	for _, field := range NameFields {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = FoldedAnalyzer
		fm.IncludeTermVectors = true
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// --- Keyword fields ---

	typeMapping := bleve.NewTextFieldMapping()
	typeMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(FieldType, typeMapping)

	doiMapping := bleve.NewTextFieldMapping()
	doiMapping.Analyzer = LowerKeywordAnalyzer
	docMapping.AddFieldMappingsAt(FieldDOI, doiMapping)

	for _, field := range []string{
		FieldAuthorIDs, FieldEditorIDs, FieldAdvisorIDs, FieldReviewerIDs, FieldBoardMemberIDs,
		FieldClaimedPersonIDs, FieldResearchOutputIDs, FieldInstitutionIDs,
	} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		docMapping.AddFieldMappingsAt(field, fm)
	}

	// --- Numeric and boolean fields ---

	idMapping := bleve.NewNumericFieldMapping()
	idMapping.DocValues = true // sort
	docMapping.AddFieldMappingsAt(FieldDatabaseID, idMapping)

	yearMapping := bleve.NewNumericFieldMapping()
	yearMapping.DocValues = true
	docMapping.AddFieldMappingsAt(FieldYear, yearMapping)

	docMapping.AddFieldMappingsAt(FieldIsApproved, bleve.NewBooleanFieldMapping())
	docMapping.AddFieldMappingsAt(FieldOpenAccess, bleve.NewBooleanFieldMapping())

	// --- Stored source ---

	sourceMapping := bleve.NewTextFieldMapping()
	sourceMapping.Analyzer = keyword.Name
	sourceMapping.Index = false
	sourceMapping.Store = true
	sourceMapping.IncludeInAll = false
	docMapping.AddFieldMappingsAt(FieldSource, sourceMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)
	indexMapping.DefaultMapping = docMapping

	return indexMapping, nil
}
