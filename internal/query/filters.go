package query

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/crisrs/cris-server/internal/domain"
	"github.com/crisrs/cris-server/internal/search"
)

// Filters are mandatory restrictions layered over either text mode.
// Every non-empty filter becomes a top-level AND term; values within one
// filter are OR-ed.
type Filters struct {
	InstitutionIDs []int64
	AuthorIDs      []int64
	AdvisorIDs     []int64
	BoardMemberIDs []int64

	Types []domain.DocumentType

	// FromYear and ToYear bound the publication year inclusively. Zero leaves an end open.
	FromYear int
	ToYear   int

	OpenAccess   *bool
	ApprovedOnly bool
}

// IsEmpty reports whether no filter is set.
func (f Filters) IsEmpty() bool {
	return len(f.Clauses()) == 0
}

// Clauses returns one query per active filter.
func (f Filters) Clauses() []query.Query {
	var clauses []query.Query

	for _, set := range []struct {
		field string
		ids   []int64
	}{
		{search.FieldInstitutionIDs, f.InstitutionIDs},
		{search.FieldAuthorIDs, f.AuthorIDs},
		{search.FieldAdvisorIDs, f.AdvisorIDs},
		{search.FieldBoardMemberIDs, f.BoardMemberIDs},
	} {
		if len(set.ids) > 0 {
			clauses = append(clauses, idSetQuery(set.field, set.ids))
		}
	}

	if len(f.Types) > 0 {
		clauses = append(clauses, TypeQuery(f.Types...))
	}

	if f.FromYear > 0 || f.ToYear > 0 {
		clauses = append(clauses, yearRange(f.FromYear, f.ToYear))
	}

	if f.OpenAccess != nil {
		bq := bleve.NewBoolFieldQuery(*f.OpenAccess)
		bq.SetField(search.FieldOpenAccess)
		clauses = append(clauses, bq)
	}

	if f.ApprovedOnly {
		bq := bleve.NewBoolFieldQuery(true)
		bq.SetField(search.FieldIsApproved)
		clauses = append(clauses, bq)
	}

	return clauses
}

// TypeQuery matches entries whose type is any of types.
func TypeQuery(types ...domain.DocumentType) query.Query {
	disjuncts := make([]query.Query, len(types))
	for i, t := range types {
		tq := bleve.NewTermQuery(string(t))
		tq.SetField(search.FieldType)
		disjuncts[i] = tq
	}
	if len(disjuncts) == 1 {
		return disjuncts[0]
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

func idSetQuery(field string, ids []int64) query.Query {
	disjuncts := make([]query.Query, len(ids))
	for i, id := range ids {
		tq := bleve.NewTermQuery(search.IDTerm(id))
		tq.SetField(field)
		disjuncts[i] = tq
	}
	return bleve.NewDisjunctionQuery(disjuncts...)
}

// yearRange always carries a lower bound so entries with an unknown year
// never fall inside an open-ended range.
func yearRange(from, to int) query.Query {
	var hi *float64
	lo := float64(max(from, 0))
	if to > 0 {
		v := float64(to)
		hi = &v
	}
	inclusive := true
	rq := bleve.NewNumericRangeInclusiveQuery(&lo, hi, &inclusive, &inclusive)
	rq.SetField(search.FieldYear)
	return rq
}
