// Package search stores document index entries in Bleve and runs query trees
// built by the query package.
package search

import (
	"slices"
	"strconv"

	"github.com/crisrs/cris-server/internal/dates"
	"github.com/crisrs/cris-server/internal/domain"
)

// UnresolvedID marks a contribution slot without a linked person in the id lists.
const UnresolvedID int64 = -1

// Claim pairs a candidate person with the author slot they could fill.
// Ordinal is the 0-based position in AuthorIDs.
type Claim struct {
	PersonID int64 `json:"person_id"`
	Ordinal  int   `json:"ordinal"`
}

// Entry is the denormalized projection of one document.
// It is always written whole; the id lists are positionally aligned with the
// "; "-joined name strings of the same role.
type Entry struct {
	DatabaseID int64               `json:"database_id"`
	Type       domain.DocumentType `json:"type"`

	TitleSr          string `json:"title_sr"`
	TitleOther       string `json:"title_other"`
	DescriptionSr    string `json:"description_sr"`
	DescriptionOther string `json:"description_other"`
	KeywordsSr       string `json:"keywords_sr"`
	KeywordsOther    string `json:"keywords_other"`
	FullTextSr       string `json:"full_text_sr"`
	FullTextOther    string `json:"full_text_other"`

	Year int    `json:"year"` // dates.Unknown when unparseable
	DOI  string `json:"doi,omitempty"`

	AuthorNames      string  `json:"author_names"`
	AuthorIDs        []int64 `json:"author_ids"`
	EditorNames      string  `json:"editor_names"`
	EditorIDs        []int64 `json:"editor_ids"`
	AdvisorNames     string  `json:"advisor_names"`
	AdvisorIDs       []int64 `json:"advisor_ids"`
	ReviewerNames    string  `json:"reviewer_names"`
	ReviewerIDs      []int64 `json:"reviewer_ids"`
	BoardMemberNames string  `json:"board_member_names"`
	BoardMemberIDs   []int64 `json:"board_member_ids"`

	Claims []Claim `json:"claims"`

	ResearchOutputIDs []int64 `json:"research_output_ids"`
	InstitutionIDs    []int64 `json:"institution_ids"`

	IsApproved bool `json:"is_approved"`
	OpenAccess bool `json:"open_access"`
}

// NewEntry returns an empty entry keyed by id.
func NewEntry(id int64) *Entry {
	return &Entry{DatabaseID: id, Year: dates.Unknown}
}

// DocID is the Bleve document id of the entry.
func (e *Entry) DocID() string {
	return DocID(e.DatabaseID)
}

// DocID converts a database id to a Bleve document id.
func DocID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// HasUnresolvedAuthor reports whether any author slot is unclaimed.
func (e *Entry) HasUnresolvedAuthor() bool {
	return slices.Contains(e.AuthorIDs, UnresolvedID)
}

// UnresolvedAuthorSlots returns the ordinals of unclaimed author slots.
func (e *Entry) UnresolvedAuthorSlots() []int {
	var slots []int
	for i, id := range e.AuthorIDs {
		if id == UnresolvedID {
			slots = append(slots, i)
		}
	}
	return slots
}

// HasAuthor reports whether personID is bound to any author slot.
func (e *Entry) HasAuthor(personID int64) bool {
	return personID != UnresolvedID && slices.Contains(e.AuthorIDs, personID)
}

// ClaimFor returns the first claim held by personID.
func (e *Entry) ClaimFor(personID int64) (Claim, bool) {
	for _, c := range e.Claims {
		if c.PersonID == personID {
			return c, true
		}
	}
	return Claim{}, false
}

// AddClaim appends a claim unless the same pair is already present.
func (e *Entry) AddClaim(c Claim) {
	if slices.Contains(e.Claims, c) {
		return
	}
	e.Claims = append(e.Claims, c)
}

// RemoveClaimsOf drops every claim held by personID and returns how many were removed.
func (e *Entry) RemoveClaimsOf(personID int64) int {
	before := len(e.Claims)
	e.Claims = slices.DeleteFunc(e.Claims, func(c Claim) bool {
		return c.PersonID == personID
	})
	return before - len(e.Claims)
}

// ClearClaims drops every claim.
func (e *Entry) ClearClaims() {
	e.Claims = nil
}

// ClaimedPersonIDs returns the distinct candidate ids in claim order.
func (e *Entry) ClaimedPersonIDs() []int64 {
	ids := make([]int64, 0, len(e.Claims))
	for _, c := range e.Claims {
		if !slices.Contains(ids, c.PersonID) {
			ids = append(ids, c.PersonID)
		}
	}
	return ids
}

// ToMap converts the entry to the field layout of the index mapping.
// The whole entry is also kept as stored JSON under FieldSource.
func (e *Entry) ToMap(source string) map[string]any {
	m := map[string]any{
		FieldDatabaseID: float64(e.DatabaseID),
		FieldType:       string(e.Type),
		FieldYear:       float64(e.Year),
		FieldIsApproved: e.IsApproved,
		FieldOpenAccess: e.OpenAccess,
		FieldSource:     source,
	}

	text := map[string]string{
		FieldTitleSr:          e.TitleSr,
		FieldTitleOther:       e.TitleOther,
		FieldDescriptionSr:    e.DescriptionSr,
		FieldDescriptionOther: e.DescriptionOther,
		FieldKeywordsSr:       e.KeywordsSr,
		FieldKeywordsOther:    e.KeywordsOther,
		FieldFullTextSr:       e.FullTextSr,
		FieldFullTextOther:    e.FullTextOther,
		FieldDOI:              e.DOI,
		FieldAuthorNames:      e.AuthorNames,
		FieldEditorNames:      e.EditorNames,
		FieldAdvisorNames:     e.AdvisorNames,
		FieldReviewerNames:    e.ReviewerNames,
		FieldBoardMemberNames: e.BoardMemberNames,
	}
	for field, value := range text {
		if value != "" {
			m[field] = value
		}
	}

	ids := map[string][]int64{
		FieldAuthorIDs:         e.AuthorIDs,
		FieldEditorIDs:         e.EditorIDs,
		FieldAdvisorIDs:        e.AdvisorIDs,
		FieldReviewerIDs:       e.ReviewerIDs,
		FieldBoardMemberIDs:    e.BoardMemberIDs,
		FieldClaimedPersonIDs:  e.ClaimedPersonIDs(),
		FieldResearchOutputIDs: e.ResearchOutputIDs,
		FieldInstitutionIDs:    e.InstitutionIDs,
	}
	for field, values := range ids {
		if len(values) > 0 {
			m[field] = idTerms(values)
		}
	}

	return m
}

// IDTerm is the keyword form of an id in the id-list fields.
func IDTerm(id int64) string {
	return strconv.FormatInt(id, 10)
}

func idTerms(ids []int64) []string {
	terms := make([]string, len(ids))
	for i, id := range ids {
		terms[i] = IDTerm(id)
	}
	return terms
}
