// Package indexing projects canonical documents into search index entries and
// keeps the index in step with document writes.
package indexing

import (
	"context"
	"slices"
	"strings"

	"github.com/crisrs/cris-server/internal/dates"
	"github.com/crisrs/cris-server/internal/domain"
	"github.com/crisrs/cris-server/internal/multilingual"
	"github.com/crisrs/cris-server/internal/search"
)

// NameSeparator joins contributor display names within a role.
const NameSeparator = "; "

// roleAccessor points at the name string and id list a role writes to.
type roleAccessor struct {
	names func(e *search.Entry) *string
	ids   func(e *search.Entry) *[]int64
}

var roleAccessors = map[domain.ContributionRole]roleAccessor{
	domain.RoleAuthor: {
		names: func(e *search.Entry) *string { return &e.AuthorNames },
		ids:   func(e *search.Entry) *[]int64 { return &e.AuthorIDs },
	},
	domain.RoleEditor: {
		names: func(e *search.Entry) *string { return &e.EditorNames },
		ids:   func(e *search.Entry) *[]int64 { return &e.EditorIDs },
	},
	domain.RoleAdvisor: {
		names: func(e *search.Entry) *string { return &e.AdvisorNames },
		ids:   func(e *search.Entry) *[]int64 { return &e.AdvisorIDs },
	},
	domain.RoleReviewer: {
		names: func(e *search.Entry) *string { return &e.ReviewerNames },
		ids:   func(e *search.Entry) *[]int64 { return &e.ReviewerIDs },
	},
	domain.RoleBoardMember: {
		names: func(e *search.Entry) *string { return &e.BoardMemberNames },
		ids:   func(e *search.Entry) *[]int64 { return &e.BoardMemberIDs },
	},
}

// Projector maps a document onto its index entry.
type Projector struct {
	reducer *multilingual.Reducer
	files   *FileTextAggregator
}

// NewProjector creates a projector. files may be nil, in which case the
// full-text fields stay empty.
func NewProjector(reducer *multilingual.Reducer, files *FileTextAggregator) *Projector {
	return &Projector{reducer: reducer, files: files}
}

// Project recomputes every field the projector owns from doc. Nothing owned
// survives from existing; only claims on slots that are still unresolved are
// carried over. existing may be nil.
func (p *Projector) Project(ctx context.Context, doc *domain.Document, existing *search.Entry) (*search.Entry, error) {
	e := search.NewEntry(doc.ID)
	e.Type = doc.Type
	e.DOI = strings.TrimSpace(doc.DOI)
	e.IsApproved = doc.IsApproved()
	e.OpenAccess = doc.OpenAccess
	e.Year = dates.YearOrUnknown(doc.DocumentDate)

	title := p.reducer.Reduce(doc.Title, doc.Subtitle)
	e.TitleSr, e.TitleOther = title.Primary, title.Other

	description := p.reducer.ReduceFunc(multilingual.StripHTML, doc.Description)
	e.DescriptionSr, e.DescriptionOther = description.Primary, description.Other

	keywords := p.reducer.Reduce(doc.Keywords)
	e.KeywordsSr, e.KeywordsOther = keywords.Primary, keywords.Other

	if p.files != nil {
		fullText, err := p.files.Aggregate(ctx, doc.Files)
		if err != nil {
			return nil, err
		}
		e.FullTextSr, e.FullTextOther = fullText.Primary, fullText.Other
	}

	projectContributions(e, doc.Contributions)

	if doc.Type == domain.TypeThesis && len(doc.ResearchOutputIDs) > 0 {
		e.ResearchOutputIDs = slices.Clone(doc.ResearchOutputIDs)
		slices.Sort(e.ResearchOutputIDs)
	}

	if existing != nil {
		carryClaims(e, existing.Claims)
	}

	return e, nil
}

func projectContributions(e *search.Entry, contributions []domain.Contribution) {
	sorted := slices.Clone(contributions)
	domain.SortContributions(sorted)

	names := make(map[domain.ContributionRole][]string, len(roleAccessors))
	var institutions []int64

	for _, c := range sorted {
		acc, ok := roleAccessors[c.Role]
		if !ok {
			continue
		}
		names[c.Role] = append(names[c.Role], c.Name.Display())

		ids := acc.ids(e)
		if c.PersonID != nil {
			*ids = append(*ids, *c.PersonID)
		} else {
			*ids = append(*ids, search.UnresolvedID)
		}

		for _, id := range c.InstitutionIDs {
			if !slices.Contains(institutions, id) {
				institutions = append(institutions, id)
			}
		}
	}

	for role, acc := range roleAccessors {
		*acc.names(e) = strings.Join(names[role], NameSeparator)
	}

	slices.Sort(institutions)
	e.InstitutionIDs = institutions
}

// carryClaims keeps claims that still point at an unresolved author slot and
// whose person is not bound elsewhere on the document.
func carryClaims(e *search.Entry, claims []search.Claim) {
	for _, c := range claims {
		if c.Ordinal < 0 || c.Ordinal >= len(e.AuthorIDs) {
			continue
		}
		if e.AuthorIDs[c.Ordinal] != search.UnresolvedID || e.HasAuthor(c.PersonID) {
			continue
		}
		e.AddClaim(c)
	}
}
