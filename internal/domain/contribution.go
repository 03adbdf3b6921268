package domain

import (
	"sort"
	"strings"
)

// ContributionRole defines how a person contributed to a document.
type ContributionRole string

// Contribution roles with a dedicated name/id list in the index.
const (
	RoleAuthor      ContributionRole = "AUTHOR"
	RoleEditor      ContributionRole = "EDITOR"
	RoleAdvisor     ContributionRole = "ADVISOR"
	RoleReviewer    ContributionRole = "REVIEWER"
	RoleBoardMember ContributionRole = "BOARD_MEMBER"
)

// IsValid checks if the role is a recognized value.
func (r ContributionRole) IsValid() bool {
	switch r {
	case RoleAuthor, RoleEditor, RoleAdvisor, RoleReviewer, RoleBoardMember:
		return true
	default:
		return false
	}
}

// PersonName is a name as written on a work.
type PersonName struct {
	FirstName string `json:"first_name,omitempty"`
	OtherName string `json:"other_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}

// Display joins the non-empty name parts with single spaces.
func (n PersonName) Display() string {
	parts := make([]string, 0, 3)
	for _, p := range []string{n.FirstName, n.OtherName, n.LastName} {
		if p = strings.Join(strings.Fields(p), " "); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

// Contribution links a document to a person, or to a stated name only.
type Contribution struct {
	ID          int64            `json:"id"`
	DocumentID  int64            `json:"document_id"`
	Role        ContributionRole `json:"role"`
	OrderNumber int              `json:"order_number"` // 1-based

	// PersonID is nil for an unresolved (unclaimed) slot.
	PersonID *int64 `json:"person_id,omitempty"`

	// Name is the name snapshot stated on the work.
	Name PersonName `json:"name"`

	// InstitutionIDs are the affiliations stated on the work.
	InstitutionIDs []int64 `json:"institution_ids,omitempty"`
}

// IsResolved reports whether the slot is bound to a person.
func (c *Contribution) IsResolved() bool {
	return c.PersonID != nil
}

// SortContributions orders contributions by order number, then by id.
func SortContributions(cs []Contribution) {
	sort.SliceStable(cs, func(i, j int) bool {
		if cs[i].OrderNumber != cs[j].OrderNumber {
			return cs[i].OrderNumber < cs[j].OrderNumber
		}
		return cs[i].ID < cs[j].ID
	})
}

// ContributionsWithRole returns the contributions of one role in authorship order.
func ContributionsWithRole(cs []Contribution, role ContributionRole) []Contribution {
	var out []Contribution
	for _, c := range cs {
		if c.Role == role {
			out = append(out, c)
		}
	}
	SortContributions(out)
	return out
}
