package domain

import "time"

// PersonSummary is what the person directory returns for a name lookup.
type PersonSummary struct {
	ID                       int64      `json:"id"`
	Name                     PersonName `json:"name"`
	EmploymentInstitutionIDs []int64    `json:"employment_institution_ids,omitempty"`

	// UserID is set when the person is linked to a user account.
	UserID *int64 `json:"user_id,omitempty"`
}

// DeclinedClaim records that a person rejected authorship of a document.
type DeclinedClaim struct {
	PersonID   int64     `json:"person_id"`
	DocumentID int64     `json:"document_id"`
	DeclinedAt time.Time `json:"declined_at"`
}

// DuplicateSuggestion records that two documents look like the same work.
// Resolution is a human decision made outside the pipeline.
type DuplicateSuggestion struct {
	DocumentID  int64     `json:"document_id"`
	DuplicateID int64     `json:"duplicate_id"`
	RunID       string    `json:"run_id"`
	FoundAt     time.Time `json:"found_at"`
}
