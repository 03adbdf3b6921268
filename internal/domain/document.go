// Package domain holds the canonical research records the indexing pipeline reads.
// The CRUD layer owns these records; the pipeline only projects them.
package domain

// DocumentType tags the kind of research output a document is.
type DocumentType string

// Document types known to the index.
const (
	TypeJournalPublication     DocumentType = "JOURNAL_PUBLICATION"
	TypeProceedingsPublication DocumentType = "PROCEEDINGS_PUBLICATION"
	TypeProceedings            DocumentType = "PROCEEDINGS"
	TypeMonograph              DocumentType = "MONOGRAPH"
	TypeMonographPublication   DocumentType = "MONOGRAPH_PUBLICATION"
	TypeThesis                 DocumentType = "THESIS"
	TypePatent                 DocumentType = "PATENT"
	TypeSoftware               DocumentType = "SOFTWARE"
	TypeDataset                DocumentType = "DATASET"
)

// AllDocumentTypes lists every type in a stable order.
func AllDocumentTypes() []DocumentType {
	return []DocumentType{
		TypeJournalPublication,
		TypeProceedingsPublication,
		TypeProceedings,
		TypeMonograph,
		TypeMonographPublication,
		TypeThesis,
		TypePatent,
		TypeSoftware,
		TypeDataset,
	}
}

// IsValid checks if the type is a recognized value.
func (t DocumentType) IsValid() bool {
	for _, known := range AllDocumentTypes() {
		if t == known {
			return true
		}
	}
	return false
}

// RequiresApproval reports whether documents of this type are only searchable
// while APPROVED. Theses are indexed in every state and filtered on the approval flag.
func (t DocumentType) RequiresApproval() bool {
	return t != TypeThesis
}

// ApprovalStatus is the editorial state of a document.
type ApprovalStatus string

// Approval states.
const (
	ApprovalRequested ApprovalStatus = "REQUESTED"
	ApprovalApproved  ApprovalStatus = "APPROVED"
	ApprovalDeclined  ApprovalStatus = "DECLINED"
)

// Document is a canonical publication record.
type Document struct {
	ID             int64                 `json:"id"`
	Type           DocumentType          `json:"type"`
	Title          []MultiLingualContent `json:"title"`
	Subtitle       []MultiLingualContent `json:"subtitle,omitempty"`
	Description    []MultiLingualContent `json:"description,omitempty"`
	Keywords       []MultiLingualContent `json:"keywords,omitempty"`
	DocumentDate   string                `json:"document_date,omitempty"` // free-form, see dates.ParseYear
	DOI            string                `json:"doi,omitempty"`
	ApprovalStatus ApprovalStatus        `json:"approval_status"`
	OpenAccess     bool                  `json:"open_access"`

	// ResearchOutputIDs links a thesis to the documents produced from it.
	ResearchOutputIDs []int64 `json:"research_output_ids,omitempty"`

	Contributions []Contribution `json:"contributions,omitempty"`
	Files         []DocumentFile `json:"files,omitempty"`
}

// IsApproved reports whether the document is in the APPROVED state.
func (d *Document) IsApproved() bool {
	return d.ApprovalStatus == ApprovalApproved
}

// Searchable reports whether the document should have an index entry.
func (d *Document) Searchable() bool {
	return !d.Type.RequiresApproval() || d.IsApproved()
}

// MultiLingualContent is one language variant of a text field.
type MultiLingualContent struct {
	LanguageTag string `json:"language_tag"`
	Content     string `json:"content"`
	Priority    int    `json:"priority"`
}
