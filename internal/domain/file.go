package domain

// DocumentFile is a file attached to a document.
type DocumentFile struct {
	ID         int64  `json:"id"`
	DocumentID int64  `json:"document_id"`
	FileName   string `json:"file_name"`

	// IsProof marks supporting evidence (scans of certificates, etc.) that is never indexed.
	IsProof bool `json:"is_proof"`
}

// FileText is the extracted content of one file, produced by the extraction service.
type FileText struct {
	FileID       int64                 `json:"file_id"`
	Text         string                `json:"text"`
	Language     string                `json:"language"`
	Descriptions []MultiLingualContent `json:"descriptions,omitempty"`
}
