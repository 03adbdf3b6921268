package search

// DefaultPageSize applies when a request does not set a size.
const DefaultPageSize = 10

// PageRequest selects one page of results. Number is 0-based.
type PageRequest struct {
	Number int
	Size   int
	Sort   []string // Bleve sort fields, "-" prefix for descending
}

// Offset returns the index of the first hit of the page.
func (p PageRequest) Offset() int {
	return p.Number * p.Size
}

func (p PageRequest) normalized() PageRequest {
	if p.Number < 0 {
		p.Number = 0
	}
	if p.Size <= 0 {
		p.Size = DefaultPageSize
	}
	return p
}

// Page is one page of decoded entries.
type Page struct {
	Entries []*Entry `json:"entries"`
	Total   uint64   `json:"total"`
	Number  int      `json:"number"`
	Size    int      `json:"size"`
}

// IsLast reports whether the page is the end of the result set.
// A short page signals the end, which tolerates writes during a scan.
func (p *Page) IsLast() bool {
	return len(p.Entries) < p.Size
}
