package client

// Page is the pagination envelope returned by every list endpoint
type Page[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// HasNext reports whether the server has results after this page
func (p *Page[T]) HasNext() bool {
	return p.Next != nil && *p.Next != ""
}

// HasPrevious reports whether a page exists before this one
func (p *Page[T]) HasPrevious() bool {
	return p.Previous != nil && *p.Previous != ""
}

// PageCount returns the number of pages for the given page size
func (p *Page[T]) PageCount(pageSize int) int {
	if pageSize <= 0 || p.Count == 0 {
		return 0
	}
	return (p.Count + pageSize - 1) / pageSize
}

// normalize guarantees Results is never nil so empty collections compare
// equal regardless of how the server encoded them
func (p *Page[T]) normalize() {
	if p.Results == nil {
		p.Results = []T{}
	}
}
