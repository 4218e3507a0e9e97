package shared

// Page describes a requested slice of a listing
type Page struct {
	Number int
	Size   int
}

// DefaultPage returns the first page with the default size
func DefaultPage() Page {
	return Page{Number: 1, Size: 20}
}

// Normalize clamps page bounds to sane values
func (p Page) Normalize() Page {
	if p.Number < 1 {
		p.Number = 1
	}
	if p.Size < 1 {
		p.Size = 20
	}
	if p.Size > 500 {
		p.Size = 500
	}
	return p
}

// Offset returns the row offset of the page
func (p Page) Offset() int {
	return (p.Number - 1) * p.Size
}

// Paginated represents a paginated result
type Paginated[T any] struct {
	Items      []T   `json:"items"`
	Total      int64 `json:"total"`
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	TotalPages int   `json:"total_pages"`
}

// NewPaginated creates a new paginated result
func NewPaginated[T any](items []T, total int64, page, pageSize int) Paginated[T] {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(total) / pageSize
		if int(total)%pageSize > 0 {
			totalPages++
		}
	}
	return Paginated[T]{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages,
	}
}
