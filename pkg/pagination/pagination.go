// Package pagination provides pure helpers for page/pageSize parsing and
// response metadata. No I/O; everything is computed per request.
package pagination

// DefaultPageSize is used when the caller supplies no pageSize.
const DefaultPageSize = 20

// MaxPageSize is the hard cap on pageSize when no other cap is configured.
const MaxPageSize = 100

// Request is a normalized pagination request.
type Request struct {
	Page     int
	PageSize int
}

// Response carries pagination metadata alongside a page of results.
type Response struct {
	Page        int  `json:"page"`
	PageSize    int  `json:"page_size"`
	Offset      int  `json:"offset"`
	Limit       int  `json:"limit"`
	TotalItems  int  `json:"total_items"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// Parse normalizes raw page/pageSize values: page defaults to 1 when absent
// or non-positive, pageSize is clamped to [1, maxPageSize]. A maxPageSize
// <= 0 falls back to MaxPageSize.
func Parse(rawPage, rawPageSize, maxPageSize int) Request {
	if maxPageSize <= 0 {
		maxPageSize = MaxPageSize
	}

	page := rawPage
	if page <= 0 {
		page = 1
	}

	pageSize := rawPageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return Request{Page: page, PageSize: pageSize}
}

// Offset returns the row offset for this request.
func (r Request) Offset() int {
	return (r.Page - 1) * r.PageSize
}

// BuildResponse computes response metadata for a page of results.
func BuildResponse(totalItems int, req Request) Response {
	if totalItems < 0 {
		totalItems = 0
	}

	totalPages := 0
	if totalItems > 0 {
		totalPages = (totalItems + req.PageSize - 1) / req.PageSize
	}

	return Response{
		Page:        req.Page,
		PageSize:    req.PageSize,
		Offset:      req.Offset(),
		Limit:       req.PageSize,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
		HasNext:     req.Page < totalPages,
		HasPrevious: req.Page > 1,
	}
}
