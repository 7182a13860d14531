package domain

import "math"

// Page bounds a list query. A zero Limit or Offset means unbounded.
type Page struct {
	Limit  int
	Offset int
}

// PageFor converts 1-based page numbering into a limit/offset window. An
// offset that would overflow saturates at math.MaxInt, which matches no rows.
func PageFor(page, pageSize int) Page {
	if page < 1 {
		page = 1
	}
	if pageSize > 0 && page-1 > math.MaxInt/pageSize {
		return Page{Limit: pageSize, Offset: math.MaxInt}
	}
	return Page{Limit: pageSize, Offset: (page - 1) * pageSize}
}
