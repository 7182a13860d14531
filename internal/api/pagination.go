package api

import (
	"math"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vietddude/docsite/internal/core/domain"
)

const (
	defaultPage     = 1
	defaultPageSize = 10
	maxPageSize     = 100
)

// parsePagination reads ?page and ?pageSize. Missing values take defaults;
// anything non-integer or out of range is rejected.
func parsePagination(c echo.Context) (page, pageSize int, ok bool) {
	page, ok = intParam(c, "page", defaultPage)
	if !ok {
		return 0, 0, false
	}
	pageSize, ok = intParam(c, "pageSize", defaultPageSize)
	if !ok {
		return 0, 0, false
	}
	if page < 1 || pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, false
	}
	// The row offset must fit in an int.
	if page-1 > math.MaxInt/pageSize {
		return 0, 0, false
	}
	return page, pageSize, true
}

func intParam(c echo.Context, name string, def int) (int, bool) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

func pageOf(page, pageSize int) domain.Page {
	return domain.PageFor(page, pageSize)
}

func totalPages(total int64, pageSize int) int64 {
	if pageSize <= 0 {
		return 0
	}
	return (total + int64(pageSize) - 1) / int64(pageSize)
}
