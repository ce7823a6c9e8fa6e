package utils

import (
	"strconv"
	"strings"
)

// Pagination describes one 1-indexed window over an ordered listing.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
}

// Paginate resolves a raw page query against the total row count.
// Out-of-range and non-numeric page numbers clamp to the nearest valid page
// instead of failing; an empty listing is a single page with zero items.
func Paginate(total int64, pageSize int, pageQuery string) Pagination {
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	if totalPages < 1 {
		totalPages = 1
	}

	page, err := strconv.Atoi(strings.TrimSpace(pageQuery))
	if err != nil || page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}

	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
	}
}

// Offset is the number of rows to skip for this page.
func (p Pagination) Offset() int {
	return (p.Page - 1) * p.PageSize
}
