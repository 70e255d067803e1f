package services

import (
	"strings"

	"mdmc/internal/errs"
	"mdmc/internal/store"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
	MaxLimit     = 100
)

// PageParams is the caller's paging and sorting request. Sort uses the API
// field name (e.g. createdAt).
type PageParams struct {
	Page  int    `query:"page"`
	Limit int    `query:"limit"`
	Sort  string `query:"sortBy"`
	Order string `query:"sortOrder"`
}

// Pagination describes the page returned alongside a list.
type Pagination struct {
	Page    int   `json:"page"`
	Limit   int   `json:"limit"`
	Total   int64 `json:"total"`
	Pages   int   `json:"pages"`
	HasNext bool  `json:"hasNext"`
	HasPrev bool  `json:"hasPrev"`
}

func NewPagination(page, limit int, total int64) Pagination {
	pages := 0
	if limit > 0 {
		pages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{
		Page:    page,
		Limit:   limit,
		Total:   total,
		Pages:   pages,
		HasNext: page < pages,
		HasPrev: page > 1,
	}
}

// apply fills q's paging and sort from p. sortable maps API field names to
// storage columns; an unknown field is a validation error.
func (p PageParams) apply(q store.Query, sortable map[string]string) (store.Query, error) {
	q.Page = p.Page
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	q.Limit = p.Limit
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}

	if p.Sort != "" {
		col, ok := sortable[p.Sort]
		if !ok {
			return q, errs.Validationf("Cannot sort by %q", p.Sort)
		}
		q.Sort = col
	}

	switch strings.ToLower(p.Order) {
	case "":
		q.Order = store.Desc
	case "asc":
		q.Order = store.Asc
	case "desc":
		q.Order = store.Desc
	default:
		return q, errs.Validation("sortOrder must be asc or desc")
	}
	return q, nil
}
