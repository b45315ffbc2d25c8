package utils

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	pageParam    = "page"
	limitParam   = "limit"
	defaultLimit = 10
	maxLimit     = 500
)

// Pagination is a resolved page request. The stats fields are filled by
// WithTotal once the listing knows how many rows match its filter.
type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Offset     int  `json:"offset"`
	Total      int  `json:"total_records"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// ParsePagination reads ?page= and ?limit= (both 1-based, positive).
// Limits above maxLimit are clamped.
func ParsePagination(q url.Values) (Pagination, error) {
	page, err := positiveParam(q, pageParam, 1)
	if err != nil {
		return Pagination{}, err
	}
	limit, err := positiveParam(q, limitParam, defaultLimit)
	if err != nil {
		return Pagination{}, err
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	return Pagination{Page: page, Limit: limit, Offset: (page - 1) * limit}, nil
}

func positiveParam(q url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(q.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s parameter: %s", key, raw)
	}
	return n, nil
}

// WithTotal returns p with the page stats for total matching rows.
func (p Pagination) WithTotal(total int) Pagination {
	p.Total = total
	p.TotalPages = 0
	if total > 0 {
		p.TotalPages = (total + p.Limit - 1) / p.Limit
	}
	p.HasNext = p.Page < p.TotalPages
	return p
}
