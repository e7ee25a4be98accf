package util

import (
	"math"
	"strconv"
	"strings"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
)

type SortField struct {
	Column string
	Desc   bool
}

// Page is the envelope every paginated listing is rendered with.
type Page[T any] struct {
	Results      []T   `json:"results"`
	Page         int   `json:"page"`
	Limit        int   `json:"limit"`
	TotalPages   int   `json:"totalPages"`
	TotalResults int64 `json:"totalResults"`
}

func Calculate(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = DefaultPageSize
	}
	if size > MaxPageSize {
		size = MaxPageSize
	}
	// keep (page-1)*size from overflowing
	if page > math.MaxInt/size {
		page = math.MaxInt / size
	}
	return (page - 1) * size, size
}

func TotalPages(total int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}

func ParseIntDefault(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}

// ParseSortBy reads "field:desc,field2:asc". Unknown fields are skipped; allowed maps the
// public field name to its column. An empty result falls back to def.
func ParseSortBy(s string, allowed map[string]string, def SortField) []SortField {
	var out []SortField
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, order, _ := strings.Cut(part, ":")
		col, ok := allowed[strings.TrimSpace(key)]
		if !ok {
			continue
		}
		out = append(out, SortField{Column: col, Desc: strings.EqualFold(strings.TrimSpace(order), "desc")})
	}
	if len(out) == 0 {
		return []SortField{def}
	}
	return out
}
