package common

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

const (
	DefaultPageLimit = 10
	MaxPageLimit     = 100
)

// Pagination is the page window requested by a listing call.
type Pagination struct {
	Page   int
	Limit  int
	Offset int
}

// ParsePagination reads page and limit (or perPage) from the query string.
// Missing or invalid values fall back to page 1 and the default limit.
func ParsePagination(c echo.Context) Pagination {
	limitStr := c.QueryParam("perPage")
	if limitStr == "" {
		limitStr = c.QueryParam("limit")
	}
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	page, err := strconv.Atoi(c.QueryParam("page"))
	if err != nil || page <= 0 {
		page = 1
	}

	return Pagination{Page: page, Limit: limit, Offset: (page - 1) * limit}
}

// PaginatedResponse is the envelope of every paginated listing.
type PaginatedResponse[T any] struct {
	Data        []T     `json:"data"`
	CurrentPage int     `json:"currentPage"`
	Limit       int     `json:"limit"`
	TotalItems  int     `json:"totalItems"`
	TotalPages  int     `json:"totalPages"`
	NextPageURL *string `json:"nextPageUrl"`
	PrevPageURL *string `json:"prevPageUrl"`
}

// NewPaginatedResponse wraps data with page links that keep every other
// query parameter of the current request.
func NewPaginatedResponse[T any](c echo.Context, data []T, totalItems int, p Pagination) PaginatedResponse[T] {
	if data == nil {
		data = []T{}
	}
	totalPages := 0
	if p.Limit > 0 {
		totalPages = (totalItems + p.Limit - 1) / p.Limit
	}

	resp := PaginatedResponse[T]{
		Data:        data,
		CurrentPage: p.Page,
		Limit:       p.Limit,
		TotalItems:  totalItems,
		TotalPages:  totalPages,
	}
	if p.Page < totalPages {
		next := pageURL(c, p.Page+1)
		resp.NextPageURL = &next
	}
	if p.Page > 1 {
		prev := pageURL(c, p.Page-1)
		resp.PrevPageURL = &prev
	}
	return resp
}

func pageURL(c echo.Context, page int) string {
	req := c.Request()
	query := req.URL.Query()
	query.Set("page", strconv.Itoa(page))
	return c.Scheme() + "://" + req.Host + req.URL.Path + "?" + query.Encode()
}
