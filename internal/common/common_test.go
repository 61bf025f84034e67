package common

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newContext(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	return e.NewContext(req, httptest.NewRecorder())
}

func TestValidateUUID(t *testing.T) {
	_, err := ValidateUUID("", "id")
	assert.ErrorContains(t, err, "id is required")

	_, err = ValidateUUID("123", "id")
	assert.ErrorContains(t, err, "36 characters")

	_, err = ValidateUUID("123e4567xe89b-12d3-a456-426614174000", "id")
	assert.ErrorContains(t, err, "hyphens")

	id, err := ValidateUUID(" 123e4567-e89b-12d3-a456-426614174000 ", "id")
	require.NoError(t, err)
	assert.Equal(t, "123e4567-e89b-12d3-a456-426614174000", id.String())
}

func TestParsePagination(t *testing.T) {
	p := ParsePagination(newContext("/v1/products"))
	assert.Equal(t, Pagination{Page: 1, Limit: 10, Offset: 0}, p)

	p = ParsePagination(newContext("/v1/products?page=3&limit=20"))
	assert.Equal(t, Pagination{Page: 3, Limit: 20, Offset: 40}, p)

	p = ParsePagination(newContext("/v1/products?page=-2&perPage=500"))
	assert.Equal(t, Pagination{Page: 1, Limit: MaxPageLimit, Offset: 0}, p)
}

func TestNewPaginatedResponse_Links(t *testing.T) {
	c := newContext("/v1/products?category=phones&page=2&limit=10")
	resp := NewPaginatedResponse(c, []string{"a"}, 35, ParsePagination(c))

	assert.Equal(t, 4, resp.TotalPages)
	require.NotNil(t, resp.NextPageURL)
	require.NotNil(t, resp.PrevPageURL)

	next, err := url.Parse(*resp.NextPageURL)
	require.NoError(t, err)
	assert.Equal(t, "/v1/products", next.Path)
	assert.Equal(t, "3", next.Query().Get("page"))
	assert.Equal(t, "phones", next.Query().Get("category"))

	prev, err := url.Parse(*resp.PrevPageURL)
	require.NoError(t, err)
	assert.Equal(t, "1", prev.Query().Get("page"))
}

func TestNewPaginatedResponse_Empty(t *testing.T) {
	c := newContext("/v1/products")
	resp := NewPaginatedResponse[string](c, nil, 0, ParsePagination(c))

	assert.NotNil(t, resp.Data)
	assert.Equal(t, 0, resp.TotalPages)
	assert.Nil(t, resp.NextPageURL)
	assert.Nil(t, resp.PrevPageURL)
}

func TestParseSort(t *testing.T) {
	allowed := []string{"name", "price"}

	assert.Equal(t, Sort{Field: "price", Order: "desc"}, ParseSort("-price", allowed, "name"))
	assert.Equal(t, Sort{Field: "price", Order: "asc"}, ParseSort("price", allowed, "name"))
	assert.Equal(t, Sort{Field: "name", Order: "asc"}, ParseSort("-quantity", allowed, "name"))
	assert.Equal(t, Sort{Field: "name", Order: "asc"}, ParseSort("", allowed, "name"))
}

func TestPermissions(t *testing.T) {
	ctx := WithPrincipal(context.Background(), "auth0|42", []string{"read:inventory", "update:products"})

	subject, ok := GetSubjectFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, "auth0|42", subject)
	assert.True(t, HasPermission(ctx, "update:products"))
	assert.False(t, HasPermission(ctx, "delete:products"))
	assert.True(t, IsStaff(ctx))
	assert.False(t, IsStaff(context.Background()))
}
