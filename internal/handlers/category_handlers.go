package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"storefront/internal/common"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// CategoryHandlers handles category-related HTTP requests
type CategoryHandlers struct {
	categoryService services.CategoryService
	log             *logger.Logger
}

// NewCategoryHandlers creates a new category handlers instance
func NewCategoryHandlers(categoryService services.CategoryService, log *logger.Logger) *CategoryHandlers {
	return &CategoryHandlers{
		categoryService: categoryService,
		log:             log,
	}
}

// RelatedCategoriesResponse lists a category and all of its descendants.
type RelatedCategoriesResponse struct {
	Slug        string      `json:"slug"`
	CategoryIDs []uuid.UUID `json:"category_ids"`
}

// ListCategories handles GET /categories. With ?slug= it returns the ids of
// that category and its subcategories instead of a page.
func (h *CategoryHandlers) ListCategories(c echo.Context) error {
	ctx := c.Request().Context()

	if slug := strings.TrimSpace(c.QueryParam("slug")); slug != "" {
		ids, err := h.categoryService.RelatedCategoryIDs(ctx, slug)
		if err != nil {
			return respondError(c, h.log, err, "categories")
		}
		return c.JSON(http.StatusOK, RelatedCategoriesResponse{Slug: slug, CategoryIDs: ids})
	}

	p := common.ParsePagination(c)
	categories, total, err := h.categoryService.List(ctx, p.Limit, p.Offset)
	if err != nil {
		return respondError(c, h.log, err, "categories")
	}
	return c.JSON(http.StatusOK, common.NewPaginatedResponse(c, categories, total, p))
}

// GetTree handles GET /categories/tree
func (h *CategoryHandlers) GetTree(c echo.Context) error {
	tree, err := h.categoryService.Tree(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, err, "category tree")
	}
	return c.JSON(http.StatusOK, tree)
}

// GetFlatTree handles GET /categories/tree/flat
func (h *CategoryHandlers) GetFlatTree(c echo.Context) error {
	flat, err := h.categoryService.FlatTree(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, err, "category tree")
	}
	return c.JSON(http.StatusOK, flat)
}

// AuditTree handles GET /categories/audit
func (h *CategoryHandlers) AuditTree(c echo.Context) error {
	violations, err := h.categoryService.Audit(c.Request().Context())
	if err != nil {
		return respondError(c, h.log, err, "category audit")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"consistent": len(violations) == 0,
		"violations": violations,
	})
}

// GetCategory handles GET /categories/:id
func (h *CategoryHandlers) GetCategory(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	category, err := h.categoryService.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err, "category")
	}
	return c.JSON(http.StatusOK, category)
}

// CreateCategoryRequest represents the category creation request payload
type CreateCategoryRequest struct {
	Name   string  `json:"name" validate:"required"`
	Parent *string `json:"parent"` // Optional parent category ID
}

// CreateCategory handles POST /categories
func (h *CategoryHandlers) CreateCategory(c echo.Context) error {
	var req CreateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "name", "name is required")
	}

	var parentID *uuid.UUID
	if req.Parent != nil && *req.Parent != "" {
		id, err := common.ValidateUUID(*req.Parent, "parent")
		if err != nil {
			return common.SendValidationError(c, "parent", err.Error())
		}
		parentID = &id
	}

	category, err := h.categoryService.Create(c.Request().Context(), req.Name, parentID)
	if err != nil {
		return respondError(c, h.log, err, "category")
	}
	return c.JSON(http.StatusCreated, category)
}

// UpdateCategoryRequest represents the category update payload. Parent is
// kept raw so that an explicit null (move to root) can be told apart from an
// omitted field (keep the current parent).
type UpdateCategoryRequest struct {
	Name   *string         `json:"name"`
	Parent json.RawMessage `json:"parent"`
}

func (r UpdateCategoryRequest) toUpdate() (models.CategoryUpdate, error) {
	update := models.CategoryUpdate{Name: r.Name}
	if len(r.Parent) == 0 {
		return update, nil
	}

	update.ParentSet = true
	if bytes.Equal(bytes.TrimSpace(r.Parent), []byte("null")) {
		return update, nil
	}

	var raw string
	if err := json.Unmarshal(r.Parent, &raw); err != nil {
		return update, errors.New("parent must be a category id or null")
	}
	if raw == "" {
		return update, nil
	}
	id, err := common.ValidateUUID(raw, "parent")
	if err != nil {
		return update, err
	}
	update.ParentID = &id
	return update, nil
}

// UpdateCategory handles PUT /categories/:id
func (h *CategoryHandlers) UpdateCategory(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req UpdateCategoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	update, err := req.toUpdate()
	if err != nil {
		return common.SendValidationError(c, "parent", err.Error())
	}

	category, _, err := h.categoryService.Update(c.Request().Context(), id, update)
	var cascadeErr *services.CascadeError
	if errors.As(err, &cascadeErr) {
		return respondCascade(c, h.log, cascadeErr, category)
	}
	if err != nil {
		return respondError(c, h.log, err, "category")
	}
	return c.JSON(http.StatusOK, category)
}

// DeleteCategory handles DELETE /categories/:id. Children move up to the
// deleted category's parent.
func (h *CategoryHandlers) DeleteCategory(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	_, err = h.categoryService.Delete(c.Request().Context(), id)
	var cascadeErr *services.CascadeError
	if errors.As(err, &cascadeErr) {
		return respondCascade(c, h.log, cascadeErr, nil)
	}
	if err != nil {
		return respondError(c, h.log, err, "category")
	}
	return c.NoContent(http.StatusNoContent)
}
