package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"storefront/internal/common"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/labstack/echo/v4"
)

var (
	publicProductSortFields = []string{"name", "price", "created_at"}
	staffProductSortFields  = []string{"name", "price", "created_at", "quantity"}
)

// ProductHandlers handles HTTP requests for products
type ProductHandlers struct {
	productService services.ProductService
	log            *logger.Logger
}

// NewProductHandlers creates a new product handlers instance
func NewProductHandlers(productService services.ProductService, log *logger.Logger) *ProductHandlers {
	return &ProductHandlers{
		productService: productService,
		log:            log,
	}
}

// CreateProductRequest represents the product creation payload. Category is
// the leaf category; the stored chain is derived from it.
type CreateProductRequest struct {
	SKU         string  `json:"sku" validate:"required"`
	Name        string  `json:"name" validate:"required"`
	Description string  `json:"description" validate:"required,max=1000"`
	Price       float64 `json:"price" validate:"gte=0"`
	Quantity    *int    `json:"quantity" validate:"omitempty,gte=0"`
	Category    string  `json:"category" validate:"required"`
}

// UpdateProductRequest represents the product update payload
type UpdateProductRequest struct {
	SKU         *string  `json:"sku"`
	Name        *string  `json:"name"`
	Description *string  `json:"description" validate:"omitempty,max=1000"`
	Price       *float64 `json:"price" validate:"omitempty,gte=0"`
	Quantity    *int     `json:"quantity" validate:"omitempty,gte=0"`
	Category    *string  `json:"category"`
}

// AssignCategoryRequest represents PUT /products/:id/category
type AssignCategoryRequest struct {
	Category string `json:"category" validate:"required"`
}

// sanitizeProduct hides inventory from callers without staff access.
func sanitizeProduct(c echo.Context, p *models.Product) *models.Product {
	if p == nil || common.IsStaff(c.Request().Context()) {
		return p
	}
	public := *p
	public.Quantity = nil
	return &public
}

func sanitizeProducts(c echo.Context, products []*models.Product) []*models.Product {
	out := make([]*models.Product, 0, len(products))
	for _, p := range products {
		out = append(out, sanitizeProduct(c, p))
	}
	return out
}

func parseFloatParam(c echo.Context, name string) (*float64, error) {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// ListProducts handles GET /products
func (h *ProductHandlers) ListProducts(c echo.Context) error {
	ctx := c.Request().Context()
	staff := common.IsStaff(ctx)
	p := common.ParsePagination(c)

	query := services.ProductQuery{
		CategorySlug: strings.TrimSpace(c.QueryParam("category")),
		Filter: models.ProductSearchFilter{
			Query:  strings.TrimSpace(c.QueryParam("search")),
			Limit:  p.Limit,
			Offset: p.Offset,
		},
	}

	var err error
	if query.Filter.MinPrice, err = parseFloatParam(c, "minPrice"); err != nil {
		return common.SendValidationError(c, "minPrice", "must be a number")
	}
	if query.Filter.MaxPrice, err = parseFloatParam(c, "maxPrice"); err != nil {
		return common.SendValidationError(c, "maxPrice", "must be a number")
	}
	if query.Filter.MinPrice != nil && query.Filter.MaxPrice != nil && *query.Filter.MinPrice > *query.Filter.MaxPrice {
		return common.SendValidationError(c, "minPrice", "must not exceed maxPrice")
	}
	if raw := c.QueryParam("maxInventory"); raw != "" && staff {
		maxInventory, err := strconv.Atoi(raw)
		if err != nil {
			return common.SendValidationError(c, "maxInventory", "must be an integer")
		}
		query.Filter.MaxInventory = &maxInventory
	}

	allowed := publicProductSortFields
	if staff {
		allowed = staffProductSortFields
	}
	sort := common.ParseSort(c.QueryParam("sortBy"), allowed, "created_at")
	query.Filter.SortBy = sort.Field
	query.Filter.SortOrder = sort.Order

	products, total, err := h.productService.List(ctx, query)
	if err != nil {
		return respondError(c, h.log, err, "products")
	}
	return c.JSON(http.StatusOK, common.NewPaginatedResponse(c, sanitizeProducts(c, products), total, p))
}

// GetProduct handles GET /products/:id
func (h *ProductHandlers) GetProduct(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	product, err := h.productService.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.log, err, "product")
	}
	return c.JSON(http.StatusOK, sanitizeProduct(c, product))
}

// CreateProduct handles POST /products
func (h *ProductHandlers) CreateProduct(c echo.Context) error {
	var req CreateProductRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendClientError(c, err.Error())
	}
	leafID, err := common.ValidateUUID(req.Category, "category")
	if err != nil {
		return common.SendValidationError(c, "category", err.Error())
	}

	product := &models.Product{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	}
	if err := h.productService.Create(c.Request().Context(), product, leafID); err != nil {
		return respondError(c, h.log, err, "product")
	}
	return c.JSON(http.StatusCreated, product)
}

// UpdateProduct handles PUT /products/:id
func (h *ProductHandlers) UpdateProduct(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req UpdateProductRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendClientError(c, err.Error())
	}

	update := models.ProductUpdate{
		SKU:         req.SKU,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Quantity:    req.Quantity,
	}
	if req.Category != nil {
		leafID, err := common.ValidateUUID(*req.Category, "category")
		if err != nil {
			return common.SendValidationError(c, "category", err.Error())
		}
		update.Category = &leafID
	}

	product, err := h.productService.Update(c.Request().Context(), id, update)
	if err != nil {
		return respondError(c, h.log, err, "product")
	}
	return c.JSON(http.StatusOK, product)
}

// DeleteProduct handles DELETE /products/:id
func (h *ProductHandlers) DeleteProduct(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	if err := h.productService.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.log, err, "product")
	}
	return c.NoContent(http.StatusNoContent)
}

// AssignCategory handles PUT /products/:id/category
func (h *ProductHandlers) AssignCategory(c echo.Context) error {
	id, err := common.ValidateUUID(c.Param("id"), "id")
	if err != nil {
		return common.SendValidationError(c, "id", err.Error())
	}

	var req AssignCategoryRequest
	if err := c.Bind(&req); err != nil {
		return common.SendClientError(c, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return common.SendValidationError(c, "category", "category is required")
	}
	leafID, err := common.ValidateUUID(req.Category, "category")
	if err != nil {
		return common.SendValidationError(c, "category", err.Error())
	}

	product, err := h.productService.AssignCategory(c.Request().Context(), id, leafID)
	if err != nil {
		return respondError(c, h.log, err, "product")
	}
	return c.JSON(http.StatusOK, product)
}
