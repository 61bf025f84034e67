package handlers

import (
	"storefront/internal/common"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
)

// RouteAuth supplies the authentication middleware for the API group.
// Optional lets anonymous callers through while still recognising tokens.
type RouteAuth struct {
	Required echo.MiddlewareFunc
	Optional echo.MiddlewareFunc
}

// RegisterHealthRoutes mounts the unversioned probes.
func RegisterHealthRoutes(e *echo.Echo, h *HealthHandlers) {
	e.GET("/health", h.HealthCheck)
	e.GET("/health/ready", h.ReadinessCheck)
	e.GET("/health/live", h.LivenessCheck)
}

// RegisterCategoryRoutes mounts the category endpoints on g. Reads are public.
func RegisterCategoryRoutes(g *echo.Group, h *CategoryHandlers, auth RouteAuth) {
	categories := g.Group("/categories")
	categories.GET("", h.ListCategories)
	categories.GET("/tree", h.GetTree)
	categories.GET("/tree/flat", h.GetFlatTree)
	categories.GET("/audit", h.AuditTree, auth.Required, middleware.RequirePermission(common.PermissionReadCategories))
	categories.GET("/:id", h.GetCategory)
	categories.POST("", h.CreateCategory, auth.Required, middleware.RequirePermission(common.PermissionCreateCategories))
	categories.PUT("/:id", h.UpdateCategory, auth.Required, middleware.RequirePermission(common.PermissionUpdateCategories))
	categories.DELETE("/:id", h.DeleteCategory, auth.Required, middleware.RequirePermission(common.PermissionDeleteCategories))
}

// RegisterProductRoutes mounts the product endpoints on g. Reads are public
// but staff tokens unlock inventory data.
func RegisterProductRoutes(g *echo.Group, h *ProductHandlers, auth RouteAuth) {
	products := g.Group("/products")
	products.GET("", h.ListProducts, auth.Optional)
	products.GET("/:id", h.GetProduct, auth.Optional)
	products.POST("", h.CreateProduct, auth.Required, middleware.RequirePermission(common.PermissionCreateProducts))
	products.PUT("/:id", h.UpdateProduct, auth.Required, middleware.RequirePermission(common.PermissionUpdateProducts))
	products.PUT("/:id/category", h.AssignCategory, auth.Required, middleware.RequirePermission(common.PermissionUpdateProducts))
	products.DELETE("/:id", h.DeleteProduct, auth.Required, middleware.RequirePermission(common.PermissionDeleteProducts))
}
