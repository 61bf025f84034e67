package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"

	"storefront/internal/common"
	"storefront/internal/hierarchy"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/mock"
)

type MockCategoryService struct {
	mock.Mock
}

func (m *MockCategoryService) Create(ctx context.Context, name string, parentID *uuid.UUID) (*models.Category, error) {
	args := m.Called(ctx, name, parentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryService) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Category), args.Error(1)
}

func (m *MockCategoryService) List(ctx context.Context, limit, offset int) ([]*models.Category, int, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]*models.Category), args.Int(1), args.Error(2)
}

func (m *MockCategoryService) Update(ctx context.Context, id uuid.UUID, update models.CategoryUpdate) (*models.Category, *models.CascadeReport, error) {
	args := m.Called(ctx, id, update)
	var category *models.Category
	if c := args.Get(0); c != nil {
		category = c.(*models.Category)
	}
	var report *models.CascadeReport
	if r := args.Get(1); r != nil {
		report = r.(*models.CascadeReport)
	}
	return category, report, args.Error(2)
}

func (m *MockCategoryService) Delete(ctx context.Context, id uuid.UUID) (*models.CascadeReport, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.CascadeReport), args.Error(1)
}

func (m *MockCategoryService) RelatedCategoryIDs(ctx context.Context, slug string) ([]uuid.UUID, error) {
	args := m.Called(ctx, slug)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockCategoryService) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CategoryNode), args.Error(1)
}

func (m *MockCategoryService) FlatTree(ctx context.Context) ([]models.FlatCategory, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.FlatCategory), args.Error(1)
}

func (m *MockCategoryService) Audit(ctx context.Context) ([]hierarchy.Violation, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]hierarchy.Violation), args.Error(1)
}

type MockProductService struct {
	mock.Mock
}

func (m *MockProductService) Create(ctx context.Context, product *models.Product, leafID uuid.UUID) error {
	args := m.Called(ctx, product, leafID)
	return args.Error(0)
}

func (m *MockProductService) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Update(ctx context.Context, id uuid.UUID, update models.ProductUpdate) (*models.Product, error) {
	args := m.Called(ctx, id, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

func (m *MockProductService) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockProductService) List(ctx context.Context, query services.ProductQuery) ([]*models.Product, int, error) {
	args := m.Called(ctx, query)
	return args.Get(0).([]*models.Product), args.Int(1), args.Error(2)
}

func (m *MockProductService) AssignCategory(ctx context.Context, productID, leafID uuid.UUID) (*models.Product, error) {
	args := m.Called(ctx, productID, leafID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Product), args.Error(1)
}

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error { return p.err }

var allPermissions = []string{
	common.PermissionReadCategories,
	common.PermissionCreateCategories,
	common.PermissionUpdateCategories,
	common.PermissionDeleteCategories,
	common.PermissionCreateProducts,
	common.PermissionUpdateProducts,
	common.PermissionDeleteProducts,
	common.PermissionReadInventory,
}

func passThrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

// newTestServer wires the API routes the way main does, with a fixed
// principal in place of token verification. staff controls whether public
// reads see inventory data.
func newTestServer(categories services.CategoryService, products services.ProductService, staff bool) *echo.Echo {
	e := echo.New()
	e.Validator = middleware.NewRequestValidator()

	auth := RouteAuth{
		Required: middleware.StaticPrincipal("staff-1", allPermissions),
		Optional: passThrough,
	}
	if staff {
		auth.Optional = auth.Required
	}

	log := logger.NewNop()
	v1 := e.Group("/v1")
	if categories != nil {
		RegisterCategoryRoutes(v1, NewCategoryHandlers(categories, log), auth)
	}
	if products != nil {
		RegisterProductRoutes(v1, NewProductHandlers(products, log), auth)
	}
	return e
}

func doRequest(e *echo.Echo, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}
