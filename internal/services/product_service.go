package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
)

var ErrDuplicateSKU = errors.New("a product with this sku already exists")

const maxDescriptionLength = 1000

// ProductQuery is a product listing request. CategorySlug, when set, limits
// the listing to that category and all of its subcategories.
type ProductQuery struct {
	Filter       models.ProductSearchFilter
	CategorySlug string
}

type ProductService interface {
	Create(ctx context.Context, product *models.Product, leafID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, update models.ProductUpdate) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, query ProductQuery) ([]*models.Product, int, error)
	AssignCategory(ctx context.Context, productID, leafID uuid.UUID) (*models.Product, error)
}

type productService struct {
	productRepo  repositories.ProductRepository
	categoryRepo repositories.CategoryRepository
	synchronizer CategorySynchronizer
	log          *logger.Logger
}

func NewProductService(productRepo repositories.ProductRepository, categoryRepo repositories.CategoryRepository, synchronizer CategorySynchronizer, log *logger.Logger) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		synchronizer: synchronizer,
		log:          log,
	}
}

func validateProduct(product *models.Product) error {
	product.Name = strings.TrimSpace(product.Name)
	product.SKU = strings.ToLower(strings.TrimSpace(product.SKU))
	product.Description = strings.TrimSpace(product.Description)

	if product.Name == "" {
		return validationError("product name is required")
	}
	if product.SKU == "" {
		return validationError("product sku is required")
	}
	if product.Description == "" {
		return validationError("description is required")
	}
	if len([]rune(product.Description)) > maxDescriptionLength {
		return validationError("description cannot exceed %d characters", maxDescriptionLength)
	}
	if product.Price < 0 {
		return validationError("price must be zero or greater")
	}
	if product.Quantity != nil && *product.Quantity < 0 {
		return validationError("quantity must be zero or greater")
	}
	return nil
}

func mapProductWriteError(err error) error {
	if errors.Is(err, repositories.ErrUniqueViolation) {
		return ErrDuplicateSKU
	}
	return err
}

// Create stores a product filed under leafID with its full ancestor chain.
func (s *productService) Create(ctx context.Context, product *models.Product, leafID uuid.UUID) error {
	if err := validateProduct(product); err != nil {
		return err
	}
	chain, err := s.synchronizer.Expand(ctx, leafID)
	if err != nil {
		return err
	}

	product.ID = uuid.New()
	product.Categories = chain
	if product.Quantity == nil {
		zero := 0
		product.Quantity = &zero
	}
	if err := s.productRepo.Create(ctx, product); err != nil {
		return mapProductWriteError(err)
	}
	s.log.Info("product created", "product_id", product.ID, "categories", len(chain))
	return nil
}

func (s *productService) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	return s.productRepo.GetByID(ctx, id)
}

func (s *productService) Update(ctx context.Context, id uuid.UUID, update models.ProductUpdate) (*models.Product, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if update.SKU != nil {
		product.SKU = *update.SKU
	}
	if update.Name != nil {
		product.Name = *update.Name
	}
	if update.Description != nil {
		product.Description = *update.Description
	}
	if update.Price != nil {
		product.Price = *update.Price
	}
	if update.Quantity != nil {
		product.Quantity = update.Quantity
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if update.Category != nil {
		chain, err := s.synchronizer.Expand(ctx, *update.Category)
		if err != nil {
			return nil, err
		}
		product.Categories = chain
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		return nil, mapProductWriteError(err)
	}
	return product, nil
}

func (s *productService) Delete(ctx context.Context, id uuid.UUID) error {
	return s.productRepo.Delete(ctx, id)
}

func (s *productService) List(ctx context.Context, query ProductQuery) ([]*models.Product, int, error) {
	filter := query.Filter
	if query.CategorySlug != "" {
		ids, err := relatedCategoryIDs(ctx, s.categoryRepo, query.CategorySlug)
		if errors.Is(err, repositories.ErrNotFound) {
			// unknown category matches nothing
			return []*models.Product{}, 0, nil
		}
		if err != nil {
			return nil, 0, err
		}
		filter.CategoryIDs = ids
	}

	products, err := s.productRepo.Search(ctx, &filter)
	if err != nil {
		return nil, 0, fmt.Errorf("search products: %w", err)
	}
	total, err := s.productRepo.Count(ctx, &filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count products: %w", err)
	}
	return products, total, nil
}

// AssignCategory files the product under leafID and returns it with the
// stored chain.
func (s *productService) AssignCategory(ctx context.Context, productID, leafID uuid.UUID) (*models.Product, error) {
	chain, err := s.synchronizer.Assign(ctx, productID, leafID)
	if err != nil {
		return nil, err
	}
	product, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, err
	}
	product.Categories = chain
	return product, nil
}
