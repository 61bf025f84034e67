package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"storefront/internal/hierarchy"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const OperationProductResync = "product_resync"

// CategorySynchronizer keeps each product's stored category list equal to the
// full ancestor chain of its leaf category.
type CategorySynchronizer interface {
	Expand(ctx context.Context, leafID uuid.UUID) ([]uuid.UUID, error)
	Assign(ctx context.Context, productID, leafID uuid.UUID) ([]uuid.UUID, error)
	ResyncProducts(ctx context.Context, categoryIDs []uuid.UUID) (*models.CascadeResult, error)
}

type categorySynchronizer struct {
	categoryRepo repositories.CategoryRepository
	productRepo  repositories.ProductRepository
	concurrency  int
	log          *logger.Logger
}

func NewCategorySynchronizer(categoryRepo repositories.CategoryRepository, productRepo repositories.ProductRepository, concurrency int, log *logger.Logger) CategorySynchronizer {
	if concurrency < 1 {
		concurrency = 1
	}
	return &categorySynchronizer{
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
		concurrency:  concurrency,
		log:          log,
	}
}

// Expand resolves the leaf's path into category ids ordered root to leaf.
// Any segment that does not resolve fails the whole expansion.
func (s *categorySynchronizer) Expand(ctx context.Context, leafID uuid.UUID) ([]uuid.UUID, error) {
	leaf, err := s.categoryRepo.GetByID(ctx, leafID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, fmt.Errorf("%w: category %s does not exist", ErrUnresolvableChain, leafID)
		}
		return nil, err
	}

	slugs := hierarchy.SplitPath(leaf.Path)
	if len(slugs) == 0 {
		return nil, fmt.Errorf("%w: category %s has an empty path", ErrUnresolvableChain, leafID)
	}

	found, err := s.categoryRepo.GetBySlugs(ctx, slugs)
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]uuid.UUID, len(found))
	for _, c := range found {
		bySlug[c.Slug] = c.ID
	}

	chain := make([]uuid.UUID, 0, len(slugs))
	for _, slug := range slugs {
		id, ok := bySlug[slug]
		if !ok {
			return nil, fmt.Errorf("%w: no category with slug %q in path %q", ErrUnresolvableChain, slug, leaf.Path)
		}
		chain = append(chain, id)
	}
	if chain[len(chain)-1] != leafID {
		return nil, fmt.Errorf("%w: path %q of category %s resolves to a different leaf", ErrUnresolvableChain, leaf.Path, leafID)
	}
	return chain, nil
}

// Assign stores the expanded chain of leafID on the product.
func (s *categorySynchronizer) Assign(ctx context.Context, productID, leafID uuid.UUID) ([]uuid.UUID, error) {
	chain, err := s.Expand(ctx, leafID)
	if err != nil {
		return nil, err
	}
	if err := s.productRepo.SetCategories(ctx, productID, chain); err != nil {
		return nil, err
	}
	return chain, nil
}

// ResyncProducts re-expands the chain of every product referencing any of the
// given categories. Each product is handled independently.
func (s *categorySynchronizer) ResyncProducts(ctx context.Context, categoryIDs []uuid.UUID) (*models.CascadeResult, error) {
	result := models.NewCascadeResult(OperationProductResync)

	products, err := s.productRepo.FindByCategories(ctx, categoryIDs)
	if err != nil {
		return nil, fmt.Errorf("find products by categories: %w", err)
	}

	var (
		mu     sync.Mutex
		chains = map[uuid.UUID][]uuid.UUID{}
	)
	// products under the same leaf share one expansion
	expand := func(leafID uuid.UUID) ([]uuid.UUID, error) {
		mu.Lock()
		chain, ok := chains[leafID]
		mu.Unlock()
		if ok {
			return chain, nil
		}
		chain, err := s.Expand(ctx, leafID)
		if err != nil {
			return nil, err
		}
		mu.Lock()
		chains[leafID] = chain
		mu.Unlock()
		return chain, nil
	}

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, product := range products {
		g.Go(func() error {
			leaf := product.LeafCategory()
			if leaf == nil {
				mu.Lock()
				result.Unchanged++
				mu.Unlock()
				return nil
			}

			chain, err := expand(*leaf)
			if err == nil && slices.Equal(chain, product.Categories) {
				mu.Lock()
				result.Unchanged++
				mu.Unlock()
				return nil
			}
			if err == nil {
				err = s.productRepo.SetCategories(ctx, product.ID, chain)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.AddFailure(product.ID, "", err)
				return nil
			}
			result.Updated++
			return nil
		})
	}
	_ = g.Wait()

	result.Finish()
	if result.HasFailures() {
		s.log.Warn("product category resync incomplete",
			"products", len(products),
			"updated", result.Updated,
			"failed", result.Failed,
		)
		return result, &CascadeError{Report: &models.CascadeReport{Products: result}}
	}
	return result, nil
}
