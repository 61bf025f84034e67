package services

import (
	"context"
	"errors"
	"time"

	"storefront/internal/caching"
	"storefront/internal/hierarchy"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"
)

// CategoryTreeService serves the nested category forest from the cache,
// rebuilding it from the store whenever the cache cannot answer.
type CategoryTreeService interface {
	Tree(ctx context.Context) ([]*models.CategoryNode, error)
	Rebuild(ctx context.Context) ([]*models.CategoryNode, error)
	Invalidate(ctx context.Context)
}

type categoryTreeService struct {
	categoryRepo repositories.CategoryRepository
	cacheService caching.CacheService
	ttl          time.Duration
	log          *logger.Logger
}

func NewCategoryTreeService(categoryRepo repositories.CategoryRepository, cacheService caching.CacheService, ttl time.Duration, log *logger.Logger) CategoryTreeService {
	return &categoryTreeService{
		categoryRepo: categoryRepo,
		cacheService: cacheService,
		ttl:          ttl,
		log:          log,
	}
}

func (s *categoryTreeService) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	tree, err := s.cacheService.GetCategoryTree(ctx)
	if err != nil {
		// cache errors never fail the read
		s.log.Warn("category tree cache read failed, rebuilding", "error", err)
	} else if tree != nil {
		return tree, nil
	}
	return s.Rebuild(ctx)
}

// Rebuild builds the forest from the store and stores it in the cache. The
// generation is read before the store so a tree that an invalidation
// overtook is never cached.
func (s *categoryTreeService) Rebuild(ctx context.Context) ([]*models.CategoryNode, error) {
	generation, genErr := s.cacheService.CategoryTreeGeneration(ctx)
	if genErr != nil {
		s.log.Warn("category tree generation unavailable, tree will not be cached", "error", genErr)
	}

	categories, err := s.categoryRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	forest := hierarchy.BuildTree(categories)
	if len(forest.Orphans) > 0 {
		s.log.Warn("categories with unknown parents placed at root", "category_ids", forest.Orphans)
	}
	if genErr != nil {
		return forest.Roots, nil
	}

	err = s.cacheService.SetCategoryTree(ctx, forest.Roots, s.ttl, generation)
	switch {
	case errors.Is(err, caching.ErrStaleTree):
		s.log.Debug("category tree changed during rebuild, not cached", "generation", generation)
	case err != nil:
		s.log.Warn("failed to cache category tree", "error", err)
	}
	return forest.Roots, nil
}

// Invalidate drops the cached forest. Failures are logged; the entry then
// expires with its TTL.
func (s *categoryTreeService) Invalidate(ctx context.Context) {
	if err := s.cacheService.InvalidateCategoryTree(ctx); err != nil {
		s.log.Warn("failed to invalidate category tree cache", "error", err)
	}
}
