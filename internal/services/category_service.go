package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"storefront/internal/hierarchy"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const (
	OperationReparentChildren = "reparent_children"
	MinCategoryNameLength     = 2

	// cascadeTimeout bounds the dependent writes that follow a committed
	// category change.
	cascadeTimeout = 5 * time.Minute
)

type CategoryService interface {
	Create(ctx context.Context, name string, parentID *uuid.UUID) (*models.Category, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	List(ctx context.Context, limit, offset int) ([]*models.Category, int, error)
	Update(ctx context.Context, id uuid.UUID, update models.CategoryUpdate) (*models.Category, *models.CascadeReport, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.CascadeReport, error)
	RelatedCategoryIDs(ctx context.Context, slug string) ([]uuid.UUID, error)
	Tree(ctx context.Context) ([]*models.CategoryNode, error)
	FlatTree(ctx context.Context) ([]models.FlatCategory, error)
	Audit(ctx context.Context) ([]hierarchy.Violation, error)
}

type categoryService struct {
	categoryRepo repositories.CategoryRepository
	productRepo  repositories.ProductRepository
	propagator   Propagator
	synchronizer CategorySynchronizer
	treeService  CategoryTreeService
	concurrency  int
	log          *logger.Logger
}

func NewCategoryService(
	categoryRepo repositories.CategoryRepository,
	productRepo repositories.ProductRepository,
	propagator Propagator,
	synchronizer CategorySynchronizer,
	treeService CategoryTreeService,
	concurrency int,
	log *logger.Logger,
) CategoryService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &categoryService{
		categoryRepo: categoryRepo,
		productRepo:  productRepo,
		propagator:   propagator,
		synchronizer: synchronizer,
		treeService:  treeService,
		concurrency:  concurrency,
		log:          log,
	}
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if len([]rune(name)) < MinCategoryNameLength {
		return "", validationError("name must be at least %d characters", MinCategoryNameLength)
	}
	return name, nil
}

// ensureSlugFree fails with ErrSlugConflict when another category owns slug.
func (s *categoryService) ensureSlugFree(ctx context.Context, slug string, self uuid.UUID) error {
	existing, err := s.categoryRepo.GetBySlug(ctx, slug)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if existing.ID != self {
		return fmt.Errorf("%w: %q", ErrSlugConflict, slug)
	}
	return nil
}

func mapWriteError(err error, slug string) error {
	if errors.Is(err, repositories.ErrUniqueViolation) {
		return fmt.Errorf("%w: %q", ErrSlugConflict, slug)
	}
	return err
}

func (s *categoryService) Create(ctx context.Context, name string, parentID *uuid.UUID) (*models.Category, error) {
	name, err := normalizeName(name)
	if err != nil {
		return nil, err
	}

	var parentPath *string
	if parentID != nil {
		parent, err := s.categoryRepo.GetByID(ctx, *parentID)
		if errors.Is(err, repositories.ErrNotFound) {
			return nil, validationError("parent category %s does not exist", *parentID)
		}
		if err != nil {
			return nil, err
		}
		parentPath = &parent.Path
	}

	m, err := hierarchy.Materialize(name, "", true, parentPath)
	if err != nil {
		return nil, validationError("%v", err)
	}
	if err := s.ensureSlugFree(ctx, m.Slug, uuid.Nil); err != nil {
		return nil, err
	}

	category := &models.Category{
		ID:       uuid.New(),
		Name:     name,
		Slug:     m.Slug,
		ParentID: parentID,
		Path:     m.Path,
	}
	if err := s.categoryRepo.Create(ctx, category); err != nil {
		return nil, mapWriteError(err, m.Slug)
	}

	s.treeService.Invalidate(ctx)
	s.log.Info("category created", "category_id", category.ID, "path", category.Path)
	return category, nil
}

func (s *categoryService) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	return s.categoryRepo.GetByID(ctx, id)
}

func (s *categoryService) List(ctx context.Context, limit, offset int) ([]*models.Category, int, error) {
	categories, err := s.categoryRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.categoryRepo.Count(ctx)
	if err != nil {
		return nil, 0, err
	}
	return categories, total, nil
}

// resolveParent loads the parent a category is moving under and rejects
// parents that would create a cycle.
func (s *categoryService) resolveParent(ctx context.Context, id, parentID uuid.UUID) (*models.Category, error) {
	if parentID == id {
		return nil, validationError("a category cannot be its own parent")
	}
	parent, err := s.categoryRepo.GetByID(ctx, parentID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, validationError("parent category %s does not exist", parentID)
	}
	if err != nil {
		return nil, err
	}

	seen := map[uuid.UUID]bool{parent.ID: true}
	for ancestor := parent; ancestor.ParentID != nil; {
		if *ancestor.ParentID == id {
			return nil, validationError("cannot move a category under its own descendant")
		}
		if seen[*ancestor.ParentID] {
			return nil, fmt.Errorf("parent chain of %s contains a cycle", parentID)
		}
		seen[*ancestor.ParentID] = true

		ancestor, err = s.categoryRepo.GetByID(ctx, *ancestor.ParentID)
		if errors.Is(err, repositories.ErrNotFound) {
			// the chain ends at a missing row; it cannot reach id
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return parent, nil
}

// currentParentPath returns the stored path of an unchanged parent.
func (s *categoryService) currentParentPath(ctx context.Context, category *models.Category) (*string, error) {
	if category.ParentID == nil {
		return nil, nil
	}
	parent, err := s.categoryRepo.GetByID(ctx, *category.ParentID)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, fmt.Errorf("%w: category %s, parent %s", ErrDanglingParent, category.ID, *category.ParentID)
	}
	if err != nil {
		return nil, err
	}
	return &parent.Path, nil
}

// detach returns a context for the writes that follow a committed change.
// It ignores cancellation of ctx and carries its own deadline instead.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), cascadeTimeout)
}

func sameParent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Update applies a rename and/or move, then cascades to descendants and to
// the products filed under the moved subtree. The category write itself is
// kept even when a cascade partly fails; the returned report then carries
// the failures and the error is a *CascadeError.
func (s *categoryService) Update(ctx context.Context, id uuid.UUID, update models.CategoryUpdate) (*models.Category, *models.CascadeReport, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	name := category.Name
	if update.Name != nil {
		if name, err = normalizeName(*update.Name); err != nil {
			return nil, nil, err
		}
	}
	nameChanged := name != category.Name

	parentID := category.ParentID
	if update.ParentSet {
		parentID = update.ParentID
	}
	parentChanged := !sameParent(parentID, category.ParentID)

	var parentPath *string
	switch {
	case parentID == nil:
	case parentChanged:
		parent, err := s.resolveParent(ctx, id, *parentID)
		if err != nil {
			return nil, nil, err
		}
		parentPath = &parent.Path
	default:
		if parentPath, err = s.currentParentPath(ctx, category); err != nil {
			return nil, nil, err
		}
	}

	m, err := hierarchy.Materialize(name, category.Slug, nameChanged, parentPath)
	if err != nil {
		return nil, nil, validationError("%v", err)
	}
	if !nameChanged && !parentChanged && m.Path == category.Path {
		return category, &models.CascadeReport{}, nil
	}
	if m.Slug != category.Slug {
		if err := s.ensureSlugFree(ctx, m.Slug, id); err != nil {
			return nil, nil, err
		}
	}

	oldPath := category.Path
	updated := *category
	updated.Name = name
	updated.Slug = m.Slug
	updated.ParentID = parentID
	updated.Path = m.Path
	if err := s.categoryRepo.Update(ctx, &updated); err != nil {
		return nil, nil, mapWriteError(err, m.Slug)
	}

	// the subtree and products follow the committed write even if the caller is gone
	ctx, cancel := detach(ctx)
	defer cancel()

	report := &models.CascadeReport{}
	if updated.Path != oldPath {
		report.Descendants, _ = s.propagator.Propagate(ctx, &updated, oldPath)
	}
	if nameChanged || parentChanged {
		report.Products = s.resyncSubtree(ctx, &updated)
	}

	s.treeService.Invalidate(ctx)
	s.log.Info("category updated",
		"category_id", id,
		"old_path", oldPath,
		"path", updated.Path,
	)
	return &updated, report, cascadeOutcome(report)
}

// resyncSubtree re-expands products filed under the category or any of its
// descendants.
func (s *categoryService) resyncSubtree(ctx context.Context, category *models.Category) *models.CascadeResult {
	related, err := s.categoryRepo.FindByPathPrefix(ctx, category.Path)
	if err != nil {
		result := models.NewCascadeResult(OperationProductResync)
		result.AddFailure(category.ID, category.Path, fmt.Errorf("list related categories: %w", err))
		return result.Finish()
	}
	ids := make([]uuid.UUID, 0, len(related))
	for _, c := range related {
		ids = append(ids, c.ID)
	}

	result, err := s.synchronizer.ResyncProducts(ctx, ids)
	if result == nil {
		result = models.NewCascadeResult(OperationProductResync)
		result.AddFailure(category.ID, category.Path, err)
		result.Finish()
	}
	return result
}

// Delete moves the category's direct children up to its parent, strips the
// category from every product, then deletes it. If any direct child cannot
// be moved the category is kept and a *CascadeError with Aborted set is
// returned. A category whose parent row is missing can still be deleted;
// its children become roots.
func (s *categoryService) Delete(ctx context.Context, id uuid.UUID) (*models.CascadeReport, error) {
	category, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	newParentID := category.ParentID
	parentPath, err := s.currentParentPath(ctx, category)
	if errors.Is(err, ErrDanglingParent) {
		s.log.Warn("deleting category under a missing parent, children become roots",
			"category_id", id,
			"parent_id", *category.ParentID,
		)
		newParentID, parentPath = nil, nil
	} else if err != nil {
		return nil, err
	}

	children, err := s.categoryRepo.FindDirectChildren(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("list children: %w", err)
	}

	// once a child moves the delete runs to the end regardless of the caller
	ctx, cancel := detach(ctx)
	defer cancel()

	report := &models.CascadeReport{Descendants: s.reparentChildren(ctx, children, newParentID, parentPath)}
	if report.Descendants.Failed > 0 && s.directChildFailed(report.Descendants, children) {
		s.treeService.Invalidate(ctx)
		s.log.Error("category delete aborted: children could not be reparented",
			"category_id", id,
			"failed", report.Descendants.Failed,
		)
		return report, &CascadeError{Report: report, Aborted: true}
	}

	removed, err := s.productRepo.RemoveCategory(ctx, id)
	if err != nil {
		s.treeService.Invalidate(ctx)
		return report, fmt.Errorf("remove category from products: %w", err)
	}

	if err := s.categoryRepo.Delete(ctx, id); err != nil {
		s.treeService.Invalidate(ctx)
		return report, err
	}

	s.treeService.Invalidate(ctx)
	s.log.Info("category deleted",
		"category_id", id,
		"reparented_children", len(children),
		"products_updated", removed,
	)
	return report, cascadeOutcome(report)
}

// reparentChildren moves each child under newParentID and propagates its
// new path to its own subtree.
func (s *categoryService) reparentChildren(ctx context.Context, children []*models.Category, newParentID *uuid.UUID, parentPath *string) *models.CascadeResult {
	result := models.NewCascadeResult(OperationReparentChildren)
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(s.concurrency)
	for _, child := range children {
		g.Go(func() error {
			moved := *child
			moved.ParentID = newParentID
			moved.Path = hierarchy.JoinPath(parentPath, child.Slug)

			if err := s.categoryRepo.Update(ctx, &moved); err != nil {
				mu.Lock()
				result.AddFailure(child.ID, moved.Path, err)
				mu.Unlock()
				return nil
			}

			sub, _ := s.propagator.Propagate(ctx, &moved, child.Path)
			mu.Lock()
			result.Updated++
			result.Merge(sub)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return result.Finish()
}

func (s *categoryService) directChildFailed(result *models.CascadeResult, children []*models.Category) bool {
	direct := make(map[uuid.UUID]bool, len(children))
	for _, c := range children {
		direct[c.ID] = true
	}
	for _, f := range result.Failures {
		if direct[f.ItemID] {
			return true
		}
	}
	return false
}

func (s *categoryService) RelatedCategoryIDs(ctx context.Context, slug string) ([]uuid.UUID, error) {
	return relatedCategoryIDs(ctx, s.categoryRepo, slug)
}

// relatedCategoryIDs returns the ids of the category with the given slug and
// of all its descendants.
func relatedCategoryIDs(ctx context.Context, categoryRepo repositories.CategoryRepository, slug string) ([]uuid.UUID, error) {
	category, err := categoryRepo.GetBySlug(ctx, strings.ToLower(strings.TrimSpace(slug)))
	if err != nil {
		return nil, err
	}
	related, err := categoryRepo.FindByPathPrefix(ctx, category.Path)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(related))
	for _, c := range related {
		ids = append(ids, c.ID)
	}
	return ids, nil
}

func (s *categoryService) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	return s.treeService.Tree(ctx)
}

func (s *categoryService) FlatTree(ctx context.Context) ([]models.FlatCategory, error) {
	tree, err := s.treeService.Tree(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.Flatten(tree), nil
}

// Audit reports every category whose stored path disagrees with its parent.
func (s *categoryService) Audit(ctx context.Context) ([]hierarchy.Violation, error) {
	categories, err := s.categoryRepo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return hierarchy.Audit(categories), nil
}
