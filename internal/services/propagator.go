package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"storefront/internal/hierarchy"
	"storefront/internal/logger"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const OperationDescendantPaths = "descendant_paths"

var errAncestorFailed = errors.New("skipped: an ancestor could not be updated")

// Propagator rewrites the materialized paths beneath a category whose own
// path has already been persisted. previousPath is the path the category
// had before that write; its descendants still carry it.
type Propagator interface {
	Propagate(ctx context.Context, category *models.Category, previousPath string) (*models.CascadeResult, error)
}

type propagator struct {
	categoryRepo repositories.CategoryRepository
	concurrency  int
	log          *logger.Logger
}

func NewPropagator(categoryRepo repositories.CategoryRepository, concurrency int, log *logger.Logger) Propagator {
	if concurrency < 1 {
		concurrency = 1
	}
	return &propagator{categoryRepo: categoryRepo, concurrency: concurrency, log: log}
}

// pathChange is a written node on the frontier: its stored path moved from
// one value to the other.
type pathChange struct {
	from, to string
}

// Propagate walks the subtree one level at a time, following parent
// references rather than path prefixes, so it still finds every descendant
// after the root's own path changed. A level is only loaded once all of its
// parents are written. Siblings are written concurrently. A child whose path
// is already correct is not written and its subtree is not visited. A failed
// child does not stop its siblings; its subtree is reported as skipped.
func (p *propagator) Propagate(ctx context.Context, category *models.Category, previousPath string) (*models.CascadeResult, error) {
	result := models.NewCascadeResult(OperationDescendantPaths)
	visited := map[uuid.UUID]bool{category.ID: true}
	frontier := map[uuid.UUID]pathChange{category.ID: {from: previousPath, to: category.Path}}

	for len(frontier) > 0 {
		parentIDs := make([]uuid.UUID, 0, len(frontier))
		for id := range frontier {
			parentIDs = append(parentIDs, id)
		}

		children, err := p.categoryRepo.FindChildrenOf(ctx, parentIDs)
		if err != nil {
			loadErr := fmt.Errorf("load children: %w", err)
			for id, change := range frontier {
				p.skipBelow(ctx, id, change.from, loadErr, visited, result)
			}
			break
		}

		var (
			mu     sync.Mutex
			next   = map[uuid.UUID]pathChange{}
			failed []*models.Category
		)
		g := new(errgroup.Group)
		g.SetLimit(p.concurrency)

		for _, child := range children {
			if visited[child.ID] || child.ParentID == nil {
				continue
			}
			visited[child.ID] = true
			parentPath := frontier[*child.ParentID].to

			g.Go(func() error {
				want := hierarchy.JoinPath(&parentPath, child.Slug)
				if want == child.Path {
					mu.Lock()
					result.Unchanged++
					mu.Unlock()
					return nil
				}

				if err := p.categoryRepo.UpdatePath(ctx, child.ID, want); err != nil {
					mu.Lock()
					result.AddFailure(child.ID, want, err)
					failed = append(failed, child)
					mu.Unlock()
					return nil
				}

				mu.Lock()
				result.Updated++
				next[child.ID] = pathChange{from: child.Path, to: want}
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait() // workers record their own errors

		for _, child := range failed {
			p.skipBelow(ctx, child.ID, child.Path, errAncestorFailed, visited, result)
		}
		frontier = next
	}

	result.Finish()
	if result.HasFailures() {
		p.log.Warn("descendant path propagation incomplete",
			"category_id", category.ID,
			"updated", result.Updated,
			"failed", result.Failed,
		)
		return result, &CascadeError{Report: &models.CascadeReport{Descendants: result}}
	}
	p.log.Debug("descendant paths propagated",
		"category_id", category.ID,
		"updated", result.Updated,
		"unchanged", result.Unchanged,
	)
	return result, nil
}

// skipBelow records every unvisited descendant of a node as failed with
// cause. Their stored paths still start with stalePath. When even that lookup
// fails the node itself is recorded so the report never comes back clean.
func (p *propagator) skipBelow(ctx context.Context, id uuid.UUID, stalePath string, cause error, visited map[uuid.UUID]bool, result *models.CascadeResult) {
	descendants, err := p.categoryRepo.FindDescendants(ctx, stalePath)
	if err != nil {
		p.log.Warn("could not list subtree of failed category", "category_id", id, "error", err)
		if !errors.Is(cause, errAncestorFailed) {
			result.AddFailure(id, stalePath, cause)
		}
		return
	}
	for _, d := range descendants {
		if visited[d.ID] {
			continue
		}
		visited[d.ID] = true
		result.AddFailure(d.ID, d.Path, cause)
	}
}
