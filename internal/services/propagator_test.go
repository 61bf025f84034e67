package services

import (
	"context"
	"errors"
	"testing"

	"storefront/internal/logger"
	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// moveTo rewrites a category in the store as if its own update had just
// been persisted, leaving descendants stale. It returns the moved row and
// the path it had before.
func moveTo(repo *memCategoryRepo, c *models.Category, path string) (*models.Category, string) {
	previous := repo.rows[c.ID].Path
	repo.rows[c.ID].Path = path
	return repo.get(c.ID), previous
}

func TestPropagate_RewritesWholeSubtree(t *testing.T) {
	repo := newMemCategoryRepo()
	electronics := repo.add("Electronics", nil)
	phones := repo.add("Phones", electronics)
	android := repo.add("Android", phones)
	ios := repo.add("iOS", phones)
	laptops := repo.add("Laptops", electronics)

	moved, previous := moveTo(repo, electronics, "tech")
	p := NewPropagator(repo, 4, logger.NewNop())

	result, err := p.Propagate(context.Background(), moved, previous)
	require.NoError(t, err)

	assert.Equal(t, models.CascadeStatusCompleted, result.Status)
	assert.Equal(t, 4, result.Updated)
	assert.Equal(t, "tech/phones", repo.get(phones.ID).Path)
	assert.Equal(t, "tech/phones/android", repo.get(android.ID).Path)
	assert.Equal(t, "tech/phones/ios", repo.get(ios.ID).Path)
	assert.Equal(t, "tech/laptops", repo.get(laptops.ID).Path)
}

func TestPropagate_UnchangedPathsAreNotWritten(t *testing.T) {
	repo := newMemCategoryRepo()
	electronics := repo.add("Electronics", nil)
	repo.add("Phones", electronics)
	repo.add("Laptops", electronics)

	p := NewPropagator(repo, 2, logger.NewNop())
	result, err := p.Propagate(context.Background(), repo.get(electronics.ID), "electronics")
	require.NoError(t, err)

	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 2, result.Unchanged)
	assert.Equal(t, 0, repo.pathWrites)
}

func TestPropagate_LeafHasNothingToDo(t *testing.T) {
	repo := newMemCategoryRepo()
	books := repo.add("Books", nil)

	result, err := NewPropagator(repo, 1, logger.NewNop()).Propagate(context.Background(), repo.get(books.ID), "books")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Updated+result.Unchanged+result.Failed)
}

func TestPropagate_FailureSkipsSubtreeButNotSiblings(t *testing.T) {
	repo := newMemCategoryRepo()
	electronics := repo.add("Electronics", nil)
	phones := repo.add("Phones", electronics)
	android := repo.add("Android", phones)
	pixel := repo.add("Pixel", android)
	laptops := repo.add("Laptops", electronics)
	repo.failUpdate[phones.ID] = errors.New("deadlock detected")

	moved, previous := moveTo(repo, electronics, "tech")
	result, err := NewPropagator(repo, 4, logger.NewNop()).Propagate(context.Background(), moved, previous)

	var cascadeErr *CascadeError
	require.ErrorAs(t, err, &cascadeErr)
	assert.Same(t, result, cascadeErr.Report.Descendants)

	assert.Equal(t, models.CascadeStatusPartial, result.Status)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 3, result.Failed, "failed node plus its two descendants")
	assert.Equal(t, "tech/laptops", repo.get(laptops.ID).Path)
	assert.Equal(t, "electronics/phones/android", repo.get(android.ID).Path)
	assert.Equal(t, "electronics/phones/android/pixel", repo.get(pixel.ID).Path)

	failed := map[string]string{}
	for _, f := range result.Failures {
		failed[f.ItemID.String()] = f.Error
	}
	assert.Equal(t, "deadlock detected", failed[phones.ID.String()])
	assert.Equal(t, errAncestorFailed.Error(), failed[android.ID.String()])
	assert.Equal(t, errAncestorFailed.Error(), failed[pixel.ID.String()])
}

func TestPropagate_SerialAndParallelAgree(t *testing.T) {
	build := func() (*memCategoryRepo, *models.Category) {
		repo := newMemCategoryRepo()
		root := repo.add("Root", nil)
		for _, name := range []string{"A", "B", "C", "D", "E"} {
			child := repo.add(name, root)
			for _, leaf := range []string{"1", "2", "3"} {
				repo.add(name+leaf, child)
			}
		}
		return repo, root
	}

	serialRepo, serialRoot := build()
	moved, previous := moveTo(serialRepo, serialRoot, "moved")
	_, err := NewPropagator(serialRepo, 1, logger.NewNop()).Propagate(context.Background(), moved, previous)
	require.NoError(t, err)

	parallelRepo, parallelRoot := build()
	moved, previous = moveTo(parallelRepo, parallelRoot, "moved")
	_, err = NewPropagator(parallelRepo, 8, logger.NewNop()).Propagate(context.Background(), moved, previous)
	require.NoError(t, err)

	serial, _ := serialRepo.ListAll(context.Background())
	parallel, _ := parallelRepo.ListAll(context.Background())
	require.Len(t, parallel, len(serial))
	for i := range serial {
		assert.Equal(t, serial[i].Path, parallel[i].Path)
	}
	assert.Equal(t, "moved/a/a1", serial[2].Path)
}

func TestPropagate_LevelLoadFailureReportsStaleSubtree(t *testing.T) {
	repo := newMemCategoryRepo()
	electronics := repo.add("Electronics", nil)
	phones := repo.add("Phones", electronics)
	android := repo.add("Android", phones)
	laptops := repo.add("Laptops", electronics)
	repo.failChildren = errors.New("connection reset")

	moved, previous := moveTo(repo, electronics, "tech")
	result, err := NewPropagator(repo, 4, logger.NewNop()).Propagate(context.Background(), moved, previous)

	var cascadeErr *CascadeError
	require.ErrorAs(t, err, &cascadeErr)
	assert.Equal(t, 0, result.Updated)
	assert.Equal(t, 3, result.Failed, "every stale descendant is reported")

	failed := map[string]string{}
	for _, f := range result.Failures {
		failed[f.ItemID.String()] = f.Error
	}
	assert.NotContains(t, failed, electronics.ID.String(), "the moved category itself was written")
	for _, id := range []string{phones.ID.String(), android.ID.String(), laptops.ID.String()} {
		assert.Contains(t, failed[id], "connection reset")
	}
}
