package services

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"storefront/internal/hierarchy"
	"storefront/internal/models"
	"storefront/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

// MockCacheService mocks caching.CacheService
type MockCacheService struct {
	mock.Mock
}

func (m *MockCacheService) GetCategoryTree(ctx context.Context) ([]*models.CategoryNode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CategoryNode), args.Error(1)
}

func (m *MockCacheService) CategoryTreeGeneration(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockCacheService) SetCategoryTree(ctx context.Context, tree []*models.CategoryNode, ttl time.Duration, generation int64) error {
	args := m.Called(ctx, tree, ttl, generation)
	return args.Error(0)
}

func (m *MockCacheService) InvalidateCategoryTree(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) AcquireLock(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, name, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockCacheService) Ping(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockCacheService) Close() error {
	return nil
}

// MockTreeService mocks CategoryTreeService
type MockTreeService struct {
	mock.Mock
}

func (m *MockTreeService) Tree(ctx context.Context) ([]*models.CategoryNode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CategoryNode), args.Error(1)
}

func (m *MockTreeService) Rebuild(ctx context.Context) ([]*models.CategoryNode, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.CategoryNode), args.Error(1)
}

func (m *MockTreeService) Invalidate(ctx context.Context) {
	m.Called(ctx)
}

// memCategoryRepo is an in-memory CategoryRepository. Writes for ids listed
// in failUpdate return the configured error. Like pgx, calls made with a
// done context fail with the context's error.
type memCategoryRepo struct {
	mu           sync.Mutex
	rows         map[uuid.UUID]*models.Category
	failUpdate   map[uuid.UUID]error
	failChildren error
	afterUpdate  func(*models.Category)
	pathWrites   int
}

func newMemCategoryRepo() *memCategoryRepo {
	return &memCategoryRepo{rows: map[uuid.UUID]*models.Category{}, failUpdate: map[uuid.UUID]error{}}
}

// add inserts a category with a correctly materialized path.
func (r *memCategoryRepo) add(name string, parent *models.Category) *models.Category {
	c := &models.Category{ID: uuid.New(), Name: name, Slug: hierarchy.Slugify(name)}
	var parentPath *string
	if parent != nil {
		id := parent.ID
		c.ParentID = &id
		parentPath = &parent.Path
	}
	c.Path = hierarchy.JoinPath(parentPath, c.Slug)
	r.rows[c.ID] = c
	return c
}

func (r *memCategoryRepo) get(id uuid.UUID) *models.Category {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *r.rows[id]
	return &c
}

func (r *memCategoryRepo) sorted(match func(*models.Category) bool) []*models.Category {
	out := []*models.Category{}
	for _, c := range r.rows {
		if match(c) {
			cp := *c
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

func (r *memCategoryRepo) Create(ctx context.Context, category *models.Category) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.Slug == category.Slug {
			return repositories.ErrUniqueViolation
		}
	}
	cp := *category
	r.rows[category.ID] = &cp
	return nil
}

func (r *memCategoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *memCategoryRepo) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.rows {
		if c.Slug == slug {
			cp := *c
			return &cp, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (r *memCategoryRepo) GetBySlugs(ctx context.Context, slugs []string) ([]*models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	want := map[string]bool{}
	for _, s := range slugs {
		want[s] = true
	}
	return r.sorted(func(c *models.Category) bool { return want[c.Slug] }), nil
}

func (r *memCategoryRepo) Update(ctx context.Context, category *models.Category) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	if err := r.failUpdate[category.ID]; err != nil {
		r.mu.Unlock()
		return err
	}
	if _, ok := r.rows[category.ID]; !ok {
		r.mu.Unlock()
		return repositories.ErrNotFound
	}
	cp := *category
	r.rows[category.ID] = &cp
	r.mu.Unlock()

	if r.afterUpdate != nil {
		r.afterUpdate(&cp)
	}
	return nil
}

func (r *memCategoryRepo) UpdatePath(ctx context.Context, id uuid.UUID, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failUpdate[id]; err != nil {
		return err
	}
	c, ok := r.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	c.Path = path
	r.pathWrites++
	return nil
}

func (r *memCategoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memCategoryRepo) List(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	all, _ := r.ListAll(ctx)
	if offset >= len(all) {
		return []*models.Category{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (r *memCategoryRepo) Count(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows), nil
}

func (r *memCategoryRepo) ListAll(ctx context.Context) ([]*models.Category, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(*models.Category) bool { return true }), nil
}

func (r *memCategoryRepo) FindByPathPrefix(ctx context.Context, path string) ([]*models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(c *models.Category) bool { return hierarchy.IsUnder(c.Path, path) }), nil
}

func (r *memCategoryRepo) FindDescendants(ctx context.Context, path string) ([]*models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sorted(func(c *models.Category) bool { return strings.HasPrefix(c.Path, hierarchy.DescendantPrefix(path)) }), nil
}

func (r *memCategoryRepo) FindDirectChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Category, error) {
	return r.FindChildrenOf(ctx, []uuid.UUID{parentID})
}

func (r *memCategoryRepo) FindChildrenOf(ctx context.Context, parentIDs []uuid.UUID) ([]*models.Category, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failChildren != nil {
		return nil, r.failChildren
	}
	want := map[uuid.UUID]bool{}
	for _, id := range parentIDs {
		want[id] = true
	}
	return r.sorted(func(c *models.Category) bool { return c.ParentID != nil && want[*c.ParentID] }), nil
}

// memProductRepo is an in-memory ProductRepository.
type memProductRepo struct {
	mu         sync.Mutex
	rows       map[uuid.UUID]*models.Product
	failSet    map[uuid.UUID]error
	failRemove error
}

func newMemProductRepo() *memProductRepo {
	return &memProductRepo{rows: map[uuid.UUID]*models.Product{}, failSet: map[uuid.UUID]error{}}
}

func (r *memProductRepo) add(categories ...uuid.UUID) *models.Product {
	p := &models.Product{ID: uuid.New(), SKU: uuid.NewString(), Name: "product", Categories: categories}
	r.rows[p.ID] = p
	return p
}

func (r *memProductRepo) get(id uuid.UUID) *models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := *r.rows[id]
	p.Categories = append([]uuid.UUID(nil), p.Categories...)
	return &p
}

func (r *memProductRepo) Create(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.rows {
		if p.SKU == product.SKU {
			return repositories.ErrUniqueViolation
		}
	}
	cp := *product
	r.rows[product.ID] = &cp
	return nil
}

func (r *memProductRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.rows[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memProductRepo) Update(ctx context.Context, product *models.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[product.ID]; !ok {
		return repositories.ErrNotFound
	}
	cp := *product
	r.rows[product.ID] = &cp
	return nil
}

func (r *memProductRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repositories.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memProductRepo) matches(p *models.Product, ids []uuid.UUID) bool {
	for _, id := range ids {
		if p.HasCategory(id) {
			return true
		}
	}
	return false
}

func (r *memProductRepo) Search(ctx context.Context, filter *models.ProductSearchFilter) ([]*models.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []*models.Product{}
	for _, p := range r.rows {
		if len(filter.CategoryIDs) > 0 && !r.matches(p, filter.CategoryIDs) {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	return out, nil
}

func (r *memProductRepo) Count(ctx context.Context, filter *models.ProductSearchFilter) (int, error) {
	products, _ := r.Search(ctx, filter)
	return len(products), nil
}

func (r *memProductRepo) SetCategories(ctx context.Context, id uuid.UUID, categoryIDs []uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.failSet[id]; err != nil {
		return err
	}
	p, ok := r.rows[id]
	if !ok {
		return repositories.ErrNotFound
	}
	p.Categories = append([]uuid.UUID(nil), categoryIDs...)
	return nil
}

func (r *memProductRepo) FindByCategories(ctx context.Context, categoryIDs []uuid.UUID) ([]*models.Product, error) {
	return r.Search(ctx, &models.ProductSearchFilter{CategoryIDs: categoryIDs})
}

func (r *memProductRepo) RemoveCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failRemove != nil {
		return 0, r.failRemove
	}
	var n int64
	for _, p := range r.rows {
		kept := p.Categories[:0:0]
		for _, id := range p.Categories {
			if id != categoryID {
				kept = append(kept, id)
			}
		}
		if len(kept) != len(p.Categories) {
			p.Categories = kept
			n++
		}
	}
	return n, nil
}
