package repositories

import (
	"context"

	"storefront/internal/hierarchy"
	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type CategoryRepository interface {
	Create(ctx context.Context, category *models.Category) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error)
	GetBySlug(ctx context.Context, slug string) (*models.Category, error)
	GetBySlugs(ctx context.Context, slugs []string) ([]*models.Category, error)
	Update(ctx context.Context, category *models.Category) error
	UpdatePath(ctx context.Context, id uuid.UUID, path string) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, limit, offset int) ([]*models.Category, error)
	Count(ctx context.Context) (int, error)
	ListAll(ctx context.Context) ([]*models.Category, error)
	FindByPathPrefix(ctx context.Context, path string) ([]*models.Category, error)
	FindDescendants(ctx context.Context, path string) ([]*models.Category, error)
	FindDirectChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Category, error)
	FindChildrenOf(ctx context.Context, parentIDs []uuid.UUID) ([]*models.Category, error)
}

const categoryColumns = `id, name, slug, parent_id, path, created_at, updated_at`

type categoryRepo struct {
	db DB
}

func NewCategoryRepo(db DB) CategoryRepository {
	return &categoryRepo{db: db}
}

func scanCategory(row pgx.Row) (*models.Category, error) {
	category := &models.Category{}
	err := row.Scan(&category.ID, &category.Name, &category.Slug, &category.ParentID,
		&category.Path, &category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return category, nil
}

func (r *categoryRepo) queryCategories(ctx context.Context, query string, args ...any) ([]*models.Category, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*models.Category{}
	for rows.Next() {
		category, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// Create inserts a category whose slug and path are already materialized.
func (r *categoryRepo) Create(ctx context.Context, category *models.Category) error {
	query := `
		INSERT INTO categories (id, name, slug, parent_id, path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, category.ID, category.Name, category.Slug, category.ParentID, category.Path).
		Scan(&category.CreatedAt, &category.UpdatedAt)
	return mapError(err)
}

func (r *categoryRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`
	return scanCategory(r.db.QueryRow(ctx, query, id))
}

func (r *categoryRepo) GetBySlug(ctx context.Context, slug string) (*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE slug = $1`
	return scanCategory(r.db.QueryRow(ctx, query, slug))
}

// GetBySlugs returns the categories matching any of the slugs, in no
// particular order. Missing slugs are simply absent from the result.
func (r *categoryRepo) GetBySlugs(ctx context.Context, slugs []string) ([]*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories WHERE slug = ANY($1)`
	return r.queryCategories(ctx, query, slugs)
}

func (r *categoryRepo) Update(ctx context.Context, category *models.Category) error {
	query := `
		UPDATE categories
		SET name = $1, slug = $2, parent_id = $3, path = $4, updated_at = NOW()
		WHERE id = $5
	`
	tag, err := r.db.Exec(ctx, query, category.Name, category.Slug, category.ParentID, category.Path, category.ID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdatePath rewrites only the materialized path, used by descendant cascades.
func (r *categoryRepo) UpdatePath(ctx context.Context, id uuid.UUID, path string) error {
	query := `UPDATE categories SET path = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, path, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *categoryRepo) List(ctx context.Context, limit, offset int) ([]*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		ORDER BY path ASC
		LIMIT $1 OFFSET $2
	`
	return r.queryCategories(ctx, query, limit, offset)
}

func (r *categoryRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM categories`).Scan(&count)
	return count, err
}

// ListAll returns the whole category set ordered by path, so parents always
// precede their children.
func (r *categoryRepo) ListAll(ctx context.Context) ([]*models.Category, error) {
	query := `SELECT ` + categoryColumns + ` FROM categories ORDER BY path ASC`
	return r.queryCategories(ctx, query)
}

// FindByPathPrefix returns the category at path and everything beneath it.
// The prefix is anchored on the separator so "books" does not match "bookshelves".
func (r *categoryRepo) FindByPathPrefix(ctx context.Context, path string) ([]*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE path = $1 OR path LIKE $2 ESCAPE '\'
		ORDER BY path ASC
	`
	return r.queryCategories(ctx, query, path, escapeLike(hierarchy.DescendantPrefix(path))+"%")
}

// FindDescendants returns the strict descendants of path.
func (r *categoryRepo) FindDescendants(ctx context.Context, path string) ([]*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE path LIKE $1 ESCAPE '\'
		ORDER BY path ASC
	`
	return r.queryCategories(ctx, query, escapeLike(hierarchy.DescendantPrefix(path))+"%")
}

func (r *categoryRepo) FindDirectChildren(ctx context.Context, parentID uuid.UUID) ([]*models.Category, error) {
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE parent_id = $1
		ORDER BY path ASC
	`
	return r.queryCategories(ctx, query, parentID)
}

// FindChildrenOf returns the direct children of every listed parent, which is
// one level of a breadth-first walk.
func (r *categoryRepo) FindChildrenOf(ctx context.Context, parentIDs []uuid.UUID) ([]*models.Category, error) {
	if len(parentIDs) == 0 {
		return []*models.Category{}, nil
	}
	query := `
		SELECT ` + categoryColumns + `
		FROM categories
		WHERE parent_id = ANY($1)
		ORDER BY path ASC
	`
	return r.queryCategories(ctx, query, parentIDs)
}
