package repositories

import (
	"context"
	"fmt"
	"strings"

	"storefront/internal/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ProductRepository interface {
	Create(ctx context.Context, product *models.Product) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, filter *models.ProductSearchFilter) ([]*models.Product, error)
	Count(ctx context.Context, filter *models.ProductSearchFilter) (int, error)
	SetCategories(ctx context.Context, id uuid.UUID, categoryIDs []uuid.UUID) error
	FindByCategories(ctx context.Context, categoryIDs []uuid.UUID) ([]*models.Product, error)
	RemoveCategory(ctx context.Context, categoryID uuid.UUID) (int64, error)
}

const productColumns = `id, sku, name, description, price, quantity, category_ids, created_at, updated_at`

// sortable columns; the service decides which of these a caller may use
var productSortColumns = map[string]string{
	"name":       "name",
	"price":      "price",
	"quantity":   "quantity",
	"created_at": "created_at",
}

type productRepo struct {
	db DB
}

func NewProductRepo(db DB) ProductRepository {
	return &productRepo{db: db}
}

func scanProduct(row pgx.Row) (*models.Product, error) {
	product := &models.Product{}
	err := row.Scan(&product.ID, &product.SKU, &product.Name, &product.Description, &product.Price,
		&product.Quantity, &product.Categories, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	if product.Categories == nil {
		product.Categories = []uuid.UUID{}
	}
	return product, nil
}

func (r *productRepo) queryProducts(ctx context.Context, query string, args ...any) ([]*models.Product, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := []*models.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

func (r *productRepo) Create(ctx context.Context, product *models.Product) error {
	query := `
		INSERT INTO products (id, sku, name, description, price, quantity, category_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query, product.ID, product.SKU, product.Name, product.Description,
		product.Price, quantityOrZero(product.Quantity), categoriesOrEmpty(product.Categories)).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	return mapError(err)
}

func (r *productRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE id = $1`
	return scanProduct(r.db.QueryRow(ctx, query, id))
}

func (r *productRepo) Update(ctx context.Context, product *models.Product) error {
	query := `
		UPDATE products
		SET sku = $1, name = $2, description = $3, price = $4, quantity = $5, category_ids = $6, updated_at = NOW()
		WHERE id = $7
	`
	tag, err := r.db.Exec(ctx, query, product.SKU, product.Name, product.Description, product.Price,
		quantityOrZero(product.Quantity), categoriesOrEmpty(product.Categories), product.ID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SetCategories replaces the stored category chain of a product.
func (r *productRepo) SetCategories(ctx context.Context, id uuid.UUID, categoryIDs []uuid.UUID) error {
	query := `UPDATE products SET category_ids = $1, updated_at = NOW() WHERE id = $2`
	tag, err := r.db.Exec(ctx, query, categoriesOrEmpty(categoryIDs), id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// FindByCategories returns every product whose chain contains any of the ids.
func (r *productRepo) FindByCategories(ctx context.Context, categoryIDs []uuid.UUID) ([]*models.Product, error) {
	if len(categoryIDs) == 0 {
		return []*models.Product{}, nil
	}
	query := `
		SELECT ` + productColumns + `
		FROM products
		WHERE category_ids && $1
		ORDER BY id
	`
	return r.queryProducts(ctx, query, categoryIDs)
}

// RemoveCategory strips a category id from every product that references it
// and returns the number of products touched.
func (r *productRepo) RemoveCategory(ctx context.Context, categoryID uuid.UUID) (int64, error) {
	query := `
		UPDATE products
		SET category_ids = array_remove(category_ids, $1), updated_at = NOW()
		WHERE $1 = ANY(category_ids)
	`
	tag, err := r.db.Exec(ctx, query, categoryID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// buildWhere renders the filter conditions shared by Search and Count.
func buildWhere(filter *models.ProductSearchFilter) (string, []any) {
	var conditions []string
	var args []any

	if filter.Query != "" {
		args = append(args, "%"+escapeLike(filter.Query)+"%")
		conditions = append(conditions, fmt.Sprintf(`(name ILIKE $%d ESCAPE '\' OR sku ILIKE $%d ESCAPE '\')`, len(args), len(args)))
	}
	if len(filter.CategoryIDs) > 0 {
		args = append(args, filter.CategoryIDs)
		conditions = append(conditions, fmt.Sprintf(`category_ids && $%d`, len(args)))
	}
	if filter.MinPrice != nil {
		args = append(args, *filter.MinPrice)
		conditions = append(conditions, fmt.Sprintf(`price >= $%d`, len(args)))
	}
	if filter.MaxPrice != nil {
		args = append(args, *filter.MaxPrice)
		conditions = append(conditions, fmt.Sprintf(`price <= $%d`, len(args)))
	}
	if filter.MaxInventory != nil {
		args = append(args, *filter.MaxInventory)
		conditions = append(conditions, fmt.Sprintf(`quantity <= $%d`, len(args)))
	}

	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func (r *productRepo) Search(ctx context.Context, filter *models.ProductSearchFilter) ([]*models.Product, error) {
	where, args := buildWhere(filter)

	sortField, ok := productSortColumns[filter.SortBy]
	if !ok {
		sortField = "created_at"
	}
	sortOrder := "ASC"
	if strings.ToLower(filter.SortOrder) == "desc" {
		sortOrder = "DESC"
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 10
	}
	args = append(args, limit, filter.Offset)

	query := `SELECT ` + productColumns + ` FROM products` + where +
		fmt.Sprintf(` ORDER BY %s %s, id ASC LIMIT $%d OFFSET $%d`, sortField, sortOrder, len(args)-1, len(args))
	return r.queryProducts(ctx, query, args...)
}

func (r *productRepo) Count(ctx context.Context, filter *models.ProductSearchFilter) (int, error) {
	where, args := buildWhere(filter)
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where, args...).Scan(&count)
	return count, err
}

func quantityOrZero(q *int) int {
	if q == nil {
		return 0
	}
	return *q
}

func categoriesOrEmpty(ids []uuid.UUID) []uuid.UUID {
	if ids == nil {
		return []uuid.UUID{}
	}
	return ids
}
