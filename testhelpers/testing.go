package testhelpers

import (
	"context"
	"os"
	"testing"
	"time"

	"storefront/internal/hierarchy"
	"storefront/internal/models"
	"storefront/pkg/database"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestDB holds the database connection for testing
type TestDB struct {
	Pool    *pgxpool.Pool
	Cleanup func() error
}

// SetupTestDB connects to TEST_DATABASE_URL, applies the migrations and
// empties the tables. The test is skipped when no database is reachable.
func SetupTestDB(t *testing.T, connString string) *TestDB {
	t.Helper()

	if connString == "" {
		connString = os.Getenv("TEST_DATABASE_URL")
		if connString == "" {
			connString = "host=localhost port=5432 user=postgres password=postgres dbname=storefront_test sslmode=disable"
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := database.NewPool(ctx, connString)
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	if err := database.Migrate(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	truncate := func() error {
		_, err := pool.Exec(context.Background(), `TRUNCATE products, categories`)
		return err
	}
	if err := truncate(); err != nil {
		pool.Close()
		t.Fatalf("Failed to reset test database: %v", err)
	}

	return &TestDB{
		Pool: pool,
		Cleanup: func() error {
			defer pool.Close()
			return truncate()
		},
	}
}

// SetupTestCategory inserts a category under parent (nil for a root) with a
// consistent slug and path.
func SetupTestCategory(t *testing.T, db *TestDB, name string, parent *models.Category) *models.Category {
	t.Helper()

	category := &models.Category{
		ID:   uuid.New(),
		Name: name,
		Slug: hierarchy.Slugify(name),
	}
	var parentPath *string
	if parent != nil {
		category.ParentID = &parent.ID
		parentPath = &parent.Path
	}
	category.Path = hierarchy.JoinPath(parentPath, category.Slug)

	query := `
		INSERT INTO categories (id, name, slug, parent_id, path, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := db.Pool.QueryRow(context.Background(), query,
		category.ID, category.Name, category.Slug, category.ParentID, category.Path).
		Scan(&category.CreatedAt, &category.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test category: %v", err)
	}

	return category
}

// SetupTestProduct inserts a product carrying the given category chain.
func SetupTestProduct(t *testing.T, db *TestDB, sku string, chain ...*models.Category) *models.Product {
	t.Helper()

	quantity := 100
	product := &models.Product{
		ID:          uuid.New(),
		SKU:         sku,
		Name:        "Test " + sku,
		Description: "Test product description",
		Price:       10.99,
		Quantity:    &quantity,
		Categories:  make([]uuid.UUID, 0, len(chain)),
	}
	for _, c := range chain {
		product.Categories = append(product.Categories, c.ID)
	}

	query := `
		INSERT INTO products (id, sku, name, description, price, quantity, category_ids, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		RETURNING created_at, updated_at
	`
	err := db.Pool.QueryRow(context.Background(), query,
		product.ID, product.SKU, product.Name, product.Description, product.Price,
		*product.Quantity, product.Categories).
		Scan(&product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		t.Fatalf("Failed to create test product: %v", err)
	}

	return product
}
