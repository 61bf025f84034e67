package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductSearchFilter holds search and filter criteria for product queries
type ProductSearchFilter struct {
	Query        string      `json:"query,omitempty"`         // Case-insensitive match on name or sku
	CategoryIDs  []uuid.UUID `json:"category_ids,omitempty"`  // Products carrying any of these ids
	MinPrice     *float64    `json:"min_price,omitempty"`     // Minimum price
	MaxPrice     *float64    `json:"max_price,omitempty"`     // Maximum price
	MaxInventory *int        `json:"max_inventory,omitempty"` // Maximum stock quantity (staff only)
	SortBy       string      `json:"sort_by,omitempty"`       // Sort field: name, price, quantity
	SortOrder    string      `json:"sort_order,omitempty"`    // Sort order: asc, desc
	Limit        int         `json:"limit,omitempty"`
	Offset       int         `json:"offset,omitempty"`
}

type Product struct {
	ID          uuid.UUID `json:"id" db:"id"`
	SKU         string    `json:"sku" db:"sku"`
	Name        string    `json:"name" db:"name"`
	Description string    `json:"description" db:"description"`
	Price       float64   `json:"price" db:"price"`
	Quantity    *int      `json:"quantity,omitempty" db:"quantity"`
	// Categories is the full ancestor chain, root first, ending at the leaf
	// category the product was assigned to.
	Categories []uuid.UUID `json:"categories" db:"category_ids"`
	CreatedAt  time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at" db:"updated_at"`
}

// LeafCategory returns the most specific category of the product, or nil when
// the product is uncategorized.
func (p *Product) LeafCategory() *uuid.UUID {
	if len(p.Categories) == 0 {
		return nil
	}
	leaf := p.Categories[len(p.Categories)-1]
	return &leaf
}

// HasCategory reports whether id is part of the product's category chain.
func (p *Product) HasCategory(id uuid.UUID) bool {
	for _, c := range p.Categories {
		if c == id {
			return true
		}
	}
	return false
}

// ProductUpdate carries a partial product edit. Category, when set, is the
// new leaf category; the stored chain is re-expanded from it.
type ProductUpdate struct {
	SKU         *string
	Name        *string
	Description *string
	Price       *float64
	Quantity    *int
	Category    *uuid.UUID
}
