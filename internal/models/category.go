package models

import (
	"time"

	"github.com/google/uuid"
)

type Category struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Name      string     `json:"name" db:"name"`
	Slug      string     `json:"slug" db:"slug"`
	ParentID  *uuid.UUID `json:"parent" db:"parent_id"`
	Path      string     `json:"path" db:"path"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// IsRoot reports whether the category has no parent.
func (c *Category) IsRoot() bool {
	return c.ParentID == nil
}

// CategoryNode is the read model served by the tree endpoint. It is rebuilt
// from the flat category set and never mutated after construction.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
}

// FlatCategory is a category with its depth in the tree, used for flat listings
// such as select dropdowns.
type FlatCategory struct {
	Category
	Depth int `json:"depth"`
}

// CategoryUpdate carries a partial category edit. A nil Name leaves the name
// untouched; ParentSet distinguishes "move to root" (ParentSet && ParentID == nil)
// from "parent not supplied".
type CategoryUpdate struct {
	Name      *string
	ParentID  *uuid.UUID
	ParentSet bool
}
