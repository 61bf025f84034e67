package hierarchy

import (
	"storefront/internal/models"

	"github.com/google/uuid"
)

// Forest is the nested view of the category set plus the ids of nodes whose
// parent was not part of the input and were therefore placed at the root.
type Forest struct {
	Roots   []*models.CategoryNode
	Orphans []uuid.UUID
}

// BuildTree nests a flat category list. Children keep the order of the input
// list. The whole forest is built in two linear passes.
func BuildTree(flat []*models.Category) Forest {
	nodes := make(map[uuid.UUID]*models.CategoryNode, len(flat))
	for _, c := range flat {
		nodes[c.ID] = &models.CategoryNode{Category: *c, Children: []*models.CategoryNode{}}
	}

	forest := Forest{Roots: []*models.CategoryNode{}}
	for _, c := range flat {
		node := nodes[c.ID]
		if c.ParentID == nil {
			forest.Roots = append(forest.Roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok || parent == node {
			forest.Orphans = append(forest.Orphans, c.ID)
			forest.Roots = append(forest.Roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}
	return forest
}

// Flatten walks a forest depth-first and returns every node with its depth.
func Flatten(roots []*models.CategoryNode) []models.FlatCategory {
	out := make([]models.FlatCategory, 0, len(roots))
	var walk func(nodes []*models.CategoryNode, depth int)
	walk = func(nodes []*models.CategoryNode, depth int) {
		for _, n := range nodes {
			out = append(out, models.FlatCategory{Category: n.Category, Depth: depth})
			walk(n.Children, depth+1)
		}
	}
	walk(roots, 0)
	return out
}

// Violation describes a category whose stored path disagrees with its parent.
type Violation struct {
	CategoryID   uuid.UUID `json:"category_id"`
	StoredPath   string    `json:"stored_path"`
	ExpectedPath string    `json:"expected_path"`
	Reason       string    `json:"reason"`
}

// Audit checks the path invariant for every category in the set:
// path == parent.path + "/" + slug, or path == slug for roots.
func Audit(flat []*models.Category) []Violation {
	byID := make(map[uuid.UUID]*models.Category, len(flat))
	for _, c := range flat {
		byID[c.ID] = c
	}

	var violations []Violation
	for _, c := range flat {
		var parentPath *string
		if c.ParentID != nil {
			parent, ok := byID[*c.ParentID]
			if !ok {
				violations = append(violations, Violation{
					CategoryID: c.ID,
					StoredPath: c.Path,
					Reason:     "dangling parent",
				})
				continue
			}
			parentPath = &parent.Path
		}
		expected := JoinPath(parentPath, c.Slug)
		if c.Path != expected {
			violations = append(violations, Violation{
				CategoryID:   c.ID,
				StoredPath:   c.Path,
				ExpectedPath: expected,
				Reason:       "path mismatch",
			})
		}
	}
	return violations
}
