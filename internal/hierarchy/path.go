// Package hierarchy holds the pure parts of the category tree: slug and
// materialized path derivation, path prefix helpers and the flat-to-nested
// tree transformation. Nothing here touches storage.
package hierarchy

import (
	"errors"
	"regexp"
	"strings"
)

// Separator joins slugs inside a materialized path.
const Separator = "/"

// ErrEmptySlug is returned when a name produces no usable slug characters.
var ErrEmptySlug = errors.New("name does not contain any slug characters")

var (
	nonWord = regexp.MustCompile(`[^\w ]+`)
	spaces  = regexp.MustCompile(` +`)
)

// Slugify derives the URL-safe identifier of a category name:
// "Men's Shirts" becomes "mens-shirts".
func Slugify(name string) string {
	s := strings.TrimSpace(strings.ToLower(name))
	s = nonWord.ReplaceAllString(s, "")
	return spaces.ReplaceAllString(s, "-")
}

// Materialized is the derived (slug, path) pair of a category.
type Materialized struct {
	Slug string
	Path string
}

// Materialize computes the slug and path of a category. The slug is only
// recomputed when the name changed or no slug is stored yet, so re-running it
// on an unchanged name is stable. parentPath is nil for root categories.
func Materialize(name, storedSlug string, nameChanged bool, parentPath *string) (Materialized, error) {
	slug := storedSlug
	if nameChanged || slug == "" {
		slug = Slugify(name)
	}
	if slug == "" {
		return Materialized{}, ErrEmptySlug
	}
	return Materialized{Slug: slug, Path: JoinPath(parentPath, slug)}, nil
}

// JoinPath appends slug to the parent path, or returns slug alone for roots.
func JoinPath(parentPath *string, slug string) string {
	if parentPath == nil {
		return slug
	}
	return *parentPath + Separator + slug
}

// SplitPath returns the slugs of a path from root to leaf.
func SplitPath(path string) []string {
	if path == "" {
		return nil
	}
	return strings.Split(path, Separator)
}

// DescendantPrefix is the anchored prefix every strict descendant of path
// starts with. "electronics" yields "electronics/", which does not match
// "electronics2/...".
func DescendantPrefix(path string) string {
	return path + Separator
}

// IsUnder reports whether candidate equals path or lies beneath it.
func IsUnder(candidate, path string) bool {
	return candidate == path || strings.HasPrefix(candidate, DescendantPrefix(path))
}

// Depth is the number of ancestors of the node at path.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator)
}
