package common

import "strings"

// Sort is a validated sort request.
type Sort struct {
	Field string
	Order string // "asc" or "desc"
}

// ParseSort reads a sortBy value such as "price" or "-price". Fields outside
// allowed fall back to defaultField ascending.
func ParseSort(sortBy string, allowed []string, defaultField string) Sort {
	field := strings.TrimPrefix(sortBy, "-")
	for _, a := range allowed {
		if a == field && field != "" {
			order := "asc"
			if strings.HasPrefix(sortBy, "-") {
				order = "desc"
			}
			return Sort{Field: field, Order: order}
		}
	}
	return Sort{Field: defaultField, Order: "asc"}
}
