package services

import (
	"errors"
	"fmt"

	"storefront/internal/models"
	"storefront/internal/repositories"
)

var (
	ErrValidation        = errors.New("validation failed")
	ErrNotFound          = repositories.ErrNotFound
	ErrSlugConflict      = errors.New("a category with this slug already exists")
	ErrDanglingParent    = errors.New("category references a parent that does not exist")
	ErrUnresolvableChain = errors.New("category chain cannot be resolved")
)

func validationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// CascadeError reports that a category mutation was applied but some of the
// dependent updates failed. Committed updates are not rolled back. When
// Aborted is set the primary mutation itself was not performed.
type CascadeError struct {
	Report  *models.CascadeReport
	Aborted bool
}

func (e *CascadeError) Error() string {
	failed := 0
	if e.Report != nil {
		if e.Report.Descendants != nil {
			failed += e.Report.Descendants.Failed
		}
		if e.Report.Products != nil {
			failed += e.Report.Products.Failed
		}
	}
	if e.Aborted {
		return fmt.Sprintf("operation aborted: %d dependent updates failed", failed)
	}
	return fmt.Sprintf("operation applied with %d failed dependent updates", failed)
}

// cascadeOutcome turns a report into an error when any cascade failed.
func cascadeOutcome(report *models.CascadeReport) error {
	if report.HasFailures() {
		return &CascadeError{Report: report}
	}
	return nil
}
