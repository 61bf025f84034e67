package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	CascadeStatusCompleted = "completed"
	CascadeStatusPartial   = "partial"
	CascadeStatusFailed    = "failed"
)

// CascadeResult represents the outcome of a best-effort batch of dependent
// writes (descendant path updates, product re-syncs). Successful items stay
// committed even when others fail.
type CascadeResult struct {
	Operation string           `json:"operation"`          // e.g. "descendant_paths", "product_resync"
	Status    string           `json:"status"`             // "completed", "partial", "failed"
	Updated   int              `json:"updated"`            // Items whose stored value changed
	Unchanged int              `json:"unchanged"`          // Items visited that were already consistent
	Failed    int              `json:"failed"`             // Items that failed or were skipped under a failed parent
	StartTime time.Time        `json:"start_time"`
	Duration  time.Duration    `json:"duration_ns"`
	Failures  []CascadeFailure `json:"failures,omitempty"` // Per-item failures
}

// CascadeFailure identifies a single item that could not be updated.
type CascadeFailure struct {
	ItemID uuid.UUID `json:"item_id"`
	Path   string    `json:"path,omitempty"`
	Error  string    `json:"error"`
}

// NewCascadeResult starts a result for the named operation.
func NewCascadeResult(operation string) *CascadeResult {
	return &CascadeResult{
		Operation: operation,
		Status:    CascadeStatusCompleted,
		StartTime: time.Now(),
		Failures:  []CascadeFailure{},
	}
}

// AddFailure records a failed item.
func (r *CascadeResult) AddFailure(id uuid.UUID, path string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, CascadeFailure{ItemID: id, Path: path, Error: err.Error()})
}

// Merge folds other into r, keeping r's operation name.
func (r *CascadeResult) Merge(other *CascadeResult) {
	if other == nil {
		return
	}
	r.Updated += other.Updated
	r.Unchanged += other.Unchanged
	r.Failed += other.Failed
	r.Failures = append(r.Failures, other.Failures...)
}

// Finish sets the final status and duration.
func (r *CascadeResult) Finish() *CascadeResult {
	r.Duration = time.Since(r.StartTime)
	switch {
	case r.Failed == 0:
		r.Status = CascadeStatusCompleted
	case r.Updated > 0 || r.Unchanged > 0:
		r.Status = CascadeStatusPartial
	default:
		r.Status = CascadeStatusFailed
	}
	return r
}

// HasFailures reports whether any item failed.
func (r *CascadeResult) HasFailures() bool {
	return r != nil && r.Failed > 0
}

// CascadeReport groups the cascades triggered by one category mutation.
type CascadeReport struct {
	Descendants *CascadeResult `json:"descendants,omitempty"`
	Products    *CascadeResult `json:"products,omitempty"`
}

// HasFailures reports whether any cascade in the report failed.
func (r *CascadeReport) HasFailures() bool {
	return r != nil && (r.Descendants.HasFailures() || r.Products.HasFailures())
}
