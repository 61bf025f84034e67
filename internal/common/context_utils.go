package common

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type contextKey string

const (
	SubjectKey     contextKey = "subject"
	PermissionsKey contextKey = "permissions"
)

// Permissions carried in the access token's permissions claim.
const (
	PermissionReadCategories   = "read:categories"
	PermissionCreateCategories = "create:categories"
	PermissionUpdateCategories = "update:categories"
	PermissionDeleteCategories = "delete:categories"
	PermissionCreateProducts   = "create:products"
	PermissionUpdateProducts   = "update:products"
	PermissionDeleteProducts   = "delete:products"

	// PermissionReadInventory unlocks inventory fields and staff-only filters.
	PermissionReadInventory = "read:inventory"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error struct {
		Code    string            `json:"code"`
		Message string            `json:"message"`
		Details map[string]string `json:"details,omitempty"`
	} `json:"error"`
}

// CreateErrorResponse creates a standardized error response
func CreateErrorResponse(code string, message string, details map[string]string) *ErrorResponse {
	var resp ErrorResponse
	resp.Error.Code = code
	resp.Error.Message = message
	resp.Error.Details = details
	return &resp
}

// SendValidationError sends a validation error response
func SendValidationError(c echo.Context, field, message string) error {
	details := map[string]string{
		field: message,
	}
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("VALIDATION_ERROR", "Validation failed", details))
}

// SendClientError sends a client error response
func SendClientError(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, CreateErrorResponse("CLIENT_ERROR", message, nil))
}

// SendConflictError sends a conflict error response
func SendConflictError(c echo.Context, message string) error {
	return c.JSON(http.StatusConflict, CreateErrorResponse("CONFLICT", message, nil))
}

// SendUnprocessableError sends a response for well-formed requests that
// reference data the server cannot resolve
func SendUnprocessableError(c echo.Context, message string) error {
	return c.JSON(http.StatusUnprocessableEntity, CreateErrorResponse("UNPROCESSABLE", message, nil))
}

// SendServerError sends a server error response
func SendServerError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, CreateErrorResponse("SERVER_ERROR", message, nil))
}

// SendNotFoundError sends a not found error response
func SendNotFoundError(c echo.Context, resource string) error {
	return c.JSON(http.StatusNotFound, CreateErrorResponse("NOT_FOUND", fmt.Sprintf("%s not found", resource), nil))
}

// SendUnauthorizedError sends an unauthorized error response
func SendUnauthorizedError(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, CreateErrorResponse("UNAUTHORIZED", "Unauthorized access", nil))
}

// SendForbiddenError sends a forbidden error response
func SendForbiddenError(c echo.Context, permission string) error {
	return c.JSON(http.StatusForbidden, CreateErrorResponse("FORBIDDEN", "Insufficient permissions",
		map[string]string{"required": permission}))
}

// ValidateUUID validates UUID format with comprehensive checks
func ValidateUUID(idStr string, fieldName string) (uuid.UUID, error) {
	if strings.TrimSpace(idStr) == "" {
		return uuid.Nil, fmt.Errorf("%s is required", fieldName)
	}

	idStr = strings.TrimSpace(idStr)

	if len(idStr) != 36 {
		return uuid.Nil, fmt.Errorf("%s must be exactly 36 characters (including hyphens)", fieldName)
	}

	expectedHyphens := []int{8, 13, 18, 23}
	for _, pos := range expectedHyphens {
		if idStr[pos] != '-' {
			return uuid.Nil, fmt.Errorf("%s has invalid UUID format: hyphens must be at positions 9, 14, 19, and 24", fieldName)
		}
	}

	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%s contains invalid characters: %v", fieldName, err)
	}

	return id, nil
}

// WithPrincipal stores the authenticated subject and its permissions
func WithPrincipal(ctx context.Context, subject string, permissions []string) context.Context {
	ctx = context.WithValue(ctx, SubjectKey, subject)
	return context.WithValue(ctx, PermissionsKey, permissions)
}

// GetSubjectFromContext extracts the authenticated subject from the request context
func GetSubjectFromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(SubjectKey).(string)
	return subject, ok
}

// GetPermissionsFromContext extracts the caller's permissions from the request context
func GetPermissionsFromContext(ctx context.Context) []string {
	permissions, _ := ctx.Value(PermissionsKey).([]string)
	return permissions
}

// HasPermission reports whether the caller holds permission
func HasPermission(ctx context.Context, permission string) bool {
	for _, p := range GetPermissionsFromContext(ctx) {
		if p == permission {
			return true
		}
	}
	return false
}

// IsStaff reports whether the caller may see inventory data
func IsStaff(ctx context.Context) bool {
	return HasPermission(ctx, PermissionReadInventory)
}
