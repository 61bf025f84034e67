package middleware

import (
	"net/http"

	"storefront/internal/common"
	"storefront/internal/logger"

	"github.com/labstack/echo/v4"
)

// AuditMiddleware records who changed catalogue data. Category writes can
// rewrite whole subtrees, so every mutating request is logged with its
// outcome.
type AuditMiddleware struct {
	log *logger.Logger
}

// NewAuditMiddleware creates a new audit middleware instance
func NewAuditMiddleware(log *logger.Logger) *AuditMiddleware {
	return &AuditMiddleware{log: log.With("component", "audit")}
}

// AuditMutations logs POST, PUT, PATCH and DELETE requests after they run.
func (m *AuditMiddleware) AuditMutations() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			err := next(c)

			if !isMutation(c.Request().Method) {
				return err
			}

			subject, ok := common.GetSubjectFromContext(c.Request().Context())
			if !ok {
				subject = "anonymous"
			}
			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}

			fields := []interface{}{
				"subject", subject,
				"method", c.Request().Method,
				"route", c.Path(),
				"resource_id", c.Param("id"),
				"status", status,
			}
			switch {
			case err != nil || status >= http.StatusInternalServerError:
				m.log.Error("catalogue mutation failed", append(fields, "error", err)...)
			case status == http.StatusMultiStatus:
				m.log.Warn("catalogue mutation partially applied", fields...)
			case status >= http.StatusBadRequest:
				m.log.Info("catalogue mutation rejected", fields...)
			default:
				m.log.Info("catalogue mutation", fields...)
			}
			return err
		}
	}
}

func isMutation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}
