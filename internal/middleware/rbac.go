package middleware

import (
	"storefront/internal/common"

	"github.com/labstack/echo/v4"
)

// RequirePermission allows the request only when the authenticated caller's
// token carries permission.
func RequirePermission(permission string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			if _, ok := common.GetSubjectFromContext(ctx); !ok {
				return common.SendUnauthorizedError(c)
			}
			if !common.HasPermission(ctx, permission) {
				return common.SendForbiddenError(c, permission)
			}
			return next(c)
		}
	}
}
