package handlers

import (
	"errors"
	"net/http"
	"strings"

	"storefront/internal/common"
	"storefront/internal/logger"
	"storefront/internal/services"

	"github.com/labstack/echo/v4"
)

// respondError maps service errors onto the common error envelope. Cascade
// errors carry a report and go through respondCascade instead.
func respondError(c echo.Context, log *logger.Logger, err error, resource string) error {
	switch {
	case errors.Is(err, services.ErrValidation):
		return common.SendClientError(c, strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": "))
	case errors.Is(err, services.ErrNotFound):
		return common.SendNotFoundError(c, resource)
	case errors.Is(err, services.ErrSlugConflict), errors.Is(err, services.ErrDuplicateSKU):
		return common.SendConflictError(c, err.Error())
	case errors.Is(err, services.ErrDanglingParent):
		log.Error("hierarchy inconsistency", "error", err)
		return common.SendConflictError(c, err.Error())
	case errors.Is(err, services.ErrUnresolvableChain):
		return common.SendUnprocessableError(c, err.Error())
	default:
		log.Error("request failed", "resource", resource, "error", err)
		return common.SendServerError(c, "Failed to process "+resource)
	}
}

// cascadeResponse is returned with 207 when a mutation was applied but some
// dependent updates failed, and with 409 when the mutation was aborted.
type cascadeResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Cascade interface{} `json:"cascade"`
}

func respondCascade(c echo.Context, log *logger.Logger, cascadeErr *services.CascadeError, data interface{}) error {
	status := http.StatusMultiStatus
	if cascadeErr.Aborted {
		status = http.StatusConflict
	}
	log.Warn("cascade incomplete", "status", status, "error", cascadeErr)
	return c.JSON(status, cascadeResponse{
		Message: cascadeErr.Error(),
		Data:    data,
		Cascade: cascadeErr.Report,
	})
}
