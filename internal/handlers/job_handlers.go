package handlers

import (
	"net/http"

	"storefront/internal/common"
	"storefront/internal/middleware"

	"github.com/labstack/echo/v4"
)

// JobRunner is the part of the background scheduler exposed over HTTP.
type JobRunner interface {
	GetJobStatus() map[string]interface{}
	RunNow(name string) error
}

type JobHandlers struct {
	jobs JobRunner
}

func NewJobHandlers(jobs JobRunner) *JobHandlers {
	return &JobHandlers{jobs: jobs}
}

// ListJobs handles GET /jobs
func (h *JobHandlers) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, h.jobs.GetJobStatus())
}

// RunJob handles POST /jobs/:name/run. The job runs asynchronously; use it
// to warm the tree cache or audit the hierarchy after a bulk import.
func (h *JobHandlers) RunJob(c echo.Context) error {
	name := c.Param("name")
	if err := h.jobs.RunNow(name); err != nil {
		return common.SendNotFoundError(c, "job "+name)
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "triggered",
	})
}

// RegisterJobRoutes mounts the staff-only job endpoints on g.
func RegisterJobRoutes(g *echo.Group, h *JobHandlers, auth RouteAuth) {
	jobs := g.Group("/jobs", auth.Required, middleware.RequirePermission(common.PermissionUpdateCategories))
	jobs.GET("", h.ListJobs)
	jobs.POST("/:name/run", h.RunJob)
}
