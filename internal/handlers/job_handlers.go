package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"catalogfacets/internal/jobs/background"
)

// JobScheduler is the part of background.JobScheduler the handlers use.
type JobScheduler interface {
	GetJobStatus() []background.JobStatus
	RunNow(name string) error
}

type JobHandlers struct {
	scheduler JobScheduler
}

func NewJobHandlers(scheduler JobScheduler) *JobHandlers {
	return &JobHandlers{scheduler: scheduler}
}

func (h *JobHandlers) ListJobs(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobs": h.scheduler.GetJobStatus(),
	})
}

// RunJob triggers a job outside its schedule, e.g. a taxonomy refresh after
// a catalogue import.
func (h *JobHandlers) RunJob(c echo.Context) error {
	name := c.Param("name")
	if err := h.scheduler.RunNow(name); err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"job":    name,
		"status": "triggered",
	})
}
