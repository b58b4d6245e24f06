package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/delivery/backend/internal/application/maintenance"
	"github.com/delivery/backend/internal/infrastructure/scheduler"
	"github.com/delivery/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// JobQueue runs maintenance jobs in the background
type JobQueue interface {
	Submit(kind string, params map[string]string) (*scheduler.Job, error)
	Job(id uuid.UUID) (scheduler.Job, error)
}

// MaintenanceRequest tunes a maintenance run
type MaintenanceRequest struct {
	DryRun    bool   `json:"dry_run"`
	UploadDir string `json:"upload_dir" binding:"max=500"`
	SeedFile  string `json:"seed_file" binding:"max=500"`
	Limit     int    `json:"limit" binding:"min=0"`
}

// JobResponse is a queued or finished maintenance job
type JobResponse struct {
	ID          uuid.UUID         `json:"id"`
	Job         string            `json:"job"`
	Params      map[string]string `json:"params"`
	Status      string            `json:"status"`
	Error       string            `json:"error,omitempty"`
	RetryCount  int               `json:"retry_count"`
	SubmittedAt time.Time         `json:"submitted_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
}

func toJobResponse(j *scheduler.Job) JobResponse {
	return JobResponse{
		ID:          j.ID,
		Job:         j.Kind,
		Params:      j.Params,
		Status:      string(j.Status),
		Error:       j.Error,
		RetryCount:  j.RetryCount,
		SubmittedAt: j.SubmittedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}

// MaintenanceHandler queues admin maintenance jobs
type MaintenanceHandler struct {
	BaseHandler
	queue JobQueue
}

// NewMaintenanceHandler creates a new MaintenanceHandler
func NewMaintenanceHandler(queue JobQueue) *MaintenanceHandler {
	return &MaintenanceHandler{queue: queue}
}

// Jobs handles GET /admin/maintenance
func (h *MaintenanceHandler) Jobs(c *gin.Context) {
	h.Success(c, gin.H{"jobs": maintenance.Jobs()})
}

// Run handles POST /admin/maintenance/:job and answers 202 with the queued job
func (h *MaintenanceHandler) Run(c *gin.Context) {
	name := c.Param("job")
	if !maintenance.IsJob(name) {
		h.HandleError(c, maintenance.ErrUnknownJob)
		return
	}
	var req MaintenanceRequest
	if c.Request.ContentLength != 0 && !h.bindJSON(c, &req) {
		return
	}

	opts := maintenance.Options{
		DryRun:    req.DryRun,
		UploadDir: req.UploadDir,
		SeedFile:  req.SeedFile,
		Limit:     req.Limit,
	}
	job, err := h.queue.Submit(name, opts.Params())
	switch {
	case errors.Is(err, scheduler.ErrSchedulerNotRunning), errors.Is(err, scheduler.ErrJobQueueFull):
		h.Error(c, http.StatusServiceUnavailable, "SCHEDULER_UNAVAILABLE", err.Error())
		return
	case errors.Is(err, scheduler.ErrJobInProgress):
		h.Error(c, http.StatusConflict, "JOB_IN_PROGRESS", "A "+name+" job is already queued or running")
		return
	case err != nil:
		h.HandleError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(toJobResponse(job)))
}

// Status handles GET /admin/maintenance/jobs/:id
func (h *MaintenanceHandler) Status(c *gin.Context) {
	id, ok := h.pathID(c, "id")
	if !ok {
		return
	}

	job, err := h.queue.Job(id)
	if errors.Is(err, scheduler.ErrJobNotFound) {
		h.Error(c, http.StatusNotFound, "JOB_NOT_FOUND", "Job not found")
		return
	}
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, toJobResponse(&job))
}
