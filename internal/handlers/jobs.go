package handlers

import (
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/audisee/docx2daisy/internal/logger"
	"github.com/audisee/docx2daisy/internal/services"
)

type JobHandler struct {
	log        *logger.Logger
	jobService services.JobService
}

func NewJobHandler(log *logger.Logger, jsvc services.JobService) *JobHandler {
	return &JobHandler{
		log:        log.With("handler", "JobHandler"),
		jobService: jsvc,
	}
}

// GET /api/jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobService.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, job)
}

// GET /api/jobs/:id/result?name=
func (h *JobHandler) DownloadResult(c *gin.Context) {
	path, err := h.jobService.ResultPath(c.Request.Context(), c.Param("id"), c.Query("name"))
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
