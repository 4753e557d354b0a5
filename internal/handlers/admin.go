package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/audisee/docx2daisy/internal/logger"
	"github.com/audisee/docx2daisy/internal/services"
)

type AdminHandler struct {
	log        *logger.Logger
	jobService services.JobService
}

func NewAdminHandler(log *logger.Logger, jsvc services.JobService) *AdminHandler {
	return &AdminHandler{
		log:        log.With("handler", "AdminHandler"),
		jobService: jsvc,
	}
}

// GET /api/admin/queue/status
func (h *AdminHandler) QueueStatus(c *gin.Context) {
	status, err := h.jobService.QueueStatus(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, status)
}

// POST /api/admin/queue/clear
func (h *AdminHandler) QueueClear(c *gin.Context) {
	removed, err := h.jobService.QueueClear(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"removed": removed})
}

// POST /api/admin/queue/retry-failed
func (h *AdminHandler) RetryFailed(c *gin.Context) {
	ids, err := h.jobService.RetryFailed(c.Request.Context())
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"requeued": len(ids), "job_ids": ids})
}
