package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/logger"
	"github.com/audisee/docx2daisy/internal/services"
	"github.com/audisee/docx2daisy/internal/ws"
)

type WSHandler struct {
	log        *logger.Logger
	hub        *ws.Hub
	jobService services.JobService
	upgrader   websocket.Upgrader
}

func NewWSHandler(log *logger.Logger, hub *ws.Hub, jsvc services.JobService) *WSHandler {
	return &WSHandler{
		log:        log.With("handler", "WSHandler"),
		hub:        hub,
		jobService: jsvc,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser producers live on other origins; the job id is the
			// only capability needed to watch a job.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// GET /ws/jobs/:id
//
// The subscription is registered before the initial snapshot is read, so a
// transition landing in between is delivered rather than lost.
func (h *WSHandler) Subscribe(c *gin.Context) {
	id := c.Param("id")
	if _, err := h.jobService.GetByID(c.Request.Context(), id); err != nil {
		RespondServiceError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed", "job_id", id, "error", err)
		return
	}

	client := h.hub.Subscribe(id)
	job, err := h.jobService.GetByID(c.Request.Context(), id)
	if err != nil {
		// Expired between the precheck and the upgrade.
		h.hub.Unsubscribe(client)
		conn.Close()
		return
	}
	h.hub.Serve(conn, client, jobs.EventOf(job))
}
