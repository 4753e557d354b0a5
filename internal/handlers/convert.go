package handlers

import (
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/logger"
	"github.com/audisee/docx2daisy/internal/services"
)

type ConvertHandler struct {
	log        *logger.Logger
	jobService services.JobService
	uploadDir  string
}

func NewConvertHandler(log *logger.Logger, jsvc services.JobService, uploadDir string) *ConvertHandler {
	return &ConvertHandler{
		log:        log.With("handler", "ConvertHandler"),
		jobService: jsvc,
		uploadDir:  uploadDir,
	}
}

// metadataFromForm reads the optional submission fields. Priority parse
// errors are caller errors; everything else defaults.
func metadataFromForm(c *gin.Context) (jobs.Metadata, error) {
	meta := jobs.Metadata{
		Title:     c.PostForm("title"),
		Author:    c.PostForm("author"),
		Publisher: c.PostForm("publisher"),
		Language:  c.DefaultPostForm("language", "ko"),
	}
	if raw := c.PostForm("priority"); raw != "" {
		p, err := strconv.Atoi(raw)
		if err != nil {
			return meta, fmt.Errorf("priority must be an integer, got %q", raw)
		}
		meta.Priority = p
	}
	return meta, nil
}

// saveUpload stores one multipart file under the upload directory with a
// unique prefix, keeping the original basename for the pipeline's metadata
// fallbacks.
func (h *ConvertHandler) saveUpload(c *gin.Context, fh *multipart.FileHeader) (string, error) {
	name := fmt.Sprintf("%s_%s", uuid.NewString()[:8], filepath.Base(fh.Filename))
	dst := filepath.Join(h.uploadDir, name)
	if err := c.SaveUploadedFile(fh, dst); err != nil {
		return "", fmt.Errorf("save upload %s: %w", fh.Filename, err)
	}
	return dst, nil
}

// POST /api/convert
func (h *ConvertHandler) Convert(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", fmt.Errorf("multipart field 'file' required"))
		return
	}
	meta, err := metadataFromForm(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err)
		return
	}
	jobType := c.DefaultPostForm("job_type", jobs.TypeConvertToDaisy)
	meta.SourceFilename = filepath.Base(fh.Filename)

	path, err := h.saveUpload(c, fh)
	if err != nil {
		h.log.Error("Upload save failed", "filename", fh.Filename, "error", err)
		RespondError(c, http.StatusInternalServerError, "UPLOAD_FAILED", err)
		return
	}

	job, err := h.jobService.Submit(c.Request.Context(), jobType, path, meta)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// POST /api/convert/batch
func (h *ConvertHandler) ConvertBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_MULTIPART", err)
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		RespondError(c, http.StatusBadRequest, "MISSING_FILE", fmt.Errorf("multipart field 'files' requires at least one file"))
		return
	}
	meta, err := metadataFromForm(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "INVALID_ARGUMENT", err)
		return
	}
	jobType := c.DefaultPostForm("job_type", jobs.TypeConvertToDaisy)
	titlePrefix := meta.Title
	meta.Title = ""

	items := make([]services.BatchItem, 0, len(files))
	for _, fh := range files {
		path, err := h.saveUpload(c, fh)
		if err != nil {
			// Surface the save failure as a per-item error, not a batch abort.
			items = append(items, services.BatchItem{Filename: filepath.Base(fh.Filename)})
			continue
		}
		items = append(items, services.BatchItem{Filename: filepath.Base(fh.Filename), SourcePath: path})
	}

	res, err := h.jobService.SubmitBatch(c.Request.Context(), jobType, titlePrefix, meta, items)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}
