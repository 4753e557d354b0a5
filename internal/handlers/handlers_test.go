package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/logger"
	pkgerrors "github.com/audisee/docx2daisy/internal/pkg/errors"
	"github.com/audisee/docx2daisy/internal/services"
)

// stubJobService returns canned values so handler behavior can be tested
// without Redis or a worker.
type stubJobService struct {
	submitJob  *jobs.Job
	submitErr  error
	getJob     *jobs.Job
	getErr     error
	resultPath string
	resultErr  error
	status     *services.QueueStatus

	lastType string
	lastMeta jobs.Metadata
}

func (s *stubJobService) Submit(_ context.Context, jobType, _ string, meta jobs.Metadata) (*jobs.Job, error) {
	s.lastType = jobType
	s.lastMeta = meta
	return s.submitJob, s.submitErr
}

func (s *stubJobService) SubmitBatch(_ context.Context, _, _ string, _ jobs.Metadata, items []services.BatchItem) (*services.BatchResult, error) {
	res := &services.BatchResult{Total: len(items)}
	for _, it := range items {
		res.Items = append(res.Items, services.BatchItemResult{Filename: it.Filename, JobID: "id-" + it.Filename})
		res.Success++
	}
	return res, nil
}

func (s *stubJobService) GetByID(_ context.Context, _ string) (*jobs.Job, error) {
	return s.getJob, s.getErr
}

func (s *stubJobService) ResultPath(_ context.Context, _, _ string) (string, error) {
	return s.resultPath, s.resultErr
}

func (s *stubJobService) QueueStatus(_ context.Context) (*services.QueueStatus, error) {
	return s.status, nil
}

func (s *stubJobService) QueueClear(_ context.Context) (int64, error) { return 2, nil }

func (s *stubJobService) RetryFailed(_ context.Context) ([]string, error) {
	return []string{"a"}, nil
}

func testRouter(t *testing.T, svc services.JobService) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log, err := logger.New("development")
	require.NoError(t, err)

	convert := NewConvertHandler(log, svc, t.TempDir())
	job := NewJobHandler(log, svc)
	admin := NewAdminHandler(log, svc)

	r := gin.New()
	r.GET("/healthcheck", HealthCheck)
	r.POST("/api/convert", convert.Convert)
	r.POST("/api/convert/batch", convert.ConvertBatch)
	r.GET("/api/jobs/:id", job.GetJob)
	r.GET("/api/jobs/:id/result", job.DownloadResult)
	r.GET("/api/admin/queue/status", admin.QueueStatus)
	r.POST("/api/admin/queue/clear", admin.QueueClear)
	r.POST("/api/admin/queue/retry-failed", admin.RetryFailed)
	return r
}

func multipartUpload(t *testing.T, field, filename string, extra map[string]string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	require.NoError(t, err)
	_, err = fw.Write([]byte("file body"))
	require.NoError(t, err)
	for k, v := range extra {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestHealthCheck(t *testing.T) {
	r := testRouter(t, &stubJobService{})
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthcheck", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "ok", w.Body.String())
}

func TestConvertAccepted(t *testing.T) {
	svc := &stubJobService{submitJob: &jobs.Job{ID: "abc", Status: jobs.StatusQueued}}
	r := testRouter(t, svc)

	body, ctype := multipartUpload(t, "file", "book.docx", map[string]string{
		"title":    "Book",
		"priority": "7",
	})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "abc", resp["job_id"])
	require.Equal(t, jobs.StatusQueued, resp["status"])

	require.Equal(t, jobs.TypeConvertToDaisy, svc.lastType, "job type defaults when omitted")
	require.Equal(t, "Book", svc.lastMeta.Title)
	require.Equal(t, 7, svc.lastMeta.Priority)
	require.Equal(t, "ko", svc.lastMeta.Language, "language defaults when omitted")
	require.Equal(t, "book.docx", svc.lastMeta.SourceFilename)
}

func TestConvertMissingFile(t *testing.T) {
	r := testRouter(t, &stubJobService{})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "MISSING_FILE", env.Error.Code)
}

func TestConvertBadPriority(t *testing.T) {
	r := testRouter(t, &stubJobService{})
	body, ctype := multipartUpload(t, "file", "book.docx", map[string]string{"priority": "high"})
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvertValidationErrorMapsTo400(t *testing.T) {
	svc := &stubJobService{submitErr: fmt.Errorf("bad extension: %w", pkgerrors.ErrInvalidArgument)}
	r := testRouter(t, svc)

	body, ctype := multipartUpload(t, "file", "book.pdf", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/convert", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConvertBatch(t *testing.T) {
	r := testRouter(t, &stubJobService{})
	body, ctype := multipartUpload(t, "files", "one.docx", nil)
	req := httptest.NewRequest(http.MethodPost, "/api/convert/batch", body)
	req.Header.Set("Content-Type", ctype)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	var res services.BatchResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Equal(t, 1, res.Total)
	require.Equal(t, 1, res.Success)
	require.Equal(t, "id-one.docx", res.Items[0].JobID)
}

func TestGetJobNotFound(t *testing.T) {
	svc := &stubJobService{getErr: fmt.Errorf("job x: %w", pkgerrors.ErrNotFound)}
	r := testRouter(t, svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var env ErrorEnvelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.Equal(t, "NOT_FOUND", env.Error.Code)
}

func TestGetJobProjection(t *testing.T) {
	svc := &stubJobService{getJob: &jobs.Job{ID: "x", Status: "generate-daisy", Progress: 45}}
	r := testRouter(t, svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/x", nil))

	require.Equal(t, http.StatusOK, w.Code)
	var job jobs.Job
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	require.Equal(t, "generate-daisy", job.Status)
	require.Equal(t, 45, job.Progress)
}

func TestDownloadResultConflictWhileRunning(t *testing.T) {
	svc := &stubJobService{resultErr: fmt.Errorf("still running: %w", pkgerrors.ErrConflict)}
	r := testRouter(t, svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/x/result?name=daisy", nil))
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestDownloadResultServesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.zip")
	require.NoError(t, os.WriteFile(path, []byte("zip bytes"), 0o644))

	svc := &stubJobService{resultPath: path}
	r := testRouter(t, svc)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/jobs/x/result?name=daisy", nil))

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "zip bytes", w.Body.String())
	require.Contains(t, w.Header().Get("Content-Disposition"), "out.zip")
}

func TestAdminEndpoints(t *testing.T) {
	svc := &stubJobService{status: &services.QueueStatus{QueueLength: 3, WorkerCount: 2, Workers: []string{"w1", "w2"}}}
	r := testRouter(t, svc)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin/queue/status", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var status services.QueueStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	require.EqualValues(t, 3, status.QueueLength)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/queue/clear", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"removed":2}`, w.Body.String())

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/admin/queue/retry-failed", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"requeued":1,"job_ids":["a"]}`, w.Body.String())
}
