package services

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/logger"
	pkgerrors "github.com/audisee/docx2daisy/internal/pkg/errors"
)

const batchSubmitLimit = 10

// BatchItem is one entry of a multi-file submission. SourcePath points at the
// already-saved upload; TitlePrefix (shared across the batch) is combined
// with the filename to derive the per-item title.
type BatchItem struct {
	Filename   string
	SourcePath string
}

type BatchItemResult struct {
	Filename string `json:"filename"`
	JobID    string `json:"job_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

type BatchResult struct {
	Total   int               `json:"total"`
	Success int               `json:"success"`
	Errors  int               `json:"errors"`
	Items   []BatchItemResult `json:"items"`
}

// QueueStatus is the admin snapshot: pending depth, live executors, and a
// coarse picture of the serving process.
type QueueStatus struct {
	QueueLength int64    `json:"queue_length"`
	Workers     []string `json:"workers"`
	WorkerCount int      `json:"worker_count"`

	Goroutines  int    `json:"goroutines"`
	CPUs        int    `json:"cpus"`
	HeapAllocMB uint64 `json:"heap_alloc_mb"`
	HeapSysMB   uint64 `json:"heap_sys_mb"`
}

// JobService is the producer and admin surface over the state store and the
// queue. Submission creates the record before enqueueing the id, so a
// dequeuing worker always finds a record to run.
type JobService interface {
	Submit(ctx context.Context, jobType, sourcePath string, meta jobs.Metadata) (*jobs.Job, error)
	SubmitBatch(ctx context.Context, jobType, titlePrefix string, meta jobs.Metadata, items []BatchItem) (*BatchResult, error)
	GetByID(ctx context.Context, id string) (*jobs.Job, error)
	// ResultPath resolves a named artifact of a finished job to its file path.
	ResultPath(ctx context.Context, id, name string) (string, error)
	QueueStatus(ctx context.Context) (*QueueStatus, error)
	QueueClear(ctx context.Context) (int64, error)
	// RetryFailed resets every failed job back to queued and re-enqueues it.
	RetryFailed(ctx context.Context) ([]string, error)
}

type jobService struct {
	log      *logger.Logger
	store    jobs.Store
	queue    jobs.Queue
	liveness jobs.Liveness
	notify   JobNotifier
}

func NewJobService(
	baseLog *logger.Logger,
	store jobs.Store,
	queue jobs.Queue,
	liveness jobs.Liveness,
	notify JobNotifier,
) JobService {
	return &jobService{
		log:      baseLog.With("service", "JobService"),
		store:    store,
		queue:    queue,
		liveness: liveness,
		notify:   notify,
	}
}

// validateSource checks the upload extension against what the pipeline's
// first stage can read.
func validateSource(jobType, filename string) error {
	ext := strings.ToLower(filepath.Ext(filename))
	switch jobType {
	case jobs.TypeDaisyToEpub:
		if ext != ".zip" {
			return fmt.Errorf("job type %s requires a .zip DAISY archive, got %q: %w", jobType, ext, pkgerrors.ErrInvalidArgument)
		}
	default:
		if ext != ".docx" {
			return fmt.Errorf("job type %s requires a .docx document, got %q: %w", jobType, ext, pkgerrors.ErrInvalidArgument)
		}
	}
	return nil
}

func clampPriority(p int) int {
	if p == 0 {
		return jobs.PriorityDefault
	}
	if p < jobs.PriorityMin {
		return jobs.PriorityMin
	}
	if p > jobs.PriorityMax {
		return jobs.PriorityMax
	}
	return p
}

func (s *jobService) Submit(ctx context.Context, jobType, sourcePath string, meta jobs.Metadata) (*jobs.Job, error) {
	jobType = strings.TrimSpace(jobType)
	if !jobs.KnownType(jobType) {
		return nil, fmt.Errorf("unknown job type %q: %w", jobType, pkgerrors.ErrInvalidArgument)
	}
	if strings.TrimSpace(sourcePath) == "" {
		return nil, fmt.Errorf("missing source file: %w", pkgerrors.ErrInvalidArgument)
	}
	if meta.SourceFilename == "" {
		meta.SourceFilename = filepath.Base(sourcePath)
	}
	if err := validateSource(jobType, meta.SourceFilename); err != nil {
		return nil, err
	}
	meta.Priority = clampPriority(meta.Priority)

	now := time.Now()
	job := &jobs.Job{
		ID:         uuid.NewString(),
		Type:       jobType,
		Status:     jobs.StatusQueued,
		Progress:   0,
		Message:    "Queued",
		Metadata:   meta,
		SourcePath: sourcePath,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := s.store.Put(ctx, job); err != nil {
		return nil, fmt.Errorf("create job record: %w", err)
	}
	if err := s.queue.Enqueue(ctx, job.ID, meta.Priority); err != nil {
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	s.log.Info("Job submitted", "job_id", job.ID, "job_type", jobType, "priority", meta.Priority)
	s.notify.JobQueued(job)
	return job, nil
}

// SubmitBatch submits up to batchSubmitLimit files as independent jobs of the
// same type. Items fail or succeed individually; one bad file never blocks
// the rest.
func (s *jobService) SubmitBatch(ctx context.Context, jobType, titlePrefix string, meta jobs.Metadata, items []BatchItem) (*BatchResult, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("empty batch: %w", pkgerrors.ErrInvalidArgument)
	}
	if len(items) > batchSubmitLimit {
		return nil, fmt.Errorf("batch of %d exceeds the limit of %d: %w", len(items), batchSubmitLimit, pkgerrors.ErrInvalidArgument)
	}

	res := &BatchResult{
		Total: len(items),
		Items: make([]BatchItemResult, len(items)),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, item := range items {
		g.Go(func() error {
			itemMeta := meta
			itemMeta.SourceFilename = item.Filename
			base := strings.TrimSuffix(item.Filename, filepath.Ext(item.Filename))
			if titlePrefix != "" {
				itemMeta.Title = titlePrefix + " - " + base
			} else if itemMeta.Title == "" {
				itemMeta.Title = base
			}

			job, err := s.Submit(gctx, jobType, item.SourcePath, itemMeta)
			if err != nil {
				res.Items[i] = BatchItemResult{Filename: item.Filename, Error: err.Error()}
				return nil
			}
			res.Items[i] = BatchItemResult{Filename: item.Filename, JobID: job.ID}
			return nil
		})
	}
	// Item errors are reported per entry, never through the group.
	_ = g.Wait()

	for _, it := range res.Items {
		if it.Error == "" {
			res.Success++
		} else {
			res.Errors++
		}
	}
	return res, nil
}

func (s *jobService) GetByID(ctx context.Context, id string) (*jobs.Job, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("missing job id: %w", pkgerrors.ErrInvalidArgument)
	}
	return s.store.Get(ctx, id)
}

func (s *jobService) ResultPath(ctx context.Context, id, name string) (string, error) {
	job, err := s.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if job.Status != jobs.StatusFinished {
		return "", fmt.Errorf("job %s is %s, results exist only for finished jobs: %w", id, job.Status, pkgerrors.ErrConflict)
	}
	if name == "" {
		// Single-artifact jobs resolve without a name.
		if len(job.Result) == 1 {
			for _, p := range job.Result {
				return p, nil
			}
		}
		return "", fmt.Errorf("job %s has %d artifacts, name required: %w", id, len(job.Result), pkgerrors.ErrInvalidArgument)
	}
	path, ok := job.Result[name]
	if !ok {
		return "", fmt.Errorf("job %s has no artifact %q: %w", id, name, pkgerrors.ErrNotFound)
	}
	return path, nil
}

func (s *jobService) QueueStatus(ctx context.Context) (*QueueStatus, error) {
	length, err := s.queue.Length(ctx)
	if err != nil {
		return nil, err
	}
	workers, err := s.liveness.Live(ctx)
	if err != nil {
		return nil, err
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return &QueueStatus{
		QueueLength: length,
		Workers:     workers,
		WorkerCount: len(workers),
		Goroutines:  runtime.NumGoroutine(),
		CPUs:        runtime.NumCPU(),
		HeapAllocMB: mem.HeapAlloc / (1 << 20),
		HeapSysMB:   mem.HeapSys / (1 << 20),
	}, nil
}

func (s *jobService) QueueClear(ctx context.Context) (int64, error) {
	length, err := s.queue.Length(ctx)
	if err != nil {
		return 0, err
	}
	if err := s.queue.Clear(ctx); err != nil {
		return 0, err
	}
	s.log.Info("Queue cleared", "removed", length)
	return length, nil
}

func (s *jobService) RetryFailed(ctx context.Context) ([]string, error) {
	ids, err := s.store.FailedIDs(ctx)
	if err != nil {
		return nil, err
	}

	requeued := make([]string, 0, len(ids))
	for _, id := range ids {
		job, err := s.store.Update(ctx, id, func(j *jobs.Job) error {
			if j.Status != jobs.StatusFailed {
				return fmt.Errorf("job %s is %s, only failed jobs retry: %w", j.ID, j.Status, pkgerrors.ErrConflict)
			}
			j.Status = jobs.StatusQueued
			j.Progress = 0
			j.Message = "Queued for retry"
			j.Error = nil
			j.Result = nil
			j.StageTimings = nil
			return nil
		})
		if err != nil {
			// Raced with expiry or another retry; skip, keep going.
			s.log.Warn("Retry reset skipped", "job_id", id, "error", err)
			continue
		}
		if err := s.queue.Enqueue(ctx, id, job.Metadata.Priority); err != nil {
			s.log.Warn("Retry enqueue failed", "job_id", id, "error", err)
			continue
		}
		s.notify.JobQueued(job)
		requeued = append(requeued, id)
	}

	s.log.Info("Failed jobs requeued", "count", len(requeued))
	return requeued, nil
}
