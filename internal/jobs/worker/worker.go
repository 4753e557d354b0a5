package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/google/uuid"

	"github.com/audisee/docx2daisy/internal/jobs"
	jobruntime "github.com/audisee/docx2daisy/internal/jobs/runtime"
	"github.com/audisee/docx2daisy/internal/logger"
	pkgerrors "github.com/audisee/docx2daisy/internal/pkg/errors"
	"github.com/audisee/docx2daisy/internal/services"
	"github.com/audisee/docx2daisy/internal/utils"
)

const dequeueWait = 2 * time.Second

// heartbeatEvery keeps a busy executor's liveness key alive well inside
// jobs.HeartbeatTTL; a stage run can outlast the TTL many times over.
var heartbeatEvery = jobs.HeartbeatTTL / 3

// Pool runs N executor loops, each repeatedly dequeuing one job and driving
// its stage pipeline to a terminal state. Executors share only the queue and
// the state store; a job is owned by exactly one executor for its whole run.
type Pool struct {
	log      *logger.Logger
	store    jobs.Store
	queue    jobs.Queue
	registry *jobruntime.Registry
	notify   services.JobNotifier
	liveness jobs.Liveness
	size     int
}

func NewPool(
	baseLog *logger.Logger,
	store jobs.Store,
	queue jobs.Queue,
	registry *jobruntime.Registry,
	notify services.JobNotifier,
	liveness jobs.Liveness,
) *Pool {
	return &Pool{
		log:      baseLog.With("component", "WorkerPool"),
		store:    store,
		queue:    queue,
		registry: registry,
		notify:   notify,
		liveness: liveness,
		size:     Concurrency(baseLog),
	}
}

// Concurrency resolves the pool size: WORKER_CONCURRENCY wins outright,
// otherwise the detected core count capped by WORKER_MAX.
func Concurrency(log *logger.Logger) int {
	if n := utils.GetEnvAsInt("WORKER_CONCURRENCY", 0, log); n > 0 {
		return n
	}
	n := runtime.NumCPU()
	if limit := utils.GetEnvAsInt("WORKER_MAX", 8, log); n > limit {
		n = limit
	}
	if n < 1 {
		n = 1
	}
	return n
}

func (p *Pool) Size() int { return p.size }

// Start launches the executor goroutines. They stop when ctx is canceled;
// a job already in flight runs to completion first.
func (p *Pool) Start(ctx context.Context) {
	p.log.Info("Starting worker pool", "concurrency", p.size)
	host, _ := os.Hostname()
	for i := 0; i < p.size; i++ {
		workerID := fmt.Sprintf("%s-%d-%s", host, i+1, uuid.NewString()[:8])
		go p.runLoop(ctx, workerID)
	}
}

func (p *Pool) runLoop(ctx context.Context, workerID string) {
	log := p.log.With("worker_id", workerID)
	for {
		if ctx.Err() != nil {
			log.Info("Worker loop stopped")
			return
		}
		if p.liveness != nil {
			if err := p.liveness.Beat(ctx, workerID); err != nil {
				log.Warn("Heartbeat failed", "error", err)
			}
		}

		id, err := p.queue.Dequeue(ctx, dequeueWait)
		if errors.Is(err, jobs.ErrEmpty) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				log.Info("Worker loop stopped")
				return
			}
			log.Warn("Dequeue failed", "error", err)
			time.Sleep(time.Second)
			continue
		}

		p.runOne(ctx, log, workerID, id)
	}
}

// keepAlive refreshes the heartbeat while a job is in flight, so the
// liveness snapshot still lists an executor that is busy rather than dead.
func (p *Pool) keepAlive(ctx context.Context, log *logger.Logger, workerID string) {
	ticker := time.NewTicker(heartbeatEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.liveness.Beat(ctx, workerID); err != nil && ctx.Err() == nil {
				log.Warn("Heartbeat failed", "error", err)
			}
		}
	}
}

func (p *Pool) runOne(ctx context.Context, log *logger.Logger, workerID, id string) {
	if p.liveness != nil {
		beatCtx, stopBeat := context.WithCancel(ctx)
		defer stopBeat()
		go p.keepAlive(beatCtx, log, workerID)
	}

	job, err := p.store.Get(ctx, id)
	if err != nil {
		// Record expired or store hiccup between dequeue and fetch. Either
		// way there is nothing to execute.
		log.Warn("Dequeued job has no record", "job_id", id, "error", err)
		return
	}

	jc := jobruntime.NewContext(ctx, p.log, p.store, job, p.notify)

	pipe, ok := p.registry.Get(job.Type)
	if !ok {
		// Submission validates against the closed enumeration, so this only
		// happens on skew between producer and worker builds.
		jc.Fail("dispatch", fmt.Errorf("no pipeline registered for job type %q", job.Type))
		return
	}

	log.Info("Job claimed", "job_id", id, "job_type", job.Type)
	start := time.Now()
	if err := pipe.Run(jc); err != nil {
		// Run only errors on infrastructure problems; the job record was not
		// marked failed for those.
		if !errors.Is(err, pkgerrors.ErrUnavailable) {
			jc.Fail("setup", err)
			return
		}
		log.Warn("Job run aborted on infrastructure error", "job_id", id, "error", err)
		return
	}
	log.Info("Job finished", "job_id", id, "status", jc.Job.Status, "elapsed", time.Since(start))
}
