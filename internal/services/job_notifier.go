package services

import (
	"context"
	"time"

	redisclient "github.com/audisee/docx2daisy/internal/clients/redis"
	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/logger"
)

// JobNotifier mirrors job state transitions to subscribers. Delivery is
// best-effort and never on the worker's critical path: publish errors are
// logged and dropped.
type JobNotifier interface {
	JobQueued(job *jobs.Job)
	JobStarted(job *jobs.Job)
	JobProgress(job *jobs.Job)
	JobFailed(job *jobs.Job)
	JobDone(job *jobs.Job)
}

type jobNotifier struct {
	log *logger.Logger
	bus redisclient.EventBus
}

func NewJobNotifier(baseLog *logger.Logger, bus redisclient.EventBus) JobNotifier {
	return &jobNotifier{
		log: baseLog.With("service", "JobNotifier"),
		bus: bus,
	}
}

func (n *jobNotifier) publish(job *jobs.Job) {
	if n == nil || n.bus == nil || job == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := n.bus.Publish(ctx, jobs.EventOf(job)); err != nil {
		n.log.Warn("Dropping job event; publish failed", "job_id", job.ID, "status", job.Status, "error", err)
	}
}

func (n *jobNotifier) JobQueued(job *jobs.Job)   { n.publish(job) }
func (n *jobNotifier) JobStarted(job *jobs.Job)  { n.publish(job) }
func (n *jobNotifier) JobProgress(job *jobs.Job) { n.publish(job) }
func (n *jobNotifier) JobFailed(job *jobs.Job)   { n.publish(job) }
func (n *jobNotifier) JobDone(job *jobs.Job)     { n.publish(job) }
