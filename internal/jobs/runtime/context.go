package runtime

import (
	"context"
	"time"

	"github.com/audisee/docx2daisy/internal/jobs"
	"github.com/audisee/docx2daisy/internal/logger"
	"github.com/audisee/docx2daisy/internal/services"
)

/*
Context is the execution contract between the job system and the conversion
stages. It wraps:
  - the mutable job record in the state store,
  - the notification side-effects,
  - and the only sanctioned ways to report progress or terminate execution.

Stages never write the job record directly. They must go through this object,
which keeps the transition invariants (status prefix property, non-decreasing
progress, append-only stage timings within a run) in one place.
*/
type Context struct {
	Ctx    context.Context
	Job    *jobs.Job
	Store  jobs.Store
	Notify services.JobNotifier

	log *logger.Logger
}

func NewContext(ctx context.Context, baseLog *logger.Logger, store jobs.Store, job *jobs.Job, notify services.JobNotifier) *Context {
	return &Context{
		Ctx:    ctx,
		Job:    job,
		Store:  store,
		Notify: notify,
		log:    baseLog.With("component", "JobContext", "job_id", job.ID),
	}
}

// update applies the mutation in the store and mirrors it onto the in-memory
// record. A store outage here is an infrastructure condition: it is logged
// and the in-memory record still advances so the run can finish, but it is
// never recorded as a job failure.
func (c *Context) update(mutate func(j *jobs.Job)) {
	if c == nil || c.Job == nil {
		return
	}
	wrapped := func(j *jobs.Job) error {
		mutate(j)
		return nil
	}
	updated, err := c.Store.Update(c.Ctx, c.Job.ID, wrapped)
	if err != nil {
		c.log.Warn("State store update failed", "error", err)
		mutate(c.Job)
		c.Job.UpdatedAt = time.Now()
		return
	}
	c.Job = updated
}

/*
MarkStarted transitions the claimed job to started and resets the per-run
bookkeeping. A retried job goes through here again, so stage timings start
fresh for every run attempt rather than merging with a failed one.
*/
func (c *Context) MarkStarted() {
	c.update(func(j *jobs.Job) {
		j.Status = jobs.StatusStarted
		j.Progress = 0
		j.Message = "conversion started"
		j.Error = nil
		j.Result = nil
		j.StageTimings = make(map[string]jobs.StageTiming)
	})
	if c.Notify != nil {
		c.Notify.JobStarted(c.Job)
	}
}

/*
StageRunning publishes that the named stage is now executing: status becomes
the stage name and its timing window opens. Progress is untouched; weight is
credited only on successful completion.
*/
func (c *Context) StageRunning(stage, msg string) {
	now := time.Now()
	c.update(func(j *jobs.Job) {
		j.Status = stage
		j.Message = msg
		if j.StageTimings == nil {
			j.StageTimings = make(map[string]jobs.StageTiming)
		}
		j.StageTimings[stage] = jobs.StageTiming{StartedAt: now}
	})
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job)
	}
}

// StageDone credits the stage's progress weight and closes its timing window.
func (c *Context) StageDone(stage string, weight int) {
	now := time.Now()
	c.update(func(j *jobs.Job) {
		j.Progress += weight
		if j.Progress > 100 {
			j.Progress = 100
		}
		if t, ok := j.StageTimings[stage]; ok {
			t.EndedAt = &now
			j.StageTimings[stage] = t
		}
	})
	if c.Notify != nil {
		c.Notify.JobProgress(c.Job)
	}
}

/*
Fail marks the job terminally failed at the given stage. The pipeline halts;
no partial artifacts are treated as usable, so any accumulated result
locations are discarded.
*/
func (c *Context) Fail(stage string, err error) {
	now := time.Now()
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	c.update(func(j *jobs.Job) {
		j.Status = jobs.StatusFailed
		j.Message = ""
		j.Error = &jobs.JobError{Stage: stage, Message: msg}
		j.Result = nil
		if t, ok := j.StageTimings[stage]; ok && t.EndedAt == nil {
			t.EndedAt = &now
			j.StageTimings[stage] = t
		}
	})
	if c.Notify != nil {
		c.Notify.JobFailed(c.Job)
	}
}

// Succeed marks the job finished with its named result locations.
func (c *Context) Succeed(results map[string]string) {
	c.update(func(j *jobs.Job) {
		j.Status = jobs.StatusFinished
		j.Progress = 100
		j.Message = "conversion finished"
		j.Error = nil
		j.Result = results
	})
	if c.Notify != nil {
		c.Notify.JobDone(c.Job)
	}
}
