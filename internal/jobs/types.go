package jobs

import (
	"time"
)

// Job statuses. Between StatusStarted and the terminal states the Status
// field holds the name of the stage currently running, so a status query
// mid-job reveals where the pipeline is.
const (
	StatusQueued   = "queued"
	StatusStarted  = "started"
	StatusFinished = "finished"
	StatusFailed   = "failed"
)

// Job types. Each maps to a fixed, ordered stage pipeline.
const (
	TypeConvertToDaisy = "convert-to-daisy"
	TypeConvertToEpub  = "convert-to-epub"
	TypeDaisyToEpub    = "daisy-to-epub"
	TypeFullPipeline   = "full-pipeline"
)

const (
	PriorityMin     = 1
	PriorityMax     = 10
	PriorityDefault = 5
)

// KnownType reports whether t is one of the closed job type enumeration.
func KnownType(t string) bool {
	switch t {
	case TypeConvertToDaisy, TypeConvertToEpub, TypeDaisyToEpub, TypeFullPipeline:
		return true
	}
	return false
}

// Metadata carries the producer-supplied fields of a submission.
type Metadata struct {
	SourceFilename string `json:"source_filename,omitempty"`
	Title          string `json:"title,omitempty"`
	Author         string `json:"author,omitempty"`
	Publisher      string `json:"publisher,omitempty"`
	Language       string `json:"language,omitempty"`
	Priority       int    `json:"priority,omitempty"`
}

// StageTiming records one stage execution window. Entries are appended per
// run attempt; a retry replaces the whole map, never merges into it.
type StageTiming struct {
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// JobError names the stage that failed plus its message. Set only on failure.
type JobError struct {
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// Job is the unit of work tracked in the state store. It is created by the
// producer, mutated exclusively by the single worker running it, and read by
// any number of status queries and subscribers.
type Job struct {
	ID           string                 `json:"id"`
	Type         string                 `json:"type"`
	Status       string                 `json:"status"`
	Progress     int                    `json:"progress"`
	Message      string                 `json:"message,omitempty"`
	Metadata     Metadata               `json:"metadata"`
	StageTimings map[string]StageTiming `json:"stage_timings,omitempty"`
	// Result maps artifact names (e.g. "daisy", "epub") to their stored
	// locations. Set only when the job finishes.
	Result map[string]string `json:"result,omitempty"`
	Error  *JobError         `json:"error,omitempty"`

	// SourcePath is the uploaded artifact the first stage reads.
	SourcePath string    `json:"source_path,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Terminal reports whether no further automatic transitions can occur.
func (j *Job) Terminal() bool {
	return j.Status == StatusFinished || j.Status == StatusFailed
}

// Event is the transition record mirrored to subscribers on every job
// mutation. Push and poll transports report identical field values for the
// same instant.
type Event struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventOf projects the current state of a job into a transition event.
func EventOf(j *Job) Event {
	return Event{
		ID:        j.ID,
		Status:    j.Status,
		Progress:  j.Progress,
		Message:   j.Message,
		Timestamp: j.UpdatedAt,
	}
}
