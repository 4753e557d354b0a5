package jobs

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/audisee/docx2daisy/internal/logger"
	pkgerrors "github.com/audisee/docx2daisy/internal/pkg/errors"
)

const (
	queueKeyDefault = keyPrefix + "queue"
	seqKeySuffix    = ":seq"
)

// ErrEmpty is returned by Dequeue when no entry became available within the
// wait window.
var ErrEmpty = fmt.Errorf("queue empty")

// QueueScore encodes (priority, enqueue sequence) into a single sorted-set
// score so that a max-pop dequeues higher priority first and, within one
// priority, lower sequence (earlier enqueue) first.
func QueueScore(priority int, seq int64) float64 {
	if priority < PriorityMin {
		priority = PriorityMin
	}
	if priority > PriorityMax {
		priority = PriorityMax
	}
	return float64(priority)*1e12 - float64(seq)
}

// Queue is the pending work list. An id appears at most once; an entry is
// removed at the moment it is handed to a worker, which bounds execution to
// at most one worker per job.
type Queue interface {
	// Enqueue adds id with the given priority. Enqueuing an id that is
	// already pending is a strict no-op: the original priority and queue
	// position are kept.
	Enqueue(ctx context.Context, id string, priority int) error
	// Dequeue pops the best entry, blocking up to wait. Returns ErrEmpty
	// when nothing arrived in time.
	Dequeue(ctx context.Context, wait time.Duration) (string, error)
	Length(ctx context.Context) (int64, error)
	// Clear removes all pending entries. In-flight jobs are unaffected.
	Clear(ctx context.Context) error
}

type redisQueue struct {
	log *logger.Logger
	rdb *goredis.Client
	key string
}

func NewQueue(log *logger.Logger, rdb *goredis.Client, name string) Queue {
	key := queueKeyDefault
	if name != "" {
		key = keyPrefix + name
	}
	return &redisQueue{
		log: log.With("component", "JobQueue"),
		rdb: rdb,
		key: key,
	}
}

func (q *redisQueue) Enqueue(ctx context.Context, id string, priority int) error {
	if id == "" {
		return fmt.Errorf("queue entry id required: %w", pkgerrors.ErrInvalidArgument)
	}
	seq, err := q.rdb.Incr(ctx, q.key+seqKeySuffix).Result()
	if err != nil {
		return fmt.Errorf("queue seq: %v: %w", err, pkgerrors.ErrUnavailable)
	}
	added, err := q.rdb.ZAddNX(ctx, q.key, goredis.Z{
		Score:  QueueScore(priority, seq),
		Member: id,
	}).Result()
	if err != nil {
		return fmt.Errorf("queue enqueue %s: %v: %w", id, err, pkgerrors.ErrUnavailable)
	}
	if added == 0 {
		q.log.Debug("Enqueue of already-pending id ignored", "job_id", id)
	}
	return nil
}

func (q *redisQueue) Dequeue(ctx context.Context, wait time.Duration) (string, error) {
	res, err := q.rdb.BZPopMax(ctx, wait, q.key).Result()
	if err == goredis.Nil {
		return "", ErrEmpty
	}
	if err != nil {
		return "", fmt.Errorf("queue dequeue: %v: %w", err, pkgerrors.ErrUnavailable)
	}
	id, ok := res.Member.(string)
	if !ok {
		return "", fmt.Errorf("queue dequeue: unexpected member %T", res.Member)
	}
	return id, nil
}

func (q *redisQueue) Length(ctx context.Context) (int64, error) {
	n, err := q.rdb.ZCard(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("queue length: %v: %w", err, pkgerrors.ErrUnavailable)
	}
	return n, nil
}

func (q *redisQueue) Clear(ctx context.Context) error {
	if err := q.rdb.Del(ctx, q.key).Err(); err != nil {
		return fmt.Errorf("queue clear: %v: %w", err, pkgerrors.ErrUnavailable)
	}
	return nil
}
