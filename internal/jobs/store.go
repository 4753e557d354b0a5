package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/audisee/docx2daisy/internal/logger"
	pkgerrors "github.com/audisee/docx2daisy/internal/pkg/errors"
)

const (
	keyPrefix  = "docx2daisy:"
	jobKeyPart = keyPrefix + "job:"

	// DefaultTTL is the retention window for a job record. Every write
	// refreshes it, so a record lives this long past its last mutation
	// regardless of terminal state.
	DefaultTTL = 24 * time.Hour
)

func jobKey(id string) string { return jobKeyPart + id }

// Store holds one record per job id with bounded retention. Update is a
// plain read-modify-write: the single-writer invariant (one worker owns a
// job for its whole run) makes per-id atomicity unnecessary.
type Store interface {
	Put(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
	Update(ctx context.Context, id string, mutate func(*Job) error) (*Job, error)
	// FailedIDs scans the store for jobs currently in the failed state.
	FailedIDs(ctx context.Context) ([]string, error)
}

type redisStore struct {
	log *logger.Logger
	rdb *goredis.Client
	ttl time.Duration
}

func NewStore(log *logger.Logger, rdb *goredis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisStore{
		log: log.With("component", "JobStore"),
		rdb: rdb,
		ttl: ttl,
	}
}

func (s *redisStore) Put(ctx context.Context, job *Job) error {
	if job == nil || job.ID == "" {
		return fmt.Errorf("job with id required: %w", pkgerrors.ErrInvalidArgument)
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, jobKey(job.ID), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("store put %s: %v: %w", job.ID, err, pkgerrors.ErrUnavailable)
	}
	return nil
}

func (s *redisStore) Get(ctx context.Context, id string) (*Job, error) {
	raw, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if err == goredis.Nil {
		return nil, fmt.Errorf("job %s: %w", id, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("store get %s: %v: %w", id, err, pkgerrors.ErrUnavailable)
	}
	var job Job
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, fmt.Errorf("store get %s: decode: %w", id, err)
	}
	return &job, nil
}

func (s *redisStore) Update(ctx context.Context, id string, mutate func(*Job) error) (*Job, error) {
	job, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(job); err != nil {
		return nil, err
	}
	job.UpdatedAt = time.Now()
	if err := s.Put(ctx, job); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *redisStore) FailedIDs(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := s.rdb.Scan(ctx, cursor, jobKeyPart+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("store scan: %v: %w", err, pkgerrors.ErrUnavailable)
		}
		for _, key := range keys {
			raw, err := s.rdb.Get(ctx, key).Bytes()
			if err == goredis.Nil {
				continue // expired between scan and get
			}
			if err != nil {
				return nil, fmt.Errorf("store scan get: %v: %w", err, pkgerrors.ErrUnavailable)
			}
			var job Job
			if err := json.Unmarshal(raw, &job); err != nil {
				s.log.Warn("Skipping undecodable job record", "key", key, "error", err)
				continue
			}
			if job.Status == StatusFailed {
				ids = append(ids, job.ID)
			}
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return ids, nil
}
