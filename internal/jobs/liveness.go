package jobs

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	pkgerrors "github.com/audisee/docx2daisy/internal/pkg/errors"
)

const (
	workerKeyPart = keyPrefix + "worker:"

	// HeartbeatTTL bounds how long a silent worker still counts as live.
	HeartbeatTTL = 15 * time.Second
)

// Liveness tracks which worker executors are alive via short-TTL heartbeat
// keys. It is diagnostic only: a vanished heartbeat never triggers automatic
// requeueing (stages are not resumable, recovery stays an operator action).
type Liveness interface {
	Beat(ctx context.Context, workerID string) error
	Live(ctx context.Context) ([]string, error)
}

type redisLiveness struct {
	rdb *goredis.Client
}

func NewLiveness(rdb *goredis.Client) Liveness {
	return &redisLiveness{rdb: rdb}
}

func (l *redisLiveness) Beat(ctx context.Context, workerID string) error {
	if err := l.rdb.Set(ctx, workerKeyPart+workerID, time.Now().Format(time.RFC3339), HeartbeatTTL).Err(); err != nil {
		return fmt.Errorf("worker heartbeat: %v: %w", err, pkgerrors.ErrUnavailable)
	}
	return nil
}

func (l *redisLiveness) Live(ctx context.Context) ([]string, error) {
	var (
		ids    []string
		cursor uint64
	)
	for {
		keys, next, err := l.rdb.Scan(ctx, cursor, workerKeyPart+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("worker scan: %v: %w", err, pkgerrors.ErrUnavailable)
		}
		for _, key := range keys {
			ids = append(ids, strings.TrimPrefix(key, workerKeyPart))
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	sort.Strings(ids)
	return ids, nil
}
