package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/user/linkchecker-service/internal/entity"
	"github.com/user/linkchecker-service/internal/repository"
)

const (
	runKeyPrefix = "linkcheck:run:"
	runRetention = 24 * time.Hour
)

// ProgressRepoImpl keeps one Redis hash per run.
type ProgressRepoImpl struct {
	client redis.Cmdable
}

// NewProgressRepo creates a new instance of ProgressRepoImpl.
func NewProgressRepo(client redis.Cmdable) *ProgressRepoImpl {
	return &ProgressRepoImpl{client: client}
}

func runKey(id string) string {
	return runKeyPrefix + id
}

func (r *ProgressRepoImpl) Start(ctx context.Context, run *entity.ScanRun) error {
	key := runKey(run.ID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"kind", string(run.Kind),
			"state", string(entity.RunRunning),
			"total", run.Total,
			"processed", run.Processed,
			"failed", run.Failed,
			"started_at", run.StartedAt.UTC().Format(time.RFC3339Nano),
		)
		pipe.Expire(ctx, key, runRetention)
		return nil
	})
	return err
}

func (r *ProgressRepoImpl) SetTotal(ctx context.Context, id string, total int) error {
	return r.client.HSet(ctx, runKey(id), "total", total).Err()
}

// Advance increments counters atomically so concurrent workers can report.
func (r *ProgressRepoImpl) Advance(ctx context.Context, id string, processed, failed int) error {
	key := runKey(id)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, "processed", int64(processed))
		pipe.HIncrBy(ctx, key, "failed", int64(failed))
		return nil
	})
	return err
}

func (r *ProgressRepoImpl) Finish(ctx context.Context, id string, state entity.RunState, at time.Time) error {
	return r.client.HSet(ctx, runKey(id),
		"state", string(state),
		"finished_at", at.UTC().Format(time.RFC3339Nano),
	).Err()
}

func (r *ProgressRepoImpl) Get(ctx context.Context, id string) (*entity.ScanRun, error) {
	fields, err := r.client.HGetAll(ctx, runKey(id)).Result()
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("run %s: %w", id, repository.ErrNotFound)
	}

	run := &entity.ScanRun{
		ID:    id,
		Kind:  entity.RunKind(fields["kind"]),
		State: entity.RunState(fields["state"]),
	}
	run.Total, _ = strconv.Atoi(fields["total"])
	run.Processed, _ = strconv.Atoi(fields["processed"])
	run.Failed, _ = strconv.Atoi(fields["failed"])
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, fields["started_at"]); err != nil {
		return nil, fmt.Errorf("run %s: bad started_at: %w", id, err)
	}
	if v, ok := fields["finished_at"]; ok {
		at, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad finished_at: %w", id, err)
		}
		run.FinishedAt = &at
	}
	return run, nil
}
