package jobs

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/warelane/warelane/internal/policy"
)

const (
	// TaskPolicyCacheSweep drops cached policies for every organization with
	// fulfillment settings, picking up edits made outside the API.
	TaskPolicyCacheSweep = "policy:cache_sweep"
)

// PolicyCacheSweepPayload is currently empty; the sweep always covers all
// organizations with a settings row.
type PolicyCacheSweepPayload struct{}

// NewPolicyCacheSweepTask builds a sweep task.
func NewPolicyCacheSweepTask() (*asynq.Task, error) {
	body, err := json.Marshal(PolicyCacheSweepPayload{})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskPolicyCacheSweep, body, asynq.Queue(QueueDefault)), nil
}

// PolicyCacheSweepJob invalidates cached policy snapshots.
type PolicyCacheSweepJob struct {
	pool   *pgxpool.Pool
	cache  *policy.Cache
	logger *slog.Logger
}

// NewPolicyCacheSweepJob constructs the job.
func NewPolicyCacheSweepJob(pool *pgxpool.Pool, cache *policy.Cache, logger *slog.Logger) *PolicyCacheSweepJob {
	return &PolicyCacheSweepJob{pool: pool, cache: cache, logger: logger}
}

// Handle processes TaskPolicyCacheSweep tasks.
func (j *PolicyCacheSweepJob) Handle(ctx context.Context, t *asynq.Task) error {
	var payload PolicyCacheSweepPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	rows, err := j.pool.Query(ctx, `SELECT org_id FROM fulfillment_policies`)
	if err != nil {
		j.logger.Error("policy sweep query", slog.Any("error", err))
		return err
	}
	var orgIDs []int64
	for rows.Next() {
		var orgID int64
		if err := rows.Scan(&orgID); err != nil {
			rows.Close()
			return err
		}
		orgIDs = append(orgIDs, orgID)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, orgID := range orgIDs {
		orgID := orgID
		g.Go(func() error {
			if err := j.cache.Invalidate(gctx, orgID); err != nil {
				j.logger.Warn("policy sweep invalidate", slog.Int64("org_id", orgID), slog.Any("error", err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	j.logger.Info("policy cache sweep done", slog.Int("orgs", len(orgIDs)))
	return nil
}
