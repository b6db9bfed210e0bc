// Package worker bootstraps the River job queue.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/envmgr/envmgr/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"gorm.io/gorm"
)

// InviteSweepArgs marks pending invitations past their expiry as expired.
// Listing already reports such invitations as expired; the sweep persists
// the transition so the table reflects reality.
type InviteSweepArgs struct{}

// Kind returns the unique job type identifier for invite sweep jobs.
func (InviteSweepArgs) Kind() string { return "invite_sweep" }

type inviteSweepWorker struct {
	river.WorkerDefaults[InviteSweepArgs]
	db  *gorm.DB
	log *slog.Logger
}

func (w *inviteSweepWorker) Work(ctx context.Context, _ *river.Job[InviteSweepArgs]) error {
	res := w.db.WithContext(ctx).Model(&model.Invitation{}).
		Where("status = ? AND expires_at < ?", model.InviteStatusPending, time.Now()).
		Update("status", model.InviteStatusExpired)
	if res.Error != nil {
		return fmt.Errorf("sweep expired invitations: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		w.log.Info("expired invitations swept", "count", res.RowsAffected)
	}
	return nil
}

// Queue is the interface exposed by both the real River client and noopQueue.
type Queue interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Client wraps river.Client and exposes a Start/Stop lifecycle.
type Client struct {
	client *river.Client[pgx.Tx]
	log    *slog.Logger
}

// Start begins processing queued jobs.
func (c *Client) Start(ctx context.Context) error { return c.client.Start(ctx) }

// Stop gracefully shuts down the worker client.
func (c *Client) Stop(ctx context.Context) error { return c.client.Stop(ctx) }

// noopQueue is used when River is unavailable (e.g. DB_DRIVER=sqlite).
type noopQueue struct{ log *slog.Logger }

func (n *noopQueue) Start(_ context.Context) error {
	n.log.Info("worker queue disabled (sqlite driver requires no background sweep; expiry is applied on read)")
	return nil
}
func (n *noopQueue) Stop(_ context.Context) error { return nil }

// New creates a queue implementation appropriate for the given driver.
//   - "postgres": returns a River client running the invite sweep hourly.
//   - anything else: returns a no-op queue that logs a startup notice.
//
// pool may be nil when driver != "postgres".
func New(ctx context.Context, pool *pgxpool.Pool, gormDB *gorm.DB, driver string, concurrency int, log *slog.Logger) (Queue, error) {
	if driver != "postgres" {
		return &noopQueue{log: log}, nil
	}
	workers := river.NewWorkers()
	river.AddWorker(workers, &inviteSweepWorker{db: gormDB, log: log})

	client, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: concurrency},
		},
		Workers: workers,
		Logger:  log,
		PeriodicJobs: []*river.PeriodicJob{
			river.NewPeriodicJob(
				river.PeriodicInterval(time.Hour),
				func() (river.JobArgs, *river.InsertOpts) {
					return InviteSweepArgs{}, nil
				},
				&river.PeriodicJobOpts{RunOnStart: true},
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create river client: %w", err)
	}
	return &Client{client: client, log: log}, nil
}

// MigrateRiver runs River's built-in schema migrations against the given pool.
// Only call this when DB_DRIVER=postgres.
func MigrateRiver(ctx context.Context, db *pgxpool.Pool) error {
	migrator, err := rivermigrate.New(riverpgxv5.New(db), nil)
	if err != nil {
		return fmt.Errorf("create river migrator: %w", err)
	}
	if _, err := migrator.Migrate(ctx, rivermigrate.DirectionUp, nil); err != nil {
		return fmt.Errorf("run river migrations: %w", err)
	}
	return nil
}
