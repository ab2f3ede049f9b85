package retention

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adhocore/gronx"

	"nocaflow/pkg/config"
	"nocaflow/pkg/logger"
	"nocaflow/pkg/state"
	"nocaflow/pkg/store"
)

// Ephemeral message purge. The sweeper walks the message keyspace on a
// cron schedule and deletes expired ephemeral messages in batches, with
// an optional pause between batches to keep the store responsive.

// Start launches the purge scheduler when retention is enabled. The
// returned cancel func stops it.
func Start(ctx context.Context, cfg config.RetentionConfig) (context.CancelFunc, error) {
	if !cfg.Enabled {
		logger.Info("retention_disabled")
		return func() {}, nil
	}

	retentionPath := state.PathsVar.Retention
	if err := os.MkdirAll(retentionPath, 0o700); err != nil {
		logger.Error("retention_path_create_failed", "path", retentionPath, "error", err)
		return nil, err
	}

	cronExpr := cfg.Cron
	if cronExpr == "" {
		cronExpr = "0 2 * * *"
	}
	if !gronx.IsValid(cronExpr) {
		logger.Error("retention_invalid_cron", "cron", cfg.Cron)
		return nil, fmt.Errorf("invalid retention cron expression: %s", cfg.Cron)
	}

	logger.Info("retention_enabled", "cron", cronExpr, "batch_size", cfg.BatchSize, "dry_run", cfg.DryRun)
	ctx2, cancel := context.WithCancel(ctx)
	go runScheduler(ctx2, cfg, cronExpr, retentionPath)
	return cancel, nil
}

// runScheduler computes the next cron tick via gronx and sleeps until
// it, then sweeps.
func runScheduler(ctx context.Context, cfg config.RetentionConfig, cronExpr, retentionPath string) {
	for {
		select {
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		default:
		}

		now := time.Now().UTC()
		next, err := gronx.NextTickAfter(cronExpr, now, false)
		if err != nil {
			logger.Error("retention_nexttick_failed", "cron", cronExpr, "error", err)
			select {
			case <-time.After(30 * time.Second):
			case <-ctx.Done():
				return
			}
			continue
		}

		wait := time.Until(next)
		if wait <= 0 {
			wait = time.Second
		}
		select {
		case <-time.After(wait):
			if err := RunOnce(ctx, cfg, retentionPath); err != nil {
				logger.Error("retention_run_error", "error", err)
			}
		case <-ctx.Done():
			logger.Info("retention_scheduler_stopping")
			return
		}
	}
}

// RunOnce performs a single sweep: purge every expired ephemeral message
// in batches and record a marker file with the outcome. Admin triggers
// and tests call this directly.
func RunOnce(ctx context.Context, cfg config.RetentionConfig, retentionPath string) error {
	const op = "retention.RunOnce"

	batch := cfg.BatchSize
	if batch <= 0 {
		batch = 500
	}
	sleep := time.Duration(cfg.BatchSleepMs) * time.Millisecond

	start := time.Now()
	total := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		n, err := store.PurgeExpired(time.Now().UnixNano(), batch, cfg.DryRun)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		total += n
		if n < batch {
			break
		}
		if sleep > 0 {
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	logger.Info("retention_run_complete", "purged", total, "dry_run", cfg.DryRun, "duration_ms", time.Since(start).Milliseconds())
	if retentionPath != "" {
		marker := fmt.Sprintf("ts=%s purged=%d dry_run=%v\n", start.UTC().Format(time.RFC3339), total, cfg.DryRun)
		_ = os.WriteFile(filepath.Join(retentionPath, "last_run"), []byte(marker), 0o600)
	}
	return nil
}
