package core

// scheduler.go runs periodic maintenance. Currently it purges audit entries
// older than the retention period, in bounded batches so a large backlog
// does not hold one long transaction.

import (
	"context"
	"time"

	"github.com/JonMunkholm/addrclean/internal/config"
)

// maxPurgeRounds bounds the batches deleted in one run.
const maxPurgeRounds = 100

// StartAuditPurgeScheduler purges old audit entries immediately and then
// every CheckInterval until ctx is cancelled.
func (s *Service) StartAuditPurgeScheduler(ctx context.Context, cfg config.ArchiveConfig) {
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 24 * time.Hour
	}
	s.logger.Info("audit purge scheduler started",
		"retention_days", cfg.RetentionDays,
		"batch_size", cfg.BatchSize,
		"interval", cfg.CheckInterval,
	)

	s.runPurgeJob(ctx, cfg)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("audit purge scheduler stopped")
			return
		case <-ticker.C:
			s.runPurgeJob(ctx, cfg)
		}
	}
}

// runPurgeJob performs one purge cycle and returns the entries removed.
func (s *Service) runPurgeJob(ctx context.Context, cfg config.ArchiveConfig) int64 {
	if cfg.RetentionDays <= 0 {
		return 0
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 5000
	}

	start := time.Now()
	cutoff := s.now().AddDate(0, 0, -cfg.RetentionDays)

	var total int64
	for round := 0; round < maxPurgeRounds; round++ {
		if ctx.Err() != nil {
			break
		}
		n, err := s.repo.PurgeAudit(ctx, cutoff, batchSize)
		if err != nil {
			s.logger.Error("audit purge failed", "error", err, "purged", total)
			return total
		}
		total += n
		if n < int64(batchSize) {
			break
		}
	}

	s.logger.Info("audit purge completed",
		"entries_purged", total,
		"cutoff", cutoff,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return total
}
