package store

import (
	"context"
	"fmt"
)

const recentBatchCount = 5

// DashboardStats summarises a user's batches and record counters.
func (s *Store) DashboardStats(ctx context.Context, userID int64) (DashboardStats, error) {
	var ds DashboardStats

	batches, err := s.BatchStats(ctx, userID)
	if err != nil {
		return DashboardStats{}, err
	}
	ds.Batches = batches

	err = s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_records), 0),
			COALESCE(SUM(cleaned_records), 0),
			COALESCE(SUM(error_records), 0),
			COALESCE(SUM(warning_records), 0)
		FROM upload_batches WHERE user_id = $1`, userID,
	).Scan(&ds.Records.Total, &ds.Records.Cleaned, &ds.Records.Errors, &ds.Records.Warnings)
	if err != nil {
		return DashboardStats{}, fmt.Errorf("record totals: %w", err)
	}

	ds.RecentBatches, err = s.ListBatches(ctx, userID, recentBatchCount)
	if err != nil {
		return DashboardStats{}, err
	}
	return ds, nil
}
