package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jthoms1/the-collector/internal/metrics"
)

// Stats counts items and images.
func (d *Database) Stats(ctx context.Context) (stats Stats, err error) {
	start := time.Now()
	defer func() { recordQuery("stats", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM items),
			(SELECT COUNT(*) FROM item_images),
			(SELECT COUNT(DISTINCT item_id) FROM item_images)
	`).Scan(&stats.TotalItems, &stats.TotalImages, &stats.ItemsWithImages)
	if err != nil {
		return Stats{}, fmt.Errorf("failed to count items: %w", err)
	}

	stats.LegacyImagesMigrated, err = flagSet(ctx, d.db, MetadataLegacyImagesMigrated)
	if err != nil {
		return Stats{}, err
	}
	return stats, nil
}

// GetStats implements metrics.StatsProvider.
func (d *Database) GetStats(ctx context.Context) (metrics.Stats, error) {
	s, err := d.Stats(ctx)
	if err != nil {
		return metrics.Stats{}, err
	}

	return metrics.Stats{
		TotalItems:           int(s.TotalItems),
		TotalImages:          int(s.TotalImages),
		ItemsWithImages:      int(s.ItemsWithImages),
		OpenConnections:      d.db.Stats().OpenConnections,
		SchemaVersion:        d.schemaVersion,
		LegacyImagesMigrated: s.LegacyImagesMigrated,
	}, nil
}
