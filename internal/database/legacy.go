package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/media"
	"github.com/jthoms1/the-collector/internal/metrics"
)

// legacyMigrationTimeout bounds the backfill, which touches every item.
const legacyMigrationTimeout = 2 * time.Minute

// MigrateLegacyImages backfills the image table from the single image_path
// column on items. Each item with a path gets one primary image at order 0,
// keeping its stored orientation or portrait when it has none. Paths outside
// the category folders and paths already claimed by an earlier item are
// reported in the result and left in the legacy column.
//
// It runs at most once: a recorded flag or an already populated image table
// makes it a no-op. The backfill and the flag commit together, so a failure
// leaves the database unmigrated and the next run starts over.
func (d *Database) MigrateLegacyImages(ctx context.Context) (result LegacyMigrationResult, err error) {
	start := time.Now()
	defer func() { recordQuery("legacy_migration", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, legacyMigrationTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		done, err := flagSet(ctx, tx, MetadataLegacyImagesMigrated)
		if err != nil {
			return err
		}
		if done {
			result.AlreadyMigrated = true
			return nil
		}

		var existing int64
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM item_images").Scan(&existing); err != nil {
			return fmt.Errorf("failed to count item images: %w", err)
		}
		if existing > 0 {
			result.SkippedExisting = true
			return setMetadataTx(ctx, tx, MetadataLegacyImagesMigrated, time.Now().UTC().Format(time.RFC3339))
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, image_path, COALESCE(image_orientation, '')
			FROM items
			WHERE image_path IS NOT NULL AND image_path != ''
			ORDER BY id
		`)
		if err != nil {
			return fmt.Errorf("failed to read legacy images: %w", err)
		}

		type legacyRow struct {
			itemID      int64
			path        string
			orientation media.Orientation
		}
		var legacy []legacyRow
		for rows.Next() {
			var r legacyRow
			var orientation string
			if err := rows.Scan(&r.itemID, &r.path, &orientation); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan legacy image: %w", err)
			}
			r.orientation = legacyOrientation(r.itemID, orientation)
			legacy = append(legacy, r)
		}
		if err := rows.Close(); err != nil {
			return err
		}
		if err := rows.Err(); err != nil {
			return err
		}

		if len(legacy) == 0 {
			return nil
		}

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO item_images (item_id, image_path, image_orientation, is_primary, display_order, created_at)
			VALUES (?, ?, ?, 1, 0, ?)
		`)
		if err != nil {
			return fmt.Errorf("failed to prepare legacy insert: %w", err)
		}
		defer stmt.Close()

		// The image table was empty on entry, so owners tracks every path
		// inserted so far.
		owners := make(map[string]int64, len(legacy))
		now := time.Now().UnixMilli()
		for _, r := range legacy {
			if err := media.ValidateAssetPath(r.path); err != nil {
				result.skip(r.itemID, r.path, "not an image in a category folder")
				continue
			}
			if owner, ok := owners[r.path]; ok {
				result.skip(r.itemID, r.path, fmt.Sprintf("already migrated for item %d", owner))
				continue
			}
			if _, err := stmt.ExecContext(ctx, r.itemID, r.path, string(r.orientation), now); err != nil {
				return fmt.Errorf("failed to migrate image for item %d: %w", r.itemID, err)
			}
			owners[r.path] = r.itemID
			result.Created++
		}

		return setMetadataTx(ctx, tx, MetadataLegacyImagesMigrated, time.Now().UTC().Format(time.RFC3339))
	})
	if err != nil {
		return LegacyMigrationResult{}, err
	}

	metrics.LegacyMigrationRowsTotal.Add(float64(result.Created))
	for _, sk := range result.Skipped {
		logging.Warn("Legacy image %s of item %d not migrated: %s", sk.Path, sk.ItemID, sk.Reason)
	}
	switch {
	case result.AlreadyMigrated:
		logging.Debug("Legacy image migration already recorded")
	case result.SkippedExisting:
		logging.Info("Item images already present; recorded legacy migration as complete")
	case result.Created > 0:
		logging.Info("Migrated %d legacy item image(s) in %v", result.Created, time.Since(start))
	default:
		logging.Debug("No legacy item images to migrate")
	}
	return result, nil
}

// legacyOrientation returns the stored form of a legacy orientation value.
// Empty or unknown values fall back to portrait.
func legacyOrientation(itemID int64, raw string) media.Orientation {
	if raw == "" {
		return media.Portrait
	}
	o, err := media.ParseOrientation(raw)
	if err != nil {
		logging.Warn("Item %d has unknown legacy orientation %q; using portrait", itemID, raw)
		return media.Portrait
	}
	return o
}

// LegacyImagesMigrated reports whether the legacy migration flag is recorded.
func (d *Database) LegacyImagesMigrated(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return flagSet(ctx, d.db, MetadataLegacyImagesMigrated)
}
