package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/media"
	"github.com/jthoms1/the-collector/internal/metrics"
)

const (
	imageColumns = "id, item_id, image_path, image_orientation, is_primary, display_order, created_at"
	// imageOrder breaks display_order ties left by legacy rows by age, then id.
	imageOrder = "ORDER BY display_order ASC, created_at ASC, id ASC"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanImage(row rowScanner) (*ItemImage, error) {
	var (
		img         ItemImage
		orientation string
		createdAt   int64
	)
	if err := row.Scan(&img.ID, &img.ItemID, &img.ImagePath, &orientation,
		&img.IsPrimary, &img.DisplayOrder, &createdAt); err != nil {
		return nil, err
	}
	img.ImageOrientation = media.Orientation(orientation)
	img.CreatedAt = time.UnixMilli(createdAt).UTC()
	return &img, nil
}

func listImagesTx(ctx context.Context, q queryer, itemID int64) ([]ItemImage, error) {
	rows, err := q.QueryContext(ctx,
		"SELECT "+imageColumns+" FROM item_images WHERE item_id = ? "+imageOrder, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to list images for item %d: %w", itemID, err)
	}
	defer rows.Close()

	images := []ItemImage{}
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan image: %w", err)
		}
		images = append(images, *img)
	}
	return images, rows.Err()
}

func getImageTx(ctx context.Context, q queryer, imageID int64) (*ItemImage, error) {
	img, err := scanImage(q.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM item_images WHERE id = ?", imageID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Image %d not found", imageID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image %d: %w", imageID, err)
	}
	return img, nil
}

func recordMutation(operation string, start time.Time, err error) {
	recordQuery(operation, start, err)
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.ImageMutationsTotal.WithLabelValues(operation, status).Inc()
}

// AddImage registers an image for an item.
//
// The item's first image is always primary. Later images are primary only
// when requested, which demotes the current primary. Without an explicit
// order the image is appended; an explicit order is clamped to the current
// range and later images shift down to make room.
func (d *Database) AddImage(ctx context.Context, in NewImage) (img *ItemImage, err error) {
	start := time.Now()
	defer func() { recordMutation("add_image", start, err) }()

	if in.ImagePath == "" {
		return nil, apperr.Validation("image_path is required")
	}
	if err := media.ValidateAssetPath(in.ImagePath); err != nil {
		return nil, err
	}
	if in.Orientation, err = normalizeOrientation(in.Orientation); err != nil {
		return nil, err
	}

	err = d.withItemTx(ctx, in.ItemID, func(ctx context.Context, tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)", in.ItemID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check item %d: %w", in.ItemID, err)
		}
		if !exists {
			return apperr.NotFound("Item %d not found", in.ItemID)
		}

		var count int
		if err := tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM item_images WHERE item_id = ?", in.ItemID).Scan(&count); err != nil {
			return fmt.Errorf("failed to count images: %w", err)
		}

		primary := count == 0 || (in.IsPrimary != nil && *in.IsPrimary)

		order := count
		if in.DisplayOrder != nil {
			order = clamp(*in.DisplayOrder, 0, count)
		}
		if order < count {
			if _, err := tx.ExecContext(ctx,
				"UPDATE item_images SET display_order = display_order + 1 WHERE item_id = ? AND display_order >= ?",
				in.ItemID, order); err != nil {
				return fmt.Errorf("failed to shift display order: %w", err)
			}
		}

		if primary {
			if _, err := tx.ExecContext(ctx,
				"UPDATE item_images SET is_primary = 0 WHERE item_id = ? AND is_primary = 1", in.ItemID); err != nil {
				return fmt.Errorf("failed to demote primary: %w", err)
			}
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO item_images (item_id, image_path, image_orientation, is_primary, display_order, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, in.ItemID, in.ImagePath, string(in.Orientation), primary, order, time.Now().UnixMilli())
		if err != nil {
			var sqliteErr sqlite3.Error
			if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
				return apperr.Validation("Image %s is already registered", in.ImagePath)
			}
			return fmt.Errorf("failed to insert image: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read image id: %w", err)
		}

		if err := finishMutation(ctx, tx, in.ItemID, "add_image"); err != nil {
			return err
		}
		img, err = getImageTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// GetImage returns one image by id.
func (d *Database) GetImage(ctx context.Context, imageID int64) (img *ItemImage, err error) {
	start := time.Now()
	defer func() { recordQuery("get_image", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return getImageTx(ctx, d.db, imageID)
}

// itemIDForImage resolves the owning item so the caller can take its lock.
// item_id never changes for a row, so reading it outside the lock is safe.
func (d *Database) itemIDForImage(ctx context.Context, imageID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var itemID int64
	err := d.db.QueryRowContext(ctx, "SELECT item_id FROM item_images WHERE id = ?", imageID).Scan(&itemID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, apperr.NotFound("Image %d not found", imageID)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to load image %d: %w", imageID, err)
	}
	return itemID, nil
}

// SetPrimary makes imageID the primary image of its item and demotes its siblings.
func (d *Database) SetPrimary(ctx context.Context, imageID int64) (img *ItemImage, err error) {
	start := time.Now()
	defer func() { recordMutation("set_primary", start, err) }()

	itemID, err := d.itemIDForImage(ctx, imageID)
	if err != nil {
		return nil, err
	}

	err = d.withItemTx(ctx, itemID, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := getImageTx(ctx, tx, imageID); err != nil {
			return err
		}
		if err := promote(ctx, tx, itemID, imageID); err != nil {
			return err
		}
		if err := finishMutation(ctx, tx, itemID, "set_primary"); err != nil {
			return err
		}
		img, err = getImageTx(ctx, tx, imageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// UpdateImage applies the set fields of upd to one image in a single transaction.
//
// Clearing the primary flag on the primary image hands it to the sibling
// with the lowest display order; on an item's only image it has no effect.
// A display order moves the image to that position, clamped to the item's
// range, and renumbers the rest.
func (d *Database) UpdateImage(ctx context.Context, imageID int64, upd ImageUpdate) (img *ItemImage, err error) {
	start := time.Now()
	defer func() { recordMutation("update_image", start, err) }()

	if upd.Orientation != nil {
		o, err := media.ParseOrientation(string(*upd.Orientation))
		if err != nil {
			return nil, apperr.Validation("Invalid image_orientation %q", *upd.Orientation)
		}
		upd.Orientation = &o
	}

	itemID, err := d.itemIDForImage(ctx, imageID)
	if err != nil {
		return nil, err
	}

	err = d.withItemTx(ctx, itemID, func(ctx context.Context, tx *sql.Tx) error {
		current, err := getImageTx(ctx, tx, imageID)
		if err != nil {
			return err
		}

		if upd.Orientation != nil {
			if _, err := tx.ExecContext(ctx,
				"UPDATE item_images SET image_orientation = ? WHERE id = ?",
				string(*upd.Orientation), imageID); err != nil {
				return fmt.Errorf("failed to update orientation: %w", err)
			}
		}

		if upd.IsPrimary != nil {
			switch {
			case *upd.IsPrimary:
				if err := promote(ctx, tx, itemID, imageID); err != nil {
					return err
				}
			case current.IsPrimary:
				successor, err := firstSibling(ctx, tx, itemID, imageID)
				if err != nil {
					return err
				}
				if successor != 0 {
					if err := promote(ctx, tx, itemID, successor); err != nil {
						return err
					}
				}
			}
		}

		if upd.DisplayOrder != nil {
			if err := moveImage(ctx, tx, itemID, imageID, *upd.DisplayOrder); err != nil {
				return err
			}
		}

		if err := finishMutation(ctx, tx, itemID, "update_image"); err != nil {
			return err
		}
		img, err = getImageTx(ctx, tx, imageID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return img, nil
}

// Reorder rewrites display order to follow ids. Ids that do not belong to
// the item are ignored and a repeated id keeps its first position. Images
// left out of ids follow in their current relative order. It returns the
// resulting list.
func (d *Database) Reorder(ctx context.Context, itemID int64, ids []int64) (images []ItemImage, err error) {
	start := time.Now()
	defer func() { recordMutation("reorder", start, err) }()

	err = d.withItemTx(ctx, itemID, func(ctx context.Context, tx *sql.Tx) error {
		var exists bool
		if err := tx.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)", itemID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check item %d: %w", itemID, err)
		}
		if !exists {
			return apperr.NotFound("Item %d not found", itemID)
		}

		current, err := listImagesTx(ctx, tx, itemID)
		if err != nil {
			return err
		}

		owned := make(map[int64]bool, len(current))
		for _, img := range current {
			owned[img.ID] = true
		}

		ordered := make([]int64, 0, len(current))
		placed := make(map[int64]bool, len(current))
		for _, id := range ids {
			if owned[id] && !placed[id] {
				ordered = append(ordered, id)
				placed[id] = true
			}
		}
		for _, img := range current {
			if !placed[img.ID] {
				ordered = append(ordered, img.ID)
			}
		}

		if err := writeOrder(ctx, tx, ordered); err != nil {
			return err
		}
		if err := checkPrimaryInvariant(ctx, tx, itemID, "reorder"); err != nil {
			return err
		}
		images, err = listImagesTx(ctx, tx, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// RemoveImage deletes an image row and returns its original asset path.
// When the primary is removed the remaining image with the lowest display
// order is promoted. Files are left for the caller to clean up.
func (d *Database) RemoveImage(ctx context.Context, imageID int64) (path string, err error) {
	start := time.Now()
	defer func() { recordMutation("remove_image", start, err) }()

	itemID, err := d.itemIDForImage(ctx, imageID)
	if err != nil {
		return "", err
	}

	err = d.withItemTx(ctx, itemID, func(ctx context.Context, tx *sql.Tx) error {
		img, err := getImageTx(ctx, tx, imageID)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM item_images WHERE id = ?", imageID); err != nil {
			return fmt.Errorf("failed to delete image %d: %w", imageID, err)
		}

		if img.IsPrimary {
			successor, err := firstSibling(ctx, tx, itemID, imageID)
			if err != nil {
				return err
			}
			if successor != 0 {
				if err := promote(ctx, tx, itemID, successor); err != nil {
					return err
				}
			}
		}

		if err := finishMutation(ctx, tx, itemID, "remove_image"); err != nil {
			return err
		}
		path = img.ImagePath
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// ListImages returns an item's images by display order, oldest first on ties.
func (d *Database) ListImages(ctx context.Context, itemID int64) (images []ItemImage, err error) {
	start := time.Now()
	defer func() { recordQuery("list_images", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return listImagesTx(ctx, d.db, itemID)
}

// GetPrimary returns the item's primary image, or nil when it has none.
// Rows without a flagged primary only come from data written outside the
// store; the first image is returned for them and the anomaly is logged.
func (d *Database) GetPrimary(ctx context.Context, itemID int64) (img *ItemImage, err error) {
	start := time.Now()
	defer func() { recordQuery("get_primary", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	img, err = scanImage(d.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM item_images WHERE item_id = ? AND is_primary = 1 "+imageOrder+" LIMIT 1", itemID))
	if err == nil {
		return img, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to load primary image for item %d: %w", itemID, err)
	}

	img, err = scanImage(d.db.QueryRowContext(ctx,
		"SELECT "+imageColumns+" FROM item_images WHERE item_id = ? "+imageOrder+" LIMIT 1", itemID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load first image for item %d: %w", itemID, err)
	}

	metrics.PrimaryFallbackTotal.Inc()
	logging.WarnCtx(ctx, "Item %d has images but no primary; falling back to image %d", itemID, img.ID)
	return img, nil
}

// SetOrientationByPath corrects the stored orientation of every row that
// references path, in the image table and the legacy item column. It
// returns the number of rows changed.
func (d *Database) SetOrientationByPath(ctx context.Context, path string, o media.Orientation) (changed int64, err error) {
	start := time.Now()
	defer func() { recordQuery("set_orientation", start, err) }()

	parsed, err := media.ParseOrientation(string(o))
	if err != nil {
		return 0, apperr.Validation("Invalid image_orientation %q", o)
	}
	o = parsed

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.withTx(ctx, func(tx *sql.Tx) error {
		for _, q := range []string{
			"UPDATE item_images SET image_orientation = ? WHERE image_path = ? AND image_orientation != ?",
			"UPDATE items SET image_orientation = ? WHERE image_path = ? AND COALESCE(image_orientation, '') != ?",
		} {
			res, err := tx.ExecContext(ctx, q, string(o), path, string(o))
			if err != nil {
				return fmt.Errorf("failed to update orientation for %s: %w", path, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			changed += n
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return changed, nil
}

// normalizeOrientation returns the stored form of o. Empty selects portrait.
func normalizeOrientation(o media.Orientation) (media.Orientation, error) {
	if o == "" {
		return media.Portrait, nil
	}
	parsed, err := media.ParseOrientation(string(o))
	if err != nil {
		return "", apperr.Validation("Invalid image_orientation %q", o)
	}
	return parsed, nil
}

// promote makes imageID the only primary of itemID.
func promote(ctx context.Context, tx *sql.Tx, itemID, imageID int64) error {
	if _, err := tx.ExecContext(ctx,
		"UPDATE item_images SET is_primary = CASE WHEN id = ? THEN 1 ELSE 0 END WHERE item_id = ?",
		imageID, itemID); err != nil {
		return fmt.Errorf("failed to set primary image %d: %w", imageID, err)
	}
	return nil
}

// firstSibling returns the lowest-ordered image of itemID other than
// excludeID, or 0 when there is none.
func firstSibling(ctx context.Context, tx *sql.Tx, itemID, excludeID int64) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM item_images WHERE item_id = ? AND id != ? "+imageOrder+" LIMIT 1",
		itemID, excludeID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to find sibling image: %w", err)
	}
	return id, nil
}

// moveImage places imageID at position and renumbers the item's images.
func moveImage(ctx context.Context, tx *sql.Tx, itemID, imageID int64, position int) error {
	current, err := listImagesTx(ctx, tx, itemID)
	if err != nil {
		return err
	}

	rest := make([]int64, 0, len(current))
	for _, img := range current {
		if img.ID != imageID {
			rest = append(rest, img.ID)
		}
	}

	position = clamp(position, 0, len(rest))
	ordered := make([]int64, 0, len(current))
	ordered = append(ordered, rest[:position]...)
	ordered = append(ordered, imageID)
	ordered = append(ordered, rest[position:]...)

	return writeOrder(ctx, tx, ordered)
}

// writeOrder assigns display orders 0..n-1 following ids.
func writeOrder(ctx context.Context, tx *sql.Tx, ids []int64) error {
	for i, id := range ids {
		if _, err := tx.ExecContext(ctx,
			"UPDATE item_images SET display_order = ? WHERE id = ? AND display_order != ?",
			i, id, i); err != nil {
			return fmt.Errorf("failed to write display order for image %d: %w", id, err)
		}
	}
	return nil
}

// normalizeOrder closes gaps and breaks ties in an item's display orders.
func normalizeOrder(ctx context.Context, tx *sql.Tx, itemID int64) error {
	images, err := listImagesTx(ctx, tx, itemID)
	if err != nil {
		return err
	}
	ids := make([]int64, len(images))
	for i, img := range images {
		ids[i] = img.ID
	}
	return writeOrder(ctx, tx, ids)
}

// checkPrimaryInvariant fails the mutation when an item with images does not
// have exactly one primary.
func checkPrimaryInvariant(ctx context.Context, tx *sql.Tx, itemID int64, operation string) error {
	var count, primaries int
	if err := tx.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(is_primary), 0) FROM item_images WHERE item_id = ?",
		itemID).Scan(&count, &primaries); err != nil {
		return fmt.Errorf("failed to verify primary image: %w", err)
	}
	if count == 0 || primaries == 1 {
		return nil
	}

	metrics.InvariantViolationsTotal.WithLabelValues(operation).Inc()
	logging.ErrorCtx(ctx, "%s on item %d would leave %d primary images across %d images; aborting",
		operation, itemID, primaries, count)
	return apperr.Newf(apperr.CodeInvariantViolation,
		"item %d would have %d primary images across %d images", itemID, primaries, count)
}

// finishMutation normalizes order and verifies the primary flag before commit.
func finishMutation(ctx context.Context, tx *sql.Tx, itemID int64, operation string) error {
	if err := normalizeOrder(ctx, tx, itemID); err != nil {
		return err
	}
	return checkPrimaryInvariant(ctx, tx, itemID, operation)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
