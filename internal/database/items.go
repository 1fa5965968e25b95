package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/media"
)

// CreateItem inserts an item under the named collection type.
func (d *Database) CreateItem(ctx context.Context, in NewItem) (item *Item, err error) {
	start := time.Now()
	defer func() { recordQuery("create_item", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var typeID int64
	err = d.db.QueryRowContext(ctx,
		"SELECT id FROM collection_types WHERE LOWER(name) = LOWER(?)", in.CollectionType,
	).Scan(&typeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.Validation("Unknown collection type %q", in.CollectionType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up collection type: %w", err)
	}

	var orientation sql.NullString
	if in.ImageOrientation != "" {
		o, err := normalizeOrientation(in.ImageOrientation)
		if err != nil {
			return nil, err
		}
		orientation = sql.NullString{String: string(o), Valid: true}
	}
	var imagePath sql.NullString
	if in.ImagePath != "" {
		if err := media.ValidateAssetPath(in.ImagePath); err != nil {
			return nil, err
		}
		imagePath = sql.NullString{String: in.ImagePath, Valid: true}
	}

	res, err := d.db.ExecContext(ctx, `
		INSERT INTO items (collection_type_id, name, year, image_path, image_orientation)
		VALUES (?, ?, ?, ?, ?)
	`, typeID, in.Name, in.Year, imagePath, orientation)
	if err != nil {
		return nil, fmt.Errorf("failed to insert item: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read item id: %w", err)
	}
	return d.getItem(ctx, id)
}

// GetItem returns an item with its collection type name.
func (d *Database) GetItem(ctx context.Context, id int64) (item *Item, err error) {
	start := time.Now()
	defer func() { recordQuery("get_item", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	return d.getItem(ctx, id)
}

func (d *Database) getItem(ctx context.Context, id int64) (*Item, error) {
	var (
		item        Item
		year        sql.NullInt64
		imagePath   sql.NullString
		orientation sql.NullString
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT items.id, items.collection_type_id, collection_types.name, items.name,
			items.year, items.image_path, items.image_orientation
		FROM items
		JOIN collection_types ON items.collection_type_id = collection_types.id
		WHERE items.id = ?
	`, id).Scan(&item.ID, &item.CollectionTypeID, &item.CollectionTypeName, &item.Name,
		&year, &imagePath, &orientation)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.NotFound("Item %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load item %d: %w", id, err)
	}

	if year.Valid {
		y := int(year.Int64)
		item.Year = &y
	}
	item.ImagePath = imagePath.String
	item.ImageOrientation = media.Orientation(orientation.String)
	return &item, nil
}

// ItemExists reports whether an item with id exists.
func (d *Database) ItemExists(ctx context.Context, id int64) (exists bool, err error) {
	start := time.Now()
	defer func() { recordQuery("item_exists", start, err) }()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	err = d.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM items WHERE id = ?)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check item %d: %w", id, err)
	}
	return exists, nil
}

// DeleteItem removes an item and, through the foreign key cascade, all of
// its images. It returns the original asset paths that were attached so the
// caller can remove the files.
func (d *Database) DeleteItem(ctx context.Context, id int64) (paths []string, err error) {
	start := time.Now()
	defer func() { recordQuery("delete_item", start, err) }()

	err = d.withItemTx(ctx, id, func(ctx context.Context, tx *sql.Tx) error {
		var legacy sql.NullString
		err := tx.QueryRowContext(ctx, "SELECT image_path FROM items WHERE id = ?", id).Scan(&legacy)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.NotFound("Item %d not found", id)
		}
		if err != nil {
			return fmt.Errorf("failed to load item %d: %w", id, err)
		}

		images, err := listImagesTx(ctx, tx, id)
		if err != nil {
			return err
		}
		seen := make(map[string]bool, len(images)+1)
		for _, img := range images {
			seen[img.ImagePath] = true
			paths = append(paths, img.ImagePath)
		}
		if legacy.String != "" && !seen[legacy.String] {
			paths = append(paths, legacy.String)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM items WHERE id = ?", id); err != nil {
			return fmt.Errorf("failed to delete item %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return paths, nil
}
