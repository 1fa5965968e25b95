package database

import (
	"time"

	"github.com/jthoms1/the-collector/internal/media"
)

// Item is the subset of a collectible record the image store depends on.
type Item struct {
	ID                 int64  `json:"id"`
	CollectionTypeID   int64  `json:"collection_type_id"`
	CollectionTypeName string `json:"collection_type_name"`
	Name               string `json:"name"`
	Year               *int   `json:"year,omitempty"`
	// ImagePath and ImageOrientation are the single-image columns kept for
	// the legacy migration.
	ImagePath        string            `json:"image_path,omitempty"`
	ImageOrientation media.Orientation `json:"image_orientation,omitempty"`
}

// NewItem holds the fields for CreateItem.
type NewItem struct {
	CollectionType   string            `json:"collection_type" validate:"required,oneof=Cards Comics cards comics"`
	Name             string            `json:"name" validate:"required,max=500"`
	Year             *int              `json:"year" validate:"omitempty,min=1800,max=2200"`
	ImagePath        string            `json:"image_path" validate:"omitempty,max=1024"`
	ImageOrientation media.Orientation `json:"image_orientation" validate:"omitempty,oneof=portrait landscape square"`
}

// ItemImage is one photograph attached to an item.
type ItemImage struct {
	ID               int64             `json:"id"`
	ItemID           int64             `json:"item_id"`
	ImagePath        string            `json:"image_path"`
	ImageOrientation media.Orientation `json:"image_orientation"`
	IsPrimary        bool              `json:"is_primary"`
	DisplayOrder     int               `json:"display_order"`
	CreatedAt        time.Time         `json:"created_at"`
}

// NewImage holds the fields for AddImage. Nil pointers take the defaults:
// not primary (unless it is the item's first image) and appended last.
type NewImage struct {
	ItemID       int64
	ImagePath    string
	Orientation  media.Orientation
	IsPrimary    *bool
	DisplayOrder *int
}

// ImageUpdate lists the fields UpdateImage may change. Nil fields are left as they are.
type ImageUpdate struct {
	IsPrimary    *bool
	DisplayOrder *int
	Orientation  *media.Orientation
}

// IsEmpty reports whether the update changes nothing.
func (u ImageUpdate) IsEmpty() bool {
	return u.IsPrimary == nil && u.DisplayOrder == nil && u.Orientation == nil
}

// LegacyMigrationResult reports what MigrateLegacyImages did.
type LegacyMigrationResult struct {
	// AlreadyMigrated is set when the recorded flag was present on entry.
	AlreadyMigrated bool `json:"already_migrated"`
	// SkippedExisting is set when images existed without a flag; the flag is recorded.
	SkippedExisting bool  `json:"skipped_existing"`
	Created         int64 `json:"created"`
	// Skipped lists legacy rows that were left unmigrated.
	Skipped []LegacySkip `json:"skipped,omitempty"`
}

func (r *LegacyMigrationResult) skip(itemID int64, path, reason string) {
	r.Skipped = append(r.Skipped, LegacySkip{ItemID: itemID, Path: path, Reason: reason})
}

// LegacySkip is one legacy image the migration did not carry over.
type LegacySkip struct {
	ItemID int64  `json:"item_id"`
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Stats holds store counts for status output and metrics.
type Stats struct {
	TotalItems           int64 `json:"total_items"`
	TotalImages          int64 `json:"total_images"`
	ItemsWithImages      int64 `json:"items_with_images"`
	LegacyImagesMigrated bool  `json:"legacy_images_migrated"`
}
