package handlers

import (
	"context"
	"net/http"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/database"
	"github.com/jthoms1/the-collector/internal/filesystem"
	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/media"
)

// ImageResponse is an image row plus the public paths of its derivatives.
type ImageResponse struct {
	database.ItemImage
	ThumbPath  string `json:"thumb_path"`
	MediumPath string `json:"medium_path"`
}

func newImageResponse(img database.ItemImage) ImageResponse {
	return ImageResponse{
		ItemImage:  img,
		ThumbPath:  media.DerivativePath(img.ImagePath, media.SizeThumb),
		MediumPath: media.DerivativePath(img.ImagePath, media.SizeMedium),
	}
}

func newImageResponses(images []database.ItemImage) []ImageResponse {
	out := make([]ImageResponse, 0, len(images))
	for _, img := range images {
		out = append(out, newImageResponse(img))
	}
	return out
}

// AddImageRequest registers an uploaded asset against an item.
type AddImageRequest struct {
	ImagePath        string            `json:"image_path" validate:"required,startswith=/,max=1024"`
	ImageOrientation media.Orientation `json:"image_orientation" validate:"omitempty,oneof=portrait landscape square"`
	IsPrimary        *bool             `json:"is_primary"`
	DisplayOrder     *int              `json:"display_order" validate:"omitempty,min=0"`
}

// UpdateImageRequest changes the primary flag, position or orientation of an image.
type UpdateImageRequest struct {
	IsPrimary        *bool              `json:"is_primary"`
	DisplayOrder     *int               `json:"display_order" validate:"omitempty,min=0"`
	ImageOrientation *media.Orientation `json:"image_orientation" validate:"omitempty,oneof=portrait landscape square"`
}

// ReorderRequest lists an item's image ids in their new order.
type ReorderRequest struct {
	ImageIDs []int64 `json:"image_ids" validate:"required"`
}

// requireItem resolves the {id} route variable to an existing item id.
func (h *Handlers) requireItem(r *http.Request) (int64, error) {
	itemID, err := pathID(r, "id")
	if err != nil {
		return 0, err
	}
	exists, err := h.db.ItemExists(r.Context(), itemID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, apperr.NotFound("Item not found")
	}
	return itemID, nil
}

// requireItemImage resolves {id} and {imageId}, rejecting an image that
// belongs to a different item.
func (h *Handlers) requireItemImage(r *http.Request) (*database.ItemImage, error) {
	itemID, err := h.requireItem(r)
	if err != nil {
		return nil, err
	}
	imageID, err := pathID(r, "imageId")
	if err != nil {
		return nil, err
	}
	img, err := h.db.GetImage(r.Context(), imageID)
	if err != nil {
		return nil, err
	}
	if img.ItemID != itemID {
		return nil, apperr.NotFound("Image not found")
	}
	return img, nil
}

// ListImages returns an item's images in display order.
func (h *Handlers) ListImages(w http.ResponseWriter, r *http.Request) {
	itemID, err := h.requireItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	images, err := h.db.ListImages(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"images": newImageResponses(images)})
}

// AddImage registers an image for an item.
func (h *Handlers) AddImage(w http.ResponseWriter, r *http.Request) {
	itemID, err := h.requireItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req AddImageRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	img, err := h.db.AddImage(r.Context(), database.NewImage{
		ItemID:       itemID,
		ImagePath:    req.ImagePath,
		Orientation:  req.ImageOrientation,
		IsPrimary:    req.IsPrimary,
		DisplayOrder: req.DisplayOrder,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.InfoCtx(r.Context(), "Added image %d (%s) to item %d", img.ID, img.ImagePath, itemID)
	writeJSON(w, http.StatusCreated, newImageResponse(*img))
}

// GetPrimaryImage returns the item's primary image, or null when it has none.
func (h *Handlers) GetPrimaryImage(w http.ResponseWriter, r *http.Request) {
	itemID, err := h.requireItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	img, err := h.db.GetPrimary(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var body *ImageResponse
	if img != nil {
		resp := newImageResponse(*img)
		body = &resp
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"image": body})
}

// ReorderImages rewrites the display order of an item's images.
func (h *Handlers) ReorderImages(w http.ResponseWriter, r *http.Request) {
	itemID, err := h.requireItem(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req ReorderRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	images, err := h.db.Reorder(r.Context(), itemID, req.ImageIDs)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"images":  newImageResponses(images),
	})
}

// GetImage returns one image of an item.
func (h *Handlers) GetImage(w http.ResponseWriter, r *http.Request) {
	img, err := h.requireItemImage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newImageResponse(*img))
}

// UpdateImage applies a partial update to one image of an item.
func (h *Handlers) UpdateImage(w http.ResponseWriter, r *http.Request) {
	existing, err := h.requireItemImage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req UpdateImageRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	img, err := h.db.UpdateImage(r.Context(), existing.ID, database.ImageUpdate{
		IsPrimary:    req.IsPrimary,
		DisplayOrder: req.DisplayOrder,
		Orientation:  req.ImageOrientation,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, newImageResponse(*img))
}

// DeleteImage removes one image of an item and then its files.
func (h *Handlers) DeleteImage(w http.ResponseWriter, r *http.Request) {
	existing, err := h.requireItemImage(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	path, err := h.db.RemoveImage(r.Context(), existing.ID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.removeAssets(r.Context(), "image removal", path)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// removeAssets deletes the asset sets of public paths after their rows are
// gone. Only originals in a category folder are touched. Failures are logged
// and counted, never returned.
func (h *Handlers) removeAssets(ctx context.Context, reason string, publicPaths ...string) {
	var files []string
	for _, p := range publicPaths {
		if p == "" {
			continue
		}
		if err := media.ValidateAssetPath(p); err != nil {
			logging.WarnCtx(ctx, "Skipping cleanup of %q: %v", p, err)
			continue
		}
		full, err := media.ContentPath(h.contentDir, p)
		if err != nil {
			logging.WarnCtx(ctx, "Skipping cleanup of %q: %v", p, err)
			continue
		}
		files = append(files, media.AssetSet(full)...)
	}
	if len(files) == 0 {
		return
	}
	if n := filesystem.RemoveFilesBestEffort(reason, files...); n > 0 {
		logging.WarnCtx(ctx, "%d file(s) could not be removed after %s", n, reason)
	}
}
