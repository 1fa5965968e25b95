package handlers

import (
	"net/http"

	"github.com/jthoms1/the-collector/internal/database"
	"github.com/jthoms1/the-collector/internal/logging"
)

// ItemResponse is an item with its ordered images and primary image.
type ItemResponse struct {
	*database.Item
	Images  []ImageResponse `json:"images"`
	Primary *ImageResponse  `json:"primary_image"`
}

// CreateItem creates an item record.
func (h *Handlers) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req database.NewItem
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.db.CreateItem(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	logging.InfoCtx(r.Context(), "Created item %d (%s)", item.ID, item.CollectionTypeName)
	writeJSON(w, http.StatusCreated, item)
}

// GetItem returns an item with its images.
func (h *Handlers) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	item, err := h.db.GetItem(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	images, err := h.db.ListImages(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	primary, err := h.db.GetPrimary(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	resp := ItemResponse{Item: item, Images: newImageResponses(images)}
	if primary != nil {
		p := newImageResponse(*primary)
		resp.Primary = &p
	}
	writeJSON(w, http.StatusOK, resp)
}

// DeleteItem removes an item, its images and then their files.
func (h *Handlers) DeleteItem(w http.ResponseWriter, r *http.Request) {
	itemID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	paths, err := h.db.DeleteItem(r.Context(), itemID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.removeAssets(r.Context(), "item deletion", paths...)
	logging.InfoCtx(r.Context(), "Deleted item %d with %d asset set(s)", itemID, len(paths))
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}
