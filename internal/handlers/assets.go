package handlers

import (
	"errors"
	"io"
	"io/fs"
	"net/http"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gorilla/mux"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/filesystem"
	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/media"
)

// assetCacheControl applies to every asset: filenames are unique and never rewritten in place.
const assetCacheControl = "public, max-age=31536000"

// ServeAsset serves /{category}/{file} with an optional ?size=original|medium|thumb.
// A missing derivative falls back to the original.
func (h *Handlers) ServeAsset(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	original := "/" + vars["category"] + "/" + vars["file"]

	size, err := media.ParseSize(r.URL.Query().Get("size"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	fullPath, isOriginal, err := h.resolveAsset(original, size)
	if err != nil {
		writeError(w, r, err)
		return
	}

	f, err := filesystem.OpenWithRetry(fullPath, filesystem.DefaultRetryConfig())
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		writeError(w, r, err)
		return
	}

	contentType := "image/jpeg"
	if isOriginal {
		if mt, err := mimetype.DetectReader(f); err == nil {
			contentType = mt.String()
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			writeError(w, r, err)
			return
		}
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", assetCacheControl)
	http.ServeContent(w, r, filepath.Base(fullPath), info.ModTime(), f)
}

// resolveAsset maps a public original path and size to the file on disk and
// reports whether that file is the original.
func (h *Handlers) resolveAsset(original string, size media.Size) (string, bool, error) {
	originalPath, err := media.ContentPath(h.contentDir, original)
	if err != nil {
		return "", false, err
	}

	candidate := media.DerivativePath(originalPath, size)
	_, err = filesystem.StatWithRetry(candidate, filesystem.DefaultRetryConfig())
	switch {
	case err == nil:
		return candidate, candidate == originalPath, nil
	case !errors.Is(err, fs.ErrNotExist):
		return "", false, err
	}

	if candidate != originalPath {
		if _, err := filesystem.StatWithRetry(originalPath, filesystem.DefaultRetryConfig()); err == nil {
			logging.Debug("Derivative %s missing, serving original", filepath.Base(candidate))
			return originalPath, true, nil
		}
	}
	return "", false, apperr.NotFound("Asset not found")
}
