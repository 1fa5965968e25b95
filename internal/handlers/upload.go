package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/ingest"
)

// multipartOverhead allows for form boundaries and the type field on top of
// the file itself.
const multipartOverhead = 1 << 20

// Upload accepts a multipart image in field "file" with an optional "type"
// selecting the category folder, and returns the derived asset set.
func (h *Handlers) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload+multipartOverhead)

	// Files larger than the memory budget spill to temporary files.
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, h.ingest.TooLarge())
			return
		}
		writeError(w, r, apperr.Wrap(apperr.CodeValidation, err, "Invalid multipart form"))
		return
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			writeError(w, r, apperr.Validation("No file provided"))
			return
		}
		writeError(w, r, apperr.Wrap(apperr.CodeValidation, err, "Invalid file field"))
		return
	}
	defer func(f multipart.File) {
		_ = f.Close()
	}(file)

	result, err := h.ingest.Ingest(r.Context(), ingest.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Type:        r.FormValue("type"),
		Body:        file,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
