package ingest

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	"mime"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/media"
	"github.com/jthoms1/the-collector/internal/metrics"
	"github.com/jthoms1/the-collector/internal/workers"
)

// DefaultMaxBytes is the upload size limit (10MB).
const DefaultMaxBytes int64 = 10 * 1024 * 1024

// Category folders under the content directory.
const (
	CategoryCards  = media.CategoryCards
	CategoryComics = media.CategoryComics
)

// Categories lists every category folder.
var Categories = media.Categories

// AllowedTypes is the MIME allow-list for uploads.
var AllowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
}

const (
	randomChars = 6
	defaultExt  = ".jpg"
)

var extPattern = regexp.MustCompile(`^\.[A-Za-z0-9]{1,5}$`)

// Folder maps an upload's type field to its category folder.
func Folder(uploadType string) string {
	if strings.EqualFold(strings.TrimSpace(uploadType), "comics") {
		return CategoryComics
	}
	return CategoryCards
}

// Upload is one file handed over by a transport.
type Upload struct {
	Filename string
	// ContentType is the declared MIME type; it is sniffed from the bytes when
	// empty or application/octet-stream.
	ContentType string
	// Size is the declared size, or -1 when unknown.
	Size int64
	// Type selects the category folder.
	Type string
	Body io.Reader
}

// Result describes a stored asset set in public paths.
type Result struct {
	Success     bool              `json:"success"`
	Filename    string            `json:"filename"`
	Path        string            `json:"path"`
	ThumbPath   string            `json:"thumbPath"`
	MediumPath  string            `json:"mediumPath"`
	Orientation media.Orientation `json:"orientation"`
	Width       int               `json:"width"`
	Height      int               `json:"height"`
}

// Service validates uploads and derives their asset sets. It never registers
// images; callers attach a result to an item as a separate step.
type Service struct {
	engine     *media.Engine
	pool       *workers.Pool
	contentDir string
	maxBytes   int64

	now    func() time.Time
	random io.Reader
}

// NewService creates a Service writing under contentDir. A maxBytes of 0
// selects DefaultMaxBytes.
func NewService(engine *media.Engine, pool *workers.Pool, contentDir string, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		engine:     engine,
		pool:       pool,
		contentDir: contentDir,
		maxBytes:   maxBytes,
		now:        time.Now,
		random:     rand.Reader,
	}
}

// MaxBytes returns the upload size limit.
func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// Ingest validates an upload and stores it with both derivatives.
//
// Type and size are checked before any decoding. Bytes that pass the checks
// but are not an image fail with a decode error and leave nothing on disk.
func (s *Service) Ingest(ctx context.Context, up Upload) (result *Result, err error) {
	folder := Folder(up.Type)
	defer func() { recordUpload(folder, err) }()

	if up.Body == nil {
		return nil, apperr.Validation("No file provided")
	}
	if up.Size > s.maxBytes {
		return nil, s.TooLarge()
	}

	declared, err := normalizeType(up.ContentType)
	if err != nil {
		return nil, err
	}
	if declared != "" && !AllowedTypes[declared] {
		return nil, invalidType()
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, s.TooLarge()
	}
	if len(data) == 0 {
		return nil, apperr.Validation("Uploaded file is empty")
	}

	if declared == "" {
		sniffed := mimetype.Detect(data)
		logging.DebugCtx(ctx, "Sniffed upload %q as %s", up.Filename, sniffed.String())
		if !AllowedTypes[baseType(sniffed.String())] {
			return nil, invalidType()
		}
	}

	filename, err := s.generateFilename(up.Filename)
	if err != nil {
		return nil, err
	}
	dir := filepath.Join(s.contentDir, folder)

	var d *media.Derivation
	err = s.pool.Do(ctx, func() error {
		var derr error
		d, derr = s.engine.Derive(data, dir, filename)
		return derr
	})
	if err != nil {
		return nil, err
	}

	metrics.UploadSizeBytes.Observe(float64(len(data)))
	logging.InfoCtx(ctx, "Stored upload %q as /%s/%s (%dx%d, %s)",
		up.Filename, folder, filename, d.Width, d.Height, d.Orientation)

	return &Result{
		Success:     true,
		Filename:    d.Filename,
		Path:        "/" + folder + "/" + d.Filename,
		ThumbPath:   "/" + folder + "/" + d.ThumbFilename,
		MediumPath:  "/" + folder + "/" + d.MediumFilename,
		Orientation: d.Orientation,
		Width:       d.Width,
		Height:      d.Height,
	}, nil
}

// TooLarge is the validation error for an upload over the size limit.
func (s *Service) TooLarge() error {
	return apperr.Validation("File too large. Maximum size is %s", humanSize(s.maxBytes))
}

func invalidType() error {
	return apperr.Validation("Invalid file type. Allowed: JPEG, PNG, WebP, GIF")
}

// normalizeType returns the lower-cased media type without parameters, or ""
// when the type should be sniffed.
func normalizeType(contentType string) (string, error) {
	contentType = strings.TrimSpace(contentType)
	if contentType == "" {
		return "", nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", apperr.Validation("Invalid content type %q", contentType)
	}
	if mediaType == "application/octet-stream" {
		return "", nil
	}
	return mediaType, nil
}

func baseType(t string) string {
	if i := strings.IndexByte(t, ';'); i >= 0 {
		t = t[:i]
	}
	return strings.ToLower(strings.TrimSpace(t))
}

// generateFilename returns "{unixMillis}-{6 base36 chars}{ext}", keeping the
// original extension when it is a plain image extension.
func (s *Service) generateFilename(original string) (string, error) {
	ext := filepath.Ext(original)
	if !extPattern.MatchString(ext) || !media.IsImageName(ext) {
		ext = defaultExt
	}

	max := new(big.Int).Exp(big.NewInt(36), big.NewInt(randomChars), nil)
	n, err := rand.Int(s.random, max)
	if err != nil {
		return "", fmt.Errorf("failed to generate filename: %w", err)
	}
	suffix := strconv.FormatInt(n.Int64(), 36)
	suffix = strings.Repeat("0", randomChars-len(suffix)) + suffix

	return fmt.Sprintf("%d-%s%s", s.now().UnixMilli(), suffix, ext), nil
}

func recordUpload(folder string, err error) {
	result := "success"
	if err != nil {
		switch apperr.CodeOf(err) {
		case apperr.CodeValidation:
			result = "validation"
		case apperr.CodeDecode:
			result = "decode"
		case apperr.CodePartialDerivative:
			result = "partial"
		default:
			result = "error"
		}
	}
	metrics.UploadsTotal.WithLabelValues(folder, result).Inc()
}

func humanSize(n int64) string {
	const mb = 1024 * 1024
	if n%mb == 0 {
		return fmt.Sprintf("%dMB", n/mb)
	}
	return fmt.Sprintf("%d bytes", n)
}
