package media

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/filesystem"
	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/metrics"
)

// Derivation describes a written asset set.
type Derivation struct {
	OriginalPath string
	ThumbPath    string
	MediumPath   string

	Filename       string
	ThumbFilename  string
	MediumFilename string

	Orientation Orientation
	// Width and Height are the declared dimensions before any EXIF rotation.
	Width  int
	Height int
}

// Paths returns the three files of the set.
func (d *Derivation) Paths() []string {
	return []string{d.OriginalPath, d.ThumbPath, d.MediumPath}
}

// Engine turns original image bytes into an asset set on disk.
type Engine struct {
	backend Backend

	// writeFile is replaced in tests to simulate failing writes.
	writeFile func(path string, data []byte, perm os.FileMode) error
}

// NewEngine creates an Engine rendering with backend, or the imaging backend when nil.
func NewEngine(backend Backend) *Engine {
	if backend == nil {
		backend = ImagingBackend{}
	}
	return &Engine{
		backend:   backend,
		writeFile: filesystem.WriteFileAtomic,
	}
}

// BackendName returns the name of the rendering backend.
func (e *Engine) BackendName() string {
	return e.backend.Name()
}

// Derive stores data as dir/filename and writes both derivatives next to it.
//
// Bytes that are not a supported image fail with a decode error before
// anything is left on disk. If a derivative cannot be written the whole set
// is removed on a best-effort basis and a partial derivative error is
// returned; callers must not register an image from a failed derivation.
func (e *Engine) Derive(data []byte, dir, filename string) (*Derivation, error) {
	start := time.Now()

	info, err := e.probe(data)
	if err != nil {
		e.recordOutcome("decode_error")
		return nil, err
	}

	original := filepath.Join(dir, filename)
	d := &Derivation{
		OriginalPath:   original,
		ThumbPath:      DerivativePath(original, SizeThumb),
		MediumPath:     DerivativePath(original, SizeMedium),
		Filename:       filename,
		ThumbFilename:  filepath.Base(DerivativePath(original, SizeThumb)),
		MediumFilename: filepath.Base(DerivativePath(original, SizeMedium)),
		Orientation:    info.Orientation(),
		Width:          info.Width,
		Height:         info.Height,
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		e.recordOutcome("error")
		return nil, fmt.Errorf("failed to create %s: %w", dir, err)
	}

	writeStart := time.Now()
	if err := e.writeFile(original, data, 0o644); err != nil {
		e.recordOutcome("error")
		return nil, fmt.Errorf("failed to store original %s: %w", original, err)
	}
	metrics.DerivationDuration.WithLabelValues("write").Observe(time.Since(writeStart).Seconds())

	if err := e.render(data, d); err != nil {
		if apperr.IsCode(err, apperr.CodeDecode) {
			e.recordOutcome("decode_error")
			e.cleanup("decode failure", original)
			return nil, err
		}
		e.recordOutcome("partial")
		e.cleanup("partial derivation", d.Paths()...)
		return nil, err
	}

	e.recordOutcome("success")
	logging.Debug("Derived %s (%dx%d, %s) in %v using %s",
		filename, d.Width, d.Height, d.Orientation, time.Since(start), e.backend.Name())
	return d, nil
}

// Regenerate rewrites both derivatives of an existing original and returns
// the recomputed orientation. The original is never modified or removed.
func (e *Engine) Regenerate(originalPath string) (*Derivation, error) {
	data, err := filesystem.ReadFileWithRetry(originalPath, filesystem.DefaultRetryConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to read original %s: %w", originalPath, err)
	}

	info, err := e.probe(data)
	if err != nil {
		e.recordOutcome("decode_error")
		return nil, err
	}

	d := &Derivation{
		OriginalPath:   originalPath,
		ThumbPath:      DerivativePath(originalPath, SizeThumb),
		MediumPath:     DerivativePath(originalPath, SizeMedium),
		Filename:       filepath.Base(originalPath),
		ThumbFilename:  filepath.Base(DerivativePath(originalPath, SizeThumb)),
		MediumFilename: filepath.Base(DerivativePath(originalPath, SizeMedium)),
		Orientation:    info.Orientation(),
		Width:          info.Width,
		Height:         info.Height,
	}

	if err := e.render(data, d); err != nil {
		if apperr.IsCode(err, apperr.CodeDecode) {
			e.recordOutcome("decode_error")
		} else {
			e.recordOutcome("partial")
		}
		return nil, err
	}

	e.recordOutcome("success")
	return d, nil
}

func (e *Engine) probe(data []byte) (*ImageInfo, error) {
	start := time.Now()
	defer func() {
		metrics.DerivationDuration.WithLabelValues("probe").Observe(time.Since(start).Seconds())
	}()
	return Probe(data)
}

// render decodes data once and writes the thumbnail and medium derivatives
// in parallel.
func (e *Engine) render(data []byte, d *Derivation) error {
	decodeStart := time.Now()
	src, err := e.backend.Open(data)
	metrics.DerivationDuration.WithLabelValues("decode").Observe(time.Since(decodeStart).Seconds())
	if err != nil {
		if apperr.IsCode(err, apperr.CodeDecode) {
			return err
		}
		return apperr.Wrap(apperr.CodeDecode, err, "Failed to decode image")
	}
	defer src.Close()

	targets := map[Size]string{
		SizeThumb:  d.ThumbPath,
		SizeMedium: d.MediumPath,
	}

	var (
		g      errgroup.Group
		mu     sync.Mutex
		failed []Size
	)
	for _, size := range Derivatives {
		g.Go(func() error {
			start := time.Now()
			out, err := src.Render(size.Bound(), JPEGQuality)
			if err == nil {
				err = e.writeFile(targets[size], out, 0o644)
			}
			metrics.DerivationDuration.WithLabelValues(string(size)).Observe(time.Since(start).Seconds())
			if err != nil {
				mu.Lock()
				failed = append(failed, size)
				mu.Unlock()
				return fmt.Errorf("%s derivative: %w", size, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		details := map[string]string{"original": d.Filename}
		for _, size := range failed {
			details[string(size)] = "failed"
		}
		return apperr.Wrap(apperr.CodePartialDerivative, err, "Failed to generate image sizes").WithDetails(details)
	}
	return nil
}

func (e *Engine) cleanup(reason string, paths ...string) {
	if n := filesystem.RemoveFilesBestEffort(reason, paths...); n > 0 {
		logging.Warn("%d file(s) left behind after %s", n, reason)
	}
}

func (e *Engine) recordOutcome(status string) {
	metrics.DerivationsTotal.WithLabelValues(e.backend.Name(), status).Inc()
}
