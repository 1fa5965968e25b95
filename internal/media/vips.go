package media

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"

	"github.com/jthoms1/the-collector/internal/apperr"
	"github.com/jthoms1/the-collector/internal/logging"
)

var (
	vipsInitialized bool
	vipsInitMutex   sync.Mutex
	vipsAvailable   bool
)

// vipsLogHandler routes libvips messages through the application logger at
// or above the configured level.
func vipsLogHandler() (vips.LogLevel, func(string, vips.LogLevel, string)) {
	switch logging.GetLevel() {
	case logging.LevelDebug:
		return vips.LogLevelInfo, func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			default:
				logging.Debug("[%s] %s", domain, msg)
			}
		}
	case logging.LevelWarn, logging.LevelError:
		return vips.LogLevelError, func(domain string, level vips.LogLevel, msg string) {
			if level >= vips.LogLevelError {
				logging.Error("[%s] %s", domain, msg)
			}
		}
	default:
		return vips.LogLevelWarning, func(domain string, level vips.LogLevel, msg string) {
			switch level {
			case vips.LogLevelError, vips.LogLevelCritical:
				logging.Error("[%s] %s", domain, msg)
			case vips.LogLevelWarning:
				logging.Warn("[%s] %s", domain, msg)
			}
		}
	}
}

// InitVips initializes the libvips library.
// This should be called once at startup
func InitVips() error {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		return nil
	}

	level, handler := vipsLogHandler()
	vips.LoggingSettings(handler, level)

	// Concurrency is bounded by the derivation pool, so keep libvips' own
	// thread pool and cache small.
	vips.Startup(&vips.Config{
		ConcurrencyLevel: 1,
		MaxCacheMem:      50 * 1024 * 1024,
		MaxCacheSize:     100,
	})

	vipsInitialized = true
	vipsAvailable = true
	logging.Info("libvips initialized successfully (version: %s)", vips.Version)
	return nil
}

// ShutdownVips cleans up libvips resources. libvips cannot be restarted in
// the same process afterwards.
func ShutdownVips() {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()

	if vipsInitialized {
		vips.Shutdown()
		vipsInitialized = false
		vipsAvailable = false
		logging.Info("libvips shutdown complete")
	}
}

// IsVipsAvailable returns whether libvips is initialized and available
func IsVipsAvailable() bool {
	vipsInitMutex.Lock()
	defer vipsInitMutex.Unlock()
	return vipsAvailable
}

// VipsBackend renders with libvips, which shrinks on load and is much
// lighter on memory for large scans.
type VipsBackend struct{}

func (VipsBackend) Name() string { return BackendVips }

func (VipsBackend) Open(data []byte) (Source, error) {
	if !IsVipsAvailable() {
		return nil, fmt.Errorf("libvips not available")
	}

	ref, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, apperr.Wrap(apperr.CodeDecode, err, "Failed to decode image")
	}
	if err := ref.AutoRotate(); err != nil {
		ref.Close()
		return nil, apperr.Wrap(apperr.CodeDecode, err, "Failed to rotate image")
	}
	return &vipsSource{ref: ref}, nil
}

type vipsSource struct {
	mu  sync.Mutex
	ref *vips.ImageRef
}

func (s *vipsSource) Render(bound, quality int) ([]byte, error) {
	s.mu.Lock()
	scaled, err := s.ref.Copy()
	s.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("vips copy failed: %w", err)
	}
	defer scaled.Close()

	if err := scaled.ThumbnailWithSize(bound, bound, vips.InterestingNone, vips.SizeDown); err != nil {
		return nil, fmt.Errorf("vips resize failed: %w", err)
	}

	out, _, err := scaled.ExportJpeg(&vips.JpegExportParams{
		Quality:        quality,
		StripMetadata:  true,
		OptimizeCoding: true,
	})
	if err != nil {
		return nil, fmt.Errorf("vips export failed: %w", err)
	}
	return out, nil
}

func (s *vipsSource) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ref != nil {
		s.ref.Close()
		s.ref = nil
	}
}
