package startup

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/jthoms1/the-collector/internal/ingest"
	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/media"
	"github.com/jthoms1/the-collector/internal/workers"
)

// DatabaseFile is the SQLite file name inside DATABASE_DIR.
const DatabaseFile = "collection.db"

// maxDeriveWorkers caps the automatic worker count.
const maxDeriveWorkers = 8

// Config holds all application configuration
type Config struct {
	ContentDir      string        `envconfig:"CONTENT_DIR" default:"."`
	DatabaseDir     string        `envconfig:"DATABASE_DIR" default:"./data"`
	Port            string        `envconfig:"PORT" default:"8080"`
	MetricsPort     string        `envconfig:"METRICS_PORT" default:"9090"`
	MetricsEnabled  bool          `envconfig:"METRICS_ENABLED" default:"true"`
	MetricsInterval time.Duration `envconfig:"METRICS_INTERVAL" default:"1m"`
	LogStaticFiles  bool          `envconfig:"LOG_STATIC_FILES" default:"false"`
	LogHealthChecks bool          `envconfig:"LOG_HEALTH_CHECKS" default:"true"`
	MaxUploadBytes  int64         `envconfig:"MAX_UPLOAD_BYTES" default:"10485760"`
	DeriveWorkers   int           `envconfig:"DERIVE_WORKERS" default:"0"`
	DeriveBackend   string        `envconfig:"DERIVE_BACKEND" default:"imaging"`
	MigrateLegacy   bool          `envconfig:"MIGRATE_LEGACY_IMAGES" default:"true"`
	RequestTimeout  time.Duration `envconfig:"REQUEST_TIMEOUT" default:"60s"`
	MemoryLimit     int64         `envconfig:"MEMORY_LIMIT" default:"0"`
	MemoryRatio     float64       `envconfig:"MEMORY_RATIO" default:"0.85"`

	// Derived
	DatabasePath string `ignored:"true"`
}

// Parse reads .env (when present) and the environment into a Config and
// resolves directories to absolute paths. Nothing is created on disk.
func Parse() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	var err error
	if cfg.ContentDir, err = filepath.Abs(cfg.ContentDir); err != nil {
		return nil, fmt.Errorf("failed to resolve content directory path: %w", err)
	}
	if cfg.DatabaseDir, err = filepath.Abs(cfg.DatabaseDir); err != nil {
		return nil, fmt.Errorf("failed to resolve database directory path: %w", err)
	}
	cfg.DatabasePath = filepath.Join(cfg.DatabaseDir, DatabaseFile)

	cfg.DeriveWorkers = workers.Resolve(cfg.DeriveWorkers, maxDeriveWorkers)

	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.DeriveBackend {
	case media.BackendImaging, media.BackendVips:
	default:
		return fmt.Errorf("invalid DERIVE_BACKEND %q (want %s or %s)",
			c.DeriveBackend, media.BackendImaging, media.BackendVips)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MetricsInterval <= 0 {
		return fmt.Errorf("METRICS_INTERVAL must be positive, got %v", c.MetricsInterval)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %v", c.RequestTimeout)
	}
	if c.MemoryLimit < 0 {
		return fmt.Errorf("MEMORY_LIMIT must not be negative, got %d", c.MemoryLimit)
	}
	if c.MemoryRatio <= 0 || c.MemoryRatio > 1 {
		return fmt.Errorf("MEMORY_RATIO must be in (0, 1], got %v", c.MemoryRatio)
	}
	return nil
}

// Prepare creates the database and category directories and verifies they
// are writable.
func (c *Config) Prepare() error {
	if err := ensureDirectory(c.DatabaseDir, "database"); err != nil {
		return fmt.Errorf("database directory error: %w", err)
	}
	logging.Debug("  Testing database directory write access...")
	if err := testWriteAccess(c.DatabaseDir); err != nil {
		return fmt.Errorf("database directory is not writable: %w", err)
	}
	logging.Info("  [OK] Database directory is writable")

	if err := ensureDirectory(c.ContentDir, "content"); err != nil {
		return fmt.Errorf("content directory error: %w", err)
	}
	for _, category := range ingest.Categories {
		dir := c.CategoryDir(category)
		if err := ensureDirectory(dir, category); err != nil {
			return fmt.Errorf("%s directory error: %w", category, err)
		}
		if err := testWriteAccess(dir); err != nil {
			return fmt.Errorf("%s directory is not writable: %w", category, err)
		}
	}
	logging.Info("  [OK] Category directories are writable")
	return nil
}

// CategoryDir returns the absolute folder for a category.
func (c *Config) CategoryDir(category string) string {
	return filepath.Join(c.ContentDir, category)
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	if logging.IsDebugEnabled() {
		if entries, err := os.ReadDir(path); err == nil {
			logging.Debug("    [OK] Directory exists (%d entries)", len(entries))
		}
	}
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
	}
	return nil
}
