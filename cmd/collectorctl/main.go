package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jthoms1/the-collector/internal/database"
	"github.com/jthoms1/the-collector/internal/ingest"
	"github.com/jthoms1/the-collector/internal/media"
	"github.com/jthoms1/the-collector/internal/startup"
	"github.com/jthoms1/the-collector/internal/workers"
)

const (
	// Default timeout for short database operations
	defaultTimeout = 30 * time.Second
)

var commands = map[string]string{
	"migrate-images": "Copy legacy single-image columns into the image list",
	"regen":          "Rebuild thumbnails and medium images from the originals",
	"status":         "Show item and image counts and the migration state",
}

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stdout)
		os.Exit(1)
	}

	// Create a context that cancels on interrupt signals
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Fprintln(os.Stderr, "\nInterrupted, shutting down...")
		cancel()
	}()

	code := run(ctx, os.Args[1], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, command string, stdout, stderr io.Writer) int {
	switch command {
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	}
	if _, ok := commands[command]; !ok {
		fmt.Fprintf(stderr, "Unknown command: %s\n", sanitizeCommand(command))
		printUsage(stderr)
		return 1
	}

	cfg, err := startup.Parse()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := cfg.Prepare(); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	db, err := database.New(ctx, cfg.DatabasePath)
	if err != nil {
		fmt.Fprintf(stderr, "Error: Failed to connect to database: %v\n", err)
		fmt.Fprintf(stderr, "Make sure DATABASE_DIR is set correctly (current: %s)\n", cfg.DatabaseDir)
		return 1
	}
	defer func() {
		if err := db.Close(); err != nil {
			fmt.Fprintf(stderr, "Warning: failed to close database: %v\n", err)
		}
	}()

	switch command {
	case "migrate-images":
		err = migrateImages(ctx, db, stdout)
	case "regen":
		err = regenerate(ctx, db, cfg, stdout)
	case "status":
		err = showStatus(ctx, db, stdout)
	}
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// sanitizeCommand returns a safe representation of a command string for display.
// Any character outside [a-zA-Z0-9_-] is replaced with '_'.
func sanitizeCommand(cmd string) string {
	var b strings.Builder
	b.Grow(len(cmd))
	for _, r := range cmd {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return b.String()
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "The Collector maintenance tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: collectorctl <command>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, name := range []string{"migrate-images", "regen", "status"} {
		fmt.Fprintf(w, "  %-15s %s\n", name, commands[name])
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Environment:")
	fmt.Fprintln(w, "  CONTENT_DIR    - Directory holding the Cards and Comics folders (default: .)")
	fmt.Fprintln(w, "  DATABASE_DIR   - Path to database directory (default: ./data)")
	fmt.Fprintln(w, "  DERIVE_BACKEND - imaging or vips (default: imaging)")
	fmt.Fprintln(w, "  DERIVE_WORKERS - Concurrent derivations for regen (default: CPU based)")
}

func migrateImages(ctx context.Context, db *database.Database, out io.Writer) error {
	result, err := db.MigrateLegacyImages(ctx)
	if err != nil {
		return fmt.Errorf("legacy image migration failed: %w", err)
	}

	switch {
	case result.AlreadyMigrated:
		fmt.Fprintln(out, "Legacy images were already migrated, nothing to do.")
	case result.SkippedExisting:
		fmt.Fprintln(out, "Image records already present, marked as migrated.")
	case result.Created == 0 && len(result.Skipped) == 0:
		fmt.Fprintln(out, "No legacy images found.")
	default:
		fmt.Fprintf(out, "Migrated %d legacy image(s).\n", result.Created)
	}
	for _, sk := range result.Skipped {
		fmt.Fprintf(out, "Skipped item %d (%s): %s\n", sk.ItemID, sk.Path, sk.Reason)
	}
	return nil
}

func regenerate(ctx context.Context, db *database.Database, cfg *startup.Config, out io.Writer) error {
	backend, err := media.BackendFor(cfg.DeriveBackend)
	if err != nil {
		return err
	}
	defer media.ShutdownVips()

	engine := media.NewEngine(backend)
	pool := workers.NewPool(cfg.DeriveWorkers, nil)

	fmt.Fprintf(out, "Regenerating derivatives in %s (%s backend, %d workers)...\n",
		cfg.ContentDir, engine.BackendName(), pool.Size())

	report, err := ingest.NewRegenerator(engine, pool, cfg.ContentDir, db).Run(ctx)
	if err != nil {
		return fmt.Errorf("regeneration stopped: %w", err)
	}

	fmt.Fprintf(out, "Processed:           %d\n", report.Processed)
	fmt.Fprintf(out, "Orientation updates: %d\n", report.Updated)
	fmt.Fprintf(out, "Failed:              %d\n", report.Failed)
	fmt.Fprintf(out, "Duration:            %s\n", report.Duration)
	if len(report.Orphans) > 0 {
		fmt.Fprintf(out, "Orphaned derivatives (%d):\n", len(report.Orphans))
		for _, p := range report.Orphans {
			fmt.Fprintf(out, "  %s\n", p)
		}
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d original(s) could not be regenerated", report.Failed)
	}
	return nil
}

func showStatus(ctx context.Context, db *database.Database, out io.Writer) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	stats, err := db.Stats(ctx)
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	migration := "pending"
	if stats.LegacyImagesMigrated {
		migration = "done"
	}

	fmt.Fprintf(out, "Items:             %d\n", stats.TotalItems)
	fmt.Fprintf(out, "Images:            %d\n", stats.TotalImages)
	fmt.Fprintf(out, "Items with images: %d\n", stats.ItemsWithImages)
	fmt.Fprintf(out, "Legacy migration:  %s\n", migration)
	return nil
}
