package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jthoms1/the-collector/internal/logging"
	"github.com/jthoms1/the-collector/internal/media"
	"github.com/jthoms1/the-collector/internal/metrics"
	"github.com/jthoms1/the-collector/internal/workers"
)

// OrientationStore records recomputed orientations.
type OrientationStore interface {
	SetOrientationByPath(ctx context.Context, path string, o media.Orientation) (int64, error)
}

// RegenReport summarizes a regeneration run.
type RegenReport struct {
	Processed int      `json:"processed"`
	Updated   int      `json:"updated"`
	Failed    int      `json:"failed"`
	Orphans   []string `json:"orphans,omitempty"`
	Duration  string   `json:"duration"`
}

// Regenerator rebuilds the derivatives of every original in the category
// folders and corrects stored orientations.
type Regenerator struct {
	engine     *media.Engine
	pool       *workers.Pool
	contentDir string
	store      OrientationStore
}

// NewRegenerator creates a Regenerator. store may be nil to only rewrite files.
func NewRegenerator(engine *media.Engine, pool *workers.Pool, contentDir string, store OrientationStore) *Regenerator {
	return &Regenerator{
		engine:     engine,
		pool:       pool,
		contentDir: contentDir,
		store:      store,
	}
}

// Run regenerates every original. Failures on single files are counted and
// logged; Run only returns an error when a folder cannot be listed or ctx
// is cancelled.
func (r *Regenerator) Run(ctx context.Context) (RegenReport, error) {
	start := time.Now()
	var (
		report RegenReport
		mu     sync.Mutex
	)

	g, gctx := errgroup.WithContext(ctx)

	for _, category := range Categories {
		dir := filepath.Join(r.contentDir, category)
		entries, err := os.ReadDir(dir)
		if errors.Is(err, fs.ErrNotExist) {
			logging.Debug("Skipping missing folder %s", dir)
			continue
		}
		if err != nil {
			return report, fmt.Errorf("failed to list %s: %w", dir, err)
		}

		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.Type().IsRegular() {
				names = append(names, e.Name())
			}
		}
		listing := media.ClassifyNames(names)

		for _, orphan := range listing.Orphans {
			report.Orphans = append(report.Orphans, "/"+category+"/"+orphan)
		}

		for _, name := range listing.Originals {
			fullPath := filepath.Join(dir, name)
			publicPath := "/" + category + "/" + name

			g.Go(func() error {
				err := r.pool.Do(gctx, func() error {
					return r.regenerateOne(gctx, fullPath, publicPath, &report, &mu)
				})
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if err != nil {
					logging.Warn("Failed to regenerate %s: %v", publicPath, err)
				}
				return nil
			})
		}
	}

	err := g.Wait()
	report.Duration = time.Since(start).Round(time.Millisecond).String()
	if err != nil {
		return report, err
	}

	logging.Info("Regenerated %d original(s): %d orientation update(s), %d failure(s), %d orphan(s) in %s",
		report.Processed, report.Updated, report.Failed, len(report.Orphans), report.Duration)
	return report, nil
}

func (r *Regenerator) regenerateOne(ctx context.Context, fullPath, publicPath string, report *RegenReport, mu *sync.Mutex) error {
	d, err := r.engine.Regenerate(fullPath)
	if err != nil {
		metrics.RegeneratedAssetsTotal.WithLabelValues("error").Inc()
		mu.Lock()
		report.Failed++
		mu.Unlock()
		return err
	}

	var changed int64
	if r.store != nil {
		changed, err = r.store.SetOrientationByPath(ctx, publicPath, d.Orientation)
		if err != nil {
			metrics.RegeneratedAssetsTotal.WithLabelValues("error").Inc()
			mu.Lock()
			report.Failed++
			mu.Unlock()
			return fmt.Errorf("failed to record orientation: %w", err)
		}
	}

	metrics.RegeneratedAssetsTotal.WithLabelValues("success").Inc()
	mu.Lock()
	report.Processed++
	if changed > 0 {
		report.Updated++
	}
	mu.Unlock()

	logging.Debug("Regenerated %s (%s)", publicPath, d.Orientation)
	return nil
}
