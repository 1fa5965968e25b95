package metrics

import (
	"context"
	"time"

	"github.com/jthoms1/the-collector/internal/logging"
)

// StatsProvider supplies the store counts exported as gauges.
type StatsProvider interface {
	GetStats(ctx context.Context) (Stats, error)
}

// Stats holds the current store counts
type Stats struct {
	TotalItems           int
	TotalImages          int
	ItemsWithImages      int
	OpenConnections      int
	SchemaVersion        int64
	LegacyImagesMigrated bool
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	interval      time.Duration
	stopChan      chan struct{}
	done          chan struct{}
}

// NewCollector creates a new metrics collector
func NewCollector(provider StatsProvider, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		interval:      interval,
		stopChan:      make(chan struct{}),
		done:          make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection and waits for the loop to exit
func (c *Collector) Stop() {
	close(c.stopChan)
	<-c.done
}

func (c *Collector) collectLoop() {
	defer close(c.done)

	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	if c.statsProvider == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	stats, err := c.statsProvider.GetStats(ctx)
	if err != nil {
		logging.Warn("Metrics collection failed: %v", err)
		return
	}

	ItemsTotal.Set(float64(stats.TotalItems))
	ItemImagesTotal.Set(float64(stats.TotalImages))
	ItemsWithImagesTotal.Set(float64(stats.ItemsWithImages))
	DBConnectionsOpen.Set(float64(stats.OpenConnections))
	DBSchemaVersion.Set(float64(stats.SchemaVersion))

	logging.Debug("Metrics collected: items=%d, images=%d, items_with_images=%d",
		stats.TotalItems, stats.TotalImages, stats.ItemsWithImages)
}
