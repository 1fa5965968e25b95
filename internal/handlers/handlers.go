package handlers

import (
	"time"

	"github.com/jthoms1/the-collector/internal/database"
	"github.com/jthoms1/the-collector/internal/ingest"
	"github.com/jthoms1/the-collector/internal/startup"
)

// Handlers serves the collector's HTTP API.
type Handlers struct {
	db         *database.Database
	ingest     *ingest.Service
	contentDir string
	maxUpload  int64
	startTime  time.Time
}

// New wires handlers to the store, the ingestion service and configuration.
func New(db *database.Database, svc *ingest.Service, config *startup.Config) *Handlers {
	return &Handlers{
		db:         db,
		ingest:     svc,
		contentDir: config.ContentDir,
		maxUpload:  svc.MaxBytes(),
		startTime:  time.Now(),
	}
}
