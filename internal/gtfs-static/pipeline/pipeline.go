package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/travelguide-gtfs/internal/common/config"
	"github.com/travelguide-gtfs/internal/common/logger"
	"github.com/travelguide-gtfs/internal/common/maintenance"
	"github.com/travelguide-gtfs/internal/gtfs-static/locator"
	"github.com/travelguide-gtfs/internal/gtfs-static/parser"
	"github.com/travelguide-gtfs/internal/gtfs-static/scraper"
	"github.com/travelguide-gtfs/internal/gtfs-static/snapshot"
)

// Summary describes one pipeline run.
type Summary struct {
	RunID      string
	SourceURL  string
	OutputPath string
	Stops      int
	Routes     int
	Stats      snapshot.Stats
	Skipped    bool
	Duration   time.Duration
}

// Fields flattens the summary for log alerts.
func (s *Summary) Fields() map[string]interface{} {
	fields := map[string]interface{}{
		"run_id":   s.RunID,
		"output":   s.OutputPath,
		"duration": s.Duration.Round(time.Millisecond).String(),
	}
	if s.Skipped {
		fields["skipped"] = true
		return fields
	}
	fields["source_url"] = s.SourceURL
	fields["stops"] = s.Stops
	fields["routes"] = s.Routes
	return fields
}

// Pipeline turns the configured feed selection into a snapshot file:
// locate, fetch, parse, join and write.
type Pipeline struct {
	cfg     *config.Config
	catalog *locator.Catalog
	now     func() time.Time
	logger  logger.Logger
}

// New loads the operator catalog named by cfg, or the built-in one.
func New(cfg *config.Config, logger logger.Logger) (*Pipeline, error) {
	var (
		catalog *locator.Catalog
		err     error
	)
	if cfg.Feed.CatalogFile != "" {
		catalog, err = locator.LoadCatalog(cfg.Feed.CatalogFile)
	} else {
		catalog, err = locator.DefaultCatalog()
	}
	if err != nil {
		return nil, fmt.Errorf("loading operator catalog: %w", err)
	}

	return &Pipeline{
		cfg:     cfg,
		catalog: catalog,
		now:     time.Now,
		logger:  logger,
	}, nil
}

// WithClock replaces the clock used for generatedAt and staleness checks.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	return p
}

// Run executes one refresh. Nothing is written unless every stage
// succeeds, so a failed run leaves the previous snapshot in place.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	runID := uuid.NewString()
	log := p.logger.With("run_id", runID)
	started := time.Now()

	summary := &Summary{RunID: runID, OutputPath: p.cfg.Snapshot.OutputFile}

	if maxAge := p.cfg.Schedule.MaxAge; maxAge > 0 && !snapshot.IsStale(summary.OutputPath, maxAge, p.now()) {
		log.Info("Snapshot is still fresh, skipping refresh",
			"path", summary.OutputPath,
			"max_age", maxAge)
		summary.Skipped = true
		summary.Duration = time.Since(started)
		return summary, nil
	}

	if _, err := maintenance.New(log).CleanupTempFiles(summary.OutputPath, maintenance.DefaultTempRetention, p.now()); err != nil {
		log.Warn("Temp file cleanup failed", "error", err)
	}

	sel := locator.Selection{
		URL:      p.cfg.Feed.URL,
		Agency:   p.cfg.Feed.Agency,
		Category: p.cfg.Feed.Category,
	}
	candidates := locator.New(p.catalog).Candidates(sel)
	log.Info("Resolved GTFS feed candidates",
		"count", len(candidates),
		"url_override", sel.URL != "",
		"agency", sel.Agency,
		"category", sel.Category)

	downloader := scraper.NewHTTPDownloader(p.cfg.Feed.RequestTimeout, log)
	archive, err := scraper.NewFetcher(downloader, log).Fetch(ctx, candidates)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w", err)
	}

	feed, err := parser.New(log).ParseArchive(ctx, archive.Data)
	if err != nil {
		return nil, fmt.Errorf("parsing feed from %s: %w", archive.SourceURL, err)
	}

	result := snapshot.NewBuilder(p.cfg.Snapshot.MaxStops, log).Build(feed)

	snap, err := snapshot.NewWriter(summary.OutputPath, log).WithClock(p.now).Write(result, archive.SourceURL)
	if err != nil {
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}

	summary.SourceURL = snap.SourceURL
	summary.Stops = len(snap.Stops)
	summary.Routes = len(snap.Routes)
	summary.Stats = result.Stats
	summary.Duration = time.Since(started)

	log.Info("GTFS snapshot refreshed",
		"source_url", summary.SourceURL,
		"stops", summary.Stops,
		"routes", summary.Routes,
		"output", summary.OutputPath,
		"duration", summary.Duration)

	return summary, nil
}
