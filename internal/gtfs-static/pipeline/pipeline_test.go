package pipeline

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelguide-gtfs/internal/common/config"
	"github.com/travelguide-gtfs/internal/common/logger"
	"github.com/travelguide-gtfs/internal/gtfs-static/gtfstest"
	"github.com/travelguide-gtfs/internal/gtfs-static/parser"
	"github.com/travelguide-gtfs/internal/gtfs-static/scraper"
	"github.com/travelguide-gtfs/internal/gtfs-static/snapshot"
)

var clock = time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Feed: config.FeedConfig{RequestTimeout: 5 * time.Second},
		Snapshot: config.SnapshotConfig{
			MaxStops:   config.DefaultMaxStops,
			OutputFile: filepath.Join(t.TempDir(), "data", "gtfs-data.json"),
		},
		Logging: config.LoggingConfig{Level: "info"},
	}
}

type requestLog struct {
	mu   sync.Mutex
	uris []string
}

func (l *requestLog) add(uri string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.uris = append(l.uris, uri)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.uris...)
}

// feedServer serves the fixture at /gtfs/rail and 404 for everything else
// under /gtfs/.
func feedServer(t *testing.T) (*httptest.Server, *requestLog) {
	t.Helper()
	archive := gtfstest.Archive(t, gtfstest.Feed)
	requested := &requestLog{}

	mux := http.NewServeMux()
	mux.HandleFunc("/gtfs/", func(w http.ResponseWriter, r *http.Request) {
		requested.add(r.URL.RequestURI())
		if r.URL.Path == "/gtfs/rail" {
			w.Header().Set("Content-Type", "application/zip")
			w.Write(archive)
			return
		}
		http.NotFound(w, r)
	})
	mux.HandleFunc("/broken.zip", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not a zip"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, requested
}

func writeCatalog(t *testing.T, baseURL string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	body := "base_url: " + baseURL + "/gtfs\n" +
		"operators:\n" +
		"  - id: bus\n" +
		"    mode: bus\n" +
		"  - id: rail\n" +
		"    mode: rail\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func newPipeline(t *testing.T, cfg *config.Config) *Pipeline {
	t.Helper()
	p, err := New(cfg, logger.Nop())
	require.NoError(t, err)
	return p.WithClock(func() time.Time { return clock })
}

func TestRunWithExplicitURL(t *testing.T) {
	server, requested := feedServer(t)
	cfg := testConfig(t)
	cfg.Feed.URL = server.URL + "/gtfs/rail"
	cfg.Snapshot.MaxStops = 2

	summary, err := newPipeline(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, cfg.Feed.URL, summary.SourceURL)
	assert.Equal(t, 2, summary.Stops)
	assert.Equal(t, 6, summary.Routes)
	assert.Equal(t, 1, summary.Stats.TruncatedStops)
	assert.False(t, summary.Skipped)
	assert.Equal(t, []string{"/gtfs/rail"}, requested.all())

	snap, err := snapshot.Load(cfg.Snapshot.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-01T00:00:00.000Z", snap.GeneratedAt)
	assert.Equal(t, cfg.Feed.URL, snap.SourceURL)
	require.Len(t, snap.Stops, 2)
	assert.Equal(t, "C", snap.Stops[0].ID)
	assert.Equal(t, "A", snap.Stops[1].ID)
}

func TestRunSweepsCatalogRailFirst(t *testing.T) {
	server, requested := feedServer(t)
	cfg := testConfig(t)
	cfg.Feed.CatalogFile = writeCatalog(t, server.URL)

	summary, err := newPipeline(t, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, server.URL+"/gtfs/rail", summary.SourceURL)
	assert.Equal(t, []string{"/gtfs/rail"}, requested.all())
	assert.Equal(t, 3, summary.Stops)
}

func TestRunAgencyWithoutFeedFails(t *testing.T) {
	server, requested := feedServer(t)
	cfg := testConfig(t)
	cfg.Feed.CatalogFile = writeCatalog(t, server.URL)
	cfg.Feed.Agency = "bus"

	_, err := newPipeline(t, cfg).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, scraper.ErrNoFeedAvailable))
	assert.Equal(t, []string{"/gtfs/bus"}, requested.all())
}

func TestFailedRunLeavesExistingSnapshot(t *testing.T) {
	server, _ := feedServer(t)
	cfg := testConfig(t)
	cfg.Feed.URL = server.URL + "/gtfs/missing"

	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Snapshot.OutputFile), 0755))
	require.NoError(t, os.WriteFile(cfg.Snapshot.OutputFile, []byte(`{"previous":true}`), 0644))

	_, err := newPipeline(t, cfg).Run(context.Background())
	require.ErrorIs(t, err, scraper.ErrNoFeedAvailable)
	assert.Contains(t, err.Error(), "GTFS_URL")

	data, err := os.ReadFile(cfg.Snapshot.OutputFile)
	require.NoError(t, err)
	assert.Equal(t, `{"previous":true}`, string(data))
}

func TestFailedRunWritesNothing(t *testing.T) {
	server, _ := feedServer(t)
	cfg := testConfig(t)
	cfg.Feed.URL = server.URL + "/broken.zip"

	_, err := newPipeline(t, cfg).Run(context.Background())
	require.Error(t, err)
	assert.False(t, errors.Is(err, parser.ErrMissingTable))

	_, statErr := os.Stat(cfg.Snapshot.OutputFile)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRunSkipsFreshSnapshot(t *testing.T) {
	server, requested := feedServer(t)
	cfg := testConfig(t)
	cfg.Feed.URL = server.URL + "/gtfs/rail"
	cfg.Schedule.MaxAge = time.Hour

	p := newPipeline(t, cfg)
	first, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, first.Skipped)

	second, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, second.Skipped)
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.Len(t, requested.all(), 1)

	p.WithClock(func() time.Time { return clock.Add(2 * time.Hour) })
	third, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, third.Skipped)
	assert.Len(t, requested.all(), 2)
}

func TestRunRemovesLeftoverTempFiles(t *testing.T) {
	server, _ := feedServer(t)
	cfg := testConfig(t)
	cfg.Feed.URL = server.URL + "/gtfs/rail"
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Snapshot.OutputFile), 0755))

	// Ages are measured against the pipeline clock, not the wall clock.
	leftover := cfg.Snapshot.OutputFile + ".interrupted.tmp"
	require.NoError(t, os.WriteFile(leftover, []byte("partial"), 0644))
	old := clock.Add(-3 * time.Hour)
	require.NoError(t, os.Chtimes(leftover, old, old))

	recent := cfg.Snapshot.OutputFile + ".writing.tmp"
	require.NoError(t, os.WriteFile(recent, []byte("in flight"), 0644))
	young := clock.Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(recent, young, young))

	_, err := newPipeline(t, cfg).Run(context.Background())
	require.NoError(t, err)
	assert.NoFileExists(t, leftover)
	assert.FileExists(t, recent)
	assert.FileExists(t, cfg.Snapshot.OutputFile)
}

func TestNewRejectsMissingCatalogFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Feed.CatalogFile = filepath.Join(t.TempDir(), "nope.yaml")

	_, err := New(cfg, logger.Nop())
	assert.Error(t, err)
}

func TestSummaryFields(t *testing.T) {
	s := &Summary{RunID: "r", OutputPath: "out.json", SourceURL: "u", Stops: 3, Routes: 6}
	fields := s.Fields()
	assert.Equal(t, 3, fields["stops"])
	assert.Equal(t, "u", fields["source_url"])

	s.Skipped = true
	fields = s.Fields()
	assert.Equal(t, true, fields["skipped"])
	assert.NotContains(t, fields, "stops")
}
