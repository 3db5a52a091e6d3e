package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/travelguide-gtfs/internal/common/logger"
	"github.com/travelguide-gtfs/pkg/gtfs-static/models"
)

// TimestampLayout is ISO-8601 in UTC with millisecond precision.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

type Writer struct {
	path   string
	now    func() time.Time
	logger logger.Logger
}

func NewWriter(path string, logger logger.Logger) *Writer {
	return &Writer{path: path, now: time.Now, logger: logger}
}

// WithClock replaces the clock used for generatedAt.
func (w *Writer) WithClock(now func() time.Time) *Writer {
	w.now = now
	return w
}

func (w *Writer) Path() string {
	return w.path
}

// Write serializes the result and replaces the snapshot file. The file
// is written to a temp sibling first so readers never see a partial
// document.
func (w *Writer) Write(result *Result, sourceURL string) (*models.Snapshot, error) {
	snap := &models.Snapshot{
		GeneratedAt: w.now().UTC().Format(TimestampLayout),
		SourceURL:   sourceURL,
		Stops:       result.Stops,
		Routes:      result.Routes,
	}
	if snap.Stops == nil {
		snap.Stops = []models.Stop{}
	}
	if snap.Routes == nil {
		snap.Routes = []models.Route{}
	}

	data, err := Encode(snap)
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}

	dir := filepath.Dir(w.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, filepath.Base(w.path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	tempPath := tempFile.Name()
	defer os.Remove(tempPath)

	if _, err := tempFile.Write(data); err != nil {
		tempFile.Close()
		return nil, fmt.Errorf("writing snapshot: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return nil, fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tempPath, 0644); err != nil {
		return nil, fmt.Errorf("setting snapshot permissions: %w", err)
	}

	if err := os.Rename(tempPath, w.path); err != nil {
		return nil, fmt.Errorf("moving snapshot to destination: %w", err)
	}

	w.logger.Info("Snapshot written",
		"path", w.path,
		"stops", len(snap.Stops),
		"routes", len(snap.Routes),
		"size_bytes", len(data))

	return snap, nil
}

// Encode renders a snapshot as two-space indented JSON without HTML
// escaping, ending in a newline.
func Encode(snap *models.Snapshot) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load reads a previously written snapshot.
func Load(path string) (*models.Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var snap models.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", path, err)
	}
	return &snap, nil
}

// IsStale reports whether the snapshot at path is missing, unreadable or
// older than maxAge. A non-positive maxAge always reports stale.
func IsStale(path string, maxAge time.Duration, now time.Time) bool {
	if maxAge <= 0 {
		return true
	}
	snap, err := Load(path)
	if err != nil {
		return true
	}
	generatedAt, err := time.Parse(time.RFC3339, snap.GeneratedAt)
	if err != nil {
		return true
	}
	return now.Sub(generatedAt) > maxAge
}
