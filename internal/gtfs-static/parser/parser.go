package parser

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/klauspost/compress/zip"

	"github.com/travelguide-gtfs/internal/common/logger"
	"github.com/travelguide-gtfs/pkg/gtfs-static/models"
)

const (
	StopsFile     = "stops.txt"
	RoutesFile    = "routes.txt"
	TripsFile     = "trips.txt"
	StopTimesFile = "stop_times.txt"
)

// RequiredFiles are the archive members a snapshot cannot be built without.
var RequiredFiles = []string{StopsFile, RoutesFile, TripsFile, StopTimesFile}

// ErrMissingTable is returned when a required member is absent.
var ErrMissingTable = errors.New("required GTFS table missing from archive")

type Parser struct {
	logger logger.Logger
}

func New(logger logger.Logger) *Parser {
	return &Parser{logger: logger}
}

// ParseArchive reads the four required tables from an in-memory zip.
func (p *Parser) ParseArchive(ctx context.Context, data []byte) (*models.Feed, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("opening zip archive: %w", err)
	}

	p.logger.Info("Parsing GTFS archive", "files", len(reader.File), "size_bytes", len(data))

	members, err := p.locateMembers(reader)
	if err != nil {
		return nil, err
	}

	feed := &models.Feed{}
	tables := []struct {
		name string
		out  interface{}
	}{
		{StopsFile, &feed.Stops},
		{RoutesFile, &feed.Routes},
		{TripsFile, &feed.Trips},
		{StopTimesFile, &feed.StopTimes},
	}

	for _, table := range tables {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := p.parseFile(members[table.name], table.name, table.out); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", table.name, err)
		}
	}

	p.logger.Info("GTFS parsing completed",
		"stops", len(feed.Stops),
		"routes", len(feed.Routes),
		"trips", len(feed.Trips),
		"stop_times", len(feed.StopTimes))

	return feed, nil
}

// locateMembers finds every required file, first by exact name and then
// by base name so feeds zipped inside a folder still load.
func (p *Parser) locateMembers(reader *zip.Reader) (map[string]*zip.File, error) {
	exact := make(map[string]*zip.File)
	byBase := make(map[string]*zip.File)
	for _, file := range reader.File {
		if file.FileInfo().IsDir() {
			continue
		}
		exact[file.Name] = file
		base := strings.ToLower(path.Base(file.Name))
		if _, seen := byBase[base]; !seen {
			byBase[base] = file
		}
	}

	members := make(map[string]*zip.File, len(RequiredFiles))
	var missing []string
	for _, name := range RequiredFiles {
		if file, ok := exact[name]; ok {
			members[name] = file
			continue
		}
		if file, ok := byBase[name]; ok {
			p.logger.Debug("Using nested archive member", "file", name, "member", file.Name)
			members[name] = file
			continue
		}
		missing = append(missing, name)
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingTable, strings.Join(missing, ", "))
	}
	return members, nil
}

func (p *Parser) parseFile(file *zip.File, table string, out interface{}) error {
	p.logger.Debug("Parsing file", "name", file.Name, "size", file.UncompressedSize64)

	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer rc.Close()

	reader := newTolerantReader(rc, table, p.logger)
	if err := gocsv.UnmarshalCSV(reader, out); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			p.logger.Warn("GTFS table is empty", "name", table)
			return nil
		}
		return err
	}

	if reader.mismatched > 0 {
		p.logger.Warn("CSV rows did not match header width", "name", table, "rows", reader.mismatched)
	}
	p.logger.Info("File parsed", "name", table, "records", reader.rows)

	return nil
}
