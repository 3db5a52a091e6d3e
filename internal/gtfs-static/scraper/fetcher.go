package scraper

import (
	"context"
	"errors"
	"fmt"

	"github.com/travelguide-gtfs/internal/common/logger"
)

// ErrNoFeedAvailable means every candidate answered with a non-2xx status.
var ErrNoFeedAvailable = errors.New("unable to download GTFS feed from the available endpoints")

const remediation = "Set GTFS_AGENCY / GTFS_CATEGORY per https://api.data.gov.my/gtfs-static, " +
	"or provide GTFS_URL=\"https://example.com/feed.zip\" (or --url) before running gtfs-snapshot"

// Fetcher walks the candidate list in order and keeps the first feed
// that downloads.
type Fetcher struct {
	downloader Downloader
	logger     logger.Logger
}

func NewFetcher(downloader Downloader, logger logger.Logger) *Fetcher {
	return &Fetcher{downloader: downloader, logger: logger}
}

// Fetch returns the first candidate served with a 2xx status. HTTP status
// failures move on to the next candidate; transport failures are returned
// as is.
func (f *Fetcher) Fetch(ctx context.Context, candidates []string) (*Archive, error) {
	for i, url := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		f.logger.Info("Attempting GTFS download", "url", url, "attempt", i+1, "candidates", len(candidates))

		data, err := f.downloader.Download(ctx, url)
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) {
				f.logger.Warn("Unable to download GTFS feed",
					"url", url,
					"status_code", statusErr.StatusCode,
					"status", statusErr.Status)
				continue
			}
			return nil, fmt.Errorf("downloading %s: %w", url, err)
		}

		f.logger.Info("Downloaded GTFS feed", "url", url, "size_bytes", len(data))
		return &Archive{Data: data, SourceURL: url}, nil
	}

	return nil, fmt.Errorf("%w (tried %d): %s", ErrNoFeedAvailable, len(candidates), remediation)
}
