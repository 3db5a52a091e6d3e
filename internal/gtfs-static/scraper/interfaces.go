package scraper

import (
	"context"
)

// Downloader fetches one URL. Non-2xx responses are reported as
// *StatusError; anything else is a transport failure.
type Downloader interface {
	Download(ctx context.Context, url string) ([]byte, error)
}

// Archive is a downloaded feed together with the URL that served it.
type Archive struct {
	Data      []byte
	SourceURL string
}
