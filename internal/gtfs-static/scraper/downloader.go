package scraper

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/travelguide-gtfs/internal/common/logger"
)

const userAgent = "gtfs-snapshot/1.0"

// maxPrealloc bounds how much of an advertised Content-Length is reserved
// up front. Larger bodies grow the buffer as they arrive.
const maxPrealloc = 64 << 20

// StatusError is returned when a feed endpoint answers with a non-2xx status.
type StatusError struct {
	URL        string
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status from %s: %s", e.URL, e.Status)
}

type HTTPDownloader struct {
	client  *http.Client
	timeout time.Duration
	logger  logger.Logger
}

// NewHTTPDownloader bounds every download by timeout.
func NewHTTPDownloader(timeout time.Duration, logger logger.Logger) *HTTPDownloader {
	return &HTTPDownloader{
		client:  &http.Client{},
		timeout: timeout,
		logger:  logger,
	}
}

func (d *HTTPDownloader) Download(ctx context.Context, url string) ([]byte, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	var buf bytes.Buffer
	buf.Grow(preallocSize(resp.ContentLength))
	if _, err := d.copyWithProgress(&buf, resp.Body, resp.ContentLength); err != nil {
		return nil, fmt.Errorf("reading body: %w", err)
	}

	return buf.Bytes(), nil
}

func preallocSize(contentLength int64) int {
	if contentLength <= 0 {
		return 0
	}
	if contentLength > maxPrealloc {
		return maxPrealloc
	}
	return int(contentLength)
}

func (d *HTTPDownloader) copyWithProgress(dst io.Writer, src io.Reader, totalSize int64) (int64, error) {
	buf := make([]byte, 32*1024) // 32KB buffer
	var written int64
	lastLog := time.Now()

	for {
		nr, err := src.Read(buf)
		if nr > 0 {
			nw, err := dst.Write(buf[0:nr])
			if err != nil {
				return written, err
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
			written += int64(nw)

			// Log progress every 5 seconds
			if time.Since(lastLog) > 5*time.Second && totalSize > 0 {
				progress := float64(written) / float64(totalSize) * 100
				d.logger.Debug("Download progress",
					"progress_percent", fmt.Sprintf("%.1f", progress),
					"bytes_downloaded", written,
					"total_bytes", totalSize)
				lastLog = time.Now()
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return written, err
		}
	}

	return written, nil
}
