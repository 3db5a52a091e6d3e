package scraper

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/travelguide-gtfs/internal/common/logger"
)

type feedServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits []string
}

func newFeedServer(t *testing.T) *feedServer {
	t.Helper()
	fs := &feedServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("/down", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/feed-a", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		w.Write([]byte("payload-a"))
	})
	mux.HandleFunc("/feed-b", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		w.Write([]byte("payload-b"))
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		fs.record(r)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})
	fs.Server = httptest.NewServer(mux)
	t.Cleanup(fs.Close)
	return fs
}

func (fs *feedServer) record(r *http.Request) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.hits = append(fs.hits, r.URL.Path)
}

func (fs *feedServer) requests() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.hits...)
}

func newTestFetcher(timeout time.Duration) *Fetcher {
	log := logger.Nop()
	return NewFetcher(NewHTTPDownloader(timeout, log), log)
}

func TestFetchFallsBackPastHTTPFailures(t *testing.T) {
	srv := newFeedServer(t)
	f := newTestFetcher(time.Minute)

	candidates := []string{srv.URL + "/down", srv.URL + "/missing", srv.URL + "/feed-a"}
	archive, err := f.Fetch(context.Background(), candidates)

	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/feed-a", archive.SourceURL)
	assert.Equal(t, []byte("payload-a"), archive.Data)
	assert.Equal(t, []string{"/down", "/missing", "/feed-a"}, srv.requests())
}

func TestFetchStopsAtFirstSuccess(t *testing.T) {
	srv := newFeedServer(t)
	f := newTestFetcher(time.Minute)

	archive, err := f.Fetch(context.Background(), []string{srv.URL + "/feed-a", srv.URL + "/feed-b"})

	require.NoError(t, err)
	assert.Equal(t, []byte("payload-a"), archive.Data)
	assert.Equal(t, []string{"/feed-a"}, srv.requests())
}

func TestFetchExhaustedReturnsGuidance(t *testing.T) {
	srv := newFeedServer(t)
	f := newTestFetcher(time.Minute)

	archive, err := f.Fetch(context.Background(), []string{srv.URL + "/down", srv.URL + "/missing"})

	assert.Nil(t, archive)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoFeedAvailable))
	assert.Contains(t, err.Error(), "GTFS_URL")
	assert.Contains(t, err.Error(), "GTFS_AGENCY")
}

func TestFetchEmptyCandidateList(t *testing.T) {
	_, err := newTestFetcher(time.Minute).Fetch(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoFeedAvailable)
}

func TestFetchTransportErrorPropagates(t *testing.T) {
	srv := newFeedServer(t)
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	f := newTestFetcher(time.Minute)
	_, err := f.Fetch(context.Background(), []string{deadURL + "/feed", srv.URL + "/feed-a"})

	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrNoFeedAvailable))
	assert.Contains(t, err.Error(), deadURL)
	assert.Empty(t, srv.requests(), "later candidates must not be tried after a transport error")
}

func TestFetchAttemptTimeout(t *testing.T) {
	srv := newFeedServer(t)
	f := newTestFetcher(50 * time.Millisecond)

	start := time.Now()
	_, err := f.Fetch(context.Background(), []string{srv.URL + "/slow", srv.URL + "/feed-a"})

	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestFetchCancelledContext(t *testing.T) {
	srv := newFeedServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestFetcher(time.Minute).Fetch(ctx, []string{srv.URL + "/feed-a"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, srv.requests())
}

func TestDownloaderStatusError(t *testing.T) {
	srv := newFeedServer(t)
	d := NewHTTPDownloader(time.Minute, logger.Nop())

	_, err := d.Download(context.Background(), srv.URL+"/down")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusServiceUnavailable, statusErr.StatusCode)
	assert.Equal(t, srv.URL+"/down", statusErr.URL)
}
