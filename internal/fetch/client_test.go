package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"corpuscrawler/internal/crawl"
)

func TestClientFetchReturnsBodyAndMetadata(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "corpus-test/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html>hello</html>"))
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{UserAgent: "corpus-test/1.0"}, systemClock{})
	resp, err := client.Fetch(context.Background(), crawl.FetchRequest{URL: srv.URL, Attempt: 1})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "text/html; charset=utf-8", resp.ContentType)
	require.Equal(t, []byte("<html>hello</html>"), resp.Body)
	require.GreaterOrEqual(t, resp.Duration, time.Duration(0))
}

func TestClientFetchReturnsStatusWithoutError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client := NewClient(ClientConfig{}, systemClock{})
	resp, err := client.Fetch(context.Background(), crawl.FetchRequest{URL: srv.URL, Attempt: 1})
	require.NoError(t, err)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestClientFetchReportsTransportError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // nothing is listening anymore

	client := NewClient(ClientConfig{Timeout: time.Second}, systemClock{})
	_, err := client.Fetch(context.Background(), crawl.FetchRequest{URL: srv.URL, Attempt: 1})
	require.Error(t, err)
}

func TestClientFetchFollowsRedirects(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("landed"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := NewClient(ClientConfig{}, systemClock{})
	resp, err := client.Fetch(context.Background(), crawl.FetchRequest{URL: srv.URL + "/", Attempt: 1})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, []byte("landed"), resp.Body)
}
