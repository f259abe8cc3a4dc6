package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRobotsAgentEnforcesDisallow(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("User-agent: *\nDisallow: /private/\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agent := NewRobotsAgent("corpus-test/1.0", time.Second, nil)

	allowed, err := agent.Allowed(context.Background(), srv.URL+"/articles/1")
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, err = agent.Allowed(context.Background(), srv.URL+"/private/data")
	require.NoError(t, err)
	require.False(t, allowed)
}

func TestRobotsAgentCachesPerOrigin(t *testing.T) {
	t.Parallel()

	var hits atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte("User-agent: *\nAllow: /\n"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	agent := NewRobotsAgent("corpus-test/1.0", time.Second, nil)
	for i := 0; i < 5; i++ {
		allowed, err := agent.Allowed(context.Background(), srv.URL+"/page")
		require.NoError(t, err)
		require.True(t, allowed)
	}
	require.Equal(t, int64(1), hits.Load())
}

func TestRobotsAgentMissingFileAllowsAll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	agent := NewRobotsAgent("corpus-test/1.0", time.Second, nil)
	allowed, err := agent.Allowed(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRobotsAgentUnreachableOriginAllowsAll(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close()

	agent := NewRobotsAgent("corpus-test/1.0", time.Second, nil)
	allowed, err := agent.Allowed(context.Background(), srv.URL+"/anything")
	require.NoError(t, err)
	require.True(t, allowed)
}

func TestRobotsAgentRejectsInvalidURL(t *testing.T) {
	t.Parallel()

	agent := NewRobotsAgent("corpus-test/1.0", time.Second, nil)
	_, err := agent.Allowed(context.Background(), "://not-a-url")
	require.Error(t, err)
}
