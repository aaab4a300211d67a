package api

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jsirianni/gamemetrics/internal/collector"
	"github.com/jsirianni/gamemetrics/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// replyCollector parses a fixed reply the way the Factorio collector does.
type replyCollector struct {
	reply string
	err   error
	calls int
}

func (c *replyCollector) Metrics(_ context.Context) (model.Snapshot, error) {
	c.calls++
	if c.err != nil {
		return model.Snapshot{}, c.err
	}
	count, err := collector.ParseFactorioPlayers(c.reply)
	if err != nil {
		return model.Snapshot{}, &collector.MetricsCollectError{Game: "factorio", Raw: c.reply, Err: err}
	}
	return model.NewSnapshot(count), nil
}

func TestScrapeServer_ServeHTTP(t *testing.T) {
	c := &replyCollector{reply: "Online player (3):"}
	server := httptest.NewServer(NewScrapeServer("", c, nil))
	defer server.Close()

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{name: "get root", method: http.MethodGet, path: "/"},
		{name: "get metrics", method: http.MethodGet, path: "/metrics"},
		{name: "post anything", method: http.MethodPost, path: "/anything/else"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req, err := http.NewRequest(tc.method, server.URL+tc.path, nil)
			require.NoError(t, err)
			resp, err := server.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, ContentType, resp.Header.Get("Content-Type"))
			body, err := io.ReadAll(resp.Body)
			require.NoError(t, err)
			assert.Equal(t, "# TYPE players_online gauge\nplayers_online 3", string(body))
		})
	}
	assert.Equal(t, len(tests), c.calls, "every request collects")
}

func TestScrapeServer_CollectFailureStopsServer(t *testing.T) {
	c := &replyCollector{reply: "Unknown command: players"}
	s := NewScrapeServer("127.0.0.1:0", c, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background(), ln)
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get("http://" + ln.Addr().String() + "/")
	if err == nil {
		resp.Body.Close()
		t.Fatal("expected the request to be aborted")
	}

	select {
	case err := <-done:
		require.ErrorIs(t, err, ErrCollect)
		var collectErr *collector.MetricsCollectError
		require.ErrorAs(t, err, &collectErr)
		assert.True(t, strings.Contains(err.Error(), "Unknown command: players"))
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after failed collection")
	}
}

func TestScrapeServer_TransportFailureStopsServer(t *testing.T) {
	transportErr := errors.New("connection reset by peer")
	c := &replyCollector{err: transportErr}
	s := NewScrapeServer("127.0.0.1:0", c, nil)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- s.Serve(context.Background(), ln)
	}()

	client := &http.Client{Timeout: 5 * time.Second}
	if resp, err := client.Get("http://" + ln.Addr().String() + "/"); err == nil {
		resp.Body.Close()
	}

	select {
	case err := <-done:
		assert.ErrorIs(t, err, transportErr)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after failed collection")
	}
}

func TestScrapeServer_ContextCancel(t *testing.T) {
	s := NewScrapeServer("127.0.0.1:0", &replyCollector{reply: "(1)"}, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- s.Serve(ctx, ln)
	}()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop after cancel")
	}
}

func TestNewTelemetryServer(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "ok")
	})
	srv := NewTelemetryServer(":0", h)

	rec := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, TelemetryPath, nil))
	assert.Equal(t, "ok", rec.Body.String())

	rec = httptest.NewRecorder()
	srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
