package http

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"background-tasks/internal/domain"
	"background-tasks/internal/worker"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorker(cfg Config) *CallWorker {
	return NewCallWorker(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func execute(t *testing.T, w *CallWorker, order *CallOrder) error {
	t.Helper()
	reg := worker.NewRegistry()
	require.NoError(t, Register(reg, w))
	scope, err := reg.NewScope(context.Background())
	require.NoError(t, err)
	defer scope.Close()
	return order.ExecuteWith(context.Background(), scope)
}

func TestCallWorker_Success(t *testing.T) {
	var gotMethod, gotBody, gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotHeader = r.Header.Get("X-Test")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	order, err := NewCallOrder("post", srv.URL, `{"a":1}`, map[string]string{"X-Test": "yes"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, order.Method)

	require.NoError(t, execute(t, newTestWorker(Config{}), order))
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, `{"a":1}`, gotBody)
	assert.Equal(t, "yes", gotHeader)
}

func TestCallWorker_ShortBodyIsLogged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Declares more than it sends, so the server drops the connection.
		w.Header().Set("Content-Length", "64")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("partial"))
	}))
	defer srv.Close()

	var logs bytes.Buffer
	w := NewCallWorker(Config{}, slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug})))

	order, err := NewCallOrder("", srv.URL, "", nil)
	require.NoError(t, err)
	require.NoError(t, execute(t, w, order))
	assert.Contains(t, logs.String(), "failed to read http response body")
	assert.Contains(t, logs.String(), "unexpected EOF")
}

func TestCallWorker_ErrorStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	w := newTestWorker(Config{})

	order, err := NewCallOrder("", srv.URL+"/missing", "", nil)
	require.NoError(t, err)
	err = execute(t, w, order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "4xx")

	order, err = NewCallOrder(http.MethodGet, srv.URL+"/boom", "", nil)
	require.NoError(t, err)
	err = execute(t, w, order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5xx")

	// No retries.
	assert.Equal(t, int32(2), calls.Load())
}

func TestCallWorker_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	order, err := NewCallOrder(http.MethodGet, srv.URL, "", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = newTestWorker(Config{}).DoWork(ctx, order)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallWorker_RateLimitWaitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	w := newTestWorker(Config{RateLimit: 0.001, Burst: 1})
	order, err := NewCallOrder(http.MethodGet, srv.URL, "", nil)
	require.NoError(t, err)

	// The first call consumes the only token.
	require.NoError(t, w.DoWork(context.Background(), order))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = w.DoWork(ctx, order)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limiter wait")
}

func TestNewCallOrder_InvalidURL(t *testing.T) {
	for _, raw := range []string{"", "ftp://example.com", "not a url", "http://"} {
		_, err := NewCallOrder(http.MethodGet, raw, "", nil)
		assert.ErrorIs(t, err, domain.ErrInvalidArgument, raw)
	}
}
