package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func server(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", Options{Timeout: 5 * time.Second})
}

func TestClient_Success(t *testing.T) {
	var got Request
	c := server(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status": "success", "message": "Analysis complete", "data": {"modules": ["os"], "functions": [{"id": "main"}]}}`))
	})

	p, err := c.Analyze(context.Background(), Request{ProjectDir: "/src/app", Entrypoint: "main.py"})
	require.NoError(t, err)
	assert.Equal(t, Request{ProjectDir: "/src/app", Entrypoint: "main.py"}, got)
	assert.Equal(t, []any{"os"}, p.Modules)
	assert.Len(t, p.Functions, 1)
	assert.NotEmpty(t, p.Fingerprint)
}

func TestClient_BarePayload(t *testing.T) {
	c := server(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"variables": [{"id": "x"}]}`))
	})

	p, err := c.Analyze(context.Background(), Request{ProjectDir: "/src"})
	require.NoError(t, err)
	assert.Len(t, p.Variables, 1)
}

func TestClient_NeedsEntrypoint(t *testing.T) {
	c := server(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status": "needs_entrypoint", "message": "Please select an entry point file", "options": ["main.py", "cli.py"]}`))
	})

	_, err := c.Analyze(context.Background(), Request{ProjectDir: "/src"})
	require.ErrorIs(t, err, ErrNeedsEntrypoint)

	var ne *NeedsEntrypointError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, []string{"main.py", "cli.py"}, ne.Options)
}

func TestClient_Failures(t *testing.T) {
	t.Run("non-2xx is a transport error", func(t *testing.T) {
		c := server(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error": "No project directory specified"}`))
		})
		_, err := c.Analyze(context.Background(), Request{ProjectDir: "/src"})

		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Equal(t, http.StatusBadRequest, te.StatusCode)
		assert.Equal(t, "No project directory specified", te.Message)
	})

	t.Run("status error", func(t *testing.T) {
		c := server(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status": "error", "message": "Analysis failed: boom"}`))
		})
		_, err := c.Analyze(context.Background(), Request{ProjectDir: "/src"})
		assert.ErrorIs(t, err, ErrAnalysisFailed)
	})

	t.Run("unreachable service", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		_, err := NewClient(url, Options{}).Analyze(context.Background(), Request{ProjectDir: "/src"})
		var te *TransportError
		require.True(t, errors.As(err, &te))
		assert.Error(t, te.Unwrap())
	})

	t.Run("invalid JSON body", func(t *testing.T) {
		c := server(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status": `))
		})
		_, err := c.Analyze(context.Background(), Request{ProjectDir: "/src"})
		assert.Error(t, err)
	})

	t.Run("project dir required", func(t *testing.T) {
		var calls atomic.Int32
		c := server(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
		_, err := c.Analyze(context.Background(), Request{})
		assert.Error(t, err)
		assert.Zero(t, calls.Load())
	})
}

func TestClient_NoRetry(t *testing.T) {
	var calls atomic.Int32
	c := server(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.Analyze(context.Background(), Request{ProjectDir: "/src"})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CollapsesConcurrentRequests(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := server(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`{"status": "success", "data": {}}`))
	})

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = c.Analyze(context.Background(), Request{ProjectDir: "/same"})
		}()
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, int32(1), calls.Load())
}

func TestClient_CallerCancellation(t *testing.T) {
	release := make(chan struct{})
	c := server(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Analyze(ctx, Request{ProjectDir: "/slow"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
