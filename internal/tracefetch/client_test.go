package tracefetch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

func TestFetchDecodesTrace(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/langsmith-trace/session_42", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		json.NewEncoder(w).Encode(map[string]any{
			"thread_id":      "session_42",
			"execution_path": []string{"agent", "execute_tool"},
			"tool_calls": []map[string]any{
				{"name": "search_ticker", "arguments": map[string]any{"ticker": "AAPL"}},
			},
			"status": "completed",
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)
	trace, err := c.Fetch(context.Background(), "session_42")
	require.NoError(t, err)

	assert.Equal(t, "session_42", trace.ThreadID)
	assert.Equal(t, []string{"agent", "execute_tool"}, trace.ExecutionPath)
	require.Len(t, trace.ToolCalls, 1)
	assert.Equal(t, "search_ticker", trace.ToolCalls[0]["name"])
}

func TestFetchNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)
	_, err := c.Fetch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNoTrace)
}

func TestFetchServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)
	_, err := c.Fetch(context.Background(), "s")
	require.Error(t, err)

	var gerr *schema.GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, schema.ErrCodeFetch, gerr.Code)
}

func TestFetchMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)
	_, err := c.Fetch(context.Background(), "s")
	require.Error(t, err)

	var gerr *schema.GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, schema.ErrCodeFetch, gerr.Code)
}

func TestFetchTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 20*time.Millisecond, nil)
	_, err := c.Fetch(context.Background(), "slow")
	require.Error(t, err)

	var gerr *schema.GraphError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, schema.ErrCodeTimeout, gerr.Code)
}

func TestFetchDeduplicatesConcurrentRequests(t *testing.T) {
	var hits atomic.Int64
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		<-release
		json.NewEncoder(w).Encode(map[string]any{"thread_id": "s"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 0, nil)

	const callers = 8
	var wg sync.WaitGroup
	results := make([]*schema.Trace, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Fetch(context.Background(), "s")
		}(i)
	}

	// Let all callers pile up behind the single in-flight request.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int64(1), hits.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.NotNil(t, results[i])
		assert.Equal(t, "s", results[i].ThreadID)
	}
}
