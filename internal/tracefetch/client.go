// Package tracefetch retrieves external execution traces for a chat
// session. A missing trace (404) is an expected outcome, not an error
// condition; callers fall back to the locally available tool-call list.
package tracefetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/stella-ai/tracegraph/internal/metrics"
	"github.com/stella-ai/tracegraph/pkg/schema"
)

// DefaultTimeout bounds one trace fetch end to end.
const DefaultTimeout = 15 * time.Second

// ErrNoTrace reports that the tracing service has no record for the
// session. Expected for untraced runs.
var ErrNoTrace = schema.NewError(schema.ErrCodeNotFound, "no trace available for session")

// Client fetches traces over HTTP. Concurrent fetches for the same session
// share one in-flight request.
type Client struct {
	baseURL string
	http    *http.Client
	group   singleflight.Group
	logger  *slog.Logger
}

// NewClient creates a Client for the given tracing-service base URL.
// A zero timeout falls back to DefaultTimeout; a nil logger to slog.Default.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Fetch retrieves the trace for a session. It returns ErrNoTrace on 404 and
// a FETCH_ERROR or TIMEOUT_ERROR for transient failures; in both cases the
// caller is expected to fall back to legacy invocation data rather than
// retry indefinitely.
func (c *Client) Fetch(ctx context.Context, sessionID string) (*schema.Trace, error) {
	v, err, shared := c.group.Do(sessionID, func() (any, error) {
		return c.fetch(ctx, sessionID)
	})
	if shared {
		c.logger.Debug("trace fetch deduplicated", "session_id", sessionID)
	}
	if err != nil {
		return nil, err
	}
	return v.(*schema.Trace), nil
}

func (c *Client) fetch(ctx context.Context, sessionID string) (*schema.Trace, error) {
	start := time.Now()

	url := fmt.Sprintf("%s/langsmith-trace/%s", c.baseURL, sessionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeFetch, "build trace request").WithCause(err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isTimeout(err) {
			metrics.TraceFetch("timeout", time.Since(start))
			return nil, schema.NewErrorf(schema.ErrCodeTimeout,
				"trace fetch for %s timed out", sessionID).WithCause(err)
		}
		metrics.TraceFetch("error", time.Since(start))
		return nil, schema.NewErrorf(schema.ErrCodeFetch,
			"trace fetch for %s failed", sessionID).WithCause(err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		metrics.TraceFetch("not_found", time.Since(start))
		return nil, ErrNoTrace
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		metrics.TraceFetch("error", time.Since(start))
		return nil, schema.NewErrorf(schema.ErrCodeFetch,
			"tracing service returned status %d for %s", resp.StatusCode, sessionID)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		metrics.TraceFetch("error", time.Since(start))
		return nil, schema.NewError(schema.ErrCodeFetch, "read trace response").WithCause(err)
	}

	var trace schema.Trace
	if err := json.Unmarshal(body, &trace); err != nil {
		metrics.TraceFetch("error", time.Since(start))
		return nil, schema.NewError(schema.ErrCodeFetch, "decode trace response").WithCause(err)
	}

	metrics.TraceFetch("ok", time.Since(start))
	return &trace, nil
}

func isTimeout(err error) bool {
	var t interface{ Timeout() bool }
	return errors.As(err, &t) && t.Timeout()
}
