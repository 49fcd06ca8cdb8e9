package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/ratelimit"
)

// DefaultMaxRetries bounds how often a throttled request is retried.
const DefaultMaxRetries = 3

// RequestSpec describes one logical HTTP request.
type RequestSpec struct {
	Method  string
	URL     string
	Query   url.Values
	Headers http.Header
}

// Executor issues one logical request: it admits through the shared rate
// limiter, sends via the transport collaborator, and retries throttled
// responses with exponential backoff. All other failures surface to the
// caller classified by Kind.
type Executor struct {
	client     HTTPClient
	limiter    *ratelimit.Limiter
	backoff    ratelimit.BackoffPolicy
	clock      ratelimit.Clock
	maxRetries int
	logger     *logrus.Logger
}

// NewExecutor wires an executor. A nil clock defaults to the system clock;
// negative maxRetries defaults to DefaultMaxRetries.
func NewExecutor(client HTTPClient, limiter *ratelimit.Limiter, backoff ratelimit.BackoffPolicy, clock ratelimit.Clock, maxRetries int, logger *logrus.Logger) *Executor {
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	if maxRetries < 0 {
		maxRetries = DefaultMaxRetries
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Executor{
		client:     client,
		limiter:    limiter,
		backoff:    backoff,
		clock:      clock,
		maxRetries: maxRetries,
		logger:     logger,
	}
}

// Execute runs the request and decodes a 2xx body into out (skipped when out
// is nil). Retries are a bounded loop, not recursion, so the attempt count
// is directly observable in tests.
func (e *Executor) Execute(ctx context.Context, spec RequestSpec, out interface{}) error {
	for attempt := 0; ; attempt++ {
		waited, err := e.limiter.Admit(ctx)
		if err != nil {
			return err
		}
		if waited > 0 {
			e.logger.WithFields(logrus.Fields{
				"url":    spec.URL,
				"waited": waited.String(),
			}).Debug("Rate limit window full, waited before sending")
		}

		status, body, err := e.client.Send(ctx, spec.Method, spec.URL, spec.Query, spec.Headers)
		if err != nil {
			return &Error{Kind: KindNetwork, Message: "transport failure", Err: err}
		}

		switch {
		case status == http.StatusTooManyRequests:
			if attempt >= e.maxRetries {
				return &Error{
					Kind:       KindRateLimitExhausted,
					StatusCode: status,
					Message:    fmt.Sprintf("still throttled after %d attempts", attempt+1),
				}
			}
			wait := e.backoff.Wait(attempt)
			e.logger.WithFields(logrus.Fields{
				"url":     spec.URL,
				"attempt": attempt + 1,
				"wait":    wait.String(),
			}).Warn("Upstream throttled request, backing off")
			if err := e.clock.Sleep(ctx, wait); err != nil {
				return err
			}
			continue

		case status == http.StatusNotFound:
			return &Error{Kind: KindNotFound, StatusCode: status, Message: "no data for request"}

		case status < 200 || status >= 300:
			return &Error{Kind: KindHTTP, StatusCode: status, Message: snippet(body)}
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return &Error{Kind: KindDecode, StatusCode: status, Message: "malformed response body", Err: err}
		}
		return nil
	}
}

// snippet trims a response body for error messages.
func snippet(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}
