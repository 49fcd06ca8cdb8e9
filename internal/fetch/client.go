package fetch

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"
)

const userAgent = "stockpipe/1.0"

// HTTPClient is the transport collaborator. It is an interface so tests can
// inject deterministic 429/timeout/malformed-body behavior.
type HTTPClient interface {
	Send(ctx context.Context, method, rawURL string, query url.Values, headers http.Header) (int, []byte, error)
}

type httpClient struct {
	client *http.Client
}

// NewHTTPClient returns an HTTPClient backed by net/http with the given
// per-request timeout.
func NewHTTPClient(timeout time.Duration) HTTPClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &httpClient{
		client: &http.Client{Timeout: timeout},
	}
}

func (c *httpClient) Send(ctx context.Context, method, rawURL string, query url.Values, headers http.Header) (int, []byte, error) {
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, nil, err
	}

	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, err
	}

	return resp.StatusCode, body, nil
}
