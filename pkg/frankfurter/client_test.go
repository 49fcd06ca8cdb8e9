package frankfurter

import (
	"context"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpipe/stockpipe/internal/config"
	"github.com/stockpipe/stockpipe/internal/fetch"
	"github.com/stockpipe/stockpipe/internal/ratelimit"
)

type fixedClock struct {
	now time.Time
}

func (c fixedClock) Now() time.Time { return c.now }

func (c fixedClock) Sleep(ctx context.Context, d time.Duration) error { return ctx.Err() }

type routeClient struct {
	mu     sync.Mutex
	routes map[string]routeResponse
}

type routeResponse struct {
	status int
	body   string
}

func newRouteClient() *routeClient {
	return &routeClient{routes: make(map[string]routeResponse)}
}

func (r *routeClient) route(rawURL string, status int, body string) {
	r.routes[rawURL] = routeResponse{status: status, body: body}
}

func (r *routeClient) Send(ctx context.Context, method, rawURL string, query url.Values, headers http.Header) (int, []byte, error) {
	r.mu.Lock()
	resp, ok := r.routes[rawURL]
	r.mu.Unlock()

	if !ok {
		return 404, []byte(`{"message":"not found"}`), nil
	}
	return resp.status, []byte(resp.body), nil
}

const testBaseURL = "http://frankfurter.test"

func newTestClient(t *testing.T, transport fetch.HTTPClient) *Client {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	clock := fixedClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	limiter, err := ratelimit.NewLimiter(1000, 1000, clock)
	require.NoError(t, err)

	backoff := ratelimit.BackoffPolicy{Uniform: func() float64 { return 0 }}
	executor := fetch.NewExecutor(transport, limiter, backoff, clock, 3, logger)

	cfg := config.FrankfurterConfig{BaseURL: testBaseURL, BaseCurrency: "usd"}
	return NewClient(cfg, executor, nil, clock, logger)
}

func TestLatestRatesSortedByCurrency(t *testing.T) {
	rc := newRouteClient()
	rc.route(testBaseURL+"/v1/latest", 200,
		`{"amount":1.0,"base":"USD","date":"2024-02-29","rates":{"JPY":150.02,"EUR":0.9234,"GBP":0.7891}}`)
	client := newTestClient(t, rc)

	rates, err := client.LatestRates(context.Background())
	require.NoError(t, err)
	require.Len(t, rates, 3)

	assert.Equal(t, "EUR", rates[0].ToCurrency)
	assert.Equal(t, "GBP", rates[1].ToCurrency)
	assert.Equal(t, "JPY", rates[2].ToCurrency)

	eur := rates[0]
	assert.Equal(t, "2024-02-29", eur.Date)
	assert.Equal(t, "USD", eur.FromCurrency)
	assert.True(t, eur.Rate.Equal(decimal.NewFromFloat(0.9234)), "rate %s", eur.Rate)
}

func TestHistoricalRatesUsesResponseDate(t *testing.T) {
	// A Saturday request answered with Friday's publication.
	rc := newRouteClient()
	rc.route(testBaseURL+"/v1/2024-02-24", 200,
		`{"amount":1.0,"base":"USD","date":"2024-02-23","rates":{"EUR":0.9210}}`)
	client := newTestClient(t, rc)

	rates, err := client.HistoricalRates(context.Background(), "2024-02-24")
	require.NoError(t, err)
	require.Len(t, rates, 1)
	assert.Equal(t, "2024-02-23", rates[0].Date)
}

func TestCurrencyDataCollapsesDuplicateDates(t *testing.T) {
	// 2024-02-28 and 2024-02-27 both resolve to the 02-27 publication; the
	// duplicate EUR quote must appear once.
	rc := newRouteClient()
	rc.route(testBaseURL+"/v1/latest", 200,
		`{"amount":1.0,"base":"USD","date":"2024-02-29","rates":{"EUR":0.9234}}`)
	rc.route(testBaseURL+"/v1/2024-02-28", 200,
		`{"amount":1.0,"base":"USD","date":"2024-02-27","rates":{"EUR":0.9221}}`)
	rc.route(testBaseURL+"/v1/2024-02-27", 200,
		`{"amount":1.0,"base":"USD","date":"2024-02-27","rates":{"EUR":0.9221}}`)
	client := newTestClient(t, rc)

	rates, failures := client.CurrencyData(context.Background(), 3, 2)

	assert.Empty(t, failures)
	require.Len(t, rates, 2)
	assert.Equal(t, "2024-02-27", rates[0].Date)
	assert.Equal(t, "2024-02-29", rates[1].Date)
}

func TestCurrencyDataIsolatesFailedDays(t *testing.T) {
	rc := newRouteClient()
	rc.route(testBaseURL+"/v1/latest", 200,
		`{"amount":1.0,"base":"USD","date":"2024-02-29","rates":{"EUR":0.9234}}`)
	rc.route(testBaseURL+"/v1/2024-02-28", 500, `{"message":"boom"}`)
	client := newTestClient(t, rc)

	rates, failures := client.CurrencyData(context.Background(), 2, 2)

	require.Len(t, failures, 1)
	assert.Equal(t, fetch.KindHTTP, fetch.KindOf(failures["2024-02-28"]))
	require.Len(t, rates, 1)
	assert.Equal(t, "2024-02-29", rates[0].Date)
}

func TestRatesFromResponseIsDeterministic(t *testing.T) {
	resp := ratesResponse{
		Base: "USD",
		Date: "2024-02-29",
		Rates: map[string]float64{
			"SEK": 10.33, "EUR": 0.9234, "CHF": 0.8812, "NOK": 10.55,
		},
	}

	first := ratesFromResponse(resp)
	second := ratesFromResponse(resp)
	assert.Equal(t, first, second)

	codes := make([]string, len(first))
	for i, rate := range first {
		codes[i] = rate.ToCurrency
	}
	assert.Equal(t, []string{"CHF", "EUR", "NOK", "SEK"}, codes)
}
