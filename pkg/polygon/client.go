package polygon

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/cache"
	"github.com/stockpipe/stockpipe/internal/config"
	"github.com/stockpipe/stockpipe/internal/fetch"
	"github.com/stockpipe/stockpipe/internal/models"
	"github.com/stockpipe/stockpipe/internal/ratelimit"
)

// Client fetches daily equity bars from the Polygon REST API through the
// shared rate-limited executor.
type Client struct {
	executor *fetch.Executor
	cache    *cache.ResponseCache
	baseURL  string
	apiKey   string
	clock    ratelimit.Clock
	logger   *logrus.Logger

	mu    sync.Mutex
	names map[string]string
}

// NewClient creates a Polygon client. The cache may be nil.
func NewClient(cfg config.PolygonConfig, executor *fetch.Executor, responseCache *cache.ResponseCache, clock ratelimit.Clock, logger *logrus.Logger) *Client {
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Client{
		executor: executor,
		cache:    responseCache,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		clock:    clock,
		logger:   logger,
		names:    make(map[string]string),
	}
}

// MarketStatus returns the current market status.
func (c *Client) MarketStatus(ctx context.Context) (*MarketStatusResponse, error) {
	var response MarketStatusResponse
	spec := fetch.RequestSpec{
		Method: http.MethodGet,
		URL:    c.baseURL + "/v1/marketstatus/now",
		Query:  c.query(nil),
	}
	if err := c.executor.Execute(ctx, spec, &response); err != nil {
		return nil, err
	}
	return &response, nil
}

// TickerDetails returns reference data for one ticker.
func (c *Client) TickerDetails(ctx context.Context, ticker string) (*TickerDetails, error) {
	var response TickerDetailsResponse
	spec := fetch.RequestSpec{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v3/reference/tickers/%s", c.baseURL, ticker),
		Query:  c.query(nil),
	}
	key := cache.Key("polygon", "details", ticker)
	if err := c.fetchJSON(ctx, key, spec, &response); err != nil {
		return nil, err
	}
	return &response.Results, nil
}

// PreviousClose returns the previous trading day's bar for ticker, or nil
// when the upstream has no results.
func (c *Client) PreviousClose(ctx context.Context, ticker string) (*models.StockBar, error) {
	var response previousCloseResponse
	spec := fetch.RequestSpec{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v2/aggs/ticker/%s/prev", c.baseURL, ticker),
		Query:  c.query(nil),
	}
	key := cache.Key("polygon", "prev", ticker)
	if err := c.fetchJSON(ctx, key, spec, &response); err != nil {
		return nil, err
	}
	if len(response.Results) == 0 {
		return nil, nil
	}

	fallback := c.clock.Now().AddDate(0, 0, -2).Format(models.DateLayout)
	bar := barFromAggregate(ticker, fallback, response.Results[0])
	return &bar, nil
}

// DailyOpenClose returns the bar for ticker on date (YYYY-MM-DD), or nil
// when the market was closed that day (upstream 404).
func (c *Client) DailyOpenClose(ctx context.Context, ticker, date string) (*models.StockBar, error) {
	var response dailyOpenCloseResponse
	spec := fetch.RequestSpec{
		Method: http.MethodGet,
		URL:    fmt.Sprintf("%s/v1/open-close/%s/%s", c.baseURL, ticker, date),
		Query:  c.query(url.Values{"adjusted": {"true"}}),
	}
	key := cache.Key("polygon", "open-close", ticker, date)
	err := c.fetchJSON(ctx, key, spec, &response)
	if fetch.IsNotFound(err) {
		c.logger.WithFields(logrus.Fields{
			"ticker": ticker,
			"date":   date,
		}).Debug("No data for date, market closed")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	bar := barFromDaily(response)
	if bar.Ticker == "" {
		bar.Ticker = ticker
	}
	if bar.Date == "" {
		bar.Date = date
	}
	return &bar, nil
}

// StockData fetches up to days of daily bars per ticker, fanning tickers
// out across the orchestrator. The returned maps always cover every
// requested ticker: failed tickers appear with a nil slice in the data map
// and their error in the failures map.
func (c *Client) StockData(ctx context.Context, tickers []string, days, maxConcurrency int) (map[string][]models.StockBar, map[string]error) {
	if status, err := c.MarketStatus(ctx); err != nil {
		c.logger.WithError(err).Warn("Failed to fetch market status")
	} else {
		c.logger.WithField("market", status.Market).Info("Market status")
	}

	items := make([]fetch.Item[[]models.StockBar], len(tickers))
	for i, ticker := range tickers {
		ticker := ticker
		items[i] = fetch.Item[[]models.StockBar]{
			Key: ticker,
			Run: func(ctx context.Context) ([]models.StockBar, error) {
				return c.tickerHistory(ctx, ticker, days)
			},
		}
	}

	results := fetch.All(ctx, c.logger, items, maxConcurrency)

	data := make(map[string][]models.StockBar, len(tickers))
	failures := make(map[string]error)
	for ticker, result := range results {
		if result.Err != nil {
			failures[ticker] = result.Err
			data[ticker] = nil
			continue
		}
		data[ticker] = result.Value
	}
	return data, failures
}

// CompanyNames returns the ticker-to-name mapping collected from ticker
// details during StockData.
func (c *Client) CompanyNames() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make(map[string]string, len(c.names))
	for ticker, name := range c.names {
		names[ticker] = name
	}
	return names
}

// tickerHistory assembles one ticker's bars: the previous close plus the
// daily open-close for each earlier date in the range. A closed-market day
// is skipped; any other failure fails the whole ticker.
func (c *Client) tickerHistory(ctx context.Context, ticker string, days int) ([]models.StockBar, error) {
	if details, err := c.TickerDetails(ctx, ticker); err != nil {
		c.logger.WithError(err).WithField("ticker", ticker).Warn("Failed to fetch ticker details")
	} else {
		c.rememberName(ticker, details.Name)
	}

	var bars []models.StockBar

	prev, err := c.PreviousClose(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		bars = append(bars, *prev)
	}

	end := c.clock.Now().AddDate(0, 0, -1)
	for i := 2; i <= days; i++ {
		date := end.AddDate(0, 0, -i).Format(models.DateLayout)
		bar, err := c.DailyOpenClose(ctx, ticker, date)
		if err != nil {
			return nil, err
		}
		if bar == nil {
			continue
		}
		bars = append(bars, *bar)
	}

	c.logger.WithFields(logrus.Fields{
		"ticker": ticker,
		"bars":   len(bars),
	}).Info("Fetched ticker history")
	return bars, nil
}

// fetchJSON serves the request from the response cache when possible,
// otherwise executes it and caches the raw body.
func (c *Client) fetchJSON(ctx context.Context, key string, spec fetch.RequestSpec, out interface{}) error {
	if payload, ok := c.cache.Get(ctx, key); ok {
		if err := json.Unmarshal(payload, out); err == nil {
			return nil
		}
		c.logger.WithField("key", key).Warn("Discarding corrupt cache entry")
	}

	var raw json.RawMessage
	if err := c.executor.Execute(ctx, spec, &raw); err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &fetch.Error{Kind: fetch.KindDecode, Message: "malformed response body", Err: err}
	}

	c.cache.Set(ctx, key, raw)
	return nil
}

func (c *Client) query(extra url.Values) url.Values {
	q := url.Values{}
	q.Set("apiKey", c.apiKey)
	for key, values := range extra {
		for _, value := range values {
			q.Add(key, value)
		}
	}
	return q
}

func (c *Client) rememberName(ticker, name string) {
	if name == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.names[ticker] = name
}
