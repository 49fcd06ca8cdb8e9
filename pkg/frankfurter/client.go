package frankfurter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/cache"
	"github.com/stockpipe/stockpipe/internal/config"
	"github.com/stockpipe/stockpipe/internal/fetch"
	"github.com/stockpipe/stockpipe/internal/models"
	"github.com/stockpipe/stockpipe/internal/ratelimit"
)

// Client fetches foreign exchange reference rates from the Frankfurter API
// through the shared rate-limited executor. Frankfurter itself is unkeyed,
// but it still consumes the pipeline's request budget.
type Client struct {
	executor *fetch.Executor
	cache    *cache.ResponseCache
	baseURL  string
	base     string
	clock    ratelimit.Clock
	logger   *logrus.Logger
}

// NewClient creates a Frankfurter client. The cache may be nil.
func NewClient(cfg config.FrankfurterConfig, executor *fetch.Executor, responseCache *cache.ResponseCache, clock ratelimit.Clock, logger *logrus.Logger) *Client {
	if clock == nil {
		clock = ratelimit.SystemClock()
	}
	if logger == nil {
		logger = logrus.New()
	}

	base := strings.ToUpper(cfg.BaseCurrency)
	if base == "" {
		base = "USD"
	}

	return &Client{
		executor: executor,
		cache:    responseCache,
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		base:     base,
		clock:    clock,
		logger:   logger,
	}
}

// LatestRates returns the most recent published rates for the base currency.
func (c *Client) LatestRates(ctx context.Context) ([]models.ExchangeRate, error) {
	return c.fetchRates(ctx, c.baseURL+"/v1/latest", cache.Key("frankfurter", "latest", c.base))
}

// HistoricalRates returns the rates published on date (YYYY-MM-DD).
// Frankfurter answers weekend and holiday dates with the closest preceding
// trading day, so the response date may differ from the requested one.
func (c *Client) HistoricalRates(ctx context.Context, date string) ([]models.ExchangeRate, error) {
	return c.fetchRates(ctx, fmt.Sprintf("%s/v1/%s", c.baseURL, date), cache.Key("frankfurter", date, c.base))
}

// CurrencyData fetches the latest rates plus one historical snapshot per
// earlier day in the range, fanned out across the orchestrator. Duplicate
// publication dates are collapsed and the result is sorted by date then
// currency. Failed days appear in the failures map keyed by request date.
func (c *Client) CurrencyData(ctx context.Context, days, maxConcurrency int) ([]models.ExchangeRate, map[string]error) {
	items := []fetch.Item[[]models.ExchangeRate]{{
		Key: "latest",
		Run: func(ctx context.Context) ([]models.ExchangeRate, error) {
			return c.LatestRates(ctx)
		},
	}}

	end := c.clock.Now().AddDate(0, 0, -1)
	for i := 1; i < days; i++ {
		date := end.AddDate(0, 0, -i).Format(models.DateLayout)
		items = append(items, fetch.Item[[]models.ExchangeRate]{
			Key: date,
			Run: func(ctx context.Context) ([]models.ExchangeRate, error) {
				return c.HistoricalRates(ctx, date)
			},
		})
	}

	results := fetch.All(ctx, c.logger, items, maxConcurrency)

	failures := make(map[string]error)
	seen := make(map[string]bool)
	var rates []models.ExchangeRate
	for key, result := range results {
		if result.Err != nil {
			failures[key] = result.Err
			continue
		}
		for _, rate := range result.Value {
			dedup := rate.Date + ":" + rate.ToCurrency
			if seen[dedup] {
				continue
			}
			seen[dedup] = true
			rates = append(rates, rate)
		}
	}

	sort.Slice(rates, func(i, j int) bool {
		if rates[i].Date != rates[j].Date {
			return rates[i].Date < rates[j].Date
		}
		return rates[i].ToCurrency < rates[j].ToCurrency
	})

	c.logger.WithFields(logrus.Fields{
		"base":   c.base,
		"rates":  len(rates),
		"failed": len(failures),
	}).Info("Fetched exchange rates")
	return rates, failures
}

func (c *Client) fetchRates(ctx context.Context, rawURL, key string) ([]models.ExchangeRate, error) {
	var response ratesResponse
	spec := fetch.RequestSpec{
		Method: http.MethodGet,
		URL:    rawURL,
		Query:  url.Values{"base": {c.base}},
	}
	if err := c.fetchJSON(ctx, key, spec, &response); err != nil {
		return nil, err
	}
	return ratesFromResponse(response), nil
}

// ratesFromResponse flattens the rates map into canonical records, ordered
// by currency code so repeated normalization yields identical output.
func ratesFromResponse(resp ratesResponse) []models.ExchangeRate {
	codes := make([]string, 0, len(resp.Rates))
	for code := range resp.Rates {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	rates := make([]models.ExchangeRate, 0, len(codes))
	for _, code := range codes {
		rates = append(rates, models.ExchangeRate{
			Date:         resp.Date,
			FromCurrency: resp.Base,
			ToCurrency:   code,
			Rate:         decimal.NewFromFloat(resp.Rates[code]),
		})
	}
	return rates
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
