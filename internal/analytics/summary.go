// Package analytics derives per-ticker trend summaries from the acquired
// price history.
package analytics

import (
	"sort"

	"github.com/cinar/indicator/v2/helper"
	"github.com/cinar/indicator/v2/trend"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/models"
)

// TickerSummary condenses one ticker's history into headline figures.
type TickerSummary struct {
	Ticker        string          `json:"ticker"`
	Bars          int             `json:"bars"`
	LatestDate    string          `json:"latest_date"`
	LatestClose   decimal.Decimal `json:"latest_close"`
	SMA           float64         `json:"sma"`
	EMA           float64         `json:"ema"`
	ChangePercent float64         `json:"change_percent"`
}

// Summarize computes a moving-average summary per ticker over closing
// prices. The indicator period is clamped to the available history, so short
// ranges still produce a summary. Tickers with no bars are skipped and the
// result is sorted by ticker.
func Summarize(stocks map[string][]models.StockBar, period int, logger *logrus.Logger) []TickerSummary {
	if logger == nil {
		logger = logrus.New()
	}
	if period < 1 {
		period = 1
	}

	summaries := make([]TickerSummary, 0, len(stocks))
	for ticker, bars := range stocks {
		if len(bars) == 0 {
			continue
		}

		ordered := make([]models.StockBar, len(bars))
		copy(ordered, bars)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date < ordered[j].Date })

		closes := make([]float64, len(ordered))
		for i, bar := range ordered {
			closes[i] = bar.Close.InexactFloat64()
		}

		p := period
		if p > len(closes) {
			p = len(closes)
		}

		smaIndicator := trend.NewSmaWithPeriod[float64](p)
		sma := helper.ChanToSlice(smaIndicator.Compute(helper.SliceToChan(closes)))

		emaIndicator := trend.NewEmaWithPeriod[float64](p)
		ema := helper.ChanToSlice(emaIndicator.Compute(helper.SliceToChan(closes)))

		latest := ordered[len(ordered)-1]
		summary := TickerSummary{
			Ticker:      ticker,
			Bars:        len(ordered),
			LatestDate:  latest.Date,
			LatestClose: latest.Close,
		}
		if len(sma) > 0 {
			summary.SMA = sma[len(sma)-1]
		}
		if len(ema) > 0 {
			summary.EMA = ema[len(ema)-1]
		}
		if first := closes[0]; first != 0 {
			summary.ChangePercent = (closes[len(closes)-1] - first) / first * 100
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Ticker < summaries[j].Ticker })

	logger.WithField("tickers", len(summaries)).Info("Computed trend summaries")
	return summaries
}
