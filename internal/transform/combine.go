// Package transform joins the acquired datasets into the combined records
// the warehouse and output layers consume.
package transform

import (
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/models"
)

// Combine inner-joins stock bars with exchange rates on date. Each bar
// produces one record per rate published on its date, with the price columns
// converted into the rate's quote currency. Bars on dates with no published
// rate, and rates on dates with no bars, are dropped. Output order is
// deterministic: ticker, then date, then quote currency.
func Combine(stocks map[string][]models.StockBar, rates []models.ExchangeRate, logger *logrus.Logger) []models.CombinedRecord {
	if logger == nil {
		logger = logrus.New()
	}

	byDate := make(map[string][]models.ExchangeRate)
	for _, rate := range rates {
		byDate[rate.Date] = append(byDate[rate.Date], rate)
	}

	var combined []models.CombinedRecord
	matchedBars := 0
	totalBars := 0
	for _, bars := range stocks {
		for _, bar := range bars {
			totalBars++
			dayRates := byDate[bar.Date]
			if len(dayRates) == 0 {
				continue
			}
			matchedBars++
			for _, rate := range dayRates {
				combined = append(combined, convert(bar, rate))
			}
		}
	}

	sort.Slice(combined, func(i, j int) bool {
		a, b := combined[i], combined[j]
		if a.Ticker != b.Ticker {
			return a.Ticker < b.Ticker
		}
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		return a.ToCurrency < b.ToCurrency
	})

	logger.WithFields(logrus.Fields{
		"bars":    totalBars,
		"matched": matchedBars,
		"records": len(combined),
	}).Info("Combined stock and currency data")
	return combined
}

func convert(bar models.StockBar, rate models.ExchangeRate) models.CombinedRecord {
	return models.CombinedRecord{
		Ticker:          bar.Ticker,
		Date:            bar.Date,
		Open:            bar.Open,
		High:            bar.High,
		Low:             bar.Low,
		Close:           bar.Close,
		Volume:          bar.Volume,
		FromCurrency:   rate.FromCurrency,
		ToCurrency:     rate.ToCurrency,
		Rate:           rate.Rate,
		OpenConverted:  bar.Open.Mul(rate.Rate),
		HighConverted:  bar.High.Mul(rate.Rate),
		LowConverted:   bar.Low.Mul(rate.Rate),
		CloseConverted: bar.Close.Mul(rate.Rate),
	}
}
