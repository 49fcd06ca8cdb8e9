package analytics

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpipe/stockpipe/internal/models"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func closesFor(ticker string, closes map[string]float64) []models.StockBar {
	bars := make([]models.StockBar, 0, len(closes))
	for date, close := range closes {
		bars = append(bars, models.StockBar{
			Ticker: ticker,
			Date:   date,
			Close:  decimal.NewFromFloat(close),
		})
	}
	return bars
}

func TestSummarizeComputesMovingAverages(t *testing.T) {
	stocks := map[string][]models.StockBar{
		"AAPL": closesFor("AAPL", map[string]float64{
			"2024-02-26": 100,
			"2024-02-27": 110,
			"2024-02-28": 120,
			"2024-02-29": 130,
		}),
	}

	summaries := Summarize(stocks, 2, quietLogger())

	require.Len(t, summaries, 1)
	summary := summaries[0]
	assert.Equal(t, "AAPL", summary.Ticker)
	assert.Equal(t, 4, summary.Bars)
	assert.Equal(t, "2024-02-29", summary.LatestDate)
	assert.True(t, summary.LatestClose.Equal(decimal.NewFromInt(130)))
	assert.InDelta(t, 125.0, summary.SMA, 0.0001)
	assert.InDelta(t, 30.0, summary.ChangePercent, 0.0001)
}

func TestSummarizeClampsPeriodToHistory(t *testing.T) {
	stocks := map[string][]models.StockBar{
		"MSFT": closesFor("MSFT", map[string]float64{"2024-02-29": 410}),
	}

	summaries := Summarize(stocks, 20, quietLogger())

	require.Len(t, summaries, 1)
	assert.InDelta(t, 410.0, summaries[0].SMA, 0.0001)
	assert.InDelta(t, 410.0, summaries[0].EMA, 0.0001)
}

func TestSummarizeSkipsEmptyTickersAndSorts(t *testing.T) {
	stocks := map[string][]models.StockBar{
		"MSFT": closesFor("MSFT", map[string]float64{"2024-02-29": 410}),
		"AAPL": closesFor("AAPL", map[string]float64{"2024-02-29": 180}),
		"BADX": nil,
	}

	summaries := Summarize(stocks, 2, quietLogger())

	require.Len(t, summaries, 2)
	assert.Equal(t, "AAPL", summaries[0].Ticker)
	assert.Equal(t, "MSFT", summaries[1].Ticker)
}

func TestSummarizeUsesChronologicalOrder(t *testing.T) {
	// Bars arrive newest first; change percent must still read oldest to
	// newest.
	stocks := map[string][]models.StockBar{
		"AAPL": {
			{Ticker: "AAPL", Date: "2024-02-29", Close: decimal.NewFromInt(200)},
			{Ticker: "AAPL", Date: "2024-02-27", Close: decimal.NewFromInt(100)},
		},
	}

	summaries := Summarize(stocks, 1, quietLogger())

	require.Len(t, summaries, 1)
	assert.InDelta(t, 100.0, summaries[0].ChangePercent, 0.0001)
	assert.Equal(t, "2024-02-29", summaries[0].LatestDate)
}
