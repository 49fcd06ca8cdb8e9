package transform

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

func bar(ticker, date string, close float64) models.StockBar {
	return models.StockBar{
		Ticker: ticker,
		Date:   date,
		Open:   decimal.NewFromFloat(close - 1),
		High:   decimal.NewFromFloat(close + 1),
		Low:    decimal.NewFromFloat(close - 2),
		Close:  decimal.NewFromFloat(close),
		Volume: decimal.NewFromInt(1000),
	}
}

func rate(date, to string, value float64) models.ExchangeRate {
	return models.ExchangeRate{
		Date:         date,
		FromCurrency: "USD",
		ToCurrency:   to,
		Rate:         decimal.NewFromFloat(value),
	}
}

func TestCombineInnerJoinsOnDate(t *testing.T) {
	stocks := map[string][]models.StockBar{
		"AAPL": {bar("AAPL", "2024-02-28", 180), bar("AAPL", "2024-02-27", 179)},
	}
	rates := []models.ExchangeRate{
		rate("2024-02-28", "EUR", 0.92),
		rate("2024-02-26", "EUR", 0.93), // no bar that day, dropped
	}

	combined := Combine(stocks, rates, quietLogger())

	require.Len(t, combined, 1)
	record := combined[0]
	assert.Equal(t, "AAPL", record.Ticker)
	assert.Equal(t, "2024-02-28", record.Date)
	assert.Equal(t, "EUR", record.ToCurrency)
	assert.True(t, record.CloseConverted.Equal(decimal.NewFromFloat(180).Mul(decimal.NewFromFloat(0.92))),
		"converted close %s", record.CloseConverted)
}

func TestCombineFansOutPerCurrency(t *testing.T) {
	stocks := map[string][]models.StockBar{
		"AAPL": {bar("AAPL", "2024-02-28", 180)},
	}
	rates := []models.ExchangeRate{
		rate("2024-02-28", "JPY", 150.02),
		rate("2024-02-28", "EUR", 0.92),
	}

	combined := Combine(stocks, rates, quietLogger())

	require.Len(t, combined, 2)
	assert.Equal(t, "EUR", combined[0].ToCurrency)
	assert.Equal(t, "JPY", combined[1].ToCurrency)
}

func TestCombineOrderIsDeterministic(t *testing.T) {
	stocks := map[string][]models.StockBar{
		"MSFT": {bar("MSFT", "2024-02-28", 410), bar("MSFT", "2024-02-27", 408)},
		"AAPL": {bar("AAPL", "2024-02-28", 180)},
	}
	rates := []models.ExchangeRate{
		rate("2024-02-27", "EUR", 0.921),
		rate("2024-02-28", "EUR", 0.92),
	}

	first := Combine(stocks, rates, quietLogger())
	second := Combine(stocks, rates, quietLogger())

	assert.Equal(t, first, second)
	require.Len(t, first, 3)
	assert.Equal(t, "AAPL", first[0].Ticker)
	assert.Equal(t, "2024-02-27", first[1].Date)
	assert.Equal(t, "2024-02-28", first[2].Date)
}

func TestCombineEmptyInputs(t *testing.T) {
	assert.Empty(t, Combine(nil, nil, quietLogger()))
	assert.Empty(t, Combine(map[string][]models.StockBar{"AAPL": nil}, nil, quietLogger()))
}
