package output

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpipe/stockpipe/internal/analytics"
	"github.com/stockpipe/stockpipe/internal/config"
	"github.com/stockpipe/stockpipe/internal/models"
)

func newTestWriter(t *testing.T, sampleRows int) *Writer {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	cfg := config.OutputConfig{Dir: t.TempDir(), SampleRows: sampleRows}
	return NewWriter(cfg, logger)
}

func record(ticker, date string) models.CombinedRecord {
	return models.CombinedRecord{
		Ticker:         ticker,
		Date:           date,
		Open:           decimal.NewFromFloat(179.5),
		High:           decimal.NewFromFloat(181.0),
		Low:            decimal.NewFromFloat(178.8),
		Close:          decimal.NewFromFloat(180.4),
		Volume:         decimal.NewFromInt(900000),
		FromCurrency:   "USD",
		ToCurrency:     "EUR",
		Rate:           decimal.NewFromFloat(0.92),
		CloseConverted: decimal.NewFromFloat(180.4).Mul(decimal.NewFromFloat(0.92)),
	}
}

func TestWriteSampleCSV(t *testing.T) {
	writer := newTestWriter(t, 20)

	path, err := writer.WriteSampleCSV([]models.CombinedRecord{record("AAPL", "2024-02-28")})
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, "AAPL", rows[1][0])
	assert.Equal(t, "2024-02-28", rows[1][1])
	assert.Equal(t, "0.92", rows[1][9])
}

func TestWriteSampleCSVTruncatesToSampleRows(t *testing.T) {
	writer := newTestWriter(t, 2)

	records := []models.CombinedRecord{
		record("AAPL", "2024-02-26"),
		record("AAPL", "2024-02-27"),
		record("AAPL", "2024-02-28"),
	}
	path, err := writer.WriteSampleCSV(records)
	require.NoError(t, err)

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	rows, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	assert.Len(t, rows, 3) // header plus two samples
}

func TestWriteSchemaSQL(t *testing.T) {
	writer := newTestWriter(t, 20)

	path, err := writer.WriteSchemaSQL()
	require.NoError(t, err)

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	sql := string(payload)
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS dim_stock")
	assert.Contains(t, sql, "CREATE TABLE IF NOT EXISTS fact_exchange_rate")
	assert.Contains(t, sql, "vw_stock_price_any_currency")
	assert.True(t, strings.HasSuffix(strings.TrimSpace(sql), ";"))
}

func TestWriteSummaryJSON(t *testing.T) {
	writer := newTestWriter(t, 20)

	summaries := []analytics.TickerSummary{{
		Ticker:      "AAPL",
		Bars:        4,
		LatestDate:  "2024-02-29",
		LatestClose: decimal.NewFromFloat(180.4),
		SMA:         179.9,
	}}
	path, err := writer.WriteSummaryJSON(summaries)
	require.NoError(t, err)

	payload, err := os.ReadFile(path)
	require.NoError(t, err)

	var decoded []analytics.TickerSummary
	require.NoError(t, json.Unmarshal(payload, &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, "AAPL", decoded[0].Ticker)
	assert.InDelta(t, 179.9, decoded[0].SMA, 0.0001)
}
