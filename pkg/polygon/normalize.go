package polygon

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/stockpipe/stockpipe/internal/models"
)

// barFromAggregate maps the abbreviated o/h/l/c/v aggregate shape to the
// canonical record. The bar's own timestamp wins over fallbackDate when
// present. Missing numeric fields stay zero.
func barFromAggregate(ticker, fallbackDate string, bar aggregateBar) models.StockBar {
	date := fallbackDate
	if bar.Timestamp > 0 {
		date = time.UnixMilli(bar.Timestamp).UTC().Format(models.DateLayout)
	}

	return models.StockBar{
		Ticker: ticker,
		Date:   date,
		Open:   decimal.NewFromFloat(bar.Open),
		High:   decimal.NewFromFloat(bar.High),
		Low:    decimal.NewFromFloat(bar.Low),
		Close:  decimal.NewFromFloat(bar.Close),
		Volume: decimal.NewFromFloat(bar.Volume),
	}
}

// barFromDaily maps the spelled-out daily open-close shape to the canonical
// record.
func barFromDaily(resp dailyOpenCloseResponse) models.StockBar {
	return models.StockBar{
		Ticker: resp.Symbol,
		Date:   resp.From,
		Open:   decimal.NewFromFloat(resp.Open),
		High:   decimal.NewFromFloat(resp.High),
		Low:    decimal.NewFromFloat(resp.Low),
		Close:  decimal.NewFromFloat(resp.Close),
		Volume: decimal.NewFromFloat(resp.Volume),
	}
}
