package models

import (
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day format used as the join key across sources.
const DateLayout = "2006-01-02"

// StockBar is the canonical daily price record for one ticker.
// Both Polygon response shapes (aggregate and daily open-close) normalize
// into this type.
type StockBar struct {
	Ticker string          `json:"ticker" db:"ticker"`
	Date   string          `json:"date" db:"trade_date"`
	Open   decimal.Decimal `json:"open" db:"open"`
	High   decimal.Decimal `json:"high" db:"high"`
	Low    decimal.Decimal `json:"low" db:"low"`
	Close  decimal.Decimal `json:"close" db:"close"`
	Volume decimal.Decimal `json:"volume" db:"volume"`
}

// ExchangeRate is the canonical FX record for one currency pair on one day.
type ExchangeRate struct {
	Date         string          `json:"date" db:"rate_date"`
	FromCurrency string          `json:"from_currency" db:"from_currency"`
	ToCurrency   string          `json:"to_currency" db:"to_currency"`
	Rate         decimal.Decimal `json:"rate" db:"rate"`
}

// CombinedRecord is one row of the joined analytical dataset: a stock bar
// matched with an exchange rate on the same date, with prices converted
// into the target currency.
type CombinedRecord struct {
	Ticker         string          `json:"ticker"`
	Date           string          `json:"date"`
	Open           decimal.Decimal `json:"open"`
	High           decimal.Decimal `json:"high"`
	Low            decimal.Decimal `json:"low"`
	Close          decimal.Decimal `json:"close"`
	Volume         decimal.Decimal `json:"volume"`
	FromCurrency   string          `json:"from_currency"`
	ToCurrency     string          `json:"to_currency"`
	Rate           decimal.Decimal `json:"rate"`
	OpenConverted  decimal.Decimal `json:"open_converted"`
	HighConverted  decimal.Decimal `json:"high_converted"`
	LowConverted   decimal.Decimal `json:"low_converted"`
	CloseConverted decimal.Decimal `json:"close_converted"`
}

// LoadStats summarizes one warehouse load.
type LoadStats struct {
	Stocks     int64 `json:"stocks"`
	Currencies int64 `json:"currencies"`
	PriceRows  int64 `json:"price_rows"`
	RateRows   int64 `json:"rate_rows"`
}
