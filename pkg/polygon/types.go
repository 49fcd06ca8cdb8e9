package polygon

// MarketStatusResponse mirrors /v1/marketstatus/now.
type MarketStatusResponse struct {
	Market     string            `json:"market"`
	ServerTime string            `json:"serverTime"`
	Exchanges  map[string]string `json:"exchanges"`
	Currencies map[string]string `json:"currencies"`
}

// TickerDetailsResponse mirrors /v3/reference/tickers/{ticker}.
type TickerDetailsResponse struct {
	Status  string        `json:"status"`
	Results TickerDetails `json:"results"`
}

// TickerDetails carries reference data for one ticker.
type TickerDetails struct {
	Ticker          string `json:"ticker"`
	Name            string `json:"name"`
	Market          string `json:"market"`
	Locale          string `json:"locale"`
	PrimaryExchange string `json:"primary_exchange"`
	CurrencyName    string `json:"currency_name"`
}

// previousCloseResponse mirrors /v2/aggs/ticker/{ticker}/prev. Aggregate
// endpoints abbreviate bar fields to single letters.
type previousCloseResponse struct {
	Ticker       string         `json:"ticker"`
	ResultsCount int            `json:"resultsCount"`
	Results      []aggregateBar `json:"results"`
}

type aggregateBar struct {
	Open      float64 `json:"o"`
	High      float64 `json:"h"`
	Low       float64 `json:"l"`
	Close     float64 `json:"c"`
	Volume    float64 `json:"v"`
	Timestamp int64   `json:"t"`
}

// dailyOpenCloseResponse mirrors /v1/open-close/{ticker}/{date}, which
// spells the fields out in full.
type dailyOpenCloseResponse struct {
	Status     string  `json:"status"`
	From       string  `json:"from"`
	Symbol     string  `json:"symbol"`
	Open       float64 `json:"open"`
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Close      float64 `json:"close"`
	Volume     float64 `json:"volume"`
	AfterHours float64 `json:"afterHours"`
	PreMarket  float64 `json:"preMarket"`
}
