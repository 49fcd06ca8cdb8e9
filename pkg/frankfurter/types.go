package frankfurter

// ratesResponse mirrors both /latest and /{date}. The quoted currencies
// arrive as a map keyed by currency code.
type ratesResponse struct {
	Amount float64            `json:"amount"`
	Base   string             `json:"base"`
	Date   string             `json:"date"`
	Rates  map[string]float64 `json:"rates"`
}
