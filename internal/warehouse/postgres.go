// Package warehouse loads the acquired market data into a PostgreSQL star
// schema.
package warehouse

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/config"
	"github.com/stockpipe/stockpipe/internal/models"
)

// DB is the slice of pgxpool.Pool the loader needs. pgxmock satisfies it in
// tests.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Connect opens a pgx pool against the configured database and verifies it
// with a ping.
func Connect(ctx context.Context, cfg config.DatabaseConfig, logger *logrus.Logger) (*pgxpool.Pool, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Successfully connected to PostgreSQL")
	return pool, nil
}

// Loader writes dimensions and facts for one pipeline run.
type Loader struct {
	db     DB
	logger *logrus.Logger
}

func NewLoader(db DB, logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = logrus.New()
	}
	return &Loader{db: db, logger: logger}
}

// CreateSchema applies the DDL. Every statement is idempotent, so reruns are
// safe.
func (l *Loader) CreateSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := l.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema statement: %w", err)
		}
	}
	l.logger.WithField("statements", len(schemaStatements)).Info("Warehouse schema applied")
	return nil
}

// Load upserts the dimensions, then batch-inserts the facts. Fact rows that
// already exist are left untouched, so the reported row counts cover new
// rows only. names maps tickers to company names and may be incomplete.
func (l *Loader) Load(ctx context.Context, stocks map[string][]models.StockBar, rates []models.ExchangeRate, names map[string]string, baseCurrency string) (models.LoadStats, error) {
	var stats models.LoadStats

	stockIDs, err := l.upsertStocks(ctx, stocks, names)
	if err != nil {
		return stats, err
	}
	stats.Stocks = int64(len(stockIDs))

	currencyIDs, err := l.upsertCurrencies(ctx, rates, baseCurrency)
	if err != nil {
		return stats, err
	}
	stats.Currencies = int64(len(currencyIDs))

	stats.PriceRows, err = l.insertPrices(ctx, stocks, stockIDs)
	if err != nil {
		return stats, err
	}

	stats.RateRows, err = l.insertRates(ctx, rates, currencyIDs)
	if err != nil {
		return stats, err
	}

	l.logger.WithFields(logrus.Fields{
		"stocks":     stats.Stocks,
		"currencies": stats.Currencies,
		"price_rows": stats.PriceRows,
		"rate_rows":  stats.RateRows,
	}).Info("Warehouse load complete")
	return stats, nil
}

const upsertStockSQL = `INSERT INTO dim_stock (ticker, company_name)
	VALUES ($1, $2)
	ON CONFLICT (ticker) DO UPDATE
	SET company_name = COALESCE(EXCLUDED.company_name, dim_stock.company_name)
	RETURNING stock_id`

func (l *Loader) upsertStocks(ctx context.Context, stocks map[string][]models.StockBar, names map[string]string) (map[string]int, error) {
	tickers := make([]string, 0, len(stocks))
	for ticker, bars := range stocks {
		if len(bars) == 0 {
			continue
		}
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	ids := make(map[string]int, len(tickers))
	for _, ticker := range tickers {
		var name any
		if n := names[ticker]; n != "" {
			name = n
		}

		var id int
		if err := l.db.QueryRow(ctx, upsertStockSQL, ticker, name).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to upsert stock %s: %w", ticker, err)
		}
		ids[ticker] = id
	}
	return ids, nil
}

const upsertCurrencySQL = `INSERT INTO dim_currency (currency_code, is_base_currency)
	VALUES ($1, $2)
	ON CONFLICT (currency_code) DO UPDATE
	SET is_base_currency = EXCLUDED.is_base_currency
	RETURNING currency_id`

func (l *Loader) upsertCurrencies(ctx context.Context, rates []models.ExchangeRate, baseCurrency string) (map[string]int, error) {
	baseCurrency = strings.ToUpper(baseCurrency)

	set := map[string]bool{baseCurrency: true}
	for _, rate := range rates {
		set[strings.ToUpper(rate.FromCurrency)] = true
		set[strings.ToUpper(rate.ToCurrency)] = true
	}

	codes := make([]string, 0, len(set))
	for code := range set {
		if code == "" {
			continue
		}
		codes = append(codes, code)
	}
	sort.Strings(codes)

	ids := make(map[string]int, len(codes))
	for _, code := range codes {
		var id int
		if err := l.db.QueryRow(ctx, upsertCurrencySQL, code, code == baseCurrency).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to upsert currency %s: %w", code, err)
		}
		ids[code] = id
	}
	return ids, nil
}

const insertPriceSQL = `INSERT INTO fact_stock_price (trade_date, stock_id, open, high, low, close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (stock_id, trade_date) DO NOTHING`

func (l *Loader) insertPrices(ctx context.Context, stocks map[string][]models.StockBar, stockIDs map[string]int) (int64, error) {
	tickers := make([]string, 0, len(stockIDs))
	for ticker := range stockIDs {
		tickers = append(tickers, ticker)
	}
	sort.Strings(tickers)

	batch := &pgx.Batch{}
	for _, ticker := range tickers {
		id := stockIDs[ticker]
		for _, bar := range stocks[ticker] {
			batch.Queue(insertPriceSQL,
				bar.Date, id, bar.Open, bar.High, bar.Low, bar.Close, bar.Volume.IntPart())
		}
	}

	return l.sendBatch(ctx, batch, "fact_stock_price")
}

const insertRateSQL = `INSERT INTO fact_exchange_rate (rate_date, from_currency_id, to_currency_id, rate)
	VALUES ($1, $2, $3, $4)
	ON CONFLICT (rate_date, from_currency_id, to_currency_id) DO NOTHING`

func (l *Loader) insertRates(ctx context.Context, rates []models.ExchangeRate, currencyIDs map[string]int) (int64, error) {
	batch := &pgx.Batch{}
	for _, rate := range rates {
		fromID, ok := currencyIDs[strings.ToUpper(rate.FromCurrency)]
		if !ok {
			continue
		}
		toID, ok := currencyIDs[strings.ToUpper(rate.ToCurrency)]
		if !ok {
			continue
		}
		batch.Queue(insertRateSQL, rate.Date, fromID, toID, rate.Rate)
	}

	return l.sendBatch(ctx, batch, "fact_exchange_rate")
}

func (l *Loader) sendBatch(ctx context.Context, batch *pgx.Batch, table string) (int64, error) {
	if batch.Len() == 0 {
		return 0, nil
	}

	results := l.db.SendBatch(ctx, batch)
	defer results.Close()

	var rows int64
	for i := 0; i < batch.Len(); i++ {
		tag, err := results.Exec()
		if err != nil {
			return rows, fmt.Errorf("failed to insert into %s: %w", table, err)
		}
		rows += tag.RowsAffected()
	}
	return rows, nil
}
