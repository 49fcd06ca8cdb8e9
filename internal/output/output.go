// Package output writes run artifacts to disk: a sample of the combined
// dataset, the warehouse DDL, and the trend summaries.
package output

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/stockpipe/stockpipe/internal/analytics"
	"github.com/stockpipe/stockpipe/internal/config"
	"github.com/stockpipe/stockpipe/internal/models"
	"github.com/stockpipe/stockpipe/internal/warehouse"
)

var csvHeader = []string{
	"ticker", "date", "open", "high", "low", "close", "volume",
	"from_currency", "to_currency", "rate",
	"open_converted", "high_converted", "low_converted", "close_converted",
}

// Writer places artifacts under one directory, creating it on first use.
type Writer struct {
	dir        string
	sampleRows int
	logger     *logrus.Logger
}

func NewWriter(cfg config.OutputConfig, logger *logrus.Logger) *Writer {
	if logger == nil {
		logger = logrus.New()
	}
	return &Writer{dir: cfg.Dir, sampleRows: cfg.SampleRows, logger: logger}
}

// WriteSampleCSV writes up to the configured number of combined records and
// returns the file path.
func (w *Writer) WriteSampleCSV(records []models.CombinedRecord) (string, error) {
	path, file, err := w.create("combined_sample.csv")
	if err != nil {
		return "", err
	}
	defer file.Close()

	if w.sampleRows > 0 && len(records) > w.sampleRows {
		records = records[:w.sampleRows]
	}

	cw := csv.NewWriter(file)
	if err := cw.Write(csvHeader); err != nil {
		return "", fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, record := range records {
		row := []string{
			record.Ticker, record.Date,
			record.Open.String(), record.High.String(), record.Low.String(),
			record.Close.String(), record.Volume.String(),
			record.FromCurrency, record.ToCurrency, record.Rate.String(),
			record.OpenConverted.String(), record.HighConverted.String(),
			record.LowConverted.String(), record.CloseConverted.String(),
		}
		if err := cw.Write(row); err != nil {
			return "", fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return "", fmt.Errorf("failed to flush csv: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"path": path,
		"rows": len(records),
	}).Info("Wrote combined data sample")
	return path, nil
}

// WriteSchemaSQL dumps the warehouse DDL as one executable script.
func (w *Writer) WriteSchemaSQL() (string, error) {
	path, file, err := w.create("schema.sql")
	if err != nil {
		return "", err
	}
	defer file.Close()

	var sb strings.Builder
	for _, stmt := range warehouse.SchemaStatements() {
		sb.WriteString(stmt)
		sb.WriteString(";\n\n")
	}
	if _, err := file.WriteString(sb.String()); err != nil {
		return "", fmt.Errorf("failed to write schema: %w", err)
	}

	w.logger.WithField("path", path).Info("Wrote warehouse schema")
	return path, nil
}

// WriteSummaryJSON writes the per-ticker trend summaries.
func (w *Writer) WriteSummaryJSON(summaries []analytics.TickerSummary) (string, error) {
	path, file, err := w.create("summary.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(summaries); err != nil {
		return "", fmt.Errorf("failed to encode summaries: %w", err)
	}

	w.logger.WithFields(logrus.Fields{
		"path":    path,
		"tickers": len(summaries),
	}).Info("Wrote trend summaries")
	return path, nil
}

func (w *Writer) create(name string) (string, *os.File, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", nil, fmt.Errorf("failed to create output dir: %w", err)
	}
	path := filepath.Join(w.dir, name)
	file, err := os.Create(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to create %s: %w", name, err)
	}
	return path, file, nil
}
