package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/statement-categorizer/internal/models"
)

// CSVWriter writes statement records to CSV format.
type CSVWriter struct {
	IncludeHeader bool
	// CategoryNames maps category ids to display names. Ids without an
	// entry are written as is.
	CategoryNames map[string]string
}

// WriteToFile writes the statement to a CSV file at the given path.
func (w *CSVWriter) WriteToFile(path string, res *models.StatementResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, res)
}

// Write writes the statement in CSV format to the given writer.
func (w *CSVWriter) Write(out io.Writer, res *models.StatementResult) error {
	writer := csv.NewWriter(out)

	// Statement details as comment rows
	if w.IncludeHeader {
		meta := [][]string{
			{"# File", res.FileName},
			{"# Parsed At", res.ParsedAt.UTC().Format(time.RFC3339)},
			{"# Records", fmt.Sprint(res.Summary.Count)},
			{"# Total Out", formatAmount(res.Summary.TotalOut)},
			{"# Total In", formatAmount(res.Summary.TotalIn)},
			{"# Net", res.Summary.Net.StringFixed(2)},
		}
		for _, row := range meta {
			if err := writer.Write(row); err != nil {
				return fmt.Errorf("failed to write CSV metadata: %w", err)
			}
		}
	}

	header := []string{"Date", "Description", "Status", "Category", "Amount"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, rec := range res.Records {
		row := []string{
			rec.Date,
			rec.Description,
			rec.ToWire().Status,
			w.categoryName(rec.Category),
			formatAmount(rec.Amount),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

func (w *CSVWriter) categoryName(id string) string {
	if name, ok := w.CategoryNames[id]; ok && name != "" {
		return name
	}
	return id
}

func formatAmount(amount decimal.Decimal) string {
	if amount.IsZero() {
		return ""
	}
	return amount.StringFixed(2)
}
