package writer

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/financial-doc-parser/internal/models"
)

// SeriesWriter writes a balance series to CSV format.
type SeriesWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the series to a CSV file at the given path.
func (w *SeriesWriter) WriteToFile(path string, res *models.StatementResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, res)
}

// Write writes the series in CSV format to the given writer.
func (w *SeriesWriter) Write(out io.Writer, res *models.StatementResult) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	if w.IncludeHeader && res.Dialect != "" {
		writer.Write([]string{"# Dialect", string(res.Dialect)})
	}

	if err := writer.Write([]string{"Date", "Balance"}); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, p := range res.Points {
		row := []string{
			p.Date.Format("02/01/2006"),
			p.Balance.StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

// LedgerWriter writes credit-report ledger entries to CSV format.
type LedgerWriter struct {
	IncludeHeader bool
}

// WriteToFile writes the ledger to a CSV file at the given path.
func (w *LedgerWriter) WriteToFile(path string, res *models.CreditReportResult) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file %q: %w", path, err)
	}
	defer f.Close()

	return w.Write(f, res)
}

// Write writes the ledger in CSV format to the given writer. Amounts the
// report did not state stay as empty cells so a zero is never invented.
func (w *LedgerWriter) Write(out io.Writer, res *models.CreditReportResult) error {
	writer := csv.NewWriter(out)
	defer writer.Flush()

	if w.IncludeHeader {
		writer.Write([]string{"# Entries", strconv.Itoa(len(res.Entries))})
	}

	header := []string{"Type", "Creditor", "Limit", "Original", "Outstanding", "Unpaid"}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, e := range res.Entries {
		row := []string{
			string(e.ObligationType),
			e.CreditorName,
			formatNullable(e.CreditLimit),
			formatNullable(e.OriginalAmount),
			formatNullable(e.OutstandingBalance),
			e.UnpaidAmount.StringFixed(2),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	return nil
}

func formatNullable(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.StringFixed(2)
}
