package parser

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/insightdelivered/financial-doc-parser/internal/models"
)

// SeriesParser defines the interface for bank statement balance-series parsers.
type SeriesParser interface {
	// Parse takes raw text from PDF pages and returns the balance series.
	Parse(pages []string) (*models.StatementResult, error)
	// BankName returns the human-readable bank name.
	BankName() string
}

// NewSeries returns the parser for the given statement dialect. A nil
// logger is replaced with a no-op one.
func NewSeries(d models.Dialect, cfg Config, log *zap.Logger) (SeriesParser, error) {
	if log == nil {
		log = zap.NewNop()
	}
	switch d {
	case models.DialectHapoalim:
		return &HapoalimParser{cfg: cfg, log: log}, nil
	case models.DialectLeumi:
		return &LeumiParser{cfg: cfg, log: log}, nil
	case models.DialectDiscount:
		return &DiscountParser{cfg: cfg, log: log}, nil
	default:
		return nil, fmt.Errorf("unsupported statement dialect: %q", d)
	}
}

// NewCreditReport returns a parser for credit register reports.
func NewCreditReport(cfg Config, log *zap.Logger) *CreditReportParser {
	if log == nil {
		log = zap.NewNop()
	}
	return &CreditReportParser{cfg: cfg, log: log}
}

// DetectDialect identifies the document dialect from its text content.
// Credit register markers are checked first: those reports quote bank
// names in their entries, so a bank-name match alone is not conclusive.
func DetectDialect(pages []string) (models.Dialect, error) {
	var b strings.Builder
	for _, p := range pages {
		b.WriteString(p)
		b.WriteByte('\n')
	}
	combined := b.String()

	if containsAny(combined, []string{"ריכוז נתונים", "נתוני אשראי", `מסגרות עו"ש`}) {
		return models.DialectCreditReport, nil
	}
	if containsAny(combined, []string{"בנק הפועלים", "הפועלים"}) {
		return models.DialectHapoalim, nil
	}
	if containsAny(combined, []string{"בנק לאומי", "לאומי לישראל"}) {
		return models.DialectLeumi, nil
	}
	if containsAny(combined, []string{"בנק דיסקונט", "דיסקונט לישראל"}) {
		return models.DialectDiscount, nil
	}

	return "", fmt.Errorf("could not detect document dialect from content; please specify the bank")
}

// ParseDialect maps a user-supplied dialect name to the closed enum.
func ParseDialect(s string) (models.Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hapoalim", "poalim":
		return models.DialectHapoalim, nil
	case "leumi":
		return models.DialectLeumi, nil
	case "discount", "diskont":
		return models.DialectDiscount, nil
	case "credit-report", "creditreport", "credit":
		return models.DialectCreditReport, nil
	default:
		return "", fmt.Errorf("unknown dialect: %q", s)
	}
}

func containsAny(text string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(text, needle) {
			return true
		}
	}
	return false
}
