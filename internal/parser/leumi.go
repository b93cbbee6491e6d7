package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/insightdelivered/financial-doc-parser/internal/models"
)

// LeumiParser handles Bank Leumi checking-account statements.
//
// Leumi rows carry six fields in fixed order: running balance, optional
// transaction amount, reference code, description, value date, posting
// date:
//
//	"4,700.00 300.00 123456 העברה לאחר 05/03/2024 05/03/2024"
//
// The value date is authoritative for the series. Debit/credit is never
// read off column position; the amount must explain the balance delta
// (see reconciler) before the row earns a series emission. Rows with a
// balance but no amount are checkpoints: they keep the running balance
// honest without emitting.
type LeumiParser struct {
	cfg Config
	log *zap.Logger
}

func (p *LeumiParser) BankName() string {
	return "Bank Leumi"
}

// One anchored pattern for a full Leumi row. The balance group tolerates
// zero-width spaces and stray dots from the PDF text layer; the amount
// group is optional because checkpoint rows print a balance with no
// transaction.
var leumiLinePattern = regexp.MustCompile(
	`^([-\x{200b}\d,.]+)\s+` + // running balance
		`(\d{1,3}(?:,\d{3})*\.\d{2})?\s*` + // transaction amount
		`(\S+)\s+` + // reference code
		`(.*?)\s+` + // description
		`(\d{1,2}/\d{1,2}/\d{2,4})\s+` + // value date
		`(\d{1,2}/\d{1,2}/\d{2,4})$`, // posting date
)

func (p *LeumiParser) Parse(pages []string) (*models.StatementResult, error) {
	res := &models.StatementResult{Dialect: models.DialectLeumi}
	rec := newReconciler(p.cfg.ReconcileTolerance)
	var points []models.BalancePoint

	for pageNum, page := range pages {
		for lineNum, rawLine := range strings.Split(page, "\n") {
			line := normalizeLine(rawLine)
			if line == "" {
				continue
			}

			m := leumiLinePattern.FindStringSubmatch(line)
			if m == nil {
				res.Trace = appendTrace(res.Trace, p.cfg.Trace, pageNum+1, lineNum+1, line, "skipped", "")
				continue
			}

			balance, ok := cleanAmount(m[1])
			if !ok {
				res.Trace = appendTrace(res.Trace, p.cfg.Trace, pageNum+1, lineNum+1, line, "skipped", "bad balance")
				continue
			}
			date, ok := cleanDate(m[5])
			if !ok {
				res.Trace = appendTrace(res.Trace, p.cfg.Trace, pageNum+1, lineNum+1, line, "skipped", "bad date")
				continue
			}

			// An amount that fails the strict cleaner (no decimal point,
			// above the sanity ceiling) demotes the row to a checkpoint
			// rather than discarding the balance observation.
			var amount decimal.NullDecimal
			if m[2] != "" {
				if a, ok := cleanAmountStrict(m[2], p.cfg.AmountCeiling); ok {
					amount = decimal.NullDecimal{Decimal: a, Valid: true}
				}
			}

			kind := rec.observe(balance, amount)
			desc := reverseHebrewWords(strings.TrimSpace(m[4]))

			if kind == kindUnreconciled {
				p.log.Debug("balance delta did not reconcile",
					zap.String("balance", balance.String()),
					zap.String("amount", amount.Decimal.String()),
					zap.String("description", desc),
				)
			}
			if kind.emits() {
				points = append(points, models.BalancePoint{Date: date, Balance: balance})
			}
			res.Trace = appendTrace(res.Trace, p.cfg.Trace, pageNum+1, lineNum+1, line, kind.String(), desc)
		}
	}

	res.Points = dedupeSeries(points)
	return res, nil
}
