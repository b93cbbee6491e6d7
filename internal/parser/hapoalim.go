package parser

import (
	"strings"

	"go.uber.org/zap"

	"github.com/insightdelivered/financial-doc-parser/internal/models"
)

// HapoalimParser handles Bank Hapoalim checking-account statements.
//
// Hapoalim prints one row per movement with the end-of-day balance first
// and a single date last:
//
//	"₪12,345.67  הפקדת משכורת  03/01/2024"
//
// Date format: DD/MM/YYYY only. Every structurally valid row yields a
// balance observation; duplicates on one date collapse to the last row.
type HapoalimParser struct {
	cfg Config
	log *zap.Logger
}

func (p *HapoalimParser) BankName() string {
	return "Bank Hapoalim"
}

func (p *HapoalimParser) Parse(pages []string) (*models.StatementResult, error) {
	res := &models.StatementResult{Dialect: models.DialectHapoalim}
	var points []models.BalancePoint

	for pageNum, page := range pages {
		for lineNum, rawLine := range strings.Split(page, "\n") {
			line := normalizeLine(rawLine)
			if line == "" {
				continue
			}
			point, outcome := p.matchLine(line)
			res.Trace = appendTrace(res.Trace, p.cfg.Trace, pageNum+1, lineNum+1, line, outcome, "")
			if point != nil {
				points = append(points, *point)
			}
		}
	}

	res.Points = dedupeSeries(points)
	return res, nil
}

// matchLine classifies one normalized line. The exclusion list runs
// before the pattern checks: running-balance captions and section totals
// are numerically well-formed and would otherwise enter the series.
func (p *HapoalimParser) matchLine(line string) (*models.BalancePoint, string) {
	if len([]rune(line)) < minStatementLineLen {
		return nil, "skipped"
	}
	if isStatementSkipLine(line) {
		return nil, "excluded"
	}

	dm := trailingLongDatePattern.FindStringSubmatch(line)
	if dm == nil {
		return nil, "skipped"
	}
	bm := leadingBalancePattern.FindStringSubmatch(line)
	if bm == nil {
		return nil, "skipped"
	}

	date, ok := cleanDate(dm[1])
	if !ok {
		return nil, "skipped"
	}
	balance, ok := cleanAmount(bm[1])
	if !ok {
		return nil, "skipped"
	}

	return &models.BalancePoint{Date: date, Balance: balance}, "matched"
}
