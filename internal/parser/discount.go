package parser

import (
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/insightdelivered/financial-doc-parser/internal/models"
)

// DiscountParser handles Bank Discount checking-account statements.
//
// Discount rows end with a value/posting date pair and open with the
// running balance and the transaction amount side by side:
//
//	"8,120.30 450.00 העברה בנקאית 12/04/2024 12/04/2024"
//
// The first field of the leading pair is the balance, the second the
// amount; only the balance and the value date feed the series. There is
// no reconciliation pass for this layout: the adjacent-pair shape is
// already a strong enough filter against misaligned captures.
type DiscountParser struct {
	cfg Config
	log *zap.Logger
}

func (p *DiscountParser) BankName() string {
	return "Bank Discount"
}

// Balance and amount sit immediately adjacent at the line start, both
// with explicit decimal places.
var discountLeadingPairPattern = regexp.MustCompile(`^([₪\-,\d]+\.\d{2})\s+([₪\-,\d]+\.\d{2})`)

func (p *DiscountParser) Parse(pages []string) (*models.StatementResult, error) {
	res := &models.StatementResult{Dialect: models.DialectDiscount}
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

func (p *DiscountParser) matchLine(line string) (*models.BalancePoint, string) {
	if len([]rune(line)) < minStatementLineLen {
		return nil, "skipped"
	}
	if isStatementSkipLine(line) {
		return nil, "excluded"
	}

	dates := trailingDatePairPattern.FindStringSubmatchIndex(line)
	if dates == nil {
		return nil, "skipped"
	}
	// The leading pair must sit on the text before the dates, otherwise
	// the date digits themselves can satisfy the amount pattern.
	prefix := strings.TrimSpace(line[:dates[0]])
	pair := discountLeadingPairPattern.FindStringSubmatch(prefix)
	if pair == nil {
		return nil, "skipped"
	}

	balance, ok := cleanAmount(pair[1])
	if !ok {
		return nil, "skipped"
	}
	if _, ok := cleanAmount(pair[2]); !ok {
		return nil, "skipped"
	}
	// The first of the two trailing dates is the value date.
	date, ok := cleanDate(line[dates[2]:dates[3]])
	if !ok {
		return nil, "skipped"
	}

	return &models.BalancePoint{Date: date, Balance: balance}, "matched"
}
