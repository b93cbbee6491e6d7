package parser

import (
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/insightdelivered/financial-doc-parser/internal/models"
)

// Date patterns shared across the statement layouts.
var (
	// Single trailing date with a 4-digit year, as printed by Hapoalim.
	trailingLongDatePattern = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{4})\s*$`)
	// Trailing value/posting date pair, as printed by Discount.
	trailingDatePairPattern = regexp.MustCompile(`(\d{1,2}/\d{1,2}/\d{2,4})\s+(\d{1,2}/\d{1,2}/\d{2,4})\s*$`)
	// Leading running balance with an optional shekel sign.
	leadingBalancePattern = regexp.MustCompile(`^\s*(₪?-?[\d,]+\.\d{2})`)
)

// Statement header and footer rows are numerically well-formed, so pattern
// checks alone cannot reject them. Any line containing one of these
// phrases is excluded before matching.
var statementSkipPhrases = []string{
	"יתרה לסוף יום",
	"עובר ושב",
	"תנועות בחשבון",
	"עמוד",
	"סך הכל",
	"הודעה זו כוללת",
}

// Genuine transaction rows never get this short.
const minStatementLineLen = 10

const (
	dateLayoutLong  = "2/1/2006"
	dateLayoutShort = "2/1/06"
)

// cleanDate parses a day-first date, trying the 4-digit year form before
// the 2-digit one. The source documents are locale-fixed; no other
// formats are recognized.
func cleanDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if t, err := time.Parse(dateLayoutLong, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse(dateLayoutShort, raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// normalizeLine cleans one extracted line: NFC form, newlines collapsed
// to spaces, zero-width spaces removed, surrounding whitespace trimmed.
func normalizeLine(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(s)
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\r", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "​", "")
	return strings.TrimSpace(s)
}

// containsHebrew reports whether s has at least one Hebrew-range rune.
func containsHebrew(s string) bool {
	for _, r := range s {
		if r >= 0x0590 && r <= 0x05EA {
			return true
		}
	}
	return false
}

// reverseHebrewWords repairs RTL text that the PDF text layer delivered in
// visual order by reversing the word order. Character order inside each
// word is preserved. Text without Hebrew runes is returned unchanged, so
// the repair is safe on mixed pages. Never apply it to numeric or date
// tokens.
func reverseHebrewWords(s string) string {
	if !containsHebrew(s) {
		return s
	}
	words := strings.Fields(s)
	for i, j := 0, len(words)-1; i < j; i, j = i+1, j-1 {
		words[i], words[j] = words[j], words[i]
	}
	return strings.Join(words, " ")
}

// cleanAmount converts localized numeric text like "₪1,234.56", "(500.00)"
// or "123.45-" to a decimal value. Both the parenthesized and the
// trailing-minus negative conventions appear in the documents. Returns
// false when the token has no digits or does not parse.
func cleanAmount(raw string) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Decimal{}, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") && len(s) > 2 {
		neg = true
		s = s[1 : len(s)-1]
	}

	replacer := strings.NewReplacer(
		"₪", "", "$", "", "€", "", "£", "",
		",", "", "​", "", " ", "", " ", "",
	)
	s = replacer.Replace(s)

	if strings.HasSuffix(s, "-") {
		neg = true
		s = strings.TrimSuffix(s, "-")
	}

	if !strings.ContainsAny(s, "0123456789") {
		return decimal.Decimal{}, false
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, false
	}
	if neg {
		d = d.Neg()
	}
	return d, true
}

// cleanAmountStrict is the transaction-amount variant of cleanAmount. It
// requires an explicit decimal point, repairs multi-dot artifacts from the
// text layer ("1.234.56" is a thousands separator misread), and rejects
// magnitudes above ceiling. Misaligned captures of reference columns fail
// these checks where the general cleaner would accept them.
func cleanAmountStrict(raw string, ceiling decimal.Decimal) (decimal.Decimal, bool) {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "​")
	if !strings.Contains(s, ".") {
		return decimal.Decimal{}, false
	}
	if strings.Count(s, ".") > 1 {
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}
	d, ok := cleanAmount(s)
	if !ok {
		return decimal.Decimal{}, false
	}
	if ceiling.IsPositive() && d.Abs().GreaterThan(ceiling) {
		return decimal.Decimal{}, false
	}
	return d, true
}

// isStatementSkipLine reports whether a statement line belongs to a
// header or footer and must not enter the series.
func isStatementSkipLine(line string) bool {
	for _, phrase := range statementSkipPhrases {
		if strings.Contains(line, phrase) {
			return true
		}
	}
	return false
}

// dedupeSeries keeps the last balance seen for each calendar date (later
// page and line order wins) and returns the series sorted ascending.
func dedupeSeries(points []models.BalancePoint) []models.BalancePoint {
	if len(points) == 0 {
		return nil
	}
	last := make(map[string]models.BalancePoint, len(points))
	for _, p := range points {
		last[p.Date.Format("2006-01-02")] = p
	}
	out := make([]models.BalancePoint, 0, len(last))
	for _, p := range last {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

func appendTrace(trace []models.TraceLine, enabled bool, page, line int, text, outcome, detail string) []models.TraceLine {
	if !enabled {
		return trace
	}
	return append(trace, models.TraceLine{
		Page:    page,
		Line:    line,
		Text:    text,
		Outcome: outcome,
		Detail:  detail,
	})
}
