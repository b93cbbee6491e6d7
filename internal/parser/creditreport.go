package parser

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/insightdelivered/financial-doc-parser/internal/models"
)

// CreditReportParser extracts obligation rows from Bank of Israel credit
// register reports ("דוח ריכוז נתונים"). Unlike the statement layouts, a
// single obligation spans several physical lines: the creditor name
// (possibly wrapped onto a second line), a masked account identifier,
// then one number per line. Each line is classified and fed to an
// accumulator that assembles entries and flushes them on boundary lines.
type CreditReportParser struct {
	cfg Config
	log *zap.Logger
}

// Section labels as printed by the report, mapped to obligation types.
var creditSectionLabels = []struct {
	label string
	typ   models.ObligationType
}{
	{"חשבון עובר ושב", models.ObligationChecking},
	{"מסגרת אשראי מתחדשת", models.ObligationRevolvingCredit},
	{"הלוואה", models.ObligationLoan},
	{"משכנתה", models.ObligationMortgage},
}

// Words that appear as column headers in every section. A line consisting
// of exactly one of them is layout noise.
var creditColumnHeaderWords = map[string]bool{
	"שם": true, "מקור": true, "מידע": true, "מדווח": true, "מזהה": true,
	"עסקה": true, "מספר": true, "עסקאות": true, "גובה": true,
	"מסגרת": true, "מסגרות": true, "סכום": true, "הלוואות": true,
	"מקורי": true, "יתרת": true, "חוב": true, "יתרה": true,
	"שלא": true, "שולמה": true, "במועד": true,
}

// Creditor vocabulary: a candidate line containing one of these starts a
// new entry. Prose lines without a recognizable lender fragment never do,
// however long they are.
var creditorKeywords = []string{
	"בנק", `בע"מ`, "אגוד", "איגוד", "דיסקונט", "לאומי", "הפועלים",
	"מזרחי", "טפחות", "הבינלאומי", "מרכנתיל", "אוצר", "החייל",
	"ירושלים", "מימון", "ישיר", "כרטיסי", "אשראי", "מקס", "פיננסים",
	"כאל", "ישראכרט",
}

// Fragments that continue a wrapped institution name onto the next line.
var creditContinuationFragments = []string{
	"לישראל", `בע"מ`, "ומשכנתאות", `נדל"ן`, "דיסקונט", "הראשון", "פיננסים",
}

// Names containing one of these get the corporate suffix appended during
// cleanup when the report dropped it.
var likelyInstitutionKeywords = []string{
	"בנק", "לאומי", "הפועלים", "דיסקונט", "מזרחי", "הבינלאומי",
	"מרכנתיל", "ירושלים", "איגוד", "מקס איט פיננסים",
	`מימון ישיר נדל"ן ומשכנתאות`,
}

var (
	creditNumberPattern   = regexp.MustCompile(`^\s*(-?\d{1,3}(?:,\d{3})*\.?\d*)\s*$`)
	maskedAccountPattern  = regexp.MustCompile(`\s*XX-[\w-]+.*`)
	trailingNumberPattern = regexp.MustCompile(`\s+\d{1,3}(?:,\d{3})*$`)
)

const corporateSuffix = `בע"מ`

// creditLineKind is the classification of one report line.
type creditLineKind int

const (
	creditLineEmpty creditLineKind = iota
	creditLineSectionHeader
	creditLineSummary
	creditLineNumber
	creditLineIdentifier
	creditLineNoise
	creditLineCandidateName
)

// creditLine is one classified line with its payload.
type creditLine struct {
	kind    creditLineKind
	section models.ObligationType // section header lines
	number  decimal.Decimal       // pure-number lines
}

// classifyCreditLine decides what one normalized report line is. Order
// matters: headers and summaries win over name candidates, and the
// number check runs before the noise check so short negative amounts
// survive the short-token filter.
func classifyCreditLine(line string) creditLine {
	if line == "" {
		return creditLine{kind: creditLineEmpty}
	}
	if typ, ok := matchSectionHeader(line); ok {
		return creditLine{kind: creditLineSectionHeader, section: typ}
	}
	if strings.HasPrefix(line, `סה"כ`) || strings.HasPrefix(line, "עמוד") {
		return creditLine{kind: creditLineSummary}
	}
	if m := creditNumberPattern.FindStringSubmatch(line); m != nil {
		if n, ok := cleanAmount(m[1]); ok {
			return creditLine{kind: creditLineNumber, number: n}
		}
		return creditLine{kind: creditLineNoise}
	}
	if strings.HasPrefix(line, "XX-") && len(line) > 5 {
		return creditLine{kind: creditLineIdentifier}
	}
	if isCreditNoise(line) {
		return creditLine{kind: creditLineNoise}
	}
	return creditLine{kind: creditLineCandidateName}
}

func matchSectionHeader(line string) (models.ObligationType, bool) {
	for _, s := range creditSectionLabels {
		if !strings.Contains(line, s.label) {
			continue
		}
		// Genuine headers are short. Entry and summary lines mention the
		// same labels mid-text but run much longer.
		if len([]rune(line)) < len([]rune(s.label))+20 && strings.Count(line, " ") < 5 {
			return s.typ, true
		}
	}
	return "", false
}

func isCreditNoise(line string) bool {
	if creditColumnHeaderWords[line] {
		return true
	}
	if strings.Trim(line, ":. ") == "" {
		return true
	}
	if len([]rune(line)) < 3 && !strings.ContainsAny(line, "0123456789") {
		return true
	}
	return false
}

// PartialEntry is the working state for one obligation being assembled
// across lines.
type PartialEntry struct {
	CreditorName string
	Numbers      []decimal.Decimal
	Section      models.ObligationType
	Finalized    bool
}

// creditAccumulator assembles multi-line obligations. One instance per
// document pass; never shared between documents.
type creditAccumulator struct {
	cfg Config
	log *zap.Logger

	section     models.ObligationType
	haveSection bool
	entry       *PartialEntry

	// afterIdentifier marks that the last significant line was a masked
	// account identifier; a number right after it opens a sub-account.
	afterIdentifier bool
	// nameOpen marks that a name was just started or extended with no
	// number seen yet, so the next line may continue it.
	nameOpen bool

	entries []models.LedgerEntry
}

// feed advances the state machine by one classified line and returns the
// outcome label for the trace.
func (a *creditAccumulator) feed(line string, cl creditLine) string {
	switch cl.kind {
	case creditLineEmpty:
		a.nameOpen = false
		return "empty"
	case creditLineSectionHeader:
		a.flush()
		a.section = cl.section
		a.haveSection = true
		a.afterIdentifier = false
		return "header"
	case creditLineSummary:
		a.flush()
		a.afterIdentifier = false
		return "summary"
	}

	if !a.haveSection {
		// Report preamble: customer details, legend, register metadata.
		// Nothing before the first section header is an obligation.
		return "preamble"
	}

	switch cl.kind {
	case creditLineNumber:
		if a.entry == nil {
			a.afterIdentifier = false
			return "orphan-number"
		}
		if a.afterIdentifier && len(a.entry.Numbers) >= 2 {
			// An identifier between number blocks separates sub-accounts
			// of the same creditor: close out the finished one and start
			// the next under the same name.
			name := a.entry.CreditorName
			a.flush()
			a.entry = &PartialEntry{CreditorName: name, Section: a.section}
		}
		a.afterIdentifier = false
		a.nameOpen = false
		if len(a.entry.Numbers) < a.cfg.MaxEntryNumbers {
			a.entry.Numbers = append(a.entry.Numbers, cl.number)
		}
		return "number"
	case creditLineIdentifier:
		a.afterIdentifier = true
		return "identifier"
	case creditLineNoise:
		a.afterIdentifier = false
		return "noise"
	case creditLineCandidateName:
		a.afterIdentifier = false
		return a.feedName(line)
	}
	return "skipped"
}

func (a *creditAccumulator) feedName(line string) string {
	if a.entry != nil && a.nameOpen && isNameContinuation(line) {
		a.appendName(line)
		return "continuation"
	}
	if containsCreditorKeyword(line) {
		a.flush()
		a.entry = &PartialEntry{CreditorName: line, Section: a.section}
		a.nameOpen = true
		return "name"
	}
	if a.entry != nil && len(a.entry.Numbers) > 0 {
		// Unrelated trailing text after a numbers block ends the entry.
		a.flush()
		return "flush"
	}
	return "ignored"
}

func isNameContinuation(line string) bool {
	for _, frag := range creditContinuationFragments {
		if strings.Contains(line, frag) {
			return true
		}
	}
	// Short digit-free text is taken as wrapped prose from the name cell.
	return len([]rune(line)) <= 25 && !strings.ContainsAny(line, "0123456789")
}

func containsCreditorKeyword(line string) bool {
	for _, kw := range creditorKeywords {
		if strings.Contains(line, kw) {
			return true
		}
	}
	return false
}

func (a *creditAccumulator) appendName(fragment string) {
	name := a.entry.CreditorName
	// A wrap often repeats the corporate suffix; keep one.
	if strings.HasSuffix(name, corporateSuffix) && strings.HasPrefix(fragment, corporateSuffix) {
		fragment = strings.TrimSpace(strings.TrimPrefix(fragment, corporateSuffix))
		if fragment == "" {
			return
		}
	}
	a.entry.CreditorName = name + " " + fragment
}

// flush finalizes the current entry, emitting it when it clears the
// completeness floor for its section.
func (a *creditAccumulator) flush() {
	entry := a.entry
	a.entry = nil
	a.nameOpen = false
	if entry == nil || entry.Finalized {
		return
	}
	entry.Finalized = true

	row, ok := a.finalize(entry)
	if !ok {
		if entry.CreditorName != "" {
			a.log.Debug("credit entry dropped",
				zap.String("creditor", entry.CreditorName),
				zap.Int("numbers", len(entry.Numbers)),
				zap.String("section", string(entry.Section)),
			)
		}
		return
	}
	a.entries = append(a.entries, row)
}

// finalize maps accumulated numbers onto ledger columns. The mapping
// depends on the section and on how many numbers the block carried:
//
//	checking/revolving, ≥2:  limit, outstanding, unpaid?
//	loan/mortgage with payment-count prefix: (count), original,
//	                         outstanding, unpaid?
//	loan/mortgage, ≥2:       original, outstanding, unpaid?
//	loan/mortgage, =1:       outstanding only
//	anything else, ≥1:       original, outstanding?, unpaid?
func (a *creditAccumulator) finalize(e *PartialEntry) (models.LedgerEntry, bool) {
	name := cleanCreditorName(e.CreditorName)
	if name == "" || len(e.Numbers) == 0 {
		return models.LedgerEntry{}, false
	}

	row := models.LedgerEntry{
		ObligationType: e.Section,
		CreditorName:   name,
	}
	n := e.Numbers

	switch e.Section {
	case models.ObligationChecking, models.ObligationRevolvingCredit:
		if len(n) < 2 {
			return models.LedgerEntry{}, false
		}
		row.CreditLimit = nullDecimal(n[0])
		row.OutstandingBalance = nullDecimal(n[1])
		row.UnpaidAmount = numberAt(n, 2)
	case models.ObligationLoan, models.ObligationMortgage:
		if len(n) >= a.cfg.PaymentCountMinNumbers && isPaymentCount(n[0], a.cfg.PaymentCountCeiling) {
			// The leading small whole number is the contractual payment
			// count, not an amount.
			n = n[1:]
		}
		switch {
		case len(n) >= 2:
			row.OriginalAmount = nullDecimal(n[0])
			row.OutstandingBalance = nullDecimal(n[1])
			row.UnpaidAmount = numberAt(n, 2)
		case len(n) == 1:
			row.OutstandingBalance = nullDecimal(n[0])
		default:
			return models.LedgerEntry{}, false
		}
	default:
		row.OriginalAmount = nullDecimal(n[0])
		if len(n) >= 2 {
			row.OutstandingBalance = nullDecimal(n[1])
		}
		row.UnpaidAmount = numberAt(n, 2)
	}

	return row, true
}

// isPaymentCount reports whether v looks like a payment-count column:
// a positive whole number below the configured ceiling.
func isPaymentCount(v, ceiling decimal.Decimal) bool {
	return v.IsPositive() && v.Equal(v.Truncate(0)) && v.LessThan(ceiling)
}

func nullDecimal(v decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: v, Valid: true}
}

func numberAt(n []decimal.Decimal, idx int) decimal.Decimal {
	if idx < len(n) {
		return n[idx]
	}
	return decimal.Decimal{}
}

// cleanCreditorName strips layout artifacts from an assembled name and
// canonicalizes the corporate suffix. Names arrive in logical order from
// the text layer; the suffix rules depend on that.
func cleanCreditorName(raw string) string {
	name := strings.TrimSpace(raw)
	name = maskedAccountPattern.ReplaceAllString(name, "")
	name = trailingNumberPattern.ReplaceAllString(name, "")
	name = strings.Join(strings.Fields(name), " ")
	if name == "" {
		return ""
	}
	if !strings.HasSuffix(name, corporateSuffix) && isLikelyInstitution(name) {
		name += " " + corporateSuffix
	}
	name = strings.ReplaceAll(name, corporateSuffix+" "+corporateSuffix, corporateSuffix)
	return name
}

func isLikelyInstitution(name string) bool {
	for _, kw := range likelyInstitutionKeywords {
		if strings.Contains(name, kw) {
			return true
		}
	}
	return false
}

func (p *CreditReportParser) Parse(pages []string) (*models.CreditReportResult, error) {
	res := &models.CreditReportResult{}
	acc := &creditAccumulator{cfg: p.cfg, log: p.log}

	for pageNum, page := range pages {
		for lineNum, rawLine := range strings.Split(page, "\n") {
			line := normalizeLine(rawLine)
			outcome := acc.feed(line, classifyCreditLine(line))
			if line != "" {
				res.Trace = appendTrace(res.Trace, p.cfg.Trace, pageNum+1, lineNum+1, line, outcome, "")
			}
		}
	}
	// End of document closes whatever block was still open.
	acc.flush()

	res.Entries = acc.entries
	return res, nil
}
