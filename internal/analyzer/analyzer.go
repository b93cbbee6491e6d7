// Package analyzer rolls parsed documents up into a debt-to-income
// assessment and serializes the advisory context handed to the external
// chat adviser.
package analyzer

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/insightdelivered/financial-doc-parser/internal/models"
)

// Status is the traffic-light classification of a household's debt load.
type Status string

const (
	StatusGreen         Status = "green"
	StatusYellow        Status = "yellow"
	StatusRed           Status = "red"
	StatusNeedsMoreInfo Status = "needs_more_info"
)

// Band boundaries are ratios of total debt to annual income. The yellow
// band is inclusive on both ends.
var (
	greenMaxRatio  = decimal.NewFromInt(1)
	yellowMaxRatio = decimal.NewFromInt(2)
	raiseShare     = decimal.NewFromFloat(0.5)
)

// Input is everything Classify needs. CanRaiseShortTerm is a pointer
// because "not asked yet" and "answered no" lead to different statuses.
type Input struct {
	TotalDebt    decimal.Decimal
	AnnualIncome decimal.Decimal

	HasCollectionProceedings bool
	CanRaiseShortTerm        *bool
}

// Assessment is the classification result. Ratio is null when income is
// non-positive and the ratio is undefined. SuggestedRaise is set when
// raising short-term funds is the relevant next step, and equals half
// the total debt.
type Assessment struct {
	Status          Status              `json:"status"`
	Ratio           decimal.NullDecimal `json:"ratio"`
	Guidance        string              `json:"guidance"`
	Recommendations []string            `json:"recommendations"`
	SuggestedRaise  decimal.NullDecimal `json:"suggestedRaise"`
}

// TotalOutstandingDebt sums the outstanding balances of a ledger.
// Entries without an outstanding figure count as zero.
func TotalOutstandingDebt(entries []models.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.OutstandingBalance.Valid {
			total = total.Add(e.OutstandingBalance.Decimal)
		}
	}
	return total
}

// Classify maps a debt picture onto a traffic-light status.
//
// Ratio below 1 is green and above 2 is red regardless of the follow-up
// answers. Inside the 1..2 band the status depends on them: collection
// proceedings force red, a confirmed ability to raise half the debt
// keeps it yellow, a confirmed inability forces red, and an unanswered
// question yields needs_more_info so the caller can ask it.
func Classify(in Input) Assessment {
	debt := in.TotalDebt
	if debt.IsNegative() {
		debt = decimal.Zero
	}

	a := Assessment{}
	if in.AnnualIncome.IsPositive() {
		// Full-precision division: rounding here could push a ratio
		// across a band boundary.
		a.Ratio = decimal.NewNullDecimal(debt.Div(in.AnnualIncome))
	} else if debt.IsPositive() {
		// Positive debt against no income: the ratio is unbounded.
		return red(a, "מצב פיננסי מאתגר. יחס החוב להכנסה גבוה מאוד.",
			"פנה לייעוץ מקצועי בהקדם",
			"בחן אפשרויות לגיוס כספים",
			"הפסק לצבור חוב חדש",
			"שקול פנייה לארגון \"פעמונים\"")
	}

	ratio := a.Ratio.Decimal
	switch {
	case !a.Ratio.Valid || ratio.LessThan(greenMaxRatio):
		a.Status = StatusGreen
		a.Guidance = "מצב פיננסי תקין! יחס החוב להכנסה נמוך ובטוח."
		a.Recommendations = []string{
			"המשך בניהול פיננסי אחראי",
			"שקול הגדלת חיסכון או השקעות",
			"בדוק אפשרויות לשיפור תנאי אשראי",
		}
		return a

	case ratio.GreaterThan(yellowMaxRatio):
		return red(a, "מצב פיננסי מאתגר. יחס החוב להכנסה גבוה מאוד.",
			"פנה לייעוץ מקצועי בהקדם",
			"בחן אפשרויות לגיוס כספים",
			"הפסק לצבור חוב חדש",
			"שקול פנייה לארגון \"פעמונים\"")
	}

	if in.HasCollectionProceedings {
		return red(a, "מצב פיננסי מאתגר. קיימים הליכי גבייה.",
			"פנה לייעוץ משפטי בהקדם",
			"נהל משא ומתן עם הנושים",
			"בחן אפשרויות להסדר חוב")
	}

	suggested := debt.Mul(raiseShare)
	if in.CanRaiseShortTerm == nil {
		a.Status = StatusNeedsMoreInfo
		a.Guidance = "נדרש מידע נוסף: האם תוכל לגייס 50% מהחוב בטווח הקצר?"
		a.SuggestedRaise = decimal.NewNullDecimal(suggested)
		return a
	}
	if *in.CanRaiseShortTerm {
		a.Status = StatusYellow
		a.Guidance = "מצב פיננסי דורש תשומת לב. יש פוטנציאל לשיפור."
		a.Recommendations = []string{
			"גייס את הכספים הזמינים",
			"בנה תוכנית להחזר חובות",
			"צמצם הוצאות לא חיוניות",
			"שקול הגדלת הכנסות",
		}
		a.SuggestedRaise = decimal.NewNullDecimal(suggested)
		return a
	}
	return red(a, "מצב פיננסי מאתגר. אין יכולת גיוס כספים.",
		"פנה לייעוץ מקצועי בהקדם",
		"בחן מקורות הכנסה נוספים",
		"שקול מכירת נכסים",
		"פנה לעזרה משפחתית")
}

func red(a Assessment, guidance string, recs ...string) Assessment {
	a.Status = StatusRed
	a.Guidance = guidance
	a.Recommendations = recs
	return a
}

var obligationLabels = map[models.ObligationType]string{
	models.ObligationChecking:        "יתרות עובר ושב",
	models.ObligationRevolvingCredit: "מסגרות אשראי מתחדשות",
	models.ObligationLoan:            "הלוואות",
	models.ObligationMortgage:        "משכנתאות",
	models.ObligationOther:           "התחייבויות אחרות",
}

var statusLabels = map[Status]string{
	StatusGreen:         "ירוק",
	StatusYellow:        "צהוב",
	StatusRed:           "אדום",
	StatusNeedsMoreInfo: "נדרש מידע נוסף",
}

// BuildAdvisoryContext serializes the parsed picture into the Hebrew
// briefing block the chat adviser receives ahead of the conversation.
// Lines for absent data are omitted rather than emitted empty.
func BuildAdvisoryContext(series []models.BalancePoint, entries []models.LedgerEntry, a Assessment) string {
	var b strings.Builder
	b.WriteString("נתונים פיננסיים של המשתמש:\n")

	total := TotalOutstandingDebt(entries)
	b.WriteString("- סך חובות: " + formatShekel(total) + " ₪\n")
	if len(entries) > 0 {
		byType := map[models.ObligationType]decimal.Decimal{}
		for _, e := range entries {
			if e.OutstandingBalance.Valid {
				byType[e.ObligationType] = byType[e.ObligationType].Add(e.OutstandingBalance.Decimal)
			}
		}
		for _, ot := range []models.ObligationType{
			models.ObligationChecking,
			models.ObligationRevolvingCredit,
			models.ObligationLoan,
			models.ObligationMortgage,
			models.ObligationOther,
		} {
			if sum, ok := byType[ot]; ok && !sum.IsZero() {
				b.WriteString("- " + obligationLabels[ot] + ": " + formatShekel(sum) + " ₪\n")
			}
		}
	}

	if len(series) > 0 {
		last := series[len(series)-1]
		low := series[0].Balance
		for _, p := range series[1:] {
			if p.Balance.LessThan(low) {
				low = p.Balance
			}
		}
		b.WriteString("- יתרת עו\"ש אחרונה: " + formatShekel(last.Balance) + " ₪ (" + last.Date.Format("02/01/2006") + ")\n")
		b.WriteString("- היתרה הנמוכה בתקופה: " + formatShekel(low) + " ₪\n")
	}

	if a.Ratio.Valid {
		pct := a.Ratio.Decimal.Mul(decimal.NewFromInt(100))
		b.WriteString("- יחס חוב להכנסה שנתית: " + pct.StringFixed(2) + "%\n")
	}
	b.WriteString("- סיווג: " + statusLabels[a.Status] + "\n")
	if a.Guidance != "" {
		b.WriteString("- הערכה: " + a.Guidance + "\n")
	}
	if a.SuggestedRaise.Valid {
		b.WriteString("- סכום גיוס מוצע: " + formatShekel(a.SuggestedRaise.Decimal) + " ₪\n")
	}
	return b.String()
}

// formatShekel renders a whole-shekel amount with thousands separators.
func formatShekel(d decimal.Decimal) string {
	s := d.Round(0).StringFixed(0)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
