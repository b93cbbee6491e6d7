package parser

import "github.com/shopspring/decimal"

// entryKind is the reconciliation verdict for one matched statement line.
type entryKind int

const (
	// kindAnchor is the first observed balance; there is no baseline yet.
	kindAnchor entryKind = iota
	// kindCheckpoint is a balance-only line; it advances the baseline
	// without earning a series emission.
	kindCheckpoint
	// kindDebit and kindCredit are reconciled transactions.
	kindDebit
	kindCredit
	// kindUnreconciled means the amount did not explain the balance
	// delta in either direction.
	kindUnreconciled
)

func (k entryKind) String() string {
	switch k {
	case kindAnchor:
		return "anchor"
	case kindCheckpoint:
		return "checkpoint"
	case kindDebit:
		return "debit"
	case kindCredit:
		return "credit"
	case kindUnreconciled:
		return "unreconciled"
	}
	return "unknown"
}

// emits reports whether this verdict puts a point into the series.
func (k entryKind) emits() bool {
	return k == kindDebit || k == kindCredit
}

// reconciler carries the running balance across the lines of one
// document. Statements print a running balance per row, and that column
// is captured more reliably than the amount column, so the balance delta
// is the ground truth a candidate amount must explain before the line is
// trusted. One instance per document; page boundaries do not reset it.
type reconciler struct {
	prev decimal.NullDecimal
	tol  decimal.Decimal
}

func newReconciler(tolerance decimal.Decimal) *reconciler {
	return &reconciler{tol: tolerance}
}

// observe feeds one matched line through the continuity check. The
// baseline advances on every call, whatever the verdict: a line that
// fails reconciliation still told us the current balance, and dropping it
// from the baseline would misclassify every following line.
func (r *reconciler) observe(balance decimal.Decimal, amount decimal.NullDecimal) entryKind {
	defer func() {
		r.prev = decimal.NullDecimal{Decimal: balance, Valid: true}
	}()

	if !r.prev.Valid {
		return kindAnchor
	}
	if !amount.Valid || amount.Decimal.IsZero() {
		return kindCheckpoint
	}

	delta := balance.Sub(r.prev.Decimal).Round(2)
	if delta.Add(amount.Decimal).Abs().LessThanOrEqual(r.tol) {
		return kindDebit
	}
	if delta.Sub(amount.Decimal).Abs().LessThanOrEqual(r.tol) {
		return kindCredit
	}
	return kindUnreconciled
}
