package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Dialect identifies a supported document layout.
type Dialect string

const (
	DialectHapoalim     Dialect = "hapoalim"
	DialectLeumi        Dialect = "leumi"
	DialectDiscount     Dialect = "discount"
	DialectCreditReport Dialect = "credit-report"
)

// BalancePoint is one (date, balance) observation in a reconstructed
// account balance series. A final series holds at most one point per
// calendar date, sorted ascending.
type BalancePoint struct {
	Date    time.Time       `json:"date"`
	Balance decimal.Decimal `json:"balance"`
}

// ObligationType classifies a credit-report entry.
type ObligationType string

const (
	ObligationChecking        ObligationType = "checking"
	ObligationRevolvingCredit ObligationType = "revolving_credit"
	ObligationLoan            ObligationType = "loan"
	ObligationMortgage        ObligationType = "mortgage"
	ObligationOther           ObligationType = "other"
)

// LedgerEntry is one structured credit obligation row. Amount columns the
// report did not carry stay null; UnpaidAmount defaults to zero instead
// because arrears are absent far more often than unknown.
type LedgerEntry struct {
	ObligationType     ObligationType      `json:"obligationType"`
	CreditorName       string              `json:"creditorName"`
	CreditLimit        decimal.NullDecimal `json:"creditLimit"`
	OriginalAmount     decimal.NullDecimal `json:"originalAmount"`
	OutstandingBalance decimal.NullDecimal `json:"outstandingBalance"`
	UnpaidAmount       decimal.Decimal     `json:"unpaidAmount"`
}

// TraceLine captures what the parser did with each input line.
type TraceLine struct {
	Page    int    `json:"page"`
	Line    int    `json:"line"`
	Text    string `json:"text"`
	Outcome string `json:"outcome"`
	Detail  string `json:"detail,omitempty"`
}

// StatementResult holds the output of one bank statement parse.
type StatementResult struct {
	Dialect Dialect        `json:"dialect"`
	Points  []BalancePoint `json:"points"`
	Trace   []TraceLine    `json:"trace,omitempty"`
}

// CreditReportResult holds the output of one credit report parse.
type CreditReportResult struct {
	Entries []LedgerEntry `json:"entries"`
	Trace   []TraceLine   `json:"trace,omitempty"`
}
