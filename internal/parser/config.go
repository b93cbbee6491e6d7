package parser

import "github.com/shopspring/decimal"

// Config carries the tunable parsing heuristics. The thresholds here
// drifted between real document batches, so they are configuration, not
// constants.
type Config struct {
	// ReconcileTolerance absorbs rounding noise when a balance delta is
	// compared against a transaction amount. It is a rounding epsilon,
	// not a fuzzy-match knob: a genuine mismatch must stay a mismatch.
	ReconcileTolerance decimal.Decimal

	// AmountCeiling rejects transaction amounts whose magnitude exceeds
	// it. Misaligned captures of reference or account columns produce
	// absurdly large values that would otherwise pass the format check.
	AmountCeiling decimal.Decimal

	// PaymentCountCeiling and PaymentCountMinNumbers gate the
	// loan/mortgage rule that treats a leading small whole number as the
	// contractual payment count rather than an amount. The rule only
	// applies when the entry has at least PaymentCountMinNumbers values
	// and the first is a whole number below PaymentCountCeiling.
	PaymentCountCeiling    decimal.Decimal
	PaymentCountMinNumbers int

	// MaxEntryNumbers caps how many numbers one credit entry accumulates;
	// excess values on malformed blocks are dropped.
	MaxEntryNumbers int

	// Trace records a per-line outcome log in parse results.
	Trace bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		ReconcileTolerance:     decimal.NewFromFloat(0.02),
		AmountCeiling:          decimal.NewFromInt(1_000_000),
		PaymentCountCeiling:    decimal.NewFromInt(500),
		PaymentCountMinNumbers: 3,
		MaxEntryNumbers:        4,
	}
}
