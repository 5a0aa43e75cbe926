// Package matcher explains bank statement entries against internal records.
//
// For every bank entry the matcher builds a candidate pool — settlement
// batches grouped per payment provider, single transactions, unpaid
// expenses — scores each candidate for amount exactness, settlement-window
// date proximity and candidate uniqueness, and emits exactly one pending
// ReconciliationMatch per entry. Low confidence and unknown classification
// are ordinary outcomes, not errors: an unexplained entry is never dropped.
package matcher

import (
	"fmt"

	"pos-closing-service/internal/models"

	"github.com/shopspring/decimal"
)

// ProviderProfile describes the settlement behavior of one payment provider.
// Settlement lag is configured, never inferred: a provider that pays out
// "in 1-2 business days" gets exactly that window.
type ProviderProfile struct {
	// SettlementLagMinDays is the earliest payout, in days after the sale.
	SettlementLagMinDays int `json:"settlement_lag_min_days"`
	// SettlementLagMaxDays is the latest payout, in days after the sale.
	SettlementLagMaxDays int `json:"settlement_lag_max_days"`
}

// Contains reports whether a lag of the given whole days falls inside the
// provider's settlement window.
func (p ProviderProfile) Contains(lagDays int) bool {
	return lagDays >= p.SettlementLagMinDays && lagDays <= p.SettlementLagMaxDays
}

// WindowSize returns the width of the settlement window in days.
func (p ProviderProfile) WindowSize() int {
	return p.SettlementLagMaxDays - p.SettlementLagMinDays + 1
}

// Weights defines the relative importance of the scoring criteria.
type Weights struct {
	Amount     float64 `json:"amount"`
	Date       float64 `json:"date"`
	Uniqueness float64 `json:"uniqueness"`
}

// Validate checks the weights sum to 1.0 within a small epsilon.
func (w Weights) Validate() error {
	for name, v := range map[string]float64{"amount": w.Amount, "date": w.Date, "uniqueness": w.Uniqueness} {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s weight must be between 0.0 and 1.0: %f", name, v)
		}
	}
	total := w.Amount + w.Date + w.Uniqueness
	if total < 0.99 || total > 1.01 {
		return fmt.Errorf("weights must sum to 1.0, got %f", total)
	}
	return nil
}

// Config holds the matcher's tolerances, provider settlement windows and
// scoring weights.
type Config struct {
	// AmountTolerance is the absolute amount difference still considered a
	// candidate (covers provider fee rounding).
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`

	// DepositMinAmount is the threshold above which a large unexplained
	// credit with no candidates at all is classified deposit instead of
	// unknown. The deposit classification is a heuristic fallback.
	DepositMinAmount decimal.Decimal `json:"deposit_min_amount"`

	// Providers maps each card/wallet provider to its settlement window.
	// Cash and expenses always settle same-day and need no profile.
	Providers map[models.PaymentMethod]ProviderProfile `json:"providers"`

	// MaxBatchSize bounds the subset-sum search for settlement batches.
	MaxBatchSize int `json:"max_batch_size"`

	Weights Weights `json:"weights"`
}

// DefaultConfig returns the matcher configuration used in production:
// 5 Rappen amount tolerance, TWINT paying out in 1-2 days, SumUp in 1-3,
// and a 100.00 deposit threshold.
func DefaultConfig() *Config {
	return &Config{
		AmountTolerance:  decimal.NewFromFloat(0.05),
		DepositMinAmount: decimal.NewFromInt(100),
		Providers: map[models.PaymentMethod]ProviderProfile{
			models.PaymentTwint: {SettlementLagMinDays: 1, SettlementLagMaxDays: 2},
			models.PaymentSumUp: {SettlementLagMinDays: 1, SettlementLagMaxDays: 3},
		},
		MaxBatchSize: 12,
		Weights: Weights{
			Amount:     0.5,
			Date:       0.25,
			Uniqueness: 0.25,
		},
	}
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative: %s", c.AmountTolerance)
	}
	if c.DepositMinAmount.IsNegative() {
		return fmt.Errorf("deposit minimum amount cannot be negative: %s", c.DepositMinAmount)
	}
	if c.MaxBatchSize < 2 {
		return fmt.Errorf("max batch size must be at least 2: %d", c.MaxBatchSize)
	}
	for method, profile := range c.Providers {
		if !method.IsProvider() {
			return fmt.Errorf("settlement profile configured for non-provider method: %s", method)
		}
		if profile.SettlementLagMinDays < 0 {
			return fmt.Errorf("%s settlement lag minimum cannot be negative: %d", method, profile.SettlementLagMinDays)
		}
		if profile.SettlementLagMaxDays < profile.SettlementLagMinDays {
			return fmt.Errorf("%s settlement window is inverted: %d > %d",
				method, profile.SettlementLagMinDays, profile.SettlementLagMaxDays)
		}
	}
	if err := c.Weights.Validate(); err != nil {
		return fmt.Errorf("invalid weights: %w", err)
	}
	return nil
}

// ProfileFor returns the settlement window for a payment method. Cash gets
// the zero window (same-day settlement).
func (c *Config) ProfileFor(method models.PaymentMethod) ProviderProfile {
	if profile, ok := c.Providers[method]; ok {
		return profile
	}
	return ProviderProfile{}
}
