// Package cashchain computes the day-to-day cash position chain used for
// closing a range of business days.
//
// The chain obeys two invariants at all times:
//
//	cashEndingSoll[i] = cashStarting[i] + cashSalesTotal[i]
//	cashStarting[i+1] = cashEndingIst[i]
//
// The counted (IST) value propagates forward, never the computed (SOLL)
// value: a counting difference on one day shifts every following day's
// expected position. All functions are pure value-in/value-out; callers
// never observe partial mutation.
package cashchain

import (
	"fmt"
	"time"

	"pos-closing-service/internal/models"

	"github.com/shopspring/decimal"
)

// DayInput is one business day requiring closure, with the cash sales total
// already aggregated from the ledger.
type DayInput struct {
	Date           time.Time
	CashSalesTotal decimal.Decimal
}

// Compute builds the cash chain for the given days. Days must be in strictly
// ascending date order; each day starts where the previous one ended and the
// counted value defaults to the expected value until an operator overrides it.
func Compute(days []DayInput, startingBalance decimal.Decimal) ([]models.CashChainLink, error) {
	if len(days) == 0 {
		return nil, fmt.Errorf("at least one day is required")
	}

	for i := 1; i < len(days); i++ {
		if !models.Day(days[i].Date).After(models.Day(days[i-1].Date)) {
			return nil, fmt.Errorf("days must be in strictly ascending order: %s does not follow %s",
				days[i].Date.Format("2006-01-02"), days[i-1].Date.Format("2006-01-02"))
		}
	}

	chain := make([]models.CashChainLink, len(days))
	starting := models.RoundAmount(startingBalance)

	for i, day := range days {
		soll := starting.Add(models.RoundAmount(day.CashSalesTotal))
		chain[i] = models.CashChainLink{
			Date:           models.Day(day.Date),
			CashStarting:   starting,
			CashSalesTotal: models.RoundAmount(day.CashSalesTotal),
			CashEndingSoll: soll,
			CashEndingIst:  soll,
			Difference:     decimal.Zero,
			IstCounted:     false,
		}
		starting = soll
	}

	return chain, nil
}

// ApplyCount records the counted ending balance for one day and cascades the
// recompute across all following days. Their own counted values are reset to
// the new expected values and must be re-entered; this is what keeps the
// chain internally consistent after any single edit.
//
// The input chain is not modified; a new chain is returned.
func ApplyCount(chain []models.CashChainLink, date time.Time, counted decimal.Decimal) ([]models.CashChainLink, error) {
	if len(chain) == 0 {
		return nil, fmt.Errorf("chain is empty")
	}

	index := -1
	for i := range chain {
		if models.SameDay(chain[i].Date, date) {
			index = i
			break
		}
	}
	if index < 0 {
		return nil, fmt.Errorf("no chain link for date %s", date.Format("2006-01-02"))
	}

	result := make([]models.CashChainLink, len(chain))
	copy(result, chain)

	ist := models.RoundAmount(counted)
	result[index].CashEndingIst = ist
	result[index].Difference = ist.Sub(result[index].CashEndingSoll)
	result[index].IstCounted = true

	// Cascade: each following day restarts from the previous counted value.
	for i := index + 1; i < len(result); i++ {
		result[i].CashStarting = result[i-1].CashEndingIst
		result[i].CashEndingSoll = result[i].CashStarting.Add(result[i].CashSalesTotal)
		result[i].CashEndingIst = result[i].CashEndingSoll
		result[i].Difference = decimal.Zero
		result[i].IstCounted = false
	}

	return result, nil
}

// Validate checks both chain invariants on every link. It returns the first
// violation found, or nil when the chain is consistent.
func Validate(chain []models.CashChainLink) error {
	for i := range chain {
		expectedSoll := chain[i].CashStarting.Add(chain[i].CashSalesTotal)
		if !chain[i].CashEndingSoll.Equal(expectedSoll) {
			return fmt.Errorf("link %s: expected ending %s != starting %s + sales %s",
				chain[i].Date.Format("2006-01-02"), chain[i].CashEndingSoll,
				chain[i].CashStarting, chain[i].CashSalesTotal)
		}

		expectedDiff := chain[i].CashEndingIst.Sub(chain[i].CashEndingSoll)
		if !chain[i].Difference.Equal(expectedDiff) {
			return fmt.Errorf("link %s: difference %s != counted %s - expected %s",
				chain[i].Date.Format("2006-01-02"), chain[i].Difference,
				chain[i].CashEndingIst, chain[i].CashEndingSoll)
		}

		if i > 0 && !chain[i].CashStarting.Equal(chain[i-1].CashEndingIst) {
			return fmt.Errorf("link %s: starting %s != previous counted ending %s",
				chain[i].Date.Format("2006-01-02"), chain[i].CashStarting,
				chain[i-1].CashEndingIst)
		}
	}
	return nil
}

// TotalDifference sums the counting differences across the whole chain.
func TotalDifference(chain []models.CashChainLink) decimal.Decimal {
	total := decimal.Zero
	for i := range chain {
		total = total.Add(chain[i].Difference)
	}
	return total
}
