package matcher

import (
	"sort"
	"time"

	"pos-closing-service/internal/models"

	"github.com/shopspring/decimal"
)

// Pools holds the internal records still awaiting a bank-side explanation
// for one reconciliation period.
type Pools struct {
	// Sales are transactions not yet explained by any approved match.
	Sales []*models.SaleTransaction
	// Expenses are unpaid expenses awaiting a bank debit.
	Expenses []*models.Expense
}

// Candidate is one possible explanation of a bank entry: a set of internal
// records whose total is within tolerance of the entry amount.
type Candidate struct {
	Type     models.MatchType
	Records  []models.MatchedRecord
	Total    decimal.Decimal
	Provider models.PaymentMethod
	// LagDays is the settlement lag between the newest matched record and
	// the bank entry date, in whole days.
	LagDays int
}

// buildCandidates assembles every viable explanation for one entry. Credits
// draw from sales (singles plus per-provider settlement batches); debits
// draw from expenses. Batches never mix providers.
func buildCandidates(entry *models.BankEntry, pools *Pools, cfg *Config) []Candidate {
	if entry.Direction == models.DirectionDebit {
		return expenseCandidates(entry, pools.Expenses, cfg)
	}

	var candidates []Candidate
	candidates = append(candidates, singleCandidates(entry, pools.Sales, cfg)...)
	for _, provider := range []models.PaymentMethod{models.PaymentTwint, models.PaymentSumUp} {
		candidates = append(candidates, batchCandidates(entry, pools.Sales, provider, cfg)...)
	}
	return candidates
}

// lagDays returns the whole-day settlement lag between a record date and
// the bank entry date. Negative when the bank entry predates the record.
func lagDays(recordAt time.Time, entryDate time.Time) int {
	return int(models.Day(entryDate).Sub(models.Day(recordAt)).Hours() / 24)
}

func singleCandidates(entry *models.BankEntry, sales []*models.SaleTransaction, cfg *Config) []Candidate {
	var candidates []Candidate
	for _, sale := range sales {
		lag := lagDays(sale.BookedAt, entry.Date)
		if !cfg.ProfileFor(sale.Method).Contains(lag) {
			continue
		}
		if !models.WithinTolerance(sale.Amount, entry.Amount, cfg.AmountTolerance) {
			continue
		}
		candidates = append(candidates, Candidate{
			Type: models.MatchSingleTransaction,
			Records: []models.MatchedRecord{
				{Type: models.RecordSale, ID: sale.ID, Amount: sale.Amount},
			},
			Total:    sale.Amount,
			Provider: sale.Method,
			LagDays:  lag,
		})
	}
	return candidates
}

func expenseCandidates(entry *models.BankEntry, expenses []*models.Expense, cfg *Config) []Candidate {
	var candidates []Candidate
	for _, expense := range expenses {
		// expenses settle same-day
		lag := lagDays(expense.BookedAt, entry.Date)
		if lag != 0 {
			continue
		}
		if !models.WithinTolerance(expense.Amount, entry.Amount, cfg.AmountTolerance) {
			continue
		}
		candidates = append(candidates, Candidate{
			Type: models.MatchExpense,
			Records: []models.MatchedRecord{
				{Type: models.RecordExpense, ID: expense.ID, Amount: expense.Amount},
			},
			Total: expense.Amount,
		})
	}
	return candidates
}

// batchCandidates searches for settlement batches of one provider: subsets
// of at least two same-provider transactions inside the settlement window
// whose sum is within tolerance of the entry amount. The search is a
// bounded depth-first subset-sum over amount-sorted transactions, pruned
// when the running total exceeds the target.
func batchCandidates(entry *models.BankEntry, sales []*models.SaleTransaction, provider models.PaymentMethod, cfg *Config) []Candidate {
	profile := cfg.ProfileFor(provider)

	var window []*models.SaleTransaction
	for _, sale := range sales {
		if sale.Method != provider {
			continue
		}
		if !profile.Contains(lagDays(sale.BookedAt, entry.Date)) {
			continue
		}
		window = append(window, sale)
	}
	if len(window) < 2 {
		return nil
	}

	sort.Slice(window, func(i, j int) bool {
		return window[i].Amount.LessThan(window[j].Amount)
	})

	target := entry.Amount
	upper := target.Add(cfg.AmountTolerance)

	var candidates []Candidate
	var pick func(start int, chosen []*models.SaleTransaction, total decimal.Decimal)
	pick = func(start int, chosen []*models.SaleTransaction, total decimal.Decimal) {
		if len(chosen) >= 2 && models.WithinTolerance(total, target, cfg.AmountTolerance) {
			records := make([]models.MatchedRecord, len(chosen))
			lag := 0
			for i, sale := range chosen {
				records[i] = models.MatchedRecord{Type: models.RecordSale, ID: sale.ID, Amount: sale.Amount}
				if l := lagDays(sale.BookedAt, entry.Date); l > lag {
					lag = l
				}
			}
			candidates = append(candidates, Candidate{
				Type:     models.MatchSettlementBatch,
				Records:  records,
				Total:    total,
				Provider: provider,
				LagDays:  lag,
			})
			// a batch already summing to the target is not extended; larger
			// supersets would only overshoot within tolerance noise
			return
		}
		if len(chosen) >= cfg.MaxBatchSize {
			return
		}
		for i := start; i < len(window); i++ {
			next := total.Add(window[i].Amount)
			if next.GreaterThan(upper) {
				// amounts are sorted ascending, nothing later fits either
				return
			}
			pick(i+1, append(chosen, window[i]), next)
		}
	}
	pick(0, nil, decimal.Zero)

	return candidates
}
