package matcher

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pos-closing-service/internal/models"

	"github.com/shopspring/decimal"
)

func amount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func day(d int) time.Time {
	return time.Date(2025, 3, d, 0, 0, 0, 0, time.UTC)
}

func sale(id string, method models.PaymentMethod, amt string, bookedDay int) *models.SaleTransaction {
	return &models.SaleTransaction{
		ID:       id,
		Method:   method,
		Amount:   amount(amt),
		BookedAt: day(bookedDay).Add(14 * time.Hour),
	}
}

func entry(id string, amt string, entryDay int, direction models.Direction) *models.BankEntry {
	return &models.BankEntry{
		ID:             id,
		OrganizationID: "org-1",
		PeriodKey:      "2025-03",
		Date:           day(entryDay),
		Amount:         amount(amt),
		Direction:      direction,
	}
}

func newTestMatcher(t *testing.T, config *Config) *Matcher {
	t.Helper()
	m, err := New(config, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	counter := 0
	m.NewID = func() string {
		counter++
		return fmt.Sprintf("match-%d", counter)
	}
	return m
}

func TestMatchSettlementBatch(t *testing.T) {
	m := newTestMatcher(t, nil)

	// three SumUp sales on day 3 paid out as one 150.00 settlement on day 4
	pools := &Pools{
		Sales: []*models.SaleTransaction{
			sale("s1", models.PaymentSumUp, "50.00", 3),
			sale("s2", models.PaymentSumUp, "60.00", 3),
			sale("s3", models.PaymentSumUp, "40.00", 3),
		},
	}
	entries := []*models.BankEntry{entry("e1", "150.00", 4, models.DirectionCredit)}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, pools)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}

	match := matches[0]
	if match.MatchType != models.MatchSettlementBatch {
		t.Fatalf("match type = %s, want settlement_batch", match.MatchType)
	}
	if match.Status != models.MatchPending {
		t.Errorf("status = %s, want pending", match.Status)
	}
	if len(match.MatchedRecords) != 3 {
		t.Errorf("matched %d records, want 3", len(match.MatchedRecords))
	}
	if !match.MatchedTotal().Equal(amount("150.00")) {
		t.Errorf("matched total = %s, want 150.00", match.MatchedTotal())
	}
	if match.Confidence < 90 {
		t.Errorf("confidence = %.1f, want near-maximal for an exact unique batch", match.Confidence)
	}
	if len(match.Reasons) == 0 {
		t.Error("match should carry scoring reasons")
	}
}

func TestMatchNeverMixesProviders(t *testing.T) {
	m := newTestMatcher(t, nil)

	// 50 TWINT + 100 SumUp would sum to the entry, but cross-provider
	// batches must never form
	pools := &Pools{
		Sales: []*models.SaleTransaction{
			sale("t1", models.PaymentTwint, "50.00", 3),
			sale("s1", models.PaymentSumUp, "100.00", 3),
		},
	}
	entries := []*models.BankEntry{entry("e1", "150.00", 4, models.DirectionCredit)}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, pools)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if matches[0].MatchType == models.MatchSettlementBatch {
		t.Fatalf("formed a cross-provider batch: %+v", matches[0].MatchedRecords)
	}
}

func TestMatchSingleTransaction(t *testing.T) {
	m := newTestMatcher(t, nil)

	pools := &Pools{
		Sales: []*models.SaleTransaction{
			sale("t1", models.PaymentTwint, "89.90", 3),
		},
	}
	entries := []*models.BankEntry{entry("e1", "89.90", 4, models.DirectionCredit)}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, pools)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	match := matches[0]
	if match.MatchType != models.MatchSingleTransaction {
		t.Fatalf("match type = %s, want single_transaction", match.MatchType)
	}
	if match.MatchedRecords[0].ID != "t1" {
		t.Errorf("matched record = %s, want t1", match.MatchedRecords[0].ID)
	}
}

func TestMatchRespectsSettlementWindow(t *testing.T) {
	m := newTestMatcher(t, nil)

	// TWINT settles in 1-2 days; a sale 5 days before the entry is outside
	pools := &Pools{
		Sales: []*models.SaleTransaction{
			sale("t1", models.PaymentTwint, "75.00", 1),
		},
	}
	entries := []*models.BankEntry{entry("e1", "75.00", 6, models.DirectionCredit)}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, pools)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if matches[0].MatchType == models.MatchSingleTransaction {
		t.Error("sale outside the settlement window must not match")
	}
}

func TestMatchExpenseDebit(t *testing.T) {
	m := newTestMatcher(t, nil)

	pools := &Pools{
		Expenses: []*models.Expense{
			{ID: "x1", Method: models.PaymentCash, Amount: amount("42.50"), BookedAt: day(3).Add(9 * time.Hour)},
		},
	}
	entries := []*models.BankEntry{entry("e1", "42.50", 3, models.DirectionDebit)}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, pools)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	match := matches[0]
	if match.MatchType != models.MatchExpense {
		t.Fatalf("match type = %s, want expense", match.MatchType)
	}
	if match.MatchedRecords[0].Type != models.RecordExpense {
		t.Errorf("record type = %s, want expense", match.MatchedRecords[0].Type)
	}
}

func TestMatchUnexplainedLargeCreditIsDeposit(t *testing.T) {
	m := newTestMatcher(t, nil)

	entries := []*models.BankEntry{entry("e1", "500.00", 3, models.DirectionCredit)}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, &Pools{})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	match := matches[0]
	if match.MatchType != models.MatchDeposit {
		t.Fatalf("match type = %s, want deposit", match.MatchType)
	}
	if match.Status != models.MatchPending {
		t.Errorf("status = %s, want pending (deposit guesses still need review)", match.Status)
	}
	if match.Confidence >= 50 {
		t.Errorf("confidence = %.1f, deposit heuristic must score low", match.Confidence)
	}
}

func TestMatchUnexplainedSmallCreditIsUnknown(t *testing.T) {
	m := newTestMatcher(t, nil)

	entries := []*models.BankEntry{entry("e1", "12.00", 3, models.DirectionCredit)}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, &Pools{})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if matches[0].MatchType != models.MatchUnknown {
		t.Fatalf("match type = %s, want unknown", matches[0].MatchType)
	}
	if matches[0].Confidence != 0 {
		t.Errorf("confidence = %.1f, want 0", matches[0].Confidence)
	}
}

func TestMatchDepositThresholdIsConfigurable(t *testing.T) {
	config := DefaultConfig()
	config.DepositMinAmount = amount("1000.00")
	m := newTestMatcher(t, config)

	entries := []*models.BankEntry{entry("e1", "500.00", 3, models.DirectionCredit)}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, &Pools{})
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if matches[0].MatchType != models.MatchUnknown {
		t.Errorf("match type = %s, want unknown below the raised threshold", matches[0].MatchType)
	}
}

func TestMatchAmbiguityLowersConfidence(t *testing.T) {
	m := newTestMatcher(t, nil)

	unique := &Pools{Sales: []*models.SaleTransaction{
		sale("t1", models.PaymentTwint, "60.00", 3),
	}}
	ambiguous := &Pools{Sales: []*models.SaleTransaction{
		sale("t1", models.PaymentTwint, "60.00", 3),
		sale("t2", models.PaymentTwint, "60.00", 3),
		sale("t3", models.PaymentTwint, "60.00", 3),
	}}
	entries := []*models.BankEntry{entry("e1", "60.00", 4, models.DirectionCredit)}

	uniqueMatches, err := m.Match(context.Background(), "org-1", "2025-03", entries, unique)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	ambiguousMatches, err := m.Match(context.Background(), "org-1", "2025-03", entries, ambiguous)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}

	if ambiguousMatches[0].Confidence >= uniqueMatches[0].Confidence {
		t.Errorf("ambiguous confidence %.1f should be below unique confidence %.1f",
			ambiguousMatches[0].Confidence, uniqueMatches[0].Confidence)
	}
}

func TestMatchProducesOneMatchPerEntry(t *testing.T) {
	m := newTestMatcher(t, nil)

	pools := &Pools{Sales: []*models.SaleTransaction{
		sale("t1", models.PaymentTwint, "30.00", 3),
	}}
	entries := []*models.BankEntry{
		entry("e1", "30.00", 4, models.DirectionCredit),
		entry("e2", "999.99", 4, models.DirectionCredit),
		entry("e3", "7.35", 4, models.DirectionDebit),
	}

	matches, err := m.Match(context.Background(), "org-1", "2025-03", entries, pools)
	if err != nil {
		t.Fatalf("Match failed: %v", err)
	}
	if len(matches) != len(entries) {
		t.Fatalf("got %d matches for %d entries", len(matches), len(entries))
	}
	for i, match := range matches {
		if match == nil {
			t.Fatalf("match %d is nil", i)
		}
		if match.BankEntryID != entries[i].ID {
			t.Errorf("match %d entry = %s, want %s (input order preserved)", i, match.BankEntryID, entries[i].ID)
		}
		if err := match.Validate(); err != nil {
			t.Errorf("match %d invalid: %v", i, err)
		}
	}
}

func TestMatchRequiresOrganization(t *testing.T) {
	m := newTestMatcher(t, nil)
	if _, err := m.Match(context.Background(), "", "2025-03", nil, nil); err == nil {
		t.Fatal("expected error for missing organization")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"default is valid", func(c *Config) {}, false},
		{"negative tolerance", func(c *Config) { c.AmountTolerance = amount("-0.01") }, true},
		{"inverted window", func(c *Config) {
			c.Providers[models.PaymentTwint] = ProviderProfile{SettlementLagMinDays: 3, SettlementLagMaxDays: 1}
		}, true},
		{"profile for cash", func(c *Config) {
			c.Providers[models.PaymentCash] = ProviderProfile{}
		}, true},
		{"batch size too small", func(c *Config) { c.MaxBatchSize = 1 }, true},
		{"weights off balance", func(c *Config) { c.Weights = Weights{Amount: 0.9, Date: 0.9, Uniqueness: 0.9} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			err := config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
