package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestPaymentMethodIsValid(t *testing.T) {
	for _, method := range AllPaymentMethods {
		if !method.IsValid() {
			t.Errorf("expected %s to be valid", method)
		}
	}

	if PaymentMethod("paypal").IsValid() {
		t.Error("expected unsupported method to be invalid")
	}
}

func TestPaymentMethodIsProvider(t *testing.T) {
	if PaymentCash.IsProvider() {
		t.Error("cash must not be a provider method")
	}
	if !PaymentTwint.IsProvider() || !PaymentSumUp.IsProvider() {
		t.Error("twint and sumup must be provider methods")
	}
}

func TestParsePaymentMethod(t *testing.T) {
	tests := []struct {
		input    string
		expected PaymentMethod
		wantErr  bool
	}{
		{"cash", PaymentCash, false},
		{"  TWINT ", PaymentTwint, false},
		{"SumUp", PaymentSumUp, false},
		{"card", PaymentSumUp, false},
		{"bitcoin", "", true},
	}

	for _, tt := range tests {
		method, err := ParsePaymentMethod(tt.input)
		if tt.wantErr {
			if err == nil {
				t.Errorf("expected error for input %q", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("unexpected error for input %q: %v", tt.input, err)
			continue
		}
		if method != tt.expected {
			t.Errorf("input %q: expected %s, got %s", tt.input, tt.expected, method)
		}
	}
}

func TestPeriodKeyBounds(t *testing.T) {
	start, end, err := PeriodKey("2024-03-15").Bounds(PeriodDaily)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Format("2006-01-02") != "2024-03-15" {
		t.Errorf("unexpected start: %s", start)
	}
	if end.Sub(start) != 24*time.Hour {
		t.Errorf("daily period must span one day, got %s", end.Sub(start))
	}

	start, end, err = PeriodKey("2024-02").Bounds(PeriodMonthly)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start.Day() != 1 || end.Format("2006-01-02") != "2024-03-01" {
		t.Errorf("unexpected monthly bounds: %s .. %s", start, end)
	}

	if _, _, err := PeriodKey("not-a-date").Bounds(PeriodDaily); err == nil {
		t.Error("expected error for malformed daily key")
	}
}

func TestKeyFor(t *testing.T) {
	at := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)

	if key := KeyFor(PeriodDaily, at); key != "2024-03-15" {
		t.Errorf("unexpected daily key: %s", key)
	}
	if key := KeyFor(PeriodMonthly, at); key != "2024-03" {
		t.Errorf("unexpected monthly key: %s", key)
	}
}

func TestClosureStatusTransitions(t *testing.T) {
	tests := []struct {
		from    ClosureStatus
		to      ClosureStatus
		allowed bool
	}{
		{ClosureDraft, ClosureClosed, true},
		{ClosureDraft, ClosureCorrected, false},
		{ClosureClosed, ClosureCorrected, true},
		{ClosureClosed, ClosureDraft, false},
		{ClosureCorrected, ClosureClosed, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.allowed {
			t.Errorf("%s -> %s: expected allowed=%v, got %v", tt.from, tt.to, tt.allowed, got)
		}
	}
}

func TestClosureRecordFrozen(t *testing.T) {
	record := &ClosureRecord{Status: ClosureDraft}
	if record.IsFrozen() {
		t.Error("draft record must not be frozen")
	}

	record.Status = ClosureClosed
	if !record.IsFrozen() {
		t.Error("closed record must be frozen")
	}

	record.Status = ClosureCorrected
	if !record.IsFrozen() {
		t.Error("corrected record must be frozen")
	}
}

func TestClosureRecordValidate(t *testing.T) {
	closedAt := time.Date(2024, 3, 16, 6, 0, 0, 0, time.UTC)
	record := &ClosureRecord{
		OrganizationID: "org-1",
		PeriodType:     PeriodDaily,
		PeriodKey:      "2024-03-15",
		Status:         ClosureClosed,
		ClosedAt:       &closedAt,
	}
	if err := record.Validate(); err != nil {
		t.Errorf("expected valid record, got: %v", err)
	}

	record.ClosedAt = nil
	if err := record.Validate(); err == nil {
		t.Error("closed record without closed_at must be invalid")
	}

	record.OrganizationID = ""
	if err := record.Validate(); err == nil {
		t.Error("record without organization must be invalid")
	}
}

func TestClosureRecordTotals(t *testing.T) {
	record := &ClosureRecord{
		SalesByMethod: map[PaymentMethod]decimal.Decimal{
			PaymentCash:  decimal.NewFromFloat(200.00),
			PaymentTwint: decimal.NewFromFloat(150.50),
		},
		ExpensesByMethod: map[PaymentMethod]decimal.Decimal{
			PaymentCash: decimal.NewFromFloat(30.00),
		},
	}

	if !record.TotalSales().Equal(decimal.NewFromFloat(350.50)) {
		t.Errorf("unexpected total sales: %s", record.TotalSales())
	}
	if !record.TotalExpenses().Equal(decimal.NewFromFloat(30.00)) {
		t.Errorf("unexpected total expenses: %s", record.TotalExpenses())
	}
}

func TestBankEntrySignedAmount(t *testing.T) {
	entry := &BankEntry{
		Amount:    decimal.NewFromFloat(120.00),
		Direction: DirectionDebit,
	}
	if !entry.SignedAmount().Equal(decimal.NewFromFloat(-120.00)) {
		t.Errorf("debit must be negative, got %s", entry.SignedAmount())
	}

	entry.Direction = DirectionCredit
	if !entry.SignedAmount().Equal(decimal.NewFromFloat(120.00)) {
		t.Errorf("credit must stay positive, got %s", entry.SignedAmount())
	}
}

func TestBankEntryValidate(t *testing.T) {
	entry := &BankEntry{
		ID:        "be-1",
		Date:      time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC),
		Amount:    decimal.NewFromFloat(50.00),
		Direction: DirectionCredit,
	}
	if err := entry.Validate(); err != nil {
		t.Errorf("expected valid entry, got: %v", err)
	}

	entry.Amount = decimal.Zero
	if err := entry.Validate(); err == nil {
		t.Error("zero amount must be invalid")
	}

	entry.Amount = decimal.NewFromFloat(50.00)
	entry.Direction = "sideways"
	if err := entry.Validate(); err == nil {
		t.Error("unknown direction must be invalid")
	}
}

func TestMatchStatusTerminal(t *testing.T) {
	if MatchPending.IsTerminal() || MatchRejected.IsTerminal() {
		t.Error("pending and rejected must not be terminal")
	}
	if !MatchApproved.IsTerminal() || !MatchResolvedUnmatched.IsTerminal() {
		t.Error("approved and unmatched must be terminal")
	}
}

func TestReconciliationMatchMatchedTotal(t *testing.T) {
	match := &ReconciliationMatch{
		MatchedRecords: []MatchedRecord{
			{Type: RecordSale, ID: "s1", Amount: decimal.NewFromFloat(50.00)},
			{Type: RecordSale, ID: "s2", Amount: decimal.NewFromFloat(100.00)},
		},
	}
	if !match.MatchedTotal().Equal(decimal.NewFromFloat(150.00)) {
		t.Errorf("unexpected matched total: %s", match.MatchedTotal())
	}
}

func TestReconciliationMatchValidate(t *testing.T) {
	match := &ReconciliationMatch{
		BankEntryID: "be-1",
		MatchType:   MatchSingleTransaction,
		Confidence:  87.5,
		Status:      MatchPending,
	}
	if err := match.Validate(); err != nil {
		t.Errorf("expected valid match, got: %v", err)
	}

	match.Confidence = 120
	if err := match.Validate(); err == nil {
		t.Error("confidence above 100 must be invalid")
	}

	match.Confidence = 50
	match.MatchType = "guesswork"
	if err := match.Validate(); err == nil {
		t.Error("unknown match type must be invalid")
	}
}

func TestWithinTolerance(t *testing.T) {
	tolerance := decimal.NewFromFloat(0.05)

	if !WithinTolerance(decimal.NewFromFloat(100.00), decimal.NewFromFloat(100.04), tolerance) {
		t.Error("difference inside tolerance must match")
	}
	if WithinTolerance(decimal.NewFromFloat(100.00), decimal.NewFromFloat(100.06), tolerance) {
		t.Error("difference outside tolerance must not match")
	}
}
