package ledger

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pos-closing-service/internal/models"

	"github.com/shopspring/decimal"
)

func day(dayOfMonth int) time.Time {
	return time.Date(2024, 3, dayOfMonth, 12, 0, 0, 0, time.UTC)
}

func seedSource() *MemorySource {
	source := NewMemorySource()
	source.AddSale("org-1", &models.SaleTransaction{ID: "s1", Method: models.PaymentCash, Amount: decimal.NewFromFloat(100.00), BookedAt: day(1)})
	source.AddSale("org-1", &models.SaleTransaction{ID: "s2", Method: models.PaymentTwint, Amount: decimal.NewFromFloat(55.50), BookedAt: day(1)})
	source.AddSale("org-1", &models.SaleTransaction{ID: "s3", Method: models.PaymentCash, Amount: decimal.NewFromFloat(40.00), BookedAt: day(2)})
	source.AddSale("org-2", &models.SaleTransaction{ID: "s4", Method: models.PaymentCash, Amount: decimal.NewFromFloat(999.00), BookedAt: day(1)})
	source.AddExpense("org-1", &models.Expense{ID: "e1", Method: models.PaymentCash, Amount: decimal.NewFromFloat(20.00), BookedAt: day(1), Description: "supplies"})
	source.AddCashMovement("org-1", &models.CashMovement{ID: "m1", Amount: decimal.NewFromFloat(-50.00), BookedAt: day(1), Description: "bank deposit"})
	return source
}

func TestMemorySourceScopesByOrganizationAndRange(t *testing.T) {
	source := seedSource()

	sales, err := source.SalesForPeriod(context.Background(), "org-1", day(1).Add(-12*time.Hour), day(2).Add(-12*time.Hour))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sales) != 2 {
		t.Fatalf("expected 2 sales for org-1 on day 1, got %d", len(sales))
	}
	for _, sale := range sales {
		if sale.ID == "s4" {
			t.Error("sale from another organization leaked into the result")
		}
	}
}

func TestMemorySourceFailureInjection(t *testing.T) {
	source := seedSource()
	source.FailSales = fmt.Errorf("connection reset")

	if _, err := source.SalesForPeriod(context.Background(), "org-1", day(1), day(2)); err == nil {
		t.Fatal("expected injected failure")
	}
}

func TestSumByMethodIncludesZeroMethods(t *testing.T) {
	totals := SumByMethod([]*models.SaleTransaction{
		{ID: "s1", Method: models.PaymentCash, Amount: decimal.NewFromFloat(100.00)},
	})

	if len(totals) != len(models.AllPaymentMethods) {
		t.Errorf("expected one total per method, got %d", len(totals))
	}
	if !totals[models.PaymentTwint].IsZero() {
		t.Error("method without sales must have a zero total")
	}
	if !totals[models.PaymentCash].Equal(decimal.NewFromFloat(100.00)) {
		t.Errorf("unexpected cash total: %s", totals[models.PaymentCash])
	}
}

func TestCashSalesTotal(t *testing.T) {
	total := CashSalesTotal([]*models.SaleTransaction{
		{ID: "s1", Method: models.PaymentCash, Amount: decimal.NewFromFloat(100.00)},
		{ID: "s2", Method: models.PaymentTwint, Amount: decimal.NewFromFloat(70.00)},
		{ID: "s3", Method: models.PaymentCash, Amount: decimal.NewFromFloat(25.50)},
	})

	if !total.Equal(decimal.NewFromFloat(125.50)) {
		t.Errorf("expected 125.50, got %s", total)
	}
}

func TestNetCashSales(t *testing.T) {
	sales := []*models.SaleTransaction{
		{ID: "s1", Method: models.PaymentCash, Amount: decimal.NewFromFloat(200.00)},
	}
	expenses := []*models.Expense{
		{ID: "e1", Method: models.PaymentCash, Amount: decimal.NewFromFloat(30.00)},
		{ID: "e2", Method: models.PaymentSumUp, Amount: decimal.NewFromFloat(99.00)},
	}
	movements := []*models.CashMovement{
		{ID: "m1", Amount: decimal.NewFromFloat(-50.00)},
	}

	// 200 cash sales - 30 cash expense - 50 deposited to bank
	net := NetCashSales(sales, expenses, movements)
	if !net.Equal(decimal.NewFromFloat(120.00)) {
		t.Errorf("expected 120.00, got %s", net)
	}
}

func TestMemorySourceHonoursContext(t *testing.T) {
	source := seedSource()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := source.SalesForPeriod(ctx, "org-1", day(1), day(2)); err == nil {
		t.Fatal("expected context cancellation error")
	}
}
