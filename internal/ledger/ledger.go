// Package ledger provides read-only access to the bookkeeping records the
// engine consumes: sales, expenses and manual cash movements. It is a pure
// data access boundary; all closure and matching logic lives elsewhere.
package ledger

import (
	"context"
	"time"

	"pos-closing-service/internal/models"

	"github.com/shopspring/decimal"
)

// Source is the read-only ledger boundary. All ranges are half-open
// [start, end) and scoped to one organization.
type Source interface {
	// SalesForPeriod returns all sale transactions booked within the range.
	SalesForPeriod(ctx context.Context, organizationID string, start, end time.Time) ([]*models.SaleTransaction, error)

	// ExpensesForPeriod returns all expenses booked within the range.
	ExpensesForPeriod(ctx context.Context, organizationID string, start, end time.Time) ([]*models.Expense, error)

	// CashMovements returns all manual cash movements within the range.
	CashMovements(ctx context.Context, organizationID string, start, end time.Time) ([]*models.CashMovement, error)
}

// SumByMethod aggregates sale amounts per payment method. Methods without
// sales are present with a zero total so closure records carry the full set.
func SumByMethod(sales []*models.SaleTransaction) map[models.PaymentMethod]decimal.Decimal {
	totals := make(map[models.PaymentMethod]decimal.Decimal, len(models.AllPaymentMethods))
	for _, method := range models.AllPaymentMethods {
		totals[method] = decimal.Zero
	}
	for _, sale := range sales {
		totals[sale.Method] = totals[sale.Method].Add(sale.Amount)
	}
	return totals
}

// SumExpensesByMethod aggregates expense amounts per payment method.
func SumExpensesByMethod(expenses []*models.Expense) map[models.PaymentMethod]decimal.Decimal {
	totals := make(map[models.PaymentMethod]decimal.Decimal, len(models.AllPaymentMethods))
	for _, method := range models.AllPaymentMethods {
		totals[method] = decimal.Zero
	}
	for _, expense := range expenses {
		totals[expense.Method] = totals[expense.Method].Add(expense.Amount)
	}
	return totals
}

// CashSalesTotal sums the cash portion of the given sales.
func CashSalesTotal(sales []*models.SaleTransaction) decimal.Decimal {
	total := decimal.Zero
	for _, sale := range sales {
		if sale.Method == models.PaymentCash {
			total = total.Add(sale.Amount)
		}
	}
	return total
}

// NetCashSales computes cash sales minus cash expenses and cash movements
// out of the drawer, i.e. the expected drawer delta for the range.
func NetCashSales(sales []*models.SaleTransaction, expenses []*models.Expense, movements []*models.CashMovement) decimal.Decimal {
	net := CashSalesTotal(sales)
	for _, expense := range expenses {
		if expense.Method == models.PaymentCash {
			net = net.Sub(expense.Amount)
		}
	}
	for _, movement := range movements {
		net = net.Add(movement.Amount)
	}
	return net
}
