package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pos-closing-service/internal/models"
)

// MemorySource is an in-memory ledger source used by tests and demo wiring.
// It is safe for concurrent reads and writes.
type MemorySource struct {
	mu        sync.RWMutex
	sales     []*models.SaleTransaction
	expenses  []*models.Expense
	movements []*models.CashMovement
	orgByID   map[string]string

	// FailSales makes SalesForPeriod return an error; lets tests simulate
	// ledger query failures.
	FailSales error
}

// NewMemorySource creates an empty in-memory ledger source.
func NewMemorySource() *MemorySource {
	return &MemorySource{orgByID: make(map[string]string)}
}

// AddSale records a sale for the given organization.
func (m *MemorySource) AddSale(organizationID string, sale *models.SaleTransaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sales = append(m.sales, sale)
	m.orgByID[sale.ID] = organizationID
}

// AddExpense records an expense for the given organization.
func (m *MemorySource) AddExpense(organizationID string, expense *models.Expense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses = append(m.expenses, expense)
	m.orgByID[expense.ID] = organizationID
}

// AddCashMovement records a cash movement for the given organization.
func (m *MemorySource) AddCashMovement(organizationID string, movement *models.CashMovement) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.movements = append(m.movements, movement)
	m.orgByID[movement.ID] = organizationID
}

// SalesForPeriod implements Source.
func (m *MemorySource) SalesForPeriod(ctx context.Context, organizationID string, start, end time.Time) ([]*models.SaleTransaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.FailSales != nil {
		return nil, fmt.Errorf("sales query: %w", m.FailSales)
	}

	var result []*models.SaleTransaction
	for _, sale := range m.sales {
		if m.orgByID[sale.ID] == organizationID && inRange(sale.BookedAt, start, end) {
			result = append(result, sale)
		}
	}
	return result, nil
}

// ExpensesForPeriod implements Source.
func (m *MemorySource) ExpensesForPeriod(ctx context.Context, organizationID string, start, end time.Time) ([]*models.Expense, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.Expense
	for _, expense := range m.expenses {
		if m.orgByID[expense.ID] == organizationID && inRange(expense.BookedAt, start, end) {
			result = append(result, expense)
		}
	}
	return result, nil
}

// CashMovements implements Source.
func (m *MemorySource) CashMovements(ctx context.Context, organizationID string, start, end time.Time) ([]*models.CashMovement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []*models.CashMovement
	for _, movement := range m.movements {
		if m.orgByID[movement.ID] == organizationID && inRange(movement.BookedAt, start, end) {
			result = append(result, movement)
		}
	}
	return result, nil
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
