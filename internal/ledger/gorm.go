package ledger

import (
	"context"
	"fmt"
	"time"

	"pos-closing-service/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// saleRow maps a sale transaction to its database table.
type saleRow struct {
	ID             string          `gorm:"primaryKey;size:64"`
	OrganizationID string          `gorm:"size:64;index:idx_sales_org_booked"`
	Method         string          `gorm:"size:16;not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BookedAt       time.Time       `gorm:"index:idx_sales_org_booked"`
}

func (saleRow) TableName() string { return "sales" }

// expenseRow maps an expense to its database table.
type expenseRow struct {
	ID             string          `gorm:"primaryKey;size:64"`
	OrganizationID string          `gorm:"size:64;index:idx_expenses_org_booked"`
	Method         string          `gorm:"size:16;not null"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BookedAt       time.Time       `gorm:"index:idx_expenses_org_booked"`
	Description    string          `gorm:"size:255"`
}

func (expenseRow) TableName() string { return "expenses" }

// movementRow maps a manual cash movement to its database table.
type movementRow struct {
	ID             string          `gorm:"primaryKey;size:64"`
	OrganizationID string          `gorm:"size:64;index:idx_movements_org_booked"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	BookedAt       time.Time       `gorm:"index:idx_movements_org_booked"`
	Description    string          `gorm:"size:255"`
}

func (movementRow) TableName() string { return "cash_movements" }

// GormSource reads the ledger from a relational database via gorm.
type GormSource struct {
	db *gorm.DB
}

// NewGormSource creates a ledger source over the given database handle.
func NewGormSource(db *gorm.DB) (*GormSource, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	return &GormSource{db: db}, nil
}

// Migrate creates the ledger tables if they do not exist.
func (g *GormSource) Migrate() error {
	return g.db.AutoMigrate(&saleRow{}, &expenseRow{}, &movementRow{})
}

// SalesForPeriod implements Source.
func (g *GormSource) SalesForPeriod(ctx context.Context, organizationID string, start, end time.Time) ([]*models.SaleTransaction, error) {
	var rows []saleRow
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND booked_at >= ? AND booked_at < ?", organizationID, start, end).
		Order("booked_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying sales: %w", err)
	}

	sales := make([]*models.SaleTransaction, 0, len(rows))
	for _, row := range rows {
		method, err := models.ParsePaymentMethod(row.Method)
		if err != nil {
			return nil, fmt.Errorf("sale %s: %w", row.ID, err)
		}
		sales = append(sales, &models.SaleTransaction{
			ID:       row.ID,
			Method:   method,
			Amount:   row.Amount,
			BookedAt: row.BookedAt,
		})
	}
	return sales, nil
}

// ExpensesForPeriod implements Source.
func (g *GormSource) ExpensesForPeriod(ctx context.Context, organizationID string, start, end time.Time) ([]*models.Expense, error) {
	var rows []expenseRow
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND booked_at >= ? AND booked_at < ?", organizationID, start, end).
		Order("booked_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying expenses: %w", err)
	}

	expenses := make([]*models.Expense, 0, len(rows))
	for _, row := range rows {
		method, err := models.ParsePaymentMethod(row.Method)
		if err != nil {
			return nil, fmt.Errorf("expense %s: %w", row.ID, err)
		}
		expenses = append(expenses, &models.Expense{
			ID:          row.ID,
			Method:      method,
			Amount:      row.Amount,
			BookedAt:    row.BookedAt,
			Description: row.Description,
		})
	}
	return expenses, nil
}

// CashMovements implements Source.
func (g *GormSource) CashMovements(ctx context.Context, organizationID string, start, end time.Time) ([]*models.CashMovement, error) {
	var rows []movementRow
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND booked_at >= ? AND booked_at < ?", organizationID, start, end).
		Order("booked_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("querying cash movements: %w", err)
	}

	movements := make([]*models.CashMovement, 0, len(rows))
	for _, row := range rows {
		movements = append(movements, &models.CashMovement{
			ID:          row.ID,
			Amount:      row.Amount,
			BookedAt:    row.BookedAt,
			Description: row.Description,
		})
	}
	return movements, nil
}
