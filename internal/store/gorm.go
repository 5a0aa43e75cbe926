package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-closing-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// closureRow maps a closure record to its database table. The by-method
// breakdowns are stored as JSON documents; the period triple carries a
// unique index so concurrent upserts cannot create duplicates.
type closureRow struct {
	ID               string `gorm:"primaryKey;size:36"`
	OrganizationID   string `gorm:"size:64;uniqueIndex:uidx_closures_period,priority:1"`
	PeriodType       string `gorm:"size:16;uniqueIndex:uidx_closures_period,priority:2"`
	PeriodKey        string `gorm:"size:16;uniqueIndex:uidx_closures_period,priority:3"`
	SalesByMethod    string `gorm:"type:text"`
	ExpensesByMethod string `gorm:"type:text"`
	CashStarting     decimal.Decimal `gorm:"type:decimal(12,2)"`
	CashEnding       decimal.Decimal `gorm:"type:decimal(12,2)"`
	CashDifference   decimal.Decimal `gorm:"type:decimal(12,2)"`
	Status           string          `gorm:"size:16;not null"`
	Notes            string
	ClosedAt         *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

func (closureRow) TableName() string { return "closure_records" }

// bankEntryRow maps a bank entry to its database table.
type bankEntryRow struct {
	ID             string          `gorm:"primaryKey;size:64"`
	OrganizationID string          `gorm:"size:64;index:idx_entries_org_period"`
	PeriodKey      string          `gorm:"size:16;index:idx_entries_org_period"`
	Date           time.Time       `gorm:"index"`
	Amount         decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Direction      string          `gorm:"size:8;not null"`
	Description    string
	RawReference   string `gorm:"size:128"`
}

func (bankEntryRow) TableName() string { return "bank_entries" }

// matchRow maps a reconciliation match to its database table. Matches are
// keyed uniquely by bank entry; the matched record list is a JSON document.
type matchRow struct {
	ID             string  `gorm:"primaryKey;size:36"`
	OrganizationID string  `gorm:"size:64;index:idx_matches_org_period"`
	PeriodKey      string  `gorm:"size:16;index:idx_matches_org_period"`
	BankEntryID    string  `gorm:"size:64;uniqueIndex"`
	MatchedRecords string  `gorm:"type:text"`
	MatchType      string  `gorm:"size:24;not null"`
	Confidence     float64 `gorm:"not null"`
	Status         string  `gorm:"size:16;not null;index"`
	Reasons        string  `gorm:"type:text"`
	Notes          string
	ResolvedAt     *time.Time
	CreatedAt      time.Time
}

func (matchRow) TableName() string { return "reconciliation_matches" }

// GormStore bundles the gorm-backed implementations of ClosureStore,
// BankEntryStore and MatchStore over one database handle.
type GormStore struct {
	Closures  *GormClosureStore
	Entries   *GormBankEntryStore
	Matches   *GormMatchStore

	db *gorm.DB
}

// GormClosureStore implements ClosureStore over a relational database.
type GormClosureStore struct {
	db *gorm.DB
}

// GormBankEntryStore implements BankEntryStore over a relational database.
type GormBankEntryStore struct {
	db *gorm.DB
}

// GormMatchStore implements MatchStore over a relational database.
type GormMatchStore struct {
	db *gorm.DB
}

// NewGormStore creates the store bundle over the given database handle.
func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle is required")
	}
	return &GormStore{
		Closures: &GormClosureStore{db: db},
		Entries:  &GormBankEntryStore{db: db},
		Matches:  &GormMatchStore{db: db},
		db:       db,
	}, nil
}

// Migrate creates the engine's own tables if they do not exist.
func (g *GormStore) Migrate() error {
	return g.db.AutoMigrate(&closureRow{}, &bankEntryRow{}, &matchRow{})
}

func encodeByMethod(byMethod map[models.PaymentMethod]decimal.Decimal) (string, error) {
	payload, err := json.Marshal(byMethod)
	if err != nil {
		return "", fmt.Errorf("encoding by-method totals: %w", err)
	}
	return string(payload), nil
}

func decodeByMethod(payload string) (map[models.PaymentMethod]decimal.Decimal, error) {
	byMethod := make(map[models.PaymentMethod]decimal.Decimal)
	if payload == "" {
		return byMethod, nil
	}
	if err := json.Unmarshal([]byte(payload), &byMethod); err != nil {
		return nil, fmt.Errorf("decoding by-method totals: %w", err)
	}
	return byMethod, nil
}

func toClosureRow(record *models.ClosureRecord) (*closureRow, error) {
	sales, err := encodeByMethod(record.SalesByMethod)
	if err != nil {
		return nil, err
	}
	expenses, err := encodeByMethod(record.ExpensesByMethod)
	if err != nil {
		return nil, err
	}
	return &closureRow{
		ID:               record.ID,
		OrganizationID:   record.OrganizationID,
		PeriodType:       string(record.PeriodType),
		PeriodKey:        string(record.PeriodKey),
		SalesByMethod:    sales,
		ExpensesByMethod: expenses,
		CashStarting:     record.CashStarting,
		CashEnding:       record.CashEnding,
		CashDifference:   record.CashDifference,
		Status:           string(record.Status),
		Notes:            record.Notes,
		ClosedAt:         record.ClosedAt,
		CreatedAt:        record.CreatedAt,
		UpdatedAt:        record.UpdatedAt,
	}, nil
}

func fromClosureRow(row *closureRow) (*models.ClosureRecord, error) {
	sales, err := decodeByMethod(row.SalesByMethod)
	if err != nil {
		return nil, err
	}
	expenses, err := decodeByMethod(row.ExpensesByMethod)
	if err != nil {
		return nil, err
	}
	return &models.ClosureRecord{
		ID:               row.ID,
		OrganizationID:   row.OrganizationID,
		PeriodType:       models.PeriodType(row.PeriodType),
		PeriodKey:        models.PeriodKey(row.PeriodKey),
		SalesByMethod:    sales,
		ExpensesByMethod: expenses,
		CashStarting:     row.CashStarting,
		CashEnding:       row.CashEnding,
		CashDifference:   row.CashDifference,
		Status:           models.ClosureStatus(row.Status),
		Notes:            row.Notes,
		ClosedAt:         row.ClosedAt,
		CreatedAt:        row.CreatedAt,
		UpdatedAt:        row.UpdatedAt,
	}, nil
}

// UpsertByPeriod implements ClosureStore. The write runs in a transaction:
// the existing row for the period is reused when present, so the period key
// stays the unit of idempotency.
func (g *GormClosureStore) UpsertByPeriod(ctx context.Context, record *models.ClosureRecord) (*models.ClosureRecord, error) {
	var stored *models.ClosureRecord

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing closureRow
		err := tx.Where("organization_id = ? AND period_type = ? AND period_key = ?",
			record.OrganizationID, string(record.PeriodType), string(record.PeriodKey)).
			First(&existing).Error

		row, convErr := toClosureRow(record)
		if convErr != nil {
			return convErr
		}

		switch {
		case err == nil:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			if row.ID == "" {
				row.ID = uuid.NewString()
			}
			row.CreatedAt = time.Now().UTC()
		default:
			return err
		}
		row.UpdatedAt = time.Now().UTC()

		if saveErr := tx.Save(row).Error; saveErr != nil {
			return saveErr
		}

		stored, convErr = fromClosureRow(row)
		return convErr
	})
	if err != nil {
		return nil, fmt.Errorf("upserting closure record for %s: %w", record.PeriodKey, err)
	}
	return stored, nil
}

// GetByPeriod implements ClosureStore.
func (g *GormClosureStore) GetByPeriod(ctx context.Context, organizationID string, periodType models.PeriodType, periodKey models.PeriodKey) (*models.ClosureRecord, error) {
	var row closureRow
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND period_type = ? AND period_key = ?",
			organizationID, string(periodType), string(periodKey)).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying closure record: %w", err)
	}
	return fromClosureRow(&row)
}

// ListByRange implements ClosureStore.
func (g *GormClosureStore) ListByRange(ctx context.Context, organizationID string, periodType models.PeriodType, fromKey, toKey models.PeriodKey) ([]*models.ClosureRecord, error) {
	var rows []closureRow
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND period_type = ? AND period_key BETWEEN ? AND ?",
			organizationID, string(periodType), string(fromKey), string(toKey)).
		Order("period_key").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing closure records: %w", err)
	}

	records := make([]*models.ClosureRecord, 0, len(rows))
	for i := range rows {
		record, convErr := fromClosureRow(&rows[i])
		if convErr != nil {
			return nil, convErr
		}
		records = append(records, record)
	}
	return records, nil
}

// ReplaceForPeriod implements BankEntryStore.
func (g *GormBankEntryStore) ReplaceForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey, entries []*models.BankEntry) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("organization_id = ? AND period_key = ?", organizationID, string(periodKey)).
			Delete(&bankEntryRow{}).Error
		if err != nil {
			return fmt.Errorf("superseding bank entries: %w", err)
		}

		for _, entry := range entries {
			row := bankEntryRow{
				ID:             entry.ID,
				OrganizationID: entry.OrganizationID,
				PeriodKey:      string(entry.PeriodKey),
				Date:           entry.Date,
				Amount:         entry.Amount,
				Direction:      string(entry.Direction),
				Description:    entry.Description,
				RawReference:   entry.RawReference,
			}
			if err := tx.Create(&row).Error; err != nil {
				return fmt.Errorf("inserting bank entry %s: %w", entry.ID, err)
			}
		}
		return nil
	})
}

// Get implements BankEntryStore.
func (g *GormBankEntryStore) Get(ctx context.Context, entryID string) (*models.BankEntry, error) {
	var row bankEntryRow
	err := g.db.WithContext(ctx).Where("id = ?", entryID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying bank entry: %w", err)
	}
	return fromBankEntryRow(&row), nil
}

// ListForPeriod implements BankEntryStore.
func (g *GormBankEntryStore) ListForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey) ([]*models.BankEntry, error) {
	var rows []bankEntryRow
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND period_key = ?", organizationID, string(periodKey)).
		Order("date, id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing bank entries: %w", err)
	}

	entries := make([]*models.BankEntry, 0, len(rows))
	for i := range rows {
		entries = append(entries, fromBankEntryRow(&rows[i]))
	}
	return entries, nil
}

func fromBankEntryRow(row *bankEntryRow) *models.BankEntry {
	return &models.BankEntry{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		PeriodKey:      models.PeriodKey(row.PeriodKey),
		Date:           row.Date,
		Amount:         row.Amount,
		Direction:      models.Direction(row.Direction),
		Description:    row.Description,
		RawReference:   row.RawReference,
	}
}

func toMatchRow(match *models.ReconciliationMatch) (*matchRow, error) {
	records, err := json.Marshal(match.MatchedRecords)
	if err != nil {
		return nil, fmt.Errorf("encoding matched records: %w", err)
	}
	reasons, err := json.Marshal(match.Reasons)
	if err != nil {
		return nil, fmt.Errorf("encoding reasons: %w", err)
	}
	return &matchRow{
		ID:             match.ID,
		OrganizationID: match.OrganizationID,
		PeriodKey:      string(match.PeriodKey),
		BankEntryID:    match.BankEntryID,
		MatchedRecords: string(records),
		MatchType:      string(match.MatchType),
		Confidence:     match.Confidence,
		Status:         string(match.Status),
		Reasons:        string(reasons),
		Notes:          match.Notes,
		ResolvedAt:     match.ResolvedAt,
		CreatedAt:      match.CreatedAt,
	}, nil
}

func fromMatchRow(row *matchRow) (*models.ReconciliationMatch, error) {
	var records []models.MatchedRecord
	if row.MatchedRecords != "" {
		if err := json.Unmarshal([]byte(row.MatchedRecords), &records); err != nil {
			return nil, fmt.Errorf("decoding matched records: %w", err)
		}
	}
	var reasons []string
	if row.Reasons != "" {
		if err := json.Unmarshal([]byte(row.Reasons), &reasons); err != nil {
			return nil, fmt.Errorf("decoding reasons: %w", err)
		}
	}
	return &models.ReconciliationMatch{
		ID:             row.ID,
		OrganizationID: row.OrganizationID,
		PeriodKey:      models.PeriodKey(row.PeriodKey),
		BankEntryID:    row.BankEntryID,
		MatchedRecords: records,
		MatchType:      models.MatchType(row.MatchType),
		Confidence:     row.Confidence,
		Status:         models.MatchStatus(row.Status),
		Reasons:        reasons,
		Notes:          row.Notes,
		ResolvedAt:     row.ResolvedAt,
		CreatedAt:      row.CreatedAt,
	}, nil
}

// UpsertByBankEntry implements MatchStore.
func (g *GormMatchStore) UpsertByBankEntry(ctx context.Context, match *models.ReconciliationMatch) (*models.ReconciliationMatch, error) {
	var stored *models.ReconciliationMatch

	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing matchRow
		err := tx.Where("bank_entry_id = ?", match.BankEntryID).First(&existing).Error

		row, convErr := toMatchRow(match)
		if convErr != nil {
			return convErr
		}

		switch {
		case err == nil:
			row.ID = existing.ID
			row.CreatedAt = existing.CreatedAt
		case errors.Is(err, gorm.ErrRecordNotFound):
			if row.ID == "" {
				row.ID = uuid.NewString()
			}
			if row.CreatedAt.IsZero() {
				row.CreatedAt = time.Now().UTC()
			}
		default:
			return err
		}

		if saveErr := tx.Save(row).Error; saveErr != nil {
			return saveErr
		}

		stored, convErr = fromMatchRow(row)
		return convErr
	})
	if err != nil {
		return nil, fmt.Errorf("upserting match for entry %s: %w", match.BankEntryID, err)
	}
	return stored, nil
}

// Get implements MatchStore.
func (g *GormMatchStore) Get(ctx context.Context, matchID string) (*models.ReconciliationMatch, error) {
	var row matchRow
	err := g.db.WithContext(ctx).Where("id = ?", matchID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying match: %w", err)
	}
	return fromMatchRow(&row)
}

// GetByBankEntry implements MatchStore.
func (g *GormMatchStore) GetByBankEntry(ctx context.Context, bankEntryID string) (*models.ReconciliationMatch, error) {
	var row matchRow
	err := g.db.WithContext(ctx).Where("bank_entry_id = ?", bankEntryID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying match by bank entry: %w", err)
	}
	return fromMatchRow(&row)
}

// Update implements MatchStore.
func (g *GormMatchStore) Update(ctx context.Context, match *models.ReconciliationMatch) error {
	row, err := toMatchRow(match)
	if err != nil {
		return err
	}
	result := g.db.WithContext(ctx).Model(&matchRow{}).Where("id = ?", match.ID).Updates(row)
	if result.Error != nil {
		return fmt.Errorf("updating match %s: %w", match.ID, result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListByStatus implements MatchStore.
func (g *GormMatchStore) ListByStatus(ctx context.Context, organizationID string, periodKey models.PeriodKey, status models.MatchStatus) ([]*models.ReconciliationMatch, error) {
	var rows []matchRow
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND period_key = ? AND status = ?",
			organizationID, string(periodKey), string(status)).
		Order("bank_entry_id").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing matches: %w", err)
	}

	matches := make([]*models.ReconciliationMatch, 0, len(rows))
	for i := range rows {
		match, convErr := fromMatchRow(&rows[i])
		if convErr != nil {
			return nil, convErr
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// DeleteForPeriod implements MatchStore.
func (g *GormMatchStore) DeleteForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey) error {
	err := g.db.WithContext(ctx).
		Where("organization_id = ? AND period_key = ?", organizationID, string(periodKey)).
		Delete(&matchRow{}).Error
	if err != nil {
		return fmt.Errorf("deleting matches for %s: %w", periodKey, err)
	}
	return nil
}
