// Package store persists the engine's own state: closure records, imported
// bank entries and reconciliation matches. Interfaces are defined here;
// gorm-backed and in-memory implementations live alongside.
//
// Closure records are keyed uniquely by (organization, period type, period
// key) and written as idempotent upserts, so a retried or resumed bulk run
// cannot create duplicates. Matches are keyed uniquely by bank entry.
package store

import (
	"context"
	"errors"

	"pos-closing-service/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ClosureStore persists closure records.
type ClosureStore interface {
	// UpsertByPeriod inserts or updates the record for its period key.
	// The stored record is returned with its identifier populated.
	UpsertByPeriod(ctx context.Context, record *models.ClosureRecord) (*models.ClosureRecord, error)

	// GetByPeriod fetches the record for one period, or ErrNotFound.
	GetByPeriod(ctx context.Context, organizationID string, periodType models.PeriodType, periodKey models.PeriodKey) (*models.ClosureRecord, error)

	// ListByRange returns all records of one period type whose key falls
	// within [fromKey, toKey], ordered by period key.
	ListByRange(ctx context.Context, organizationID string, periodType models.PeriodType, fromKey, toKey models.PeriodKey) ([]*models.ClosureRecord, error)
}

// BankEntryStore persists imported bank entries.
type BankEntryStore interface {
	// ReplaceForPeriod atomically supersedes all entries of one period with
	// the given list. Re-importing a statement is idempotent through this.
	ReplaceForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey, entries []*models.BankEntry) error

	// Get fetches one bank entry, or ErrNotFound.
	Get(ctx context.Context, entryID string) (*models.BankEntry, error)

	// ListForPeriod returns all entries of one period ordered by date.
	ListForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey) ([]*models.BankEntry, error)
}

// MatchStore persists reconciliation matches, one per bank entry.
type MatchStore interface {
	// UpsertByBankEntry inserts or replaces the match for its bank entry.
	UpsertByBankEntry(ctx context.Context, match *models.ReconciliationMatch) (*models.ReconciliationMatch, error)

	// Get fetches one match by its identifier, or ErrNotFound.
	Get(ctx context.Context, matchID string) (*models.ReconciliationMatch, error)

	// GetByBankEntry fetches the match for one bank entry, or ErrNotFound.
	GetByBankEntry(ctx context.Context, bankEntryID string) (*models.ReconciliationMatch, error)

	// Update persists changes to an existing match.
	Update(ctx context.Context, match *models.ReconciliationMatch) error

	// ListByStatus returns all matches of one period with the given status.
	ListByStatus(ctx context.Context, organizationID string, periodKey models.PeriodKey, status models.MatchStatus) ([]*models.ReconciliationMatch, error)

	// DeleteForPeriod removes all matches of one period; used when a
	// statement re-import supersedes the previous import.
	DeleteForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey) error
}
