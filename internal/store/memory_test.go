package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"pos-closing-service/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func draftRecord(periodKey models.PeriodKey) *models.ClosureRecord {
	return &models.ClosureRecord{
		OrganizationID: "org-1",
		PeriodType:     models.PeriodDaily,
		PeriodKey:      periodKey,
		CashStarting:   decimal.NewFromFloat(100.00),
		CashEnding:     decimal.NewFromFloat(250.00),
		Status:         models.ClosureDraft,
	}
}

func TestClosureUpsertIsIdempotentByPeriod(t *testing.T) {
	s := NewMemoryClosureStore()
	ctx := context.Background()

	first, err := s.UpsertByPeriod(ctx, draftRecord("2024-03-01"))
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	second, err := s.UpsertByPeriod(ctx, draftRecord("2024-03-01"))
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID, "same period must reuse the same record")

	records, err := s.ListByRange(ctx, "org-1", models.PeriodDaily, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestClosureGetByPeriodNotFound(t *testing.T) {
	s := NewMemoryClosureStore()

	_, err := s.GetByPeriod(context.Background(), "org-1", models.PeriodDaily, "2024-03-01")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestClosureInjectedFailure(t *testing.T) {
	s := NewMemoryClosureStore()
	s.FailForPeriod["2024-03-02"] = fmt.Errorf("disk full")

	_, err := s.UpsertByPeriod(context.Background(), draftRecord("2024-03-01"))
	require.NoError(t, err)

	_, err = s.UpsertByPeriod(context.Background(), draftRecord("2024-03-02"))
	assert.Error(t, err)
}

func TestClosureListByRangeOrdersAndFilters(t *testing.T) {
	s := NewMemoryClosureStore()
	ctx := context.Background()

	for _, key := range []models.PeriodKey{"2024-03-03", "2024-03-01", "2024-03-02", "2024-04-01"} {
		_, err := s.UpsertByPeriod(ctx, draftRecord(key))
		require.NoError(t, err)
	}

	records, err := s.ListByRange(ctx, "org-1", models.PeriodDaily, "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, models.PeriodKey("2024-03-01"), records[0].PeriodKey)
	assert.Equal(t, models.PeriodKey("2024-03-03"), records[2].PeriodKey)
}

func entry(id string, day int, amount float64) *models.BankEntry {
	return &models.BankEntry{
		ID:             id,
		OrganizationID: "org-1",
		PeriodKey:      "2024-03",
		Date:           time.Date(2024, 3, day, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.NewFromFloat(amount),
		Direction:      models.DirectionCredit,
	}
}

func TestBankEntryReplaceForPeriodSupersedes(t *testing.T) {
	s := NewMemoryBankEntryStore()
	ctx := context.Background()

	require.NoError(t, s.ReplaceForPeriod(ctx, "org-1", "2024-03", []*models.BankEntry{
		entry("a", 1, 10), entry("b", 2, 20),
	}))
	require.NoError(t, s.ReplaceForPeriod(ctx, "org-1", "2024-03", []*models.BankEntry{
		entry("c", 3, 30),
	}))

	entries, err := s.ListForPeriod(ctx, "org-1", "2024-03")
	require.NoError(t, err)
	require.Len(t, entries, 1, "re-import must supersede the previous entries")
	assert.Equal(t, "c", entries[0].ID)

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
}

func pendingMatch(entryID string) *models.ReconciliationMatch {
	return &models.ReconciliationMatch{
		OrganizationID: "org-1",
		PeriodKey:      "2024-03",
		BankEntryID:    entryID,
		MatchType:      models.MatchUnknown,
		Status:         models.MatchPending,
	}
}

func TestMatchUpsertIsKeyedByBankEntry(t *testing.T) {
	s := NewMemoryMatchStore()
	ctx := context.Background()

	first, err := s.UpsertByBankEntry(ctx, pendingMatch("be-1"))
	require.NoError(t, err)

	replacement := pendingMatch("be-1")
	replacement.MatchType = models.MatchSingleTransaction
	second, err := s.UpsertByBankEntry(ctx, replacement)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID, "one match per bank entry")

	stored, err := s.GetByBankEntry(ctx, "be-1")
	require.NoError(t, err)
	assert.Equal(t, models.MatchSingleTransaction, stored.MatchType)
}

func TestMatchUpdateAndListByStatus(t *testing.T) {
	s := NewMemoryMatchStore()
	ctx := context.Background()

	match, err := s.UpsertByBankEntry(ctx, pendingMatch("be-1"))
	require.NoError(t, err)
	_, err = s.UpsertByBankEntry(ctx, pendingMatch("be-2"))
	require.NoError(t, err)

	match.Status = models.MatchApproved
	require.NoError(t, s.Update(ctx, match))

	pending, err := s.ListByStatus(ctx, "org-1", "2024-03", models.MatchPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "be-2", pending[0].BankEntryID)

	approved, err := s.ListByStatus(ctx, "org-1", "2024-03", models.MatchApproved)
	require.NoError(t, err)
	assert.Len(t, approved, 1)
}

func TestMatchUpdateUnknownID(t *testing.T) {
	s := NewMemoryMatchStore()
	match := pendingMatch("be-1")
	match.ID = "missing"

	assert.ErrorIs(t, s.Update(context.Background(), match), ErrNotFound)
}

func TestMatchDeleteForPeriod(t *testing.T) {
	s := NewMemoryMatchStore()
	ctx := context.Background()

	_, err := s.UpsertByBankEntry(ctx, pendingMatch("be-1"))
	require.NoError(t, err)

	require.NoError(t, s.DeleteForPeriod(ctx, "org-1", "2024-03"))

	_, err = s.GetByBankEntry(ctx, "be-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreInterfaceCompliance(t *testing.T) {
	var _ ClosureStore = NewMemoryClosureStore()
	var _ BankEntryStore = NewMemoryBankEntryStore()
	var _ MatchStore = NewMemoryMatchStore()

	var _ ClosureStore = (*GormClosureStore)(nil)
	var _ BankEntryStore = (*GormBankEntryStore)(nil)
	var _ MatchStore = (*GormMatchStore)(nil)
}
