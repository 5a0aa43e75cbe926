package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"pos-closing-service/internal/models"

	"github.com/google/uuid"
)

// MemoryClosureStore is an in-memory ClosureStore for tests and demo wiring.
type MemoryClosureStore struct {
	mu      sync.RWMutex
	records map[string]*models.ClosureRecord

	// FailForPeriod injects a write failure for specific period keys,
	// letting tests simulate per-day persistence failures in a bulk run.
	FailForPeriod map[models.PeriodKey]error
}

// NewMemoryClosureStore creates an empty in-memory closure store.
func NewMemoryClosureStore() *MemoryClosureStore {
	return &MemoryClosureStore{
		records:       make(map[string]*models.ClosureRecord),
		FailForPeriod: make(map[models.PeriodKey]error),
	}
}

func closureKey(organizationID string, periodType models.PeriodType, periodKey models.PeriodKey) string {
	return organizationID + "|" + string(periodType) + "|" + string(periodKey)
}

// UpsertByPeriod implements ClosureStore.
func (s *MemoryClosureStore) UpsertByPeriod(ctx context.Context, record *models.ClosureRecord) (*models.ClosureRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.FailForPeriod[record.PeriodKey]; err != nil {
		return nil, err
	}

	key := closureKey(record.OrganizationID, record.PeriodType, record.PeriodKey)
	stored := *record
	if existing, ok := s.records[key]; ok {
		stored.ID = existing.ID
		stored.CreatedAt = existing.CreatedAt
	} else {
		if stored.ID == "" {
			stored.ID = uuid.NewString()
		}
		stored.CreatedAt = time.Now().UTC()
	}
	stored.UpdatedAt = time.Now().UTC()
	s.records[key] = &stored

	copied := stored
	return &copied, nil
}

// GetByPeriod implements ClosureStore.
func (s *MemoryClosureStore) GetByPeriod(ctx context.Context, organizationID string, periodType models.PeriodType, periodKey models.PeriodKey) (*models.ClosureRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[closureKey(organizationID, periodType, periodKey)]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *record
	return &copied, nil
}

// ListByRange implements ClosureStore.
func (s *MemoryClosureStore) ListByRange(ctx context.Context, organizationID string, periodType models.PeriodType, fromKey, toKey models.PeriodKey) ([]*models.ClosureRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.ClosureRecord
	for _, record := range s.records {
		if record.OrganizationID != organizationID || record.PeriodType != periodType {
			continue
		}
		if record.PeriodKey < fromKey || record.PeriodKey > toKey {
			continue
		}
		copied := *record
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].PeriodKey < result[j].PeriodKey })
	return result, nil
}

// MemoryBankEntryStore is an in-memory BankEntryStore.
type MemoryBankEntryStore struct {
	mu      sync.RWMutex
	entries map[string]*models.BankEntry
}

// NewMemoryBankEntryStore creates an empty in-memory bank entry store.
func NewMemoryBankEntryStore() *MemoryBankEntryStore {
	return &MemoryBankEntryStore{entries: make(map[string]*models.BankEntry)}
}

// ReplaceForPeriod implements BankEntryStore.
func (s *MemoryBankEntryStore) ReplaceForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey, entries []*models.BankEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, entry := range s.entries {
		if entry.OrganizationID == organizationID && entry.PeriodKey == periodKey {
			delete(s.entries, id)
		}
	}
	for _, entry := range entries {
		copied := *entry
		s.entries[entry.ID] = &copied
	}
	return nil
}

// Get implements BankEntryStore.
func (s *MemoryBankEntryStore) Get(ctx context.Context, entryID string) (*models.BankEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[entryID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *entry
	return &copied, nil
}

// ListForPeriod implements BankEntryStore.
func (s *MemoryBankEntryStore) ListForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey) ([]*models.BankEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.BankEntry
	for _, entry := range s.entries {
		if entry.OrganizationID == organizationID && entry.PeriodKey == periodKey {
			copied := *entry
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// MemoryMatchStore is an in-memory MatchStore.
type MemoryMatchStore struct {
	mu      sync.RWMutex
	byID    map[string]*models.ReconciliationMatch
	byEntry map[string]string
}

// NewMemoryMatchStore creates an empty in-memory match store.
func NewMemoryMatchStore() *MemoryMatchStore {
	return &MemoryMatchStore{
		byID:    make(map[string]*models.ReconciliationMatch),
		byEntry: make(map[string]string),
	}
}

// UpsertByBankEntry implements MatchStore.
func (s *MemoryMatchStore) UpsertByBankEntry(ctx context.Context, match *models.ReconciliationMatch) (*models.ReconciliationMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *match
	if existingID, ok := s.byEntry[match.BankEntryID]; ok {
		stored.ID = existingID
	} else if stored.ID == "" {
		stored.ID = uuid.NewString()
	}
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}

	s.byID[stored.ID] = &stored
	s.byEntry[stored.BankEntryID] = stored.ID

	copied := stored
	return &copied, nil
}

// Get implements MatchStore.
func (s *MemoryMatchStore) Get(ctx context.Context, matchID string) (*models.ReconciliationMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	match, ok := s.byID[matchID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *match
	return &copied, nil
}

// GetByBankEntry implements MatchStore.
func (s *MemoryMatchStore) GetByBankEntry(ctx context.Context, bankEntryID string) (*models.ReconciliationMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matchID, ok := s.byEntry[bankEntryID]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *s.byID[matchID]
	return &copied, nil
}

// Update implements MatchStore.
func (s *MemoryMatchStore) Update(ctx context.Context, match *models.ReconciliationMatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byID[match.ID]; !ok {
		return ErrNotFound
	}
	copied := *match
	s.byID[match.ID] = &copied
	s.byEntry[match.BankEntryID] = match.ID
	return nil
}

// ListByStatus implements MatchStore.
func (s *MemoryMatchStore) ListByStatus(ctx context.Context, organizationID string, periodKey models.PeriodKey, status models.MatchStatus) ([]*models.ReconciliationMatch, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*models.ReconciliationMatch
	for _, match := range s.byID {
		if match.OrganizationID == organizationID && match.PeriodKey == periodKey && match.Status == status {
			copied := *match
			result = append(result, &copied)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].BankEntryID < result[j].BankEntryID })
	return result, nil
}

// DeleteForPeriod implements MatchStore.
func (s *MemoryMatchStore) DeleteForPeriod(ctx context.Context, organizationID string, periodKey models.PeriodKey) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, match := range s.byID {
		if match.OrganizationID == organizationID && match.PeriodKey == periodKey {
			delete(s.byEntry, match.BankEntryID)
			delete(s.byID, id)
		}
	}
	return nil
}
