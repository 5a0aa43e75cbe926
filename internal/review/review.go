// Package review is the human decision layer over reconciliation matches:
// approving or rejecting proposed matches, constructing manual matches that
// bypass the scorer, and explicitly resolving entries with no internal
// counterpart. Every bank entry has to reach a terminal state before a
// period counts as reconciled.
package review

import (
	"context"
	"strings"
	"time"

	"pos-closing-service/internal/models"
	"pos-closing-service/internal/store"
	"pos-closing-service/pkg/errors"
	"pos-closing-service/pkg/logger"

	"github.com/google/uuid"
)

// Workflow applies review decisions to stored matches.
type Workflow struct {
	matches store.MatchStore
	entries store.BankEntryStore
	logger  logger.Logger

	// NewID mints IDs for manual matches; overridable for tests.
	NewID func() string
}

// NewWorkflow creates a review workflow over the given stores.
func NewWorkflow(matches store.MatchStore, entries store.BankEntryStore) (*Workflow, error) {
	if matches == nil || entries == nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "review workflow", nil, nil).
			WithSuggestion("provide both a match store and a bank entry store")
	}
	return &Workflow{
		matches: matches,
		entries: entries,
		logger:  logger.GetGlobalLogger().WithComponent("review"),
		NewID:   uuid.NewString,
	}, nil
}

// PendingMatches lists the matches of one period still awaiting a decision.
func (w *Workflow) PendingMatches(ctx context.Context, organizationID string, periodKey models.PeriodKey) ([]*models.ReconciliationMatch, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, errors.SystemicError(errors.CodeNoOrganization, "listing pending matches", nil)
	}
	matches, err := w.matches.ListByStatus(ctx, organizationID, periodKey, models.MatchPending)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "pending matches", err)
	}
	return matches, nil
}

// Approve locks a pending match as the accepted explanation for its entry.
func (w *Workflow) Approve(ctx context.Context, matchID string) (*models.ReconciliationMatch, error) {
	match, err := w.loadForDecision(ctx, matchID)
	if err != nil {
		return nil, err
	}

	match.Status = models.MatchApproved
	now := time.Now().UTC()
	match.ResolvedAt = &now

	if err := w.matches.Update(ctx, match); err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "reconciliation match", err)
	}
	w.logger.WithField("match_id", matchID).Info("match approved")
	return match, nil
}

// Reject discards a pending match and returns its bank entry to the
// unmatched pool; the entry then needs a manual match or an explicit
// unmatched resolution.
func (w *Workflow) Reject(ctx context.Context, matchID string) (*models.ReconciliationMatch, error) {
	match, err := w.loadForDecision(ctx, matchID)
	if err != nil {
		return nil, err
	}

	match.Status = models.MatchRejected
	now := time.Now().UTC()
	match.ResolvedAt = &now

	if err := w.matches.Update(ctx, match); err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "reconciliation match", err)
	}
	w.logger.WithField("match_id", matchID).Info("match rejected, entry back in unmatched pool")
	return match, nil
}

// ManualMatch constructs an operator-chosen match for a bank entry,
// bypassing the scorer. Notes are mandatory: a manual override without an
// audit trail is not acceptable. The match supersedes any non-approved
// match for the entry and is created already approved.
func (w *Workflow) ManualMatch(ctx context.Context, bankEntryID string, chosen []models.MatchedRecord, notes string) (*models.ReconciliationMatch, error) {
	if strings.TrimSpace(notes) == "" {
		return nil, errors.InputError(errors.CodeMissingField, "notes", notes).
			WithSuggestion("manual matches require a note documenting the override reason")
	}
	if len(chosen) == 0 {
		return nil, errors.InputError(errors.CodeMissingField, "chosenCandidates", nil)
	}

	entry, err := w.entries.Get(ctx, bankEntryID)
	if err == store.ErrNotFound {
		return nil, errors.PersistenceError(errors.CodeRecordNotFound, "bank entry", err)
	}
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "bank entry", err)
	}

	if existing, err := w.matches.GetByBankEntry(ctx, bankEntryID); err == nil && existing.Status.IsTerminal() {
		return nil, errors.PersistenceError(errors.CodeInvalidState, "reconciliation match", nil).
			WithContext("status", existing.Status).
			WithSuggestion("the entry is already resolved")
	}

	now := time.Now().UTC()
	matchType := models.MatchSingleTransaction
	if len(chosen) > 1 {
		matchType = models.MatchSettlementBatch
	}
	if chosen[0].Type == models.RecordExpense {
		matchType = models.MatchExpense
	}

	match := &models.ReconciliationMatch{
		ID:             w.NewID(),
		OrganizationID: entry.OrganizationID,
		PeriodKey:      entry.PeriodKey,
		BankEntryID:    bankEntryID,
		MatchedRecords: chosen,
		MatchType:      matchType,
		Confidence:     100,
		Status:         models.MatchApproved,
		Reasons:        []string{"manual match"},
		Notes:          notes,
		ResolvedAt:     &now,
		CreatedAt:      now,
	}

	stored, err := w.matches.UpsertByBankEntry(ctx, match)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "reconciliation match", err)
	}
	w.logger.WithFields(logger.Fields{
		"bank_entry": bankEntryID,
		"records":    len(chosen),
	}).Info("manual match created")
	return stored, nil
}

// MarkUnmatched resolves a bank entry that has no internal counterpart
// (bank fees, owner deposits). The reason is mandatory; the resulting state
// is terminal.
func (w *Workflow) MarkUnmatched(ctx context.Context, bankEntryID, reason, notes string) (*models.ReconciliationMatch, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.InputError(errors.CodeMissingField, "reason", reason)
	}

	entry, err := w.entries.Get(ctx, bankEntryID)
	if err == store.ErrNotFound {
		return nil, errors.PersistenceError(errors.CodeRecordNotFound, "bank entry", err)
	}
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "bank entry", err)
	}

	if existing, err := w.matches.GetByBankEntry(ctx, bankEntryID); err == nil && existing.Status.IsTerminal() {
		return nil, errors.PersistenceError(errors.CodeInvalidState, "reconciliation match", nil).
			WithContext("status", existing.Status)
	}

	now := time.Now().UTC()
	match := &models.ReconciliationMatch{
		ID:             w.NewID(),
		OrganizationID: entry.OrganizationID,
		PeriodKey:      entry.PeriodKey,
		BankEntryID:    bankEntryID,
		MatchType:      models.MatchUnknown,
		Confidence:     0,
		Status:         models.MatchResolvedUnmatched,
		Reasons:        []string{reason},
		Notes:          notes,
		ResolvedAt:     &now,
		CreatedAt:      now,
	}

	stored, err := w.matches.UpsertByBankEntry(ctx, match)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "reconciliation match", err)
	}
	w.logger.WithFields(logger.Fields{
		"bank_entry": bankEntryID,
		"reason":     reason,
	}).Info("bank entry marked unmatched")
	return stored, nil
}

// loadForDecision fetches a match and verifies it still awaits a decision.
func (w *Workflow) loadForDecision(ctx context.Context, matchID string) (*models.ReconciliationMatch, error) {
	if strings.TrimSpace(matchID) == "" {
		return nil, errors.InputError(errors.CodeMissingField, "matchId", matchID)
	}

	match, err := w.matches.Get(ctx, matchID)
	if err == store.ErrNotFound {
		return nil, errors.PersistenceError(errors.CodeRecordNotFound, "reconciliation match", err)
	}
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "reconciliation match", err)
	}

	if match.Status != models.MatchPending {
		return nil, errors.PersistenceError(errors.CodeInvalidState, "reconciliation match", nil).
			WithContext("status", match.Status).
			WithSuggestion("only pending matches accept review decisions")
	}
	return match, nil
}
