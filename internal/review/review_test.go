package review

import (
	"context"
	"testing"
	"time"

	"pos-closing-service/internal/models"
	"pos-closing-service/internal/store"
	"pos-closing-service/pkg/errors"

	"github.com/shopspring/decimal"
)

func seedEntryAndMatch(t *testing.T, entries *store.MemoryBankEntryStore, matches *store.MemoryMatchStore, status models.MatchStatus) (*models.BankEntry, *models.ReconciliationMatch) {
	t.Helper()
	ctx := context.Background()

	entry := &models.BankEntry{
		ID:             "entry-1",
		OrganizationID: "org-1",
		PeriodKey:      "2025-03",
		Date:           time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC),
		Amount:         decimal.NewFromInt(150),
		Direction:      models.DirectionCredit,
	}
	if err := entries.ReplaceForPeriod(ctx, "org-1", "2025-03", []*models.BankEntry{entry}); err != nil {
		t.Fatalf("seeding entry failed: %v", err)
	}

	match, err := matches.UpsertByBankEntry(ctx, &models.ReconciliationMatch{
		OrganizationID: "org-1",
		PeriodKey:      "2025-03",
		BankEntryID:    entry.ID,
		MatchType:      models.MatchSingleTransaction,
		Confidence:     80,
		Status:         status,
		CreatedAt:      time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seeding match failed: %v", err)
	}
	return entry, match
}

func newTestWorkflow(t *testing.T) (*Workflow, *store.MemoryBankEntryStore, *store.MemoryMatchStore) {
	t.Helper()
	entries := store.NewMemoryBankEntryStore()
	matches := store.NewMemoryMatchStore()
	workflow, err := NewWorkflow(matches, entries)
	if err != nil {
		t.Fatalf("NewWorkflow failed: %v", err)
	}
	return workflow, entries, matches
}

func TestApproveLocksMatch(t *testing.T) {
	workflow, entries, matches := newTestWorkflow(t)
	_, match := seedEntryAndMatch(t, entries, matches, models.MatchPending)

	approved, err := workflow.Approve(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("Approve failed: %v", err)
	}
	if approved.Status != models.MatchApproved {
		t.Errorf("status = %s, want approved", approved.Status)
	}
	if approved.ResolvedAt == nil {
		t.Error("ResolvedAt not stamped")
	}

	// approved is terminal; a second decision must fail
	if _, err := workflow.Approve(context.Background(), match.ID); err == nil {
		t.Fatal("approving an approved match should fail")
	}
}

func TestRejectReturnsEntryToPool(t *testing.T) {
	workflow, entries, matches := newTestWorkflow(t)
	entry, match := seedEntryAndMatch(t, entries, matches, models.MatchPending)

	rejected, err := workflow.Reject(context.Background(), match.ID)
	if err != nil {
		t.Fatalf("Reject failed: %v", err)
	}
	if rejected.Status != models.MatchRejected {
		t.Errorf("status = %s, want rejected", rejected.Status)
	}

	// a rejected entry can still get a manual match
	manual, err := workflow.ManualMatch(context.Background(), entry.ID, []models.MatchedRecord{
		{Type: models.RecordSale, ID: "s9", Amount: decimal.NewFromInt(150)},
	}, "operator verified against terminal report")
	if err != nil {
		t.Fatalf("ManualMatch after reject failed: %v", err)
	}
	if manual.Status != models.MatchApproved {
		t.Errorf("manual match status = %s, want approved", manual.Status)
	}
}

func TestManualMatchRequiresNotes(t *testing.T) {
	workflow, entries, matches := newTestWorkflow(t)
	entry, _ := seedEntryAndMatch(t, entries, matches, models.MatchPending)

	_, err := workflow.ManualMatch(context.Background(), entry.ID, []models.MatchedRecord{
		{Type: models.RecordSale, ID: "s9", Amount: decimal.NewFromInt(150)},
	}, "   ")
	if err == nil {
		t.Fatal("manual match without notes should fail")
	}
	if !errors.IsCategory(err, errors.CategoryInput) {
		t.Errorf("error category = %s, want input", errors.GetCategory(err))
	}
}

func TestManualMatchClassifiesByRecords(t *testing.T) {
	workflow, entries, matches := newTestWorkflow(t)
	entry, _ := seedEntryAndMatch(t, entries, matches, models.MatchPending)

	batch, err := workflow.ManualMatch(context.Background(), entry.ID, []models.MatchedRecord{
		{Type: models.RecordSale, ID: "s1", Amount: decimal.NewFromInt(100)},
		{Type: models.RecordSale, ID: "s2", Amount: decimal.NewFromInt(50)},
	}, "two sales settled together")
	if err != nil {
		t.Fatalf("ManualMatch failed: %v", err)
	}
	if batch.MatchType != models.MatchSettlementBatch {
		t.Errorf("match type = %s, want settlement_batch for multiple records", batch.MatchType)
	}
}

func TestManualMatchRefusesResolvedEntry(t *testing.T) {
	workflow, entries, matches := newTestWorkflow(t)
	entry, _ := seedEntryAndMatch(t, entries, matches, models.MatchApproved)

	_, err := workflow.ManualMatch(context.Background(), entry.ID, []models.MatchedRecord{
		{Type: models.RecordSale, ID: "s9", Amount: decimal.NewFromInt(150)},
	}, "late override")
	if err == nil {
		t.Fatal("manual match over an approved match should fail")
	}
}

func TestMarkUnmatchedIsTerminal(t *testing.T) {
	workflow, entries, matches := newTestWorkflow(t)
	entry, _ := seedEntryAndMatch(t, entries, matches, models.MatchPending)

	resolved, err := workflow.MarkUnmatched(context.Background(), entry.ID, "bank fee", "quarterly account fee")
	if err != nil {
		t.Fatalf("MarkUnmatched failed: %v", err)
	}
	if resolved.Status != models.MatchResolvedUnmatched {
		t.Errorf("status = %s, want unmatched", resolved.Status)
	}
	if !resolved.Status.IsTerminal() {
		t.Error("unmatched must be terminal")
	}

	if _, err := workflow.MarkUnmatched(context.Background(), entry.ID, "bank fee", ""); err == nil {
		t.Fatal("marking a resolved entry unmatched again should fail")
	}
}

func TestMarkUnmatchedRequiresReason(t *testing.T) {
	workflow, entries, matches := newTestWorkflow(t)
	entry, _ := seedEntryAndMatch(t, entries, matches, models.MatchPending)

	if _, err := workflow.MarkUnmatched(context.Background(), entry.ID, "", "no reason"); err == nil {
		t.Fatal("MarkUnmatched without a reason should fail")
	}
}

func TestPendingMatchesListsOnlyPending(t *testing.T) {
	workflow, entries, matches := newTestWorkflow(t)
	_, match := seedEntryAndMatch(t, entries, matches, models.MatchPending)

	pending, err := workflow.PendingMatches(context.Background(), "org-1", "2025-03")
	if err != nil {
		t.Fatalf("PendingMatches failed: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != match.ID {
		t.Fatalf("pending = %v, want exactly the seeded match", pending)
	}

	if _, err := workflow.Approve(context.Background(), match.ID); err != nil {
		t.Fatalf("Approve failed: %v", err)
	}

	pending, err = workflow.PendingMatches(context.Background(), "org-1", "2025-03")
	if err != nil {
		t.Fatalf("PendingMatches failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("pending after approval = %d, want 0", len(pending))
	}
}

func TestDecisionsOnMissingMatch(t *testing.T) {
	workflow, _, _ := newTestWorkflow(t)

	if _, err := workflow.Approve(context.Background(), "nope"); err == nil {
		t.Error("approving a missing match should fail")
	}
	if _, err := workflow.Reject(context.Background(), "nope"); err == nil {
		t.Error("rejecting a missing match should fail")
	}
	if _, err := workflow.MarkUnmatched(context.Background(), "nope", "fee", ""); err == nil {
		t.Error("resolving a missing entry should fail")
	}
}
