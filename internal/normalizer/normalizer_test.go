package normalizer

import (
	"fmt"
	"testing"
	"time"

	"pos-closing-service/internal/models"
	"pos-closing-service/pkg/errors"
)

func newTestNormalizer() *Normalizer {
	n := New()
	counter := 0
	n.NewID = func() string {
		counter++
		return fmt.Sprintf("entry-%d", counter)
	}
	return n
}

func TestNormalizeValidRows(t *testing.T) {
	n := newTestNormalizer()

	rows := []*RawEntry{
		{Amount: "150.00", Date: "2025-03-03", Marker: "CRDT", Reference: "TWINT-SETTLEMENT-1", Narrative: "TWINT Abrechnung"},
		{Amount: "-42.50", Date: "03.03.2025", Marker: "", Narrative: "Lieferant"},
		{Amount: "1'234.50", Date: "2025-03-04", Marker: "credit", Narrative: "SumUp payout"},
	}

	entries, stats, err := n.Normalize("org-1", "2025-03", rows)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}
	if stats.HasErrors() {
		t.Fatalf("unexpected row errors: %v", stats.Errors)
	}
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	first := entries[0]
	if first.Direction != models.DirectionCredit {
		t.Errorf("first direction = %s, want credit", first.Direction)
	}
	if first.Amount.String() != "150" {
		t.Errorf("first amount = %s, want 150", first.Amount)
	}
	wantDate := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	if !first.Date.Equal(wantDate) {
		t.Errorf("first date = %s, want %s", first.Date, wantDate)
	}
	if first.OrganizationID != "org-1" || first.PeriodKey != "2025-03" {
		t.Errorf("entry not stamped with organization and period: %+v", first)
	}

	// negative amount with no marker becomes a positive debit
	second := entries[1]
	if second.Direction != models.DirectionDebit {
		t.Errorf("second direction = %s, want debit", second.Direction)
	}
	if second.Amount.IsNegative() {
		t.Errorf("second amount should be stored positive, got %s", second.Amount)
	}
	if !second.Date.Equal(wantDate) {
		t.Errorf("dotted date parsed as %s, want %s", second.Date, wantDate)
	}

	// thousands separator stripped
	if entries[2].Amount.String() != "1234.5" {
		t.Errorf("third amount = %s, want 1234.5", entries[2].Amount)
	}
}

func TestNormalizeCollectsRowErrors(t *testing.T) {
	n := newTestNormalizer()

	rows := []*RawEntry{
		{Amount: "100.00", Date: "2025-03-03", Marker: "CRDT"},
		{Amount: "100.00", Date: "not-a-date", Marker: "CRDT"},
		{Amount: "abc", Date: "2025-03-03", Marker: "CRDT"},
		{Amount: "0.00", Date: "2025-03-03", Marker: "CRDT"},
		{Amount: "50.00", Date: "2025-03-03", Marker: "MAYBE"},
		{Amount: "75.00", Date: "2025-03-04", Marker: "DBIT"},
	}

	entries, stats, err := n.Normalize("org-1", "2025-03", rows)
	if err != nil {
		t.Fatalf("Normalize failed: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2 valid", len(entries))
	}
	if stats.RowsSeen != 6 || stats.RowsValid != 2 {
		t.Errorf("stats = %d seen / %d valid, want 6/2", stats.RowsSeen, stats.RowsValid)
	}
	if stats.ErrorCount != 4 {
		t.Fatalf("error count = %d, want 4", stats.ErrorCount)
	}

	wantFields := map[int]string{2: "date", 3: "amount", 4: "amount", 5: "marker"}
	for _, rowErr := range stats.Errors {
		want, ok := wantFields[rowErr.Line]
		if !ok {
			t.Errorf("unexpected error line %d: %v", rowErr.Line, rowErr)
			continue
		}
		if rowErr.Field != want {
			t.Errorf("line %d error field = %s, want %s", rowErr.Line, rowErr.Field, want)
		}
	}
}

func TestNormalizeRejectsEmptyStatement(t *testing.T) {
	n := newTestNormalizer()

	_, _, err := n.Normalize("org-1", "2025-03", nil)
	if err == nil {
		t.Fatal("expected error for empty statement")
	}
	if !errors.IsCategory(err, errors.CategoryInput) {
		t.Errorf("error category = %s, want input", errors.GetCategory(err))
	}
}

func TestNormalizeRequiresOrganization(t *testing.T) {
	n := newTestNormalizer()

	_, _, err := n.Normalize("", "2025-03", []*RawEntry{{Amount: "1.00", Date: "2025-03-03"}})
	if err == nil {
		t.Fatal("expected error for missing organization")
	}
	if !errors.IsCategory(err, errors.CategorySystemic) {
		t.Errorf("error category = %s, want systemic", errors.GetCategory(err))
	}
}

func TestRowErrorMessage(t *testing.T) {
	err := &RowError{Line: 7, Field: "date", Value: "31.31.2025", Message: "unparseable date"}
	got := err.Error()
	want := "row 7, field date: unparseable date"
	if got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
