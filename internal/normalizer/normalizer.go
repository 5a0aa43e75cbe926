// Package normalizer turns the structured output of a bank statement parser
// into the canonical BankEntry form the matcher consumes.
//
// Normalization is a pure transformation: currency-sign and credit/debit
// marker normalization, rounding to the canonical minor unit, and rejection
// of rows with unparseable dates or amounts. Bad rows are collected as
// import errors, never dropped silently.
package normalizer

import (
	"fmt"
	"strings"
	"time"

	"pos-closing-service/internal/models"
	"pos-closing-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// RawEntry is one row of a parsed bank statement, as produced by the
// statement parser (e.g. a camt.053 reader). All fields are untrusted.
type RawEntry struct {
	Amount    string `json:"amount"`
	Date      string `json:"date"`
	Marker    string `json:"marker"`
	Reference string `json:"reference"`
	Narrative string `json:"narrative"`
}

// RowError describes why one statement row could not be normalized.
type RowError struct {
	Line    int    `json:"line"`
	Field   string `json:"field,omitempty"`
	Value   string `json:"value,omitempty"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *RowError) Error() string {
	msg := fmt.Sprintf("row %d: %s", e.Line, e.Message)
	if e.Field != "" {
		msg = fmt.Sprintf("row %d, field %s: %s", e.Line, e.Field, e.Message)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Stats tracks the outcome of a normalization run.
type Stats struct {
	RowsSeen   int         `json:"rowsSeen"`
	RowsValid  int         `json:"rowsValid"`
	Errors     []*RowError `json:"errors,omitempty"`
	ErrorCount int         `json:"errorCount"`
}

// AddError records a row error.
func (s *Stats) AddError(err *RowError) {
	s.Errors = append(s.Errors, err)
	s.ErrorCount++
}

// HasErrors reports whether any row failed to normalize.
func (s *Stats) HasErrors() bool {
	return s.ErrorCount > 0
}

// dateLayouts are the accepted statement date formats, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05Z07:00",
	"02.01.2006",
	"02/01/2006",
}

// Normalizer converts raw statement rows into canonical bank entries.
type Normalizer struct {
	// NewID mints entry IDs; overridable for deterministic tests.
	NewID func() string
}

// New creates a Normalizer with default ID generation.
func New() *Normalizer {
	return &Normalizer{NewID: uuid.NewString}
}

// Normalize converts the raw rows of one statement into canonical entries
// for the given organization and period. Rows that cannot be normalized are
// reported in the stats; valid rows are always returned. An entirely empty
// statement is an input error: importing nothing is almost always a caller
// mistake, not a quiet no-op.
func (n *Normalizer) Normalize(organizationID string, periodKey models.PeriodKey, rows []*RawEntry) ([]*models.BankEntry, *Stats, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, nil, errors.SystemicError(errors.CodeNoOrganization, "statement normalization", nil)
	}
	if len(rows) == 0 {
		return nil, nil, errors.InputError(errors.CodeEmptyStatement, "rows", nil)
	}

	stats := &Stats{}
	var entries []*models.BankEntry

	for i, row := range rows {
		line := i + 1
		stats.RowsSeen++

		entry, rowErr := n.normalizeRow(organizationID, periodKey, line, row)
		if rowErr != nil {
			stats.AddError(rowErr)
			continue
		}

		entries = append(entries, entry)
		stats.RowsValid++
	}

	return entries, stats, nil
}

func (n *Normalizer) normalizeRow(organizationID string, periodKey models.PeriodKey, line int, row *RawEntry) (*models.BankEntry, *RowError) {
	if row == nil {
		return nil, &RowError{Line: line, Message: "empty row"}
	}

	date, err := parseDate(row.Date)
	if err != nil {
		return nil, &RowError{
			Line:    line,
			Field:   "date",
			Value:   row.Date,
			Message: "unparseable date",
			Err:     err,
		}
	}

	amount, err := parseAmount(row.Amount)
	if err != nil {
		return nil, &RowError{
			Line:    line,
			Field:   "amount",
			Value:   row.Amount,
			Message: "unparseable amount",
			Err:     err,
		}
	}
	if amount.IsZero() {
		return nil, &RowError{
			Line:    line,
			Field:   "amount",
			Value:   row.Amount,
			Message: "zero amount",
		}
	}

	direction, err := resolveDirection(row.Marker, amount)
	if err != nil {
		return nil, &RowError{
			Line:    line,
			Field:   "marker",
			Value:   row.Marker,
			Message: "unrecognized credit/debit marker",
			Err:     err,
		}
	}

	entry := &models.BankEntry{
		ID:             n.NewID(),
		OrganizationID: organizationID,
		PeriodKey:      periodKey,
		Date:           models.Day(date),
		Amount:         models.RoundAmount(amount.Abs()),
		Direction:      direction,
		Description:    strings.TrimSpace(row.Narrative),
		RawReference:   strings.TrimSpace(row.Reference),
	}
	if err := entry.Validate(); err != nil {
		return nil, &RowError{
			Line:    line,
			Message: "entry validation failed",
			Err:     err,
		}
	}
	return entry, nil
}

func parseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, fmt.Errorf("date is empty")
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("date %q matches no supported format", value)
}

func parseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	// tolerate thousands separators from exports like "1'234.50" or "1,234.50"
	cleaned = strings.ReplaceAll(cleaned, "'", "")
	if strings.Count(cleaned, ",") > 0 && strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	} else if strings.Count(cleaned, ",") == 1 && !strings.Contains(cleaned, ".") {
		// decimal comma
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	}
	return decimal.NewFromString(cleaned)
}

// resolveDirection maps the marker to a direction. Markers win over the
// amount sign; a negative amount only decides when the marker is absent.
func resolveDirection(marker string, amount decimal.Decimal) (models.Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(marker)) {
	case "CRDT", "CREDIT", "C", "+":
		return models.DirectionCredit, nil
	case "DBIT", "DEBIT", "D", "-":
		return models.DirectionDebit, nil
	case "":
		if amount.IsNegative() {
			return models.DirectionDebit, nil
		}
		return models.DirectionCredit, nil
	}
	return "", fmt.Errorf("marker %q is not a known credit/debit indicator", marker)
}
