// Package models defines the canonical domain types shared by the closure
// and reconciliation engine: payment methods, period keys, cash chain links,
// closure records, bank entries and reconciliation matches.
//
// All monetary values use decimal.Decimal and are rounded to two decimal
// places (the canonical minor unit) at the boundaries that create them.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a sale was paid. The engine assumes a small,
// closed set: cash plus two card/wallet providers.
type PaymentMethod string

const (
	// PaymentCash is physical cash in the register drawer.
	PaymentCash PaymentMethod = "cash"
	// PaymentTwint is the TWINT wallet provider.
	PaymentTwint PaymentMethod = "twint"
	// PaymentSumUp is the SumUp card terminal provider.
	PaymentSumUp PaymentMethod = "sumup"
)

// AllPaymentMethods lists every supported payment method in a stable order.
var AllPaymentMethods = []PaymentMethod{PaymentCash, PaymentTwint, PaymentSumUp}

// String returns the string representation of the payment method.
func (m PaymentMethod) String() string {
	return string(m)
}

// IsValid checks if the payment method is one of the supported set.
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentCash, PaymentTwint, PaymentSumUp:
		return true
	}
	return false
}

// IsProvider reports whether the method settles through an external provider
// (i.e. its sales arrive on the bank statement as delayed settlement batches).
func (m PaymentMethod) IsProvider() bool {
	return m == PaymentTwint || m == PaymentSumUp
}

// ParsePaymentMethod parses a payment method from a string, accepting common
// spellings used by upstream systems.
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "cash", "bar":
		return PaymentCash, nil
	case "twint":
		return PaymentTwint, nil
	case "sumup", "sum_up", "card":
		return PaymentSumUp, nil
	default:
		return "", fmt.Errorf("unsupported payment method '%s'", s)
	}
}

// Direction marks a bank entry as money in or money out.
type Direction string

const (
	// DirectionCredit is money arriving on the account.
	DirectionCredit Direction = "credit"
	// DirectionDebit is money leaving the account.
	DirectionDebit Direction = "debit"
)

// String returns the string representation of the direction.
func (d Direction) String() string {
	return string(d)
}

// IsValid checks if the direction is credit or debit.
func (d Direction) IsValid() bool {
	return d == DirectionCredit || d == DirectionDebit
}

// PeriodType distinguishes daily from monthly closures.
type PeriodType string

const (
	// PeriodDaily closes a single business day.
	PeriodDaily PeriodType = "daily"
	// PeriodMonthly closes a calendar month.
	PeriodMonthly PeriodType = "monthly"
)

// String returns the string representation of the period type.
func (p PeriodType) String() string {
	return string(p)
}

// IsValid checks if the period type is daily or monthly.
func (p PeriodType) IsValid() bool {
	return p == PeriodDaily || p == PeriodMonthly
}

const (
	dailyKeyLayout   = "2006-01-02"
	monthlyKeyLayout = "2006-01"
)

// PeriodKey is the canonical string key of a closure period:
// "2006-01-02" for daily periods, "2006-01" for monthly ones.
type PeriodKey string

// String returns the string representation of the period key.
func (k PeriodKey) String() string {
	return string(k)
}

// DailyKey builds the period key for the business day containing t.
func DailyKey(t time.Time) PeriodKey {
	return PeriodKey(t.Format(dailyKeyLayout))
}

// MonthlyKey builds the period key for the calendar month containing t.
func MonthlyKey(t time.Time) PeriodKey {
	return PeriodKey(t.Format(monthlyKeyLayout))
}

// KeyFor builds the period key of the given type containing t.
func KeyFor(periodType PeriodType, t time.Time) PeriodKey {
	if periodType == PeriodMonthly {
		return MonthlyKey(t)
	}
	return DailyKey(t)
}

// Bounds returns the half-open time range [start, end) covered by the key.
func (k PeriodKey) Bounds(periodType PeriodType) (time.Time, time.Time, error) {
	switch periodType {
	case PeriodDaily:
		start, err := time.Parse(dailyKeyLayout, string(k))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid daily period key '%s': %w", k, err)
		}
		return start, start.AddDate(0, 0, 1), nil
	case PeriodMonthly:
		start, err := time.Parse(monthlyKeyLayout, string(k))
		if err != nil {
			return time.Time{}, time.Time{}, fmt.Errorf("invalid monthly period key '%s': %w", k, err)
		}
		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("invalid period type '%s'", periodType)
	}
}

// Day truncates t to midnight UTC. Business days are compared date-only.
func Day(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// SameDay reports whether two instants fall on the same calendar date.
func SameDay(a, b time.Time) bool {
	return Day(a).Equal(Day(b))
}

// RoundAmount rounds a monetary amount to the canonical minor unit.
func RoundAmount(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// WithinTolerance reports whether two amounts differ by at most tolerance.
func WithinTolerance(a, b, tolerance decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(tolerance)
}

// SaleTransaction is a single captured sale, read from the ledger source.
type SaleTransaction struct {
	ID       string          `json:"id"`
	Method   PaymentMethod   `json:"method"`
	Amount   decimal.Decimal `json:"amount"`
	BookedAt time.Time       `json:"bookedAt"`
}

// Validate performs basic validation on the sale transaction.
func (s *SaleTransaction) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("sale transaction ID cannot be empty")
	}
	if !s.Method.IsValid() {
		return fmt.Errorf("invalid payment method: %s", s.Method)
	}
	if s.Amount.IsNegative() {
		return fmt.Errorf("sale amount cannot be negative: %s", s.Amount)
	}
	if s.BookedAt.IsZero() {
		return fmt.Errorf("sale booking time cannot be zero")
	}
	return nil
}

// Expense is a recorded business expense, read from the ledger source.
type Expense struct {
	ID          string          `json:"id"`
	Method      PaymentMethod   `json:"method"`
	Amount      decimal.Decimal `json:"amount"`
	BookedAt    time.Time       `json:"bookedAt"`
	Description string          `json:"description"`
}

// Validate performs basic validation on the expense.
func (e *Expense) Validate() error {
	if strings.TrimSpace(e.ID) == "" {
		return fmt.Errorf("expense ID cannot be empty")
	}
	if !e.Amount.IsPositive() {
		return fmt.Errorf("expense amount must be positive: %s", e.Amount)
	}
	if e.BookedAt.IsZero() {
		return fmt.Errorf("expense booking time cannot be zero")
	}
	return nil
}

// CashMovement is a manual cash in/out event (deposit to bank, owner
// withdrawal, change float). Amount is signed: positive into the drawer.
type CashMovement struct {
	ID          string          `json:"id"`
	Amount      decimal.Decimal `json:"amount"`
	BookedAt    time.Time       `json:"bookedAt"`
	Description string          `json:"description"`
}

// CashChainLink is one day of the cash chain. Links are transient planning
// values, never persisted directly; they feed closure persistence.
//
// Invariants: CashEndingSoll = CashStarting + CashSalesTotal, and
// Difference = CashEndingIst - CashEndingSoll. The next link's CashStarting
// always equals this link's CashEndingIst (counted cash propagates forward,
// not the computed value).
type CashChainLink struct {
	Date           time.Time       `json:"date"`
	CashStarting   decimal.Decimal `json:"cashStarting"`
	CashSalesTotal decimal.Decimal `json:"cashSalesTotal"`
	CashEndingSoll decimal.Decimal `json:"cashEndingSoll"`
	CashEndingIst  decimal.Decimal `json:"cashEndingIst"`
	Difference     decimal.Decimal `json:"difference"`
	// IstCounted is true once an operator supplied the counted value;
	// links default to Ist == Soll until then.
	IstCounted bool `json:"istCounted"`
}

// ClosureStatus is the lifecycle state of a closure record.
type ClosureStatus string

const (
	// ClosureDraft is the default, recalculable state.
	ClosureDraft ClosureStatus = "draft"
	// ClosureClosed freezes all monetary fields.
	ClosureClosed ClosureStatus = "closed"
	// ClosureCorrected marks an explicit amendment of a closed record.
	// No automated flow produces it.
	ClosureCorrected ClosureStatus = "corrected"
)

// String returns the string representation of the closure status.
func (s ClosureStatus) String() string {
	return string(s)
}

// IsValid checks if the closure status is a known state.
func (s ClosureStatus) IsValid() bool {
	switch s {
	case ClosureDraft, ClosureClosed, ClosureCorrected:
		return true
	}
	return false
}

// CanTransitionTo reports whether the status may move to target.
func (s ClosureStatus) CanTransitionTo(target ClosureStatus) bool {
	switch s {
	case ClosureDraft:
		return target == ClosureClosed
	case ClosureClosed:
		return target == ClosureCorrected
	default:
		return false
	}
}

// ClosureRecord is the persisted financial summary of one period.
// Once Status is closed the monetary fields are frozen; every change after
// that point goes through the explicit correction transition.
type ClosureRecord struct {
	ID               string                            `json:"id"`
	OrganizationID   string                            `json:"organizationId"`
	PeriodType       PeriodType                        `json:"periodType"`
	PeriodKey        PeriodKey                         `json:"periodKey"`
	SalesByMethod    map[PaymentMethod]decimal.Decimal `json:"salesByMethod"`
	ExpensesByMethod map[PaymentMethod]decimal.Decimal `json:"expensesByMethod"`
	CashStarting     decimal.Decimal                   `json:"cashStarting"`
	CashEnding       decimal.Decimal                   `json:"cashEnding"`
	CashDifference   decimal.Decimal                   `json:"cashDifference"`
	Status           ClosureStatus                     `json:"status"`
	Notes            string                            `json:"notes"`
	ClosedAt         *time.Time                        `json:"closedAt,omitempty"`
	CreatedAt        time.Time                         `json:"createdAt"`
	UpdatedAt        time.Time                         `json:"updatedAt"`
}

// IsFrozen reports whether the record's monetary fields may no longer change.
func (c *ClosureRecord) IsFrozen() bool {
	return c.Status == ClosureClosed || c.Status == ClosureCorrected
}

// TotalSales sums sales across all payment methods.
func (c *ClosureRecord) TotalSales() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range c.SalesByMethod {
		total = total.Add(amount)
	}
	return total
}

// TotalExpenses sums expenses across all payment methods.
func (c *ClosureRecord) TotalExpenses() decimal.Decimal {
	total := decimal.Zero
	for _, amount := range c.ExpensesByMethod {
		total = total.Add(amount)
	}
	return total
}

// Validate performs basic validation on the closure record.
func (c *ClosureRecord) Validate() error {
	if strings.TrimSpace(c.OrganizationID) == "" {
		return fmt.Errorf("closure record organization ID cannot be empty")
	}
	if !c.PeriodType.IsValid() {
		return fmt.Errorf("invalid period type: %s", c.PeriodType)
	}
	if _, _, err := c.PeriodKey.Bounds(c.PeriodType); err != nil {
		return err
	}
	if !c.Status.IsValid() {
		return fmt.Errorf("invalid closure status: %s", c.Status)
	}
	if c.Status == ClosureClosed && c.ClosedAt == nil {
		return fmt.Errorf("closed record must carry a closed_at timestamp")
	}
	return nil
}

// String returns a string representation of the closure record.
func (c *ClosureRecord) String() string {
	return fmt.Sprintf("ClosureRecord{Period: %s %s, Status: %s, CashDiff: %s}",
		c.PeriodType, c.PeriodKey, c.Status, c.CashDifference.String())
}

// BankEntry is one canonical line of an imported bank statement.
// Entries are immutable once imported; a re-import supersedes them.
type BankEntry struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	PeriodKey      PeriodKey       `json:"periodKey"`
	Date           time.Time       `json:"date"`
	Amount         decimal.Decimal `json:"amount"`
	Direction      Direction       `json:"direction"`
	Description    string          `json:"description"`
	RawReference   string          `json:"rawReference"`
}

// Validate performs basic validation on the bank entry.
func (b *BankEntry) Validate() error {
	if strings.TrimSpace(b.ID) == "" {
		return fmt.Errorf("bank entry ID cannot be empty")
	}
	if b.Date.IsZero() {
		return fmt.Errorf("bank entry date cannot be zero")
	}
	if !b.Amount.IsPositive() {
		return fmt.Errorf("bank entry amount must be positive: %s", b.Amount)
	}
	if !b.Direction.IsValid() {
		return fmt.Errorf("invalid bank entry direction: %s", b.Direction)
	}
	return nil
}

// SignedAmount returns the amount with debit entries negated.
func (b *BankEntry) SignedAmount() decimal.Decimal {
	if b.Direction == DirectionDebit {
		return b.Amount.Neg()
	}
	return b.Amount
}

// String returns a string representation of the bank entry.
func (b *BankEntry) String() string {
	return fmt.Sprintf("BankEntry{ID: %s, Date: %s, %s %s}",
		b.ID, b.Date.Format(dailyKeyLayout), b.Direction, b.Amount.String())
}

// MatchType classifies what a bank entry was matched against.
type MatchType string

const (
	// MatchSettlementBatch pairs the entry with several same-provider
	// transactions paid out as one settlement.
	MatchSettlementBatch MatchType = "settlement_batch"
	// MatchSingleTransaction pairs the entry one-to-one with a transaction.
	MatchSingleTransaction MatchType = "single_transaction"
	// MatchExpense pairs a debit entry with an unpaid expense.
	MatchExpense MatchType = "expense"
	// MatchDeposit marks a large unexplained credit with no candidates,
	// assumed to be a cash deposit. Heuristic fallback, never first choice.
	MatchDeposit MatchType = "deposit"
	// MatchUnknown marks an entry the matcher could not explain.
	MatchUnknown MatchType = "unknown"
)

// String returns the string representation of the match type.
func (t MatchType) String() string {
	return string(t)
}

// IsValid checks if the match type is a known classification.
func (t MatchType) IsValid() bool {
	switch t {
	case MatchSettlementBatch, MatchSingleTransaction, MatchExpense, MatchDeposit, MatchUnknown:
		return true
	}
	return false
}

// MatchStatus is the review state of a reconciliation match.
type MatchStatus string

const (
	// MatchPending awaits a human decision.
	MatchPending MatchStatus = "pending"
	// MatchApproved locks the match as the accepted explanation.
	MatchApproved MatchStatus = "approved"
	// MatchRejected returns the bank entry to the unmatched pool.
	MatchRejected MatchStatus = "rejected"
	// MatchResolvedUnmatched is the explicit terminal state for entries
	// with no internal counterpart (bank fees, owner deposits).
	MatchResolvedUnmatched MatchStatus = "unmatched"
)

// String returns the string representation of the match status.
func (s MatchStatus) String() string {
	return string(s)
}

// IsValid checks if the match status is a known state.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchPending, MatchApproved, MatchRejected, MatchResolvedUnmatched:
		return true
	}
	return false
}

// IsTerminal reports whether the status allows no further transition.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchApproved || s == MatchResolvedUnmatched
}

// MatchedRecordType identifies the kind of internal record inside a match.
type MatchedRecordType string

const (
	// RecordSale is a sale transaction.
	RecordSale MatchedRecordType = "sale"
	// RecordExpense is an expense.
	RecordExpense MatchedRecordType = "expense"
	// RecordCashMovement is a manual cash movement.
	RecordCashMovement MatchedRecordType = "cash_movement"
)

// MatchedRecord references one internal record explained by a match.
type MatchedRecord struct {
	Type   MatchedRecordType `json:"type"`
	ID     string            `json:"id"`
	Amount decimal.Decimal   `json:"amount"`
}

// ReconciliationMatch pairs one bank entry with zero or more internal
// records, carrying an explainable confidence score between 0 and 100.
// Exactly one match exists per bank entry; the matcher never silently
// discards an unexplained entry.
type ReconciliationMatch struct {
	ID             string          `json:"id"`
	OrganizationID string          `json:"organizationId"`
	PeriodKey      PeriodKey       `json:"periodKey"`
	BankEntryID    string          `json:"bankEntryId"`
	MatchedRecords []MatchedRecord `json:"matchedRecords"`
	MatchType      MatchType       `json:"matchType"`
	Confidence     float64         `json:"confidence"`
	Status         MatchStatus     `json:"status"`
	Reasons        []string        `json:"reasons,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	ResolvedAt     *time.Time      `json:"resolvedAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// MatchedTotal sums the amounts of all matched internal records.
func (m *ReconciliationMatch) MatchedTotal() decimal.Decimal {
	total := decimal.Zero
	for _, record := range m.MatchedRecords {
		total = total.Add(record.Amount)
	}
	return total
}

// Validate performs basic validation on the reconciliation match.
func (m *ReconciliationMatch) Validate() error {
	if strings.TrimSpace(m.BankEntryID) == "" {
		return fmt.Errorf("match bank entry ID cannot be empty")
	}
	if !m.MatchType.IsValid() {
		return fmt.Errorf("invalid match type: %s", m.MatchType)
	}
	if !m.Status.IsValid() {
		return fmt.Errorf("invalid match status: %s", m.Status)
	}
	if m.Confidence < 0 || m.Confidence > 100 {
		return fmt.Errorf("confidence must be between 0 and 100: %f", m.Confidence)
	}
	return nil
}

// String returns a string representation of the match.
func (m *ReconciliationMatch) String() string {
	return fmt.Sprintf("Match{Entry: %s, Type: %s, Confidence: %.0f, Status: %s}",
		m.BankEntryID, m.MatchType, m.Confidence, m.Status)
}
