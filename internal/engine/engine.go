// Package engine is the façade over the closing and reconciliation
// machinery. Every call takes an explicit organization ID; the engine holds
// no ambient tenant state.
package engine

import (
	"context"
	"strings"
	"time"

	"pos-closing-service/internal/cashchain"
	"pos-closing-service/internal/closure"
	"pos-closing-service/internal/documents"
	"pos-closing-service/internal/ledger"
	"pos-closing-service/internal/matcher"
	"pos-closing-service/internal/models"
	"pos-closing-service/internal/normalizer"
	"pos-closing-service/internal/review"
	"pos-closing-service/internal/store"
	"pos-closing-service/pkg/errors"
	"pos-closing-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// Stores bundles the persistence interfaces the engine needs.
type Stores struct {
	Closures store.ClosureStore
	Entries  store.BankEntryStore
	Matches  store.MatchStore
}

// Options configures an Engine.
type Options struct {
	Ledger    ledger.Source
	Stores    Stores
	Generator documents.Generator
	Matcher   *matcher.Config
}

// Engine exposes the full closing and reconciliation surface.
type Engine struct {
	ledger       ledger.Source
	stores       Stores
	stateMachine *closure.StateMachine
	orchestrator *closure.BulkOrchestrator
	normalizer   *normalizer.Normalizer
	matcher      *matcher.Matcher
	review       *review.Workflow
	logger       logger.Logger
}

// New wires an Engine from its collaborators.
func New(opts Options) (*Engine, error) {
	if opts.Ledger == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "ledger source", nil, nil)
	}
	if opts.Stores.Closures == nil || opts.Stores.Entries == nil || opts.Stores.Matches == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "stores", nil, nil).
			WithSuggestion("provide closure, bank entry and match stores")
	}

	stateMachine, err := closure.NewStateMachine(opts.Ledger, opts.Stores.Closures, opts.Generator)
	if err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "closure state machine", nil, err)
	}
	orchestrator, err := closure.NewBulkOrchestrator(stateMachine)
	if err != nil {
		return nil, err
	}
	matchEngine, err := matcher.New(opts.Matcher, nil)
	if err != nil {
		return nil, err
	}
	reviewWorkflow, err := review.NewWorkflow(opts.Stores.Matches, opts.Stores.Entries)
	if err != nil {
		return nil, err
	}

	return &Engine{
		ledger:       opts.Ledger,
		stores:       opts.Stores,
		stateMachine: stateMachine,
		orchestrator: orchestrator,
		normalizer:   normalizer.New(),
		matcher:      matchEngine,
		review:       reviewWorkflow,
		logger:       logger.GetGlobalLogger().WithComponent("engine"),
	}, nil
}

// ComputeCashChain builds the SOLL cash chain for a day range from the
// ledger's cash sales. The range is inclusive of both endpoint days. Days
// without sales still appear in the chain; cash carries across them.
func (e *Engine) ComputeCashChain(ctx context.Context, organizationID string, from, to time.Time, startingBalance decimal.Decimal) ([]models.CashChainLink, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, errors.SystemicError(errors.CodeNoOrganization, "cash chain computation", nil)
	}
	from, to = models.Day(from), models.Day(to)
	if to.Before(from) {
		return nil, errors.InputError(errors.CodeInvalidPeriod, "range", nil).
			WithSuggestion("the range end must not precede the start")
	}

	sales, err := e.ledger.SalesForPeriod(ctx, organizationID, from, to.AddDate(0, 0, 1))
	if err != nil {
		return nil, errors.RecalculationError(errors.CodeLedgerQuery, models.DailyKey(from).String(), err)
	}

	totals := make(map[time.Time]decimal.Decimal)
	for _, sale := range sales {
		if sale.Method != models.PaymentCash {
			continue
		}
		d := models.Day(sale.BookedAt)
		totals[d] = totals[d].Add(sale.Amount)
	}

	var days []cashchain.DayInput
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		days = append(days, cashchain.DayInput{Date: d, CashSalesTotal: totals[d]})
	}

	return cashchain.Compute(days, startingBalance)
}

// UpdateChainIst records a counted drawer value for one day of a chain and
// cascades the recomputation through all later days. Pure: the input chain
// is not modified.
func (e *Engine) UpdateChainIst(chain []models.CashChainLink, date time.Time, counted decimal.Decimal) ([]models.CashChainLink, error) {
	return cashchain.ApplyCount(chain, date, counted)
}

// RunBulkClosure closes every day of the chain in order.
func (e *Engine) RunBulkClosure(ctx context.Context, organizationID string, chain []models.CashChainLink, notes string) (*closure.BulkResult, error) {
	return e.orchestrator.Run(ctx, organizationID, chain, notes)
}

// ClosePeriod closes a single period.
func (e *Engine) ClosePeriod(ctx context.Context, organizationID string, periodType models.PeriodType, periodKey models.PeriodKey, cashStarting, cashEndingIst decimal.Decimal, notes string) (*closure.CloseResult, error) {
	return e.stateMachine.ClosePeriod(ctx, &closure.CloseRequest{
		OrganizationID: organizationID,
		PeriodType:     periodType,
		PeriodKey:      periodKey,
		CashStarting:   cashStarting,
		CashEndingIst:  cashEndingIst,
		Notes:          notes,
	})
}

// ImportResult is the outcome of one statement import: the canonical
// entries, the matches proposed for them, and the row-level import errors.
type ImportResult struct {
	Entries []*models.BankEntry           `json:"entries"`
	Matches []*models.ReconciliationMatch `json:"matches"`
	Stats   *normalizer.Stats             `json:"stats"`
}

// ImportBankStatement normalizes a parsed statement, replaces the period's
// stored entries, and runs the matcher over them. Re-importing the same
// period supersedes the previous entries and their undecided matches;
// terminal decisions would be lost too, which is why imports happen before
// review, not after.
func (e *Engine) ImportBankStatement(ctx context.Context, organizationID string, periodKey models.PeriodKey, rows []*normalizer.RawEntry) (*ImportResult, error) {
	entries, stats, err := e.normalizer.Normalize(organizationID, periodKey, rows)
	if err != nil {
		return nil, err
	}

	start, end, err := periodKey.Bounds(models.PeriodMonthly)
	if err != nil {
		// daily statement imports are allowed too
		if start, end, err = periodKey.Bounds(models.PeriodDaily); err != nil {
			return nil, errors.InputError(errors.CodeInvalidPeriod, "periodKey", periodKey)
		}
	}

	pools, err := e.buildPools(ctx, organizationID, start, end)
	if err != nil {
		return nil, err
	}

	matches, err := e.matcher.Match(ctx, organizationID, periodKey, entries, pools)
	if err != nil {
		return nil, err
	}

	if err := e.stores.Entries.ReplaceForPeriod(ctx, organizationID, periodKey, entries); err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "bank entries", err)
	}
	if err := e.stores.Matches.DeleteForPeriod(ctx, organizationID, periodKey); err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "reconciliation matches", err)
	}
	stored := make([]*models.ReconciliationMatch, 0, len(matches))
	for _, match := range matches {
		persisted, err := e.stores.Matches.UpsertByBankEntry(ctx, match)
		if err != nil {
			return nil, errors.PersistenceError(errors.CodeWriteFailed, "reconciliation match", err)
		}
		stored = append(stored, persisted)
	}

	e.logger.WithFields(logger.Fields{
		"organization": organizationID,
		"period_key":   periodKey,
		"entries":      len(entries),
		"row_errors":   stats.ErrorCount,
	}).Info("bank statement imported")

	return &ImportResult{Entries: entries, Matches: stored, Stats: stats}, nil
}

// buildPools collects the internal records a statement period can draw
// candidates from. The window extends backwards by the longest configured
// settlement lag so early-period settlements still find their sales.
func (e *Engine) buildPools(ctx context.Context, organizationID string, start, end time.Time) (*matcher.Pools, error) {
	lookback := 0
	for _, profile := range e.matcher.Config().Providers {
		if profile.SettlementLagMaxDays > lookback {
			lookback = profile.SettlementLagMaxDays
		}
	}
	poolStart := start.AddDate(0, 0, -lookback)

	sales, err := e.ledger.SalesForPeriod(ctx, organizationID, poolStart, end)
	if err != nil {
		return nil, errors.RecalculationError(errors.CodeLedgerQuery, "candidate pool", err)
	}
	expenses, err := e.ledger.ExpensesForPeriod(ctx, organizationID, poolStart, end)
	if err != nil {
		return nil, errors.RecalculationError(errors.CodeLedgerQuery, "candidate pool", err)
	}
	return &matcher.Pools{Sales: sales, Expenses: expenses}, nil
}

// PendingMatches lists the period's matches awaiting review.
func (e *Engine) PendingMatches(ctx context.Context, organizationID string, periodKey models.PeriodKey) ([]*models.ReconciliationMatch, error) {
	return e.review.PendingMatches(ctx, organizationID, periodKey)
}

// ApproveMatch locks a pending match as accepted.
func (e *Engine) ApproveMatch(ctx context.Context, matchID string) (*models.ReconciliationMatch, error) {
	return e.review.Approve(ctx, matchID)
}

// RejectMatch discards a pending match.
func (e *Engine) RejectMatch(ctx context.Context, matchID string) (*models.ReconciliationMatch, error) {
	return e.review.Reject(ctx, matchID)
}

// ManualMatch creates an operator-chosen, pre-approved match.
func (e *Engine) ManualMatch(ctx context.Context, bankEntryID string, chosen []models.MatchedRecord, notes string) (*models.ReconciliationMatch, error) {
	return e.review.ManualMatch(ctx, bankEntryID, chosen, notes)
}

// MarkUnmatched resolves an entry with no internal counterpart.
func (e *Engine) MarkUnmatched(ctx context.Context, bankEntryID, reason, notes string) (*models.ReconciliationMatch, error) {
	return e.review.MarkUnmatched(ctx, bankEntryID, reason, notes)
}

// MarkClosureCorrected flags a closed record as amended.
func (e *Engine) MarkClosureCorrected(ctx context.Context, organizationID string, periodType models.PeriodType, periodKey models.PeriodKey, reason string) (*models.ClosureRecord, error) {
	return e.stateMachine.MarkCorrected(ctx, organizationID, periodType, periodKey, reason)
}

// ClosuresInRange lists stored closure records between two period keys.
func (e *Engine) ClosuresInRange(ctx context.Context, organizationID string, periodType models.PeriodType, fromKey, toKey models.PeriodKey) ([]*models.ClosureRecord, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, errors.SystemicError(errors.CodeNoOrganization, "closure listing", nil)
	}
	records, err := e.stores.Closures.ListByRange(ctx, organizationID, periodType, fromKey, toKey)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "closure records", err)
	}
	return records, nil
}

// ReconciliationSummary aggregates the review state of one period.
type ReconciliationSummary struct {
	PeriodKey models.PeriodKey              `json:"periodKey"`
	Total     int                           `json:"total"`
	ByStatus  map[models.MatchStatus]int    `json:"byStatus"`
	ByType    map[models.MatchType]int      `json:"byType"`
	Resolved  bool                          `json:"resolved"`
	Pending   []*models.ReconciliationMatch `json:"pending,omitempty"`
}

// Summary reports how far one period's reconciliation has progressed. A
// period is resolved once every entry's match is terminal.
func (e *Engine) Summary(ctx context.Context, organizationID string, periodKey models.PeriodKey) (*ReconciliationSummary, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, errors.SystemicError(errors.CodeNoOrganization, "reconciliation summary", nil)
	}

	summary := &ReconciliationSummary{
		PeriodKey: periodKey,
		ByStatus:  make(map[models.MatchStatus]int),
		ByType:    make(map[models.MatchType]int),
		Resolved:  true,
	}

	for _, status := range []models.MatchStatus{models.MatchPending, models.MatchApproved, models.MatchRejected, models.MatchResolvedUnmatched} {
		matches, err := e.stores.Matches.ListByStatus(ctx, organizationID, periodKey, status)
		if err != nil {
			return nil, errors.PersistenceError(errors.CodeWriteFailed, "reconciliation matches", err)
		}
		summary.Total += len(matches)
		if len(matches) > 0 {
			summary.ByStatus[status] = len(matches)
		}
		for _, match := range matches {
			summary.ByType[match.MatchType]++
			if !match.Status.IsTerminal() {
				summary.Resolved = false
			}
		}
		if status == models.MatchPending {
			summary.Pending = matches
		}
	}
	if summary.Total == 0 {
		summary.Resolved = false
	}
	return summary, nil
}
