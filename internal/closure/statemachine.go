// Package closure owns the lifecycle of closure records: the draft → closed
// → corrected state machine and the bulk orchestrator that closes a whole
// range of days from a computed cash chain.
//
// Closing recomputes all aggregates fresh from the ledger; draft values are
// never trusted. Once closed, a record's monetary fields are frozen and only
// the explicit correction transition may touch the record again.
package closure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pos-closing-service/internal/documents"
	"pos-closing-service/internal/ledger"
	"pos-closing-service/internal/models"
	"pos-closing-service/internal/store"
	"pos-closing-service/pkg/errors"
	"pos-closing-service/pkg/logger"

	"github.com/shopspring/decimal"
)

// StateMachine performs closure transitions for one organization's periods.
type StateMachine struct {
	ledger    ledger.Source
	closures  store.ClosureStore
	generator documents.Generator
	logger    logger.Logger
}

// NewStateMachine creates a closure state machine.
func NewStateMachine(source ledger.Source, closures store.ClosureStore, generator documents.Generator) (*StateMachine, error) {
	if source == nil {
		return nil, fmt.Errorf("ledger source is required")
	}
	if closures == nil {
		return nil, fmt.Errorf("closure store is required")
	}
	if generator == nil {
		generator = documents.NopGenerator{}
	}
	return &StateMachine{
		ledger:    source,
		closures:  closures,
		generator: generator,
		logger:    logger.GetGlobalLogger().WithComponent("closure_state_machine"),
	}, nil
}

// CloseRequest carries the caller-supplied inputs of one closure transition.
type CloseRequest struct {
	OrganizationID string
	PeriodType     models.PeriodType
	PeriodKey      models.PeriodKey
	CashStarting   decimal.Decimal
	CashEndingIst  decimal.Decimal
	Notes          string
}

// Validate checks the request before any ledger or storage access.
func (r *CloseRequest) Validate() error {
	if strings.TrimSpace(r.OrganizationID) == "" {
		return errors.SystemicError(errors.CodeNoOrganization, "close period", nil)
	}
	if !r.PeriodType.IsValid() {
		return errors.InputError(errors.CodeInvalidPeriod, "periodType", r.PeriodType)
	}
	if _, _, err := r.PeriodKey.Bounds(r.PeriodType); err != nil {
		return errors.InputError(errors.CodeInvalidPeriod, "periodKey", r.PeriodKey)
	}
	return nil
}

// CloseResult is the outcome of one closure transition. Document holds the
// best-effort generation result; DocumentErr is set when generation failed
// and is never fatal.
type CloseResult struct {
	Record        *models.ClosureRecord
	AlreadyClosed bool
	Document      *documents.Result
	DocumentErr   error
}

// ClosePeriod performs the draft/absent → closed transition.
//
// Aggregates are recomputed fresh from the ledger; a recalculation failure
// is fatal to the transition and leaves any existing record untouched. The
// write is an idempotent upsert by period key. A period that is already
// closed is returned unchanged: amending it requires the correction
// transition, never a repeated close.
func (sm *StateMachine) ClosePeriod(ctx context.Context, request *CloseRequest) (*CloseResult, error) {
	if err := request.Validate(); err != nil {
		return nil, err
	}

	log := sm.logger.WithFields(logger.Fields{
		"organization": request.OrganizationID,
		"period_type":  request.PeriodType,
		"period_key":   request.PeriodKey,
	})

	existing, err := sm.closures.GetByPeriod(ctx, request.OrganizationID, request.PeriodType, request.PeriodKey)
	if err != nil && err != store.ErrNotFound {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "closure record", err)
	}
	if existing != nil && existing.IsFrozen() {
		log.Info("period already closed, skipping")
		return &CloseResult{Record: existing, AlreadyClosed: true}, nil
	}

	start, end, err := request.PeriodKey.Bounds(request.PeriodType)
	if err != nil {
		return nil, errors.InputError(errors.CodeInvalidPeriod, "periodKey", request.PeriodKey)
	}

	sales, err := sm.ledger.SalesForPeriod(ctx, request.OrganizationID, start, end)
	if err != nil {
		log.WithError(err).Error("ledger sales query failed, closure aborted")
		return nil, errors.RecalculationError(errors.CodeLedgerQuery, string(request.PeriodKey), err)
	}
	expenses, err := sm.ledger.ExpensesForPeriod(ctx, request.OrganizationID, start, end)
	if err != nil {
		log.WithError(err).Error("ledger expense query failed, closure aborted")
		return nil, errors.RecalculationError(errors.CodeLedgerQuery, string(request.PeriodKey), err)
	}
	movements, err := sm.ledger.CashMovements(ctx, request.OrganizationID, start, end)
	if err != nil {
		log.WithError(err).Error("ledger movement query failed, closure aborted")
		return nil, errors.RecalculationError(errors.CodeLedgerQuery, string(request.PeriodKey), err)
	}

	netCash := ledger.NetCashSales(sales, expenses, movements)
	closedAt := time.Now().UTC()

	record := &models.ClosureRecord{
		OrganizationID:   request.OrganizationID,
		PeriodType:       request.PeriodType,
		PeriodKey:        request.PeriodKey,
		SalesByMethod:    ledger.SumByMethod(sales),
		ExpensesByMethod: ledger.SumExpensesByMethod(expenses),
		CashStarting:     models.RoundAmount(request.CashStarting),
		CashEnding:       models.RoundAmount(request.CashEndingIst),
		CashDifference:   models.RoundAmount(request.CashEndingIst).Sub(models.RoundAmount(request.CashStarting)).Sub(netCash),
		Status:           models.ClosureClosed,
		Notes:            request.Notes,
		ClosedAt:         &closedAt,
	}
	if existing != nil {
		record.ID = existing.ID
	}

	stored, err := sm.closures.UpsertByPeriod(ctx, record)
	if err != nil {
		log.WithError(err).Error("persisting closure record failed")
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "closure record", err)
	}

	log.WithField("cash_difference", stored.CashDifference.String()).Info("period closed")

	result := &CloseResult{Record: stored}
	result.Document, result.DocumentErr = sm.generator.GenerateClosureDocument(ctx, stored, sales)
	if result.DocumentErr != nil {
		log.WithError(result.DocumentErr).Warn("closure document generation failed")
		result.DocumentErr = errors.BestEffortError("closure document generation", result.DocumentErr)
	}

	return result, nil
}

// SaveDraft persists a draft record. It refuses to touch a frozen period:
// this is the boundary that enforces the closed-record immutability.
func (sm *StateMachine) SaveDraft(ctx context.Context, record *models.ClosureRecord) (*models.ClosureRecord, error) {
	if record == nil {
		return nil, errors.InputError(errors.CodeMissingField, "record", nil)
	}
	if record.Status != models.ClosureDraft {
		return nil, errors.PersistenceError(errors.CodeInvalidState, "closure record", nil).
			WithContext("status", record.Status)
	}

	existing, err := sm.closures.GetByPeriod(ctx, record.OrganizationID, record.PeriodType, record.PeriodKey)
	if err != nil && err != store.ErrNotFound {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "closure record", err)
	}
	if existing != nil && existing.IsFrozen() {
		return nil, errors.PersistenceError(errors.CodeRecordFrozen, "closure record", nil).
			WithContext("period_key", record.PeriodKey)
	}

	stored, err := sm.closures.UpsertByPeriod(ctx, record)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "closure record", err)
	}
	return stored, nil
}

// MarkCorrected performs the closed → corrected transition. It only stamps
// the amendment marker; the actual correction workflow is a separately
// authorized extension point and not part of the automated flows.
func (sm *StateMachine) MarkCorrected(ctx context.Context, organizationID string, periodType models.PeriodType, periodKey models.PeriodKey, reason string) (*models.ClosureRecord, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, errors.InputError(errors.CodeMissingField, "reason", reason)
	}

	record, err := sm.closures.GetByPeriod(ctx, organizationID, periodType, periodKey)
	if err == store.ErrNotFound {
		return nil, errors.PersistenceError(errors.CodeRecordNotFound, "closure record", err)
	}
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "closure record", err)
	}

	if !record.Status.CanTransitionTo(models.ClosureCorrected) {
		return nil, errors.PersistenceError(errors.CodeInvalidState, "closure record", nil).
			WithContext("status", record.Status)
	}

	record.Status = models.ClosureCorrected
	if record.Notes != "" {
		record.Notes += "\n"
	}
	record.Notes += "correction: " + reason

	stored, err := sm.closures.UpsertByPeriod(ctx, record)
	if err != nil {
		return nil, errors.PersistenceError(errors.CodeWriteFailed, "closure record", err)
	}

	sm.logger.WithFields(logger.Fields{
		"organization": organizationID,
		"period_key":   periodKey,
	}).Warn("closure record marked corrected")

	return stored, nil
}
