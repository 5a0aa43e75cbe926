package closure

import (
	"context"
	"strings"
	"time"

	"pos-closing-service/internal/cashchain"
	"pos-closing-service/internal/models"
	"pos-closing-service/pkg/errors"
	"pos-closing-service/pkg/logger"
)

// DayResult records the outcome of closing a single day of a bulk run.
type DayResult struct {
	Date            time.Time `json:"date"`
	Success         bool      `json:"success"`
	AlreadyClosed   bool      `json:"alreadyClosed,omitempty"`
	ClosureID       string    `json:"closureId,omitempty"`
	ErrorMessage    string    `json:"errorMessage,omitempty"`
	DocumentWarning string    `json:"documentWarning,omitempty"`
}

// BulkResult summarizes a bulk closure run over a range of days.
type BulkResult struct {
	OrganizationID string      `json:"organizationId"`
	Results        []DayResult `json:"results"`
	SuccessCount   int         `json:"successCount"`
	FailureCount   int         `json:"failureCount"`
	Cancelled      bool        `json:"cancelled,omitempty"`
	StartedAt      time.Time   `json:"startedAt"`
	FinishedAt     time.Time   `json:"finishedAt"`
}

// BulkOrchestrator closes every day of a computed cash chain in order.
//
// Days are closed sequentially, oldest first, each through the same state
// machine transition a single close uses. A day that fails to close is
// recorded and the run continues with the next day; a cancelled context
// stops the run between days and leaves already-closed days closed.
type BulkOrchestrator struct {
	machine *StateMachine
	logger  logger.Logger
}

// NewBulkOrchestrator creates a bulk closure orchestrator.
func NewBulkOrchestrator(machine *StateMachine) (*BulkOrchestrator, error) {
	if machine == nil {
		return nil, errors.New(errors.CategoryConfiguration, errors.CodeInvalidConfig, "bulk orchestrator requires a state machine")
	}
	return &BulkOrchestrator{
		machine: machine,
		logger:  logger.GetGlobalLogger().WithComponent("bulk_orchestrator"),
	}, nil
}

// Run closes every day of the chain for the given organization. The chain
// carries the per-day starting and counted ending balances; aggregates are
// still recomputed from the ledger inside each transition.
func (o *BulkOrchestrator) Run(ctx context.Context, organizationID string, chain []models.CashChainLink, notes string) (*BulkResult, error) {
	if strings.TrimSpace(organizationID) == "" {
		return nil, errors.SystemicError(errors.CodeNoOrganization, "bulk closure", nil)
	}
	if len(chain) == 0 {
		return nil, errors.InputError(errors.CodeMissingField, "chain", nil).
			WithSuggestion("compute a cash chain for the range before running a bulk closure")
	}
	if err := cashchain.Validate(chain); err != nil {
		return nil, errors.InputError(errors.CodeInvalidPeriod, "chain", err.Error())
	}

	result := &BulkResult{
		OrganizationID: organizationID,
		Results:        make([]DayResult, 0, len(chain)),
		StartedAt:      time.Now().UTC(),
	}

	log := o.logger.WithFields(logger.Fields{
		"organization": organizationID,
		"days":         len(chain),
	})
	log.Info("starting bulk closure run")

	for _, link := range chain {
		select {
		case <-ctx.Done():
			result.Cancelled = true
			result.FinishedAt = time.Now().UTC()
			log.WithField("closed_days", result.SuccessCount).Warn("bulk closure cancelled between days")
			return result, errors.SystemicError(errors.CodeCancelled, "bulk closure", ctx.Err())
		default:
		}

		day := o.closeDay(ctx, organizationID, link, notes)
		result.Results = append(result.Results, day)
		if day.Success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}

	result.FinishedAt = time.Now().UTC()
	log.WithFields(logger.Fields{
		"succeeded": result.SuccessCount,
		"failed":    result.FailureCount,
	}).Info("bulk closure run finished")

	return result, nil
}

func (o *BulkOrchestrator) closeDay(ctx context.Context, organizationID string, link models.CashChainLink, notes string) DayResult {
	day := DayResult{Date: link.Date}

	closed, err := o.machine.ClosePeriod(ctx, &CloseRequest{
		OrganizationID: organizationID,
		PeriodType:     models.PeriodDaily,
		PeriodKey:      models.DailyKey(link.Date),
		CashStarting:   link.CashStarting,
		CashEndingIst:  link.CashEndingIst,
		Notes:          notes,
	})
	if err != nil {
		day.ErrorMessage = err.Error()
		o.logger.WithFields(logger.Fields{
			"organization": organizationID,
			"date":         models.DailyKey(link.Date),
		}).WithError(err).Error("closing day failed, continuing with next day")
		return day
	}

	day.Success = true
	day.AlreadyClosed = closed.AlreadyClosed
	day.ClosureID = closed.Record.ID
	if closed.DocumentErr != nil {
		day.DocumentWarning = closed.DocumentErr.Error()
	}
	return day
}
