// Package errors provides the error taxonomy of the closing engine.
//
// Errors are classified by how they propagate: input errors are rejected
// before any persistence, recalculation errors abort a single closure
// transition, persistence errors fail one item of a bulk run, best-effort
// errors are only ever surfaced as warnings, and systemic errors abort the
// whole operation. Low-confidence or unexplained reconciliation matches are
// deliberately NOT errors; they are first-class matcher outcomes.
package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Category represents how an error propagates through the engine.
type Category string

const (
	// CategoryInput marks malformed caller input, rejected before persistence.
	CategoryInput Category = "input"
	// CategoryRecalculation marks ledger aggregate failures during closing.
	CategoryRecalculation Category = "recalculation"
	// CategoryPersistence marks storage write failures.
	CategoryPersistence Category = "persistence"
	// CategoryBestEffort marks failures of best-effort side effects
	// (document generation); never fatal.
	CategoryBestEffort Category = "besteffort"
	// CategorySystemic marks failures that abort the whole operation.
	CategorySystemic Category = "systemic"
	// CategoryConfiguration marks invalid engine or CLI configuration.
	CategoryConfiguration Category = "configuration"
)

// Code represents specific error codes within categories.
type Code string

const (
	// Input errors
	CodeMissingField   Code = "missing_field"
	CodeInvalidAmount  Code = "invalid_amount"
	CodeInvalidDate    Code = "invalid_date"
	CodeInvalidPeriod  Code = "invalid_period"
	CodeEmptyStatement Code = "empty_statement"

	// Recalculation errors
	CodeLedgerQuery Code = "ledger_query"
	CodeAggregation Code = "aggregation"

	// Persistence errors
	CodeWriteFailed    Code = "write_failed"
	CodeRecordFrozen   Code = "record_frozen"
	CodeRecordNotFound Code = "record_not_found"
	CodeInvalidState   Code = "invalid_state"

	// Best-effort errors
	CodeDocumentGeneration Code = "document_generation"

	// Systemic errors
	CodeNoOrganization      Code = "no_organization"
	CodeUnreadableStatement Code = "unreadable_statement"
	CodeCancelled           Code = "cancelled"

	// Configuration errors
	CodeInvalidConfig Code = "invalid_config"
	CodeMissingConfig Code = "missing_config"
)

// Error is the base error type for all engine errors.
type Error struct {
	Category   Category          `json:"category"`
	Code       Code              `json:"code"`
	Message    string            `json:"message"`
	Suggestion string            `json:"suggestion,omitempty"`
	Context    Context           `json:"context,omitempty"`
	Cause      error             `json:"-"`
	StackTrace errors.StackTrace `json:"-"`
}

// Context provides additional information about the error.
type Context map[string]interface{}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s (suggestion: %s)", e.Message, e.Suggestion)
	}
	return e.Message
}

// Unwrap returns the underlying cause error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether the error aborts the surrounding operation.
// Best-effort failures never do.
func (e *Error) IsFatal() bool {
	return e.Category != CategoryBestEffort
}

// GetExitCode returns an appropriate CLI exit code for the error.
func (e *Error) GetExitCode() int {
	switch e.Category {
	case CategoryInput:
		return 2
	case CategoryConfiguration:
		return 3
	case CategoryRecalculation, CategoryPersistence:
		return 4
	case CategorySystemic:
		return 5
	case CategoryBestEffort:
		return 0
	default:
		return 1
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value interface{}) *Error {
	if e.Context == nil {
		e.Context = make(Context)
	}
	e.Context[key] = value
	return e
}

// WithSuggestion adds a suggestion for fixing the error.
func (e *Error) WithSuggestion(suggestion string) *Error {
	e.Suggestion = suggestion
	return e
}

// New creates a new Error.
func New(category Category, code Code, message string) *Error {
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		StackTrace: errors.New("").(stackTracer).StackTrace(),
	}
}

// Wrap wraps an existing error with engine error context.
func Wrap(err error, category Category, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Category:   category,
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: errors.WithStack(err).(stackTracer).StackTrace(),
	}
}

// stackTracer interface for extracting stack traces.
type stackTracer interface {
	StackTrace() errors.StackTrace
}

// InputError creates an input validation error for a specific field.
func InputError(code Code, field string, value interface{}) *Error {
	var message, suggestion string

	switch code {
	case CodeMissingField:
		message = fmt.Sprintf("required field '%s' is missing or empty", field)
		suggestion = "provide a value for this required field"
	case CodeInvalidAmount:
		message = fmt.Sprintf("invalid amount in field '%s': %v", field, value)
		suggestion = "ensure amounts are valid decimal numbers (e.g., '12.34')"
	case CodeInvalidDate:
		message = fmt.Sprintf("invalid date in field '%s': %v", field, value)
		suggestion = "use date format YYYY-MM-DD"
	case CodeInvalidPeriod:
		message = fmt.Sprintf("invalid period in field '%s': %v", field, value)
		suggestion = "use YYYY-MM-DD for daily and YYYY-MM for monthly periods"
	case CodeEmptyStatement:
		message = "bank statement contains no entries"
		suggestion = "check the statement export and the selected period"
	default:
		message = fmt.Sprintf("invalid input in field '%s': %v", field, value)
		suggestion = "check the field value and format"
	}

	return New(CategoryInput, code, message).
		WithSuggestion(suggestion).
		WithContext("field", field).
		WithContext("value", value)
}

// RecalculationError creates an error for a failed ledger recalculation.
// The closure transition it was part of does not happen.
func RecalculationError(code Code, period string, err error) *Error {
	message := fmt.Sprintf("ledger recalculation failed for period %s", period)
	if code == CodeAggregation {
		message = fmt.Sprintf("aggregating ledger figures failed for period %s", period)
	}

	var result *Error
	if err != nil {
		result = Wrap(err, CategoryRecalculation, code, message)
	} else {
		result = New(CategoryRecalculation, code, message)
	}
	return result.
		WithSuggestion("verify the ledger source is reachable and retry the closure").
		WithContext("period", period)
}

// PersistenceError creates an error for a failed or refused storage write.
func PersistenceError(code Code, entity string, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeRecordFrozen:
		message = fmt.Sprintf("%s is closed and its monetary fields are frozen", entity)
		suggestion = "use the explicit correction transition to amend a closed record"
	case CodeRecordNotFound:
		message = fmt.Sprintf("%s not found", entity)
		suggestion = "check the identifier"
	case CodeInvalidState:
		message = fmt.Sprintf("%s is not in a state that allows this transition", entity)
		suggestion = "check the record status before retrying"
	default:
		message = fmt.Sprintf("persisting %s failed", entity)
		suggestion = "check storage connectivity and retry"
	}

	var result *Error
	if err != nil {
		result = Wrap(err, CategoryPersistence, code, message)
	} else {
		result = New(CategoryPersistence, code, message)
	}
	return result.
		WithSuggestion(suggestion).
		WithContext("entity", entity)
}

// BestEffortError creates a non-fatal error for a failed side effect.
func BestEffortError(operation string, err error) *Error {
	message := fmt.Sprintf("best-effort operation '%s' failed", operation)

	var result *Error
	if err != nil {
		result = Wrap(err, CategoryBestEffort, CodeDocumentGeneration, message)
	} else {
		result = New(CategoryBestEffort, CodeDocumentGeneration, message)
	}
	return result.
		WithSuggestion("the closure itself succeeded; regenerate the document later").
		WithContext("operation", operation)
}

// SystemicError creates an error that aborts the whole operation.
func SystemicError(code Code, operation string, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeNoOrganization:
		message = fmt.Sprintf("no organization context for %s", operation)
		suggestion = "every engine call requires an explicit organization ID"
	case CodeUnreadableStatement:
		message = fmt.Sprintf("bank statement is unreadable during %s", operation)
		suggestion = "verify the statement file is a supported export format"
	case CodeCancelled:
		message = fmt.Sprintf("%s was cancelled", operation)
		suggestion = "already completed items remain valid; rerun to resume"
	default:
		message = fmt.Sprintf("systemic failure during %s", operation)
		suggestion = "check logs for the underlying cause"
	}

	var result *Error
	if err != nil {
		result = Wrap(err, CategorySystemic, code, message)
	} else {
		result = New(CategorySystemic, code, message)
	}
	return result.
		WithSuggestion(suggestion).
		WithContext("operation", operation)
}

// ConfigurationError creates a configuration-related error.
func ConfigurationError(code Code, setting string, value interface{}, err error) *Error {
	var message, suggestion string

	switch code {
	case CodeMissingConfig:
		message = fmt.Sprintf("missing required configuration: %s", setting)
		suggestion = "provide this configuration setting or use a config file"
	default:
		message = fmt.Sprintf("invalid configuration for '%s': %v", setting, value)
		suggestion = "check the configuration documentation for valid values"
	}

	var result *Error
	if err != nil {
		result = Wrap(err, CategoryConfiguration, code, message)
	} else {
		result = New(CategoryConfiguration, code, message)
	}
	return result.
		WithSuggestion(suggestion).
		WithContext("setting", setting).
		WithContext("value", value)
}

// GetCategory extracts the category of an error, or CategorySystemic for
// unclassified errors.
func GetCategory(err error) Category {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Category
	}
	return CategorySystemic
}

// IsCategory checks whether an error belongs to the given category.
func IsCategory(err error, category Category) bool {
	return GetCategory(err) == category
}

// AsEngineError reports whether err is or wraps an *Error and assigns it to
// target when so.
func AsEngineError(err error, target **Error) bool {
	return errors.As(err, target)
}

// GetExitCode extracts an exit code from any error.
func GetExitCode(err error) int {
	if err == nil {
		return 0
	}
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.GetExitCode()
	}
	return 1
}
