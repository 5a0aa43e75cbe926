package cmd

import (
	"fmt"
	"os"
	"strings"

	"pos-closing-service/pkg/errors"
	"pos-closing-service/pkg/logger"

	"github.com/spf13/viper"
)

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler
func NewCLIErrorHandler() *CLIErrorHandler {
	return &CLIErrorHandler{
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError handles errors and provides user-friendly messages
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	// Log the error
	h.logger.WithError(err).Error("Command failed")

	// Handle engine errors with detailed information
	var engineErr *errors.Error
	if errors.AsEngineError(err, &engineErr) {
		return h.handleEngineError(engineErr)
	}

	// Handle other error types
	return h.handleGenericError(err)
}

// handleEngineError handles engine errors with detailed context
func (h *CLIErrorHandler) handleEngineError(err *errors.Error) int {
	// Print the main error message
	fmt.Fprintf(os.Stderr, "Error: %s\n", err.Message)

	// Add context information if available
	if len(err.Context) > 0 {
		fmt.Fprintf(os.Stderr, "\nContext:\n")
		for key, value := range err.Context {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", key, value)
		}
	}

	// Add suggestion if available
	if err.Suggestion != "" {
		fmt.Fprintf(os.Stderr, "\nSuggestion: %s\n", err.Suggestion)
	}

	// Add category-specific help
	fmt.Fprintf(os.Stderr, "\n%s\n", h.getCategoryHelp(err.Category))

	// Show underlying error in verbose mode
	if h.verbose && err.Cause != nil {
		fmt.Fprintf(os.Stderr, "\nUnderlying error: %v\n", err.Cause)
	}

	return err.GetExitCode()
}

// handleGenericError handles errors outside the engine taxonomy
func (h *CLIErrorHandler) handleGenericError(err error) int {
	if h.isFileNotFoundError(err) {
		fmt.Fprintf(os.Stderr, "Error: File not found\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	}

	if h.isPermissionError(err) {
		fmt.Fprintf(os.Stderr, "Error: Permission denied\n")
		fmt.Fprintf(os.Stderr, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	}

	// Generic error handling
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)

	if !h.verbose {
		fmt.Fprintf(os.Stderr, "\nFor more details, run with --verbose flag\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func (h *CLIErrorHandler) getCategoryHelp(category errors.Category) string {
	switch category {
	case errors.CategoryInput:
		return `Input error help:
• Check that all required flags and fields have values
• Verify dates use YYYY-MM-DD and period keys use YYYY-MM-DD or YYYY-MM
• Ensure amounts are decimal numbers without currency symbols
• Verify the statement file structure matches the expected row format`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Ensure provider settlement windows and tolerances are valid
• Try running with default settings first`

	case errors.CategoryRecalculation:
		return `Recalculation error help:
• Verify the ledger is reachable (check --dsn)
• Check that the organization has booked records in the period
• Re-run the closure once the ledger is available again`

	case errors.CategoryPersistence:
		return `Persistence error help:
• Verify the database is reachable and writable (check --dsn)
• Check for a closed or corrected period blocking the write
• Re-run the command; closures are idempotent per period`

	case errors.CategorySystemic:
		return `Systemic error help:
• Check that the organization identifier is set
• Verify the service dependencies are available
• Use --verbose for the underlying cause`

	default:
		return `For more help:
• Use 'closing --help' for general help
• Use 'closing close --help' or 'closing reconcile --help' for command help
• Report bugs or ask for help on the project repository`
	}
}

// Error detection helpers

func (h *CLIErrorHandler) isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func (h *CLIErrorHandler) isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}
