// Package reporter renders bulk closure results and reconciliation
// summaries for the CLI, as human-readable console output or JSON.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"pos-closing-service/internal/closure"
	"pos-closing-service/internal/engine"
	"pos-closing-service/internal/models"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
)

// IsValid checks if the output format is supported.
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON:
		return true
	default:
		return false
	}
}

// ReportConfig holds report rendering options.
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// IncludeAlreadyClosed lists idempotently skipped days in the bulk
	// report instead of only counting them.
	IncludeAlreadyClosed bool `json:"include_already_closed"`

	// IncludePendingDetail lists every pending match in the reconciliation
	// summary, not just the counts.
	IncludePendingDetail bool `json:"include_pending_detail"`
}

// DefaultReportConfig returns the default rendering options.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:               FormatConsole,
		IncludeAlreadyClosed: true,
		IncludePendingDetail: true,
	}
}

// Validate validates the report configuration.
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	return nil
}

// ReportGenerator renders engine results in the configured format.
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a report generator.
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}
	return &ReportGenerator{config: config}, nil
}

// WriteBulkReport renders the outcome of a bulk closure run.
func (rg *ReportGenerator) WriteBulkReport(result *closure.BulkResult, writer io.Writer) error {
	if result == nil {
		return fmt.Errorf("bulk result cannot be nil")
	}
	if rg.config.Format == FormatJSON {
		return writeJSON(result, writer)
	}

	fmt.Fprintf(writer, "BULK CLOSURE REPORT\n")
	fmt.Fprintf(writer, "Organization: %s\n", result.OrganizationID)
	fmt.Fprintf(writer, "Started:  %s\n", result.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Finished: %s\n\n", result.FinishedAt.Format(time.RFC3339))

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	fmt.Fprintf(writer, "Days processed: %d\n", len(result.Results))
	fmt.Fprintf(writer, "Closed:         %d\n", result.SuccessCount)
	fmt.Fprintf(writer, "Failed:         %d\n", result.FailureCount)
	if result.Cancelled {
		fmt.Fprintf(writer, "Run was cancelled before completing.\n")
	}
	fmt.Fprintf(writer, "\n=== DAYS ===\n")

	for _, day := range result.Results {
		if day.AlreadyClosed && !rg.config.IncludeAlreadyClosed {
			continue
		}
		status := "closed"
		switch {
		case day.AlreadyClosed:
			status = "already closed"
		case !day.Success:
			status = "FAILED"
		}
		fmt.Fprintf(writer, "%s  %-14s", day.Date.Format("2006-01-02"), status)
		if day.ErrorMessage != "" {
			fmt.Fprintf(writer, "  %s", day.ErrorMessage)
		}
		if day.DocumentWarning != "" {
			fmt.Fprintf(writer, "  (document: %s)", day.DocumentWarning)
		}
		fmt.Fprintf(writer, "\n")
	}
	return nil
}

// WriteSummaryReport renders a reconciliation summary for one period.
func (rg *ReportGenerator) WriteSummaryReport(summary *engine.ReconciliationSummary, writer io.Writer) error {
	if summary == nil {
		return fmt.Errorf("reconciliation summary cannot be nil")
	}
	if rg.config.Format == FormatJSON {
		return writeJSON(summary, writer)
	}

	fmt.Fprintf(writer, "RECONCILIATION SUMMARY\n")
	fmt.Fprintf(writer, "Period: %s\n\n", summary.PeriodKey)

	fmt.Fprintf(writer, "=== MATCHES ===\n")
	fmt.Fprintf(writer, "Total entries: %d\n", summary.Total)
	for _, status := range []models.MatchStatus{models.MatchPending, models.MatchApproved, models.MatchRejected, models.MatchResolvedUnmatched} {
		if count := summary.ByStatus[status]; count > 0 {
			fmt.Fprintf(writer, "%-10s %d\n", status, count)
		}
	}
	if summary.Resolved {
		fmt.Fprintf(writer, "\nPeriod is fully reconciled.\n")
	} else {
		fmt.Fprintf(writer, "\nPeriod is NOT reconciled yet.\n")
	}

	if rg.config.IncludePendingDetail && len(summary.Pending) > 0 {
		fmt.Fprintf(writer, "\n=== PENDING MATCHES ===\n")
		for _, match := range summary.Pending {
			fmt.Fprintf(writer, "%s  %-18s confidence %5.1f", match.BankEntryID, match.MatchType, match.Confidence)
			if len(match.Reasons) > 0 {
				fmt.Fprintf(writer, "  %s", match.Reasons[0])
			}
			fmt.Fprintf(writer, "\n")
		}
	}
	return nil
}

// WriteCashChain renders a computed cash chain as a table.
func (rg *ReportGenerator) WriteCashChain(chain []models.CashChainLink, writer io.Writer) error {
	if rg.config.Format == FormatJSON {
		return writeJSON(chain, writer)
	}

	fmt.Fprintf(writer, "%-12s %12s %12s %12s %12s %10s\n",
		"DATE", "STARTING", "CASH SALES", "SOLL", "IST", "DIFF")
	for _, link := range chain {
		marker := ""
		if link.IstCounted {
			marker = " *"
		}
		fmt.Fprintf(writer, "%-12s %12s %12s %12s %12s %10s%s\n",
			link.Date.Format("2006-01-02"),
			link.CashStarting.StringFixed(2),
			link.CashSalesTotal.StringFixed(2),
			link.CashEndingSoll.StringFixed(2),
			link.CashEndingIst.StringFixed(2),
			link.Difference.StringFixed(2),
			marker)
	}
	return nil
}

func writeJSON(v interface{}, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
