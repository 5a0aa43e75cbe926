package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"pos-closing-service/cmd/closing/config"
	"pos-closing-service/internal/models"
	"pos-closing-service/internal/normalizer"
	"pos-closing-service/internal/reporter"
	"pos-closing-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	reconcileOrganization string
	reconcilePeriod       string
	reconcileStatement    string
	reconcileOutputFormat string
	reconcileOutputFile   string
	reconcileSummaryOnly  bool
)

// reconcileCmd imports a bank statement and reports on reconciliation state.
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Import a bank statement and match it against the ledger",
	Long: `Reconcile normalizes a parsed bank statement, matches every entry
against booked sales, settlement batches and expenses, and prints the
reconciliation summary for the period. Re-importing a statement for the
same period supersedes the previous import.

The statement file is a JSON array of rows:
  [{"amount": "150.00", "date": "2025-03-04", "marker": "CRDT", "narrative": "SUMUP PAYOUT"}]

Examples:
  closing reconcile --organization shop-1 --period 2025-03 --statement statement.json
  closing reconcile --organization shop-1 --period 2025-03 --summary-only
  closing reconcile --organization shop-1 --period 2025-03 --statement statement.json --output-format json`,
	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	reconcileCmd.Flags().StringVarP(&reconcileOrganization, "organization", "o", "", "organization identifier (required)")
	reconcileCmd.Flags().StringVarP(&reconcilePeriod, "period", "p", "", "period key (YYYY-MM or YYYY-MM-DD, required)")
	reconcileCmd.Flags().StringVarP(&reconcileStatement, "statement", "s", "", "statement rows file (JSON)")
	reconcileCmd.Flags().StringVar(&reconcileOutputFormat, "output-format", "console", "output format (console, json)")
	reconcileCmd.Flags().StringVar(&reconcileOutputFile, "output-file", "", "write the report to a file instead of stdout")
	reconcileCmd.Flags().BoolVar(&reconcileSummaryOnly, "summary-only", false, "skip the import and only print the summary")
	reconcileCmd.Flags().String("amount-tolerance", "", "amount tolerance for matching (e.g. 0.05)")
	reconcileCmd.Flags().String("deposit-min", "", "minimum credit amount classified as an owner deposit")

	reconcileCmd.MarkFlagRequired("organization")
	reconcileCmd.MarkFlagRequired("period")

	viper.BindPFlag("amount-tolerance", reconcileCmd.Flags().Lookup("amount-tolerance"))
	viper.BindPFlag("deposit-min", reconcileCmd.Flags().Lookup("deposit-min"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	if !reconcileSummaryOnly {
		if reconcileStatement == "" {
			return fmt.Errorf("--statement is required unless --summary-only is set")
		}
		if err := validateFileExists(reconcileStatement, "statement file"); err != nil {
			return err
		}
	}

	periodKey := models.PeriodKey(reconcilePeriod)
	if _, _, err := periodKey.Bounds(models.PeriodMonthly); err != nil {
		if _, _, dayErr := periodKey.Bounds(models.PeriodDaily); dayErr != nil {
			return fmt.Errorf("invalid period key %q (expected YYYY-MM or YYYY-MM-DD)", reconcilePeriod)
		}
	}

	format := reporter.OutputFormat(reconcileOutputFormat)
	if !format.IsValid() {
		return fmt.Errorf("invalid output format %q (expected console or json)", format)
	}
	return nil
}

func validateFileExists(path, description string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%s does not exist: %s", description, path)
		}
		return fmt.Errorf("cannot access %s %s: %w", description, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory, not a file: %s", description, path)
	}
	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	if err := executeReconcile(cmd.Context()); err != nil {
		exitCode := handler.HandleError(err)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}
	return nil
}

func executeReconcile(ctx context.Context) error {
	log, err := logger.NewLogger(config.CreateLoggerConfig())
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)

	eng, err := config.CreateEngine(viper.GetString("dsn"), viper.GetString("document-dir"))
	if err != nil {
		return err
	}

	reportGen, err := reporter.NewReportGenerator(config.CreateReportConfig(reconcileOutputFormat))
	if err != nil {
		return err
	}

	writer, closeWriter, err := openOutput(reconcileOutputFile)
	if err != nil {
		return err
	}
	defer closeWriter()

	periodKey := models.PeriodKey(reconcilePeriod)

	if !reconcileSummaryOnly {
		rows, err := loadStatementRows(reconcileStatement)
		if err != nil {
			return err
		}

		result, err := eng.ImportBankStatement(ctx, reconcileOrganization, periodKey, rows)
		if err != nil {
			return err
		}

		if verbose {
			fmt.Fprintf(os.Stderr, "Imported %d entries (%d rows rejected), %d matches proposed\n",
				len(result.Entries), result.Stats.ErrorCount, len(result.Matches))
		}
		for _, rowErr := range result.Stats.Errors {
			fmt.Fprintf(os.Stderr, "Warning: %v\n", rowErr)
		}
	}

	summary, err := eng.Summary(ctx, reconcileOrganization, periodKey)
	if err != nil {
		return err
	}
	return reportGen.WriteSummaryReport(summary, writer)
}

func loadStatementRows(path string) ([]*normalizer.RawEntry, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading statement file: %w", err)
	}

	var rows []*normalizer.RawEntry
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("parsing statement file %s: %w", path, err)
	}
	return rows, nil
}
