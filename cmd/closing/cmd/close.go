package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"pos-closing-service/cmd/closing/config"
	"pos-closing-service/internal/engine"
	"pos-closing-service/internal/models"
	"pos-closing-service/internal/reporter"
	"pos-closing-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	closeOrganization    string
	closeFrom            string
	closeTo              string
	closeStartingBalance string
	closePeriod          string
	closeCashStarting    string
	closeCashEnding      string
	closeCounts          []string
	closeNotes           string
	closeOutputFormat    string
	closeOutputFile      string
	closeDryRun          bool
	closeDocumentDir     string
)

// closeCmd performs daily and monthly period closures.
var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Close one period or a range of business days",
	Long: `Close computes the SOLL cash chain from the sales ledger and closes
periods against it. With --from/--to it runs a bulk closure across the day
range; with --period it closes a single period directly.

Counted IST balances are applied to the chain with --count DATE=AMOUNT and
cascade into the starting balances of the following days.

Examples:
  closing close --organization shop-1 --from 2025-03-01 --to 2025-03-07 --starting-balance 150.00
  closing close --organization shop-1 --from 2025-03-01 --to 2025-03-07 --starting-balance 150.00 --count 2025-03-02=340.50
  closing close --organization shop-1 --period 2025-03-01 --cash-starting 150.00 --cash-ending 340.50
  closing close --organization shop-1 --from 2025-03-01 --to 2025-03-07 --starting-balance 150.00 --dry-run`,
	PreRunE: validateCloseFlags,
	RunE:    runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)

	closeCmd.Flags().StringVarP(&closeOrganization, "organization", "o", "", "organization identifier (required)")
	closeCmd.Flags().StringVar(&closeFrom, "from", "", "first day of the bulk range (YYYY-MM-DD)")
	closeCmd.Flags().StringVar(&closeTo, "to", "", "last day of the bulk range (YYYY-MM-DD)")
	closeCmd.Flags().StringVar(&closeStartingBalance, "starting-balance", "0", "cash balance at the start of the range")
	closeCmd.Flags().StringVar(&closePeriod, "period", "", "single period key to close (YYYY-MM-DD or YYYY-MM)")
	closeCmd.Flags().StringVar(&closeCashStarting, "cash-starting", "0", "counted cash at the start of the single period")
	closeCmd.Flags().StringVar(&closeCashEnding, "cash-ending", "", "counted cash at the end of the single period")
	closeCmd.Flags().StringSliceVar(&closeCounts, "count", nil, "counted IST balance as DATE=AMOUNT (repeatable)")
	closeCmd.Flags().StringVar(&closeNotes, "notes", "", "notes recorded on the closure")
	closeCmd.Flags().StringVar(&closeOutputFormat, "output-format", "console", "output format (console, json)")
	closeCmd.Flags().StringVar(&closeOutputFile, "output-file", "", "write the report to a file instead of stdout")
	closeCmd.Flags().BoolVar(&closeDryRun, "dry-run", false, "print the cash chain without closing anything")
	closeCmd.Flags().StringVar(&closeDocumentDir, "document-dir", "", "directory for generated closure documents")

	closeCmd.MarkFlagRequired("organization")

	viper.BindPFlag("output-format", closeCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("document-dir", closeCmd.Flags().Lookup("document-dir"))
}

func validateCloseFlags(cmd *cobra.Command, args []string) error {
	if closePeriod == "" && (closeFrom == "" || closeTo == "") {
		return fmt.Errorf("either --period or both --from and --to are required")
	}
	if closePeriod != "" && (closeFrom != "" || closeTo != "") {
		return fmt.Errorf("--period cannot be combined with --from/--to")
	}
	if closePeriod != "" && closeCashEnding == "" {
		return fmt.Errorf("--cash-ending is required with --period")
	}

	format := reporter.OutputFormat(viper.GetString("output-format"))
	if !format.IsValid() {
		return fmt.Errorf("invalid output format %q (expected console or json)", format)
	}
	return nil
}

func runClose(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	if err := executeClose(cmd.Context()); err != nil {
		exitCode := handler.HandleError(err)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}
	return nil
}

func executeClose(ctx context.Context) error {
	log, err := logger.NewLogger(config.CreateLoggerConfig())
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)

	eng, err := config.CreateEngine(viper.GetString("dsn"), viper.GetString("document-dir"))
	if err != nil {
		return err
	}

	reportGen, err := reporter.NewReportGenerator(config.CreateReportConfig(viper.GetString("output-format")))
	if err != nil {
		return err
	}

	writer, closeWriter, err := openOutput(closeOutputFile)
	if err != nil {
		return err
	}
	defer closeWriter()

	if closePeriod != "" {
		return closeSinglePeriod(ctx, eng)
	}

	from, err := parseDay("from", closeFrom)
	if err != nil {
		return err
	}
	to, err := parseDay("to", closeTo)
	if err != nil {
		return err
	}
	startingBalance, err := decimal.NewFromString(closeStartingBalance)
	if err != nil {
		return fmt.Errorf("invalid starting balance %q: %w", closeStartingBalance, err)
	}

	chain, err := eng.ComputeCashChain(ctx, closeOrganization, from, to, startingBalance)
	if err != nil {
		return err
	}

	for _, raw := range closeCounts {
		date, counted, err := parseCount(raw)
		if err != nil {
			return err
		}
		chain, err = eng.UpdateChainIst(chain, date, counted)
		if err != nil {
			return err
		}
	}

	if closeDryRun {
		return reportGen.WriteCashChain(chain, writer)
	}

	result, err := eng.RunBulkClosure(ctx, closeOrganization, chain, closeNotes)
	if result != nil {
		if writeErr := reportGen.WriteBulkReport(result, writer); writeErr != nil && err == nil {
			err = writeErr
		}
	}
	return err
}

func closeSinglePeriod(ctx context.Context, eng *engine.Engine) error {
	periodKey := models.PeriodKey(closePeriod)
	periodType := models.PeriodDaily
	if len(closePeriod) == len("2006-01") {
		periodType = models.PeriodMonthly
	}
	if _, _, err := periodKey.Bounds(periodType); err != nil {
		return err
	}

	cashStarting, err := decimal.NewFromString(closeCashStarting)
	if err != nil {
		return fmt.Errorf("invalid cash starting %q: %w", closeCashStarting, err)
	}
	cashEnding, err := decimal.NewFromString(closeCashEnding)
	if err != nil {
		return fmt.Errorf("invalid cash ending %q: %w", closeCashEnding, err)
	}

	result, err := eng.ClosePeriod(ctx, closeOrganization, periodType, periodKey, cashStarting, cashEnding, closeNotes)
	if err != nil {
		return err
	}

	record := result.Record
	if result.AlreadyClosed {
		fmt.Printf("Period %s is already closed (closure %s)\n", record.PeriodKey, record.ID)
		return nil
	}
	fmt.Printf("Closed period %s: difference %s (closure %s)\n",
		record.PeriodKey, record.CashDifference.StringFixed(2), record.ID)
	if result.DocumentErr != nil {
		fmt.Fprintf(os.Stderr, "Warning: document generation failed: %v\n", result.DocumentErr)
	}
	return nil
}

func parseDay(name, value string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s date %q (expected YYYY-MM-DD)", name, value)
	}
	return t, nil
}

func parseCount(raw string) (time.Time, decimal.Decimal, error) {
	parts := strings.SplitN(raw, "=", 2)
	if len(parts) != 2 {
		return time.Time{}, decimal.Decimal{}, fmt.Errorf("invalid --count %q (expected DATE=AMOUNT)", raw)
	}
	date, err := parseDay("count", parts[0])
	if err != nil {
		return time.Time{}, decimal.Decimal{}, err
	}
	counted, err := decimal.NewFromString(parts[1])
	if err != nil {
		return time.Time{}, decimal.Decimal{}, fmt.Errorf("invalid --count amount %q: %w", parts[1], err)
	}
	return date, counted, nil
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("creating output file: %w", err)
	}
	return file, func() { file.Close() }, nil
}
