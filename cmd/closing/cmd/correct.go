package cmd

import (
	"fmt"
	"os"

	"pos-closing-service/cmd/closing/config"
	"pos-closing-service/internal/models"
	"pos-closing-service/pkg/logger"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	correctOrganization string
	correctPeriodType   string
	correctPeriod       string
	correctReason       string
)

// correctCmd flags a closed period for correction.
var correctCmd = &cobra.Command{
	Use:   "correct",
	Short: "Flag a closed period as corrected",
	Long: `Correct transitions a closed period to the corrected state. Corrected
periods stay frozen; the correction reason is appended to the closure notes
for the audit trail.

Examples:
  closing correct --organization shop-1 --period 2025-03-01 --reason "till recount after shift"
  closing correct --organization shop-1 --period-type monthly --period 2025-03 --reason "expense rebooked"`,
	PreRunE: validateCorrectFlags,
	RunE:    runCorrect,
}

func init() {
	rootCmd.AddCommand(correctCmd)

	correctCmd.Flags().StringVarP(&correctOrganization, "organization", "o", "", "organization identifier (required)")
	correctCmd.Flags().StringVar(&correctPeriodType, "period-type", "daily", "period type (daily, monthly)")
	correctCmd.Flags().StringVarP(&correctPeriod, "period", "p", "", "period key (required)")
	correctCmd.Flags().StringVar(&correctReason, "reason", "", "correction reason (required)")

	correctCmd.MarkFlagRequired("organization")
	correctCmd.MarkFlagRequired("period")
	correctCmd.MarkFlagRequired("reason")
}

func validateCorrectFlags(cmd *cobra.Command, args []string) error {
	periodType := models.PeriodType(correctPeriodType)
	if !periodType.IsValid() {
		return fmt.Errorf("invalid period type %q (expected daily or monthly)", correctPeriodType)
	}
	if _, _, err := models.PeriodKey(correctPeriod).Bounds(periodType); err != nil {
		return fmt.Errorf("invalid period key %q for %s periods", correctPeriod, periodType)
	}
	return nil
}

func runCorrect(cmd *cobra.Command, args []string) error {
	handler := NewCLIErrorHandler()

	if err := executeCorrect(cmd); err != nil {
		exitCode := handler.HandleError(err)
		if exitCode != 0 {
			os.Exit(exitCode)
		}
	}
	return nil
}

func executeCorrect(cmd *cobra.Command) error {
	log, err := logger.NewLogger(config.CreateLoggerConfig())
	if err != nil {
		return err
	}
	logger.SetGlobalLogger(log)

	eng, err := config.CreateEngine(viper.GetString("dsn"), viper.GetString("document-dir"))
	if err != nil {
		return err
	}

	record, err := eng.MarkClosureCorrected(cmd.Context(), correctOrganization,
		models.PeriodType(correctPeriodType), models.PeriodKey(correctPeriod), correctReason)
	if err != nil {
		return err
	}

	fmt.Printf("Period %s marked corrected (closure %s)\n", record.PeriodKey, record.ID)
	return nil
}
