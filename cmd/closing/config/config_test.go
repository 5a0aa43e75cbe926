package config

import (
	"testing"

	"pos-closing-service/internal/models"
	"pos-closing-service/internal/reporter"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

func TestCreateMatcherConfigDefaults(t *testing.T) {
	viper.Reset()

	config, err := CreateMatcherConfig()
	if err != nil {
		t.Fatalf("failed to create matcher config: %v", err)
	}

	if !config.AmountTolerance.Equal(decimal.RequireFromString("0.05")) {
		t.Errorf("expected amount tolerance 0.05, got %s", config.AmountTolerance)
	}
	if !config.DepositMinAmount.Equal(decimal.NewFromInt(100)) {
		t.Errorf("expected deposit minimum 100, got %s", config.DepositMinAmount)
	}

	twint, ok := config.Providers[models.PaymentTwint]
	if !ok {
		t.Fatal("expected a TWINT provider profile")
	}
	if twint.SettlementLagMinDays != 1 || twint.SettlementLagMaxDays != 2 {
		t.Errorf("expected TWINT lag window 1-2, got %d-%d",
			twint.SettlementLagMinDays, twint.SettlementLagMaxDays)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default matcher config should be valid: %v", err)
	}
}

func TestCreateMatcherConfigOverrides(t *testing.T) {
	viper.Reset()
	viper.Set("amount-tolerance", "0.10")
	viper.Set("deposit-min", "250")
	viper.Set("sumup-lag-min", 0)
	viper.Set("sumup-lag-max", 5)
	defer viper.Reset()

	config, err := CreateMatcherConfig()
	if err != nil {
		t.Fatalf("failed to create matcher config: %v", err)
	}

	if !config.AmountTolerance.Equal(decimal.RequireFromString("0.10")) {
		t.Errorf("expected amount tolerance 0.10, got %s", config.AmountTolerance)
	}
	if !config.DepositMinAmount.Equal(decimal.NewFromInt(250)) {
		t.Errorf("expected deposit minimum 250, got %s", config.DepositMinAmount)
	}

	sumup := config.Providers[models.PaymentSumUp]
	if sumup.SettlementLagMinDays != 0 || sumup.SettlementLagMaxDays != 5 {
		t.Errorf("expected SumUp lag window 0-5, got %d-%d",
			sumup.SettlementLagMinDays, sumup.SettlementLagMaxDays)
	}
}

func TestCreateMatcherConfigInvalidTolerance(t *testing.T) {
	viper.Reset()
	viper.Set("amount-tolerance", "not-a-number")
	defer viper.Reset()

	if _, err := CreateMatcherConfig(); err == nil {
		t.Error("expected error for invalid amount tolerance")
	}
}

func TestCreateReportConfig(t *testing.T) {
	config := CreateReportConfig("json")
	if config.Format != reporter.FormatJSON {
		t.Errorf("expected json format, got %s", config.Format)
	}

	config = CreateReportConfig("")
	if config.Format != reporter.FormatConsole {
		t.Errorf("expected console default, got %s", config.Format)
	}
}

func TestCreateEngineInMemory(t *testing.T) {
	viper.Reset()

	eng, err := CreateEngine("", "")
	if err != nil {
		t.Fatalf("failed to create in-memory engine: %v", err)
	}
	if eng == nil {
		t.Fatal("expected an engine instance")
	}
}
