// Package config assembles engine and reporting configurations for the CLI
// from flags, environment and config file values.
package config

import (
	"fmt"

	"pos-closing-service/internal/documents"
	"pos-closing-service/internal/engine"
	"pos-closing-service/internal/ledger"
	"pos-closing-service/internal/matcher"
	"pos-closing-service/internal/models"
	"pos-closing-service/internal/reporter"
	"pos-closing-service/internal/store"
	"pos-closing-service/pkg/logger"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// CreateLoggerConfig builds the logger configuration from viper values.
func CreateLoggerConfig() *logger.Config {
	cfg := logger.DefaultConfig()
	if viper.GetBool("verbose") {
		cfg.Level = logger.DebugLevel
	}
	if format := viper.GetString("log-format"); format != "" {
		cfg.Format = logger.Format(format)
	}
	return cfg
}

// CreateMatcherConfig builds the matcher configuration, applying CLI
// overrides on top of the defaults.
func CreateMatcherConfig() (*matcher.Config, error) {
	cfg := matcher.DefaultConfig()

	if v := viper.GetString("amount-tolerance"); v != "" {
		tolerance, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid amount tolerance %q: %w", v, err)
		}
		cfg.AmountTolerance = tolerance
	}
	if v := viper.GetString("deposit-min"); v != "" {
		min, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("invalid deposit minimum %q: %w", v, err)
		}
		cfg.DepositMinAmount = min
	}
	if viper.IsSet("twint-lag-max") {
		cfg.Providers[models.PaymentTwint] = matcher.ProviderProfile{
			SettlementLagMinDays: viper.GetInt("twint-lag-min"),
			SettlementLagMaxDays: viper.GetInt("twint-lag-max"),
		}
	}
	if viper.IsSet("sumup-lag-max") {
		cfg.Providers[models.PaymentSumUp] = matcher.ProviderProfile{
			SettlementLagMinDays: viper.GetInt("sumup-lag-min"),
			SettlementLagMaxDays: viper.GetInt("sumup-lag-max"),
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// CreateReportConfig builds a report configuration for the chosen format.
func CreateReportConfig(format string) *reporter.ReportConfig {
	cfg := reporter.DefaultReportConfig()
	if format != "" {
		cfg.Format = reporter.OutputFormat(format)
	}
	return cfg
}

// CreateEngine wires an engine instance. With a MySQL DSN the gorm-backed
// ledger and stores are used; without one everything runs in memory, which
// is only useful for demos and tests.
func CreateEngine(dsn, documentDir string) (*engine.Engine, error) {
	matcherConfig, err := CreateMatcherConfig()
	if err != nil {
		return nil, err
	}

	var generator documents.Generator = documents.NopGenerator{}
	if documentDir != "" {
		generator = documents.NewFileGenerator(documentDir)
	}

	if dsn == "" {
		return engine.New(engine.Options{
			Ledger: ledger.NewMemorySource(),
			Stores: engine.Stores{
				Closures: store.NewMemoryClosureStore(),
				Entries:  store.NewMemoryBankEntryStore(),
				Matches:  store.NewMemoryMatchStore(),
			},
			Generator: generator,
			Matcher:   matcherConfig,
		})
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	source, err := ledger.NewGormSource(db)
	if err != nil {
		return nil, fmt.Errorf("initializing ledger: %w", err)
	}
	if err := source.Migrate(); err != nil {
		return nil, fmt.Errorf("migrating ledger schema: %w", err)
	}
	stores, err := store.NewGormStore(db)
	if err != nil {
		return nil, fmt.Errorf("initializing stores: %w", err)
	}
	if err := stores.Migrate(); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return engine.New(engine.Options{
		Ledger: source,
		Stores: engine.Stores{
			Closures: stores.Closures,
			Entries:  stores.Entries,
			Matches:  stores.Matches,
		},
		Generator: generator,
		Matcher:   matcherConfig,
	})
}
