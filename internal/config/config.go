// Package config resolves application configuration from three layers:
// built-in defaults, an optional YAML file, and environment variables.
// Later layers win.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/insightdelivered/financial-doc-parser/internal/logging"
	"github.com/insightdelivered/financial-doc-parser/internal/parser"
)

// App is the resolved application configuration.
type App struct {
	Addr        string
	BodyLimitMB int
	Logging     logging.Config
	Parser      parser.Config
}

// fileConfig mirrors the YAML layout. Decimal-valued knobs are strings
// in the file so they do not pick up float drift on the way in.
type fileConfig struct {
	Server struct {
		Addr        string `yaml:"addr"`
		BodyLimitMB int    `yaml:"body_limit_mb"`
	} `yaml:"server"`
	Logging logging.Config `yaml:"logging"`
	Parser  struct {
		ReconcileTolerance     string `yaml:"reconcile_tolerance"`
		AmountCeiling          string `yaml:"amount_ceiling"`
		PaymentCountCeiling    string `yaml:"payment_count_ceiling"`
		PaymentCountMinNumbers int    `yaml:"payment_count_min_numbers"`
		MaxEntryNumbers        int    `yaml:"max_entry_numbers"`
		Trace                  bool   `yaml:"trace"`
	} `yaml:"parser"`
}

// Default returns the production defaults.
func Default() App {
	return App{
		Addr:        ":8080",
		BodyLimitMB: 32,
		Logging:     logging.DefaultConfig(),
		Parser:      parser.DefaultConfig(),
	}
}

// Load resolves the configuration. An empty path skips the file layer.
// A file that exists but cannot be read or parsed is an error; a bad
// environment value falls back to the previous layer silently.
func Load(path string) (App, error) {
	app := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return app, fmt.Errorf("reading config file %q: %w", path, err)
		}
		var fc fileConfig
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return app, fmt.Errorf("parsing config file %q: %w", path, err)
		}
		if err := applyFile(&app, fc); err != nil {
			return app, fmt.Errorf("config file %q: %w", path, err)
		}
	}

	applyEnv(&app)
	return app, nil
}

func applyFile(app *App, fc fileConfig) error {
	if fc.Server.Addr != "" {
		app.Addr = fc.Server.Addr
	}
	if fc.Server.BodyLimitMB > 0 {
		app.BodyLimitMB = fc.Server.BodyLimitMB
	}

	if fc.Logging.Level != "" {
		app.Logging.Level = fc.Logging.Level
	}
	if fc.Logging.Format != "" {
		app.Logging.Format = fc.Logging.Format
	}
	if fc.Logging.Development {
		app.Logging.Development = true
	}

	if fc.Parser.ReconcileTolerance != "" {
		v, err := decimal.NewFromString(fc.Parser.ReconcileTolerance)
		if err != nil {
			return fmt.Errorf("reconcile_tolerance: %w", err)
		}
		app.Parser.ReconcileTolerance = v
	}
	if fc.Parser.AmountCeiling != "" {
		v, err := decimal.NewFromString(fc.Parser.AmountCeiling)
		if err != nil {
			return fmt.Errorf("amount_ceiling: %w", err)
		}
		app.Parser.AmountCeiling = v
	}
	if fc.Parser.PaymentCountCeiling != "" {
		v, err := decimal.NewFromString(fc.Parser.PaymentCountCeiling)
		if err != nil {
			return fmt.Errorf("payment_count_ceiling: %w", err)
		}
		app.Parser.PaymentCountCeiling = v
	}
	if fc.Parser.PaymentCountMinNumbers > 0 {
		app.Parser.PaymentCountMinNumbers = fc.Parser.PaymentCountMinNumbers
	}
	if fc.Parser.MaxEntryNumbers > 0 {
		app.Parser.MaxEntryNumbers = fc.Parser.MaxEntryNumbers
	}
	if fc.Parser.Trace {
		app.Parser.Trace = true
	}
	return nil
}

func applyEnv(app *App) {
	app.Addr = getEnv("SERVER_ADDR", app.Addr)
	app.BodyLimitMB = getEnvAsInt("BODY_LIMIT_MB", app.BodyLimitMB)

	app.Logging.Level = getEnv("LOG_LEVEL", app.Logging.Level)
	app.Logging.Format = getEnv("LOG_FORMAT", app.Logging.Format)
	app.Logging.Development = getEnvAsBool("LOG_DEV", app.Logging.Development)

	app.Parser.ReconcileTolerance = getEnvAsDecimal("RECONCILE_TOLERANCE", app.Parser.ReconcileTolerance)
	app.Parser.AmountCeiling = getEnvAsDecimal("AMOUNT_CEILING", app.Parser.AmountCeiling)
	app.Parser.PaymentCountCeiling = getEnvAsDecimal("PAYMENT_COUNT_CEILING", app.Parser.PaymentCountCeiling)
	app.Parser.PaymentCountMinNumbers = getEnvAsInt("PAYMENT_COUNT_MIN_NUMBERS", app.Parser.PaymentCountMinNumbers)
	app.Parser.MaxEntryNumbers = getEnvAsInt("MAX_ENTRY_NUMBERS", app.Parser.MaxEntryNumbers)
	app.Parser.Trace = getEnvAsBool("PARSER_TRACE", app.Parser.Trace)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
