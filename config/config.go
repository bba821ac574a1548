// Package config parses the YAML configuration: one global action interval
// plus, per exchange, the list of algorithm jobs with optional seed vars.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vadiminshakov/safetrade/internal/domain"
	"gopkg.in/yaml.v3"
)

const defaultInterval = 60 * time.Second

// Config is the parsed process configuration.
type Config struct {
	// Interval is the fixed cycle cadence. Sleeps are aligned to interval
	// boundaries, not to cycle start.
	Interval time.Duration
	// LedgerDir is where the action ledger WAL lives.
	LedgerDir string
	// SnapshotPath is the resumable state file.
	SnapshotPath string
	// LogFile enables rotating file logging when set.
	LogFile string
	// Exchanges maps exchange name to its job set.
	Exchanges map[string]ExchangeConfig
}

// ExchangeConfig describes one exchange and the jobs bound to it.
type ExchangeConfig struct {
	Pair       domain.Pair
	Fee        decimal.Decimal
	Algorithms []JobConfig
}

// JobConfig is one algorithm job with a stable identifier and optional
// seed vars used when no persisted state matches the identifier.
type JobConfig struct {
	ID            string
	Algorithm     string
	AlgorithmVars domain.AlgorithmVars
	ExchangeVars  domain.ExchangeVars
}

type configTmp struct {
	Interval     time.Duration                `yaml:"interval"`
	LedgerDir    string                       `yaml:"ledger_dir"`
	SnapshotPath string                       `yaml:"snapshot_path"`
	LogFile      string                       `yaml:"log_file"`
	Exchanges    map[string]exchangeConfigTmp `yaml:"exchanges"`
}

type exchangeConfigTmp struct {
	Pair       string         `yaml:"pair"`
	Fee        string         `yaml:"fee"`
	Algorithms []jobConfigTmp `yaml:"algorithms"`
}

type jobConfigTmp struct {
	ID            string       `yaml:"id"`
	Algorithm     string       `yaml:"algorithm"`
	AlgorithmVars *algoVarsTmp `yaml:"algorithm_vars,omitempty"`
	ExchangeVars  *exchVarsTmp `yaml:"exchange_vars,omitempty"`
}

type algoVarsTmp struct {
	LastBoughtPrice string `yaml:"last_bought_price"`
	LastSoldPrice   string `yaml:"last_sold_price"`
	WalletCrypto    string `yaml:"wallet_crypto_amount"`
	WalletFiat      string `yaml:"wallet_fiat_amount"`
}

type exchVarsTmp struct {
	Fee          string `yaml:"exchange_fee"`
	WalletCrypto string `yaml:"wallet_crypto_amount"`
	WalletFiat   string `yaml:"wallet_fiat_amount"`
}

// Load reads and validates the configuration file. A missing or unreadable
// file is an unrecoverable startup failure.
func Load(path string) (*Config, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var tmp configTmp
	if err := yaml.Unmarshal(payload, &tmp); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg := &Config{
		Interval:     tmp.Interval,
		LedgerDir:    tmp.LedgerDir,
		SnapshotPath: tmp.SnapshotPath,
		LogFile:      tmp.LogFile,
		Exchanges:    make(map[string]ExchangeConfig, len(tmp.Exchanges)),
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if len(tmp.Exchanges) == 0 {
		return nil, fmt.Errorf("config %s: no exchanges configured", path)
	}

	for name, exchTmp := range tmp.Exchanges {
		exch, err := parseExchange(name, exchTmp)
		if err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
		cfg.Exchanges[name] = exch
	}

	return cfg, nil
}

func parseExchange(name string, tmp exchangeConfigTmp) (ExchangeConfig, error) {
	pair, err := pairFromString(tmp.Pair)
	if err != nil {
		return ExchangeConfig{}, fmt.Errorf("exchange %s: incorrect 'pair' param: %w", name, err)
	}

	fee := decimal.Zero
	if tmp.Fee != "" {
		fee, err = decimal.NewFromString(tmp.Fee)
		if err != nil {
			return ExchangeConfig{}, fmt.Errorf("exchange %s: incorrect 'fee' param (must be a fraction like 0.001): %w", name, err)
		}
		if fee.IsNegative() || fee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
			return ExchangeConfig{}, fmt.Errorf("exchange %s: 'fee' must be a fraction in [0,1), got %s", name, fee.String())
		}
	}

	if len(tmp.Algorithms) == 0 {
		return ExchangeConfig{}, fmt.Errorf("exchange %s: no algorithms configured", name)
	}

	jobs := make([]JobConfig, 0, len(tmp.Algorithms))
	for i, jobTmp := range tmp.Algorithms {
		job, err := parseJob(name, i, jobTmp)
		if err != nil {
			return ExchangeConfig{}, err
		}
		jobs = append(jobs, job)
	}

	return ExchangeConfig{Pair: pair, Fee: fee, Algorithms: jobs}, nil
}

func parseJob(exchName string, pos int, tmp jobConfigTmp) (JobConfig, error) {
	if tmp.ID == "" {
		return JobConfig{}, fmt.Errorf("exchange %s: algorithm #%d is missing required 'id'", exchName, pos)
	}
	if tmp.Algorithm == "" {
		return JobConfig{}, fmt.Errorf("exchange %s: job %s is missing required 'algorithm'", exchName, tmp.ID)
	}

	job := JobConfig{ID: tmp.ID, Algorithm: tmp.Algorithm}

	if tmp.AlgorithmVars != nil {
		vars, err := parseAlgoVars(*tmp.AlgorithmVars)
		if err != nil {
			return JobConfig{}, fmt.Errorf("exchange %s: job %s: %w", exchName, tmp.ID, err)
		}
		job.AlgorithmVars = vars
	}
	if tmp.ExchangeVars != nil {
		vars, err := parseExchVars(*tmp.ExchangeVars)
		if err != nil {
			return JobConfig{}, fmt.Errorf("exchange %s: job %s: %w", exchName, tmp.ID, err)
		}
		job.ExchangeVars = vars
	}

	return job, nil
}

func parseAlgoVars(tmp algoVarsTmp) (domain.AlgorithmVars, error) {
	var vars domain.AlgorithmVars
	var err error
	if vars.LastBoughtPrice, err = parseDecimal(tmp.LastBoughtPrice, "last_bought_price"); err != nil {
		return domain.AlgorithmVars{}, err
	}
	if vars.LastSoldPrice, err = parseDecimal(tmp.LastSoldPrice, "last_sold_price"); err != nil {
		return domain.AlgorithmVars{}, err
	}
	if vars.WalletCrypto, err = parseDecimal(tmp.WalletCrypto, "wallet_crypto_amount"); err != nil {
		return domain.AlgorithmVars{}, err
	}
	if vars.WalletFiat, err = parseDecimal(tmp.WalletFiat, "wallet_fiat_amount"); err != nil {
		return domain.AlgorithmVars{}, err
	}
	return vars, nil
}

func parseExchVars(tmp exchVarsTmp) (domain.ExchangeVars, error) {
	var vars domain.ExchangeVars
	var err error
	if vars.Fee, err = parseDecimal(tmp.Fee, "exchange_fee"); err != nil {
		return domain.ExchangeVars{}, err
	}
	if vars.WalletCrypto, err = parseDecimal(tmp.WalletCrypto, "wallet_crypto_amount"); err != nil {
		return domain.ExchangeVars{}, err
	}
	if vars.WalletFiat, err = parseDecimal(tmp.WalletFiat, "wallet_fiat_amount"); err != nil {
		return domain.ExchangeVars{}, err
	}
	return vars, nil
}

func parseDecimal(value, field string) (decimal.Decimal, error) {
	if value == "" {
		return decimal.Zero, nil
	}
	parsed, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("incorrect '%s' param (must be a decimal): %w", field, err)
	}
	return parsed, nil
}

func pairFromString(pairStr string) (domain.Pair, error) {
	parts := strings.Split(pairStr, "_")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return domain.Pair{}, fmt.Errorf("invalid pair param %q, expected format BTC_EUR", pairStr)
	}
	return domain.Pair{From: parts[0], To: parts[1]}, nil
}
