package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
interval: 30s
ledger_dir: ./state/ledger
snapshot_path: ./state/snapshot.json
log_file: ./safetrade.log
exchanges:
  simulator:
    pair: BTC_EUR
    fee: "0.001"
    algorithms:
      - id: sim-1
        algorithm: safetrade
        exchange_vars:
          wallet_fiat_amount: "250"
  binance:
    pair: ETH_USDT
    fee: "0.00075"
    algorithms:
      - id: bin-1
        algorithm: safetrade
        algorithm_vars:
          last_bought_price: "1800.5"
          last_sold_price: "1900"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, 30*time.Second, cfg.Interval)
	require.Equal(t, "./state/ledger", cfg.LedgerDir)
	require.Equal(t, "./state/snapshot.json", cfg.SnapshotPath)
	require.Equal(t, "./safetrade.log", cfg.LogFile)
	require.Len(t, cfg.Exchanges, 2)

	sim := cfg.Exchanges["simulator"]
	require.Equal(t, "BTC_EUR", sim.Pair.String())
	require.True(t, sim.Fee.Equal(decimal.NewFromFloat(0.001)))
	require.Len(t, sim.Algorithms, 1)
	require.Equal(t, "sim-1", sim.Algorithms[0].ID)
	require.True(t, sim.Algorithms[0].ExchangeVars.WalletFiat.Equal(decimal.NewFromInt(250)))

	bin := cfg.Exchanges["binance"]
	require.Equal(t, "ETHUSDT", bin.Pair.Symbol())
	require.True(t, bin.Algorithms[0].AlgorithmVars.LastBoughtPrice.Equal(decimal.NewFromFloat(1800.5)))
	require.True(t, bin.Algorithms[0].AlgorithmVars.LastSoldPrice.Equal(decimal.NewFromInt(1900)))
}

func TestLoadDefaultInterval(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  simulator:
    pair: BTC_EUR
    algorithms:
      - id: sim-1
        algorithm: safetrade
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, cfg.Interval)
	require.True(t, cfg.Exchanges["simulator"].Fee.IsZero())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadNoExchanges(t *testing.T) {
	path := writeConfig(t, `interval: 30s`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "no exchanges configured")
}

func TestLoadMissingJobID(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  simulator:
    pair: BTC_EUR
    algorithms:
      - algorithm: safetrade
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required 'id'")
}

func TestLoadMissingAlgorithm(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  simulator:
    pair: BTC_EUR
    algorithms:
      - id: sim-1
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "missing required 'algorithm'")
}

func TestLoadInvalidPair(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  simulator:
    pair: BTCEUR
    algorithms:
      - id: sim-1
        algorithm: safetrade
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "incorrect 'pair' param")
}

func TestLoadFeeOutOfRange(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  simulator:
    pair: BTC_EUR
    fee: "1.5"
    algorithms:
      - id: sim-1
        algorithm: safetrade
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "'fee' must be a fraction")
}

func TestLoadBadDecimalVar(t *testing.T) {
	path := writeConfig(t, `
exchanges:
  simulator:
    pair: BTC_EUR
    algorithms:
      - id: sim-1
        algorithm: safetrade
        algorithm_vars:
          last_bought_price: "not-a-number"
`)
	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "last_bought_price")
}
