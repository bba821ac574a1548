// Command safetrade runs the hysteresis trading daemon: every interval it
// evaluates buy/sell/hold for each configured job, executes trades through
// the exchange connectors and persists the action ledger plus a resumable
// state snapshot.
//
// Usage:
//
//	safetrade --config config.yaml
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	binance "github.com/adshao/go-binance/v2"
	bybit "github.com/hirokisan/bybit/v2"
	"github.com/pkg/errors"
	"github.com/vadiminshakov/safetrade/config"
	"github.com/vadiminshakov/safetrade/internal/orchestrator"
	"github.com/vadiminshakov/safetrade/internal/registry"
	"github.com/vadiminshakov/safetrade/internal/storage/ledger"
	"github.com/vadiminshakov/safetrade/internal/storage/snapshot"
	"github.com/vadiminshakov/safetrade/pkg/retrier"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to yaml config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.LogFile)
	defer logger.Sync()

	logger.Info("starting safetrade")

	clients, err := buildClients(cfg)
	if err != nil {
		logger.Fatal("failed to build venue clients", zap.Error(err))
	}

	ledgerStore, err := ledger.NewWALStore(cfg.LedgerDir)
	if err != nil {
		logger.Fatal("failed to open action ledger", zap.Error(err))
	}
	defer ledgerStore.Close()

	snapshotStore, err := snapshot.NewStore(cfg.SnapshotPath)
	if err != nil {
		logger.Fatal("failed to open snapshot store", zap.Error(err))
	}

	logger.Info("reading persisted state")
	snap, err := snapshotStore.Load()
	if err != nil {
		logger.Fatal("failed to load snapshot", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// configuration integrity errors are deterministic: terminate now,
	// never retry
	if err := orchestrator.ValidateJobs(cfg); err != nil {
		logger.Fatal("invalid job configuration", zap.Error(err))
	}

	logger.Info("initiating jobs")
	// job construction reads live balances; transient venue hiccups at
	// startup get a bounded backoff instead of killing the process
	jobs, err := retrier.DoWithData(retrier.New(), ctx, func(ctx context.Context) ([]registry.Engine, error) {
		return orchestrator.BuildJobs(ctx, cfg, snap, clients, logger)
	})
	if err != nil {
		logger.Fatal("failed to initiate jobs", zap.Error(err))
	}

	orch, err := orchestrator.New(jobs, ledgerStore, snapshotStore, cfg.Interval, logger)
	if err != nil {
		logger.Fatal("failed to create orchestrator", zap.Error(err))
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	if err := g.Wait(); err != nil && !isContextErr(err) {
		logger.Fatal("main loop terminated", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func buildClients(cfg *config.Config) (registry.Clients, error) {
	// a keyless client is always available for public price data
	clients := registry.Clients{Binance: binance.NewClient("", "")}

	if _, ok := cfg.Exchanges["binance"]; ok {
		apiKey := os.Getenv("BINANCE_API_KEY")
		apiSecret := os.Getenv("BINANCE_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return registry.Clients{}, errors.New("BINANCE_API_KEY and BINANCE_API_SECRET environment variables must be set")
		}
		clients.Binance = binance.NewClient(apiKey, apiSecret)
	}
	if _, ok := cfg.Exchanges["bybit"]; ok {
		apiKey := os.Getenv("BYBIT_API_KEY")
		apiSecret := os.Getenv("BYBIT_API_SECRET")
		if apiKey == "" || apiSecret == "" {
			return registry.Clients{}, errors.New("BYBIT_API_KEY and BYBIT_API_SECRET environment variables must be set")
		}
		clients.Bybit = bybit.NewClient().WithAuth(apiKey, apiSecret)
	}

	return clients, nil
}

// newLogger builds the process logger: console always, plus a rotating
// file sink when logFile is set.
func newLogger(logFile string) *zap.Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(encoderCfg), zapcore.Lock(os.Stdout), zapcore.InfoLevel),
	}

	if logFile != "" {
		fileSink := zapcore.AddSync(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		})
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), fileSink, zapcore.DebugLevel))
	}

	return zap.New(zapcore.NewTee(cores...))
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
