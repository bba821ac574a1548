package orchestrator

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/safetrade/config"
	"github.com/vadiminshakov/safetrade/internal/domain"
	"github.com/vadiminshakov/safetrade/internal/registry"
	"go.uber.org/zap"
)

// ValidateJobs checks configuration integrity without touching any venue:
// every exchange and algorithm name must be registered, and job identifiers
// must be unique per exchange, otherwise resumption is ambiguous. These
// errors are deterministic, so callers must terminate on them instead of
// retrying.
func ValidateJobs(cfg *config.Config) error {
	for exchName, exchCfg := range cfg.Exchanges {
		if !registry.KnownExchange(exchName) {
			return errors.Errorf("unsupported exchange %q, supported: %s",
				exchName, strings.Join(registry.SupportedExchanges(), ", "))
		}

		seen := make(map[string]struct{}, len(exchCfg.Algorithms))
		for _, jobCfg := range exchCfg.Algorithms {
			if _, ok := seen[jobCfg.ID]; ok {
				return errors.Errorf("duplicate job id %q under exchange %q", jobCfg.ID, exchName)
			}
			seen[jobCfg.ID] = struct{}{}

			if !registry.KnownAlgorithm(jobCfg.Algorithm) {
				return errors.Errorf("unsupported algorithm %q for job %s, supported: %s",
					jobCfg.Algorithm, jobCfg.ID, strings.Join(registry.SupportedAlgorithms(), ", "))
			}
		}
	}
	return nil
}

// BuildJobs constructs every configured (engine, connector) pairing,
// resuming each job from the persisted snapshot bucket matching its stable
// identifier, or from configuration seeds on a first run.
func BuildJobs(ctx context.Context, cfg *config.Config, snap domain.Snapshot, clients registry.Clients, logger *zap.Logger) ([]registry.Engine, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := ValidateJobs(cfg); err != nil {
		return nil, err
	}

	exchNames := make([]string, 0, len(cfg.Exchanges))
	for name := range cfg.Exchanges {
		exchNames = append(exchNames, name)
	}
	sort.Strings(exchNames)

	var jobs []registry.Engine
	for _, exchName := range exchNames {
		exchCfg := cfg.Exchanges[exchName]

		for _, jobCfg := range exchCfg.Algorithms {
			algoVars := jobCfg.AlgorithmVars
			exchVars := jobCfg.ExchangeVars
			if exchVars.Codename == "" && !exchVars.IsZero() {
				exchVars.Codename = exchCfg.Pair.String()
			}

			if state, ok := snap.Job(exchName, jobCfg.ID); ok {
				logger.Info("resuming job from persisted state",
					zap.String("exchange", exchName),
					zap.String("job", jobCfg.ID))
				algoVars = state.AlgorithmVars
				exchVars = state.ExchangeVars
			} else {
				logger.Info("no persisted state for job, using configured seed vars",
					zap.String("exchange", exchName),
					zap.String("job", jobCfg.ID))
			}

			conn, err := registry.NewConnector(exchName, clients, exchCfg.Pair, exchCfg.Fee, exchVars, logger)
			if err != nil {
				return nil, errors.Wrapf(err, "create connector for job %s on %s", jobCfg.ID, exchName)
			}

			eng, err := registry.NewEngine(ctx, jobCfg.Algorithm, jobCfg.ID, conn, algoVars, logger)
			if err != nil {
				return nil, errors.Wrapf(err, "create engine for job %s on %s", jobCfg.ID, exchName)
			}

			jobs = append(jobs, eng)
		}
	}

	return jobs, nil
}
