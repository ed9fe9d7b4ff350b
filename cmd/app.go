package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/adalundhe/meshsim/core/catalog"
	"github.com/adalundhe/meshsim/core/config"
	"github.com/adalundhe/meshsim/core/geometry"
	"github.com/adalundhe/meshsim/core/scorer"
	"github.com/adalundhe/meshsim/core/similarity"
)

// app is the process-wide set of caches and services, built once per command.
type app struct {
	config       *config.Config
	logger       *slog.Logger
	listing      *catalog.ListingCache
	geometry     *geometry.Cache
	orchestrator *similarity.Orchestrator

	closers []func() error
}

// newApp loads configuration and wires the components together.
func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, fmt.Errorf("logging: %w", err)
	}
	return buildApp(cmd.Context(), cfg, logger)
}

func buildApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{config: cfg, logger: logger}

	scanner, err := catalog.NewScanner(cfg.ScanConfig(), nil, logger)
	if err != nil {
		return nil, err
	}
	a.listing = catalog.NewListingCache(scanner, cfg.ListingConfig(), logger)
	a.geometry = geometry.NewCache(cfg.GeometryConfig(), nil, logger)

	var sc scorer.Scorer = scorer.NewExecScorer(cfg.ExecConfig(), logger)
	if memoCfg, ok := cfg.MemoConfig(); ok {
		memo, err := scorer.NewMemoScorer(sc, memoCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("score memo: %w", err)
		}
		a.closers = append(a.closers, func() error { memo.Close(); return nil })
		sc = memo
	}

	a.orchestrator = similarity.NewOrchestrator(a.listing, a.geometry, sc, cfg.OrchestratorConfig(), logger)

	if cfg.Watch {
		w, err := catalog.NewWatcher(cfg.AssetRoot, cfg.MeshPattern, a.listing, logger)
		if err != nil {
			logger.Warn("asset watcher disabled", "root", cfg.AssetRoot, "error", err)
		} else {
			if ctx == nil {
				ctx = context.Background()
			}
			go w.Run(ctx)
			a.closers = append(a.closers, w.Close)
		}
	}
	return a, nil
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}
