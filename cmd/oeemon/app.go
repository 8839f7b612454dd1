package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"oee-analytics/internal/config"
	"oee-analytics/internal/logging"
	"oee-analytics/internal/oee"
	"oee-analytics/internal/repository"
	"oee-analytics/internal/service"

	"gorm.io/gorm"
)

// app holds the wired stores and services for one command run
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	primaryDB  *gorm.DB
	fallbackDB *gorm.DB
	primary    repository.OEERepository
	repo       *repository.HybridRepository

	policy     oee.Policy
	rollup     *service.Rollup
	production service.ProductionService
	machines   service.MachineService
	events     service.EventService
	analytics  service.AnalyticsService
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger := logging.New(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	primaryDB, err := repository.OpenPrimary(cfg.Store.Primary, logger)
	if err != nil {
		return nil, err
	}
	// the fallback keeps serving while the primary schema cannot be created
	if err := repository.Migrate(primaryDB.WithContext(ctx)); err != nil {
		logger.Warn("primary store migration failed, continuing on fallback",
			"error", err.Error(),
		)
	}

	fallbackDB, err := repository.OpenFallback(cfg.Store.Fallback, logger)
	if err != nil {
		_ = repository.Close(primaryDB)
		return nil, err
	}

	primary := repository.NewGormRepository(primaryDB, "primary")
	hybrid := repository.NewHybridRepository(primary, repository.NewGormRepository(fallbackDB, "fallback"), repository.HybridOptions{
		Breaker: repository.BreakerSettings{
			Enabled:          cfg.Store.Breaker.Enabled,
			FailureThreshold: cfg.Store.Breaker.FailureThreshold,
			Cooldown:         cfg.Store.Breaker.Cooldown,
			HalfOpenRequests: cfg.Store.Breaker.HalfOpenRequests,
		},
		ReplicateWrites: cfg.Store.ReplicateWrites,
	}, logger)

	policy := oee.Policy{
		DefaultProductionRate: cfg.OEE.DefaultProductionRate,
		ExpectedEfficiency:    cfg.OEE.ExpectedEfficiency,
	}
	rollup := service.NewRollup(hybrid, rollupPolicy(cfg.OEE), nil, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		primaryDB:  primaryDB,
		fallbackDB: fallbackDB,
		primary:    primary,
		repo:       hybrid,
		policy:     policy,
		rollup:     rollup,
		production: service.NewProductionService(hybrid, policy, rollup, nil, logger),
		machines:   service.NewMachineService(hybrid, rollup, logger),
		events:     service.NewEventService(hybrid, nil),
		analytics:  service.NewAnalyticsService(hybrid, nil, logger),
	}, nil
}

func rollupPolicy(cfg config.OEEConfig) service.RollupPolicy {
	return service.RollupPolicy{
		Window:                cfg.RollupWindow,
		NoDataTargetShare:     cfg.NoData.TargetShare,
		NoDataPlannedMinutes:  cfg.NoData.PlannedMinutes,
		NoDataDowntimeMinutes: cfg.NoData.DowntimeMinutes,
	}
}

// seedFallback loads the configured snapshot file into the fallback store.
// It is best effort: an unreadable file is logged and startup continues.
func (a *app) seedFallback(ctx context.Context) repository.SyncReport {
	path := a.cfg.Store.Fallback.SeedFile
	if path == "" {
		return repository.SyncReport{}
	}
	snap, err := repository.LoadSnapshot(path)
	if err != nil {
		a.logger.Warn("fallback seed file not loaded",
			"file", path,
			"error", err.Error(),
		)
		return repository.SyncReport{}
	}
	report := a.repo.SyncFallback(ctx, snap)
	a.logger.Info("fallback store seeded",
		"file", path,
		"written", report.Written,
		"failed", report.Failed,
	)
	return report
}

func (a *app) close() {
	for name, db := range map[string]*gorm.DB{"primary": a.primaryDB, "fallback": a.fallbackDB} {
		if err := repository.Close(db); err != nil {
			a.logger.Warn("failed to close store",
				"store", name,
				"error", err.Error(),
			)
		}
	}
}

func withApp(ctx context.Context, fn func(context.Context, *app) error) error {
	a, err := newApp(ctx)
	if err != nil {
		return fmt.Errorf("startup failed: %w", err)
	}
	defer a.close()
	return fn(ctx, a)
}
