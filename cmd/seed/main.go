package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/commerce/internal/di"
	"github.com/hanko-field/commerce/internal/platform/config"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/platform/observability"
	firestoreRepo "github.com/hanko-field/commerce/internal/repositories/firestore"
	"github.com/hanko-field/commerce/internal/services"
)

func main() {
	var (
		path    string
		envFile string
		dryRun  bool
	)
	flag.StringVar(&path, "file", "seed.yaml", "seed fixture (YAML)")
	flag.StringVar(&envFile, "env", ".env", "optional dotenv file")
	flag.BoolVar(&dryRun, "dry-run", false, "parse and validate the fixture without writing")
	flag.Parse()

	baseLogger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		_ = baseLogger.Sync()
	}()
	logger := baseLogger.Named("seed")

	raw, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("failed to read seed file", zap.String("path", path), zap.Error(err))
	}
	fixture, err := parseFixture(raw)
	if err != nil {
		logger.Fatal("invalid seed file", zap.String("path", path), zap.Error(err))
	}
	logger.Info("seed fixture parsed",
		zap.Int("depositSettings", len(fixture.DepositSettings)),
		zap.Int("products", len(fixture.Products)),
		zap.Int("counters", len(fixture.Counters)),
	)
	if dryRun {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	ctx = observability.WithLogger(ctx, logger)

	cfg, err := config.Load(ctx, config.WithEnvFile(envFile))
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	provider := pfirestore.NewProvider(cfg.Firestore)
	registry, err := firestoreRepo.NewRegistry(provider, nil)
	if err != nil {
		logger.Fatal("failed to initialise repositories", zap.Error(err))
	}
	container, err := di.NewContainer(ctx, cfg, registry, di.Infrastructure{Logger: logger})
	if err != nil {
		logger.Fatal("failed to initialise services", zap.Error(err))
	}
	defer func() {
		if err := container.Close(context.Background()); err != nil {
			logger.Warn("repository close error", zap.Error(err))
		}
	}()

	seeder := &seeder{
		deposits: container.Services.Deposits,
		products: registry.Products(),
		counters: registry.Counters(),
		clock:    time.Now,
		logger:   logger,
	}
	if err := seeder.Apply(ctx, fixture); err != nil {
		logger.Fatal("seed failed", zap.Error(err))
	}
	logger.Info("seed complete")
}

// tierExists reports whether err means the tier was seeded by an earlier run.
func tierExists(err error) bool {
	return errors.Is(err, services.ErrDepositOverlap)
}
