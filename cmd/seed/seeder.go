package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	domain "github.com/hanko-field/commerce/internal/domain"
	"github.com/hanko-field/commerce/internal/repositories"
	"github.com/hanko-field/commerce/internal/services"
)

type depositCreator interface {
	CreateSetting(ctx context.Context, cmd services.DepositSettingCommand) (services.DepositSetting, error)
}

type productWriter interface {
	Upsert(ctx context.Context, product domain.Product) error
}

type counterConfigurer interface {
	Configure(ctx context.Context, counterID string, cfg repositories.CounterConfig) error
}

type seeder struct {
	deposits depositCreator
	products productWriter
	counters counterConfigurer
	clock    func() time.Time
	logger   *zap.Logger
}

// Apply writes the fixture. Deposit tiers that collide with existing ones are skipped so the
// seed can be re-run against a populated project.
func (s *seeder) Apply(ctx context.Context, f fixture) error {
	for _, d := range f.DepositSettings {
		setting, err := s.deposits.CreateSetting(ctx, services.DepositSettingCommand{
			ID:       strings.TrimSpace(d.ID),
			MinTotal: d.MinTotal,
			MaxTotal: d.MaxTotal,
			Percent:  d.Percent,
			Active:   boolOrTrue(d.Active),
			ActorID:  "seed",
		})
		if err != nil {
			if tierExists(err) {
				s.logger.Warn("deposit tier skipped", zap.Int64("min", d.MinTotal), zap.Int64("max", d.MaxTotal), zap.Error(err))
				continue
			}
			return fmt.Errorf("deposit tier [%d, %d]: %w", d.MinTotal, d.MaxTotal, err)
		}
		s.logger.Info("deposit tier created", zap.String("id", setting.ID), zap.Float64("percent", setting.Percent))
	}

	now := s.clock().UTC()
	for _, p := range f.Products {
		product := domain.Product{
			ID:        strings.TrimSpace(p.ID),
			Name:      strings.TrimSpace(p.Name),
			SKU:       strings.TrimSpace(p.SKU),
			Price:     p.Price,
			Currency:  strings.ToUpper(strings.TrimSpace(p.Currency)),
			Image:     strings.TrimSpace(p.Image),
			Stock:     p.Stock,
			Active:    boolOrTrue(p.Active),
			UpdatedAt: now,
		}
		if err := s.products.Upsert(ctx, product); err != nil {
			return fmt.Errorf("product %s: %w", product.ID, err)
		}
	}
	if len(f.Products) > 0 {
		s.logger.Info("products upserted", zap.Int("count", len(f.Products)))
	}

	for _, c := range f.Counters {
		cfg := repositories.CounterConfig{
			Step:         c.Step,
			InitialValue: c.InitialValue,
			MaxValue:     c.MaxValue,
		}
		if err := s.counters.Configure(ctx, strings.TrimSpace(c.ID), cfg); err != nil {
			return fmt.Errorf("counter %s: %w", c.ID, err)
		}
	}
	return nil
}
