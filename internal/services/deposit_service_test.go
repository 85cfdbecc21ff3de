package services

import (
	"context"
	"errors"
	"math"
	"testing"

	domain "github.com/hanko-field/commerce/internal/domain"
)

func TestComputeDeposit(t *testing.T) {
	cases := []struct {
		total     int64
		percent   float64
		deposit   int64
		remaining int64
	}{
		{total: 10000, percent: 10, deposit: 1000, remaining: 9000},
		{total: 5833, percent: 15, deposit: 875, remaining: 4958},
		{total: 105, percent: 10, deposit: 11, remaining: 94},
		{total: 999, percent: 33.3, deposit: 333, remaining: 666},
		{total: 1, percent: 10, deposit: 0, remaining: 1},
		{total: 5000, percent: 100, deposit: 5000, remaining: 0},
		{total: 0, percent: 10, deposit: 0, remaining: 0},
		{total: 700, percent: 0, deposit: 0, remaining: 700},
		{total: 5000, percent: math.NaN(), deposit: 0, remaining: 5000},
		{total: 5000, percent: math.Inf(1), deposit: 0, remaining: 5000},
	}
	for _, tc := range cases {
		deposit, remaining := ComputeDeposit(tc.total, tc.percent)
		if deposit != tc.deposit || remaining != tc.remaining {
			t.Errorf("ComputeDeposit(%d, %v) = %d/%d, want %d/%d", tc.total, tc.percent, deposit, remaining, tc.deposit, tc.remaining)
		}
		if deposit+remaining != max(tc.total, 0) {
			t.Errorf("ComputeDeposit(%d, %v) does not add up", tc.total, tc.percent)
		}
	}
}

func newTestDepositService(t *testing.T, settings ...domain.DepositSetting) (DepositService, *memDepositRepo) {
	t.Helper()
	repo := newMemDepositRepo(settings...)
	svc, err := NewDepositService(DepositServiceDeps{
		Settings:    repo,
		UnitOfWork:  &recordingUnitOfWork{},
		Clock:       fixedClock,
		IDGenerator: sequentialIDs("tier"),
	})
	if err != nil {
		t.Fatalf("new deposit service: %v", err)
	}
	return svc, repo
}

func TestDepositServiceResolvePercent(t *testing.T) {
	svc, _ := newTestDepositService(t,
		domain.DepositSetting{ID: "dep_low", MinTotal: 0, MaxTotal: 9999, Percent: 20, Active: true},
		domain.DepositSetting{ID: "dep_high", MinTotal: 10000, MaxTotal: 49999, Percent: 15, Active: true},
		domain.DepositSetting{ID: "dep_off", MinTotal: 50000, MaxTotal: 99999, Percent: 5, Active: false},
		domain.DepositSetting{ID: "dep_gone", MinTotal: 100000, MaxTotal: 200000, Percent: 1, Active: true, Deleted: true},
	)
	cases := map[int64]float64{
		0:      20,
		9999:   20,
		10000:  15,
		49999:  15,
		60000:  DefaultDepositPercent,
		150000: DefaultDepositPercent,
	}
	for total, want := range cases {
		got, err := svc.ResolvePercent(context.Background(), total)
		if err != nil {
			t.Fatalf("ResolvePercent(%d): %v", total, err)
		}
		if got != want {
			t.Errorf("ResolvePercent(%d) = %v, want %v", total, got, want)
		}
	}
	corrupt, _ := newTestDepositService(t, domain.DepositSetting{ID: "dep_nan", MinTotal: 0, MaxTotal: 9999, Percent: math.NaN(), Active: true})
	if got, err := corrupt.ResolvePercent(context.Background(), 5000); err != nil || got != DefaultDepositPercent {
		t.Fatalf("stored tier with NaN percent must fall back to default, got %v (%v)", got, err)
	}
	if _, err := svc.ResolvePercent(context.Background(), -1); !errors.Is(err, ErrDepositInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestDepositServiceCreateRejectsOverlap(t *testing.T) {
	svc, repo := newTestDepositService(t, domain.DepositSetting{ID: "dep_a", MinTotal: 1000, MaxTotal: 5000, Percent: 20, Active: true})
	ctx := context.Background()

	if _, err := svc.CreateSetting(ctx, DepositSettingCommand{MinTotal: 5000, MaxTotal: 8000, Percent: 10, Active: true}); !errors.Is(err, ErrDepositOverlap) {
		t.Fatalf("expected overlap on shared boundary, got %v", err)
	}
	created, err := svc.CreateSetting(ctx, DepositSettingCommand{MinTotal: 5001, MaxTotal: 8000, Percent: 10, Active: true, ActorID: "staff_1"})
	if err != nil {
		t.Fatalf("CreateSetting: %v", err)
	}
	if created.ID != "dep_tier001" || created.UpdatedBy != "staff_1" || !created.CreatedAt.Equal(testNow) {
		t.Fatalf("unexpected setting %+v", created)
	}
	inactive, err := svc.CreateSetting(ctx, DepositSettingCommand{MinTotal: 0, MaxTotal: 9000, Percent: 50, Active: false})
	if err != nil {
		t.Fatalf("inactive tiers may overlap: %v", err)
	}
	if len(repo.settings) != 3 {
		t.Fatalf("expected 3 settings, got %d", len(repo.settings))
	}

	inactiveCmd := DepositSettingCommand{ID: inactive.ID, MinTotal: 0, MaxTotal: 9000, Percent: 50, Active: true}
	if _, err := svc.UpdateSetting(ctx, inactiveCmd); !errors.Is(err, ErrDepositOverlap) {
		t.Fatalf("activating an overlapping tier must fail, got %v", err)
	}
}

func TestDepositServiceValidation(t *testing.T) {
	svc, _ := newTestDepositService(t)
	cases := map[string]DepositSettingCommand{
		"negative min":  {MinTotal: -1, MaxTotal: 10, Percent: 5},
		"inverted":      {MinTotal: 10, MaxTotal: 5, Percent: 5},
		"zero percent":  {MinTotal: 0, MaxTotal: 5},
		"above hundred": {MinTotal: 0, MaxTotal: 5, Percent: 101},
		"nan percent":   {MinTotal: 0, MaxTotal: 5, Percent: math.NaN()},
		"inf percent":   {MinTotal: 0, MaxTotal: 5, Percent: math.Inf(1)},
	}
	for name, cmd := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := svc.CreateSetting(context.Background(), cmd); !errors.Is(err, ErrDepositInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}
}

func TestDepositServiceDeleteIsSoft(t *testing.T) {
	svc, repo := newTestDepositService(t, domain.DepositSetting{ID: "dep_a", MinTotal: 0, MaxTotal: 5000, Percent: 25, Active: true})
	ctx := context.Background()

	if err := svc.DeleteSetting(ctx, "dep_a", "staff_1"); err != nil {
		t.Fatalf("DeleteSetting: %v", err)
	}
	stored := repo.settings["dep_a"]
	if !stored.Deleted || stored.Active {
		t.Fatalf("expected soft delete, got %+v", stored)
	}
	if _, err := svc.GetSetting(ctx, "dep_a"); !errors.Is(err, ErrDepositNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if percent, _ := svc.ResolvePercent(ctx, 100); percent != DefaultDepositPercent {
		t.Fatalf("deleted tier must not resolve, got %v", percent)
	}
	if _, err := svc.CreateSetting(ctx, DepositSettingCommand{MinTotal: 0, MaxTotal: 5000, Percent: 30, Active: true}); err != nil {
		t.Fatalf("deleted tiers must not block new ones: %v", err)
	}
	if err := svc.DeleteSetting(ctx, "dep_missing", ""); !errors.Is(err, ErrDepositNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
