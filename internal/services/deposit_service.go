package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"

	"github.com/hanko-field/commerce/internal/repositories"
)

// DefaultDepositPercent applies when no tier covers an order total.
const DefaultDepositPercent = 10.0

const depositSettingIDPrefix = "dep_"

var (
	// ErrDepositInvalidInput signals malformed tier data or totals.
	ErrDepositInvalidInput = errors.New("deposit: invalid input")
	// ErrDepositNotFound indicates the tier does not exist or was deleted.
	ErrDepositNotFound = errors.New("deposit: not found")
	// ErrDepositOverlap indicates the tier intersects another active tier.
	ErrDepositOverlap = errors.New("deposit: range overlaps an existing setting")
)

// ComputeDeposit splits total into deposit and remaining amounts. The deposit is rounded half up
// to the minor unit so deposit + remaining always equals total.
func ComputeDeposit(total int64, percent float64) (deposit int64, remaining int64) {
	if total <= 0 || !ValidDepositPercent(percent) {
		return 0, max(total, 0)
	}
	amount := decimal.NewFromInt(total).
		Mul(decimal.NewFromFloat(percent)).
		Div(decimal.NewFromInt(100)).
		Round(0)
	deposit = min(max(amount.IntPart(), 0), total)
	return deposit, total - deposit
}

// ValidDepositPercent reports whether percent is a finite value in (0, 100].
func ValidDepositPercent(percent float64) bool {
	if math.IsNaN(percent) || math.IsInf(percent, 0) {
		return false
	}
	return percent > 0 && percent <= 100
}

// DepositServiceDeps bundles collaborators required to construct the deposit service.
type DepositServiceDeps struct {
	Settings       repositories.DepositSettingRepository
	UnitOfWork     repositories.UnitOfWork
	DefaultPercent float64
	Clock          func() time.Time
	IDGenerator    func() string
	Logger         func(ctx context.Context, event string, fields map[string]any)
}

type depositService struct {
	settings       repositories.DepositSettingRepository
	unitOfWork     repositories.UnitOfWork
	defaultPercent float64
	clock          func() time.Time
	newID          func() string
	logger         func(context.Context, string, map[string]any)
}

// NewDepositService wires the deposit tier repository into a DepositService.
func NewDepositService(deps DepositServiceDeps) (DepositService, error) {
	if deps.Settings == nil {
		return nil, errors.New("deposit service: settings repository is required")
	}
	svc := &depositService{
		settings:       deps.Settings,
		unitOfWork:     deps.UnitOfWork,
		defaultPercent: deps.DefaultPercent,
		clock:          deps.Clock,
		newID:          deps.IDGenerator,
		logger:         deps.Logger,
	}
	if svc.unitOfWork == nil {
		svc.unitOfWork = noopUnitOfWork{}
	}
	if !ValidDepositPercent(svc.defaultPercent) {
		svc.defaultPercent = DefaultDepositPercent
	}
	if svc.clock == nil {
		svc.clock = time.Now
	}
	if svc.newID == nil {
		svc.newID = func() string { return ulid.Make().String() }
	}
	if svc.logger == nil {
		svc.logger = noopLogger
	}
	return svc, nil
}

// ResolvePercent returns the percent of the first live tier containing total, ordered by min
// total, or the default when none matches.
func (s *depositService) ResolvePercent(ctx context.Context, total int64) (float64, error) {
	if total < 0 {
		return 0, fmt.Errorf("%w: total must be >= 0", ErrDepositInvalidInput)
	}
	settings, err := s.settings.List(ctx, false)
	if err != nil {
		return 0, mapRepoError(err, ErrDepositNotFound, ErrDepositOverlap, "deposit")
	}
	for _, setting := range settings {
		if setting.Live() && setting.Contains(total) && ValidDepositPercent(setting.Percent) {
			return setting.Percent, nil
		}
	}
	return s.defaultPercent, nil
}

func (s *depositService) ListSettings(ctx context.Context, includeDeleted bool) ([]DepositSetting, error) {
	settings, err := s.settings.List(ctx, includeDeleted)
	if err != nil {
		return nil, mapRepoError(err, ErrDepositNotFound, ErrDepositOverlap, "deposit")
	}
	return settings, nil
}

func (s *depositService) GetSetting(ctx context.Context, settingID string) (DepositSetting, error) {
	settingID = strings.TrimSpace(settingID)
	if settingID == "" {
		return DepositSetting{}, fmt.Errorf("%w: id is required", ErrDepositInvalidInput)
	}
	setting, err := s.settings.FindByID(ctx, settingID)
	if err != nil {
		return DepositSetting{}, mapRepoError(err, ErrDepositNotFound, ErrDepositOverlap, "deposit")
	}
	if setting.Deleted {
		return DepositSetting{}, fmt.Errorf("%w: %s", ErrDepositNotFound, settingID)
	}
	return setting, nil
}

func (s *depositService) CreateSetting(ctx context.Context, cmd DepositSettingCommand) (DepositSetting, error) {
	if err := validateDepositRange(cmd); err != nil {
		return DepositSetting{}, err
	}
	now := s.clock().UTC()
	setting := DepositSetting{
		ID:        strings.TrimSpace(cmd.ID),
		MinTotal:  cmd.MinTotal,
		MaxTotal:  cmd.MaxTotal,
		Percent:   cmd.Percent,
		Active:    cmd.Active,
		CreatedAt: now,
		UpdatedAt: now,
		UpdatedBy: strings.TrimSpace(cmd.ActorID),
	}
	if setting.ID == "" {
		setting.ID = depositSettingIDPrefix + s.newID()
	}

	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.checkOverlap(txCtx, setting); err != nil {
			return err
		}
		return s.settings.Insert(txCtx, setting)
	})
	if err != nil {
		return DepositSetting{}, mapRepoError(err, ErrDepositNotFound, ErrDepositOverlap, "deposit")
	}
	s.logger(ctx, "deposit.setting.created", map[string]any{"settingId": setting.ID, "min": setting.MinTotal, "max": setting.MaxTotal, "percent": setting.Percent})
	return setting, nil
}

func (s *depositService) UpdateSetting(ctx context.Context, cmd DepositSettingCommand) (DepositSetting, error) {
	id := strings.TrimSpace(cmd.ID)
	if id == "" {
		return DepositSetting{}, fmt.Errorf("%w: id is required", ErrDepositInvalidInput)
	}
	if err := validateDepositRange(cmd); err != nil {
		return DepositSetting{}, err
	}

	var updated DepositSetting
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.settings.FindByID(txCtx, id)
		if err != nil {
			return err
		}
		if current.Deleted {
			return fmt.Errorf("%w: %s", ErrDepositNotFound, id)
		}
		current.MinTotal = cmd.MinTotal
		current.MaxTotal = cmd.MaxTotal
		current.Percent = cmd.Percent
		current.Active = cmd.Active
		current.UpdatedAt = s.clock().UTC()
		current.UpdatedBy = strings.TrimSpace(cmd.ActorID)
		if err := s.checkOverlap(txCtx, current); err != nil {
			return err
		}
		updated = current
		return s.settings.Update(txCtx, current)
	})
	if err != nil {
		return DepositSetting{}, mapRepoError(err, ErrDepositNotFound, ErrDepositOverlap, "deposit")
	}
	s.logger(ctx, "deposit.setting.updated", map[string]any{"settingId": updated.ID, "percent": updated.Percent})
	return updated, nil
}

// DeleteSetting soft deletes a tier; deleted tiers never participate in resolution or overlap checks.
func (s *depositService) DeleteSetting(ctx context.Context, settingID string, actorID string) error {
	settingID = strings.TrimSpace(settingID)
	if settingID == "" {
		return fmt.Errorf("%w: id is required", ErrDepositInvalidInput)
	}
	err := s.unitOfWork.RunInTx(ctx, func(txCtx context.Context) error {
		current, err := s.settings.FindByID(txCtx, settingID)
		if err != nil {
			return err
		}
		if current.Deleted {
			return nil
		}
		current.Deleted = true
		current.Active = false
		current.UpdatedAt = s.clock().UTC()
		current.UpdatedBy = strings.TrimSpace(actorID)
		return s.settings.Update(txCtx, current)
	})
	if err != nil {
		return mapRepoError(err, ErrDepositNotFound, ErrDepositOverlap, "deposit")
	}
	s.logger(ctx, "deposit.setting.deleted", map[string]any{"settingId": settingID})
	return nil
}

// checkOverlap rejects candidate when it is live and intersects any other live tier.
func (s *depositService) checkOverlap(ctx context.Context, candidate DepositSetting) error {
	if !candidate.Live() {
		return nil
	}
	existing, err := s.settings.List(ctx, false)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.ID == candidate.ID || !other.Live() {
			continue
		}
		if candidate.Overlaps(other) {
			return fmt.Errorf("%w: [%d, %d] intersects %s [%d, %d]", ErrDepositOverlap,
				candidate.MinTotal, candidate.MaxTotal, other.ID, other.MinTotal, other.MaxTotal)
		}
	}
	return nil
}

func validateDepositRange(cmd DepositSettingCommand) error {
	switch {
	case cmd.MinTotal < 0:
		return fmt.Errorf("%w: min total must be >= 0", ErrDepositInvalidInput)
	case cmd.MaxTotal < cmd.MinTotal:
		return fmt.Errorf("%w: max total must be >= min total", ErrDepositInvalidInput)
	case !ValidDepositPercent(cmd.Percent):
		return fmt.Errorf("%w: percent must be in (0, 100]", ErrDepositInvalidInput)
	}
	return nil
}
