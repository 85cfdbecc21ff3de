package firestore

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const depositSettingsCollection = "depositSettings"

// DepositSettingRepository stores deposit tiers. The collection is small and read whole.
type DepositSettingRepository struct {
	base *pfirestore.BaseRepository[depositSettingDocument]
}

var _ repositories.DepositSettingRepository = (*DepositSettingRepository)(nil)

func NewDepositSettingRepository(provider *pfirestore.Provider) (*DepositSettingRepository, error) {
	if provider == nil {
		return nil, errors.New("deposit setting repository requires firestore provider")
	}
	return &DepositSettingRepository{base: pfirestore.NewBaseRepository[depositSettingDocument](provider, depositSettingsCollection)}, nil
}

func (r *DepositSettingRepository) Insert(ctx context.Context, setting domain.DepositSetting) error {
	if strings.TrimSpace(setting.ID) == "" {
		return errors.New("deposit setting repository: id is required")
	}
	return r.base.Create(ctx, setting.ID, newDepositSettingDocument(setting))
}

func (r *DepositSettingRepository) Update(ctx context.Context, setting domain.DepositSetting) error {
	if strings.TrimSpace(setting.ID) == "" {
		return errors.New("deposit setting repository: id is required")
	}
	return r.base.Set(ctx, setting.ID, newDepositSettingDocument(setting))
}

func (r *DepositSettingRepository) FindByID(ctx context.Context, settingID string) (domain.DepositSetting, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(settingID))
	if err != nil {
		return domain.DepositSetting{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// List returns settings ordered by min total.
func (r *DepositSettingRepository) List(ctx context.Context, includeDeleted bool) ([]domain.DepositSetting, error) {
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("minTotal", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	settings := make([]domain.DepositSetting, 0, len(docs))
	for _, doc := range docs {
		if doc.Data.Deleted && !includeDeleted {
			continue
		}
		settings = append(settings, doc.Data.toDomain(doc.ID))
	}
	sort.SliceStable(settings, func(i, j int) bool { return settings[i].MinTotal < settings[j].MinTotal })
	return settings, nil
}

type depositSettingDocument struct {
	MinTotal  int64     `firestore:"minTotal"`
	MaxTotal  int64     `firestore:"maxTotal"`
	Percent   float64   `firestore:"percent"`
	Active    bool      `firestore:"active"`
	Deleted   bool      `firestore:"deleted"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
	UpdatedBy string    `firestore:"updatedBy,omitempty"`
}

func newDepositSettingDocument(s domain.DepositSetting) depositSettingDocument {
	return depositSettingDocument{
		MinTotal:  s.MinTotal,
		MaxTotal:  s.MaxTotal,
		Percent:   s.Percent,
		Active:    s.Active,
		Deleted:   s.Deleted,
		CreatedAt: s.CreatedAt.UTC(),
		UpdatedAt: s.UpdatedAt.UTC(),
		UpdatedBy: s.UpdatedBy,
	}
}

func (d depositSettingDocument) toDomain(id string) domain.DepositSetting {
	return domain.DepositSetting{
		ID:        id,
		MinTotal:  d.MinTotal,
		MaxTotal:  d.MaxTotal,
		Percent:   d.Percent,
		Active:    d.Active,
		Deleted:   d.Deleted,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
		UpdatedBy: d.UpdatedBy,
	}
}
