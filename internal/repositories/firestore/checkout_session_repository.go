package firestore

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce/internal/domain"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const checkoutSessionsCollection = "checkoutSessions"

// CheckoutSessionRepository persists pending deposit checkouts.
type CheckoutSessionRepository struct {
	base *pfirestore.BaseRepository[checkoutSessionDocument]
}

var _ repositories.CheckoutSessionRepository = (*CheckoutSessionRepository)(nil)

func NewCheckoutSessionRepository(provider *pfirestore.Provider) (*CheckoutSessionRepository, error) {
	if provider == nil {
		return nil, errors.New("checkout session repository requires firestore provider")
	}
	return &CheckoutSessionRepository{base: pfirestore.NewBaseRepository[checkoutSessionDocument](provider, checkoutSessionsCollection)}, nil
}

func (r *CheckoutSessionRepository) Insert(ctx context.Context, session domain.CheckoutSession) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("checkout session repository: id is required")
	}
	return r.base.Create(ctx, session.ID, newCheckoutSessionDocument(session))
}

func (r *CheckoutSessionRepository) Update(ctx context.Context, session domain.CheckoutSession) error {
	if strings.TrimSpace(session.ID) == "" {
		return errors.New("checkout session repository: id is required")
	}
	return r.base.Set(ctx, session.ID, newCheckoutSessionDocument(session))
}

func (r *CheckoutSessionRepository) FindByID(ctx context.Context, sessionID string) (domain.CheckoutSession, error) {
	doc, err := r.base.Get(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

// FindByProviderSession resolves a checkout from the PSP session id carried by webhooks.
func (r *CheckoutSessionRepository) FindByProviderSession(ctx context.Context, provider string, providerSessionID string) (domain.CheckoutSession, error) {
	provider = strings.TrimSpace(provider)
	providerSessionID = strings.TrimSpace(providerSessionID)
	if provider == "" || providerSessionID == "" {
		return domain.CheckoutSession{}, errors.New("checkout session repository: provider and session id are required")
	}
	docs, err := r.base.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("provider", "==", provider).Where("providerSessionId", "==", providerSessionID).Limit(1)
	})
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if len(docs) == 0 {
		return domain.CheckoutSession{}, pfirestore.NotFound("checkoutSessions.findByProviderSession", "checkout session not found")
	}
	return docs[0].Data.toDomain(docs[0].ID), nil
}

type checkoutSessionDocument struct {
	UserID            string             `firestore:"userId"`
	Provider          string             `firestore:"provider"`
	ProviderSessionID string             `firestore:"providerSessionId"`
	IntentID          string             `firestore:"intentId,omitempty"`
	RedirectURL       string             `firestore:"redirectUrl,omitempty"`
	Currency          string             `firestore:"currency"`
	TotalAmount       int64              `firestore:"totalAmount"`
	DepositPercent    float64            `firestore:"depositPercent"`
	DepositAmount     int64              `firestore:"depositAmount"`
	Items             []cartItemDocument `firestore:"items"`
	Contact           contactDocument    `firestore:"contact"`
	Note              string             `firestore:"note,omitempty"`
	Status            string             `firestore:"status"`
	OrderID           string             `firestore:"orderId,omitempty"`
	CreatedAt         time.Time          `firestore:"createdAt"`
	ExpiresAt         time.Time          `firestore:"expiresAt"`
}

func newCheckoutSessionDocument(s domain.CheckoutSession) checkoutSessionDocument {
	return checkoutSessionDocument{
		UserID:            s.UserID,
		Provider:          s.Provider,
		ProviderSessionID: s.ProviderSessionID,
		IntentID:          s.IntentID,
		RedirectURL:       s.RedirectURL,
		Currency:          s.Currency,
		TotalAmount:       s.TotalAmount,
		DepositPercent:    s.DepositPercent,
		DepositAmount:     s.DepositAmount,
		Items:             newCartItemDocuments(s.Items),
		Contact:           newContactDocument(s.Contact),
		Note:              s.Note,
		Status:            string(s.Status),
		OrderID:           s.OrderID,
		CreatedAt:         s.CreatedAt.UTC(),
		ExpiresAt:         s.ExpiresAt.UTC(),
	}
}

func (d checkoutSessionDocument) toDomain(id string) domain.CheckoutSession {
	return domain.CheckoutSession{
		ID:                id,
		UserID:            d.UserID,
		Provider:          d.Provider,
		ProviderSessionID: d.ProviderSessionID,
		IntentID:          d.IntentID,
		RedirectURL:       d.RedirectURL,
		Currency:          d.Currency,
		TotalAmount:       d.TotalAmount,
		DepositPercent:    d.DepositPercent,
		DepositAmount:     d.DepositAmount,
		Items:             cartItemsFromDocuments(d.Items),
		Contact:           d.Contact.toDomain(),
		Note:              d.Note,
		Status:            domain.CheckoutStatus(d.Status),
		OrderID:           d.OrderID,
		CreatedAt:         d.CreatedAt,
		ExpiresAt:         d.ExpiresAt,
	}
}
