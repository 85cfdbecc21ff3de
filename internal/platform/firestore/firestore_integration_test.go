//go:build integration

package firestore_test

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"cloud.google.com/go/firestore"

	pconfig "github.com/hanko-field/commerce/internal/platform/config"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
)

type sampleEntity struct {
	Name  string `firestore:"name"`
	Count int    `firestore:"count"`
}

func newEmulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: "test-project", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func TestRepositoryTransactionsIntegration(t *testing.T) {
	provider := newEmulatorProvider(t)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	repo := pfirestore.NewBaseRepository[sampleEntity](provider, "samples")
	id := "sample-" + time.Now().Format("150405.000000")

	if err := repo.Create(ctx, id, sampleEntity{Name: "alpha", Count: 1}); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if err := repo.Create(ctx, id, sampleEntity{Name: "alpha"}); err == nil {
		t.Fatalf("expected conflict on duplicate create")
	} else {
		var repoErr interface{ IsConflict() bool }
		if !errors.As(err, &repoErr) || !repoErr.IsConflict() {
			t.Fatalf("expected conflict classification, got %v", err)
		}
	}

	uow := pfirestore.NewUnitOfWork(provider)
	err := uow.RunInTx(ctx, func(ctx context.Context) error {
		doc, err := repo.Get(ctx, id)
		if err != nil {
			return err
		}
		return repo.Update(ctx, id, []firestore.Update{{Path: "count", Value: doc.Data.Count + 1}})
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}

	doc, err := repo.Get(ctx, id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if doc.Data.Count != 2 {
		t.Fatalf("expected count=2 after txn, got %d", doc.Data.Count)
	}

	if _, err := repo.Get(ctx, "missing"); err == nil {
		t.Fatalf("expected not found error")
	} else {
		var repoErr interface{ IsNotFound() bool }
		if !errors.As(err, &repoErr) || !repoErr.IsNotFound() {
			t.Fatalf("expected not found classification, got %v", err)
		}
	}

	sentinel := errors.New("abort")
	if err := uow.RunInTx(ctx, func(ctx context.Context) error {
		if err := repo.Update(ctx, id, []firestore.Update{{Path: "count", Value: 99}}); err != nil {
			return err
		}
		return sentinel
	}); !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}
	doc, _ = repo.Get(ctx, id)
	if doc.Data.Count != 2 {
		t.Fatalf("expected rollback, got count=%d", doc.Data.Count)
	}
}
