//go:build integration

package firestore

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	domain "github.com/hanko-field/commerce/internal/domain"
	pconfig "github.com/hanko-field/commerce/internal/platform/config"
	pfirestore "github.com/hanko-field/commerce/internal/platform/firestore"
	"github.com/hanko-field/commerce/internal/repositories"
)

const firestoreEmulatorImage = "gcr.io/google.com/cloudsdktool/cloud-sdk:emulators"

func newEmulatorProvider(t *testing.T, project string) *pfirestore.Provider {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in short mode")
	}

	endpoint := strings.TrimSpace(os.Getenv("FIRESTORE_EMULATOR_HOST"))
	if endpoint == "" {
		if _, err := exec.LookPath("docker"); err != nil {
			t.Skip("docker not available: " + err.Error())
		}
		ensureDockerDaemon(t)
		port := freePort(t)
		endpoint = fmt.Sprintf("127.0.0.1:%d", port)
		containerID := startFirestoreEmulator(t, port)
		t.Cleanup(func() { stopContainer(containerID) })
		waitForEndpoint(t, endpoint, 30*time.Second)
	}

	provider := pfirestore.NewProvider(pconfig.FirestoreConfig{ProjectID: project, EmulatorHost: endpoint})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	return provider
}

func TestProductRepositoryStockIntegration(t *testing.T) {
	provider := newEmulatorProvider(t, fmt.Sprintf("stock-%d", time.Now().UnixNano()))
	repo, err := NewProductRepository(provider)
	if err != nil {
		t.Fatalf("new product repository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for _, p := range []domain.Product{
		{ID: "prod_a", Name: "Mug", Price: 1200, Currency: "usd", Stock: 5, Active: true, UpdatedAt: now},
		{ID: "prod_b", Name: "Plate", Price: 900, Currency: "usd", Stock: 1, Active: true, UpdatedAt: now},
	} {
		if err := repo.Upsert(ctx, p); err != nil {
			t.Fatalf("upsert %s: %v", p.ID, err)
		}
	}

	_, err = repo.DecrementStock(ctx, []domain.StockChange{{ProductID: "prod_a", Quantity: 2}, {ProductID: "prod_b", Quantity: 2}}, now)
	var invErr *repositories.InventoryError
	if !errors.As(err, &invErr) || invErr.Code != repositories.InventoryErrorInsufficientStock || invErr.ProductID != "prod_b" {
		t.Fatalf("expected insufficient stock for prod_b, got %v", err)
	}
	a, err := repo.FindByID(ctx, "prod_a")
	if err != nil {
		t.Fatalf("find prod_a: %v", err)
	}
	if a.Stock != 5 {
		t.Fatalf("failed decrement must not touch prod_a, stock=%d", a.Stock)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := repo.DecrementStock(ctx, []domain.StockChange{{ProductID: "prod_a", Quantity: 1}}, now); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful decrements, got %d", succeeded)
	}
	a, _ = repo.FindByID(ctx, "prod_a")
	if a.Stock != 0 {
		t.Fatalf("expected stock to bottom out at 0, got %d", a.Stock)
	}

	products, err := repo.IncrementStock(ctx, []domain.StockChange{{ProductID: "prod_a", Quantity: 3}}, now)
	if err != nil || len(products) != 1 || products[0].Stock != 3 {
		t.Fatalf("increment: %v %+v", err, products)
	}
}

func TestCounterRepositoryIntegration(t *testing.T) {
	provider := newEmulatorProvider(t, fmt.Sprintf("counter-%d", time.Now().UnixNano()))
	repo, err := NewCounterRepository(provider)
	if err != nil {
		t.Fatalf("new counter repository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	const workers = 8
	results := make([]int64, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			value, err := repo.Next(ctx, "orders:2024", 1)
			if err != nil {
				t.Errorf("next(%d): %v", idx, err)
				return
			}
			results[idx] = value
		}(i)
	}
	wg.Wait()
	sort.Slice(results, func(i, j int) bool { return results[i] < results[j] })
	for i, val := range results {
		if val != int64(i+1) {
			t.Fatalf("expected gapless sequence, got %v", results)
		}
	}

	limit, start := int64(1), int64(0)
	if err := repo.Configure(ctx, "orders:bounded", repositories.CounterConfig{Step: 1, MaxValue: &limit, InitialValue: &start}); err != nil {
		t.Fatalf("configure: %v", err)
	}
	if _, err := repo.Next(ctx, "orders:bounded", 0); err != nil {
		t.Fatalf("first bounded next: %v", err)
	}
	var counterErr *repositories.CounterError
	if _, err := repo.Next(ctx, "orders:bounded", 0); !errors.As(err, &counterErr) || counterErr.Code != repositories.CounterErrorExhausted {
		t.Fatalf("expected exhaustion, got %v", err)
	}
}

func TestOrderRepositoryListIntegration(t *testing.T) {
	provider := newEmulatorProvider(t, fmt.Sprintf("orders-%d", time.Now().UnixNano()))
	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("new order repository: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	base := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		order := domain.Order{
			ID:             fmt.Sprintf("ord_%d", i),
			UserID:         "user_1",
			Status:         domain.OrderStatusDepositPaid,
			ApprovalStatus: domain.ApprovalStatusPending,
			RefundStatus:   domain.RefundStatusNone,
			CreatedAt:      base.Add(time.Duration(i) * time.Minute),
			UpdatedAt:      base,
		}
		if err := repo.Insert(ctx, order); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	page, err := repo.List(ctx, repositories.OrderListFilter{UserID: "user_1", Pagination: domain.Pagination{PageSize: 2}})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].ID != "ord_2" || page.NextPageToken == "" {
		t.Fatalf("unexpected first page %+v", page)
	}
	page, err = repo.List(ctx, repositories.OrderListFilter{UserID: "user_1", Pagination: domain.Pagination{PageSize: 2, PageToken: page.NextPageToken}})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(page.Items) != 1 || page.Items[0].ID != "ord_0" || page.NextPageToken != "" {
		t.Fatalf("unexpected second page %+v", page)
	}
}

func freePort(t *testing.T) int {
	t.Helper()
	addr, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unable to allocate port: %v", err)
	}
	defer addr.Close()
	return addr.Addr().(*net.TCPAddr).Port
}

func startFirestoreEmulator(t *testing.T, port int) string {
	t.Helper()
	out, err := exec.Command("docker", "run", "-d", "--rm",
		"-p", fmt.Sprintf("%d:8080", port),
		firestoreEmulatorImage,
		"gcloud", "beta", "emulators", "firestore", "start", "--host-port=0.0.0.0:8080", "--quiet",
	).CombinedOutput()
	if err != nil {
		t.Fatalf("failed to start firestore emulator: %v - %s", err, string(out))
	}
	id := strings.TrimSpace(string(out))
	if id == "" {
		t.Fatalf("docker returned empty container id")
	}
	return id
}

func ensureDockerDaemon(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := exec.CommandContext(ctx, "docker", "info").Run(); err != nil {
		t.Skipf("docker daemon not available: %v", err)
	}
}

func stopContainer(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = exec.CommandContext(ctx, "docker", "stop", id).Run()
}

func waitForEndpoint(t *testing.T, endpoint string, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", endpoint, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("firestore emulator at %s did not become ready within %s", endpoint, timeout)
}
