package allocator_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"

	"github.com/relayhub/fanout-gateway/internal/allocator"
	"github.com/relayhub/fanout-gateway/internal/domain"
	"github.com/relayhub/fanout-gateway/internal/repository"
)

func newAllocator() (*allocator.Allocator, *repository.MockCatalogRepository) {
	catalog := repository.NewMockCatalogRepository()
	return allocator.New(catalog, zap.NewNop()), catalog
}

func TestAllocateOne_OldestFirst(t *testing.T) {
	a, catalog := newAllocator()
	catalog.AddProduct(domain.Product{ID: "prod-1", Name: "Course"})
	catalog.AddCode("prod-1", "AAA")
	catalog.AddCode("prod-1", "BBB")
	catalog.AddCode("prod-1", "CCC")

	ctx := context.Background()
	for _, want := range []string{"AAA", "BBB", "CCC"} {
		code, err := a.AllocateOne(ctx, "prod-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if code.Code != want {
			t.Fatalf("expected %s, got %s", want, code.Code)
		}
		if code.Status != domain.CodeRedeemed {
			t.Fatalf("expected returned code to be redeemed, got %s", code.Status)
		}
	}

	_, err := a.AllocateOne(ctx, "prod-1")
	if !errors.Is(err, domain.ErrNoActiveCode) {
		t.Fatalf("expected ErrNoActiveCode on empty pool, got %v", err)
	}
}

// Concurrent allocations hand out every code exactly once; no code is
// returned to two callers.
func TestAllocateOne_ConcurrentSingleWinner(t *testing.T) {
	a, catalog := newAllocator()
	catalog.AddProduct(domain.Product{ID: "prod-1"})

	const codes = 20
	const callers = 60
	for i := 0; i < codes; i++ {
		catalog.AddCode("prod-1", "code")
	}

	var wg sync.WaitGroup
	results := make(chan *domain.RedemptionCode, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c, err := a.AllocateOne(context.Background(), "prod-1"); err == nil {
				results <- c
			}
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	for c := range results {
		if seen[c.ID] {
			t.Fatalf("code %s allocated twice", c.ID)
		}
		seen[c.ID] = true
	}
	if len(seen) != codes {
		t.Fatalf("expected exactly %d winners, got %d", codes, len(seen))
	}
}

func TestAllocateCombo_AllOrNothing(t *testing.T) {
	a, catalog := newAllocator()
	catalog.AddCombo(domain.Combo{ID: "combo-1", ProductIDs: []string{"prod-1", "prod-2"}})
	catalog.AddCode("prod-1", "AAA")
	// prod-2 has no codes: the whole allocation must abort.

	_, err := a.AllocateCombo(context.Background(), "combo-1")
	if !errors.Is(err, domain.ErrNoActiveCode) {
		t.Fatalf("expected ErrNoActiveCode, got %v", err)
	}

	// The prod-1 code must still be active.
	for _, c := range catalog.Codes() {
		if c.Status != domain.CodeActive {
			t.Fatalf("expected code %s to stay active after aborted combo, got %s", c.ID, c.Status)
		}
	}
}

func TestAllocateCombo_Success(t *testing.T) {
	a, catalog := newAllocator()
	catalog.AddCombo(domain.Combo{ID: "combo-1", ProductIDs: []string{"prod-1", "prod-2"}})
	catalog.AddCode("prod-1", "AAA")
	catalog.AddCode("prod-2", "BBB")

	var allocated []string
	a.OnAllocated = func(productID string) { allocated = append(allocated, productID) }

	codes, err := a.AllocateCombo(context.Background(), "combo-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 2 {
		t.Fatalf("expected 2 codes, got %d", len(codes))
	}
	if len(allocated) != 2 {
		t.Fatalf("expected hook to fire twice, got %d", len(allocated))
	}
}

func TestAllocateFor_DispatchesOnKind(t *testing.T) {
	a, catalog := newAllocator()
	catalog.AddProduct(domain.Product{ID: "prod-1"})
	catalog.AddCode("prod-1", "AAA")

	codes, err := a.AllocateFor(context.Background(), domain.ItemProduct, "prod-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(codes) != 1 || codes[0].Code != "AAA" {
		t.Fatalf("unexpected allocation: %+v", codes)
	}

	_, err = a.AllocateFor(context.Background(), domain.ItemCombo, "missing-combo")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown combo, got %v", err)
	}
}
