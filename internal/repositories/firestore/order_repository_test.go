package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/raulos/kiosk-api/internal/domain"
	"github.com/raulos/kiosk-api/internal/platform/config"
	pfirestore "github.com/raulos/kiosk-api/internal/platform/firestore"
	"github.com/raulos/kiosk-api/internal/repositories"
)

// These tests exercise the real transaction path and require the Firestore
// emulator: set FIRESTORE_EMULATOR_HOST to run them.
func newEmulatorProvider(t *testing.T) *pfirestore.Provider {
	t.Helper()

	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	provider := pfirestore.NewProvider(config.FirestoreConfig{
		ProjectID:    fmt.Sprintf("kiosk-test-%d", time.Now().UnixNano()),
		EmulatorHost: host,
	})
	t.Cleanup(func() {
		_ = provider.Close()
	})
	return provider
}

func seedCommitFixtures(t *testing.T, ctx context.Context, provider *pfirestore.Provider, now time.Time) {
	t.Helper()

	client, err := provider.Client(ctx)
	if err != nil {
		t.Fatalf("provider client: %v", err)
	}

	seed := func(collection, id string, data map[string]any) {
		if _, err := client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
			t.Fatalf("seed %s/%s: %v", collection, id, err)
		}
	}

	seed(customersCollection, "42", map[string]any{"name": "regular", "points": int64(100)})
	seed(orderTypesCollection, "1", map[string]any{"name": "dine-in"})
	seed(paymentTypesCollection, "pt-cash", map[string]any{"name": "cash"})
	seed(couponsCollection, "c-ten", map[string]any{"discountPercent": 10.0, "expiresAt": now.Add(time.Hour)})
	seed(ingredientsCollection, "i-bun", map[string]any{"name": "bun", "price": int64(150), "unit": "unit", "stock": 10.0, "updatedAt": now})
	seed(ingredientsCollection, "i-cheese", map[string]any{"name": "cheese", "price": int64(300), "unit": "unit", "stock": 5.0, "updatedAt": now})
}

func baseCommitRequest(now time.Time) repositories.OrderCommitRequest {
	demand := domain.NewDemandLedger()
	demand.Add("i-bun", 1)
	demand.Add("i-cheese", 2)

	return repositories.OrderCommitRequest{
		OrderID:       "ord_test_1",
		PaymentID:     "pay_test_1",
		CustomerID:    "42",
		OrderTypeID:   "1",
		PaymentTypeID: "pt-cash",
		Total:         5600,
		LoyaltyPoints: 560,
		Demand:        demand,
		Lines: []repositories.OrderCommitLine{{
			LineItemID: "li_test_1",
			ProductID:  "p-burger",
			Subtotal:   5600,
			Extras: []domain.ExtraEntry{{
				IngredientID: "i-cheese", Quantity: 2, Extra: true, UnitPrice: 300,
			}},
		}},
		Now: now,
	}
}

func TestCommitOrderPersistsAggregateAndDecrementsStock(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	provider := newEmulatorProvider(t)
	seedCommitFixtures(t, ctx, provider, now)

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("NewOrderRepository: %v", err)
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		t.Fatalf("NewCatalogRepository: %v", err)
	}

	result, err := repo.CommitOrder(ctx, baseCommitRequest(now))
	if err != nil {
		t.Fatalf("CommitOrder: %v", err)
	}
	if result.Order.ID != "ord_test_1" || result.Order.Total != 5600 {
		t.Fatalf("unexpected order: %+v", result.Order)
	}

	bun, err := catalog.GetIngredient(ctx, "i-bun")
	if err != nil {
		t.Fatalf("GetIngredient bun: %v", err)
	}
	if bun.Stock != 9 {
		t.Fatalf("bun stock = %g, want 9", bun.Stock)
	}
	cheese, err := catalog.GetIngredient(ctx, "i-cheese")
	if err != nil {
		t.Fatalf("GetIngredient cheese: %v", err)
	}
	if cheese.Stock != 3 {
		t.Fatalf("cheese stock = %g, want 3", cheese.Stock)
	}

	customer, err := catalog.GetCustomer(ctx, "42")
	if err != nil {
		t.Fatalf("GetCustomer: %v", err)
	}
	if customer.Points != 660 {
		t.Fatalf("points = %d, want 660", customer.Points)
	}

	order, err := repo.GetOrder(ctx, "ord_test_1")
	if err != nil {
		t.Fatalf("GetOrder: %v", err)
	}
	if len(order.Lines) != 1 || order.Lines[0].Subtotal != 5600 {
		t.Fatalf("unexpected lines: %+v", order.Lines)
	}
	if order.Payment.ID != "pay_test_1" || order.Payment.Amount != 5600 {
		t.Fatalf("unexpected payment: %+v", order.Payment)
	}
}

func TestCommitOrderConsumesCouponExactlyOnce(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	provider := newEmulatorProvider(t)
	seedCommitFixtures(t, ctx, provider, now)

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("NewOrderRepository: %v", err)
	}

	first := baseCommitRequest(now)
	first.CouponID = "c-ten"
	first.Discount = 560
	first.Total = 5040
	first.LoyaltyPoints = 0
	if _, err := repo.CommitOrder(ctx, first); err != nil {
		t.Fatalf("first CommitOrder: %v", err)
	}

	second := baseCommitRequest(now)
	second.OrderID = "ord_test_2"
	second.PaymentID = "pay_test_2"
	second.Lines[0].LineItemID = "li_test_2"
	second.CouponID = "c-ten"
	second.LoyaltyPoints = 0

	_, err = repo.CommitOrder(ctx, second)
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorCouponInvalid {
		t.Fatalf("second commit err = %v, want coupon invalid", err)
	}
}

func TestCommitOrderRejectsInsufficientStockWithoutWrites(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	provider := newEmulatorProvider(t)
	seedCommitFixtures(t, ctx, provider, now)

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("NewOrderRepository: %v", err)
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		t.Fatalf("NewCatalogRepository: %v", err)
	}

	req := baseCommitRequest(now)
	req.Demand = domain.NewDemandLedger()
	req.Demand.Add("i-cheese", 6)

	_, err = repo.CommitOrder(ctx, req)
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorInsufficientStock {
		t.Fatalf("err = %v, want insufficient stock", err)
	}
	if orderErr.StockDetail == nil || orderErr.StockDetail.Required != 6 || orderErr.StockDetail.Available != 5 {
		t.Fatalf("unexpected shortage detail: %+v", orderErr.StockDetail)
	}

	cheese, err := catalog.GetIngredient(ctx, "i-cheese")
	if err != nil {
		t.Fatalf("GetIngredient: %v", err)
	}
	if cheese.Stock != 5 {
		t.Fatalf("cheese stock = %g, want untouched 5", cheese.Stock)
	}
	if _, err := repo.GetOrder(ctx, req.OrderID); err == nil {
		t.Fatal("order should not exist after rejected commit")
	}
}

func TestCommitOrderCouponExpiryCheckedAtCommitTime(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	provider := newEmulatorProvider(t)
	seedCommitFixtures(t, ctx, provider, now)

	// The repository clock is ahead of the coupon expiry; the request
	// timestamp is not. The in-transaction re-check must use the clock, so
	// the commit fails even though the earlier check passed.
	repo, err := NewOrderRepository(provider, WithOrderClock(func() time.Time {
		return now.Add(2 * time.Hour)
	}))
	if err != nil {
		t.Fatalf("NewOrderRepository: %v", err)
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		t.Fatalf("NewCatalogRepository: %v", err)
	}

	req := baseCommitRequest(now)
	req.CouponID = "c-ten"
	req.Discount = 560
	req.Total = 5040
	req.LoyaltyPoints = 0

	_, err = repo.CommitOrder(ctx, req)
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorCouponInvalid {
		t.Fatalf("err = %v, want coupon invalid", err)
	}

	if _, err := catalog.GetCoupon(ctx, "c-ten"); err != nil {
		t.Fatalf("coupon should survive the rejected commit: %v", err)
	}
	cheese, err := catalog.GetIngredient(ctx, "i-cheese")
	if err != nil {
		t.Fatalf("GetIngredient: %v", err)
	}
	if cheese.Stock != 5 {
		t.Fatalf("cheese stock = %g, want untouched 5", cheese.Stock)
	}
}

func TestCommitOrderCouponSingleUseUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	provider := newEmulatorProvider(t)
	seedCommitFixtures(t, ctx, provider, now)

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("NewOrderRepository: %v", err)
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		t.Fatalf("NewCatalogRepository: %v", err)
	}

	const attempts = 4
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := baseCommitRequest(now)
			req.OrderID = fmt.Sprintf("ord_race_%d", i)
			req.PaymentID = fmt.Sprintf("pay_race_%d", i)
			req.Lines[0].LineItemID = fmt.Sprintf("li_race_%d", i)
			req.CouponID = "c-ten"
			req.Discount = 560
			req.Total = 5040
			req.LoyaltyPoints = 0
			_, results[i] = repo.CommitOrder(ctx, req)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range results {
		if err == nil {
			successes++
			continue
		}
		t.Logf("commit %d rejected: %v", i, err)
	}
	if successes != 1 {
		t.Fatalf("%d commits consumed the coupon, want exactly 1", successes)
	}

	if _, err := catalog.GetCoupon(ctx, "c-ten"); !notFound(err) {
		t.Fatalf("coupon lookup after race = %v, want not found", err)
	}
}

func TestCommitOrderStockFloorUnderConcurrency(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	provider := newEmulatorProvider(t)
	seedCommitFixtures(t, ctx, provider, now)

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("NewOrderRepository: %v", err)
	}
	catalog, err := NewCatalogRepository(provider)
	if err != nil {
		t.Fatalf("NewCatalogRepository: %v", err)
	}

	// Each order demands 3 cheese against a stock of 5: only one can win.
	const attempts = 5
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := baseCommitRequest(now)
			req.OrderID = fmt.Sprintf("ord_floor_%d", i)
			req.PaymentID = fmt.Sprintf("pay_floor_%d", i)
			req.Lines[0].LineItemID = fmt.Sprintf("li_floor_%d", i)
			req.Demand = domain.NewDemandLedger()
			req.Demand.Add("i-cheese", 3)
			_, results[i] = repo.CommitOrder(ctx, req)
		}(i)
	}
	wg.Wait()

	successes := 0
	for i, err := range results {
		if err == nil {
			successes++
			continue
		}
		t.Logf("commit %d rejected: %v", i, err)
	}
	if successes != 1 {
		t.Fatalf("%d commits were admitted, want exactly 1", successes)
	}

	cheese, err := catalog.GetIngredient(ctx, "i-cheese")
	if err != nil {
		t.Fatalf("GetIngredient: %v", err)
	}
	if cheese.Stock < 0 {
		t.Fatalf("cheese stock = %g, went below zero", cheese.Stock)
	}
	if cheese.Stock != 2 {
		t.Fatalf("cheese stock = %g, want 5 minus the single winner's 3", cheese.Stock)
	}
}

func TestCommitOrderMissingReference(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	provider := newEmulatorProvider(t)
	seedCommitFixtures(t, ctx, provider, now)

	repo, err := NewOrderRepository(provider)
	if err != nil {
		t.Fatalf("NewOrderRepository: %v", err)
	}

	req := baseCommitRequest(now)
	req.PaymentTypeID = "pt-missing"

	_, err = repo.CommitOrder(ctx, req)
	var orderErr *repositories.OrderError
	if !errors.As(err, &orderErr) || orderErr.Code != repositories.OrderErrorReferenceNotFound {
		t.Fatalf("err = %v, want reference not found", err)
	}
	if orderErr.Entity != "payment type" || orderErr.EntityID != "pt-missing" {
		t.Fatalf("unexpected entity detail: %+v", orderErr)
	}
}
