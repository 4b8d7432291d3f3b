package services

import (
	"context"
	"errors"
	"testing"
)

func newTestCatalogService(t *testing.T) CatalogService {
	t.Helper()
	svc, err := NewCatalogService(CatalogServiceDeps{Catalog: newTestCatalog()})
	if err != nil {
		t.Fatalf("NewCatalogService: %v", err)
	}
	return svc
}

func TestCatalogListProductTypes(t *testing.T) {
	svc := newTestCatalogService(t)

	types, err := svc.ListProductTypes(context.Background())
	if err != nil {
		t.Fatalf("ListProductTypes: %v", err)
	}
	if len(types) != 1 || types[0].ID != "t-mains" {
		t.Fatalf("unexpected types: %+v", types)
	}
}

func TestCatalogListProducts(t *testing.T) {
	svc := newTestCatalogService(t)

	products, err := svc.ListProducts(context.Background(), "t-mains")
	if err != nil {
		t.Fatalf("ListProducts: %v", err)
	}
	if len(products) != 2 {
		t.Fatalf("got %d products, want 2", len(products))
	}

	if _, err := svc.ListProducts(context.Background(), "t-missing"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("err = %v, want ErrCatalogNotFound", err)
	}
	if _, err := svc.ListProducts(context.Background(), ""); !errors.Is(err, ErrCatalogInvalidInput) {
		t.Fatalf("err = %v, want ErrCatalogInvalidInput", err)
	}
}

func TestCatalogGetProduct(t *testing.T) {
	svc := newTestCatalogService(t)

	detail, err := svc.GetProduct(context.Background(), "p-burger")
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if detail.Product.Name != "burger" {
		t.Fatalf("product name = %q", detail.Product.Name)
	}
	if len(detail.Recipe) != 3 {
		t.Fatalf("got %d recipe entries, want 3", len(detail.Recipe))
	}

	if _, err := svc.GetProduct(context.Background(), "p-missing"); !errors.Is(err, ErrCatalogNotFound) {
		t.Fatalf("err = %v, want ErrCatalogNotFound", err)
	}
}
