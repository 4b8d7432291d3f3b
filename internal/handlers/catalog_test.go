package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/raulos/kiosk-api/internal/domain"
	"github.com/raulos/kiosk-api/internal/services"
)

type stubCatalogService struct {
	types   []domain.ProductType
	list    []domain.Product
	detail  services.ProductDetail
	listErr error
	getErr  error
}

func (s *stubCatalogService) ListProductTypes(context.Context) ([]domain.ProductType, error) {
	return s.types, nil
}

func (s *stubCatalogService) ListProducts(_ context.Context, typeID string) ([]domain.Product, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.list, nil
}

func (s *stubCatalogService) GetProduct(_ context.Context, productID string) (services.ProductDetail, error) {
	if s.getErr != nil {
		return services.ProductDetail{}, s.getErr
	}
	return s.detail, nil
}

func newCatalogServer(svc services.CatalogService) *httptest.Server {
	router := NewRouter(WithCatalogRoutes(NewCatalogHandlers(svc).Routes))
	return httptest.NewServer(router)
}

func TestListProductTypesEndpoint(t *testing.T) {
	svc := &stubCatalogService{types: []domain.ProductType{{ID: "t-mains", Name: "mains"}}}
	server := newCatalogServer(svc)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/catalog/product-types")
	if err != nil {
		t.Fatalf("GET product-types: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var payload struct {
		Items []productTypeResponse `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 1 || payload.Items[0].ID != "t-mains" {
		t.Fatalf("unexpected items: %+v", payload.Items)
	}
}

func TestListProductsEndpointNotFound(t *testing.T) {
	svc := &stubCatalogService{listErr: services.ErrCatalogNotFound}
	server := newCatalogServer(svc)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/catalog/product-types/t-missing/products")
	if err != nil {
		t.Fatalf("GET products: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetProductEndpointReturnsRecipe(t *testing.T) {
	svc := &stubCatalogService{detail: services.ProductDetail{
		Product: domain.Product{ID: "p-burger", TypeID: "t-mains", Name: "burger", BasePrice: 5000, Available: true},
		Recipe: []domain.RecipeEntry{{
			Ingredient: domain.Ingredient{ID: "i-bun", Name: "bun", Unit: "unit", Price: 150},
			Quantity:   1,
		}},
	}}
	server := newCatalogServer(svc)
	defer server.Close()

	resp, err := http.Get(server.URL + "/api/v1/catalog/products/p-burger")
	if err != nil {
		t.Fatalf("GET product: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var payload productDetailResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.ID != "p-burger" || len(payload.Recipe) != 1 || payload.Recipe[0].IngredientID != "i-bun" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}
