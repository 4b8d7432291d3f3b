package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/raulos/kiosk-api/internal/domain"
	"github.com/raulos/kiosk-api/internal/platform/httpx"
	"github.com/raulos/kiosk-api/internal/services"
)

type productTypeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type productResponse struct {
	ID          string `json:"id"`
	TypeID      string `json:"typeId"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BasePrice   int64  `json:"basePrice"`
	Available   bool   `json:"available"`
}

type recipeEntryResponse struct {
	IngredientID string  `json:"ingredientId"`
	Name         string  `json:"name"`
	Unit         string  `json:"unit"`
	Quantity     float64 `json:"quantity"`
	Price        int64   `json:"price"`
}

type productDetailResponse struct {
	productResponse
	Recipe []recipeEntryResponse `json:"recipe"`
}

// CatalogHandlers exposes the read-only menu endpoints.
type CatalogHandlers struct {
	catalog services.CatalogService
}

// NewCatalogHandlers constructs a new CatalogHandlers instance.
func NewCatalogHandlers(catalog services.CatalogService) *CatalogHandlers {
	return &CatalogHandlers{catalog: catalog}
}

// Routes registers the /catalog endpoints.
func (h *CatalogHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/product-types", h.listProductTypes)
	r.Get("/product-types/{typeID}/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
}

func (h *CatalogHandlers) listProductTypes(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	types, err := h.catalog.ListProductTypes(ctx)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productTypeResponse, 0, len(types))
	for _, t := range types {
		items = append(items, productTypeResponse{ID: t.ID, Name: t.Name})
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CatalogHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	typeID := strings.TrimSpace(chi.URLParam(r, "typeID"))
	products, err := h.catalog.ListProducts(ctx, typeID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	items := make([]productResponse, 0, len(products))
	for _, p := range products {
		items = append(items, buildProductResponse(p))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *CatalogHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	detail, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeCatalogError(ctx, w, err)
		return
	}

	response := productDetailResponse{
		productResponse: buildProductResponse(detail.Product),
		Recipe:          make([]recipeEntryResponse, 0, len(detail.Recipe)),
	}
	for _, entry := range detail.Recipe {
		response.Recipe = append(response.Recipe, recipeEntryResponse{
			IngredientID: entry.Ingredient.ID,
			Name:         entry.Ingredient.Name,
			Unit:         entry.Ingredient.Unit,
			Quantity:     entry.Quantity,
			Price:        entry.Ingredient.Price,
		})
	}
	writeJSONResponse(w, http.StatusOK, response)
}

func buildProductResponse(p domain.Product) productResponse {
	return productResponse{
		ID:          p.ID,
		TypeID:      p.TypeID,
		Name:        p.Name,
		Description: p.Description,
		BasePrice:   p.BasePrice,
		Available:   p.Available,
	}
}

func writeCatalogError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrCatalogInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrCatalogNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrCatalogUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("storage_unavailable", "catalog storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("catalog_failed", "catalog request failed", http.StatusInternalServerError))
	}
}
