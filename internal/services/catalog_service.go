package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/raulos/kiosk-api/internal/domain"
	"github.com/raulos/kiosk-api/internal/repositories"
)

// Catalog failure modes.
var (
	ErrCatalogInvalidInput = errors.New("catalog: invalid input")
	ErrCatalogNotFound     = errors.New("catalog: not found")
	ErrCatalogUnavailable  = errors.New("catalog: storage unavailable")
)

// CatalogServiceDeps wires the catalog service dependencies.
type CatalogServiceDeps struct {
	Catalog repositories.CatalogRepository
}

type catalogService struct {
	catalog repositories.CatalogRepository
}

// NewCatalogService constructs the read-only menu service.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("catalog service requires catalog repository")
	}
	return &catalogService{catalog: deps.Catalog}, nil
}

func (s *catalogService) ListProductTypes(ctx context.Context) ([]domain.ProductType, error) {
	types, err := s.catalog.ListProductTypes(ctx)
	if err != nil {
		return nil, s.mapError("list product types", err)
	}
	return types, nil
}

func (s *catalogService) ListProducts(ctx context.Context, typeID string) ([]domain.Product, error) {
	typeID = strings.TrimSpace(typeID)
	if typeID == "" {
		return nil, fmt.Errorf("product type id is required: %w", ErrCatalogInvalidInput)
	}

	if _, err := s.catalog.GetProductType(ctx, typeID); err != nil {
		return nil, s.mapError(fmt.Sprintf("product type %s", typeID), err)
	}

	products, err := s.catalog.ListProductsByType(ctx, typeID)
	if err != nil {
		return nil, s.mapError("list products", err)
	}
	return products, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (ProductDetail, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return ProductDetail{}, fmt.Errorf("product id is required: %w", ErrCatalogInvalidInput)
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return ProductDetail{}, s.mapError(fmt.Sprintf("product %s", productID), err)
	}
	recipe, err := s.catalog.GetBaseIngredients(ctx, productID)
	if err != nil {
		return ProductDetail{}, s.mapError(fmt.Sprintf("product %s recipe", productID), err)
	}
	return ProductDetail{Product: product, Recipe: recipe}, nil
}

func (s *catalogService) mapError(op string, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%s: %w", op, ErrCatalogNotFound)
		case repoErr.IsUnavailable(), repoErr.IsConflict():
			return fmt.Errorf("%s: %w", op, ErrCatalogUnavailable)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
