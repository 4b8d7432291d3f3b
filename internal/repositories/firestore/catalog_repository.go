package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	"github.com/raulos/kiosk-api/internal/domain"
	pfirestore "github.com/raulos/kiosk-api/internal/platform/firestore"
)

const (
	productsCollection     = "products"
	ingredientsCollection  = "ingredients"
	couponsCollection      = "coupons"
	customersCollection    = "customers"
	orderTypesCollection   = "orderTypes"
	paymentTypesCollection = "paymentTypes"
	productTypesCollection = "productTypes"
)

// CatalogRepository resolves catalog documents from Firestore.
type CatalogRepository struct {
	provider     *pfirestore.Provider
	products     *pfirestore.BaseRepository[productDocument]
	ingredients  *pfirestore.BaseRepository[ingredientDocument]
	coupons      *pfirestore.BaseRepository[couponDocument]
	customers    *pfirestore.BaseRepository[customerDocument]
	orderTypes   *pfirestore.BaseRepository[namedDocument]
	paymentTypes *pfirestore.BaseRepository[namedDocument]
	productTypes *pfirestore.BaseRepository[namedDocument]
}

// NewCatalogRepository constructs a CatalogRepository backed by the provider.
func NewCatalogRepository(provider *pfirestore.Provider) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	return &CatalogRepository{
		provider:     provider,
		products:     pfirestore.NewBaseRepository[productDocument](provider, productsCollection),
		ingredients:  pfirestore.NewBaseRepository[ingredientDocument](provider, ingredientsCollection),
		coupons:      pfirestore.NewBaseRepository[couponDocument](provider, couponsCollection),
		customers:    pfirestore.NewBaseRepository[customerDocument](provider, customersCollection),
		orderTypes:   pfirestore.NewBaseRepository[namedDocument](provider, orderTypesCollection),
		paymentTypes: pfirestore.NewBaseRepository[namedDocument](provider, paymentTypesCollection),
		productTypes: pfirestore.NewBaseRepository[namedDocument](provider, productTypesCollection),
	}, nil
}

func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return domain.Product{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CatalogRepository) GetBaseIngredients(ctx context.Context, productID string) ([]domain.RecipeEntry, error) {
	doc, err := r.products.Get(ctx, productID)
	if err != nil {
		return nil, err
	}

	entries := make([]domain.RecipeEntry, 0, len(doc.Data.Recipe))
	for _, item := range doc.Data.Recipe {
		ingredientID := strings.TrimSpace(item.IngredientID)
		if ingredientID == "" {
			return nil, fmt.Errorf("product %s: recipe entry without ingredient id", productID)
		}
		ingredient, err := r.GetIngredient(ctx, ingredientID)
		if err != nil {
			return nil, err
		}
		entries = append(entries, domain.RecipeEntry{
			Ingredient: ingredient,
			Quantity:   item.Quantity,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Ingredient.Name < entries[j].Ingredient.Name
	})
	return entries, nil
}

func (r *CatalogRepository) GetIngredient(ctx context.Context, ingredientID string) (domain.Ingredient, error) {
	doc, err := r.ingredients.Get(ctx, ingredientID)
	if err != nil {
		return domain.Ingredient{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CatalogRepository) GetCoupon(ctx context.Context, couponID string) (domain.Coupon, error) {
	doc, err := r.coupons.Get(ctx, couponID)
	if err != nil {
		return domain.Coupon{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CatalogRepository) GetOrderType(ctx context.Context, orderTypeID string) (domain.OrderType, error) {
	doc, err := r.orderTypes.Get(ctx, orderTypeID)
	if err != nil {
		return domain.OrderType{}, err
	}
	return domain.OrderType{ID: doc.ID, Name: doc.Data.Name}, nil
}

func (r *CatalogRepository) GetPaymentType(ctx context.Context, paymentTypeID string) (domain.PaymentType, error) {
	doc, err := r.paymentTypes.Get(ctx, paymentTypeID)
	if err != nil {
		return domain.PaymentType{}, err
	}
	return domain.PaymentType{ID: doc.ID, Name: doc.Data.Name}, nil
}

func (r *CatalogRepository) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	doc, err := r.customers.Get(ctx, customerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return doc.Data.toDomain(doc.ID), nil
}

func (r *CatalogRepository) GetProductType(ctx context.Context, typeID string) (domain.ProductType, error) {
	doc, err := r.productTypes.Get(ctx, typeID)
	if err != nil {
		return domain.ProductType{}, err
	}
	return domain.ProductType{ID: doc.ID, Name: doc.Data.Name}, nil
}

func (r *CatalogRepository) ListProductTypes(ctx context.Context) ([]domain.ProductType, error) {
	docs, err := r.productTypes.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.OrderBy("name", firestore.Asc)
	})
	if err != nil {
		return nil, err
	}
	types := make([]domain.ProductType, 0, len(docs))
	for _, doc := range docs {
		types = append(types, domain.ProductType{ID: doc.ID, Name: doc.Data.Name})
	}
	return types, nil
}

func (r *CatalogRepository) ListProductsByType(ctx context.Context, typeID string) ([]domain.Product, error) {
	docs, err := r.products.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("typeId", "==", strings.TrimSpace(typeID))
	})
	if err != nil {
		return nil, err
	}
	products := make([]domain.Product, 0, len(docs))
	for _, doc := range docs {
		products = append(products, doc.Data.toDomain(doc.ID))
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

// Document types -------------------------------------------------------------

type recipeItemDocument struct {
	IngredientID string  `firestore:"ingredientId"`
	Quantity     float64 `firestore:"qty"`
}

type productDocument struct {
	TypeID      string               `firestore:"typeId"`
	Name        string               `firestore:"name"`
	Description string               `firestore:"description,omitempty"`
	BasePrice   int64                `firestore:"basePrice"`
	Available   bool                 `firestore:"available"`
	Recipe      []recipeItemDocument `firestore:"recipe,omitempty"`
}

func (d productDocument) toDomain(id string) domain.Product {
	return domain.Product{
		ID:          id,
		TypeID:      strings.TrimSpace(d.TypeID),
		Name:        strings.TrimSpace(d.Name),
		Description: strings.TrimSpace(d.Description),
		BasePrice:   d.BasePrice,
		Available:   d.Available,
	}
}

type ingredientDocument struct {
	Name      string    `firestore:"name"`
	Price     int64     `firestore:"price"`
	Unit      string    `firestore:"unit"`
	Stock     float64   `firestore:"stock"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

func (d ingredientDocument) toDomain(id string) domain.Ingredient {
	return domain.Ingredient{
		ID:        id,
		Name:      strings.TrimSpace(d.Name),
		Price:     d.Price,
		Unit:      strings.TrimSpace(d.Unit),
		Stock:     d.Stock,
		UpdatedAt: d.UpdatedAt,
	}
}

type couponDocument struct {
	DiscountPercent float64   `firestore:"discountPercent"`
	ExpiresAt       time.Time `firestore:"expiresAt"`
}

func (d couponDocument) toDomain(id string) domain.Coupon {
	return domain.Coupon{
		ID:              id,
		DiscountPercent: d.DiscountPercent,
		ExpiresAt:       d.ExpiresAt,
	}
}

type customerDocument struct {
	Name   string `firestore:"name"`
	Points int64  `firestore:"points"`
}

func (d customerDocument) toDomain(id string) domain.Customer {
	return domain.Customer{
		ID:     id,
		Name:   strings.TrimSpace(d.Name),
		Points: d.Points,
	}
}

type namedDocument struct {
	Name string `firestore:"name"`
}
