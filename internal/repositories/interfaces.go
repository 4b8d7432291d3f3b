package repositories

import (
	"context"
	"time"

	"github.com/raulos/kiosk-api/internal/domain"
)

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// CatalogRepository resolves catalog entities by identifier. All operations
// are read-only with no side effects.
type CatalogRepository interface {
	// GetProduct returns the product regardless of availability; callers
	// decide how an unavailable product surfaces.
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	// GetBaseIngredients resolves the product's predefined recipe with full
	// ingredient details, ordered by ingredient name.
	GetBaseIngredients(ctx context.Context, productID string) ([]domain.RecipeEntry, error)
	GetIngredient(ctx context.Context, ingredientID string) (domain.Ingredient, error)
	GetCoupon(ctx context.Context, couponID string) (domain.Coupon, error)
	GetOrderType(ctx context.Context, orderTypeID string) (domain.OrderType, error)
	GetPaymentType(ctx context.Context, paymentTypeID string) (domain.PaymentType, error)
	GetCustomer(ctx context.Context, customerID string) (domain.Customer, error)
	GetProductType(ctx context.Context, typeID string) (domain.ProductType, error)
	ListProductTypes(ctx context.Context) ([]domain.ProductType, error)
	ListProductsByType(ctx context.Context, typeID string) ([]domain.Product, error)
}

// OrderCommitLine is one priced line of the order to persist, together with
// the recipe quantities and adjustments that drive its stock movements.
type OrderCommitLine struct {
	LineItemID string
	ProductID  string
	Subtotal   int64
	Note       string
	Recipe     []domain.RecipeEntry
	Extras     []domain.ExtraEntry
}

// OrderCommitRequest carries the validated inputs of one commit attempt.
// Identifiers are pre-generated by the caller so the request is replay-stable
// across transaction retries.
type OrderCommitRequest struct {
	OrderID   string
	PaymentID string

	CustomerID    string
	OrderTypeID   string
	PaymentTypeID string
	CouponID      string

	PaymentDescription string

	Total    int64
	Discount int64
	// LoyaltyPoints is zero when no points are awarded (coupon used or
	// walk-in customer); the repository applies it blindly.
	LoyaltyPoints int64

	Demand domain.DemandLedger
	Lines  []OrderCommitLine

	Now time.Time
}

// OrderCommitResult returns the fully materialised aggregate after commit.
type OrderCommitResult struct {
	Order domain.Order
}

// OrderRepository performs the atomic order write and order reads.
type OrderRepository interface {
	// CommitOrder runs admission control and the multi-entity write as a
	// single atomic unit: on any failure nothing is persisted.
	CommitOrder(ctx context.Context, req OrderCommitRequest) (OrderCommitResult, error)
	// GetOrder loads a committed order aggregate with its line items.
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}
