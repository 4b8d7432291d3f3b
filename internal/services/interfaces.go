package services

import (
	"context"
	"time"

	"github.com/raulos/kiosk-api/internal/domain"
)

// AdjustmentInput is a requested recipe change on one cart line. Quantity is
// a magnitude; Extra true adds the ingredient, false removes it.
type AdjustmentInput struct {
	IngredientID string
	Quantity     float64
	Extra        bool
}

// CartLineInput is one product occurrence requested by the kiosk.
type CartLineInput struct {
	ProductID   string
	Note        string
	Adjustments []AdjustmentInput
}

// PaymentInput identifies the tender settling the order.
type PaymentInput struct {
	PaymentTypeID string
	Description   string
}

// PlaceOrderCommand carries the raw order request. CustomerID and OrderTypeID
// fall back to configured defaults when empty.
type PlaceOrderCommand struct {
	CustomerID  string
	OrderTypeID string
	CouponID    string
	Lines       []CartLineInput
	Payment     PaymentInput
}

// OrderService prices, admits, and atomically commits kiosk orders.
type OrderService interface {
	PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// ProductDetail pairs a product with its resolved recipe.
type ProductDetail struct {
	Product domain.Product
	Recipe  []domain.RecipeEntry
}

// CatalogService exposes the read-only menu surface.
type CatalogService interface {
	ListProductTypes(ctx context.Context) ([]domain.ProductType, error)
	ListProducts(ctx context.Context, typeID string) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (ProductDetail, error)
}

// OrderPlacedEvent is emitted after a successful commit.
type OrderPlacedEvent struct {
	OrderID       string    `json:"orderId"`
	CustomerID    string    `json:"customerId"`
	OrderTypeID   string    `json:"orderTypeId"`
	Total         int64     `json:"total"`
	Discount      int64     `json:"discount"`
	PointsAwarded int64     `json:"pointsAwarded"`
	LineCount     int       `json:"lineCount"`
	PlacedAt      time.Time `json:"placedAt"`
}

// OrderEventPublisher notifies downstream consumers of committed orders.
// Publishing happens outside the commit transaction; failures are logged and
// never roll the order back.
type OrderEventPublisher interface {
	PublishOrderPlaced(ctx context.Context, event OrderPlacedEvent) error
}
