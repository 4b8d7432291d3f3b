package domain

import "time"

// OrderStatus enumerates the lifecycle states persisted on an order.
type OrderStatus string

const (
	// OrderStatusPlaced is the initial status of every committed order.
	OrderStatusPlaced OrderStatus = "placed"
)

// ProductType groups products for the kiosk menu screens.
type ProductType struct {
	ID   string
	Name string
}

// Product is a sellable menu entry with a fixed base price and recipe.
// Products are immutable for the duration of an order attempt.
type Product struct {
	ID          string
	TypeID      string
	Name        string
	Description string
	BasePrice   int64
	Available   bool
}

// Ingredient is a stocked raw material. Stock is the only mutable field and
// is updated exclusively inside the order commit transaction.
type Ingredient struct {
	ID        string
	Name      string
	Price     int64
	Unit      string
	Stock     float64
	UpdatedAt time.Time
}

// RecipeEntry binds an ingredient to the quantity a product consumes by default.
type RecipeEntry struct {
	Ingredient Ingredient
	Quantity   float64
}

// IngredientAdjustment is a customer-requested change to a line's recipe.
// Quantity is always a non-negative magnitude; Extra decides the sign.
type IngredientAdjustment struct {
	IngredientID string
	Quantity     float64
	Extra        bool
}

// CartLine is one requested product occurrence within a cart.
type CartLine struct {
	ProductID   string
	Note        string
	Adjustments []IngredientAdjustment
}

// Coupon grants a percentage discount and is consumed by exactly one order.
type Coupon struct {
	ID              string
	DiscountPercent float64
	ExpiresAt       time.Time
}

// Customer accumulates loyalty points. The walk-in sentinel customer is
// exempt from accrual.
type Customer struct {
	ID     string
	Name   string
	Points int64
}

// OrderType distinguishes dine-in, take-away, and similar fulfilment modes.
type OrderType struct {
	ID   string
	Name string
}

// PaymentType identifies the tender used to settle an order.
type PaymentType struct {
	ID   string
	Name string
}

// ExtraEntry records one ingredient adjustment persisted under a line item.
// UnitPrice is captured at commit time; non-extra entries carry a zero charge.
type ExtraEntry struct {
	IngredientID string
	Quantity     float64
	Extra        bool
	UnitPrice    int64
}

// LineItem is one priced product occurrence owned by an order.
type LineItem struct {
	ID        string
	ProductID string
	Subtotal  int64
	Note      string
	Extras    []ExtraEntry
}

// Payment settles an order in full. Every order owns exactly one payment.
type Payment struct {
	ID            string
	PaymentTypeID string
	Amount        int64
	Description   string
}

// Order is the aggregate root created atomically by the commit transaction.
type Order struct {
	ID            string
	PlacedAt      time.Time
	Status        OrderStatus
	Total         int64
	Discount      int64
	CustomerID    string
	OrderTypeID   string
	CouponID      string
	PointsAwarded int64
	Lines         []LineItem
	Payment       Payment
}

// PricedLine is the aggregation result for a single cart line: the resolved
// product, its billed subtotal, and the resolved recipe and adjustments that
// drive the per-line stock movements.
type PricedLine struct {
	Product  Product
	Subtotal int64
	Note     string
	Recipe   []RecipeEntry
	Extras   []ExtraEntry
}
