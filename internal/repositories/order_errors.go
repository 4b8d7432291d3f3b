package repositories

import "fmt"

// OrderErrorCode enumerates repository error causes for order commit operations.
type OrderErrorCode string

const (
	// OrderErrorUnknown represents an unspecified failure.
	OrderErrorUnknown OrderErrorCode = "order_unknown"
	// OrderErrorReferenceNotFound indicates a referenced entity row is missing.
	OrderErrorReferenceNotFound OrderErrorCode = "order_reference_not_found"
	// OrderErrorInsufficientStock indicates net ingredient demand exceeds current stock.
	OrderErrorInsufficientStock OrderErrorCode = "order_insufficient_stock"
	// OrderErrorCouponInvalid indicates the coupon is missing, expired, or already consumed.
	OrderErrorCouponInvalid OrderErrorCode = "order_coupon_invalid"
	// OrderErrorNotFound indicates the order document is missing.
	OrderErrorNotFound OrderErrorCode = "order_not_found"
)

// OrderError wraps order-commit failures with machine readable codes.
type OrderError struct {
	Op      string
	Code    OrderErrorCode
	Message string
	Err     error

	// Entity and EntityID name the missing reference for OrderErrorReferenceNotFound.
	Entity   string
	EntityID string

	// StockDetail carries admission-control specifics for OrderErrorInsufficientStock.
	StockDetail *StockShortage
}

// StockShortage names the ingredient whose stock cannot cover net demand.
type StockShortage struct {
	IngredientID string
	Ingredient   string
	Unit         string
	Required     float64
	Available    float64
}

// Error implements the error interface.
func (e *OrderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *OrderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewOrderError constructs a typed order error.
func NewOrderError(code OrderErrorCode, message string, err error) *OrderError {
	if message == "" {
		message = string(code)
	}
	return &OrderError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewOrderReferenceError constructs a reference-not-found error naming the entity.
func NewOrderReferenceError(entity, entityID string) *OrderError {
	err := NewOrderError(OrderErrorReferenceNotFound, fmt.Sprintf("%s %s not found", entity, entityID), nil)
	err.Entity = entity
	err.EntityID = entityID
	return err
}

// NewStockShortageError constructs an insufficient-stock error carrying the
// required and available quantities for the exhausted ingredient.
func NewStockShortageError(shortage StockShortage) *OrderError {
	err := NewOrderError(OrderErrorInsufficientStock,
		fmt.Sprintf("insufficient stock for %s: required %g %s, available %g %s",
			shortage.Ingredient, shortage.Required, shortage.Unit, shortage.Available, shortage.Unit),
		nil)
	err.StockDetail = &shortage
	return err
}
