package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/raulos/kiosk-api/internal/domain"
	"github.com/raulos/kiosk-api/internal/platform/config"
	"github.com/raulos/kiosk-api/internal/repositories"
)

// Order placement failure modes. Handlers map these onto HTTP statuses.
var (
	ErrOrderInvalidInput       = errors.New("orders: invalid input")
	ErrOrderReferenceNotFound  = errors.New("orders: referenced entity not found")
	ErrOrderProductUnavailable = errors.New("orders: product unavailable")
	ErrOrderInsufficientStock  = errors.New("orders: insufficient stock")
	ErrOrderCouponInvalid      = errors.New("orders: coupon invalid or expired")
	ErrOrderConflict           = errors.New("orders: concurrent commit conflict")
	ErrOrderUnavailable        = errors.New("orders: storage unavailable")
	ErrOrderNotFound           = errors.New("orders: order not found")
)

// StockShortageError reports which ingredient blocked admission. It unwraps
// to ErrOrderInsufficientStock so callers can match either way.
type StockShortageError struct {
	IngredientID string
	Ingredient   string
	Unit         string
	Required     float64
	Available    float64
}

func (e *StockShortageError) Error() string {
	return fmt.Sprintf("orders: insufficient stock for %s: required %g %s, available %g %s",
		e.Ingredient, e.Required, e.Unit, e.Available, e.Unit)
}

func (e *StockShortageError) Unwrap() error {
	return ErrOrderInsufficientStock
}

// OrderServiceDeps wires the order service dependencies.
type OrderServiceDeps struct {
	Catalog   repositories.CatalogRepository
	Orders    repositories.OrderRepository
	Publisher OrderEventPublisher
	Config    config.OrdersConfig
	Clock     func() time.Time
	NewID     func(prefix string, now time.Time) string
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	catalog   repositories.CatalogRepository
	orders    repositories.OrderRepository
	publisher OrderEventPublisher
	cfg       config.OrdersConfig
	clock     func() time.Time
	newID     func(prefix string, now time.Time) string
	logger    func(ctx context.Context, event string, fields map[string]any)
}

// NewOrderService constructs the order placement service.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Catalog == nil {
		return nil, errors.New("order service requires catalog repository")
	}
	if deps.Orders == nil {
		return nil, errors.New("order service requires order repository")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	newID := deps.NewID
	if newID == nil {
		newID = generateID
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	cfg := deps.Config
	if cfg.WalkInCustomerID == "" {
		cfg.WalkInCustomerID = "1"
	}
	if cfg.DefaultOrderTypeID == "" {
		cfg.DefaultOrderTypeID = "1"
	}
	if cfg.LoyaltyRatePercent <= 0 {
		cfg.LoyaltyRatePercent = 10
	}

	return &orderService{
		catalog:   deps.Catalog,
		orders:    deps.Orders,
		publisher: deps.Publisher,
		cfg:       cfg,
		clock:     func() time.Time { return clock().UTC() },
		newID:     newID,
		logger:    logger,
	}, nil
}

// PlaceOrder aggregates demand across the cart, prices every line, applies
// coupon and loyalty rules, and commits the whole order atomically.
func (s *orderService) PlaceOrder(ctx context.Context, cmd PlaceOrderCommand) (domain.Order, error) {
	if err := validatePlaceOrder(cmd); err != nil {
		return domain.Order{}, err
	}

	now := s.clock()
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		customerID = s.cfg.WalkInCustomerID
	}
	orderTypeID := strings.TrimSpace(cmd.OrderTypeID)
	if orderTypeID == "" {
		orderTypeID = s.cfg.DefaultOrderTypeID
	}
	couponID := strings.TrimSpace(cmd.CouponID)

	demand := domain.NewDemandLedger()
	priced := make([]domain.PricedLine, 0, len(cmd.Lines))
	var total int64

	for i, input := range cmd.Lines {
		line, err := s.priceLine(ctx, input)
		if err != nil {
			return domain.Order{}, fmt.Errorf("line %d: %w", i, err)
		}
		demand.FoldLine(line)
		total += line.Subtotal
		priced = append(priced, line)
	}

	var discount int64
	if couponID != "" {
		coupon, err := s.catalog.GetCoupon(ctx, couponID)
		if err != nil {
			if isNotFound(err) {
				return domain.Order{}, fmt.Errorf("coupon %s: %w", couponID, ErrOrderCouponInvalid)
			}
			return domain.Order{}, s.storageError("coupon lookup", err)
		}
		if !coupon.ExpiresAt.After(now) {
			return domain.Order{}, fmt.Errorf("coupon %s: %w", couponID, ErrOrderCouponInvalid)
		}
		discount = roundMoney(float64(total) * coupon.DiscountPercent / 100)
		if discount > total {
			discount = total
		}
		total -= discount
	}

	// Loyalty accrues only on coupon-free orders from registered customers.
	var points int64
	if couponID == "" && customerID != s.cfg.WalkInCustomerID {
		points = total * int64(s.cfg.LoyaltyRatePercent) / 100
	}

	req := repositories.OrderCommitRequest{
		OrderID:            s.newID("ord", now),
		PaymentID:          s.newID("pay", now),
		CustomerID:         customerID,
		OrderTypeID:        orderTypeID,
		PaymentTypeID:      strings.TrimSpace(cmd.Payment.PaymentTypeID),
		CouponID:           couponID,
		PaymentDescription: strings.TrimSpace(cmd.Payment.Description),
		Total:              total,
		Discount:           discount,
		LoyaltyPoints:      points,
		Demand:             demand,
		Now:                now,
	}
	for _, line := range priced {
		req.Lines = append(req.Lines, repositories.OrderCommitLine{
			LineItemID: s.newID("li", now),
			ProductID:  line.Product.ID,
			Subtotal:   line.Subtotal,
			Note:       line.Note,
			Recipe:     line.Recipe,
			Extras:     line.Extras,
		})
	}

	result, err := s.orders.CommitOrder(ctx, req)
	if err != nil {
		return domain.Order{}, s.mapCommitError(err)
	}
	order := result.Order

	s.logger(ctx, "order_placed", map[string]any{
		"order_id":       order.ID,
		"customer_id":    order.CustomerID,
		"total":          order.Total,
		"discount":       order.Discount,
		"points_awarded": order.PointsAwarded,
		"lines":          len(order.Lines),
		"coupon_used":    order.CouponID != "",
	})

	if s.publisher != nil {
		event := OrderPlacedEvent{
			OrderID:       order.ID,
			CustomerID:    order.CustomerID,
			OrderTypeID:   order.OrderTypeID,
			Total:         order.Total,
			Discount:      order.Discount,
			PointsAwarded: order.PointsAwarded,
			LineCount:     len(order.Lines),
			PlacedAt:      order.PlacedAt,
		}
		if err := s.publisher.PublishOrderPlaced(ctx, event); err != nil {
			s.logger(ctx, "order_event_publish_failed", map[string]any{
				"order_id": order.ID,
				"error":    err.Error(),
			})
		}
	}

	return order, nil
}

// GetOrder loads a committed order by ID.
func (s *orderService) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, fmt.Errorf("order id is required: %w", ErrOrderInvalidInput)
	}

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		var orderErr *repositories.OrderError
		if errors.As(err, &orderErr) && orderErr.Code == repositories.OrderErrorNotFound {
			return domain.Order{}, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
		}
		if isNotFound(err) {
			return domain.Order{}, fmt.Errorf("order %s: %w", orderID, ErrOrderNotFound)
		}
		return domain.Order{}, s.storageError("order lookup", err)
	}
	return order, nil
}

// priceLine resolves one cart line: the product, its recipe, and every
// adjustment, returning the billed subtotal and the resolved stock movements.
func (s *orderService) priceLine(ctx context.Context, input CartLineInput) (domain.PricedLine, error) {
	productID := strings.TrimSpace(input.ProductID)

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return domain.PricedLine{}, fmt.Errorf("product %s: %w", productID, ErrOrderProductUnavailable)
		}
		return domain.PricedLine{}, s.storageError("product lookup", err)
	}
	if !product.Available {
		return domain.PricedLine{}, fmt.Errorf("product %s: %w", productID, ErrOrderProductUnavailable)
	}

	recipe, err := s.catalog.GetBaseIngredients(ctx, productID)
	if err != nil {
		if isNotFound(err) {
			return domain.PricedLine{}, fmt.Errorf("product %s recipe: %w", productID, ErrOrderReferenceNotFound)
		}
		return domain.PricedLine{}, s.storageError("recipe lookup", err)
	}

	subtotal := product.BasePrice
	extras := make([]domain.ExtraEntry, 0, len(input.Adjustments))
	for _, adj := range input.Adjustments {
		ingredientID := strings.TrimSpace(adj.IngredientID)
		ingredient, err := s.catalog.GetIngredient(ctx, ingredientID)
		if err != nil {
			if isNotFound(err) {
				return domain.PricedLine{}, fmt.Errorf("ingredient %s: %w", ingredientID, ErrOrderReferenceNotFound)
			}
			return domain.PricedLine{}, s.storageError("ingredient lookup", err)
		}

		entry := domain.ExtraEntry{
			IngredientID: ingredient.ID,
			Quantity:     adj.Quantity,
			Extra:        adj.Extra,
		}
		if adj.Extra {
			entry.UnitPrice = ingredient.Price
			subtotal += roundMoney(float64(ingredient.Price) * adj.Quantity)
		}
		extras = append(extras, entry)
	}
	if len(extras) == 0 {
		extras = nil
	}

	return domain.PricedLine{
		Product:  product,
		Subtotal: subtotal,
		Note:     strings.TrimSpace(input.Note),
		Recipe:   recipe,
		Extras:   extras,
	}, nil
}

func (s *orderService) mapCommitError(err error) error {
	var orderErr *repositories.OrderError
	if errors.As(err, &orderErr) {
		switch orderErr.Code {
		case repositories.OrderErrorReferenceNotFound:
			return fmt.Errorf("%s %s: %w", orderErr.Entity, orderErr.EntityID, ErrOrderReferenceNotFound)
		case repositories.OrderErrorInsufficientStock:
			if detail := orderErr.StockDetail; detail != nil {
				return &StockShortageError{
					IngredientID: detail.IngredientID,
					Ingredient:   detail.Ingredient,
					Unit:         detail.Unit,
					Required:     detail.Required,
					Available:    detail.Available,
				}
			}
			return ErrOrderInsufficientStock
		case repositories.OrderErrorCouponInvalid:
			return fmt.Errorf("%s: %w", orderErr.Message, ErrOrderCouponInvalid)
		default:
			return fmt.Errorf("order commit: %w", err)
		}
	}
	return s.storageError("order commit", err)
}

func (s *orderService) storageError(op string, err error) error {
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsConflict():
			return fmt.Errorf("%s: %w", op, ErrOrderConflict)
		case repoErr.IsUnavailable():
			return fmt.Errorf("%s: %w", op, ErrOrderUnavailable)
		case repoErr.IsNotFound():
			return fmt.Errorf("%s: %w", op, ErrOrderReferenceNotFound)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}

func validatePlaceOrder(cmd PlaceOrderCommand) error {
	if len(cmd.Lines) == 0 {
		return fmt.Errorf("order requires at least one line: %w", ErrOrderInvalidInput)
	}
	if strings.TrimSpace(cmd.Payment.PaymentTypeID) == "" {
		return fmt.Errorf("payment type is required: %w", ErrOrderInvalidInput)
	}
	for i, line := range cmd.Lines {
		if strings.TrimSpace(line.ProductID) == "" {
			return fmt.Errorf("line %d: product id is required: %w", i, ErrOrderInvalidInput)
		}
		for j, adj := range line.Adjustments {
			if strings.TrimSpace(adj.IngredientID) == "" {
				return fmt.Errorf("line %d adjustment %d: ingredient id is required: %w", i, j, ErrOrderInvalidInput)
			}
			if adj.Quantity <= 0 || math.IsNaN(adj.Quantity) || math.IsInf(adj.Quantity, 0) {
				return fmt.Errorf("line %d adjustment %d: quantity must be positive: %w", i, j, ErrOrderInvalidInput)
			}
		}
	}
	return nil
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func roundMoney(amount float64) int64 {
	return int64(math.Round(amount))
}

func generateID(prefix string, now time.Time) string {
	return prefix + "_" + ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String()
}
