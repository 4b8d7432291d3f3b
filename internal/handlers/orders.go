package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/raulos/kiosk-api/internal/domain"
	"github.com/raulos/kiosk-api/internal/platform/httpx"
	"github.com/raulos/kiosk-api/internal/services"
)

const maxOrderBodySize = 64 * 1024

type adjustmentPayload struct {
	IngredientID flexID  `json:"ingredientId"`
	Quantity     float64 `json:"quantity"`
	IsExtra      bool    `json:"isExtra"`
}

type orderLinePayload struct {
	ProductID   flexID              `json:"productId"`
	Note        string              `json:"note"`
	Adjustments []adjustmentPayload `json:"adjustments"`
}

type paymentPayload struct {
	PaymentTypeID flexID `json:"paymentTypeId"`
	Description   string `json:"description"`
}

type placeOrderRequest struct {
	CustomerID  flexID             `json:"customerId"`
	OrderTypeID flexID             `json:"orderTypeId"`
	CouponID    flexID             `json:"couponId"`
	Lines       []orderLinePayload `json:"lines"`
	Payment     paymentPayload     `json:"payment"`
}

type extraResponse struct {
	IngredientID string  `json:"ingredientId"`
	Quantity     float64 `json:"quantity"`
	IsExtra      bool    `json:"isExtra"`
	UnitPrice    int64   `json:"unitPrice"`
}

type lineItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"productId"`
	Subtotal  int64           `json:"subtotal"`
	Note      string          `json:"note,omitempty"`
	Extras    []extraResponse `json:"extras,omitempty"`
}

type paymentResponse struct {
	ID            string `json:"id"`
	PaymentTypeID string `json:"paymentTypeId"`
	Amount        int64  `json:"amount"`
	Description   string `json:"description,omitempty"`
}

type orderResponse struct {
	ID            string             `json:"id"`
	Status        string             `json:"status"`
	PlacedAt      time.Time          `json:"placedAt"`
	Total         int64              `json:"total"`
	Discount      int64              `json:"discount"`
	CustomerID    string             `json:"customerId"`
	OrderTypeID   string             `json:"orderTypeId"`
	CouponID      string             `json:"couponId,omitempty"`
	PointsAwarded int64              `json:"pointsAwarded"`
	Lines         []lineItemResponse `json:"lines"`
	Payment       paymentResponse    `json:"payment"`
}

// OrderHandlers exposes the order placement and lookup endpoints.
type OrderHandlers struct {
	orders services.OrderService
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService) *OrderHandlers {
	return &OrderHandlers{orders: orders}
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/", h.placeOrder)
	r.Get("/{orderID}", h.getOrder)
}

func (h *OrderHandlers) placeOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var payload placeOrderRequest
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxOrderBodySize))
	if err := decoder.Decode(&payload); err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "request body must be valid JSON", http.StatusBadRequest))
		return
	}

	cmd := services.PlaceOrderCommand{
		CustomerID:  payload.CustomerID.String(),
		OrderTypeID: payload.OrderTypeID.String(),
		CouponID:    payload.CouponID.String(),
		Payment: services.PaymentInput{
			PaymentTypeID: payload.Payment.PaymentTypeID.String(),
			Description:   strings.TrimSpace(payload.Payment.Description),
		},
	}
	for _, line := range payload.Lines {
		input := services.CartLineInput{
			ProductID: line.ProductID.String(),
			Note:      strings.TrimSpace(line.Note),
		}
		for _, adj := range line.Adjustments {
			input.Adjustments = append(input.Adjustments, services.AdjustmentInput{
				IngredientID: adj.IngredientID.String(),
				Quantity:     adj.Quantity,
				Extra:        adj.IsExtra,
			})
		}
		cmd.Lines = append(cmd.Lines, input)
	}

	order, err := h.orders.PlaceOrder(ctx, cmd)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusCreated, buildOrderResponse(order))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeOrderError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderResponse(order))
}

func buildOrderResponse(order domain.Order) orderResponse {
	lines := make([]lineItemResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		item := lineItemResponse{
			ID:        line.ID,
			ProductID: line.ProductID,
			Subtotal:  line.Subtotal,
			Note:      line.Note,
		}
		for _, extra := range line.Extras {
			item.Extras = append(item.Extras, extraResponse{
				IngredientID: extra.IngredientID,
				Quantity:     extra.Quantity,
				IsExtra:      extra.Extra,
				UnitPrice:    extra.UnitPrice,
			})
		}
		lines = append(lines, item)
	}

	return orderResponse{
		ID:            order.ID,
		Status:        string(order.Status),
		PlacedAt:      order.PlacedAt,
		Total:         order.Total,
		Discount:      order.Discount,
		CustomerID:    order.CustomerID,
		OrderTypeID:   order.OrderTypeID,
		CouponID:      order.CouponID,
		PointsAwarded: order.PointsAwarded,
		Lines:         lines,
		Payment: paymentResponse{
			ID:            order.Payment.ID,
			PaymentTypeID: order.Payment.PaymentTypeID,
			Amount:        order.Payment.Amount,
			Description:   order.Payment.Description,
		},
	}
}

func writeOrderError(ctx context.Context, w http.ResponseWriter, err error) {
	var shortage *services.StockShortageError
	if errors.As(err, &shortage) {
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", shortage.Error(), http.StatusConflict).
			WithDetails(map[string]any{
				"ingredientId": shortage.IngredientID,
				"ingredient":   shortage.Ingredient,
				"unit":         shortage.Unit,
				"required":     shortage.Required,
				"available":    shortage.Available,
			}))
		return
	}

	switch {
	case errors.Is(err, services.ErrOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderProductUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("product_unavailable", err.Error(), http.StatusUnprocessableEntity))
	case errors.Is(err, services.ErrOrderReferenceNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("reference_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderInsufficientStock):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderCouponInvalid):
		httpx.WriteError(ctx, w, httpx.NewError("coupon_invalid_or_expired", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("transient_conflict", "order could not be committed, retry the request", http.StatusServiceUnavailable))
	case errors.Is(err, services.ErrOrderUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("storage_unavailable", "order storage unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("order_commit_failed", "order could not be placed", http.StatusInternalServerError))
	}
}
