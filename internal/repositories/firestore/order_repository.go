package firestore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"

	"github.com/raulos/kiosk-api/internal/domain"
	pfirestore "github.com/raulos/kiosk-api/internal/platform/firestore"
	"github.com/raulos/kiosk-api/internal/repositories"
)

const (
	ordersCollection    = "orders"
	paymentsCollection  = "payments"
	lineItemsCollection = "lineItems"
)

// OrderRepository persists order aggregates in Firestore. The commit path is
// a single serializable transaction: reference checks, stock admission, the
// order/payment/line writes, stock decrements, coupon consumption, and the
// loyalty update all succeed or fail together.
type OrderRepository struct {
	provider *pfirestore.Provider
	clock    func() time.Time
}

// OrderRepositoryOption customises the repository behaviour.
type OrderRepositoryOption func(*OrderRepository)

// WithOrderClock overrides the time source used for in-transaction checks.
func WithOrderClock(clock func() time.Time) OrderRepositoryOption {
	return func(r *OrderRepository) {
		if clock != nil {
			r.clock = clock
		}
	}
}

// NewOrderRepository constructs an OrderRepository backed by the provider.
func NewOrderRepository(provider *pfirestore.Provider, opts ...OrderRepositoryOption) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	repo := &OrderRepository{
		provider: provider,
		clock:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(repo)
		}
	}
	return repo, nil
}

// CommitOrder runs the atomic order write. All documents named by the request
// are read first, admission control is evaluated against the snapshot, and
// only then are the writes enqueued; Firestore aborts and retries on any
// concurrent modification of the documents read.
func (r *OrderRepository) CommitOrder(ctx context.Context, req repositories.OrderCommitRequest) (repositories.OrderCommitResult, error) {
	if err := validateCommitRequest(req); err != nil {
		return repositories.OrderCommitResult{}, err
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return repositories.OrderCommitResult{}, err
	}

	now := req.Now
	if now.IsZero() {
		now = r.clock()
	}
	now = now.UTC()

	var committed domain.Order

	txErr := pfirestore.RunTransaction(ctx, client, func(ctx context.Context, tx *firestore.Transaction) error {
		// Reads must all happen before the first write.
		customer, err := readCustomer(tx, client, req.CustomerID)
		if err != nil {
			return err
		}
		if err := requireDocument(tx, client.Collection(orderTypesCollection).Doc(req.OrderTypeID), "order type", req.OrderTypeID); err != nil {
			return err
		}
		if err := requireDocument(tx, client.Collection(paymentTypesCollection).Doc(req.PaymentTypeID), "payment type", req.PaymentTypeID); err != nil {
			return err
		}

		// Expiry is re-evaluated against a fresh clock reading: the request
		// timestamp predates aggregation and transaction retries, so a coupon
		// expiring in between must still be caught here.
		var couponRef *firestore.DocumentRef
		if req.CouponID != "" {
			couponRef = client.Collection(couponsCollection).Doc(req.CouponID)
			if err := readCoupon(tx, couponRef, req.CouponID, r.clock().UTC()); err != nil {
				return err
			}
		}

		stock, err := admitStock(tx, client, req.Demand)
		if err != nil {
			return err
		}

		// Admission passed: enqueue every write.
		orderRef := client.Collection(ordersCollection).Doc(req.OrderID)
		paymentRef := client.Collection(paymentsCollection).Doc(req.PaymentID)

		orderDoc := orderDocument{
			PlacedAt:      now,
			Status:        string(domain.OrderStatusPlaced),
			Total:         req.Total,
			Discount:      req.Discount,
			CustomerID:    req.CustomerID,
			OrderTypeID:   req.OrderTypeID,
			CouponID:      req.CouponID,
			PointsAwarded: req.LoyaltyPoints,
			PaymentID:     req.PaymentID,
		}
		if err := tx.Create(orderRef, orderDoc); err != nil {
			return pfirestore.WrapError("orders.create", err)
		}

		paymentDoc := paymentDocument{
			OrderID:       req.OrderID,
			PaymentTypeID: req.PaymentTypeID,
			Amount:        req.Total,
			Description:   req.PaymentDescription,
			CreatedAt:     now,
		}
		if err := tx.Create(paymentRef, paymentDoc); err != nil {
			return pfirestore.WrapError("payments.create", err)
		}

		lines := make([]domain.LineItem, 0, len(req.Lines))
		for _, line := range req.Lines {
			lineRef := orderRef.Collection(lineItemsCollection).Doc(line.LineItemID)
			doc := lineItemDocument{
				ProductID: line.ProductID,
				Subtotal:  line.Subtotal,
				Note:      line.Note,
				Extras:    encodeExtras(line.Extras),
				CreatedAt: now,
			}
			if err := tx.Create(lineRef, doc); err != nil {
				return pfirestore.WrapError("lineItems.create", err)
			}
			lines = append(lines, domain.LineItem{
				ID:        line.LineItemID,
				ProductID: line.ProductID,
				Subtotal:  line.Subtotal,
				Note:      line.Note,
				Extras:    line.Extras,
			})
		}

		// One stock write per ingredient, carrying the order's whole net effect.
		for _, ingredientID := range req.Demand.IngredientIDs() {
			ref := client.Collection(ingredientsCollection).Doc(ingredientID)
			updates := []firestore.Update{
				{Path: "stock", Value: stock[ingredientID] - req.Demand.Net(ingredientID)},
				{Path: "updatedAt", Value: now},
			}
			if err := tx.Update(ref, updates); err != nil {
				return pfirestore.WrapError("ingredients.update", err)
			}
		}

		if couponRef != nil {
			// Single use: the delete conflicts with any concurrent consumer,
			// so exactly one transaction wins.
			if err := tx.Delete(couponRef, firestore.Exists); err != nil {
				return pfirestore.WrapError("coupons.delete", err)
			}
		}

		if req.LoyaltyPoints > 0 {
			customerRef := client.Collection(customersCollection).Doc(req.CustomerID)
			updates := []firestore.Update{
				{Path: "points", Value: customer.Points + req.LoyaltyPoints},
			}
			if err := tx.Update(customerRef, updates); err != nil {
				return pfirestore.WrapError("customers.update", err)
			}
		}

		committed = domain.Order{
			ID:            req.OrderID,
			PlacedAt:      now,
			Status:        domain.OrderStatusPlaced,
			Total:         req.Total,
			Discount:      req.Discount,
			CustomerID:    req.CustomerID,
			OrderTypeID:   req.OrderTypeID,
			CouponID:      req.CouponID,
			PointsAwarded: req.LoyaltyPoints,
			Lines:         lines,
			Payment: domain.Payment{
				ID:            req.PaymentID,
				PaymentTypeID: req.PaymentTypeID,
				Amount:        req.Total,
				Description:   req.PaymentDescription,
			},
		}
		return nil
	})
	if txErr != nil {
		var orderErr *repositories.OrderError
		if errors.As(txErr, &orderErr) {
			return repositories.OrderCommitResult{}, orderErr
		}
		return repositories.OrderCommitResult{}, txErr
	}
	return repositories.OrderCommitResult{Order: committed}, nil
}

// GetOrder loads a committed order aggregate, including payment and line items.
func (r *OrderRepository) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	if strings.TrimSpace(orderID) == "" {
		return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound, "order id is required", nil)
	}

	client, err := r.provider.Client(ctx)
	if err != nil {
		return domain.Order{}, err
	}

	orderRef := client.Collection(ordersCollection).Doc(orderID)
	snapshot, err := orderRef.Get(ctx)
	if err != nil {
		wrapped := pfirestore.WrapError("orders.get", err)
		if notFound(wrapped) {
			return domain.Order{}, repositories.NewOrderError(repositories.OrderErrorNotFound,
				fmt.Sprintf("order %s not found", orderID), wrapped)
		}
		return domain.Order{}, wrapped
	}

	var orderDoc orderDocument
	if err := snapshot.DataTo(&orderDoc); err != nil {
		return domain.Order{}, fmt.Errorf("firestore: decode order %s: %w", orderID, err)
	}

	order := orderDoc.toDomain(orderID)

	if orderDoc.PaymentID != "" {
		paymentSnap, err := client.Collection(paymentsCollection).Doc(orderDoc.PaymentID).Get(ctx)
		if err != nil {
			return domain.Order{}, pfirestore.WrapError("payments.get", err)
		}
		var paymentDoc paymentDocument
		if err := paymentSnap.DataTo(&paymentDoc); err != nil {
			return domain.Order{}, fmt.Errorf("firestore: decode payment %s: %w", orderDoc.PaymentID, err)
		}
		order.Payment = paymentDoc.toDomain(orderDoc.PaymentID)
	}

	iter := orderRef.Collection(lineItemsCollection).Documents(ctx)
	defer iter.Stop()
	for {
		lineSnap, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return domain.Order{}, pfirestore.WrapError("lineItems.query", err)
		}
		var lineDoc lineItemDocument
		if err := lineSnap.DataTo(&lineDoc); err != nil {
			return domain.Order{}, fmt.Errorf("firestore: decode line item %s: %w", lineSnap.Ref.ID, err)
		}
		order.Lines = append(order.Lines, lineDoc.toDomain(lineSnap.Ref.ID))
	}
	sort.Slice(order.Lines, func(i, j int) bool { return order.Lines[i].ID < order.Lines[j].ID })

	return order, nil
}

func validateCommitRequest(req repositories.OrderCommitRequest) error {
	switch {
	case strings.TrimSpace(req.OrderID) == "":
		return repositories.NewOrderError(repositories.OrderErrorUnknown, "order id is required", nil)
	case strings.TrimSpace(req.PaymentID) == "":
		return repositories.NewOrderError(repositories.OrderErrorUnknown, "payment id is required", nil)
	case strings.TrimSpace(req.CustomerID) == "":
		return repositories.NewOrderError(repositories.OrderErrorUnknown, "customer id is required", nil)
	case strings.TrimSpace(req.OrderTypeID) == "":
		return repositories.NewOrderError(repositories.OrderErrorUnknown, "order type id is required", nil)
	case strings.TrimSpace(req.PaymentTypeID) == "":
		return repositories.NewOrderError(repositories.OrderErrorUnknown, "payment type id is required", nil)
	case len(req.Lines) == 0:
		return repositories.NewOrderError(repositories.OrderErrorUnknown, "at least one line is required", nil)
	}
	return nil
}

func readCustomer(tx *firestore.Transaction, client *firestore.Client, customerID string) (domain.Customer, error) {
	snap, err := tx.Get(client.Collection(customersCollection).Doc(customerID))
	if err != nil {
		wrapped := pfirestore.WrapError("customers.get", err)
		if notFound(wrapped) {
			return domain.Customer{}, repositories.NewOrderReferenceError("customer", customerID)
		}
		return domain.Customer{}, wrapped
	}
	var doc customerDocument
	if err := snap.DataTo(&doc); err != nil {
		return domain.Customer{}, fmt.Errorf("firestore: decode customer %s: %w", customerID, err)
	}
	return doc.toDomain(customerID), nil
}

func requireDocument(tx *firestore.Transaction, ref *firestore.DocumentRef, entity, entityID string) error {
	if _, err := tx.Get(ref); err != nil {
		wrapped := pfirestore.WrapError(ref.Parent.ID+".get", err)
		if notFound(wrapped) {
			return repositories.NewOrderReferenceError(entity, entityID)
		}
		return wrapped
	}
	return nil
}

func readCoupon(tx *firestore.Transaction, ref *firestore.DocumentRef, couponID string, now time.Time) error {
	snap, err := tx.Get(ref)
	if err != nil {
		wrapped := pfirestore.WrapError("coupons.get", err)
		if notFound(wrapped) {
			return repositories.NewOrderError(repositories.OrderErrorCouponInvalid,
				fmt.Sprintf("coupon %s not found", couponID), wrapped)
		}
		return wrapped
	}
	var doc couponDocument
	if err := snap.DataTo(&doc); err != nil {
		return fmt.Errorf("firestore: decode coupon %s: %w", couponID, err)
	}
	if !doc.ExpiresAt.After(now) {
		return repositories.NewOrderError(repositories.OrderErrorCouponInvalid,
			fmt.Sprintf("coupon %s expired", couponID), nil)
	}
	return nil
}

// admitStock reads every ingredient the ledger touches and rejects the order
// if any positive net demand exceeds current stock. Negative or zero nets
// never block admission.
func admitStock(tx *firestore.Transaction, client *firestore.Client, demand domain.DemandLedger) (map[string]float64, error) {
	stock := make(map[string]float64, len(demand))
	for _, ingredientID := range demand.IngredientIDs() {
		snap, err := tx.Get(client.Collection(ingredientsCollection).Doc(ingredientID))
		if err != nil {
			wrapped := pfirestore.WrapError("ingredients.get", err)
			if notFound(wrapped) {
				return nil, repositories.NewOrderReferenceError("ingredient", ingredientID)
			}
			return nil, wrapped
		}
		var doc ingredientDocument
		if err := snap.DataTo(&doc); err != nil {
			return nil, fmt.Errorf("firestore: decode ingredient %s: %w", ingredientID, err)
		}

		net := demand.Net(ingredientID)
		if net > 0 && doc.Stock < net {
			return nil, repositories.NewStockShortageError(repositories.StockShortage{
				IngredientID: ingredientID,
				Ingredient:   doc.Name,
				Unit:         doc.Unit,
				Required:     net,
				Available:    doc.Stock,
			})
		}
		stock[ingredientID] = doc.Stock
	}
	return stock, nil
}

func notFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

func encodeExtras(extras []domain.ExtraEntry) []extraEntryDocument {
	if len(extras) == 0 {
		return nil
	}
	docs := make([]extraEntryDocument, 0, len(extras))
	for _, extra := range extras {
		docs = append(docs, extraEntryDocument{
			IngredientID: extra.IngredientID,
			Quantity:     extra.Quantity,
			Extra:        extra.Extra,
			UnitPrice:    extra.UnitPrice,
		})
	}
	return docs
}

// Document types -------------------------------------------------------------

type orderDocument struct {
	PlacedAt      time.Time `firestore:"placedAt"`
	Status        string    `firestore:"status"`
	Total         int64     `firestore:"total"`
	Discount      int64     `firestore:"discount"`
	CustomerID    string    `firestore:"customerId"`
	OrderTypeID   string    `firestore:"orderTypeId"`
	CouponID      string    `firestore:"couponId,omitempty"`
	PointsAwarded int64     `firestore:"pointsAwarded"`
	PaymentID     string    `firestore:"paymentId"`
}

func (d orderDocument) toDomain(id string) domain.Order {
	return domain.Order{
		ID:            id,
		PlacedAt:      d.PlacedAt,
		Status:        domain.OrderStatus(d.Status),
		Total:         d.Total,
		Discount:      d.Discount,
		CustomerID:    d.CustomerID,
		OrderTypeID:   d.OrderTypeID,
		CouponID:      d.CouponID,
		PointsAwarded: d.PointsAwarded,
	}
}

type paymentDocument struct {
	OrderID       string    `firestore:"orderId"`
	PaymentTypeID string    `firestore:"paymentTypeId"`
	Amount        int64     `firestore:"amount"`
	Description   string    `firestore:"description,omitempty"`
	CreatedAt     time.Time `firestore:"createdAt"`
}

func (d paymentDocument) toDomain(id string) domain.Payment {
	return domain.Payment{
		ID:            id,
		PaymentTypeID: d.PaymentTypeID,
		Amount:        d.Amount,
		Description:   d.Description,
	}
}

type extraEntryDocument struct {
	IngredientID string  `firestore:"ingredientId"`
	Quantity     float64 `firestore:"qty"`
	Extra        bool    `firestore:"extra"`
	UnitPrice    int64   `firestore:"unitPrice"`
}

type lineItemDocument struct {
	ProductID string               `firestore:"productId"`
	Subtotal  int64                `firestore:"subtotal"`
	Note      string               `firestore:"note,omitempty"`
	Extras    []extraEntryDocument `firestore:"extras,omitempty"`
	CreatedAt time.Time            `firestore:"createdAt"`
}

func (d lineItemDocument) toDomain(id string) domain.LineItem {
	extras := make([]domain.ExtraEntry, 0, len(d.Extras))
	for _, extra := range d.Extras {
		extras = append(extras, domain.ExtraEntry{
			IngredientID: extra.IngredientID,
			Quantity:     extra.Quantity,
			Extra:        extra.Extra,
			UnitPrice:    extra.UnitPrice,
		})
	}
	if len(extras) == 0 {
		extras = nil
	}
	return domain.LineItem{
		ID:        id,
		ProductID: d.ProductID,
		Subtotal:  d.Subtotal,
		Note:      d.Note,
		Extras:    extras,
	}
}
