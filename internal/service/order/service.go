package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"strings"
	"time"

	"shopapi/internal/domain"
	"shopapi/internal/gateway"
	orderrepo "shopapi/internal/repository/order"
	paymentrepo "shopapi/internal/repository/payment"

	"github.com/google/uuid"
)

// amountTolerance absorbs floating rounding between the client's declared
// total and the server-computed one.
const amountTolerance = 0.01

const orderNumberAttempts = 3

var supportedCurrencies = map[string]bool{"eur": true, "usd": true, "gbp": true}

type orderRepo interface {
	Create(ctx context.Context, in orderrepo.CreateInput) (*domain.Order, error)
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	List(ctx context.Context, f orderrepo.ListFilter) ([]domain.Order, int, error)
	UpdateStatus(ctx context.Context, id int64, in orderrepo.StatusUpdate) error
	SetPaymentStatus(ctx context.Context, id int64, paymentStatus string) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, periodDays int) (*orderrepo.Stats, error)
}

type productRepo interface {
	GetActiveByID(ctx context.Context, id int64) (*domain.Product, error)
	IncrementStock(ctx context.Context, id int64, qty int) error
}

type paymentRepo interface {
	Create(ctx context.Context, in paymentrepo.CreateInput) (*domain.PaymentTransaction, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.PaymentTransaction, error)
	GetByTransactionID(ctx context.Context, txID string) (*domain.PaymentTransaction, error)
}

// locker serializes work per order id; the same instance backs the
// reconciliation engine so admin cancels and webhook confirmations for one
// order never interleave.
type locker interface {
	Acquire(orderID int64) (release func())
}

type Service struct {
	orders   orderRepo
	products productRepo
	payments paymentRepo
	gw       gateway.PaymentGateway
	locks    locker
	logger   *log.Logger
}

func New(orders orderRepo, products productRepo, payments paymentRepo, gw gateway.PaymentGateway, locks locker, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Service{orders: orders, products: products, payments: payments, gw: gw, locks: locks, logger: logger}
}

type ItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type AssembleInput struct {
	Items           []ItemRequest
	Amount          float64
	Currency        string
	ShippingAddress *domain.Address
	BillingAddress  *domain.Address
	Notes           string
}

type AssembleResult struct {
	ClientSecret    string  `json:"client_secret"`
	PaymentIntentID string  `json:"payment_intent_id"`
	OrderID         int64   `json:"order_id"`
	OrderNumber     string  `json:"order_number"`
	Amount          float64 `json:"amount"`
	Currency        string  `json:"currency"`
}

// Assemble validates the item list against live catalog state, computes the
// authoritative total, persists order + items + initial payment transaction,
// and obtains a client payment handle from the gateway. Stock is only read
// here; the debit happens at confirmation time.
func (s *Service) Assemble(ctx context.Context, identity domain.Identity, in AssembleInput) (*AssembleResult, error) {
	if len(in.Items) == 0 {
		return nil, errors.New("at least one item required")
	}
	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "eur"
	}
	if !supportedCurrencies[currency] {
		return nil, fmt.Errorf("unsupported currency %q", in.Currency)
	}
	if in.ShippingAddress == nil {
		return nil, errors.New("shipping address required")
	}

	var subtotal float64
	items := make([]orderrepo.ItemInput, 0, len(in.Items))
	for _, req := range in.Items {
		if req.Quantity <= 0 {
			return nil, fmt.Errorf("invalid quantity for product %d", req.ProductID)
		}
		p, err := s.products.GetActiveByID(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, fmt.Errorf("%w: product %d", domain.ErrProductUnavailable, req.ProductID)
			}
			return nil, err
		}
		if p.StockQuantity < req.Quantity {
			return nil, fmt.Errorf("%w: %s has %d left", domain.ErrInsufficientStock, p.Name, p.StockQuantity)
		}
		lineTotal := p.Price * float64(req.Quantity)
		subtotal += lineTotal
		items = append(items, orderrepo.ItemInput{
			ProductID:   p.ID,
			Quantity:    req.Quantity,
			UnitPrice:   p.Price,
			TotalPrice:  lineTotal,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
		})
	}

	// Never trust the client-sent amount beyond confirming it matches.
	if math.Abs(subtotal-in.Amount) > amountTolerance {
		return nil, fmt.Errorf("%w: declared %.2f, computed %.2f", domain.ErrAmountMismatch, in.Amount, subtotal)
	}

	billing := in.BillingAddress
	if billing == nil {
		billing = in.ShippingAddress
	}

	var created *domain.Order
	for attempt := 0; attempt < orderNumberAttempts; attempt++ {
		o, err := s.orders.Create(ctx, orderrepo.CreateInput{
			OrderNumber:     newOrderNumber(),
			UserID:          identity.UserID,
			Subtotal:        subtotal,
			TotalAmount:     subtotal,
			Currency:        strings.ToUpper(currency),
			ShippingAddress: in.ShippingAddress,
			BillingAddress:  billing,
			Notes:           in.Notes,
			Items:           items,
		})
		if err != nil {
			if errors.Is(err, domain.ErrOrderNumberCollision) {
				continue
			}
			return nil, err
		}
		created = o
		break
	}
	if created == nil {
		return nil, domain.ErrOrderNumberCollision
	}

	intent, err := s.gw.CreateIntent(ctx, gateway.CreateIntentInput{
		Amount:      subtotal,
		Currency:    currency,
		OrderID:     created.ID,
		OrderNumber: created.OrderNumber,
		UserID:      identity.UserID,
		Description: fmt.Sprintf("Order %s - %d items", created.OrderNumber, len(items)),
	})
	if err != nil {
		s.compensate(ctx, created.ID)
		return nil, fmt.Errorf("create payment intent: %w", err)
	}

	if _, err := s.payments.Create(ctx, paymentrepo.CreateInput{
		OrderID:       created.ID,
		TransactionID: intent.ID,
		PaymentMethod: "stripe",
		Amount:        subtotal,
		Currency:      strings.ToUpper(currency),
	}); err != nil {
		// The intent stays orphaned at the gateway; its metadata still
		// carries the order context for manual recovery.
		s.compensate(ctx, created.ID)
		return nil, fmt.Errorf("record payment transaction: %w", err)
	}

	s.logger.Printf("order service: assembled order=%s user=%d total=%.2f intent=%s",
		created.OrderNumber, identity.UserID, subtotal, intent.ID)

	return &AssembleResult{
		ClientSecret:    intent.ClientSecret,
		PaymentIntentID: intent.ID,
		OrderID:         created.ID,
		OrderNumber:     created.OrderNumber,
		Amount:          subtotal,
		Currency:        strings.ToUpper(currency),
	}, nil
}

// compensate removes a half-assembled order so no partial order stays
// visible. Item rows cascade with the order row.
func (s *Service) compensate(ctx context.Context, orderID int64) {
	if err := s.orders.Delete(ctx, orderID); err != nil {
		s.logger.Printf("order service: compensation delete order=%d error=%v", orderID, err)
	}
}

func newOrderNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:9]
	return fmt.Sprintf("ORD-%d-%s", time.Now().UnixMilli(), suffix)
}

// Get returns the order with items and transactions, enforcing that only
// the owner or an admin may read it.
func (s *Service) Get(ctx context.Context, identity domain.Identity, id int64) (*domain.Order, []domain.PaymentTransaction, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !identity.IsAdmin() && o.UserID != identity.UserID {
		return nil, nil, domain.ErrForbidden
	}
	txs, err := s.payments.ListByOrder(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return o, txs, nil
}

// List returns orders matching the filter; customers only ever see their own.
func (s *Service) List(ctx context.Context, identity domain.Identity, f orderrepo.ListFilter) ([]domain.Order, int, error) {
	if !identity.IsAdmin() {
		uid := identity.UserID
		f.UserID = &uid
	}
	return s.orders.List(ctx, f)
}

type StatusEdit struct {
	Status         string
	TrackingNumber *string
	Notes          *string
}

// UpdateStatus applies an admin-driven status edit. Entering cancelled from
// any status other than cancelled/refunded credits debited stock back,
// exactly once: the guard is the order's current status read under the
// per-order lock immediately before mutation.
func (s *Service) UpdateStatus(ctx context.Context, id int64, in StatusEdit) (*domain.Order, error) {
	if !domain.ValidOrderStatus(in.Status) {
		return nil, fmt.Errorf("invalid order status %q", in.Status)
	}

	release := s.locks.Acquire(id)
	defer release()

	current, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	restock := in.Status == domain.OrderCancelled &&
		current.Status != domain.OrderCancelled && current.Status != domain.OrderRefunded &&
		current.PaymentStatus == domain.PaymentPaid

	if err := s.orders.UpdateStatus(ctx, id, orderrepo.StatusUpdate{
		Status:         in.Status,
		TrackingNumber: in.TrackingNumber,
		Notes:          in.Notes,
	}); err != nil {
		return nil, err
	}

	if restock {
		for _, it := range current.Items {
			if err := s.products.IncrementStock(ctx, it.ProductID, it.Quantity); err != nil {
				s.logger.Printf("order service: restock order=%d product=%d qty=%d error=%v",
					id, it.ProductID, it.Quantity, err)
			}
		}
		s.logger.Printf("order service: cancelled order=%s, stock restored", current.OrderNumber)
	}

	current.Status = in.Status
	return current, nil
}

// SetPaymentStatus is the admin override for the payment status column.
func (s *Service) SetPaymentStatus(ctx context.Context, id int64, paymentStatus string) (*domain.Order, error) {
	switch paymentStatus {
	case domain.PaymentPending, domain.PaymentPaid, domain.PaymentFailed, domain.PaymentRefunded:
	default:
		return nil, fmt.Errorf("invalid payment status %q", paymentStatus)
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetPaymentStatus(ctx, id, paymentStatus); err != nil {
		return nil, err
	}
	o.PaymentStatus = paymentStatus
	return o, nil
}

// Delete removes an order for cleanup; only cancelled/refunded orders can go.
func (s *Service) Delete(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != domain.OrderCancelled && o.Status != domain.OrderRefunded {
		return nil, fmt.Errorf("only cancelled or refunded orders can be deleted")
	}
	if err := s.orders.Delete(ctx, id); err != nil {
		return nil, err
	}
	return o, nil
}

// Stats aggregates dashboard numbers over the trailing period.
func (s *Service) Stats(ctx context.Context, periodDays int) (*orderrepo.Stats, error) {
	return s.orders.Stats(ctx, periodDays)
}

// Transaction returns one gateway interaction record, ownership-checked
// through the owning order.
func (s *Service) Transaction(ctx context.Context, identity domain.Identity, txID string) (*domain.PaymentTransaction, error) {
	tx, err := s.payments.GetByTransactionID(ctx, txID)
	if err != nil {
		return nil, err
	}
	if !identity.IsAdmin() {
		o, err := s.orders.GetByID(ctx, tx.OrderID)
		if err != nil {
			return nil, err
		}
		if o.UserID != identity.UserID {
			return nil, domain.ErrForbidden
		}
	}
	return tx, nil
}
