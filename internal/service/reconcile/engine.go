package reconcile

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"

	"shopapi/internal/domain"
	"shopapi/internal/metrics"
)

type orderRepo interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	MarkPaid(ctx context.Context, id int64, paymentID string) error
	SetStatuses(ctx context.Context, id int64, status, paymentStatus string) error
}

type paymentRepo interface {
	GetByTransactionID(ctx context.Context, txID string) (*domain.PaymentTransaction, error)
	SetStatus(ctx context.Context, txID, status string, raw []byte) error
	MarkCompleted(ctx context.Context, txID string, raw []byte) (bool, error)
}

type inventoryRepo interface {
	DecrementStock(ctx context.Context, id int64, qty int) error
	IncrementStock(ctx context.Context, id int64, qty int) error
}

type cartRepo interface {
	ClearByUser(ctx context.Context, userID int64) error
}

// Engine applies a gateway-reported payment result to local order,
// transaction, inventory, and cart state exactly once. Both the synchronous
// confirmation path and the webhook path converge here.
type Engine struct {
	orders    orderRepo
	payments  paymentRepo
	inventory inventoryRepo
	carts     cartRepo
	locks     *OrderLocks
	metrics   *metrics.Metrics
	logger    *log.Logger
}

func NewEngine(orders orderRepo, payments paymentRepo, inventory inventoryRepo, carts cartRepo, locks *OrderLocks, m *metrics.Metrics, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	if locks == nil {
		locks = NewOrderLocks()
	}
	return &Engine{orders: orders, payments: payments, inventory: inventory, carts: carts, locks: locks, metrics: m, logger: logger}
}

// Locks exposes the per-order serializer so other privileged mutators (the
// admin status edit) can share it.
func (e *Engine) Locks() *OrderLocks {
	return e.locks
}

// Outcome reports the state the order landed in after applying a result.
type Outcome struct {
	OrderNumber   string
	OrderStatus   string
	PaymentStatus string

	// Duplicate marks an idempotent no-op: the transaction had already
	// completed and nothing was re-applied.
	Duplicate bool

	// StockUnderflow marks an oversell detected during debit. The order is
	// still confirmed/paid; the anomaly went to the operator channel.
	StockUnderflow bool
}

// Apply runs the transition function for one gateway result against the
// transaction's owning order. The whole transition holds the order's lock,
// so duplicate deliveries and the synchronous/webhook race serialize here.
func (e *Engine) Apply(ctx context.Context, orderID int64, res domain.GatewayResult) (*Outcome, error) {
	if res.TransactionID == "" {
		return nil, fmt.Errorf("%w: missing transaction id", domain.ErrReconciliation)
	}
	switch res.Status {
	case domain.GatewaySucceeded, domain.GatewayProcessing, domain.GatewayRequiresAction, domain.GatewayFailed:
	default:
		return nil, fmt.Errorf("%w: unknown gateway status %q", domain.ErrReconciliation, res.Status)
	}

	release := e.locks.Acquire(orderID)
	defer release()

	tx, err := e.payments.GetByTransactionID(ctx, res.TransactionID)
	if err != nil {
		return nil, fmt.Errorf("%w: transaction %s: %v", domain.ErrReconciliation, res.TransactionID, err)
	}
	if tx.OrderID != orderID {
		return nil, fmt.Errorf("%w: transaction %s belongs to order %d, not %d",
			domain.ErrReconciliation, res.TransactionID, tx.OrderID, orderID)
	}

	order, err := e.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("%w: order %d: %v", domain.ErrReconciliation, orderID, err)
	}

	// Idempotency guard: a completed transaction is terminal. Duplicate
	// webhooks and double confirmations land here and succeed as no-ops.
	if tx.Status == domain.TransactionCompleted {
		e.count("duplicate")
		return &Outcome{
			OrderNumber:   order.OrderNumber,
			OrderStatus:   order.Status,
			PaymentStatus: order.PaymentStatus,
			Duplicate:     true,
		}, nil
	}

	switch res.Status {
	case domain.GatewaySucceeded:
		return e.applySucceeded(ctx, order, tx, res)

	case domain.GatewayProcessing:
		if err := e.orders.SetStatuses(ctx, orderID, domain.OrderPending, domain.PaymentPending); err != nil {
			return nil, err
		}
		if err := e.payments.SetStatus(ctx, res.TransactionID, domain.TransactionPending, res.Raw); err != nil {
			return nil, err
		}
		e.count("processing")
		return &Outcome{OrderNumber: order.OrderNumber, OrderStatus: domain.OrderPending, PaymentStatus: domain.PaymentPending}, nil

	default:
		// requires_action and failed both cancel the attempt; nothing was
		// ever debited for this transaction.
		if err := e.orders.SetStatuses(ctx, orderID, domain.OrderCancelled, domain.PaymentFailed); err != nil {
			return nil, err
		}
		if err := e.payments.SetStatus(ctx, res.TransactionID, domain.TransactionFailed, res.Raw); err != nil {
			return nil, err
		}
		e.count("failed")
		return &Outcome{OrderNumber: order.OrderNumber, OrderStatus: domain.OrderCancelled, PaymentStatus: domain.PaymentFailed}, nil
	}
}

func (e *Engine) applySucceeded(ctx context.Context, order *domain.Order, tx *domain.PaymentTransaction, res domain.GatewayResult) (*Outcome, error) {
	outcome := &Outcome{
		OrderNumber:   order.OrderNumber,
		OrderStatus:   domain.OrderConfirmed,
		PaymentStatus: domain.PaymentPaid,
	}

	// The conditional decrement is the final arbiter against overselling.
	// An underflow is a fulfillment incident, not a payment failure: the
	// payment was accepted, so the order proceeds and the anomaly is
	// escalated instead of reverted.
	for _, it := range order.Items {
		if err := e.inventory.DecrementStock(ctx, it.ProductID, it.Quantity); err != nil {
			if errors.Is(err, domain.ErrStockUnderflow) {
				outcome.StockUnderflow = true
				e.escalateUnderflow(order, it)
				continue
			}
			return nil, err
		}
	}

	if err := e.orders.MarkPaid(ctx, order.ID, tx.TransactionID); err != nil {
		return nil, err
	}

	// Completed is written only after the debits, so a crash in between
	// retries against a still-pending transaction.
	won, err := e.payments.MarkCompleted(ctx, tx.TransactionID, res.Raw)
	if err != nil {
		return nil, err
	}
	if !won {
		e.logger.Printf("reconcile: transaction %s completed by concurrent caller", tx.TransactionID)
	}

	if err := e.carts.ClearByUser(ctx, order.UserID); err != nil {
		// The order is paid either way; a stale cart self-corrects
		// on the user's next checkout attempt.
		e.logger.Printf("reconcile: clear cart user=%d error=%v", order.UserID, err)
	}

	e.count("succeeded")
	e.logger.Printf("reconcile: order=%s confirmed, transaction=%s completed", order.OrderNumber, tx.TransactionID)
	return outcome, nil
}

func (e *Engine) escalateUnderflow(order *domain.Order, it domain.OrderItem) {
	e.logger.Printf("reconcile: STOCK UNDERFLOW order=%s product=%d wanted=%d; order stays paid, fulfillment must resolve",
		order.OrderNumber, it.ProductID, it.Quantity)
	if e.metrics != nil {
		e.metrics.StockUnderflows.WithLabelValues(strconv.FormatInt(it.ProductID, 10)).Inc()
	}
}

func (e *Engine) count(outcome string) {
	if e.metrics != nil {
		e.metrics.Reconciliations.WithLabelValues(outcome).Inc()
	}
}
