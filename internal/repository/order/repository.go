package order

import (
	"context"
	"time"

	"shopapi/internal/domain"
)

// CreateInput carries everything the assembler persists for a new order.
type CreateInput struct {
	OrderNumber     string
	UserID          int64
	Subtotal        float64
	TaxAmount       float64
	ShippingAmount  float64
	DiscountAmount  float64
	TotalAmount     float64
	Currency        string
	ShippingAddress *domain.Address
	BillingAddress  *domain.Address
	Notes           string
	Items           []ItemInput
}

type ItemInput struct {
	ProductID   int64
	Quantity    int
	UnitPrice   float64
	TotalPrice  float64
	ProductName string
	ProductSKU  string
}

// ListFilter narrows the order listing. Nil/zero fields are ignored.
type ListFilter struct {
	UserID        *int64
	Status        string
	PaymentStatus string
	Search        string
	StartDate     *time.Time
	EndDate       *time.Time
	Page          int
	Limit         int
}

// StatusUpdate mutates the admin-editable fields of an order. Nil optional
// fields leave the stored value untouched. Shipped/delivered timestamps are
// stamped inside the store, only on first entry into those statuses.
type StatusUpdate struct {
	Status         string
	TrackingNumber *string
	Notes          *string
}

// Stats aggregates the dashboard numbers over a trailing period.
type Stats struct {
	TotalOrders     int            `json:"total_orders"`
	PeriodOrders    int            `json:"period_orders"`
	PeriodRevenue   float64        `json:"period_revenue"`
	PeriodDays      int            `json:"period_days"`
	ByStatus        map[string]int `json:"orders_by_status"`
	ByPaymentStatus map[string]int `json:"orders_by_payment_status"`
}

type Repository interface {
	// Create persists the order, its items, and nothing else, as one
	// logical unit: if any item write fails the order row is removed so no
	// partial order stays visible. Collisions on order_number return
	// domain.ErrOrderNumberCollision.
	Create(ctx context.Context, in CreateInput) (*domain.Order, error)

	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error)
	List(ctx context.Context, f ListFilter) ([]domain.Order, int, error)

	// MarkPaid moves the order to confirmed/paid and records the gateway
	// payment id.
	MarkPaid(ctx context.Context, id int64, paymentID string) error

	// SetStatuses writes order status and payment status together, used by
	// reconciliation for the processing/failed outcomes.
	SetStatuses(ctx context.Context, id int64, status, paymentStatus string) error

	UpdateStatus(ctx context.Context, id int64, in StatusUpdate) error
	SetPaymentStatus(ctx context.Context, id int64, paymentStatus string) error

	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context, periodDays int) (*Stats, error)
}
