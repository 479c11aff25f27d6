package domain

import "time"

// Payment transaction statuses. At most one transaction per order may ever
// reach completed.
const (
	TransactionPending   = "pending"
	TransactionCompleted = "completed"
	TransactionFailed    = "failed"
	TransactionCancelled = "cancelled"
	TransactionRefunded  = "refunded"
)

// PaymentTransaction records one gateway interaction attempt for an order.
// Rows are created pending, mutated only by reconciliation, never deleted.
type PaymentTransaction struct {
	ID              int64     `json:"id"`
	OrderID         int64     `json:"order_id"`
	TransactionID   string    `json:"transaction_id"`
	PaymentMethod   string    `json:"payment_method"`
	Amount          float64   `json:"amount"`
	Currency        string    `json:"currency"`
	Status          string    `json:"status"`
	GatewayResponse []byte    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// GatewayStatus is the normalized payment-gateway status vocabulary.
type GatewayStatus string

const (
	GatewaySucceeded      GatewayStatus = "succeeded"
	GatewayProcessing     GatewayStatus = "processing"
	GatewayRequiresAction GatewayStatus = "requires_action"
	GatewayFailed         GatewayStatus = "failed"
)

// GatewayResult is a gateway-reported payment outcome, from either the
// synchronous confirmation path or an asynchronous webhook. Raw is the
// opaque response snapshot stored for audit; business logic never parses it
// after the transition decision.
type GatewayResult struct {
	TransactionID string
	Status        GatewayStatus
	Raw           []byte
}
