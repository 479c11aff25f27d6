package payment

import (
	"context"

	"shopapi/internal/domain"
)

type CreateInput struct {
	OrderID       int64
	TransactionID string
	PaymentMethod string
	Amount        float64
	Currency      string
}

// Repository stores one row per gateway interaction. Rows are created
// pending by the assembler, mutated only by reconciliation, never deleted.
type Repository interface {
	Create(ctx context.Context, in CreateInput) (*domain.PaymentTransaction, error)
	GetByTransactionID(ctx context.Context, txID string) (*domain.PaymentTransaction, error)
	ListByOrder(ctx context.Context, orderID int64) ([]domain.PaymentTransaction, error)

	// SetStatus writes status plus the raw gateway snapshot.
	SetStatus(ctx context.Context, txID, status string, raw []byte) error

	// MarkCompleted transitions pending -> completed, guarded so only one
	// caller ever wins. Reports whether this call performed the transition.
	MarkCompleted(ctx context.Context, txID string, raw []byte) (bool, error)
}
