package product

import (
	"context"

	"shopapi/internal/domain"
)

// Repository reads catalog rows and owns the stock column. Stock writes are
// single-row conditional updates, never read-modify-write.
type Repository interface {
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	GetActiveByID(ctx context.Context, id int64) (*domain.Product, error)

	// DecrementStock subtracts qty only if at least qty remains, returning
	// domain.ErrStockUnderflow otherwise.
	DecrementStock(ctx context.Context, id int64, qty int) error

	// IncrementStock restores qty units, used for cancel/refund credit-back.
	IncrementStock(ctx context.Context, id int64, qty int) error
}
