package cart

import (
	"context"

	"shopapi/internal/domain"
)

type Repository interface {
	ListByUser(ctx context.Context, userID int64) ([]domain.CartItem, error)

	// AddItem upserts a cart line, adding qty to any existing line for the
	// same product.
	AddItem(ctx context.Context, userID, productID int64, qty int) error

	RemoveItem(ctx context.Context, userID, productID int64) error

	// ClearByUser deletes every cart line belonging to the user. Called by
	// reconciliation once the cart's contents became a paid order.
	ClearByUser(ctx context.Context, userID int64) error
}
