package domain

import "time"

// CartItem references a live product with a desired quantity, keyed by the
// owning user. The cart is cleared, not archived, once its contents become a
// paid order.
type CartItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Name      string    `json:"name,omitempty"`
	Price     float64   `json:"price,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
