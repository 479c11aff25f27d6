package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")

	// ErrForbidden indicates the caller is not allowed to act on the entity.
	ErrForbidden = errors.New("forbidden")

	// ErrProductUnavailable indicates a referenced product does not exist
	// or has been deactivated.
	ErrProductUnavailable = errors.New("product unavailable")

	// ErrInsufficientStock indicates the requested quantity exceeds the
	// product's current stock at order-creation time.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrAmountMismatch indicates the client-declared total differs from
	// the server-computed total by more than the rounding tolerance.
	ErrAmountMismatch = errors.New("amount mismatch")

	// ErrOrderNumberCollision indicates an order number collided with an
	// existing one. Retryable; never surfaced to the caller.
	ErrOrderNumberCollision = errors.New("order number collision")

	// ErrStockUnderflow indicates a conditional stock decrement found less
	// stock than the order requires. The payment is still honored; the
	// anomaly is escalated operationally instead of rejected.
	ErrStockUnderflow = errors.New("stock underflow")

	// ErrGatewayProtocol indicates the payment gateway returned a response
	// the adapter could not parse.
	ErrGatewayProtocol = errors.New("gateway protocol error")

	// ErrSignatureInvalid indicates a webhook payload failed signature
	// verification.
	ErrSignatureInvalid = errors.New("signature invalid")

	// ErrReconciliation indicates a gateway result that cannot be applied;
	// order and transaction are left untouched.
	ErrReconciliation = errors.New("reconciliation error")
)
