package payment

import (
	"context"
	"errors"
	"io"
	"log"

	"shopapi/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type postgresRepo struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

func NewPostgres(pool *pgxpool.Pool, logger *log.Logger) Repository {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &postgresRepo{pool: pool, logger: logger}
}

const txColumns = `id, order_id, transaction_id, payment_method, amount, currency, status, gateway_response, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.PaymentTransaction, error) {
	const q = `
INSERT INTO payment_transactions (order_id, transaction_id, payment_method, amount, currency, status)
VALUES ($1, $2, $3, $4, $5, 'pending')
RETURNING id, created_at, updated_at
`
	tx := domain.PaymentTransaction{
		OrderID:       in.OrderID,
		TransactionID: in.TransactionID,
		PaymentMethod: in.PaymentMethod,
		Amount:        in.Amount,
		Currency:      in.Currency,
		Status:        domain.TransactionPending,
	}
	err := r.pool.QueryRow(ctx, q, in.OrderID, in.TransactionID, in.PaymentMethod, in.Amount, in.Currency).
		Scan(&tx.ID, &tx.CreatedAt, &tx.UpdatedAt)
	if err != nil {
		r.logger.Printf("payment repo: create order=%d tx=%s error=%v", in.OrderID, in.TransactionID, err)
		return nil, err
	}
	return &tx, nil
}

func (r *postgresRepo) GetByTransactionID(ctx context.Context, txID string) (*domain.PaymentTransaction, error) {
	var tx domain.PaymentTransaction
	err := r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM payment_transactions WHERE transaction_id = $1`, txID).Scan(
		&tx.ID, &tx.OrderID, &tx.TransactionID, &tx.PaymentMethod, &tx.Amount, &tx.Currency,
		&tx.Status, &tx.GatewayResponse, &tx.CreatedAt, &tx.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("payment repo: get tx=%s error=%v", txID, err)
		return nil, err
	}
	return &tx, nil
}

func (r *postgresRepo) ListByOrder(ctx context.Context, orderID int64) ([]domain.PaymentTransaction, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+txColumns+` FROM payment_transactions WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []domain.PaymentTransaction
	for rows.Next() {
		var tx domain.PaymentTransaction
		if err := rows.Scan(
			&tx.ID, &tx.OrderID, &tx.TransactionID, &tx.PaymentMethod, &tx.Amount, &tx.Currency,
			&tx.Status, &tx.GatewayResponse, &tx.CreatedAt, &tx.UpdatedAt,
		); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func (r *postgresRepo) SetStatus(ctx context.Context, txID, status string, raw []byte) error {
	const q = `
UPDATE payment_transactions
SET status = $1, gateway_response = COALESCE($2, gateway_response), updated_at = now()
WHERE transaction_id = $3
`
	cmd, err := r.pool.Exec(ctx, q, status, raw, txID)
	if err != nil {
		r.logger.Printf("payment repo: set status tx=%s status=%s error=%v", txID, status, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// MarkCompleted carries the status guard in the WHERE clause so a duplicate
// delivery that lost the race reports won=false instead of re-transitioning.
func (r *postgresRepo) MarkCompleted(ctx context.Context, txID string, raw []byte) (bool, error) {
	const q = `
UPDATE payment_transactions
SET status = 'completed', gateway_response = COALESCE($1, gateway_response), updated_at = now()
WHERE transaction_id = $2 AND status <> 'completed'
`
	cmd, err := r.pool.Exec(ctx, q, raw, txID)
	if err != nil {
		r.logger.Printf("payment repo: mark completed tx=%s error=%v", txID, err)
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
