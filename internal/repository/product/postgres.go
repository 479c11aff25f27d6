package product

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

const productColumns = `id, name, COALESCE(description, ''), price, COALESCE(sku, ''), stock_quantity, is_active, created_at`

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
}

func (r *postgresRepo) GetActiveByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.get(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1 AND is_active`, id)
}

func (r *postgresRepo) get(ctx context.Context, q string, id int64) (*domain.Product, error) {
	var p domain.Product
	err := r.pool.QueryRow(ctx, q, id).Scan(
		&p.ID, &p.Name, &p.Description, &p.Price, &p.SKU, &p.StockQuantity, &p.IsActive, &p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("product repo: get id=%d error=%v", id, err)
		return nil, err
	}
	return &p, nil
}

// DecrementStock is the atomic arbiter against overselling: the WHERE guard
// keeps stock_quantity from ever going negative, regardless of how many
// confirmations race on the same product.
func (r *postgresRepo) DecrementStock(ctx context.Context, id int64, qty int) error {
	const q = `
UPDATE products
SET stock_quantity = stock_quantity - $1, updated_at = now()
WHERE id = $2 AND stock_quantity >= $1
`
	cmd, err := r.pool.Exec(ctx, q, qty, id)
	if err != nil {
		r.logger.Printf("product repo: decrement id=%d qty=%d error=%v", id, qty, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrStockUnderflow
	}
	return nil
}

func (r *postgresRepo) IncrementStock(ctx context.Context, id int64, qty int) error {
	const q = `
UPDATE products
SET stock_quantity = stock_quantity + $1, updated_at = now()
WHERE id = $2
`
	cmd, err := r.pool.Exec(ctx, q, qty, id)
	if err != nil {
		r.logger.Printf("product repo: increment id=%d qty=%d error=%v", id, qty, err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
