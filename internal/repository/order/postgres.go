package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"shopapi/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
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

const orderColumns = `
id, order_number, user_id, status, payment_status,
COALESCE(payment_method, ''), COALESCE(payment_id, ''),
subtotal, tax_amount, shipping_amount, discount_amount, total_amount, currency,
shipping_address, billing_address, COALESCE(notes, ''), COALESCE(tracking_number, ''),
shipped_at, delivered_at, created_at, updated_at`

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	const insertOrder = `
INSERT INTO orders (
    order_number, user_id, status, payment_status,
    subtotal, tax_amount, shipping_amount, discount_amount, total_amount,
    currency, shipping_address, billing_address, notes
) VALUES ($1, $2, 'pending', 'pending', $3, $4, $5, $6, $7, $8, $9, $10, NULLIF($11, ''))
RETURNING id, created_at, updated_at
`
	o := domain.Order{
		OrderNumber:     in.OrderNumber,
		UserID:          in.UserID,
		Status:          domain.OrderPending,
		PaymentStatus:   domain.PaymentPending,
		Subtotal:        in.Subtotal,
		TaxAmount:       in.TaxAmount,
		ShippingAmount:  in.ShippingAmount,
		DiscountAmount:  in.DiscountAmount,
		TotalAmount:     in.TotalAmount,
		Currency:        in.Currency,
		ShippingAddress: in.ShippingAddress,
		BillingAddress:  in.BillingAddress,
		Notes:           in.Notes,
	}
	err := r.pool.QueryRow(ctx, insertOrder,
		in.OrderNumber, in.UserID,
		in.Subtotal, in.TaxAmount, in.ShippingAmount, in.DiscountAmount, in.TotalAmount,
		in.Currency, in.ShippingAddress, in.BillingAddress, in.Notes,
	).Scan(&o.ID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.ErrOrderNumberCollision
		}
		r.logger.Printf("order repo: create number=%s error=%v", in.OrderNumber, err)
		return nil, err
	}

	const insertItem = `
INSERT INTO order_items (order_id, product_id, quantity, unit_price, total_price, product_name, product_sku)
VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
RETURNING id, created_at
`
	for _, it := range in.Items {
		item := domain.OrderItem{
			OrderID:     o.ID,
			ProductID:   it.ProductID,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			ProductName: it.ProductName,
			ProductSKU:  it.ProductSKU,
		}
		err := r.pool.QueryRow(ctx, insertItem,
			o.ID, it.ProductID, it.Quantity, it.UnitPrice, it.TotalPrice, it.ProductName, it.ProductSKU,
		).Scan(&item.ID, &item.CreatedAt)
		if err != nil {
			// Compensate: remove the order row (items cascade) so no
			// partial order stays visible.
			if _, delErr := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, o.ID); delErr != nil {
				r.logger.Printf("order repo: compensation delete id=%d error=%v", o.ID, delErr)
			}
			r.logger.Printf("order repo: create item order=%d product=%d error=%v", o.ID, it.ProductID, err)
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		o.Items = append(o.Items, item)
	}

	return &o, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	var o domain.Order
	err := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id).Scan(
		&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus,
		&o.PaymentMethod, &o.PaymentID,
		&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount, &o.Currency,
		&o.ShippingAddress, &o.BillingAddress, &o.Notes, &o.TrackingNumber,
		&o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Printf("order repo: get id=%d error=%v", id, err)
		return nil, err
	}

	items, err := r.Items(ctx, id)
	if err != nil {
		return nil, err
	}
	o.Items = items
	return &o, nil
}

func (r *postgresRepo) Items(ctx context.Context, orderID int64) ([]domain.OrderItem, error) {
	const q = `
SELECT id, order_id, product_id, quantity, unit_price, total_price, product_name, COALESCE(product_sku, ''), created_at
FROM order_items
WHERE order_id = $1
ORDER BY id
`
	rows, err := r.pool.Query(ctx, q, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []domain.OrderItem
	for rows.Next() {
		var it domain.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPrice, &it.TotalPrice, &it.ProductName, &it.ProductSKU, &it.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *postgresRepo) List(ctx context.Context, f ListFilter) ([]domain.Order, int, error) {
	var conds []string
	var args []interface{}

	add := func(cond string, arg interface{}) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.UserID != nil {
		add("user_id = $%d", *f.UserID)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.PaymentStatus != "" {
		add("payment_status = $%d", f.PaymentStatus)
	}
	if f.Search != "" {
		add("order_number ILIKE $%d", "%"+f.Search+"%")
	}
	if f.StartDate != nil {
		add("created_at >= $%d", *f.StartDate)
	}
	if f.EndDate != nil {
		add("created_at <= $%d", *f.EndDate)
	}

	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders `+where, args...).Scan(&total); err != nil {
		r.logger.Printf("order repo: count error=%v", err)
		return nil, 0, err
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 10
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	q := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		r.logger.Printf("order repo: list error=%v", err)
		return nil, 0, err
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		var o domain.Order
		if err := rows.Scan(
			&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &o.PaymentStatus,
			&o.PaymentMethod, &o.PaymentID,
			&o.Subtotal, &o.TaxAmount, &o.ShippingAmount, &o.DiscountAmount, &o.TotalAmount, &o.Currency,
			&o.ShippingAddress, &o.BillingAddress, &o.Notes, &o.TrackingNumber,
			&o.ShippedAt, &o.DeliveredAt, &o.CreatedAt, &o.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		orders = append(orders, o)
	}
	return orders, total, rows.Err()
}

func (r *postgresRepo) MarkPaid(ctx context.Context, id int64, paymentID string) error {
	const q = `
UPDATE orders
SET status = 'confirmed', payment_status = 'paid',
    payment_method = 'stripe', payment_id = $1, updated_at = now()
WHERE id = $2
`
	return r.exec(ctx, q, paymentID, id)
}

func (r *postgresRepo) SetStatuses(ctx context.Context, id int64, status, paymentStatus string) error {
	const q = `
UPDATE orders
SET status = $1, payment_status = $2, updated_at = now()
WHERE id = $3
`
	return r.exec(ctx, q, status, paymentStatus, id)
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id int64, in StatusUpdate) error {
	const q = `
UPDATE orders
SET status = $1,
    tracking_number = COALESCE($2, tracking_number),
    notes = COALESCE($3, notes),
    shipped_at = CASE WHEN $1 = 'shipped' AND shipped_at IS NULL THEN now() ELSE shipped_at END,
    delivered_at = CASE WHEN $1 = 'delivered' AND delivered_at IS NULL THEN now() ELSE delivered_at END,
    updated_at = now()
WHERE id = $4
`
	return r.exec(ctx, q, in.Status, in.TrackingNumber, in.Notes, id)
}

func (r *postgresRepo) SetPaymentStatus(ctx context.Context, id int64, paymentStatus string) error {
	return r.exec(ctx, `UPDATE orders SET payment_status = $1, updated_at = now() WHERE id = $2`, paymentStatus, id)
}

func (r *postgresRepo) Delete(ctx context.Context, id int64) error {
	return r.exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
}

func (r *postgresRepo) Stats(ctx context.Context, periodDays int) (*Stats, error) {
	if periodDays <= 0 {
		periodDays = 30
	}
	s := &Stats{
		PeriodDays:      periodDays,
		ByStatus:        map[string]int{},
		ByPaymentStatus: map[string]int{},
	}

	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&s.TotalOrders); err != nil {
		return nil, err
	}
	const periodQ = `
SELECT COUNT(*),
       COALESCE(SUM(total_amount) FILTER (WHERE payment_status = 'paid'), 0)
FROM orders
WHERE created_at >= now() - make_interval(days => $1)
`
	if err := r.pool.QueryRow(ctx, periodQ, periodDays).Scan(&s.PeriodOrders, &s.PeriodRevenue); err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `
SELECT status, payment_status
FROM orders
WHERE created_at >= now() - make_interval(days => $1)
`, periodDays)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var st, ps string
		if err := rows.Scan(&st, &ps); err != nil {
			return nil, err
		}
		s.ByStatus[st]++
		s.ByPaymentStatus[ps]++
	}
	return s, rows.Err()
}

func (r *postgresRepo) exec(ctx context.Context, q string, args ...interface{}) error {
	cmd, err := r.pool.Exec(ctx, q, args...)
	if err != nil {
		r.logger.Printf("order repo: exec error=%v", err)
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
