package seed

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

type userSeed struct {
	Email     string
	FirstName string
	LastName  string
	Role      string
}

type productSeed struct {
	Name        string
	Description string
	Price       float64
	SKU         string
	Stock       int
}

// Apply inserts basic seed data for manual testing. It is idempotent via ON CONFLICT.
func Apply(ctx context.Context, pool *pgxpool.Pool) error {
	users := []userSeed{
		{Email: "admin@shop.local", FirstName: "Ada", LastName: "Admin", Role: "admin"},
		{Email: "customer@shop.local", FirstName: "Carl", LastName: "Customer", Role: "customer"},
	}
	for _, u := range users {
		if err := upsertUser(ctx, pool, u); err != nil {
			return fmt.Errorf("upsert user %s: %w", u.Email, err)
		}
	}

	products := []productSeed{
		{
			Name:        "Demo T-Shirt",
			Description: "Soft cotton tee for demo purposes",
			Price:       19.99,
			SKU:         "SKU-DEMO-TSHIRT",
			Stock:       120,
		},
		{
			Name:        "Demo Mug",
			Description: "Ceramic mug with demo logo",
			Price:       12.99,
			SKU:         "SKU-DEMO-MUG",
			Stock:       80,
		},
		{
			Name:        "Demo Poster",
			Description: "A2 print, matte finish",
			Price:       7.50,
			SKU:         "SKU-DEMO-POSTER",
			Stock:       3,
		},
	}
	for _, p := range products {
		if err := upsertProduct(ctx, pool, p); err != nil {
			return fmt.Errorf("upsert product %s: %w", p.SKU, err)
		}
	}

	return nil
}

func upsertUser(ctx context.Context, pool *pgxpool.Pool, u userSeed) error {
	const q = `
INSERT INTO users (email, first_name, last_name, role)
VALUES ($1, $2, $3, $4)
ON CONFLICT (email) DO UPDATE SET
    first_name = EXCLUDED.first_name,
    last_name = EXCLUDED.last_name,
    role = EXCLUDED.role,
    updated_at = now()
`
	_, err := pool.Exec(ctx, q, u.Email, u.FirstName, u.LastName, u.Role)
	return err
}

func upsertProduct(ctx context.Context, pool *pgxpool.Pool, p productSeed) error {
	const q = `
INSERT INTO products (name, description, price, sku, stock_quantity, is_active)
VALUES ($1, $2, $3, $4, $5, TRUE)
ON CONFLICT (sku) DO UPDATE SET
    name = EXCLUDED.name,
    description = EXCLUDED.description,
    price = EXCLUDED.price,
    stock_quantity = EXCLUDED.stock_quantity,
    is_active = TRUE,
    updated_at = now()
`
	_, err := pool.Exec(ctx, q, p.Name, p.Description, p.Price, p.SKU, p.Stock)
	return err
}
