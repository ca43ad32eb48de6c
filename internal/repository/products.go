package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mmeshcher/market-system/internal/model"
)

// CreateProduct создаёт новый товар каталога.
func (r *PostgresRepository) CreateProduct(ctx context.Context, p *model.Product) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO products (sku, name, price, discount_price, image_ref, stock)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at`,
		p.SKU, p.Name, p.Price, p.DiscountPrice, p.ImageRef, p.Stock,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: %s", ErrProductExists, p.SKU)
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

// GetProduct возвращает товар по идентификатору, включая текущий остаток.
func (r *PostgresRepository) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, sku, name, price, discount_price, image_ref, stock, created_at
		 FROM products WHERE id = $1`,
		id,
	)

	var p model.Product
	err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.Price, &p.DiscountPrice, &p.ImageRef, &p.Stock, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

// ReserveStock атомарно списывает qty единиц товара. Проверка остатка и
// списание выполняются одним UPDATE, поэтому конкурентные вызовы не могут
// увести остаток в минус.
func (r *PostgresRepository) ReserveStock(ctx context.Context, productID, qty int64) (int64, error) {
	return r.reserveStock(ctx, r.pool, productID, qty)
}

func (r *PostgresRepository) reserveStock(ctx context.Context, q querier, productID, qty int64) (int64, error) {
	var newStock int64
	err := q.QueryRow(ctx,
		`UPDATE products SET stock = stock - $2 WHERE id = $1 AND stock >= $2 RETURNING stock`,
		productID, qty,
	).Scan(&newStock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, r.classifyReserveFailure(ctx, q, productID)
		}
		return 0, fmt.Errorf("reserve stock: %w", err)
	}
	return newStock, nil
}

// ReleaseStock атомарно возвращает qty единиц товара на остаток.
func (r *PostgresRepository) ReleaseStock(ctx context.Context, productID, qty int64) error {
	return r.releaseStock(ctx, r.pool, productID, qty)
}

func (r *PostgresRepository) releaseStock(ctx context.Context, q querier, productID, qty int64) error {
	cmdTag, err := q.Exec(ctx,
		`UPDATE products SET stock = stock + $2 WHERE id = $1`,
		productID, qty,
	)
	if err != nil {
		return fmt.Errorf("release stock: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
	}
	return nil
}

// classifyReserveFailure различает отсутствие товара и нехватку остатка
// после неуспешного резервирования.
func (r *PostgresRepository) classifyReserveFailure(ctx context.Context, q querier, productID int64) error {
	var name string
	err := q.QueryRow(ctx, `SELECT name FROM products WHERE id = $1`, productID).Scan(&name)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return fmt.Errorf("check product: %w", err)
	}
	return fmt.Errorf("%w: %s", ErrInsufficientStock, name)
}
