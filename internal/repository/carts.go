package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mmeshcher/market-system/internal/model"
)

// querier объединяет пул и транзакцию для общих вспомогательных запросов.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// ensureCart возвращает идентификатор корзины пользователя, создавая пустую
// корзину при первом обращении.
func (r *PostgresRepository) ensureCart(ctx context.Context, q querier, userID int64) (int64, error) {
	_, err := q.Exec(ctx,
		`INSERT INTO carts (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("ensure cart: %w", err)
	}

	var cartID int64
	err = q.QueryRow(ctx, `SELECT id FROM carts WHERE user_id = $1`, userID).Scan(&cartID)
	if err != nil {
		return 0, fmt.Errorf("select cart: %w", err)
	}
	return cartID, nil
}

func (r *PostgresRepository) loadCart(ctx context.Context, q querier, userID int64) (*model.Cart, error) {
	cart := &model.Cart{UserID: userID}

	var promoCode *string
	var promoBP *int64
	err := q.QueryRow(ctx,
		`SELECT COALESCE(promo_code, ''), COALESCE(promo_discount_bp, 0), updated_at
		 FROM carts WHERE user_id = $1`,
		userID,
	).Scan(&promoCode, &promoBP, &cart.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("select cart: %w", err)
	}
	if promoCode != nil {
		cart.PromoCode = *promoCode
	}
	if promoBP != nil {
		cart.PromoDiscountBP = *promoBP
	}

	rows, err := q.Query(ctx,
		`SELECT cl.product_id, cl.quantity, cl.unit_price, cl.display_name, cl.image_ref
		 FROM cart_lines cl
		 JOIN carts c ON c.id = cl.cart_id
		 WHERE c.user_id = $1
		 ORDER BY cl.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart lines: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var l model.CartLine
		if err := rows.Scan(&l.ProductID, &l.Quantity, &l.UnitPrice, &l.DisplayName, &l.ImageRef); err != nil {
			return nil, fmt.Errorf("scan cart line: %w", err)
		}
		cart.Lines = append(cart.Lines, l)
		cart.Subtotal += l.UnitPrice * l.Quantity
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return cart, nil
}

// GetCart возвращает корзину пользователя, создавая её при первом обращении.
func (r *PostgresRepository) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	if _, err := r.ensureCart(ctx, r.pool, userID); err != nil {
		return nil, err
	}
	return r.loadCart(ctx, r.pool, userID)
}

// AddCartLine добавляет товар в корзину пользователя. Если позиция уже есть,
// количества складываются, а цена обновляется до текущей. Остаток товара
// проверяется без резервирования: списание происходит только при оформлении.
func (r *PostgresRepository) AddCartLine(ctx context.Context, userID, productID, qty int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	cartID, err := r.ensureCart(ctx, tx, userID)
	if err != nil {
		return err
	}

	var name, imageRef string
	var price int64
	var discountPrice *int64
	var stock int64
	err = tx.QueryRow(ctx,
		`SELECT name, price, discount_price, image_ref, stock FROM products WHERE id = $1`,
		productID,
	).Scan(&name, &price, &discountPrice, &imageRef, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return fmt.Errorf("select product: %w", err)
	}

	unitPrice := price
	if discountPrice != nil {
		unitPrice = *discountPrice
	}

	var existing int64
	err = tx.QueryRow(ctx,
		`SELECT COALESCE((SELECT quantity FROM cart_lines WHERE cart_id = $1 AND product_id = $2), 0)`,
		cartID, productID,
	).Scan(&existing)
	if err != nil {
		return fmt.Errorf("select existing quantity: %w", err)
	}

	if existing+qty > stock {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, name)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO cart_lines (cart_id, product_id, quantity, unit_price, display_name, image_ref)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (cart_id, product_id) DO UPDATE SET
		   quantity = cart_lines.quantity + EXCLUDED.quantity,
		   unit_price = EXCLUDED.unit_price,
		   display_name = EXCLUDED.display_name,
		   image_ref = EXCLUDED.image_ref`,
		cartID, productID, qty, unitPrice, name, imageRef,
	)
	if err != nil {
		return fmt.Errorf("upsert cart line: %w", err)
	}

	if err := r.touchCart(ctx, tx, cartID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// UpdateCartLineQty устанавливает новое количество позиции корзины.
func (r *PostgresRepository) UpdateCartLineQty(ctx context.Context, userID, productID, qty int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var name string
	var stock int64
	err = tx.QueryRow(ctx,
		`SELECT name, stock FROM products WHERE id = $1`,
		productID,
	).Scan(&name, &stock)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrProductNotFound, productID)
		}
		return fmt.Errorf("select product: %w", err)
	}

	if qty > stock {
		return fmt.Errorf("%w: %s", ErrInsufficientStock, name)
	}

	cmdTag, err := tx.Exec(ctx,
		`UPDATE cart_lines SET quantity = $3
		 WHERE product_id = $2
		   AND cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID, productID, qty,
	)
	if err != nil {
		return fmt.Errorf("update cart line: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: product %d", ErrCartLineNotFound, productID)
	}

	_, err = tx.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// RemoveCartLine удаляет позицию из корзины. Отсутствие позиции не является ошибкой.
func (r *PostgresRepository) RemoveCartLine(ctx context.Context, userID, productID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM cart_lines
		 WHERE product_id = $2
		   AND cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("delete cart line: %w", err)
	}

	_, err = r.pool.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}

	return nil
}

// ClearCart опустошает корзину: удаляет позиции и сбрасывает промокод.
func (r *PostgresRepository) ClearCart(ctx context.Context, userID int64) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := r.clearCartTx(ctx, tx, userID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

func (r *PostgresRepository) clearCartTx(ctx context.Context, q querier, userID int64) error {
	_, err := q.Exec(ctx,
		`DELETE FROM cart_lines WHERE cart_id = (SELECT id FROM carts WHERE user_id = $1)`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("delete cart lines: %w", err)
	}

	_, err = q.Exec(ctx,
		`UPDATE carts SET promo_code = NULL, promo_discount_bp = NULL, updated_at = now()
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("reset cart: %w", err)
	}

	return nil
}

// SetCartPromo сохраняет применённый промокод и размер скидки на корзине.
func (r *PostgresRepository) SetCartPromo(ctx context.Context, userID int64, code string, discountBP int64) error {
	if _, err := r.ensureCart(ctx, r.pool, userID); err != nil {
		return err
	}

	_, err := r.pool.Exec(ctx,
		`UPDATE carts SET promo_code = $2, promo_discount_bp = $3, updated_at = now()
		 WHERE user_id = $1`,
		userID, code, discountBP,
	)
	if err != nil {
		return fmt.Errorf("set cart promo: %w", err)
	}
	return nil
}

// ClearCartPromo безусловно снимает промокод с корзины.
func (r *PostgresRepository) ClearCartPromo(ctx context.Context, userID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE carts SET promo_code = NULL, promo_discount_bp = NULL, updated_at = now()
		 WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return fmt.Errorf("clear cart promo: %w", err)
	}
	return nil
}

func (r *PostgresRepository) touchCart(ctx context.Context, q querier, cartID int64) error {
	_, err := q.Exec(ctx, `UPDATE carts SET updated_at = now() WHERE id = $1`, cartID)
	if err != nil {
		return fmt.Errorf("touch cart: %w", err)
	}
	return nil
}
