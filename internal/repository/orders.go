package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/market-system/internal/model"
)

const orderNumberPrefix = "ORD"

// formatOrderNumber собирает человекочитаемый номер заказа из даты и
// порядкового номера в пределах дня.
func formatOrderNumber(day time.Time, seq int64) string {
	return fmt.Sprintf("%s%s%04d", orderNumberPrefix, day.Format("060102"), seq)
}

// nextOrderNumber выдаёт следующий номер заказа. Счётчик ведётся отдельной
// строкой на каждый день и инкрементируется одним атомарным UPSERT, поэтому
// конкурентные оформления в один день не могут получить одинаковый номер.
func (r *PostgresRepository) nextOrderNumber(ctx context.Context, q querier, now time.Time) (string, error) {
	day := now.UTC().Truncate(24 * time.Hour)

	var seq int64
	err := q.QueryRow(ctx,
		`INSERT INTO order_counters (day, last_value) VALUES ($1, 1)
		 ON CONFLICT (day) DO UPDATE SET last_value = order_counters.last_value + 1
		 RETURNING last_value`,
		day,
	).Scan(&seq)
	if err != nil {
		return "", fmt.Errorf("next order number: %w", err)
	}

	return formatOrderNumber(day, seq), nil
}

// CreateOrder выполняет оформление заказа одной транзакцией: повторно
// резервирует остаток по каждой позиции, выдаёт номер заказа, сохраняет
// заказ с замороженными копиями позиций и опустошает корзину. Любая
// неудача откатывает все эффекты, включая уже выполненные резервирования.
func (r *PostgresRepository) CreateOrder(ctx context.Context, order *model.Order) error {
	return r.withRetry(ctx, func() error {
		return r.createOrder(ctx, order)
	})
}

func (r *PostgresRepository) createOrder(ctx context.Context, order *model.Order) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, line := range order.Lines {
		if _, err := r.reserveStock(ctx, tx, line.ProductID, line.Quantity); err != nil {
			return err
		}
	}

	now := time.Now().UTC()

	number, err := r.nextOrderNumber(ctx, tx, now)
	if err != nil {
		return err
	}

	id, err := uuid.NewV4()
	if err != nil {
		return fmt.Errorf("generate order id: %w", err)
	}

	billing, err := json.Marshal(order.BillingAddress)
	if err != nil {
		return fmt.Errorf("marshal billing address: %w", err)
	}
	shipping, err := json.Marshal(order.ShippingAddress)
	if err != nil {
		return fmt.Errorf("marshal shipping address: %w", err)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO orders (
		   id, number, user_id, status, payment_method, payment_status,
		   shipping_method, shipping_cost, subtotal, discount, total,
		   promo_code, notes, billing_address, shipping_address, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		id, number, order.UserID, string(model.OrderStatusPending),
		order.PaymentMethod, string(order.PaymentStatus),
		string(order.ShippingMethod), order.ShippingCost,
		order.Subtotal, order.Discount, order.Total,
		order.PromoCode, order.Notes, billing, shipping, now,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	for _, line := range order.Lines {
		_, err = tx.Exec(ctx,
			`INSERT INTO order_lines (order_id, product_id, display_name, unit_price, quantity, image_ref)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			id, line.ProductID, line.DisplayName, line.UnitPrice, line.Quantity, line.ImageRef,
		)
		if err != nil {
			return fmt.Errorf("insert order line: %w", err)
		}
	}

	if err := r.clearCartTx(ctx, tx, order.UserID); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	order.ID = id
	order.Number = number
	order.Status = model.OrderStatusPending
	order.CreatedAt = now

	return nil
}

const orderColumns = `id, number, user_id, status, payment_method, payment_status,
	shipping_method, shipping_cost, subtotal, discount, total, promo_code, notes,
	billing_address, shipping_address, COALESCE(tracking_number, ''),
	COALESCE(cancel_reason, ''), shipped_at, delivered_at, created_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status, paymentStatus, shippingMethod string
	var billing, shipping []byte

	err := row.Scan(
		&o.ID, &o.Number, &o.UserID, &status, &o.PaymentMethod, &paymentStatus,
		&shippingMethod, &o.ShippingCost, &o.Subtotal, &o.Discount, &o.Total,
		&o.PromoCode, &o.Notes, &billing, &shipping, &o.TrackingNumber,
		&o.CancelReason, &o.ShippedAt, &o.DeliveredAt, &o.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	o.ShippingMethod = model.ShippingMethod(shippingMethod)

	if err := json.Unmarshal(billing, &o.BillingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal billing address: %w", err)
	}
	if err := json.Unmarshal(shipping, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshal shipping address: %w", err)
	}

	return &o, nil
}

func (r *PostgresRepository) loadOrderLines(ctx context.Context, q querier, orderID uuid.UUID) ([]model.OrderLine, error) {
	rows, err := q.Query(ctx,
		`SELECT product_id, display_name, unit_price, quantity, image_ref
		 FROM order_lines WHERE order_id = $1 ORDER BY id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	defer rows.Close()

	var lines []model.OrderLine
	for rows.Next() {
		var l model.OrderLine
		if err := rows.Scan(&l.ProductID, &l.DisplayName, &l.UnitPrice, &l.Quantity, &l.ImageRef); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		lines = append(lines, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return lines, nil
}

// GetOrderByID возвращает заказ с позициями по системному идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	o.Lines, err = r.loadOrderLines(ctx, r.pool, o.ID)
	if err != nil {
		return nil, err
	}

	return o, nil
}

// GetOrderByNumber возвращает заказ с позициями по человекочитаемому номеру.
func (r *PostgresRepository) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by number: %w", err)
	}

	o.Lines, err = r.loadOrderLines(ctx, r.pool, o.ID)
	if err != nil {
		return nil, err
	}

	return o, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	ordersMap := make(map[uuid.UUID]*model.Order)
	var orderIDs []uuid.UUID
	var orders []*model.Order

	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		ordersMap[o.ID] = o
		orderIDs = append(orderIDs, o.ID)
		orders = append(orders, o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if len(orderIDs) == 0 {
		return []model.Order{}, nil
	}

	lineRows, err := r.pool.Query(ctx,
		`SELECT order_id, product_id, display_name, unit_price, quantity, image_ref
		 FROM order_lines WHERE order_id = ANY($1) ORDER BY id`,
		orderIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("select order lines: %w", err)
	}
	defer lineRows.Close()

	for lineRows.Next() {
		var orderID uuid.UUID
		var l model.OrderLine
		if err := lineRows.Scan(&orderID, &l.ProductID, &l.DisplayName, &l.UnitPrice, &l.Quantity, &l.ImageRef); err != nil {
			return nil, fmt.Errorf("scan order line: %w", err)
		}
		if o, ok := ordersMap[orderID]; ok {
			o.Lines = append(o.Lines, l)
		}
	}

	if err := lineRows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	res := make([]model.Order, 0, len(orders))
	for _, o := range orders {
		res = append(res, *o)
	}

	return res, nil
}

// UpdateOrderStatus переводит заказ в новый статус. Текущий статус читается
// под блокировкой строки заказа, и допустимость перехода проверяется заново
// в той же транзакции: конкурентная отмена или доставка, успевшая завершить
// заказ, не может быть перезаписана устаревшим административным переходом.
// Повтор текущего статуса — no-op. При первом входе в shipped/delivered
// проставляются соответствующие отметки времени; трек-номер записывается,
// если передан непустым.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, trackingNumber string) error {
	return r.withRetry(ctx, func() error {
		return r.updateOrderStatus(ctx, id, status, trackingNumber)
	})
}

func (r *PostgresRepository) updateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, trackingNumber string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	if model.OrderStatus(current) == status {
		return nil
	}

	if !model.CanTransitionOrder(model.OrderStatus(current), status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, status)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET
		   status = $2,
		   tracking_number = COALESCE(NULLIF($3, ''), tracking_number),
		   shipped_at = CASE WHEN $2 = 'shipped' AND shipped_at IS NULL THEN now() ELSE shipped_at END,
		   delivered_at = CASE WHEN $2 = 'delivered' AND delivered_at IS NULL THEN now() ELSE delivered_at END
		 WHERE id = $1`,
		id, string(status), trackingNumber,
	)
	if err != nil {
		return fmt.Errorf("update order status: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// CancelOrder отменяет заказ и возвращает остатки по всем его позициям.
// Статус проверяется под блокировкой строки заказа, поэтому повторная отмена
// не может вернуть остаток дважды.
func (r *PostgresRepository) CancelOrder(ctx context.Context, id uuid.UUID, reason string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	current := model.OrderStatus(status)
	if current != model.OrderStatusPending && current != model.OrderStatusProcessing {
		return fmt.Errorf("%w: status %s", ErrOrderNotCancellable, current)
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET status = $2, cancel_reason = $3 WHERE id = $1`,
		id, string(model.OrderStatusCancelled), reason,
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}

	if err := r.restoreOrderStock(ctx, tx, id); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// DeleteOrder удаляет заказ вместе с позициями и доставкой. Для заказа, ещё
// не отменённого, остатки возвращаются в той же транзакции; для отменённого
// возврат уже произошёл при отмене и не повторяется.
func (r *PostgresRepository) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	if model.OrderStatus(status) != model.OrderStatusCancelled {
		if err := r.restoreOrderStock(ctx, tx, id); err != nil {
			return err
		}
	}

	_, err = tx.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// restoreOrderStock возвращает остатки по всем позициям заказа. Зеркальная
// операция к резервированию при оформлении.
func (r *PostgresRepository) restoreOrderStock(ctx context.Context, q querier, orderID uuid.UUID) error {
	lines, err := r.loadOrderLines(ctx, q, orderID)
	if err != nil {
		return err
	}

	for _, l := range lines {
		if err := r.releaseStock(ctx, q, l.ProductID, l.Quantity); err != nil {
			return err
		}
	}

	return nil
}
