package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/mmeshcher/market-system/internal/model"
)

// CreateDelivery создаёт доставку для существующего заказа. Номер выдаётся
// из глобальной последовательности; уникальность order_id гарантирует не
// более одной доставки на заказ. Доставка с назначенным при создании
// курьером сразу получает статус scheduled, как при AssignDriver.
func (r *PostgresRepository) CreateDelivery(ctx context.Context, d *model.Delivery) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var exists bool
	err = tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM orders WHERE id = $1)`, d.OrderID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check order: %w", err)
	}
	if !exists {
		return ErrOrderNotFound
	}

	var seq int64
	if err := tx.QueryRow(ctx, `SELECT nextval('delivery_seq')`).Scan(&seq); err != nil {
		return fmt.Errorf("next delivery number: %w", err)
	}
	number := fmt.Sprintf("DLV-%06d", seq)

	driverName, driverPhone := "", ""
	status := model.DeliveryStatusPending
	if d.Driver != nil && d.Driver.Name != "" {
		driverName = d.Driver.Name
		driverPhone = d.Driver.Phone
		status = model.DeliveryStatusScheduled
	}

	now := time.Now().UTC()

	err = tx.QueryRow(ctx,
		`INSERT INTO deliveries (
		   number, order_id, driver_name, driver_phone,
		   customer_name, customer_phone, customer_address,
		   scheduled_date, scheduled_time, status, created_at
		 ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		number, d.OrderID, driverName, driverPhone,
		d.Customer.Name, d.Customer.Phone, d.Customer.Address,
		d.ScheduledDate, d.ScheduledTime, string(status), now,
	).Scan(&d.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: order %s", ErrDeliveryExists, d.OrderID)
		}
		return fmt.Errorf("insert delivery: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	d.Number = number
	d.Status = status
	d.CreatedAt = now

	return nil
}

const deliveryColumns = `id, number, order_id, driver_name, driver_phone,
	customer_name, customer_phone, customer_address, scheduled_date,
	scheduled_time, actual_delivery_time, status, COALESCE(proof, ''), created_at`

func scanDelivery(row pgx.Row) (*model.Delivery, error) {
	var d model.Delivery
	var status, driverName, driverPhone string

	err := row.Scan(
		&d.ID, &d.Number, &d.OrderID, &driverName, &driverPhone,
		&d.Customer.Name, &d.Customer.Phone, &d.Customer.Address,
		&d.ScheduledDate, &d.ScheduledTime, &d.ActualDeliveryTime,
		&status, &d.Proof, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	d.Status = model.DeliveryStatus(status)
	if driverName != "" || driverPhone != "" {
		d.Driver = &model.Driver{Name: driverName, Phone: driverPhone}
	}

	return &d, nil
}

func (r *PostgresRepository) loadTracking(ctx context.Context, q querier, deliveryID int64) ([]model.TrackingUpdate, error) {
	rows, err := q.Query(ctx,
		`SELECT status, location, notes, created_at
		 FROM tracking_updates WHERE delivery_id = $1 ORDER BY id`,
		deliveryID,
	)
	if err != nil {
		return nil, fmt.Errorf("select tracking updates: %w", err)
	}
	defer rows.Close()

	var updates []model.TrackingUpdate
	for rows.Next() {
		var u model.TrackingUpdate
		var status string
		if err := rows.Scan(&status, &u.Location, &u.Notes, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tracking update: %w", err)
		}
		u.Status = model.DeliveryStatus(status)
		updates = append(updates, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return updates, nil
}

// GetDelivery возвращает доставку с историей перемещений.
func (r *PostgresRepository) GetDelivery(ctx context.Context, id int64) (*model.Delivery, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE id = $1`, id)

	d, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("get delivery: %w", err)
	}

	d.Tracking, err = r.loadTracking(ctx, r.pool, d.ID)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// GetDeliveryByOrder возвращает доставку, привязанную к заказу, если она есть.
func (r *PostgresRepository) GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*model.Delivery, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+deliveryColumns+` FROM deliveries WHERE order_id = $1`, orderID)

	d, err := scanDelivery(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDeliveryNotFound
		}
		return nil, fmt.Errorf("get delivery by order: %w", err)
	}

	d.Tracking, err = r.loadTracking(ctx, r.pool, d.ID)
	if err != nil {
		return nil, err
	}

	return d, nil
}

// AssignDriver назначает курьера на доставку. Доставка в статусе pending
// автоматически переводится в scheduled.
func (r *PostgresRepository) AssignDriver(ctx context.Context, id int64, driver model.Driver) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE deliveries SET
		   driver_name = $2,
		   driver_phone = $3,
		   status = CASE WHEN status = 'pending' THEN 'scheduled' ELSE status END
		 WHERE id = $1`,
		id, driver.Name, driver.Phone,
	)
	if err != nil {
		return fmt.Errorf("assign driver: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrDeliveryNotFound
	}
	return nil
}

// UpdateDeliveryStatus добавляет запись истории и устанавливает новый статус
// доставки. Допустимость перехода проверяется по статусу, прочитанному под
// блокировкой строки доставки. Запись истории добавляется всегда, даже если
// статус не изменился.
// При первом входе в delivered проставляется фактическое время доставки и в
// той же транзакции статус delivered передаётся в жизненный цикл заказа —
// ровно один раз, что гарантируется блокировкой строки доставки. Возвращает
// признак того, что заказ был синхронизирован.
func (r *PostgresRepository) UpdateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus, location, notes string) (bool, error) {
	var synced bool

	err := r.withRetry(ctx, func() error {
		var err error
		synced, err = r.updateDeliveryStatus(ctx, id, status, location, notes)
		return err
	})

	return synced, err
}

func (r *PostgresRepository) updateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus, location, notes string) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var orderID uuid.UUID
	var current string
	var actualDeliveryTime *time.Time
	err = tx.QueryRow(ctx,
		`SELECT order_id, status, actual_delivery_time FROM deliveries WHERE id = $1 FOR UPDATE`,
		id,
	).Scan(&orderID, &current, &actualDeliveryTime)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrDeliveryNotFound
		}
		return false, fmt.Errorf("lock delivery: %w", err)
	}

	// Переход перепроверяется по статусу, прочитанному под блокировкой:
	// конкурентное обновление могло завершить доставку между валидацией в
	// сервисе и этой транзакцией.
	if !model.CanTransitionDelivery(model.DeliveryStatus(current), status) {
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidStatusTransition, current, status)
	}

	_, err = tx.Exec(ctx,
		`INSERT INTO tracking_updates (delivery_id, status, location, notes) VALUES ($1, $2, $3, $4)`,
		id, string(status), location, notes,
	)
	if err != nil {
		return false, fmt.Errorf("insert tracking update: %w", err)
	}

	firstDelivered := status == model.DeliveryStatusDelivered && actualDeliveryTime == nil

	_, err = tx.Exec(ctx,
		`UPDATE deliveries SET
		   status = $2,
		   actual_delivery_time = CASE WHEN $3 AND actual_delivery_time IS NULL THEN now() ELSE actual_delivery_time END
		 WHERE id = $1`,
		id, string(status), firstDelivered,
	)
	if err != nil {
		return false, fmt.Errorf("update delivery status: %w", err)
	}

	synced := false
	if firstDelivered {
		synced, err = r.pushOrderDelivered(ctx, tx, orderID)
		if err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit tx: %w", err)
	}

	return synced, nil
}

// pushOrderDelivered передаёт статус delivered в жизненный цикл заказа.
// Переход проверяется под блокировкой строки заказа теми же правилами, что
// и административные переходы; для заказа в недопустимом статусе (например,
// отменённого) синхронизация пропускается.
func (r *PostgresRepository) pushOrderDelivered(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (bool, error) {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, orderID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrOrderNotFound
		}
		return false, fmt.Errorf("lock order: %w", err)
	}

	if !model.CanTransitionOrder(model.OrderStatus(status), model.OrderStatusDelivered) {
		return false, nil
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders SET
		   status = $2,
		   delivered_at = CASE WHEN delivered_at IS NULL THEN now() ELSE delivered_at END
		 WHERE id = $1`,
		orderID, string(model.OrderStatusDelivered),
	)
	if err != nil {
		return false, fmt.Errorf("sync order status: %w", err)
	}

	return true, nil
}
