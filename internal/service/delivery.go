package service

import (
	"context"
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/mmeshcher/market-system/internal/model"
)

// CreateDeliveryInput содержит данные для создания доставки заказа.
// Курьер может быть назначен сразу при создании.
type CreateDeliveryInput struct {
	OrderID       uuid.UUID
	Driver        *model.Driver
	Customer      model.CustomerInfo
	ScheduledDate string
	ScheduledTime string
}

// CreateDelivery создаёт доставку для заказа (административная операция).
// На один заказ допускается не более одной доставки. Если курьер назначен
// сразу, доставка создаётся в статусе scheduled, минуя pending.
func (s *Service) CreateDelivery(ctx context.Context, in CreateDeliveryInput) (*model.Delivery, error) {
	d := &model.Delivery{
		OrderID:       in.OrderID,
		Driver:        in.Driver,
		Customer:      in.Customer,
		ScheduledDate: in.ScheduledDate,
		ScheduledTime: in.ScheduledTime,
	}

	if err := s.repo.CreateDelivery(ctx, d); err != nil {
		return nil, err
	}

	return s.repo.GetDelivery(ctx, d.ID)
}

// GetDelivery возвращает доставку по идентификатору вместе с историей
// перемещений.
func (s *Service) GetDelivery(ctx context.Context, id int64) (*model.Delivery, error) {
	return s.repo.GetDelivery(ctx, id)
}

// AssignDriver назначает курьера на доставку. Доставка в статусе pending
// при этом переводится в scheduled.
func (s *Service) AssignDriver(ctx context.Context, id int64, driver model.Driver) (*model.Delivery, error) {
	if err := s.repo.AssignDriver(ctx, id, driver); err != nil {
		return nil, err
	}
	return s.repo.GetDelivery(ctx, id)
}

// UpdateDeliveryStatus переводит доставку в новый статус и добавляет запись
// истории перемещений. Проверка перехода здесь отсеивает заведомо
// недопустимые запросы; окончательно переход подтверждается хранилищем под
// блокировкой строки. При первом переходе в delivered статус заказа
// синхронизируется в той же транзакции, и владельцу заказа отправляется
// уведомление.
func (s *Service) UpdateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus, location, notes string) (*model.Delivery, error) {
	if !model.IsValidDeliveryStatus(status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}

	current, err := s.repo.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}

	if !model.CanTransitionDelivery(current.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current.Status, status)
	}

	synced, err := s.repo.UpdateDeliveryStatus(ctx, id, status, location, notes)
	if err != nil {
		return nil, err
	}

	delivery, err := s.repo.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}

	if synced {
		if order, err := s.repo.GetOrderByID(ctx, delivery.OrderID); err == nil {
			s.notifyUser(order.UserID, "Order delivered",
				fmt.Sprintf("Your order %s has been delivered.", order.Number))
		}
	}

	return delivery, nil
}
