package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"

	"github.com/mmeshcher/market-system/internal/model"
	"github.com/mmeshcher/market-system/internal/repository"
)

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}

// GetOrderForUser возвращает заказ по идентификатору, если он принадлежит
// пользователю или запрашивает администратор.
func (s *Service) GetOrderForUser(ctx context.Context, id uuid.UUID, userID int64, role model.Role) (*model.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != model.RoleAdmin {
		return nil, ErrAccessDenied
	}
	return order, nil
}

// GetOrderByNumberForUser возвращает заказ по публичному номеру с той же
// проверкой владения, что и GetOrderForUser.
func (s *Service) GetOrderByNumberForUser(ctx context.Context, number string, userID int64, role model.Role) (*model.Order, error) {
	order, err := s.repo.GetOrderByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != model.RoleAdmin {
		return nil, ErrAccessDenied
	}
	return order, nil
}

// SetOrderStatus переводит заказ в новый статус (административная операция).
// Отмена через эту операцию запрещена: у неё своя ветка с возвратом остатков.
// Повтор текущего статуса — no-op. Проверка перехода здесь отсеивает заведомо
// недопустимые запросы; окончательно переход подтверждается хранилищем под
// блокировкой строки заказа, поэтому конкурентная отмена не может быть
// перезаписана.
func (s *Service) SetOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, trackingNumber string) (*model.Order, error) {
	if !model.IsValidOrderStatus(status) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if status == model.OrderStatusCancelled {
		return nil, fmt.Errorf("%w: use cancellation instead", ErrInvalidTransition)
	}

	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if order.Status == status {
		return order, nil
	}

	if !model.CanTransitionOrder(order.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, order.Status, status)
	}

	if err := s.repo.UpdateOrderStatus(ctx, id, status, trackingNumber); err != nil {
		return nil, err
	}

	order, err = s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifyUser(order.UserID, "Order status updated",
		fmt.Sprintf("Your order %s is now %s.", order.Number, order.Status))

	return order, nil
}

// CancelOrder отменяет заказ от имени владельца или администратора. Остатки
// зарезервированных товаров возвращаются на склад в той же транзакции.
func (s *Service) CancelOrder(ctx context.Context, id uuid.UUID, userID int64, role model.Role, reason string) (*model.Order, error) {
	order, err := s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID && role != model.RoleAdmin {
		return nil, ErrAccessDenied
	}

	if err := s.repo.CancelOrder(ctx, id, reason); err != nil {
		return nil, err
	}

	order, err = s.repo.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.notifyUser(order.UserID, "Order cancelled",
		fmt.Sprintf("Your order %s has been cancelled.", order.Number))

	return order, nil
}

// DeleteOrder физически удаляет заказ (административная операция). Остатки
// возвращаются на склад, если заказ не был отменён ранее.
func (s *Service) DeleteOrder(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteOrder(ctx, id)
}

// TrackingInfo объединяет заказ и его доставку для отслеживания.
type TrackingInfo struct {
	Order    *model.Order
	Delivery *model.Delivery
}

// TrackOrder возвращает заказ по номеру вместе с доставкой, если она создана.
func (s *Service) TrackOrder(ctx context.Context, number string, userID int64, role model.Role) (*TrackingInfo, error) {
	order, err := s.GetOrderByNumberForUser(ctx, number, userID, role)
	if err != nil {
		return nil, err
	}
	return s.trackingFor(ctx, order)
}

// TrackOrderByID — то же, что TrackOrder, но по системному идентификатору заказа.
func (s *Service) TrackOrderByID(ctx context.Context, id uuid.UUID, userID int64, role model.Role) (*TrackingInfo, error) {
	order, err := s.GetOrderForUser(ctx, id, userID, role)
	if err != nil {
		return nil, err
	}
	return s.trackingFor(ctx, order)
}

func (s *Service) trackingFor(ctx context.Context, order *model.Order) (*TrackingInfo, error) {
	delivery, err := s.repo.GetDeliveryByOrder(ctx, order.ID)
	if err != nil {
		if !errors.Is(err, repository.ErrDeliveryNotFound) {
			return nil, err
		}
		delivery = nil
	}

	return &TrackingInfo{Order: order, Delivery: delivery}, nil
}
