package service

import (
	"context"

	"github.com/mmeshcher/market-system/internal/model"
)

// GetCart возвращает корзину пользователя, создавая пустую при первом
// обращении.
func (s *Service) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	return s.repo.GetCart(ctx, userID)
}

// AddToCart добавляет qty единиц товара в корзину и возвращает обновлённую
// корзину. Остаток проверяется по текущему значению товарного учёта, но не
// резервируется: резервирование происходит только при оформлении заказа.
func (s *Service) AddToCart(ctx context.Context, userID, productID, qty int64) (*model.Cart, error) {
	if err := s.repo.AddCartLine(ctx, userID, productID, qty); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, userID)
}

// UpdateCartLine устанавливает новое количество позиции корзины.
func (s *Service) UpdateCartLine(ctx context.Context, userID, productID, qty int64) (*model.Cart, error) {
	if err := s.repo.UpdateCartLineQty(ctx, userID, productID, qty); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, userID)
}

// RemoveCartLine удаляет позицию из корзины; отсутствие позиции не ошибка.
func (s *Service) RemoveCartLine(ctx context.Context, userID, productID int64) (*model.Cart, error) {
	if err := s.repo.RemoveCartLine(ctx, userID, productID); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, userID)
}

// ClearCart опустошает корзину пользователя.
func (s *Service) ClearCart(ctx context.Context, userID int64) error {
	return s.repo.ClearCart(ctx, userID)
}

// ApplyPromo применяет промокод к корзине. Код должен существовать в
// справочнике, а сумма корзины — достигать минимального порога правила.
// Сумма корзины при этом не пересчитывается: скидка применяется при
// оформлении заказа.
func (s *Service) ApplyPromo(ctx context.Context, userID int64, code string) (*model.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	rule, err := s.promos.Rule(ctx, code)
	if err != nil {
		return nil, err
	}

	if cart.Subtotal < rule.MinSubtotal {
		return nil, ErrMinimumNotMet
	}

	if err := s.repo.SetCartPromo(ctx, userID, rule.Code, rule.DiscountBP); err != nil {
		return nil, err
	}

	return s.repo.GetCart(ctx, userID)
}

// RemovePromo безусловно снимает промокод с корзины.
func (s *Service) RemovePromo(ctx context.Context, userID int64) (*model.Cart, error) {
	if err := s.repo.ClearCartPromo(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetCart(ctx, userID)
}
