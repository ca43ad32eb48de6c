package service

import (
	"context"
	"fmt"

	"github.com/mmeshcher/market-system/internal/model"
)

// CheckoutInput содержит данные, необходимые для оформления заказа из корзины.
type CheckoutInput struct {
	BillingAddress  model.Address
	ShippingAddress model.Address
	ShippingMethod  model.ShippingMethod
	PaymentMethod   string
	PaymentDetails  string
	Notes           string
}

// Checkout превращает корзину пользователя в неизменяемый заказ: повторно
// проверяет и резервирует остатки, считает итоги, выдаёт номер заказа и
// опустошает корзину. Все перечисленные эффекты выполняются репозиторием в
// одной транзакции, поэтому частичных состояний не остаётся. После фиксации
// отправляется подтверждение заказа (best-effort).
func (s *Service) Checkout(ctx context.Context, userID int64, in CheckoutInput) (*model.Order, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if err != nil {
		return nil, err
	}

	if len(cart.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	shippingCost, ok := shippingCosts[in.ShippingMethod]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownShippingMethod, in.ShippingMethod)
	}

	var discount int64
	if cart.PromoCode != "" {
		discount = cart.Subtotal * cart.PromoDiscountBP / 10000
	}

	lines := make([]model.OrderLine, 0, len(cart.Lines))
	for _, l := range cart.Lines {
		lines = append(lines, model.OrderLine{
			ProductID:   l.ProductID,
			DisplayName: l.DisplayName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			ImageRef:    l.ImageRef,
		})
	}

	// Платёжный шлюз не интегрирован: оплата картой считается успешной,
	// остальные способы ждут подтверждения.
	paymentStatus := model.PaymentStatusPending
	if in.PaymentMethod == "card" {
		paymentStatus = model.PaymentStatusPaid
	}

	order := &model.Order{
		UserID:          userID,
		Lines:           lines,
		BillingAddress:  in.BillingAddress,
		ShippingAddress: in.ShippingAddress,
		ShippingMethod:  in.ShippingMethod,
		ShippingCost:    shippingCost,
		PaymentMethod:   in.PaymentMethod,
		PaymentStatus:   paymentStatus,
		Subtotal:        cart.Subtotal,
		Discount:        discount,
		Total:           cart.Subtotal + shippingCost - discount,
		PromoCode:       cart.PromoCode,
		Notes:           in.Notes,
	}

	if err := s.repo.CreateOrder(ctx, order); err != nil {
		return nil, err
	}

	s.notifyUser(userID, "Order confirmation",
		fmt.Sprintf("Your order %s has been placed. Total: %d.", order.Number, order.Total))

	return order, nil
}
