package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/gofrs/uuid"

	"github.com/mmeshcher/market-system/internal/model"
	"github.com/mmeshcher/market-system/internal/promo"
	"github.com/mmeshcher/market-system/internal/repository"
)

type stubRepo struct {
	cart    *model.Cart
	cartErr error

	createdOrder   *model.Order
	createOrderErr error

	order    *model.Order
	orderErr error

	orders    []model.Order
	ordersErr error

	updateStatusErr error
	cancelErr       error

	delivery        *model.Delivery
	deliveryErr     error
	createdDelivery *model.Delivery

	deliverySynced    bool
	deliveryStatusErr error

	promoCode string
	promoBP   int64
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, login string, passwordHash []byte, role model.Role) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	return nil, repository.ErrUserNotFound
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return &model.User{ID: id, Login: "user@example.com"}, nil
}

func (s *stubRepo) CreateProduct(ctx context.Context, p *model.Product) error { return nil }

func (s *stubRepo) GetProduct(ctx context.Context, id int64) (*model.Product, error) {
	return nil, repository.ErrProductNotFound
}

func (s *stubRepo) ReserveStock(ctx context.Context, productID, qty int64) (int64, error) {
	return 0, nil
}

func (s *stubRepo) ReleaseStock(ctx context.Context, productID, qty int64) error { return nil }

func (s *stubRepo) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	return s.cart, s.cartErr
}

func (s *stubRepo) AddCartLine(ctx context.Context, userID, productID, qty int64) error { return nil }

func (s *stubRepo) UpdateCartLineQty(ctx context.Context, userID, productID, qty int64) error {
	return nil
}

func (s *stubRepo) RemoveCartLine(ctx context.Context, userID, productID int64) error { return nil }

func (s *stubRepo) ClearCart(ctx context.Context, userID int64) error { return nil }

func (s *stubRepo) SetCartPromo(ctx context.Context, userID int64, code string, discountBP int64) error {
	s.promoCode = code
	s.promoBP = discountBP
	return nil
}

func (s *stubRepo) ClearCartPromo(ctx context.Context, userID int64) error {
	s.promoCode = ""
	s.promoBP = 0
	return nil
}

func (s *stubRepo) CreateOrder(ctx context.Context, order *model.Order) error {
	if s.createOrderErr != nil {
		return s.createOrderErr
	}
	order.ID = uuid.Must(uuid.NewV4())
	order.Number = "ORD2608280001"
	order.Status = model.OrderStatusPending
	s.createdOrder = order
	return nil
}

func (s *stubRepo) GetOrderByID(ctx context.Context, id uuid.UUID) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubRepo) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubRepo) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.orders, s.ordersErr
}

func (s *stubRepo) UpdateOrderStatus(ctx context.Context, id uuid.UUID, status model.OrderStatus, trackingNumber string) error {
	if s.updateStatusErr != nil {
		return s.updateStatusErr
	}
	if s.order != nil {
		s.order.Status = status
		s.order.TrackingNumber = trackingNumber
	}
	return nil
}

func (s *stubRepo) CancelOrder(ctx context.Context, id uuid.UUID, reason string) error {
	if s.cancelErr != nil {
		return s.cancelErr
	}
	if s.order != nil {
		s.order.Status = model.OrderStatusCancelled
		s.order.CancelReason = reason
	}
	return nil
}

func (s *stubRepo) DeleteOrder(ctx context.Context, id uuid.UUID) error { return nil }

func (s *stubRepo) CreateDelivery(ctx context.Context, d *model.Delivery) error {
	d.ID = 1
	d.Number = "DLV-000001"
	s.createdDelivery = d
	return nil
}

func (s *stubRepo) GetDelivery(ctx context.Context, id int64) (*model.Delivery, error) {
	return s.delivery, s.deliveryErr
}

func (s *stubRepo) GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*model.Delivery, error) {
	return s.delivery, s.deliveryErr
}

func (s *stubRepo) AssignDriver(ctx context.Context, id int64, driver model.Driver) error {
	return nil
}

func (s *stubRepo) UpdateDeliveryStatus(ctx context.Context, id int64, status model.DeliveryStatus, location, notes string) (bool, error) {
	if s.deliveryStatusErr != nil {
		return false, s.deliveryStatusErr
	}
	if s.delivery != nil {
		s.delivery.Status = status
	}
	return s.deliverySynced, nil
}

func testPromos() promo.Registry {
	return promo.NewStatic(
		promo.Rule{Code: "SAVE20", DiscountBP: 2000, MinSubtotal: 50000},
	)
}

func TestCheckout_EmptyCart(t *testing.T) {
	repo := &stubRepo{cart: &model.Cart{UserID: 1}}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.Checkout(context.Background(), 1, CheckoutInput{ShippingMethod: model.ShippingStandard})
	if !errors.Is(err, ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCheckout_UnknownShippingMethod(t *testing.T) {
	repo := &stubRepo{cart: &model.Cart{
		UserID:   1,
		Lines:    []model.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000}},
		Subtotal: 1000,
	}}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.Checkout(context.Background(), 1, CheckoutInput{ShippingMethod: "drone"})
	if !errors.Is(err, ErrUnknownShippingMethod) {
		t.Fatalf("expected ErrUnknownShippingMethod, got %v", err)
	}
}

func TestCheckout_Totals(t *testing.T) {
	repo := &stubRepo{cart: &model.Cart{
		UserID: 1,
		Lines: []model.CartLine{
			{ProductID: 1, Quantity: 2, UnitPrice: 25000, DisplayName: "keyboard"},
			{ProductID: 2, Quantity: 1, UnitPrice: 10000, DisplayName: "mouse"},
		},
		Subtotal:        60000,
		PromoCode:       "SAVE20",
		PromoDiscountBP: 2000,
	}}
	svc := NewService(repo, testPromos(), nil, nil)

	order, err := svc.Checkout(context.Background(), 1, CheckoutInput{
		ShippingMethod: model.ShippingStandard,
		PaymentMethod:  "card",
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}

	if order.Subtotal != 60000 {
		t.Fatalf("Subtotal = %d, want 60000", order.Subtotal)
	}
	if order.Discount != 12000 {
		t.Fatalf("Discount = %d, want 12000", order.Discount)
	}
	if order.ShippingCost != 1590 {
		t.Fatalf("ShippingCost = %d, want 1590", order.ShippingCost)
	}
	if order.Total != 49590 {
		t.Fatalf("Total = %d, want 49590", order.Total)
	}
	if order.PaymentStatus != model.PaymentStatusPaid {
		t.Fatalf("PaymentStatus = %s, want paid", order.PaymentStatus)
	}
	if len(order.Lines) != 2 || order.Lines[0].DisplayName != "keyboard" {
		t.Fatalf("unexpected order lines: %+v", order.Lines)
	}
}

func TestCheckout_PickupIsFree(t *testing.T) {
	repo := &stubRepo{cart: &model.Cart{
		UserID:   1,
		Lines:    []model.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 5000}},
		Subtotal: 5000,
	}}
	svc := NewService(repo, testPromos(), nil, nil)

	order, err := svc.Checkout(context.Background(), 1, CheckoutInput{
		ShippingMethod: model.ShippingPickup,
		PaymentMethod:  "cash",
	})
	if err != nil {
		t.Fatalf("Checkout error: %v", err)
	}
	if order.ShippingCost != 0 || order.Total != 5000 {
		t.Fatalf("ShippingCost = %d, Total = %d, want 0 and 5000", order.ShippingCost, order.Total)
	}
	if order.PaymentStatus != model.PaymentStatusPending {
		t.Fatalf("PaymentStatus = %s, want pending", order.PaymentStatus)
	}
}

func TestApplyPromo_MinimumNotMet(t *testing.T) {
	repo := &stubRepo{cart: &model.Cart{
		UserID:   1,
		Lines:    []model.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 2000}},
		Subtotal: 2000,
	}}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.ApplyPromo(context.Background(), 1, "SAVE20")
	if !errors.Is(err, ErrMinimumNotMet) {
		t.Fatalf("expected ErrMinimumNotMet, got %v", err)
	}
	if repo.promoCode != "" {
		t.Fatalf("promo must not be stored when minimum not met, got %q", repo.promoCode)
	}
}

func TestApplyPromo_UnknownCode(t *testing.T) {
	repo := &stubRepo{cart: &model.Cart{
		UserID:   1,
		Lines:    []model.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 60000}},
		Subtotal: 60000,
	}}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.ApplyPromo(context.Background(), 1, "NOPE")
	if !errors.Is(err, promo.ErrUnknownCode) {
		t.Fatalf("expected ErrUnknownCode, got %v", err)
	}
}

func TestApplyPromo_StoresRule(t *testing.T) {
	repo := &stubRepo{cart: &model.Cart{
		UserID:   1,
		Lines:    []model.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 60000}},
		Subtotal: 60000,
	}}
	svc := NewService(repo, testPromos(), nil, nil)

	if _, err := svc.ApplyPromo(context.Background(), 1, "save20"); err != nil {
		t.Fatalf("ApplyPromo error: %v", err)
	}
	if repo.promoCode != "SAVE20" || repo.promoBP != 2000 {
		t.Fatalf("stored promo = %q/%d, want SAVE20/2000", repo.promoCode, repo.promoBP)
	}
}

func TestSetOrderStatus_RejectsUnknownStatus(t *testing.T) {
	svc := NewService(&stubRepo{}, testPromos(), nil, nil)

	_, err := svc.SetOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), "unknown", "")
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestSetOrderStatus_RejectsCancellation(t *testing.T) {
	svc := NewService(&stubRepo{}, testPromos(), nil, nil)

	_, err := svc.SetOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), model.OrderStatusCancelled, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetOrderStatus_RejectsBackwardTransition(t *testing.T) {
	repo := &stubRepo{order: &model.Order{Status: model.OrderStatusShipped}}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.SetOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), model.OrderStatusProcessing, "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestSetOrderStatus_SameStatusNoOp(t *testing.T) {
	repo := &stubRepo{order: &model.Order{Status: model.OrderStatusProcessing}}
	svc := NewService(repo, testPromos(), nil, nil)

	order, err := svc.SetOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), model.OrderStatusProcessing, "")
	if err != nil {
		t.Fatalf("SetOrderStatus error: %v", err)
	}
	if order.Status != model.OrderStatusProcessing {
		t.Fatalf("Status = %s, want processing", order.Status)
	}
}

func TestSetOrderStatus_ForwardTransition(t *testing.T) {
	repo := &stubRepo{order: &model.Order{Status: model.OrderStatusProcessing}}
	svc := NewService(repo, testPromos(), nil, nil)

	order, err := svc.SetOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), model.OrderStatusShipped, "TRACK-1")
	if err != nil {
		t.Fatalf("SetOrderStatus error: %v", err)
	}
	if order.Status != model.OrderStatusShipped || order.TrackingNumber != "TRACK-1" {
		t.Fatalf("unexpected order after update: %+v", order)
	}
}

func TestSetOrderStatus_PropagatesStorageConflict(t *testing.T) {
	// Хранилище перепроверяет переход под блокировкой строки: заказ мог быть
	// отменён между чтением в сервисе и транзакцией обновления.
	repo := &stubRepo{
		order:           &model.Order{Status: model.OrderStatusProcessing},
		updateStatusErr: repository.ErrInvalidStatusTransition,
	}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.SetOrderStatus(context.Background(), uuid.Must(uuid.NewV4()), model.OrderStatusShipped, "")
	if !errors.Is(err, repository.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestUpdateDeliveryStatus_PropagatesStorageConflict(t *testing.T) {
	repo := &stubRepo{
		delivery:          &model.Delivery{ID: 1, Status: model.DeliveryStatusInTransit},
		deliveryStatusErr: repository.ErrInvalidStatusTransition,
	}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.UpdateDeliveryStatus(context.Background(), 1, model.DeliveryStatusInTransit, "", "")
	if !errors.Is(err, repository.ErrInvalidStatusTransition) {
		t.Fatalf("expected ErrInvalidStatusTransition, got %v", err)
	}
}

func TestCreateDelivery_DriverPassedThrough(t *testing.T) {
	repo := &stubRepo{delivery: &model.Delivery{ID: 1, Status: model.DeliveryStatusScheduled}}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.CreateDelivery(context.Background(), CreateDeliveryInput{
		OrderID: uuid.Must(uuid.NewV4()),
		Driver:  &model.Driver{Name: "Petr", Phone: "555-01"},
	})
	if err != nil {
		t.Fatalf("CreateDelivery error: %v", err)
	}
	if repo.createdDelivery == nil || repo.createdDelivery.Driver == nil {
		t.Fatalf("driver not passed to storage: %+v", repo.createdDelivery)
	}
	if repo.createdDelivery.Driver.Name != "Petr" {
		t.Fatalf("driver name = %q, want Petr", repo.createdDelivery.Driver.Name)
	}
}

func TestCancelOrder_AccessDenied(t *testing.T) {
	repo := &stubRepo{order: &model.Order{UserID: 2, Status: model.OrderStatusPending}}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.CancelOrder(context.Background(), uuid.Must(uuid.NewV4()), 1, model.RoleUser, "changed my mind")
	if !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied, got %v", err)
	}
}

func TestCancelOrder_AdminBypassesOwnership(t *testing.T) {
	repo := &stubRepo{order: &model.Order{UserID: 2, Status: model.OrderStatusPending}}
	svc := NewService(repo, testPromos(), nil, nil)

	order, err := svc.CancelOrder(context.Background(), uuid.Must(uuid.NewV4()), 1, model.RoleAdmin, "fraud")
	if err != nil {
		t.Fatalf("CancelOrder error: %v", err)
	}
	if order.Status != model.OrderStatusCancelled || order.CancelReason != "fraud" {
		t.Fatalf("unexpected order after cancel: %+v", order)
	}
}

func TestCancelOrder_PropagatesNotCancellable(t *testing.T) {
	repo := &stubRepo{
		order:     &model.Order{UserID: 1, Status: model.OrderStatusShipped},
		cancelErr: repository.ErrOrderNotCancellable,
	}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.CancelOrder(context.Background(), uuid.Must(uuid.NewV4()), 1, model.RoleUser, "")
	if !errors.Is(err, repository.ErrOrderNotCancellable) {
		t.Fatalf("expected ErrOrderNotCancellable, got %v", err)
	}
}

func TestGetOrderForUser_OwnerAndAdmin(t *testing.T) {
	repo := &stubRepo{order: &model.Order{UserID: 7}}
	svc := NewService(repo, testPromos(), nil, nil)

	if _, err := svc.GetOrderForUser(context.Background(), uuid.Must(uuid.NewV4()), 7, model.RoleUser); err != nil {
		t.Fatalf("owner access error: %v", err)
	}
	if _, err := svc.GetOrderForUser(context.Background(), uuid.Must(uuid.NewV4()), 1, model.RoleAdmin); err != nil {
		t.Fatalf("admin access error: %v", err)
	}
	if _, err := svc.GetOrderForUser(context.Background(), uuid.Must(uuid.NewV4()), 1, model.RoleUser); !errors.Is(err, ErrAccessDenied) {
		t.Fatalf("expected ErrAccessDenied for stranger, got %v", err)
	}
}

func TestTrackOrder_NoDeliveryYet(t *testing.T) {
	repo := &stubRepo{
		order:       &model.Order{UserID: 1, Number: "ORD2608280001"},
		deliveryErr: repository.ErrDeliveryNotFound,
	}
	svc := NewService(repo, testPromos(), nil, nil)

	info, err := svc.TrackOrder(context.Background(), "ORD2608280001", 1, model.RoleUser)
	if err != nil {
		t.Fatalf("TrackOrder error: %v", err)
	}
	if info.Delivery != nil {
		t.Fatalf("expected nil delivery, got %+v", info.Delivery)
	}
	if info.Order == nil || info.Order.Number != "ORD2608280001" {
		t.Fatalf("unexpected order: %+v", info.Order)
	}
}

func TestUpdateDeliveryStatus_RejectsInvalidTransition(t *testing.T) {
	repo := &stubRepo{delivery: &model.Delivery{ID: 1, Status: model.DeliveryStatusFailed}}
	svc := NewService(repo, testPromos(), nil, nil)

	_, err := svc.UpdateDeliveryStatus(context.Background(), 1, model.DeliveryStatusInTransit, "", "")
	if !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
}

func TestUpdateDeliveryStatus_ForwardTransition(t *testing.T) {
	repo := &stubRepo{delivery: &model.Delivery{ID: 1, Status: model.DeliveryStatusScheduled}}
	svc := NewService(repo, testPromos(), nil, nil)

	d, err := svc.UpdateDeliveryStatus(context.Background(), 1, model.DeliveryStatusInTransit, "warehouse", "")
	if err != nil {
		t.Fatalf("UpdateDeliveryStatus error: %v", err)
	}
	if d.Status != model.DeliveryStatusInTransit {
		t.Fatalf("Status = %s, want in_transit", d.Status)
	}
}

// stockRepo моделирует атомарное резервирование остатков, чтобы проверить
// поведение конкурентного оформления заказа.
type stockRepo struct {
	stubRepo

	mu    sync.Mutex
	stock int64
}

func (s *stockRepo) GetCart(ctx context.Context, userID int64) (*model.Cart, error) {
	return &model.Cart{
		UserID:   userID,
		Lines:    []model.CartLine{{ProductID: 1, Quantity: 1, UnitPrice: 1000}},
		Subtotal: 1000,
	}, nil
}

func (s *stockRepo) CreateOrder(ctx context.Context, order *model.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stock < 1 {
		return fmt.Errorf("%w: product 1", repository.ErrInsufficientStock)
	}
	s.stock--
	order.ID = uuid.Must(uuid.NewV4())
	order.Status = model.OrderStatusPending
	return nil
}

func TestCheckout_ConcurrentLastItem(t *testing.T) {
	repo := &stockRepo{stock: 1}
	svc := NewService(repo, testPromos(), nil, nil)

	errs := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), 1, CheckoutInput{
				ShippingMethod: model.ShippingPickup,
				PaymentMethod:  "cash",
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var ok, insufficient int
	for err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, repository.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if ok != 1 || insufficient != 1 {
		t.Fatalf("got %d successes and %d stock errors, want exactly one of each", ok, insufficient)
	}
}
