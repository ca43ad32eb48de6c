package handler

import (
	"time"

	"github.com/mmeshcher/market-system/internal/model"
)

type productResponse struct {
	ID             int64  `json:"id"`
	SKU            string `json:"sku"`
	Name           string `json:"name"`
	Price          int64  `json:"price"`
	DiscountPrice  *int64 `json:"discount_price,omitempty"`
	EffectivePrice int64  `json:"effective_price"`
	ImageRef       string `json:"image_ref,omitempty"`
	Stock          int64  `json:"stock"`
}

func toProductResponse(p *model.Product) productResponse {
	return productResponse{
		ID:             p.ID,
		SKU:            p.SKU,
		Name:           p.Name,
		Price:          p.Price,
		DiscountPrice:  p.DiscountPrice,
		EffectivePrice: p.EffectivePrice(),
		ImageRef:       p.ImageRef,
		Stock:          p.Stock,
	}
}

type cartLineResponse struct {
	ProductID   int64  `json:"product_id"`
	Quantity    int64  `json:"quantity"`
	UnitPrice   int64  `json:"unit_price"`
	DisplayName string `json:"display_name"`
	ImageRef    string `json:"image_ref,omitempty"`
}

type cartResponse struct {
	Lines           []cartLineResponse `json:"lines"`
	Subtotal        int64              `json:"subtotal"`
	PromoCode       string             `json:"promo_code,omitempty"`
	PromoDiscountBP int64              `json:"promo_discount_bp,omitempty"`
}

func toCartResponse(c *model.Cart) cartResponse {
	lines := make([]cartLineResponse, 0, len(c.Lines))
	for _, l := range c.Lines {
		lines = append(lines, cartLineResponse{
			ProductID:   l.ProductID,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice,
			DisplayName: l.DisplayName,
			ImageRef:    l.ImageRef,
		})
	}
	return cartResponse{
		Lines:           lines,
		Subtotal:        c.Subtotal,
		PromoCode:       c.PromoCode,
		PromoDiscountBP: c.PromoDiscountBP,
	}
}

type orderLineResponse struct {
	ProductID   int64  `json:"product_id"`
	DisplayName string `json:"display_name"`
	UnitPrice   int64  `json:"unit_price"`
	Quantity    int64  `json:"quantity"`
	ImageRef    string `json:"image_ref,omitempty"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	Number          string              `json:"number"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	ShippingMethod  string              `json:"shipping_method"`
	ShippingCost    int64               `json:"shipping_cost"`
	Subtotal        int64               `json:"subtotal"`
	Discount        int64               `json:"discount"`
	Total           int64               `json:"total"`
	PromoCode       string              `json:"promo_code,omitempty"`
	Lines           []orderLineResponse `json:"lines"`
	BillingAddress  model.Address       `json:"billing_address"`
	ShippingAddress model.Address       `json:"shipping_address"`
	Notes           string              `json:"notes,omitempty"`
	TrackingNumber  string              `json:"tracking_number,omitempty"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	ShippedAt       *string             `json:"shipped_at,omitempty"`
	DeliveredAt     *string             `json:"delivered_at,omitempty"`
	CreatedAt       string              `json:"created_at"`
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}

func toOrderResponse(o *model.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResponse{
			ProductID:   l.ProductID,
			DisplayName: l.DisplayName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			ImageRef:    l.ImageRef,
		})
	}
	return orderResponse{
		ID:              o.ID.String(),
		Number:          o.Number,
		Status:          string(o.Status),
		PaymentMethod:   o.PaymentMethod,
		PaymentStatus:   string(o.PaymentStatus),
		ShippingMethod:  string(o.ShippingMethod),
		ShippingCost:    o.ShippingCost,
		Subtotal:        o.Subtotal,
		Discount:        o.Discount,
		Total:           o.Total,
		PromoCode:       o.PromoCode,
		Lines:           lines,
		BillingAddress:  o.BillingAddress,
		ShippingAddress: o.ShippingAddress,
		Notes:           o.Notes,
		TrackingNumber:  o.TrackingNumber,
		CancelReason:    o.CancelReason,
		ShippedAt:       formatTimePtr(o.ShippedAt),
		DeliveredAt:     formatTimePtr(o.DeliveredAt),
		CreatedAt:       o.CreatedAt.Format(time.RFC3339),
	}
}

type trackingUpdateResponse struct {
	Status    string `json:"status"`
	Location  string `json:"location,omitempty"`
	Notes     string `json:"notes,omitempty"`
	CreatedAt string `json:"created_at"`
}

type deliveryResponse struct {
	ID                 int64                    `json:"id"`
	Number             string                   `json:"number"`
	OrderID            string                   `json:"order_id"`
	Status             string                   `json:"status"`
	Driver             *model.Driver            `json:"driver,omitempty"`
	Customer           model.CustomerInfo       `json:"customer"`
	ScheduledDate      string                   `json:"scheduled_date"`
	ScheduledTime      string                   `json:"scheduled_time"`
	ActualDeliveryTime *string                  `json:"actual_delivery_time,omitempty"`
	Proof              string                   `json:"proof,omitempty"`
	Tracking           []trackingUpdateResponse `json:"tracking"`
	CreatedAt          string                   `json:"created_at"`
}

func toDeliveryResponse(d *model.Delivery) deliveryResponse {
	tracking := make([]trackingUpdateResponse, 0, len(d.Tracking))
	for _, tu := range d.Tracking {
		tracking = append(tracking, trackingUpdateResponse{
			Status:    string(tu.Status),
			Location:  tu.Location,
			Notes:     tu.Notes,
			CreatedAt: tu.CreatedAt.Format(time.RFC3339),
		})
	}
	return deliveryResponse{
		ID:                 d.ID,
		Number:             d.Number,
		OrderID:            d.OrderID.String(),
		Status:             string(d.Status),
		Driver:             d.Driver,
		Customer:           d.Customer,
		ScheduledDate:      d.ScheduledDate,
		ScheduledTime:      d.ScheduledTime,
		ActualDeliveryTime: formatTimePtr(d.ActualDeliveryTime),
		Proof:              d.Proof,
		Tracking:           tracking,
		CreatedAt:          d.CreatedAt.Format(time.RFC3339),
	}
}
