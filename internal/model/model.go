// Package model содержит доменные сущности интернет-магазина.
package model

import (
	"time"

	"github.com/gofrs/uuid"
)

// Role описывает роль пользователя в системе.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User представляет зарегистрированного пользователя магазина.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// Product описывает товар каталога. Поле Stock — авторитетный остаток
// товарного учёта; все списания и возвраты проходят через атомарные
// операции репозитория.
type Product struct {
	ID            int64
	SKU           string
	Name          string
	Price         int64
	DiscountPrice *int64
	ImageRef      string
	Stock         int64
	CreatedAt     time.Time
}

// EffectivePrice возвращает действующую цену товара: цену со скидкой,
// если она задана, иначе базовую.
func (p *Product) EffectivePrice() int64 {
	if p.DiscountPrice != nil {
		return *p.DiscountPrice
	}
	return p.Price
}

// CartLine представляет одну позицию корзины со снимком цены на момент
// добавления товара.
type CartLine struct {
	ProductID   int64
	Quantity    int64
	UnitPrice   int64
	DisplayName string
	ImageRef    string
}

// Cart представляет корзину пользователя. Subtotal всегда равен сумме
// unit_price*quantity по позициям — он вычисляется при загрузке, а не хранится.
type Cart struct {
	UserID          int64
	Lines           []CartLine
	Subtotal        int64
	PromoCode       string
	PromoDiscountBP int64
	UpdatedAt       time.Time
}

// OrderStatus описывает статус заказа.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// PaymentStatus описывает состояние оплаты заказа.
type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
)

// ShippingMethod описывает способ доставки заказа.
type ShippingMethod string

const (
	ShippingStandard ShippingMethod = "standard"
	ShippingExpress  ShippingMethod = "express"
	ShippingPickup   ShippingMethod = "pickup"
)

// Address содержит почтовый адрес для выставления счёта или доставки.
type Address struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Street  string `json:"street"`
	City    string `json:"city"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
}

// OrderLine — неизменяемый снимок позиции корзины на момент оформления заказа.
type OrderLine struct {
	ProductID   int64
	DisplayName string
	UnitPrice   int64
	Quantity    int64
	ImageRef    string
}

// Order представляет оформленный заказ. Создаётся один раз при оформлении,
// далее меняется только статусная часть; удаление — только логическое,
// через статус cancelled.
type Order struct {
	ID              uuid.UUID
	Number          string
	UserID          int64
	Lines           []OrderLine
	BillingAddress  Address
	ShippingAddress Address
	ShippingMethod  ShippingMethod
	ShippingCost    int64
	PaymentMethod   string
	PaymentStatus   PaymentStatus
	Subtotal        int64
	Discount        int64
	Total           int64
	PromoCode       string
	Notes           string
	Status          OrderStatus
	TrackingNumber  string
	CancelReason    string
	ShippedAt       *time.Time
	DeliveredAt     *time.Time
	CreatedAt       time.Time
}

// DeliveryStatus описывает статус физической доставки заказа.
type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "pending"
	DeliveryStatusScheduled DeliveryStatus = "scheduled"
	DeliveryStatusInTransit DeliveryStatus = "in_transit"
	DeliveryStatusDelivered DeliveryStatus = "delivered"
	DeliveryStatusFailed    DeliveryStatus = "failed"
	DeliveryStatusCancelled DeliveryStatus = "cancelled"
)

// Driver содержит данные курьера, назначенного на доставку.
type Driver struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// CustomerInfo — снимок контактных данных получателя на момент создания доставки.
type CustomerInfo struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

// TrackingUpdate — одна запись истории перемещений доставки. Записи только
// добавляются и никогда не изменяются.
type TrackingUpdate struct {
	Status    DeliveryStatus
	Location  string
	Notes     string
	CreatedAt time.Time
}

// Delivery представляет доставку заказа. На один заказ приходится не более
// одной доставки.
type Delivery struct {
	ID                 int64
	Number             string
	OrderID            uuid.UUID
	Driver             *Driver
	Customer           CustomerInfo
	ScheduledDate      string
	ScheduledTime      string
	ActualDeliveryTime *time.Time
	Status             DeliveryStatus
	Tracking           []TrackingUpdate
	Proof              string
	CreatedAt          time.Time
}
