package model

// Ранги статусов задают допустимое направление движения по жизненному циклу:
// переходы возможны только вперёд по цепочке.
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusProcessing: 1,
	OrderStatusShipped:    2,
	OrderStatusDelivered:  3,
}

var deliveryStatusRank = map[DeliveryStatus]int{
	DeliveryStatusPending:   0,
	DeliveryStatusScheduled: 1,
	DeliveryStatusInTransit: 2,
	DeliveryStatusDelivered: 3,
}

// IsValidOrderStatus сообщает, является ли строка известным статусом заказа.
func IsValidOrderStatus(s OrderStatus) bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// IsValidDeliveryStatus сообщает, является ли строка известным статусом доставки.
func IsValidDeliveryStatus(s DeliveryStatus) bool {
	switch s {
	case DeliveryStatusFailed, DeliveryStatusCancelled:
		return true
	}
	_, ok := deliveryStatusRank[s]
	return ok
}

// CanTransitionOrder проверяет допустимость перехода заказа из статуса from
// в статус to. Движение разрешено только вперёд по цепочке
// pending → processing → shipped → delivered; отмена возможна лишь из
// pending и processing. delivered и cancelled — терминальные статусы.
func CanTransitionOrder(from, to OrderStatus) bool {
	if from == OrderStatusDelivered || from == OrderStatusCancelled {
		return false
	}

	if to == OrderStatusCancelled {
		return from == OrderStatusPending || from == OrderStatusProcessing
	}

	fromRank, ok := orderStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := orderStatusRank[to]
	if !ok {
		return false
	}

	return toRank > fromRank
}

// CanTransitionDelivery проверяет допустимость перехода доставки из статуса
// from в статус to. Движение разрешено вперёд по цепочке
// pending → scheduled → in_transit → delivered; failed и cancelled достижимы
// из любого нетерминального статуса. Повтор текущего статуса допустим для
// нетерминальных состояний и для delivered: запись истории добавляется всегда,
// а побочные эффекты выполняются только при первом входе.
func CanTransitionDelivery(from, to DeliveryStatus) bool {
	if from == DeliveryStatusFailed || from == DeliveryStatusCancelled {
		return false
	}

	if from == DeliveryStatusDelivered {
		return to == DeliveryStatusDelivered
	}

	if to == DeliveryStatusFailed || to == DeliveryStatusCancelled {
		return true
	}

	fromRank, ok := deliveryStatusRank[from]
	if !ok {
		return false
	}
	toRank, ok := deliveryStatusRank[to]
	if !ok {
		return false
	}

	return toRank >= fromRank
}
