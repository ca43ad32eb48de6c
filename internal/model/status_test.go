package model

import "testing"

func TestCanTransitionOrder(t *testing.T) {
	tests := []struct {
		name    string
		from    OrderStatus
		to      OrderStatus
		allowed bool
	}{
		{"pending to processing", OrderStatusPending, OrderStatusProcessing, true},
		{"processing to shipped", OrderStatusProcessing, OrderStatusShipped, true},
		{"shipped to delivered", OrderStatusShipped, OrderStatusDelivered, true},
		{"pending to shipped skips processing", OrderStatusPending, OrderStatusShipped, true},
		{"pending to cancelled", OrderStatusPending, OrderStatusCancelled, true},
		{"processing to cancelled", OrderStatusProcessing, OrderStatusCancelled, true},
		{"shipped to cancelled forbidden", OrderStatusShipped, OrderStatusCancelled, false},
		{"delivered is terminal", OrderStatusDelivered, OrderStatusCancelled, false},
		{"cancelled is terminal", OrderStatusCancelled, OrderStatusProcessing, false},
		{"no backward movement", OrderStatusShipped, OrderStatusProcessing, false},
		{"same status is not a transition", OrderStatusProcessing, OrderStatusProcessing, false},
		{"unknown status", OrderStatus("lost"), OrderStatusShipped, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanTransitionOrder(tt.from, tt.to)
			if got != tt.allowed {
				t.Fatalf("CanTransitionOrder(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}

func TestCanTransitionDelivery(t *testing.T) {
	tests := []struct {
		name    string
		from    DeliveryStatus
		to      DeliveryStatus
		allowed bool
	}{
		{"pending to scheduled", DeliveryStatusPending, DeliveryStatusScheduled, true},
		{"scheduled to in_transit", DeliveryStatusScheduled, DeliveryStatusInTransit, true},
		{"in_transit to delivered", DeliveryStatusInTransit, DeliveryStatusDelivered, true},
		{"failed from any non-terminal", DeliveryStatusScheduled, DeliveryStatusFailed, true},
		{"cancelled from pending", DeliveryStatusPending, DeliveryStatusCancelled, true},
		{"repeated delivered is idempotent", DeliveryStatusDelivered, DeliveryStatusDelivered, true},
		{"delivered cannot fail", DeliveryStatusDelivered, DeliveryStatusFailed, false},
		{"failed is terminal", DeliveryStatusFailed, DeliveryStatusInTransit, false},
		{"cancelled is terminal", DeliveryStatusCancelled, DeliveryStatusScheduled, false},
		{"no backward movement", DeliveryStatusInTransit, DeliveryStatusPending, false},
		{"same non-terminal status allowed", DeliveryStatusInTransit, DeliveryStatusInTransit, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CanTransitionDelivery(tt.from, tt.to)
			if got != tt.allowed {
				t.Fatalf("CanTransitionDelivery(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.allowed)
			}
		})
	}
}
