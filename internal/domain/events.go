package domain

import "time"

// Event 事件介面
type Event interface {
	EventType() string
	OrderID() string
	Timestamp() time.Time
}

// OrderCreatedEvent 訂單建立事件，攜帶完整的訂單內容供下游服務使用
type OrderCreatedEvent struct {
	order     Order
	timestamp time.Time
}

func (e OrderCreatedEvent) EventType() string    { return "OrderCreated" }
func (e OrderCreatedEvent) OrderID() string      { return e.order.ID }
func (e OrderCreatedEvent) Order() Order         { return e.order }
func (e OrderCreatedEvent) Timestamp() time.Time { return e.timestamp }

// NewOrderCreatedEvent 創建訂單建立事件
func NewOrderCreatedEvent(order Order) OrderCreatedEvent {
	return OrderCreatedEvent{
		order:     order,
		timestamp: time.Now(),
	}
}

// OrderUpdatedEvent 訂單更新事件
type OrderUpdatedEvent struct {
	order     Order
	timestamp time.Time
}

func (e OrderUpdatedEvent) EventType() string    { return "OrderUpdated" }
func (e OrderUpdatedEvent) OrderID() string      { return e.order.ID }
func (e OrderUpdatedEvent) Order() Order         { return e.order }
func (e OrderUpdatedEvent) Timestamp() time.Time { return e.timestamp }

// NewOrderUpdatedEvent 創建訂單更新事件
func NewOrderUpdatedEvent(order Order) OrderUpdatedEvent {
	return OrderUpdatedEvent{
		order:     order,
		timestamp: time.Now(),
	}
}

// OrderStatusChangedEvent 訂單狀態變更事件
type OrderStatusChangedEvent struct {
	orderID    string
	fromStatus OrderStatus
	toStatus   OrderStatus
	timestamp  time.Time
}

func (e OrderStatusChangedEvent) EventType() string       { return "OrderStatusChanged" }
func (e OrderStatusChangedEvent) OrderID() string         { return e.orderID }
func (e OrderStatusChangedEvent) FromStatus() OrderStatus { return e.fromStatus }
func (e OrderStatusChangedEvent) ToStatus() OrderStatus   { return e.toStatus }
func (e OrderStatusChangedEvent) Timestamp() time.Time    { return e.timestamp }

// NewOrderStatusChangedEvent 創建訂單狀態變更事件
func NewOrderStatusChangedEvent(orderID string, fromStatus, toStatus OrderStatus) OrderStatusChangedEvent {
	return OrderStatusChangedEvent{
		orderID:    orderID,
		fromStatus: fromStatus,
		toStatus:   toStatus,
		timestamp:  time.Now(),
	}
}

// OrderCancelledEvent 訂單取消事件
type OrderCancelledEvent struct {
	orderID   string
	reason    string
	timestamp time.Time
}

func (e OrderCancelledEvent) EventType() string    { return "OrderCancelled" }
func (e OrderCancelledEvent) OrderID() string      { return e.orderID }
func (e OrderCancelledEvent) Reason() string       { return e.reason }
func (e OrderCancelledEvent) Timestamp() time.Time { return e.timestamp }

// NewOrderCancelledEvent 創建訂單取消事件
func NewOrderCancelledEvent(orderID, reason string) OrderCancelledEvent {
	return OrderCancelledEvent{
		orderID:   orderID,
		reason:    reason,
		timestamp: time.Now(),
	}
}
