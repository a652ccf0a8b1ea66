package service

import (
	"ec-order-service/internal/domain"
	"ec-order-service/pkg/rabbitmq"
	"fmt"
	"time"
)

// RabbitMQEventPublisher RabbitMQ 事件發布器
type RabbitMQEventPublisher struct {
	producer *rabbitmq.OrderEventProducer
}

// NewRabbitMQEventPublisher 創建 RabbitMQ 事件發布器
func NewRabbitMQEventPublisher(producer *rabbitmq.OrderEventProducer) *RabbitMQEventPublisher {
	return &RabbitMQEventPublisher{
		producer: producer,
	}
}

// PublishOrderCreated 發布訂單建立事件
func (p *RabbitMQEventPublisher) PublishOrderCreated(event domain.OrderCreatedEvent) error {
	message := rabbitmq.OrderCreatedMessage{
		EventType: event.EventType(),
		Order:     toOrderPayload(event.Order()),
		Timestamp: event.Timestamp().Format(time.RFC3339),
	}

	if err := p.producer.PublishOrderCreated(message); err != nil {
		return fmt.Errorf("發布訂單建立事件失敗: %w", err)
	}

	return nil
}

// PublishOrderUpdated 發布訂單更新事件
func (p *RabbitMQEventPublisher) PublishOrderUpdated(event domain.OrderUpdatedEvent) error {
	message := rabbitmq.OrderUpdatedMessage{
		EventType: event.EventType(),
		Order:     toOrderPayload(event.Order()),
		Timestamp: event.Timestamp().Format(time.RFC3339),
	}

	if err := p.producer.PublishOrderUpdated(message); err != nil {
		return fmt.Errorf("發布訂單更新事件失敗: %w", err)
	}

	return nil
}

// PublishOrderStatusChanged 發布訂單狀態變更事件
func (p *RabbitMQEventPublisher) PublishOrderStatusChanged(event domain.OrderStatusChangedEvent) error {
	message := rabbitmq.OrderStatusChangedMessage{
		EventType:  event.EventType(),
		OrderID:    event.OrderID(),
		FromStatus: string(event.FromStatus()),
		ToStatus:   string(event.ToStatus()),
		Timestamp:  event.Timestamp().Format(time.RFC3339),
	}

	if err := p.producer.PublishOrderStatusChanged(message); err != nil {
		return fmt.Errorf("發布訂單狀態變更事件失敗: %w", err)
	}

	return nil
}

// PublishOrderCancelled 發布訂單取消事件
func (p *RabbitMQEventPublisher) PublishOrderCancelled(event domain.OrderCancelledEvent) error {
	message := rabbitmq.OrderCancelledMessage{
		EventType: event.EventType(),
		OrderID:   event.OrderID(),
		Reason:    event.Reason(),
		Timestamp: event.Timestamp().Format(time.RFC3339),
	}

	if err := p.producer.PublishOrderCancelled(message); err != nil {
		return fmt.Errorf("發布訂單取消事件失敗: %w", err)
	}

	return nil
}

// toOrderPayload 將訂單轉換為訊息內容。金額以字串傳遞，避免浮點誤差。
func toOrderPayload(order domain.Order) rabbitmq.OrderPayload {
	items := make([]rabbitmq.OrderItemPayload, len(order.Items))
	for i, item := range order.Items {
		items[i] = rabbitmq.OrderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			UnitPrice:   item.UnitPrice.String(),
			Quantity:    item.Quantity,
		}
	}

	return rabbitmq.OrderPayload{
		OrderID:      order.ID,
		CustomerID:   order.CustomerID,
		CustomerName: order.CustomerName,
		Items:        items,
		Total:        order.Total.String(),
		Status:       string(order.Status),
		CreatedAt:    order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    order.UpdatedAt.Format(time.RFC3339),
	}
}
