package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	ordersExchange = "orders.exchange"

	routingKeyOrderCreated       = "order.created"
	routingKeyOrderUpdated       = "order.updated"
	routingKeyOrderStatusChanged = "order.status.changed"
	routingKeyOrderCancelled     = "order.cancelled"

	publishTimeout = 5 * time.Second
)

// OrderEventProducer 訂單事件生產者
type OrderEventProducer struct {
	conn    *Connection
	channel *amqp.Channel
}

// NewOrderEventProducer 建立訂單事件生產者，並宣告交換器、隊列與綁定
func NewOrderEventProducer(conn *Connection) (*OrderEventProducer, error) {
	// 為 Producer 創建獨立的 Channel
	channel, err := conn.GetNewChannel()
	if err != nil {
		return nil, fmt.Errorf("建立 Channel 失敗: %w", err)
	}

	if err := declareTopology(channel); err != nil {
		channel.Close()
		return nil, err
	}

	return &OrderEventProducer{
		conn:    conn,
		channel: channel,
	}, nil
}

// declareTopology 宣告交換器、隊列與綁定（與下游消費者保持一致）
func declareTopology(channel *amqp.Channel) error {
	err := channel.ExchangeDeclare(
		ordersExchange, // exchange name
		"topic",        // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("宣告交換器失敗: %w", err)
	}

	bindings := []struct {
		queue      string
		routingKey string
	}{
		{"orders.created.queue", routingKeyOrderCreated},
		{"orders.updated.queue", routingKeyOrderUpdated},
		{"orders.status.queue", routingKeyOrderStatusChanged},
		{"orders.cancelled.queue", routingKeyOrderCancelled},
	}

	for _, binding := range bindings {
		_, err := channel.QueueDeclare(
			binding.queue, // queue name
			true,          // durable
			false,         // delete when unused
			false,         // exclusive
			false,         // no-wait
			nil,           // arguments
		)
		if err != nil {
			return fmt.Errorf("宣告隊列 %s 失敗: %w", binding.queue, err)
		}

		err = channel.QueueBind(
			binding.queue,      // queue name
			binding.routingKey, // routing key
			ordersExchange,     // exchange
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("綁定隊列 %s 失敗: %w", binding.queue, err)
		}
	}

	return nil
}

// OrderItemPayload 訊息中的訂單項目。金額以字串傳遞，保留十進位精確值。
type OrderItemPayload struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   string `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
}

// OrderPayload 訊息中的完整訂單內容
type OrderPayload struct {
	OrderID      string             `json:"orderId"`
	CustomerID   string             `json:"customerId"`
	CustomerName string             `json:"customerName"`
	Items        []OrderItemPayload `json:"items"`
	Total        string             `json:"total"`
	Status       string             `json:"status"`
	CreatedAt    string             `json:"createdAt"`
	UpdatedAt    string             `json:"updatedAt"`
}

// OrderCreatedMessage 訂單建立訊息
type OrderCreatedMessage struct {
	EventType string       `json:"eventType"`
	Order     OrderPayload `json:"order"`
	Timestamp string       `json:"timestamp"`
}

// OrderUpdatedMessage 訂單更新訊息
type OrderUpdatedMessage struct {
	EventType string       `json:"eventType"`
	Order     OrderPayload `json:"order"`
	Timestamp string       `json:"timestamp"`
}

// OrderStatusChangedMessage 訂單狀態變更訊息
type OrderStatusChangedMessage struct {
	EventType  string `json:"eventType"`
	OrderID    string `json:"orderId"`
	FromStatus string `json:"fromStatus"`
	ToStatus   string `json:"toStatus"`
	Timestamp  string `json:"timestamp"`
}

// OrderCancelledMessage 訂單取消訊息
type OrderCancelledMessage struct {
	EventType string `json:"eventType"`
	OrderID   string `json:"orderId"`
	Reason    string `json:"reason"`
	Timestamp string `json:"timestamp"`
}

// PublishOrderCreated 發布訂單建立事件
func (p *OrderEventProducer) PublishOrderCreated(message OrderCreatedMessage) error {
	if err := p.publish(routingKeyOrderCreated, message); err != nil {
		return err
	}

	log.Printf("已發布訂單建立事件: orderId=%s, total=%s",
		message.Order.OrderID, message.Order.Total)
	return nil
}

// PublishOrderUpdated 發布訂單更新事件
func (p *OrderEventProducer) PublishOrderUpdated(message OrderUpdatedMessage) error {
	if err := p.publish(routingKeyOrderUpdated, message); err != nil {
		return err
	}

	log.Printf("已發布訂單更新事件: orderId=%s, status=%s",
		message.Order.OrderID, message.Order.Status)
	return nil
}

// PublishOrderStatusChanged 發布訂單狀態變更事件
func (p *OrderEventProducer) PublishOrderStatusChanged(message OrderStatusChangedMessage) error {
	if err := p.publish(routingKeyOrderStatusChanged, message); err != nil {
		return err
	}

	log.Printf("已發布訂單狀態變更事件: orderId=%s, fromStatus=%s, toStatus=%s",
		message.OrderID, message.FromStatus, message.ToStatus)
	return nil
}

// PublishOrderCancelled 發布訂單取消事件
func (p *OrderEventProducer) PublishOrderCancelled(message OrderCancelledMessage) error {
	if err := p.publish(routingKeyOrderCancelled, message); err != nil {
		return err
	}

	log.Printf("已發布訂單取消事件: orderId=%s, reason=%s",
		message.OrderID, message.Reason)
	return nil
}

// publish 序列化訊息並發布到訂單交換器
func (p *OrderEventProducer) publish(routingKey string, message interface{}) error {
	messageJson, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化訊息失敗: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	err = p.channel.PublishWithContext(
		ctx,
		ordersExchange, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         messageJson,
			DeliveryMode: amqp.Persistent, // 持久化訊息
		},
	)
	if err != nil {
		return fmt.Errorf("發布訊息失敗: %w", err)
	}

	return nil
}

// Close 關閉生產者
func (p *OrderEventProducer) Close() error {
	if p.channel != nil {
		return p.channel.Close()
	}
	return nil
}
