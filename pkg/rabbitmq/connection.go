package rabbitmq

import (
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	// 啟動時 RabbitMQ 可能還沒就緒，連接失敗時重試
	dialAttempts   = 5
	dialRetryDelay = 2 * time.Second
)

// Connection RabbitMQ 連接管理。連接中斷後，下一次取得 Channel 時會自動重連。
type Connection struct {
	conn *amqp.Connection
	url  string
}

// NewConnection 建立新的 RabbitMQ 連接，失敗時會重試數次
func NewConnection(url string) (*Connection, error) {
	var conn *amqp.Connection
	var err error

	for attempt := 1; attempt <= dialAttempts; attempt++ {
		conn, err = amqp.Dial(url)
		if err == nil {
			return &Connection{conn: conn, url: url}, nil
		}

		if attempt < dialAttempts {
			log.Printf("連接 RabbitMQ 失敗（第 %d 次嘗試），%s 後重試: %v", attempt, dialRetryDelay, err)
			time.Sleep(dialRetryDelay)
		}
	}

	return nil, fmt.Errorf("連接 RabbitMQ 失敗（已重試 %d 次）: %w", dialAttempts, err)
}

// GetNewChannel 獲取新的 Channel（每次調用返回新的 Channel，避免共享）。
// 若連接已中斷，先重新建立連接再開啟 Channel。
func (c *Connection) GetNewChannel() (*amqp.Channel, error) {
	if c.conn == nil || c.conn.IsClosed() {
		if err := c.redial(); err != nil {
			return nil, err
		}
	}

	channel, err := c.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("建立 Channel 失敗: %w", err)
	}
	return channel, nil
}

// redial 丟棄舊連接並重新連接
func (c *Connection) redial() error {
	if c.conn != nil && !c.conn.IsClosed() {
		if err := c.conn.Close(); err != nil {
			log.Printf("關閉舊連接時發生錯誤: %v", err)
		}
	}

	conn, err := amqp.Dial(c.url)
	if err != nil {
		return fmt.Errorf("重新連接 RabbitMQ 失敗: %w", err)
	}

	c.conn = conn
	return nil
}

// Close 關閉連接
func (c *Connection) Close() error {
	if c.conn == nil || c.conn.IsClosed() {
		return nil
	}
	return c.conn.Close()
}
