package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// directQueries 直接 SQL 查詢實作
type directQueries struct {
	pool *pgxpool.Pool
	tx   pgx.Tx // 事務（如果有的話）
}

// getQueryExecutor 獲取查詢執行器（優先使用事務，否則使用連接池）
func (q *directQueries) getQueryExecutor(ctx context.Context) interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
} {
	if q.tx != nil {
		return q.tx
	}
	return q.pool
}

const orderColumns = `id, customer_id, customer_name, total::text, status, created_at, updated_at`

// scanOrder 掃描單筆訂單資料列
func scanOrder(row pgx.Row) (Order, error) {
	var order Order
	err := row.Scan(
		&order.ID, &order.CustomerID, &order.CustomerName,
		&order.Total, &order.Status, &order.CreatedAt, &order.UpdatedAt,
	)
	return order, err
}

// GetOrderByID 根據 ID 獲取訂單
func (q *directQueries) GetOrderByID(ctx context.Context, id string) (Order, error) {
	executor := q.getQueryExecutor(ctx)
	return scanOrder(executor.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
	`, id))
}

// GetOrderByIDForUpdate 根據 ID 獲取訂單（使用悲觀鎖 SELECT FOR UPDATE）
func (q *directQueries) GetOrderByIDForUpdate(ctx context.Context, id string) (Order, error) {
	executor := q.getQueryExecutor(ctx)
	// 使用 SELECT FOR UPDATE NOWAIT 避免長時間等待鎖
	return scanOrder(executor.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE id = $1
		FOR UPDATE NOWAIT
	`, id))
}

// CreateOrder 創建訂單
func (q *directQueries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	executor := q.getQueryExecutor(ctx)
	order, err := scanOrder(executor.QueryRow(ctx, `
		INSERT INTO orders (id, customer_id, customer_name, total, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+orderColumns+`
	`, arg.ID, arg.CustomerID, arg.CustomerName, arg.Total, arg.Status, arg.CreatedAt, arg.UpdatedAt))
	if err != nil {
		return Order{}, fmt.Errorf("創建訂單失敗: %w", err)
	}
	return order, nil
}

// CreateOrderItems 批量插入訂單項目（使用 pgx Batch）
func (q *directQueries) CreateOrderItems(ctx context.Context, orderID string, items []OrderItemParams) error {
	if len(items) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for position, item := range items {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, product_name, unit_price, quantity, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, orderID, item.ProductID, item.ProductName, item.UnitPrice, item.Quantity, position)
	}

	runBatch := func(sender interface {
		SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
	}) error {
		results := sender.SendBatch(ctx, batch)
		defer results.Close()

		for i := 0; i < len(items); i++ {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("插入訂單項目失敗 (第 %d 個): %w", i+1, err)
			}
		}
		return nil
	}

	if q.tx != nil {
		return runBatch(q.tx)
	}
	// 如果沒有事務，開啟一個事務來執行批量操作
	return pgx.BeginTxFunc(ctx, q.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		return runBatch(tx)
	})
}

// UpdateOrder 更新訂單狀態與更新時間（訂單項目建立後不再變動）
func (q *directQueries) UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error) {
	executor := q.getQueryExecutor(ctx)
	order, err := scanOrder(executor.QueryRow(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1
		RETURNING `+orderColumns+`
	`, arg.ID, arg.Status, arg.UpdatedAt))
	if err != nil {
		if err == pgx.ErrNoRows {
			return Order{}, fmt.Errorf("訂單不存在: %s", arg.ID)
		}
		return Order{}, fmt.Errorf("更新訂單失敗: %w", err)
	}
	return order, nil
}

// queryOrders 執行訂單查詢並掃描結果列
func (q *directQueries) queryOrders(ctx context.Context, sql string, args ...interface{}) ([]Order, error) {
	executor := q.getQueryExecutor(ctx)
	rows, err := executor.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("查詢訂單失敗: %w", err)
	}
	defer rows.Close()

	var orders []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("掃描訂單失敗: %w", err)
		}
		orders = append(orders, order)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("讀取訂單失敗: %w", err)
	}

	return orders, nil
}

// GetAllOrders 獲取所有訂單（新訂單在前）
func (q *directQueries) GetAllOrders(ctx context.Context) ([]Order, error) {
	return q.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		ORDER BY created_at DESC
	`)
}

// GetOrdersByCustomer 根據客戶獲取訂單列表
func (q *directQueries) GetOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	return q.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_id = $1
		ORDER BY created_at DESC
	`, customerID)
}

// GetOrdersByStatus 根據狀態獲取訂單列表
func (q *directQueries) GetOrdersByStatus(ctx context.Context, status string) ([]Order, error) {
	return q.queryOrders(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1
		ORDER BY created_at DESC
	`, status)
}

// GetOrdersByProduct 獲取任一項目包含指定商品的訂單列表
func (q *directQueries) GetOrdersByProduct(ctx context.Context, productID string) ([]Order, error) {
	return q.queryOrders(ctx, `
		SELECT DISTINCT o.id, o.customer_id, o.customer_name, o.total::text, o.status, o.created_at, o.updated_at
		FROM orders o
		JOIN order_items oi ON o.id = oi.order_id
		WHERE oi.product_id = $1
		ORDER BY o.created_at DESC
	`, productID)
}

// GetOrderItems 獲取訂單的所有項目（依建立時的順序）
func (q *directQueries) GetOrderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	executor := q.getQueryExecutor(ctx)
	rows, err := executor.Query(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price::text, quantity, position
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("查詢訂單項目失敗: %w", err)
	}
	defer rows.Close()

	return scanOrderItems(rows)
}

// GetOrderItemsByOrderIDs 批量獲取多筆訂單的項目（使用 ANY 避免 N+1 查詢）
func (q *directQueries) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []string) ([]OrderItem, error) {
	if len(orderIDs) == 0 {
		return nil, nil
	}

	executor := q.getQueryExecutor(ctx)
	rows, err := executor.Query(ctx, `
		SELECT id, order_id, product_id, product_name, unit_price::text, quantity, position
		FROM order_items
		WHERE order_id = ANY($1)
		ORDER BY order_id, position ASC
	`, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("批量查詢訂單項目失敗: %w", err)
	}
	defer rows.Close()

	return scanOrderItems(rows)
}

func scanOrderItems(rows pgx.Rows) ([]OrderItem, error) {
	var items []OrderItem
	for rows.Next() {
		var item OrderItem
		err := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID,
			&item.ProductName, &item.UnitPrice, &item.Quantity, &item.Position,
		)
		if err != nil {
			return nil, fmt.Errorf("掃描訂單項目失敗: %w", err)
		}
		items = append(items, item)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("讀取訂單項目失敗: %w", err)
	}

	return items, nil
}

// DeleteOrder 刪除訂單，回傳刪除的列數（order_items 由外鍵 CASCADE 一併刪除）
func (q *directQueries) DeleteOrder(ctx context.Context, id string) (int64, error) {
	executor := q.getQueryExecutor(ctx)
	tag, err := executor.Exec(ctx, `
		DELETE FROM orders
		WHERE id = $1
	`, id)
	if err != nil {
		return 0, fmt.Errorf("刪除訂單失敗: %w", err)
	}
	return tag.RowsAffected(), nil
}

// CountOrders 統計訂單總數
func (q *directQueries) CountOrders(ctx context.Context) (int64, error) {
	var count int64
	executor := q.getQueryExecutor(ctx)
	err := executor.QueryRow(ctx, `SELECT COUNT(*) FROM orders`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("統計訂單數失敗: %w", err)
	}
	return count, nil
}

// CountOrdersByStatus 統計指定狀態的訂單數
func (q *directQueries) CountOrdersByStatus(ctx context.Context, status string) (int64, error) {
	var count int64
	executor := q.getQueryExecutor(ctx)
	err := executor.QueryRow(ctx, `SELECT COUNT(*) FROM orders WHERE status = $1`, status).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("統計訂單數失敗: %w", err)
	}
	return count, nil
}
