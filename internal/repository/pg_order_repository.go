package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"ec-order-service/internal/domain"
)

// Queries 查詢介面
type Queries interface {
	GetOrderByID(ctx context.Context, id string) (Order, error)
	GetOrderByIDForUpdate(ctx context.Context, id string) (Order, error)
	CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error)
	CreateOrderItems(ctx context.Context, orderID string, items []OrderItemParams) error
	UpdateOrder(ctx context.Context, arg UpdateOrderParams) (Order, error)
	GetAllOrders(ctx context.Context) ([]Order, error)
	GetOrdersByCustomer(ctx context.Context, customerID string) ([]Order, error)
	GetOrdersByStatus(ctx context.Context, status string) ([]Order, error)
	GetOrdersByProduct(ctx context.Context, productID string) ([]Order, error)
	GetOrderItems(ctx context.Context, orderID string) ([]OrderItem, error)
	GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []string) ([]OrderItem, error)
	DeleteOrder(ctx context.Context, id string) (int64, error)
	CountOrders(ctx context.Context) (int64, error)
	CountOrdersByStatus(ctx context.Context, status string) (int64, error)
}

// Order 資料庫模型。金額欄位以字串承載 numeric 的十進位文字表示，
// 轉換為領域模型時才解析，避免經過浮點數。
type Order struct {
	ID           string
	CustomerID   string
	CustomerName string
	Total        string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItem 訂單項目資料庫模型
type OrderItem struct {
	ID          int64
	OrderID     string
	ProductID   string
	ProductName string
	UnitPrice   string
	Quantity    int
	Position    int
}

// CreateOrderParams 建立訂單參數
type CreateOrderParams struct {
	ID           string
	CustomerID   string
	CustomerName string
	Total        string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// OrderItemParams 建立訂單項目參數
type OrderItemParams struct {
	ProductID   string
	ProductName string
	UnitPrice   string
	Quantity    int
}

// UpdateOrderParams 更新訂單參數
type UpdateOrderParams struct {
	ID        string
	Status    string
	UpdatedAt time.Time
}

// PgOrderRepository PostgreSQL 實作的訂單倉儲
type PgOrderRepository struct {
	pool         *pgxpool.Pool
	queries      Queries
	queryTimeout time.Duration // 查詢操作超時時間
	writeTimeout time.Duration // 寫入操作超時時間
}

// NewPgOrderRepository 創建 PostgreSQL 倉儲（使用預設超時）
func NewPgOrderRepository(pool *pgxpool.Pool) *PgOrderRepository {
	return NewPgOrderRepositoryWithConfig(pool, 5*time.Second, 10*time.Second)
}

// NewPgOrderRepositoryWithConfig 創建 PostgreSQL 倉儲（使用自訂超時配置）
func NewPgOrderRepositoryWithConfig(pool *pgxpool.Pool, queryTimeout, writeTimeout time.Duration) *PgOrderRepository {
	return &PgOrderRepository{
		pool:         pool,
		queries:      &directQueries{pool: pool},
		queryTimeout: queryTimeout,
		writeTimeout: writeTimeout,
	}
}

// Save 保存訂單（使用事務保護）。
// 沒有 ID 的訂單視為新訂單，指派 ID 後連同項目一併寫入；
// 已有 ID 的訂單只更新狀態與更新時間，項目建立後不再變動。
func (r *PgOrderRepository) Save(order domain.Order) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	if order.ID == "" {
		return r.insertOrder(ctx, order.WithID(uuid.New().String()))
	}
	return r.updateOrder(ctx, order)
}

func (r *PgOrderRepository) insertOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	var dbOrder Order
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		txQueries := &directQueries{pool: r.pool, tx: tx}

		created, err := txQueries.CreateOrder(ctx, CreateOrderParams{
			ID:           order.ID,
			CustomerID:   order.CustomerID,
			CustomerName: order.CustomerName,
			Total:        order.Total.String(),
			Status:       string(order.Status),
			CreatedAt:    order.CreatedAt,
			UpdatedAt:    order.UpdatedAt,
		})
		if err != nil {
			return err
		}

		items := make([]OrderItemParams, len(order.Items))
		for i, item := range order.Items {
			items[i] = OrderItemParams{
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				UnitPrice:   item.UnitPrice.String(),
				Quantity:    item.Quantity,
			}
		}
		if err := txQueries.CreateOrderItems(ctx, order.ID, items); err != nil {
			return err
		}

		dbOrder = created
		return nil
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("保存訂單失敗: %w", err)
	}

	return toDomainOrder(dbOrder, order.Items)
}

func (r *PgOrderRepository) updateOrder(ctx context.Context, order domain.Order) (domain.Order, error) {
	var dbOrder Order
	err := pgx.BeginTxFunc(ctx, r.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		txQueries := &directQueries{pool: r.pool, tx: tx}

		// 先以悲觀鎖確認訂單存在，並發更新時由行鎖序列化
		if _, err := txQueries.GetOrderByIDForUpdate(ctx, order.ID); err != nil {
			if err == pgx.ErrNoRows {
				return ErrOrderNotFound{OrderID: order.ID}
			}
			return fmt.Errorf("查詢訂單失敗: %w", err)
		}

		updated, err := txQueries.UpdateOrder(ctx, UpdateOrderParams{
			ID:        order.ID,
			Status:    string(order.Status),
			UpdatedAt: order.UpdatedAt,
		})
		if err != nil {
			return err
		}

		dbOrder = updated
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}

	return toDomainOrder(dbOrder, order.Items)
}

// FindByID 根據 ID 查詢訂單
func (r *PgOrderRepository) FindByID(orderID string) (domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTimeout)
	defer cancel()

	dbOrder, err := r.queries.GetOrderByID(ctx, orderID)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Order{}, ErrOrderNotFound{OrderID: orderID}
		}
		return domain.Order{}, fmt.Errorf("查詢訂單失敗: %w", err)
	}

	dbItems, err := r.queries.GetOrderItems(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}

	items, err := toDomainItems(dbItems)
	if err != nil {
		return domain.Order{}, err
	}
	return toDomainOrder(dbOrder, items)
}

// FindAll 查詢所有訂單
func (r *PgOrderRepository) FindAll() ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTimeout)
	defer cancel()

	dbOrders, err := r.queries.GetAllOrders(ctx)
	if err != nil {
		return nil, err
	}
	return r.hydrateOrders(ctx, dbOrders)
}

// FindByCustomer 查詢客戶的所有訂單
func (r *PgOrderRepository) FindByCustomer(customerID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTimeout)
	defer cancel()

	dbOrders, err := r.queries.GetOrdersByCustomer(ctx, customerID)
	if err != nil {
		return nil, err
	}
	return r.hydrateOrders(ctx, dbOrders)
}

// FindByStatus 查詢指定狀態的所有訂單
func (r *PgOrderRepository) FindByStatus(status domain.OrderStatus) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTimeout)
	defer cancel()

	dbOrders, err := r.queries.GetOrdersByStatus(ctx, string(status))
	if err != nil {
		return nil, err
	}
	return r.hydrateOrders(ctx, dbOrders)
}

// FindByProduct 查詢任一項目包含指定商品的訂單
func (r *PgOrderRepository) FindByProduct(productID string) ([]domain.Order, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTimeout)
	defer cancel()

	dbOrders, err := r.queries.GetOrdersByProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	return r.hydrateOrders(ctx, dbOrders)
}

// Delete 刪除訂單
func (r *PgOrderRepository) Delete(orderID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	affected, err := r.queries.DeleteOrder(ctx, orderID)
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrOrderNotFound{OrderID: orderID}
	}
	return nil
}

// Count 統計訂單總數
func (r *PgOrderRepository) Count() (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTimeout)
	defer cancel()

	return r.queries.CountOrders(ctx)
}

// CountByStatus 統計指定狀態的訂單數
func (r *PgOrderRepository) CountByStatus(status domain.OrderStatus) (int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), r.queryTimeout)
	defer cancel()

	return r.queries.CountOrdersByStatus(ctx, string(status))
}

// hydrateOrders 批量載入訂單項目並組裝領域模型，避免 N+1 查詢
func (r *PgOrderRepository) hydrateOrders(ctx context.Context, dbOrders []Order) ([]domain.Order, error) {
	if len(dbOrders) == 0 {
		return []domain.Order{}, nil
	}

	orderIDs := make([]string, len(dbOrders))
	for i, dbOrder := range dbOrders {
		orderIDs[i] = dbOrder.ID
	}

	dbItems, err := r.queries.GetOrderItemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return nil, err
	}

	itemsByOrder := make(map[string][]domain.LineItem)
	for _, dbItem := range dbItems {
		item, err := toDomainItem(dbItem)
		if err != nil {
			return nil, err
		}
		itemsByOrder[dbItem.OrderID] = append(itemsByOrder[dbItem.OrderID], item)
	}

	orders := make([]domain.Order, 0, len(dbOrders))
	for _, dbOrder := range dbOrders {
		order, err := toDomainOrder(dbOrder, itemsByOrder[dbOrder.ID])
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, nil
}

// toDomainOrder 將資料庫模型轉換為領域模型
func toDomainOrder(dbOrder Order, items []domain.LineItem) (domain.Order, error) {
	total, err := decimal.NewFromString(dbOrder.Total)
	if err != nil {
		return domain.Order{}, fmt.Errorf("解析訂單 %s 總金額失敗: %w", dbOrder.ID, err)
	}

	return domain.Order{
		ID:           dbOrder.ID,
		CustomerID:   dbOrder.CustomerID,
		CustomerName: dbOrder.CustomerName,
		Items:        items,
		Total:        total,
		Status:       domain.OrderStatus(dbOrder.Status),
		CreatedAt:    dbOrder.CreatedAt,
		UpdatedAt:    dbOrder.UpdatedAt,
	}, nil
}

// toDomainItem 將訂單項目資料庫模型轉換為領域模型
func toDomainItem(dbItem OrderItem) (domain.LineItem, error) {
	unitPrice, err := decimal.NewFromString(dbItem.UnitPrice)
	if err != nil {
		return domain.LineItem{}, fmt.Errorf("解析訂單項目 %d 單價失敗: %w", dbItem.ID, err)
	}

	return domain.LineItem{
		ProductID:   dbItem.ProductID,
		ProductName: dbItem.ProductName,
		UnitPrice:   unitPrice,
		Quantity:    dbItem.Quantity,
	}, nil
}

func toDomainItems(dbItems []OrderItem) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, len(dbItems))
	for i, dbItem := range dbItems {
		item, err := toDomainItem(dbItem)
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return items, nil
}
