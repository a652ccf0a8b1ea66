package repository

import (
	"sync"

	"github.com/google/uuid"

	"ec-order-service/internal/domain"
)

// OrderRepository 訂單倉儲介面
type OrderRepository interface {
	// Save 保存訂單。若訂單尚未有 ID 則指派新 ID，回傳保存後的訂單。
	Save(order domain.Order) (domain.Order, error)
	FindByID(orderID string) (domain.Order, error)
	FindAll() ([]domain.Order, error)
	FindByCustomer(customerID string) ([]domain.Order, error)
	FindByStatus(status domain.OrderStatus) ([]domain.Order, error)
	// FindByProduct 查詢任一項目包含指定商品的訂單
	FindByProduct(productID string) ([]domain.Order, error)
	Delete(orderID string) error
	Count() (int64, error)
	CountByStatus(status domain.OrderStatus) (int64, error)
}

// InMemoryOrderRepository 記憶體實作的訂單倉儲（用於測試）
type InMemoryOrderRepository struct {
	orders map[string]domain.Order
	mu     sync.RWMutex
}

// NewInMemoryOrderRepository 創建記憶體倉儲
func NewInMemoryOrderRepository() *InMemoryOrderRepository {
	return &InMemoryOrderRepository{
		orders: make(map[string]domain.Order),
	}
}

// Save 保存訂單
func (r *InMemoryOrderRepository) Save(order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if order.ID == "" {
		order = order.WithID(uuid.New().String())
	}

	// 複製項目切片，避免與呼叫端共用底層陣列
	order.Items = append([]domain.LineItem(nil), order.Items...)
	r.orders[order.ID] = order

	return order, nil
}

// FindByID 根據 ID 查詢訂單
func (r *InMemoryOrderRepository) FindByID(orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	order, exists := r.orders[orderID]
	if !exists {
		return domain.Order{}, ErrOrderNotFound{OrderID: orderID}
	}

	return order, nil
}

// FindAll 查詢所有訂單
func (r *InMemoryOrderRepository) FindAll() ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		orders = append(orders, order)
	}

	return orders, nil
}

// FindByCustomer 查詢客戶的所有訂單
func (r *InMemoryOrderRepository) FindByCustomer(customerID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.CustomerID == customerID {
			orders = append(orders, order)
		}
	}

	return orders, nil
}

// FindByStatus 查詢指定狀態的所有訂單
func (r *InMemoryOrderRepository) FindByStatus(status domain.OrderStatus) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]domain.Order, 0)
	for _, order := range r.orders {
		if order.Status == status {
			orders = append(orders, order)
		}
	}

	return orders, nil
}

// FindByProduct 查詢任一項目包含指定商品的訂單
func (r *InMemoryOrderRepository) FindByProduct(productID string) ([]domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	orders := make([]domain.Order, 0)
	for _, order := range r.orders {
		for _, item := range order.Items {
			if item.ProductID == productID {
				orders = append(orders, order)
				break
			}
		}
	}

	return orders, nil
}

// Delete 刪除訂單
func (r *InMemoryOrderRepository) Delete(orderID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[orderID]; !exists {
		return ErrOrderNotFound{OrderID: orderID}
	}

	delete(r.orders, orderID)
	return nil
}

// Count 統計訂單總數
func (r *InMemoryOrderRepository) Count() (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return int64(len(r.orders)), nil
}

// CountByStatus 統計指定狀態的訂單數
func (r *InMemoryOrderRepository) CountByStatus(status domain.OrderStatus) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var count int64
	for _, order := range r.orders {
		if order.Status == status {
			count++
		}
	}

	return count, nil
}

// ErrOrderNotFound 訂單未找到錯誤
type ErrOrderNotFound struct {
	OrderID string
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.OrderID
}
