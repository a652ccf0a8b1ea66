package client

import (
	"context"
	"strconv"
	"sync"

	"ec-order-service/internal/domain"
)

// ProductServiceClient 商品服務客戶端介面。
// 商品服務是庫存的唯一權威來源，所有查詢都取即時資料，不做快取。
type ProductServiceClient interface {
	// FetchProduct 取得商品即時快照
	FetchProduct(ctx context.Context, productID string) (domain.ProductSnapshot, error)
	// HasStock 檢查商品庫存是否足以滿足需求數量
	HasStock(ctx context.Context, productID string, quantity int) (bool, error)
	// SetStock 將商品庫存設定為指定的絕對值
	SetStock(ctx context.Context, productID string, stock int) error
}

// ErrProductNotFound 商品不存在錯誤
type ErrProductNotFound struct {
	ProductID string
}

func (e ErrProductNotFound) Error() string {
	return "product not found: " + e.ProductID
}

// ErrStockUpdateFailed 商品服務拒絕庫存更新錯誤
type ErrStockUpdateFailed struct {
	ProductID  string
	StatusCode int
}

func (e ErrStockUpdateFailed) Error() string {
	return "stock update rejected for product " + e.ProductID + ": status " + strconv.Itoa(e.StatusCode)
}

// StockSet SetStock 呼叫紀錄
type StockSet struct {
	ProductID string
	Stock     int
}

// MockProductServiceClient 模擬商品服務客戶端（用於測試）。
// 需要支援並發呼叫，因為訂單項目驗證會同時查詢多個商品。
type MockProductServiceClient struct {
	mu        sync.RWMutex
	products  map[string]domain.ProductSnapshot
	stockSets []StockSet
	FetchErr  map[string]error // 指定商品查詢時強制回傳的錯誤
	SetErr    map[string]error // 指定商品庫存更新時強制回傳的錯誤
}

// NewMockProductServiceClient 創建模擬商品服務客戶端
func NewMockProductServiceClient() *MockProductServiceClient {
	return &MockProductServiceClient{
		products: make(map[string]domain.ProductSnapshot),
		FetchErr: make(map[string]error),
		SetErr:   make(map[string]error),
	}
}

// AddProduct 加入商品到模擬商品服務
func (m *MockProductServiceClient) AddProduct(product domain.ProductSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products[product.ID] = product
}

func (m *MockProductServiceClient) FetchProduct(ctx context.Context, productID string) (domain.ProductSnapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if err, ok := m.FetchErr[productID]; ok {
		return domain.ProductSnapshot{}, err
	}

	product, ok := m.products[productID]
	if !ok {
		return domain.ProductSnapshot{}, ErrProductNotFound{ProductID: productID}
	}
	return product, nil
}

func (m *MockProductServiceClient) HasStock(ctx context.Context, productID string, quantity int) (bool, error) {
	product, err := m.FetchProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return product.HasStock(quantity), nil
}

func (m *MockProductServiceClient) SetStock(ctx context.Context, productID string, stock int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err, ok := m.SetErr[productID]; ok {
		return err
	}

	product, ok := m.products[productID]
	if !ok {
		return ErrProductNotFound{ProductID: productID}
	}

	product.Stock = stock
	m.products[productID] = product
	m.stockSets = append(m.stockSets, StockSet{ProductID: productID, Stock: stock})
	return nil
}

// CurrentStock 取得商品目前的模擬庫存（用於測試斷言）
func (m *MockProductServiceClient) CurrentStock(productID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.products[productID].Stock
}

// StockSets 取得所有 SetStock 呼叫紀錄
func (m *MockProductServiceClient) StockSets() []StockSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]StockSet(nil), m.stockSets...)
}
