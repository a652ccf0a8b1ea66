package step_definitions

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/cucumber/godog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"ec-order-service/internal/client"
	"ec-order-service/internal/domain"
	"ec-order-service/internal/repository"
	"ec-order-service/internal/service"
	"ec-order-service/pkg/metrics"
)

type orderFeature struct {
	orderService   *service.OrderService
	orderRepo      *repository.InMemoryOrderRepository
	productClient  *client.MockProductServiceClient
	eventPublisher *service.MockEventPublisher
	logger         *service.MockLogger
	currentOrder   domain.Order
	lastError      error
}

func (f *orderFeature) reset(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
	// 每個場景開始前重置狀態
	f.orderRepo = repository.NewInMemoryOrderRepository()
	f.productClient = client.NewMockProductServiceClient()
	f.eventPublisher = service.NewMockEventPublisher()
	f.logger = service.NewMockLogger()
	f.orderService = service.NewOrderService(
		f.orderRepo,
		f.productClient,
		f.eventPublisher,
		f.logger,
		metrics.NewOrderMetrics(prometheus.NewRegistry()),
		4,
	)
	f.currentOrder = domain.Order{}
	f.lastError = nil
	return ctx, nil
}

// Background 步驟
func (f *orderFeature) 商品服務中存在以下商品(table *godog.Table) error {
	for _, row := range table.Rows[1:] { // 跳過標題行
		price, err := decimal.NewFromString(row.Cells[2].Value)
		if err != nil {
			return fmt.Errorf("解析單價失敗: %w", err)
		}
		stock, err := strconv.Atoi(row.Cells[3].Value)
		if err != nil {
			return fmt.Errorf("解析庫存失敗: %w", err)
		}

		f.productClient.AddProduct(domain.ProductSnapshot{
			ID:     row.Cells[0].Value,
			Name:   row.Cells[1].Value,
			Price:  price,
			Stock:  stock,
			Active: true,
		})
	}
	return nil
}

func (f *orderFeature) 商品的庫存為(productID string, stock int) error {
	product, err := f.productClient.FetchProduct(context.Background(), productID)
	if err != nil {
		return err
	}
	product.Stock = stock
	f.productClient.AddProduct(product)
	return nil
}

func (f *orderFeature) 商品的庫存更新會失敗(productID string) error {
	f.productClient.SetErr[productID] = client.ErrStockUpdateFailed{ProductID: productID, StatusCode: 503}
	return nil
}

func (f *orderFeature) 系統中存在一筆狀態的訂單(status string) error {
	item, err := domain.NewLineItem("P1", "機械鍵盤", decimal.RequireFromString("19.99"), 1)
	if err != nil {
		return err
	}
	order, err := domain.NewOrder("C1", "王小明", []domain.LineItem{item})
	if err != nil {
		return err
	}

	statusEnum := domain.OrderStatus(status)
	if statusEnum != domain.StatusPending {
		order = order.ChangeStatus(statusEnum)
	}

	saved, err := f.orderRepo.Save(order)
	if err != nil {
		return err
	}
	f.currentOrder = saved
	return nil
}

// Scenario 步驟
func (f *orderFeature) 客戶建立訂單內容如下(customerID, customerName string, table *godog.Table) error {
	requests := make([]service.ItemRequest, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] { // 跳過標題行
		quantity, err := strconv.Atoi(row.Cells[1].Value)
		if err != nil {
			return fmt.Errorf("解析數量失敗: %w", err)
		}
		requests = append(requests, service.ItemRequest{
			ProductID: row.Cells[0].Value,
			Quantity:  quantity,
		})
	}

	f.currentOrder, f.lastError = f.orderService.CreateOrder(context.Background(), customerID, customerName, requests)
	return nil
}

func (f *orderFeature) 客戶以原因取消該訂單(reason string) error {
	order, err := f.orderService.CancelOrder(f.currentOrder.ID, reason)
	f.lastError = err
	if err == nil {
		f.currentOrder = order
	}
	return nil
}

func (f *orderFeature) 訂單狀態被更新為(status string) error {
	order, err := f.orderService.UpdateOrderStatus(f.currentOrder.ID, domain.OrderStatus(status))
	f.lastError = err
	if err == nil {
		f.currentOrder = order
	}
	return nil
}

// 驗證步驟
func (f *orderFeature) 訂單應該建立成功() error {
	if f.lastError != nil {
		return fmt.Errorf("訂單建立失敗: %v", f.lastError)
	}
	if f.currentOrder.ID == "" {
		return fmt.Errorf("訂單沒有被指派 ID")
	}
	return nil
}

func (f *orderFeature) 訂單狀態應該為(expectedStatus string) error {
	if f.currentOrder.Status != domain.OrderStatus(expectedStatus) {
		return fmt.Errorf("訂單狀態應該為 %s，但實際為 %s", expectedStatus, f.currentOrder.Status)
	}
	return nil
}

func (f *orderFeature) 訂單總額應該為(expectedTotal string) error {
	if f.currentOrder.Total.String() != expectedTotal {
		return fmt.Errorf("訂單總額應該為 %s，但實際為 %s", expectedTotal, f.currentOrder.Total.String())
	}
	return nil
}

func (f *orderFeature) 商品的庫存應該為(productID string, expectedStock int) error {
	actual := f.productClient.CurrentStock(productID)
	if actual != expectedStock {
		return fmt.Errorf("商品 %s 的庫存應該為 %d，但實際為 %d", productID, expectedStock, actual)
	}
	return nil
}

func (f *orderFeature) 訂單建立應該失敗於階段(expectedStage string) error {
	if f.lastError == nil {
		return fmt.Errorf("訂單建立應該失敗，但成功了")
	}

	var stageErr service.ErrStageFailed
	if !errors.As(f.lastError, &stageErr) {
		return fmt.Errorf("錯誤應該標記失敗階段，實際錯誤: %v", f.lastError)
	}
	if string(stageErr.Stage) != expectedStage {
		return fmt.Errorf("應該失敗於 %s 階段，但實際為 %s", expectedStage, stageErr.Stage)
	}
	return nil
}

func (f *orderFeature) 失敗原因應該是商品庫存不足(productID string) error {
	var insufficient service.ErrInsufficientStock
	if !errors.As(f.lastError, &insufficient) {
		return fmt.Errorf("失敗原因應該是庫存不足，實際錯誤: %v", f.lastError)
	}
	if insufficient.ProductID != productID {
		return fmt.Errorf("庫存不足的商品應該是 %s，但實際為 %s", productID, insufficient.ProductID)
	}
	return nil
}

func (f *orderFeature) 失敗原因應該是商品庫存不足且明細為(productID string, available, requested int) error {
	if err := f.失敗原因應該是商品庫存不足(productID); err != nil {
		return err
	}

	var insufficient service.ErrInsufficientStock
	errors.As(f.lastError, &insufficient)
	if insufficient.Available != available {
		return fmt.Errorf("可用庫存應該為 %d，但實際為 %d", available, insufficient.Available)
	}
	if insufficient.Requested != requested {
		return fmt.Errorf("需求數量應該為 %d，但實際為 %d", requested, insufficient.Requested)
	}
	return nil
}

func (f *orderFeature) 系統中不應該有任何訂單() error {
	return f.系統中應該有筆訂單(0)
}

func (f *orderFeature) 系統中應該有筆訂單(expectedCount int) error {
	count, err := f.orderRepo.Count()
	if err != nil {
		return err
	}
	if count != int64(expectedCount) {
		return fmt.Errorf("系統中應該有 %d 筆訂單，但實際為 %d", expectedCount, count)
	}
	return nil
}

func (f *orderFeature) 應該發布一個事件(eventType string) error {
	count, err := f.publishedEventCount(eventType)
	if err != nil {
		return err
	}
	if count != 1 {
		return fmt.Errorf("應該發布一個 %s 事件，但實際發布了 %d 個", eventType, count)
	}
	return nil
}

func (f *orderFeature) 不應該發布任何事件(eventType string) error {
	count, err := f.publishedEventCount(eventType)
	if err != nil {
		return err
	}
	if count != 0 {
		return fmt.Errorf("不應該發布 %s 事件，但實際發布了 %d 個", eventType, count)
	}
	return nil
}

func (f *orderFeature) publishedEventCount(eventType string) (int, error) {
	switch eventType {
	case "OrderCreated":
		return len(f.eventPublisher.CreatedEvents), nil
	case "OrderUpdated":
		return len(f.eventPublisher.UpdatedEvents), nil
	case "OrderStatusChanged":
		return len(f.eventPublisher.StatusChangedEvents), nil
	case "OrderCancelled":
		return len(f.eventPublisher.CancelledEvents), nil
	default:
		return 0, fmt.Errorf("未知的事件類型: %s", eventType)
	}
}

func (f *orderFeature) 這次操作應該被拒絕() error {
	if f.lastError == nil {
		return fmt.Errorf("操作應該被拒絕，但成功了")
	}
	return nil
}

func (f *orderFeature) 該訂單的狀態應該為(expectedStatus string) error {
	order, err := f.orderRepo.FindByID(f.currentOrder.ID)
	if err != nil {
		return err
	}
	if order.Status != domain.OrderStatus(expectedStatus) {
		return fmt.Errorf("訂單狀態應該為 %s，但實際為 %s", expectedStatus, order.Status)
	}
	return nil
}

// InitializeScenario 初始化場景
func InitializeScenario(ctx *godog.ScenarioContext) {
	feature := &orderFeature{}

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		return feature.reset(ctx, sc)
	})

	// 註冊步驟定義
	ctx.Step(`^商品服務中存在以下商品:$`, feature.商品服務中存在以下商品)
	ctx.Step(`^商品 "([^"]*)" 的庫存為 (\d+)$`, feature.商品的庫存為)
	ctx.Step(`^商品 "([^"]*)" 的庫存更新會失敗$`, feature.商品的庫存更新會失敗)
	ctx.Step(`^系統中存在一筆 "([^"]*)" 狀態的訂單$`, feature.系統中存在一筆狀態的訂單)

	ctx.Step(`^客戶 "([^"]*)" "([^"]*)" 建立訂單，內容如下:$`, feature.客戶建立訂單內容如下)
	ctx.Step(`^客戶以原因 "([^"]*)" 取消該訂單$`, feature.客戶以原因取消該訂單)
	ctx.Step(`^訂單狀態被更新為 "([^"]*)"$`, feature.訂單狀態被更新為)

	ctx.Step(`^訂單應該建立成功$`, feature.訂單應該建立成功)
	ctx.Step(`^訂單狀態應該為 "([^"]*)"$`, feature.訂單狀態應該為)
	ctx.Step(`^訂單總額應該為 "([^"]*)"$`, feature.訂單總額應該為)
	ctx.Step(`^商品 "([^"]*)" 的庫存應該為 (\d+)$`, feature.商品的庫存應該為)
	ctx.Step(`^訂單建立應該失敗於 "([^"]*)" 階段$`, feature.訂單建立應該失敗於階段)
	ctx.Step(`^失敗原因應該是商品 "([^"]*)" 庫存不足$`, feature.失敗原因應該是商品庫存不足)
	ctx.Step(`^失敗原因應該是商品 "([^"]*)" 庫存不足，可用 (\d+) 需求 (\d+)$`, feature.失敗原因應該是商品庫存不足且明細為)
	ctx.Step(`^系統中不應該有任何訂單$`, feature.系統中不應該有任何訂單)
	ctx.Step(`^系統中應該有 (\d+) 筆訂單$`, feature.系統中應該有筆訂單)
	ctx.Step(`^應該發布一個 "([^"]*)" 事件$`, feature.應該發布一個事件)
	ctx.Step(`^不應該發布任何 "([^"]*)" 事件$`, feature.不應該發布任何事件)
	ctx.Step(`^這次操作應該被拒絕$`, feature.這次操作應該被拒絕)
	ctx.Step(`^該訂單的狀態應該為 "([^"]*)"$`, feature.該訂單的狀態應該為)
}
