package service

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"ec-order-service/internal/client"
	"ec-order-service/internal/domain"
	"ec-order-service/internal/repository"
	"ec-order-service/pkg/metrics"
)

// OrderService 訂單服務，負責訂單建立流程的編排與訂單生命週期管理
type OrderService struct {
	orderRepo      repository.OrderRepository
	productClient  client.ProductServiceClient
	eventPublisher EventPublisher
	logger         Logger
	metrics        *metrics.OrderMetrics
	enrichWorkers  int
}

// EventPublisher 事件發布介面
type EventPublisher interface {
	PublishOrderCreated(event domain.OrderCreatedEvent) error
	PublishOrderUpdated(event domain.OrderUpdatedEvent) error
	PublishOrderStatusChanged(event domain.OrderStatusChangedEvent) error
	PublishOrderCancelled(event domain.OrderCancelledEvent) error
}

// Logger 日誌介面
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, err error, fields ...interface{})
	Warn(msg string, fields ...interface{})
}

// NewOrderService 使用依賴注入創建訂單服務
func NewOrderService(
	orderRepo repository.OrderRepository,
	productClient client.ProductServiceClient,
	eventPublisher EventPublisher,
	logger Logger,
	orderMetrics *metrics.OrderMetrics,
	enrichWorkers int,
) *OrderService {
	if enrichWorkers <= 0 {
		enrichWorkers = 1
	}
	return &OrderService{
		orderRepo:      orderRepo,
		productClient:  productClient,
		eventPublisher: eventPublisher,
		logger:         logger,
		metrics:        orderMetrics,
		enrichWorkers:  enrichWorkers,
	}
}

// ItemRequest 建立訂單時客戶端提供的項目請求（只有商品 ID 與數量，
// 名稱與單價一律取商品服務的即時資料）
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// CreateOrder 建立訂單。流程依序為：驗證並充實項目、保存訂單、
// 調整商品庫存、發布訂單建立事件。任一階段失敗即中止，
// 不回滾已完成的階段，錯誤會標記失敗發生的階段。
func (s *OrderService) CreateOrder(ctx context.Context, customerID, customerName string, requests []ItemRequest) (domain.Order, error) {
	startTime := time.Now()
	s.logger.Info("開始建立訂單", "customerId", customerID, "itemCount", len(requests))

	// 階段一：並發查詢商品服務，驗證並充實訂單項目
	items, err := s.enrichItems(ctx, requests)
	if err != nil {
		return domain.Order{}, s.stageFailed(StageValidating, "", err)
	}

	order, err := domain.NewOrder(customerID, customerName, items)
	if err != nil {
		return domain.Order{}, s.stageFailed(StageValidating, "", err)
	}

	// 階段二：保存訂單
	saved, err := s.orderRepo.Save(order)
	if err != nil {
		return domain.Order{}, s.stageFailed(StagePersisting, "", err)
	}

	// 階段三：調整商品庫存。此階段失敗時訂單保持已保存狀態，
	// 已扣減的商品庫存不會回復
	if err := s.adjustProductStock(ctx, saved); err != nil {
		return domain.Order{}, s.stageFailed(StageAdjustingStock, saved.ID, err)
	}

	// 階段四：發布訂單建立事件
	if err := s.eventPublisher.PublishOrderCreated(domain.NewOrderCreatedEvent(saved)); err != nil {
		return domain.Order{}, s.stageFailed(StagePublishingEvent, saved.ID, err)
	}
	s.metrics.EventsPublished.WithLabelValues("OrderCreated").Inc()

	s.metrics.OrdersCreated.Inc()
	s.metrics.CreationDuration.Observe(time.Since(startTime).Seconds())
	s.logger.Info("訂單建立成功",
		"orderId", saved.ID,
		"customerId", customerID,
		"total", saved.Total.String(),
		"duration", time.Since(startTime).String())
	return saved, nil
}

// stageFailed 記錄階段失敗並包裝錯誤
func (s *OrderService) stageFailed(stage Stage, orderID string, err error) error {
	s.metrics.CreationFailures.WithLabelValues(string(stage)).Inc()
	s.logger.Error("訂單建立失敗", err, "stage", string(stage), "orderId", orderID)
	return ErrStageFailed{Stage: stage, OrderID: orderID, Err: err}
}

// enrichItems 並發查詢商品服務，驗證庫存並建立訂單項目。
// 並發數以 enrichWorkers 為上限，結果依請求順序排列；
// 任何一個商品驗證失敗會取消其餘還在進行的查詢。
func (s *OrderService) enrichItems(ctx context.Context, requests []ItemRequest) ([]domain.LineItem, error) {
	items := make([]domain.LineItem, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	semaphore := make(chan struct{}, s.enrichWorkers)

	for i, req := range requests {
		// go 1.21 的迴圈變數為整個迴圈共用，需重新綁定供 goroutine 捕獲
		i, req := i, req
		g.Go(func() error {
			select {
			case semaphore <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-semaphore }()

			product, err := s.productClient.FetchProduct(gctx, req.ProductID)
			if err != nil {
				return err
			}

			if !product.HasStock(req.Quantity) {
				return ErrInsufficientStock{
					ProductID: req.ProductID,
					Available: product.Stock,
					Requested: req.Quantity,
				}
			}

			item, err := domain.NewLineItem(product.ID, product.Name, product.Price, req.Quantity)
			if err != nil {
				return err
			}

			// 每個 goroutine 只寫入自己的索引位置，結果保持請求順序
			items[i] = item
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return items, nil
}

// adjustProductStock 依訂單項目逐一調整商品庫存：先取得即時庫存，
// 再寫入扣減後的絕對值。同一商品出現在多個項目時會被扣減多次。
func (s *OrderService) adjustProductStock(ctx context.Context, order domain.Order) error {
	for _, item := range order.Items {
		product, err := s.productClient.FetchProduct(ctx, item.ProductID)
		if err != nil {
			return fmt.Errorf("查詢商品 %s 即時庫存失敗: %w", item.ProductID, err)
		}

		newStock := product.Stock - item.Quantity
		if err := s.productClient.SetStock(ctx, item.ProductID, newStock); err != nil {
			return fmt.Errorf("更新商品 %s 庫存失敗: %w", item.ProductID, err)
		}
		s.metrics.StockAdjustments.Inc()

		s.logger.Info("商品庫存已調整", "productId", item.ProductID, "stock", newStock, "orderId", order.ID)
	}

	return nil
}

// UpdateOrderStatus 更新訂單狀態（包含狀態機驗證）
func (s *OrderService) UpdateOrderStatus(orderID string, newStatus domain.OrderStatus) (domain.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	fromStatus := order.Status
	updated, err := order.TransitionTo(newStatus)
	if err != nil {
		s.logger.Error("訂單狀態轉換不合法", err,
			"orderId", orderID, "fromStatus", fromStatus, "toStatus", newStatus)
		return domain.Order{}, err
	}

	saved, err := s.orderRepo.Save(updated)
	if err != nil {
		return domain.Order{}, fmt.Errorf("保存訂單失敗: %w", err)
	}

	// 事件發布失敗不影響主流程，只記錄日誌
	statusChangedEvent := domain.NewOrderStatusChangedEvent(saved.ID, fromStatus, saved.Status)
	if err := s.eventPublisher.PublishOrderStatusChanged(statusChangedEvent); err != nil {
		s.logger.Error("發布狀態變更事件失敗", err, "orderId", saved.ID)
	} else {
		s.metrics.EventsPublished.WithLabelValues("OrderStatusChanged").Inc()
	}

	if err := s.eventPublisher.PublishOrderUpdated(domain.NewOrderUpdatedEvent(saved)); err != nil {
		s.logger.Error("發布訂單更新事件失敗", err, "orderId", saved.ID)
	} else {
		s.metrics.EventsPublished.WithLabelValues("OrderUpdated").Inc()
	}

	s.logger.Info("訂單狀態已更新", "orderId", orderID, "fromStatus", fromStatus, "toStatus", newStatus)
	return saved, nil
}

// CancelOrder 取消訂單。只有 Pending 或 Confirmed 狀態的訂單可以取消。
func (s *OrderService) CancelOrder(orderID, reason string) (domain.Order, error) {
	order, err := s.orderRepo.FindByID(orderID)
	if err != nil {
		return domain.Order{}, err
	}

	if !order.CanBeCancelled() {
		s.logger.Warn("訂單不可取消", "orderId", orderID, "status", order.Status)
		return domain.Order{}, ErrOrderNotCancellable{OrderID: orderID, Status: order.Status}
	}

	fromStatus := order.Status
	cancelled, err := order.TransitionTo(domain.StatusCancelled)
	if err != nil {
		return domain.Order{}, err
	}

	saved, err := s.orderRepo.Save(cancelled)
	if err != nil {
		return domain.Order{}, fmt.Errorf("保存訂單失敗: %w", err)
	}

	// 事件發布失敗不影響主流程，只記錄日誌
	if err := s.eventPublisher.PublishOrderCancelled(domain.NewOrderCancelledEvent(saved.ID, reason)); err != nil {
		s.logger.Error("發布訂單取消事件失敗", err, "orderId", saved.ID)
	} else {
		s.metrics.EventsPublished.WithLabelValues("OrderCancelled").Inc()
	}

	statusChangedEvent := domain.NewOrderStatusChangedEvent(saved.ID, fromStatus, saved.Status)
	if err := s.eventPublisher.PublishOrderStatusChanged(statusChangedEvent); err != nil {
		s.logger.Error("發布狀態變更事件失敗", err, "orderId", saved.ID)
	} else {
		s.metrics.EventsPublished.WithLabelValues("OrderStatusChanged").Inc()
	}

	s.logger.Info("訂單已取消", "orderId", orderID, "fromStatus", fromStatus, "reason", reason)
	return saved, nil
}

// DeleteOrder 刪除訂單
func (s *OrderService) DeleteOrder(orderID string) error {
	if err := s.orderRepo.Delete(orderID); err != nil {
		return err
	}

	s.logger.Info("訂單已刪除", "orderId", orderID)
	return nil
}

// GetOrder 獲取訂單
func (s *OrderService) GetOrder(orderID string) (domain.Order, error) {
	return s.orderRepo.FindByID(orderID)
}

// ListOrders 獲取所有訂單
func (s *OrderService) ListOrders() ([]domain.Order, error) {
	return s.orderRepo.FindAll()
}

// GetOrdersByCustomer 獲取客戶的所有訂單
func (s *OrderService) GetOrdersByCustomer(customerID string) ([]domain.Order, error) {
	return s.orderRepo.FindByCustomer(customerID)
}

// GetOrdersByStatus 獲取指定狀態的所有訂單
func (s *OrderService) GetOrdersByStatus(status domain.OrderStatus) ([]domain.Order, error) {
	return s.orderRepo.FindByStatus(status)
}

// GetOrdersByProduct 獲取包含指定商品的所有訂單
func (s *OrderService) GetOrdersByProduct(productID string) ([]domain.Order, error) {
	return s.orderRepo.FindByProduct(productID)
}

// OrderStats 訂單統計
type OrderStats struct {
	Total    int64                        `json:"total"`
	ByStatus map[domain.OrderStatus]int64 `json:"byStatus"`
}

// GetOrderStats 統計各狀態的訂單數量
func (s *OrderService) GetOrderStats() (OrderStats, error) {
	total, err := s.orderRepo.Count()
	if err != nil {
		return OrderStats{}, err
	}

	byStatus := make(map[domain.OrderStatus]int64, len(domain.AllStatuses()))
	for _, status := range domain.AllStatuses() {
		count, err := s.orderRepo.CountByStatus(status)
		if err != nil {
			return OrderStats{}, err
		}
		byStatus[status] = count
	}

	return OrderStats{Total: total, ByStatus: byStatus}, nil
}

// Stage 訂單建立流程的階段
type Stage string

const (
	StageValidating      Stage = "Validating"
	StagePersisting      Stage = "Persisting"
	StageAdjustingStock  Stage = "AdjustingStock"
	StagePublishingEvent Stage = "PublishingEvent"
)

// ErrStageFailed 訂單建立流程在某個階段失敗。
// OrderID 只在訂單已保存後的階段（調整庫存、發布事件）有值。
type ErrStageFailed struct {
	Stage   Stage
	OrderID string
	Err     error
}

func (e ErrStageFailed) Error() string {
	if e.OrderID != "" {
		return fmt.Sprintf("order creation failed at stage %s (order %s): %v", e.Stage, e.OrderID, e.Err)
	}
	return fmt.Sprintf("order creation failed at stage %s: %v", e.Stage, e.Err)
}

func (e ErrStageFailed) Unwrap() error { return e.Err }

// ErrInsufficientStock 商品庫存不足錯誤
type ErrInsufficientStock struct {
	ProductID string
	Available int
	Requested int
}

func (e ErrInsufficientStock) Error() string {
	return fmt.Sprintf("insufficient stock for product %s: available %d, requested %d",
		e.ProductID, e.Available, e.Requested)
}

// ErrOrderNotCancellable 訂單不可取消錯誤
type ErrOrderNotCancellable struct {
	OrderID string
	Status  domain.OrderStatus
}

func (e ErrOrderNotCancellable) Error() string {
	return "order " + e.OrderID + " cannot be cancelled in status " + string(e.Status)
}

// MockEventPublisher 模擬事件發布器（用於測試）
type MockEventPublisher struct {
	CreatedEvents       []domain.OrderCreatedEvent
	UpdatedEvents       []domain.OrderUpdatedEvent
	StatusChangedEvents []domain.OrderStatusChangedEvent
	CancelledEvents     []domain.OrderCancelledEvent

	// 強制對應的發布方法回傳錯誤
	CreatedErr       error
	UpdatedErr       error
	StatusChangedErr error
	CancelledErr     error
}

// NewMockEventPublisher 創建模擬事件發布器
func NewMockEventPublisher() *MockEventPublisher {
	return &MockEventPublisher{}
}

func (m *MockEventPublisher) PublishOrderCreated(event domain.OrderCreatedEvent) error {
	if m.CreatedErr != nil {
		return m.CreatedErr
	}
	m.CreatedEvents = append(m.CreatedEvents, event)
	return nil
}

func (m *MockEventPublisher) PublishOrderUpdated(event domain.OrderUpdatedEvent) error {
	if m.UpdatedErr != nil {
		return m.UpdatedErr
	}
	m.UpdatedEvents = append(m.UpdatedEvents, event)
	return nil
}

func (m *MockEventPublisher) PublishOrderStatusChanged(event domain.OrderStatusChangedEvent) error {
	if m.StatusChangedErr != nil {
		return m.StatusChangedErr
	}
	m.StatusChangedEvents = append(m.StatusChangedEvents, event)
	return nil
}

func (m *MockEventPublisher) PublishOrderCancelled(event domain.OrderCancelledEvent) error {
	if m.CancelledErr != nil {
		return m.CancelledErr
	}
	m.CancelledEvents = append(m.CancelledEvents, event)
	return nil
}

// LogEntry 日誌條目
type LogEntry struct {
	Level   string
	Message string
	Fields  map[string]interface{}
}

// MockLogger 模擬日誌器（用於測試）
type MockLogger struct {
	Logs []LogEntry
}

// NewMockLogger 創建模擬日誌器
func NewMockLogger() *MockLogger {
	return &MockLogger{
		Logs: make([]LogEntry, 0),
	}
}

func (m *MockLogger) Info(msg string, fields ...interface{}) {
	m.Logs = append(m.Logs, LogEntry{
		Level:   "INFO",
		Message: msg,
		Fields:  parseFields(fields...),
	})
}

func (m *MockLogger) Error(msg string, err error, fields ...interface{}) {
	fieldsMap := parseFields(fields...)
	if err != nil {
		fieldsMap["error"] = err.Error()
	}
	m.Logs = append(m.Logs, LogEntry{
		Level:   "ERROR",
		Message: msg,
		Fields:  fieldsMap,
	})
}

func (m *MockLogger) Warn(msg string, fields ...interface{}) {
	m.Logs = append(m.Logs, LogEntry{
		Level:   "WARN",
		Message: msg,
		Fields:  parseFields(fields...),
	})
}

func parseFields(fields ...interface{}) map[string]interface{} {
	result := make(map[string]interface{})
	for i := 0; i < len(fields)-1; i += 2 {
		if key, ok := fields[i].(string); ok {
			result[key] = fields[i+1]
		}
	}
	return result
}
