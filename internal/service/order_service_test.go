package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec-order-service/internal/client"
	"ec-order-service/internal/domain"
	"ec-order-service/internal/repository"
	"ec-order-service/pkg/metrics"
)

// testDeps 測試用的服務與相依元件
type testDeps struct {
	service   *OrderService
	repo      *repository.InMemoryOrderRepository
	products  *client.MockProductServiceClient
	publisher *MockEventPublisher
	logger    *MockLogger
}

func newTestDeps(enrichWorkers int) *testDeps {
	repo := repository.NewInMemoryOrderRepository()
	products := client.NewMockProductServiceClient()
	publisher := NewMockEventPublisher()
	logger := NewMockLogger()
	orderMetrics := metrics.NewOrderMetrics(prometheus.NewRegistry())
	return &testDeps{
		service:   NewOrderService(repo, products, publisher, logger, orderMetrics, enrichWorkers),
		repo:      repo,
		products:  products,
		publisher: publisher,
		logger:    logger,
	}
}

// addProduct 加入模擬商品（上架狀態）
func (d *testDeps) addProduct(id, name, price string, stock int) {
	d.products.AddProduct(domain.ProductSnapshot{
		ID:     id,
		Name:   name,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	})
}

// seedOrder 直接在倉儲中放入一筆指定狀態的訂單
func seedOrder(t *testing.T, repo *repository.InMemoryOrderRepository, status domain.OrderStatus) domain.Order {
	t.Helper()

	item, err := domain.NewLineItem("P1", "鍵盤", decimal.RequireFromString("10.00"), 1)
	require.NoError(t, err)
	order, err := domain.NewOrder("C1", "王小明", []domain.LineItem{item})
	require.NoError(t, err)

	if status != domain.StatusPending {
		order = order.ChangeStatus(status)
	}

	saved, err := repo.Save(order)
	require.NoError(t, err)
	return saved
}

func TestOrderService_CreateOrder(t *testing.T) {
	t.Run("應該完成四個階段並建立訂單", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		deps.addProduct("P1", "機械鍵盤", "19.99", 10)
		deps.addProduct("P2", "滑鼠墊", "5.00", 1)

		// Act
		saved, err := deps.service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 1},
		})

		// Assert
		require.NoError(t, err)
		assert.NotEmpty(t, saved.ID)
		assert.Equal(t, domain.StatusPending, saved.Status)
		assert.Equal(t, "44.98", saved.Total.String(), "19.99 × 2 + 5.00 × 1 必須是精確的 44.98")

		// 項目以商品服務的即時資料充實，且保持請求順序
		require.Len(t, saved.Items, 2)
		assert.Equal(t, "P1", saved.Items[0].ProductID)
		assert.Equal(t, "機械鍵盤", saved.Items[0].ProductName)
		assert.Equal(t, "19.99", saved.Items[0].UnitPrice.String())
		assert.Equal(t, 2, saved.Items[0].Quantity)
		assert.Equal(t, "P2", saved.Items[1].ProductID)

		// 訂單已保存
		count, err := deps.repo.Count()
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		persisted, err := deps.repo.FindByID(saved.ID)
		require.NoError(t, err)
		assert.Equal(t, saved.Total.String(), persisted.Total.String())

		// 庫存已逐項扣減
		assert.Equal(t, 8, deps.products.CurrentStock("P1"))
		assert.Equal(t, 0, deps.products.CurrentStock("P2"))
		assert.Equal(t, []client.StockSet{
			{ProductID: "P1", Stock: 8},
			{ProductID: "P2", Stock: 0},
		}, deps.products.StockSets())

		// 只發布一次訂單建立事件
		require.Len(t, deps.publisher.CreatedEvents, 1)
		assert.Equal(t, saved.ID, deps.publisher.CreatedEvents[0].OrderID())
		event := deps.publisher.CreatedEvents[0]
		assert.Equal(t, "44.98", event.Order().Total.String())
	})

	t.Run("商品不存在時應該在驗證階段失敗且沒有任何副作用", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		deps.addProduct("P1", "機械鍵盤", "19.99", 10)

		// Act
		_, err := deps.service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P1", Quantity: 1},
			{ProductID: "PX", Quantity: 1},
		})

		// Assert
		require.Error(t, err)
		var stageErr ErrStageFailed
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageValidating, stageErr.Stage)
		assert.Empty(t, stageErr.OrderID, "尚未保存的失敗不應該帶訂單 ID")
		var notFound client.ErrProductNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "PX", notFound.ProductID)

		count, err := deps.repo.Count()
		require.NoError(t, err)
		assert.Equal(t, int64(0), count, "不應該保存訂單")
		assert.Empty(t, deps.products.StockSets(), "不應該調整庫存")
		assert.Empty(t, deps.publisher.CreatedEvents, "不應該發布事件")
	})

	t.Run("庫存不足時應該在驗證階段失敗且沒有任何副作用", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		deps.addProduct("P1", "機械鍵盤", "19.99", 10)
		deps.addProduct("P2", "滑鼠墊", "5.00", 0)

		// Act
		_, err := deps.service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 1},
		})

		// Assert
		require.Error(t, err)
		var stageErr ErrStageFailed
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageValidating, stageErr.Stage)
		var insufficient ErrInsufficientStock
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "P2", insufficient.ProductID)
		assert.Equal(t, 0, insufficient.Available)
		assert.Equal(t, 1, insufficient.Requested)

		count, err := deps.repo.Count()
		require.NoError(t, err)
		assert.Equal(t, int64(0), count, "不應該保存訂單")
		assert.Equal(t, 10, deps.products.CurrentStock("P1"), "任何商品的庫存都不應該被扣減")
		assert.Empty(t, deps.products.StockSets())
		assert.Empty(t, deps.publisher.CreatedEvents)
	})

	t.Run("下架商品視同無庫存", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		deps.products.AddProduct(domain.ProductSnapshot{
			ID:     "P1",
			Name:   "已下架商品",
			Price:  decimal.RequireFromString("19.99"),
			Stock:  10,
			Active: false,
		})

		// Act
		_, err := deps.service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P1", Quantity: 1},
		})

		// Assert
		require.Error(t, err)
		var insufficient ErrInsufficientStock
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, "P1", insufficient.ProductID)
	})

	t.Run("同一商品的單一項目數量超過庫存時應該失敗", func(t *testing.T) {
		// Arrange：兩個項目都是 P1，庫存 5。每個項目獨立驗證，
		// 數量 3 通過、數量 6 失敗
		deps := newTestDeps(4)
		deps.addProduct("P1", "機械鍵盤", "19.99", 5)

		// Act
		_, err := deps.service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P1", Quantity: 3},
			{ProductID: "P1", Quantity: 6},
		})

		// Assert
		require.Error(t, err)
		var insufficient ErrInsufficientStock
		require.ErrorAs(t, err, &insufficient)
		assert.Equal(t, 5, insufficient.Available)
		assert.Equal(t, 6, insufficient.Requested)
	})

	t.Run("沒有任何項目時應該在驗證階段失敗", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)

		// Act
		_, err := deps.service.CreateOrder(context.Background(), "C1", "王小明", nil)

		// Assert
		require.Error(t, err)
		var stageErr ErrStageFailed
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageValidating, stageErr.Stage)
		var validationErr domain.ErrValidation
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("保存失敗時應該標記保存階段且不調整庫存", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		deps.addProduct("P1", "機械鍵盤", "19.99", 10)
		failingRepo := &failingOrderRepository{
			InMemoryOrderRepository: deps.repo,
			saveErr:                 errors.New("connection refused"),
		}
		service := NewOrderService(failingRepo, deps.products, deps.publisher, deps.logger,
			metrics.NewOrderMetrics(prometheus.NewRegistry()), 4)

		// Act
		_, err := service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P1", Quantity: 2},
		})

		// Assert
		require.Error(t, err)
		var stageErr ErrStageFailed
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StagePersisting, stageErr.Stage)
		assert.Equal(t, 10, deps.products.CurrentStock("P1"), "保存失敗後不應該碰庫存")
		assert.Empty(t, deps.products.StockSets())
		assert.Empty(t, deps.publisher.CreatedEvents)
	})

	t.Run("庫存調整中途失敗時訂單保持已保存且已扣減的庫存不回復", func(t *testing.T) {
		// Arrange：P2 的庫存更新固定失敗
		deps := newTestDeps(4)
		deps.addProduct("P1", "機械鍵盤", "19.99", 10)
		deps.addProduct("P2", "滑鼠墊", "5.00", 1)
		deps.products.SetErr["P2"] = client.ErrStockUpdateFailed{ProductID: "P2", StatusCode: 503}

		// Act
		_, err := deps.service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P1", Quantity: 2},
			{ProductID: "P2", Quantity: 1},
		})

		// Assert
		require.Error(t, err)
		var stageErr ErrStageFailed
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StageAdjustingStock, stageErr.Stage)
		assert.NotEmpty(t, stageErr.OrderID, "訂單已保存，錯誤應該帶訂單 ID")

		// 訂單留在倉儲中，不回滾
		count, err := deps.repo.Count()
		require.NoError(t, err)
		assert.Equal(t, int64(1), count)
		persisted, err := deps.repo.FindByID(stageErr.OrderID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, persisted.Status)

		// P1 已扣減、P2 維持原值，已完成的扣減不回復
		assert.Equal(t, 8, deps.products.CurrentStock("P1"))
		assert.Equal(t, 1, deps.products.CurrentStock("P2"))
		assert.Empty(t, deps.publisher.CreatedEvents, "不應該發布事件")
	})

	t.Run("事件發布失敗時訂單與庫存調整保持已完成", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		deps.addProduct("P1", "機械鍵盤", "19.99", 10)
		deps.publisher.CreatedErr = errors.New("channel closed")

		// Act
		_, err := deps.service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P1", Quantity: 2},
		})

		// Assert
		require.Error(t, err)
		var stageErr ErrStageFailed
		require.ErrorAs(t, err, &stageErr)
		assert.Equal(t, StagePublishingEvent, stageErr.Stage)
		assert.NotEmpty(t, stageErr.OrderID)

		count, err := deps.repo.Count()
		require.NoError(t, err)
		assert.Equal(t, int64(1), count, "訂單保持已保存")
		assert.Equal(t, 8, deps.products.CurrentStock("P1"), "庫存扣減保持已完成")
		assert.Empty(t, deps.publisher.CreatedEvents)
	})

	t.Run("大量項目時結果仍應保持請求順序", func(t *testing.T) {
		// Arrange：併發數 3，項目數遠多於併發數
		deps := newTestDeps(3)
		requests := make([]ItemRequest, 20)
		for i := range requests {
			id := fmt.Sprintf("P%02d", i)
			deps.addProduct(id, "商品 "+id, fmt.Sprintf("%d.50", i+1), 100)
			requests[i] = ItemRequest{ProductID: id, Quantity: i%3 + 1}
		}

		// Act
		saved, err := deps.service.CreateOrder(context.Background(), "C2", "李小華", requests)

		// Assert
		require.NoError(t, err)
		require.Len(t, saved.Items, 20)
		for i, item := range saved.Items {
			assert.Equal(t, requests[i].ProductID, item.ProductID, "第 %d 個項目順序錯誤", i)
			assert.Equal(t, requests[i].Quantity, item.Quantity)
		}
	})

	t.Run("任一商品驗證失敗應該取消其餘進行中的查詢", func(t *testing.T) {
		// Arrange：P-SLOW 的查詢會一直阻塞到 context 被取消，
		// P-BAD 立即失敗。CreateOrder 能返回就代表取消有傳播出去。
		blocking := &blockingProductClient{blockedID: "P-SLOW", failedID: "P-BAD"}
		deps := newTestDeps(4)
		service := NewOrderService(deps.repo, blocking, deps.publisher, deps.logger,
			metrics.NewOrderMetrics(prometheus.NewRegistry()), 4)

		// Act
		_, err := service.CreateOrder(context.Background(), "C1", "王小明", []ItemRequest{
			{ProductID: "P-SLOW", Quantity: 1},
			{ProductID: "P-BAD", Quantity: 1},
		})

		// Assert
		require.Error(t, err)
		var notFound client.ErrProductNotFound
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "P-BAD", notFound.ProductID)
	})
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	t.Run("應該成功更新訂單狀態並發布事件", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		order := seedOrder(t, deps.repo, domain.StatusPending)

		// Act
		updated, err := deps.service.UpdateOrderStatus(order.ID, domain.StatusConfirmed)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, updated.Status)

		persisted, err := deps.repo.FindByID(order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, persisted.Status)

		require.Len(t, deps.publisher.StatusChangedEvents, 1)
		event := deps.publisher.StatusChangedEvents[0]
		assert.Equal(t, domain.StatusPending, event.FromStatus())
		assert.Equal(t, domain.StatusConfirmed, event.ToStatus())
		assert.Len(t, deps.publisher.UpdatedEvents, 1)
	})

	t.Run("不合法的狀態轉換應該返回錯誤並記錄日誌", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		order := seedOrder(t, deps.repo, domain.StatusPending)

		// Act
		_, err := deps.service.UpdateOrderStatus(order.ID, domain.StatusShipped)

		// Assert
		require.Error(t, err)
		assert.IsType(t, domain.ErrInvalidStatusTransition{}, err)

		persisted, err := deps.repo.FindByID(order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, persisted.Status, "狀態不應該改變")
		assert.Empty(t, deps.publisher.StatusChangedEvents, "不應該發布事件")
		assert.NotEmpty(t, deps.logger.Logs, "應該記錄錯誤日誌")
	})

	t.Run("訂單不存在時應該返回錯誤", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)

		// Act
		_, err := deps.service.UpdateOrderStatus("missing", domain.StatusConfirmed)

		// Assert
		require.Error(t, err)
		assert.IsType(t, repository.ErrOrderNotFound{}, err)
	})

	t.Run("事件發布失敗不影響狀態更新", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		order := seedOrder(t, deps.repo, domain.StatusPending)
		deps.publisher.StatusChangedErr = errors.New("channel closed")

		// Act
		updated, err := deps.service.UpdateOrderStatus(order.ID, domain.StatusConfirmed)

		// Assert
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, updated.Status)

		persisted, err := deps.repo.FindByID(order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusConfirmed, persisted.Status)
	})
}

func TestOrderService_CancelOrder(t *testing.T) {
	t.Run("Pending 訂單應該可以取消", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		order := seedOrder(t, deps.repo, domain.StatusPending)

		// Act
		cancelled, err := deps.service.CancelOrder(order.ID, "客戶改變心意")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)

		require.Len(t, deps.publisher.CancelledEvents, 1)
		assert.Equal(t, "客戶改變心意", deps.publisher.CancelledEvents[0].Reason())
		require.Len(t, deps.publisher.StatusChangedEvents, 1)
		assert.Equal(t, domain.StatusPending, deps.publisher.StatusChangedEvents[0].FromStatus())
		assert.Equal(t, domain.StatusCancelled, deps.publisher.StatusChangedEvents[0].ToStatus())
	})

	t.Run("Confirmed 訂單應該可以取消", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		order := seedOrder(t, deps.repo, domain.StatusConfirmed)

		// Act
		cancelled, err := deps.service.CancelOrder(order.ID, "缺貨")

		// Assert
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCancelled, cancelled.Status)
	})

	t.Run("Shipped 訂單不可取消", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		order := seedOrder(t, deps.repo, domain.StatusShipped)

		// Act
		_, err := deps.service.CancelOrder(order.ID, "客戶改變心意")

		// Assert
		require.Error(t, err)
		var notCancellable ErrOrderNotCancellable
		require.ErrorAs(t, err, &notCancellable)
		assert.Equal(t, domain.StatusShipped, notCancellable.Status)

		persisted, err := deps.repo.FindByID(order.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusShipped, persisted.Status, "狀態不應該改變")
		assert.Empty(t, deps.publisher.CancelledEvents)
	})

	t.Run("訂單不存在時應該返回錯誤", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)

		// Act
		_, err := deps.service.CancelOrder("missing", "客戶改變心意")

		// Assert
		require.Error(t, err)
		assert.IsType(t, repository.ErrOrderNotFound{}, err)
	})
}

func TestOrderService_DeleteOrder(t *testing.T) {
	t.Run("應該刪除訂單", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		order := seedOrder(t, deps.repo, domain.StatusPending)

		// Act
		err := deps.service.DeleteOrder(order.ID)

		// Assert
		require.NoError(t, err)
		_, err = deps.repo.FindByID(order.ID)
		assert.IsType(t, repository.ErrOrderNotFound{}, err)
	})

	t.Run("訂單不存在時應該返回錯誤", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)

		// Act
		err := deps.service.DeleteOrder("missing")

		// Assert
		require.Error(t, err)
		assert.IsType(t, repository.ErrOrderNotFound{}, err)
	})
}

func TestOrderService_GetOrderStats(t *testing.T) {
	t.Run("應該統計各狀態的訂單數量", func(t *testing.T) {
		// Arrange
		deps := newTestDeps(4)
		seedOrder(t, deps.repo, domain.StatusPending)
		seedOrder(t, deps.repo, domain.StatusPending)
		seedOrder(t, deps.repo, domain.StatusConfirmed)

		// Act
		stats, err := deps.service.GetOrderStats()

		// Assert
		require.NoError(t, err)
		assert.Equal(t, int64(3), stats.Total)
		assert.Equal(t, int64(2), stats.ByStatus[domain.StatusPending])
		assert.Equal(t, int64(1), stats.ByStatus[domain.StatusConfirmed])
		assert.Equal(t, int64(0), stats.ByStatus[domain.StatusDelivered])
	})
}

// failingOrderRepository 保存時固定失敗的倉儲（用於測試保存階段的錯誤處理）
type failingOrderRepository struct {
	*repository.InMemoryOrderRepository
	saveErr error
}

func (r *failingOrderRepository) Save(order domain.Order) (domain.Order, error) {
	return domain.Order{}, r.saveErr
}

// blockingProductClient 指定商品的查詢會阻塞到 context 取消，
// 用於驗證驗證失敗時會取消其餘進行中的查詢
type blockingProductClient struct {
	blockedID string
	failedID  string
}

func (c *blockingProductClient) FetchProduct(ctx context.Context, productID string) (domain.ProductSnapshot, error) {
	switch productID {
	case c.failedID:
		return domain.ProductSnapshot{}, client.ErrProductNotFound{ProductID: productID}
	case c.blockedID:
		<-ctx.Done()
		return domain.ProductSnapshot{}, ctx.Err()
	default:
		return domain.ProductSnapshot{
			ID:     productID,
			Name:   "商品 " + productID,
			Price:  decimal.RequireFromString("1.00"),
			Stock:  100,
			Active: true,
		}, nil
	}
}

func (c *blockingProductClient) HasStock(ctx context.Context, productID string, quantity int) (bool, error) {
	product, err := c.FetchProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return product.HasStock(quantity), nil
}

func (c *blockingProductClient) SetStock(ctx context.Context, productID string, stock int) error {
	return nil
}
