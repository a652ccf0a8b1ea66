package handler

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"ec-order-service/internal/client"
	"ec-order-service/internal/domain"
	"ec-order-service/internal/repository"
	"ec-order-service/internal/service"
)

// OrderHandler 訂單 REST API 處理器
type OrderHandler struct {
	orderService *service.OrderService
	logger       service.Logger
}

// NewOrderHandler 建立訂單 API 處理器
func NewOrderHandler(orderService *service.OrderService, logger service.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// RegisterRoutes 註冊訂單路由
func (h *OrderHandler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		api.POST("/orders", h.CreateOrder)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/stats", h.GetOrderStats)
		api.GET("/orders/:orderId", h.GetOrder)
		api.PUT("/orders/:orderId/status", h.UpdateOrderStatus)
		api.POST("/orders/:orderId/cancel", h.CancelOrder)
		api.DELETE("/orders/:orderId", h.DeleteOrder)
	}
}

// CreateOrderRequest 建立訂單請求
type CreateOrderRequest struct {
	CustomerID   string             `json:"customerId" binding:"required"`
	CustomerName string             `json:"customerName" binding:"required"`
	Items        []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// OrderItemRequest 訂單項目請求。只帶商品 ID 與數量，
// 名稱與單價由服務端向商品服務查詢。
type OrderItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// UpdateStatusRequest 更新訂單狀態請求
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// CancelOrderRequest 取消訂單請求
type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CreateOrder 處理建立訂單請求
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	startTime := time.Now()

	var req CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("建立訂單請求參數錯誤", "error", err.Error())
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	requests := make([]service.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		requests[i] = service.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	order, err := h.orderService.CreateOrder(c.Request.Context(), req.CustomerID, req.CustomerName, requests)
	if err != nil {
		h.creationErrorResponse(c, err)
		return
	}

	h.logger.Info("訂單建立請求處理成功",
		"orderId", order.ID, "duration", time.Since(startTime).String())
	c.JSON(http.StatusCreated, order)
}

// creationErrorResponse 將訂單建立流程的階段錯誤對應到 HTTP 狀態碼
func (h *OrderHandler) creationErrorResponse(c *gin.Context, err error) {
	var (
		validationErr domain.ErrValidation
		stockErr      service.ErrInsufficientStock
		notFoundErr   client.ErrProductNotFound
		stageErr      service.ErrStageFailed
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": validationErr.Field})
	case errors.As(err, &stockErr):
		c.JSON(http.StatusConflict, gin.H{
			"error":     err.Error(),
			"productId": stockErr.ProductID,
			"available": stockErr.Available,
			"requested": stockErr.Requested,
		})
	case errors.As(err, &notFoundErr):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "productId": notFoundErr.ProductID})
	case errors.As(err, &stageErr):
		// 保存訂單、調整庫存或發布事件失敗
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   err.Error(),
			"stage":   string(stageErr.Stage),
			"orderId": stageErr.OrderID,
		})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

// ListOrders 查詢訂單列表，支援 customerId、status、productId 過濾
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var (
		orders []domain.Order
		err    error
	)

	switch {
	case c.Query("customerId") != "":
		orders, err = h.orderService.GetOrdersByCustomer(c.Query("customerId"))
	case c.Query("status") != "":
		status := domain.OrderStatus(c.Query("status"))
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + c.Query("status")})
			return
		}
		orders, err = h.orderService.GetOrdersByStatus(status)
	case c.Query("productId") != "":
		orders, err = h.orderService.GetOrdersByProduct(c.Query("productId"))
	default:
		orders, err = h.orderService.ListOrders()
	}

	if err != nil {
		h.logger.Error("查詢訂單列表失敗", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orders": orders, "count": len(orders)})
}

// GetOrderStats 查詢各狀態的訂單數量統計
func (h *OrderHandler) GetOrderStats(c *gin.Context) {
	stats, err := h.orderService.GetOrderStats()
	if err != nil {
		h.logger.Error("查詢訂單統計失敗", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// GetOrder 查詢單筆訂單
func (h *OrderHandler) GetOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	order, err := h.orderService.GetOrder(orderID)
	if err != nil {
		var notFound repository.ErrOrderNotFound
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "orderId": orderID})
			return
		}
		h.logger.Error("查詢訂單失敗", err, "orderId", orderID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "orderId": orderID})
		return
	}

	c.JSON(http.StatusOK, order)
}

// UpdateOrderStatus 更新訂單狀態
func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	orderID := c.Param("orderId")

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "orderId": orderID})
		return
	}

	status := domain.OrderStatus(req.Status)
	if !status.IsValid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status: " + req.Status, "orderId": orderID})
		return
	}

	order, err := h.orderService.UpdateOrderStatus(orderID, status)
	if err != nil {
		h.statusErrorResponse(c, orderID, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// CancelOrder 取消訂單
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	// 取消原因可以省略（空的請求本體）
	var req CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "orderId": orderID})
		return
	}

	order, err := h.orderService.CancelOrder(orderID, req.Reason)
	if err != nil {
		h.statusErrorResponse(c, orderID, err)
		return
	}

	c.JSON(http.StatusOK, order)
}

// statusErrorResponse 將狀態變更類操作的錯誤對應到 HTTP 狀態碼
func (h *OrderHandler) statusErrorResponse(c *gin.Context, orderID string, err error) {
	var (
		notFound       repository.ErrOrderNotFound
		invalidChange  domain.ErrInvalidStatusTransition
		notCancellable service.ErrOrderNotCancellable
	)

	switch {
	case errors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "orderId": orderID})
	case errors.As(err, &invalidChange):
		c.JSON(http.StatusConflict, gin.H{
			"error":      err.Error(),
			"orderId":    orderID,
			"fromStatus": string(invalidChange.FromStatus),
			"toStatus":   string(invalidChange.ToStatus),
		})
	case errors.As(err, &notCancellable):
		c.JSON(http.StatusConflict, gin.H{
			"error":   err.Error(),
			"orderId": orderID,
			"status":  string(notCancellable.Status),
		})
	default:
		h.logger.Error("訂單狀態操作失敗", err, "orderId", orderID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "orderId": orderID})
	}
}

// DeleteOrder 刪除訂單
func (h *OrderHandler) DeleteOrder(c *gin.Context) {
	orderID := c.Param("orderId")

	if err := h.orderService.DeleteOrder(orderID); err != nil {
		var notFound repository.ErrOrderNotFound
		if errors.As(err, &notFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error(), "orderId": orderID})
			return
		}
		h.logger.Error("刪除訂單失敗", err, "orderId", orderID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "orderId": orderID})
		return
	}

	c.JSON(http.StatusOK, gin.H{"orderId": orderID, "message": "訂單已刪除"})
}
