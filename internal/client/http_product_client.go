package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"ec-order-service/internal/domain"
)

// HTTPProductServiceClient 透過 HTTP 呼叫商品服務的客戶端實作。
// 商品服務的 API 欄位為西班牙文（nombre、precio、activo），
// 在這裡轉換為領域模型的欄位名稱。
type HTTPProductServiceClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPProductServiceClient 創建商品服務 HTTP 客戶端
func NewHTTPProductServiceClient(baseURL string, timeout time.Duration) *HTTPProductServiceClient {
	return &HTTPProductServiceClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// productResponse 商品服務回應的 DTO
type productResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"nombre"`
	Description string          `json:"descripcion"`
	Price       decimal.Decimal `json:"precio"`
	Stock       int             `json:"stock"`
	Category    string          `json:"categoria"`
	Active      bool            `json:"activo"`
}

// updateStockRequest 庫存更新請求的 DTO
type updateStockRequest struct {
	Stock int `json:"stock"`
}

func (c *HTTPProductServiceClient) FetchProduct(ctx context.Context, productID string) (domain.ProductSnapshot, error) {
	url := fmt.Sprintf("%s/api/v1/productos/%s", c.baseURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.ProductSnapshot{}, fmt.Errorf("建立商品查詢請求失敗: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.ProductSnapshot{}, fmt.Errorf("查詢商品 %s 失敗: %w", productID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		// 繼續解析回應
	case http.StatusNotFound:
		return domain.ProductSnapshot{}, ErrProductNotFound{ProductID: productID}
	default:
		return domain.ProductSnapshot{}, fmt.Errorf("查詢商品 %s 失敗: 狀態碼 %d", productID, resp.StatusCode)
	}

	var product productResponse
	if err := json.NewDecoder(resp.Body).Decode(&product); err != nil {
		return domain.ProductSnapshot{}, fmt.Errorf("解析商品 %s 回應失敗: %w", productID, err)
	}

	return domain.ProductSnapshot{
		ID:     product.ID,
		Name:   product.Name,
		Price:  product.Price,
		Stock:  product.Stock,
		Active: product.Active,
	}, nil
}

// HasStock 檢查商品庫存。商品服務沒有獨立的庫存查詢端點，
// 所以取得即時快照後在本地判斷。
func (c *HTTPProductServiceClient) HasStock(ctx context.Context, productID string, quantity int) (bool, error) {
	product, err := c.FetchProduct(ctx, productID)
	if err != nil {
		return false, err
	}
	return product.HasStock(quantity), nil
}

func (c *HTTPProductServiceClient) SetStock(ctx context.Context, productID string, stock int) error {
	url := fmt.Sprintf("%s/api/v1/productos/%s/stock", c.baseURL, productID)

	body, err := json.Marshal(updateStockRequest{Stock: stock})
	if err != nil {
		return fmt.Errorf("序列化庫存更新請求失敗: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("建立庫存更新請求失敗: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("更新商品 %s 庫存失敗: %w", productID, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrProductNotFound{ProductID: productID}
	default:
		return ErrStockUpdateFailed{ProductID: productID, StatusCode: resp.StatusCode}
	}
}
