package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ec-order-service/internal/domain"
)

func domainProduct(id, price string, stock int) domain.ProductSnapshot {
	return domain.ProductSnapshot{
		ID:     id,
		Name:   "商品 " + id,
		Price:  decimal.RequireFromString(price),
		Stock:  stock,
		Active: true,
	}
}

func TestHTTPProductServiceClient_FetchProduct(t *testing.T) {
	t.Run("應該成功取得商品並轉換欄位", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, "/api/v1/productos/P1", r.URL.Path)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": "P1",
				"nombre": "Teclado mecánico",
				"descripcion": "Teclado con switches azules",
				"precio": 19.99,
				"stock": 10,
				"categoria": "Electrónica",
				"activo": true
			}`))
		}))
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		product, err := c.FetchProduct(context.Background(), "P1")

		require.NoError(t, err)
		assert.Equal(t, "P1", product.ID)
		assert.Equal(t, "Teclado mecánico", product.Name)
		assert.Equal(t, "19.99", product.Price.String())
		assert.Equal(t, 10, product.Stock)
		assert.True(t, product.Active)
	})

	t.Run("商品不存在時應該回傳 ErrProductNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		_, err := c.FetchProduct(context.Background(), "missing")

		require.Error(t, err)
		var notFound ErrProductNotFound
		assert.ErrorAs(t, err, &notFound)
		assert.Equal(t, "missing", notFound.ProductID)
	})

	t.Run("商品服務回傳 5xx 時應該回傳一般錯誤", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		_, err := c.FetchProduct(context.Background(), "P1")

		require.Error(t, err)
		var notFound ErrProductNotFound
		assert.False(t, errors.As(err, &notFound), "5xx 不應該被視為商品不存在")
	})

	t.Run("應該尊重呼叫端的 context 取消", func(t *testing.T) {
		started := make(chan struct{})
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			close(started)
			<-r.Context().Done()
		}))
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 30*time.Second)

		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			<-started
			cancel()
		}()

		_, err := c.FetchProduct(ctx, "P1")

		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestHTTPProductServiceClient_HasStock(t *testing.T) {
	newServer := func(stock int, active bool) *httptest.Server {
		return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]interface{}{
				"id":     "P1",
				"nombre": "Teclado mecánico",
				"precio": 19.99,
				"stock":  stock,
				"activo": active,
			})
		}))
	}

	t.Run("庫存足夠時應該回傳 true", func(t *testing.T) {
		server := newServer(10, true)
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		ok, err := c.HasStock(context.Background(), "P1", 10)

		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("庫存不足時應該回傳 false", func(t *testing.T) {
		server := newServer(3, true)
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		ok, err := c.HasStock(context.Background(), "P1", 4)

		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("商品下架時即使有庫存也應該回傳 false", func(t *testing.T) {
		server := newServer(10, false)
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		ok, err := c.HasStock(context.Background(), "P1", 1)

		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestHTTPProductServiceClient_SetStock(t *testing.T) {
	t.Run("應該以 PATCH 送出絕對庫存值", func(t *testing.T) {
		var gotMethod, gotPath string
		var gotBody updateStockRequest

		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotMethod = r.Method
			gotPath = r.URL.Path
			json.NewDecoder(r.Body).Decode(&gotBody)

			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"id": "P1", "stock": 8}`))
		}))
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		err := c.SetStock(context.Background(), "P1", 8)

		require.NoError(t, err)
		assert.Equal(t, http.MethodPatch, gotMethod)
		assert.Equal(t, "/api/v1/productos/P1/stock", gotPath)
		assert.Equal(t, 8, gotBody.Stock)
	})

	t.Run("商品不存在時應該回傳 ErrProductNotFound", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		err := c.SetStock(context.Background(), "missing", 5)

		require.Error(t, err)
		var notFound ErrProductNotFound
		assert.ErrorAs(t, err, &notFound)
	})

	t.Run("商品服務拒絕更新時應該回傳 ErrStockUpdateFailed", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 商品服務不接受負數庫存
			w.WriteHeader(http.StatusBadRequest)
		}))
		defer server.Close()

		c := NewHTTPProductServiceClient(server.URL, 5*time.Second)

		err := c.SetStock(context.Background(), "P1", -1)

		require.Error(t, err)
		var rejected ErrStockUpdateFailed
		assert.ErrorAs(t, err, &rejected)
		assert.Equal(t, "P1", rejected.ProductID)
		assert.Equal(t, http.StatusBadRequest, rejected.StatusCode)
	})
}

func TestMockProductServiceClient(t *testing.T) {
	t.Run("應該記錄 SetStock 呼叫並更新模擬庫存", func(t *testing.T) {
		m := NewMockProductServiceClient()
		m.AddProduct(domainProduct("P1", "10.00", 10))

		err := m.SetStock(context.Background(), "P1", 8)

		require.NoError(t, err)
		assert.Equal(t, 8, m.CurrentStock("P1"))
		require.Len(t, m.StockSets(), 1)
		assert.Equal(t, StockSet{ProductID: "P1", Stock: 8}, m.StockSets()[0])
	})

	t.Run("查詢不存在的商品應該回傳 ErrProductNotFound", func(t *testing.T) {
		m := NewMockProductServiceClient()

		_, err := m.FetchProduct(context.Background(), "missing")

		var notFound ErrProductNotFound
		assert.ErrorAs(t, err, &notFound)
	})
}
