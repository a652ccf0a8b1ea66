package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// LineItem 訂單項目，記錄下單當下的商品快照資訊（名稱與單價）
type LineItem struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	UnitPrice   decimal.Decimal `json:"unitPrice"`
	Quantity    int             `json:"quantity"`
}

// NewLineItem 創建訂單項目（建構時即完成欄位驗證）
func NewLineItem(productID, productName string, unitPrice decimal.Decimal, quantity int) (LineItem, error) {
	if strings.TrimSpace(productID) == "" {
		return LineItem{}, ErrValidation{Field: "productId", Message: "product id must not be blank"}
	}
	if !unitPrice.IsPositive() {
		return LineItem{}, ErrValidation{Field: "unitPrice", Message: "unit price must be greater than zero"}
	}
	if quantity <= 0 {
		return LineItem{}, ErrValidation{Field: "quantity", Message: "quantity must be greater than zero"}
	}

	return LineItem{
		ProductID:   productID,
		ProductName: productName,
		UnitPrice:   unitPrice,
		Quantity:    quantity,
	}, nil
}

// Subtotal 計算項目小計（單價 × 數量，使用十進位精確運算）
func (i LineItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}
