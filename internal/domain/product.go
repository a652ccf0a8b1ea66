package domain

import "github.com/shopspring/decimal"

// ProductSnapshot 商品服務回傳的商品即時快照。
// 只在單次訂單建立流程中使用，不落地也不快取。
type ProductSnapshot struct {
	ID     string
	Name   string
	Price  decimal.Decimal
	Stock  int
	Active bool
}

// HasStock 檢查商品是否上架中且庫存足以滿足需求數量
func (p ProductSnapshot) HasStock(quantity int) bool {
	return p.Active && p.Stock >= quantity
}
