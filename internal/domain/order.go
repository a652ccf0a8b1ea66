package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order 訂單聚合根。採用值語意：所有變更方法都回傳新的副本，
// 已建立的訂單內容（客戶、項目、總金額）不會被原地修改。
type Order struct {
	ID           string          `json:"orderId"`
	CustomerID   string          `json:"customerId"`
	CustomerName string          `json:"customerName"`
	Items        []LineItem      `json:"items"`
	Total        decimal.Decimal `json:"total"`
	Status       OrderStatus     `json:"status"`
	CreatedAt    time.Time       `json:"createdAt"`
	UpdatedAt    time.Time       `json:"updatedAt"`
}

// NewOrder 創建新訂單。總金額由項目小計加總得出，不接受外部傳入；
// 新訂單一律從 Pending 狀態開始，ID 由儲存層在保存時指派。
func NewOrder(customerID, customerName string, items []LineItem) (Order, error) {
	if strings.TrimSpace(customerID) == "" {
		return Order{}, ErrValidation{Field: "customerId", Message: "customer id must not be blank"}
	}
	if len(items) == 0 {
		return Order{}, ErrValidation{Field: "items", Message: "order must contain at least one item"}
	}

	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Subtotal())
	}
	if !total.IsPositive() {
		return Order{}, ErrValidation{Field: "total", Message: "order total must be greater than zero"}
	}

	now := time.Now()
	return Order{
		CustomerID:   customerID,
		CustomerName: customerName,
		Items:        append([]LineItem(nil), items...),
		Total:        total,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// WithID 回傳指派了 ID 的訂單副本（由儲存層在保存時使用）
func (o Order) WithID(id string) Order {
	o.ID = id
	return o
}

// ChangeStatus 變更訂單狀態並更新時間戳，不做狀態機檢查。
// 需要轉換合法性驗證時應使用 TransitionTo。
func (o Order) ChangeStatus(newStatus OrderStatus) Order {
	o.Status = newStatus
	o.UpdatedAt = time.Now()
	return o
}

// TransitionTo 驗證並轉換訂單狀態（包含狀態機驗證）
func (o Order) TransitionTo(newStatus OrderStatus) (Order, error) {
	if !CanTransitionTo(o.Status, newStatus) {
		return o, ErrInvalidStatusTransition{
			FromStatus: o.Status,
			ToStatus:   newStatus,
		}
	}

	return o.ChangeStatus(newStatus), nil
}

// CanBeCancelled 檢查訂單是否可由客戶取消。
// 只有 Pending 與 Confirmed 狀態允許取消，查詢本身不改變訂單。
func (o Order) CanBeCancelled() bool {
	return o.Status == StatusPending || o.Status == StatusConfirmed
}

// TotalQuantity 取得訂單所有項目的數量總和
func (o Order) TotalQuantity() int {
	total := 0
	for _, item := range o.Items {
		total += item.Quantity
	}
	return total
}

// ErrValidation 訂單內容驗證錯誤
type ErrValidation struct {
	Field   string
	Message string
}

func (e ErrValidation) Error() string {
	return "validation failed: " + e.Field + ": " + e.Message
}

// ErrInvalidStatusTransition 無效的狀態轉換錯誤
type ErrInvalidStatusTransition struct {
	FromStatus OrderStatus
	ToStatus   OrderStatus
}

func (e ErrInvalidStatusTransition) Error() string {
	return "invalid status transition: cannot transition from " + string(e.FromStatus) + " to " + string(e.ToStatus)
}
