package domain

// OrderStatus 訂單狀態枚舉
type OrderStatus string

const (
	StatusPending       OrderStatus = "Pending"
	StatusConfirmed     OrderStatus = "Confirmed"
	StatusInPreparation OrderStatus = "InPreparation"
	StatusShipped       OrderStatus = "Shipped"
	StatusDelivered     OrderStatus = "Delivered"
	StatusCancelled     OrderStatus = "Cancelled"
	StatusRejected      OrderStatus = "Rejected"
)

// String 返回狀態的字串表示
func (s OrderStatus) String() string {
	return string(s)
}

// AllStatuses 返回所有已定義的訂單狀態
func AllStatuses() []OrderStatus {
	return []OrderStatus{
		StatusPending, StatusConfirmed, StatusInPreparation,
		StatusShipped, StatusDelivered, StatusCancelled, StatusRejected,
	}
}

// IsValid 檢查是否為已定義的訂單狀態
func (s OrderStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusInPreparation,
		StatusShipped, StatusDelivered, StatusCancelled, StatusRejected:
		return true
	default:
		return false
	}
}

// IsFinal 檢查是否為終止狀態（終止狀態不能再轉換到其他狀態）
func (s OrderStatus) IsFinal() bool {
	return s == StatusDelivered || s == StatusCancelled || s == StatusRejected
}

// CanTransitionTo 檢查是否可以從當前狀態轉換到目標狀態
func CanTransitionTo(from, to OrderStatus) bool {
	allowedTransitions := map[OrderStatus][]OrderStatus{
		StatusPending:       {StatusConfirmed, StatusCancelled, StatusRejected},
		StatusConfirmed:     {StatusInPreparation, StatusCancelled},
		StatusInPreparation: {StatusShipped, StatusCancelled},
		StatusShipped:       {StatusDelivered}, // 出貨後只能走到送達，不能再取消
		StatusDelivered:     {},                // 已送達狀態不能轉換到其他狀態
		StatusCancelled:     {},                // 已取消狀態不能轉換到其他狀態
		StatusRejected:      {},                // 已拒絕狀態不能轉換到其他狀態
	}

	allowed, exists := allowedTransitions[from]
	if !exists {
		return false
	}

	for _, status := range allowed {
		if status == to {
			return true
		}
	}

	return false
}
