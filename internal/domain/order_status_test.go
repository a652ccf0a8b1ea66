package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		name     string
		from     OrderStatus
		to       OrderStatus
		expected bool
	}{
		// 合法的轉換
		{
			name:     "Pending 可以轉換為 Confirmed",
			from:     StatusPending,
			to:       StatusConfirmed,
			expected: true,
		},
		{
			name:     "Pending 可以轉換為 Cancelled",
			from:     StatusPending,
			to:       StatusCancelled,
			expected: true,
		},
		{
			name:     "Pending 可以轉換為 Rejected",
			from:     StatusPending,
			to:       StatusRejected,
			expected: true,
		},
		{
			name:     "Confirmed 可以轉換為 InPreparation",
			from:     StatusConfirmed,
			to:       StatusInPreparation,
			expected: true,
		},
		{
			name:     "Confirmed 可以轉換為 Cancelled",
			from:     StatusConfirmed,
			to:       StatusCancelled,
			expected: true,
		},
		{
			name:     "InPreparation 可以轉換為 Shipped",
			from:     StatusInPreparation,
			to:       StatusShipped,
			expected: true,
		},
		{
			name:     "InPreparation 可以轉換為 Cancelled",
			from:     StatusInPreparation,
			to:       StatusCancelled,
			expected: true,
		},
		{
			name:     "Shipped 可以轉換為 Delivered",
			from:     StatusShipped,
			to:       StatusDelivered,
			expected: true,
		},
		// 不合法的轉換
		{
			name:     "Pending 不能直接轉換為 Shipped",
			from:     StatusPending,
			to:       StatusShipped,
			expected: false,
		},
		{
			name:     "Pending 不能直接轉換為 InPreparation",
			from:     StatusPending,
			to:       StatusInPreparation,
			expected: false,
		},
		{
			name:     "Confirmed 不能直接轉換為 Shipped",
			from:     StatusConfirmed,
			to:       StatusShipped,
			expected: false,
		},
		{
			name:     "Confirmed 不能轉換為 Rejected",
			from:     StatusConfirmed,
			to:       StatusRejected,
			expected: false,
		},
		{
			name:     "Shipped 不能轉換為 Cancelled",
			from:     StatusShipped,
			to:       StatusCancelled,
			expected: false,
		},
		{
			name:     "Delivered 不能轉換到任何狀態",
			from:     StatusDelivered,
			to:       StatusCancelled,
			expected: false,
		},
		{
			name:     "Cancelled 不能轉換到任何狀態",
			from:     StatusCancelled,
			to:       StatusPending,
			expected: false,
		},
		{
			name:     "Rejected 不能轉換到任何狀態",
			from:     StatusRejected,
			to:       StatusConfirmed,
			expected: false,
		},
		// 相同狀態（不應該允許）
		{
			name:     "相同狀態不應該允許轉換",
			from:     StatusPending,
			to:       StatusPending,
			expected: false,
		},
		// 未定義的狀態
		{
			name:     "未定義的來源狀態不能轉換",
			from:     OrderStatus("Unknown"),
			to:       StatusConfirmed,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CanTransitionTo(tt.from, tt.to)
			assert.Equal(t, tt.expected, result, "狀態轉換 %s -> %s 應該為 %v", tt.from, tt.to, tt.expected)
		})
	}
}

func TestCanTransitionTo_FinalStatusHasNoOutgoingTransition(t *testing.T) {
	finalStatuses := []OrderStatus{StatusDelivered, StatusCancelled, StatusRejected}

	for _, from := range finalStatuses {
		for _, to := range AllStatuses() {
			t.Run(string(from)+" 不能轉換為 "+string(to), func(t *testing.T) {
				assert.False(t, CanTransitionTo(from, to), "終止狀態 %s 不應該允許轉換到 %s", from, to)
			})
		}
	}
}

func TestOrderStatus_IsFinal(t *testing.T) {
	tests := []struct {
		name     string
		status   OrderStatus
		expected bool
	}{
		{
			name:     "Delivered 是終止狀態",
			status:   StatusDelivered,
			expected: true,
		},
		{
			name:     "Cancelled 是終止狀態",
			status:   StatusCancelled,
			expected: true,
		},
		{
			name:     "Rejected 是終止狀態",
			status:   StatusRejected,
			expected: true,
		},
		{
			name:     "Pending 不是終止狀態",
			status:   StatusPending,
			expected: false,
		},
		{
			name:     "Confirmed 不是終止狀態",
			status:   StatusConfirmed,
			expected: false,
		},
		{
			name:     "InPreparation 不是終止狀態",
			status:   StatusInPreparation,
			expected: false,
		},
		{
			name:     "Shipped 不是終止狀態",
			status:   StatusShipped,
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsFinal())
		})
	}
}

func TestOrderStatus_IsValid(t *testing.T) {
	tests := []struct {
		name     string
		status   OrderStatus
		expected bool
	}{
		{
			name:     "Pending 是合法狀態",
			status:   StatusPending,
			expected: true,
		},
		{
			name:     "Delivered 是合法狀態",
			status:   StatusDelivered,
			expected: true,
		},
		{
			name:     "未定義的狀態不合法",
			status:   OrderStatus("Shipping"),
			expected: false,
		},
		{
			name:     "空字串不合法",
			status:   OrderStatus(""),
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.status.IsValid())
		})
	}
}

func TestOrderStatus_String(t *testing.T) {
	tests := []struct {
		name     string
		status   OrderStatus
		expected string
	}{
		{
			name:     "Pending 狀態字串",
			status:   StatusPending,
			expected: "Pending",
		},
		{
			name:     "Confirmed 狀態字串",
			status:   StatusConfirmed,
			expected: "Confirmed",
		},
		{
			name:     "InPreparation 狀態字串",
			status:   StatusInPreparation,
			expected: "InPreparation",
		},
		{
			name:     "Shipped 狀態字串",
			status:   StatusShipped,
			expected: "Shipped",
		},
		{
			name:     "Delivered 狀態字串",
			status:   StatusDelivered,
			expected: "Delivered",
		},
		{
			name:     "Cancelled 狀態字串",
			status:   StatusCancelled,
			expected: "Cancelled",
		},
		{
			name:     "Rejected 狀態字串",
			status:   StatusRejected,
			expected: "Rejected",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.status.String()
			assert.Equal(t, tt.expected, result)
		})
	}
}
