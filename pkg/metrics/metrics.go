package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// OrderMetrics 訂單服務的 Prometheus 指標
type OrderMetrics struct {
	OrdersCreated    prometheus.Counter
	CreationFailures *prometheus.CounterVec
	CreationDuration prometheus.Histogram
	EventsPublished  *prometheus.CounterVec
	StockAdjustments prometheus.Counter
}

// NewOrderMetrics 創建訂單指標並註冊到指定的 registry
func NewOrderMetrics(reg prometheus.Registerer) *OrderMetrics {
	m := &OrderMetrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ec_order_service",
			Name:      "orders_created_total",
			Help:      "Total number of orders created successfully.",
		}),
		CreationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec_order_service",
			Name:      "order_creation_failures_total",
			Help:      "Total number of order creation failures by stage.",
		}, []string{"stage"}),
		CreationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ec_order_service",
			Name:      "order_creation_duration_seconds",
			Help:      "Duration of the order creation workflow in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ec_order_service",
			Name:      "events_published_total",
			Help:      "Total number of events published by event type.",
		}, []string{"event_type"}),
		StockAdjustments: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ec_order_service",
			Name:      "stock_adjustments_total",
			Help:      "Total number of stock adjustments pushed to the product service.",
		}),
	}

	reg.MustRegister(
		m.OrdersCreated,
		m.CreationFailures,
		m.CreationDuration,
		m.EventsPublished,
		m.StockAdjustments,
	)

	return m
}

// Handler 返回 Prometheus 指標的 HTTP handler（使用預設 registry）
func Handler() http.Handler {
	return promhttp.Handler()
}
