// Package metrics Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CatalogRequests 外部目录请求数，按接口与结果
	CatalogRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miroku",
		Name:      "catalog_requests_total",
		Help:      "Requests sent to the external movie catalog.",
	}, []string{"endpoint", "outcome"})

	// CatalogLatency 外部目录请求耗时
	CatalogLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "miroku",
		Name:      "catalog_request_seconds",
		Help:      "Latency of external catalog requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"endpoint"})

	// RefreshItems 刷新条目结果：updated / unchanged / failed
	RefreshItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "miroku",
		Name:      "refresh_items_total",
		Help:      "Movies processed by refresh operations.",
	}, []string{"result"})

	// Merges 人物合并次数
	Merges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "miroku",
		Name:      "person_merges_total",
		Help:      "Completed person merges.",
	})
)
