package upstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "portal_proxy_requests_total",
		Help: "Proxied upstream calls by method and response status (0 = transport failure).",
	}, []string{"method", "status"})

	proxyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "portal_proxy_request_duration_seconds",
		Help:    "Latency of proxied upstream calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)
