// Copyright (c) 2025 Abdallah Elabd
// SPDX-License-Identifier: MIT

package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// =============================================================================
// PROMETHEUS METRICS
// =============================================================================

var (
	// messageOps counts store mutations by operation.
	messageOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biosyncd",
		Name:      "message_operations_total",
		Help:      "Message store mutations by operation.",
	}, []string{"op"})

	// streamClients tracks currently connected snapshot streams.
	streamClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "biosyncd",
		Name:      "stream_clients",
		Help:      "Currently connected snapshot stream clients.",
	})

	// httpRequests counts handled requests by method and status class.
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "biosyncd",
		Name:      "http_requests_total",
		Help:      "Handled HTTP requests.",
	}, []string{"method", "status"})

	// rateLimited counts requests rejected by the per-client limiter.
	rateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "biosyncd",
		Name:      "rate_limited_total",
		Help:      "Requests rejected by the rate limiter.",
	})
)
