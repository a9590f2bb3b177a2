// Copyright 2026 Mandatevault Ltd.

// The servermon package is used to update statistics used
// for monitoring the API server.
package servermon

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	AuthenticationFailCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvault",
		Subsystem: "auth",
		Name:      "failure_total",
		Help:      "The number of failed authentications.",
	}, []string{"method"})
	AuthenticationSuccessCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvault",
		Subsystem: "auth",
		Name:      "success_total",
		Help:      "The number of successful authentications.",
	}, []string{"method"})
	DBQueryDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mvault",
		Subsystem: "db",
		Name:      "query_duration_seconds",
		Help:      "Histogram of database query time in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"method"})
	DBQueryErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvault",
		Subsystem: "db",
		Name:      "error_total",
		Help:      "The number of database errors.",
	}, []string{"method"})
	VerificationCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvault",
		Subsystem: "verifier",
		Name:      "verification_total",
		Help:      "The number of credential verifications by protocol and outcome.",
	}, []string{"protocol", "status"})
	TrustStoreRefreshCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvault",
		Subsystem: "truststore",
		Name:      "refresh_total",
		Help:      "The number of issuer key set refreshes.",
	}, []string{"outcome"})
	TrustStoreRefreshDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mvault",
		Subsystem: "truststore",
		Name:      "refresh_duration_seconds",
		Help:      "Histogram of issuer key set refresh time in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"issuer"})
	WebhookDeliveryCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvault",
		Subsystem: "webhook",
		Name:      "delivery_total",
		Help:      "The number of webhook delivery attempts by outcome.",
	}, []string{"outcome"})
	WebhookDeliveryDurationHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mvault",
		Subsystem: "webhook",
		Name:      "delivery_duration_seconds",
		Help:      "Histogram of webhook delivery time in seconds",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"event_type"})
	InboundEventCount = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "mvault",
		Subsystem: "inbound",
		Name:      "event_total",
		Help:      "The number of inbound webhook events by type and outcome.",
	}, []string{"event_type", "outcome"})
	AuthorizationsPurgedCount = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "mvault",
		Subsystem: "retention",
		Name:      "purged_total",
		Help:      "The number of authorizations purged by the retention reaper.",
	})
	ResponseTimeHistogram = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "mvault",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "The duration of handling an HTTP request in seconds.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"route", "method"})
)

// DurationObserver returns a function that, when run with `defer` will
// record the duration of the parent function's execution.
func DurationObserver(m *prometheus.HistogramVec, labelValues ...string) func() {
	start := time.Now()
	return func() {
		m.WithLabelValues(labelValues...).Observe(time.Since(start).Seconds())
	}
}

// ErrorCounter increases the specified counter if the error is not nil.
func ErrorCounter(m *prometheus.CounterVec, err *error, labelValues ...string) {
	if *err == nil {
		return
	}

	m.WithLabelValues(labelValues...).Inc()
}
