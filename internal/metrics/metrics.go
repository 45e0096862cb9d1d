package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketalert_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketalert_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "endpoint"},
	)

	RateLimitRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketalert_rate_limit_rejected_total",
			Help: "Requests rejected with 429",
		},
		[]string{"tier"},
	)

	RateLimitFailOpenTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketalert_rate_limit_fail_open_total",
			Help: "Requests allowed because the counter store was unavailable",
		},
	)

	// Monitor metrics
	MonitorTicksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketalert_monitor_ticks_total",
			Help: "Alert monitor ticks by outcome",
		},
		[]string{"outcome"}, // ran, lock_held, lock_error, disabled, failed
	)

	MonitorTickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "marketalert_monitor_tick_duration_seconds",
			Help:    "Duration of ticks that held the job lock",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	MonitorConsecutiveInfraSkips = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "marketalert_alert_monitor_consecutive_infra_skips",
			Help: "Ticks skipped in a row because the lock store was unavailable",
		},
	)

	AlertsEvaluatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "marketalert_alerts_evaluated_total",
			Help: "Active alerts evaluated",
		},
	)

	AlertsTriggeredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketalert_alerts_triggered_total",
			Help: "Alerts transitioned to triggered",
		},
		[]string{"kind"},
	)

	AlertEvaluationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketalert_alert_evaluation_errors_total",
			Help: "Per-alert failures while evaluating or persisting",
		},
		[]string{"stage"}, // evaluate, persist, panic
	)

	// Notification metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "marketalert_notifications_total",
			Help: "Channel delivery attempts by outcome",
		},
		[]string{"channel", "outcome"}, // outcome: sent, failed, panic
	)

	NotificationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "marketalert_notification_duration_seconds",
			Help:    "Channel delivery latency",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"channel"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "marketalert_circuit_breaker_state",
			Help: "Breaker state per dependency (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)
)
