package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics Prometheus 指标（nil 接收者上的方法均为空操作，测试中可直接传 nil）
type Metrics struct {
	snapshotsIngested *prometheus.CounterVec
	ingestRejected    *prometheus.CounterVec
	episodes          *prometheus.CounterVec
	updatesDropped    prometheus.Counter
	notifications     *prometheus.CounterVec
	activeWorkers     prometheus.Gauge
	liveSubscribers   prometheus.Gauge
	httpRequests      *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

// NewMetrics 创建并注册指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		snapshotsIngested: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsoft",
			Name:      "snapshots_ingested_total",
			Help:      "Vital readings written to the telemetry store, by source.",
		}, []string{"source"}),
		ingestRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsoft",
			Name:      "ingest_rejected_total",
			Help:      "Vital readings rejected at the ingestion boundary, by source.",
		}, []string{"source"}),
		episodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsoft",
			Name:      "episodes_total",
			Help:      "Alert episode transitions, by type and classification.",
		}, []string{"type", "classification"}),
		updatesDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "pulsoft",
			Name:      "tracker_updates_dropped_total",
			Help:      "Duplicate or stale snapshot updates ignored by the tracker.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsoft",
			Name:      "notifications_total",
			Help:      "Push notification outcomes (sent, failed, skipped).",
		}, []string{"outcome"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulsoft",
			Name:      "tracker_active_workers",
			Help:      "Per-patient tracker goroutines currently running.",
		}),
		liveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "pulsoft",
			Name:      "live_subscribers",
			Help:      "Open live subscriptions.",
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pulsoft",
			Name:      "http_requests_total",
			Help:      "HTTP requests processed, by route and status.",
		}, []string{"route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "pulsoft",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
	}

	reg.MustRegister(
		m.snapshotsIngested,
		m.ingestRejected,
		m.episodes,
		m.updatesDropped,
		m.notifications,
		m.activeWorkers,
		m.liveSubscribers,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

// Handler /metrics 处理器
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) SnapshotIngested(source string) {
	if m == nil {
		return
	}
	m.snapshotsIngested.WithLabelValues(source).Inc()
}

func (m *Metrics) IngestRejected(source string) {
	if m == nil {
		return
	}
	m.ingestRejected.WithLabelValues(source).Inc()
}

func (m *Metrics) Episode(eventType, classification string) {
	if m == nil {
		return
	}
	m.episodes.WithLabelValues(eventType, classification).Inc()
}

func (m *Metrics) UpdateDropped() {
	if m == nil {
		return
	}
	m.updatesDropped.Inc()
}

// Notification outcome: sent | failed | skipped
func (m *Metrics) Notification(outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(outcome).Inc()
}

func (m *Metrics) WorkerStarted() {
	if m == nil {
		return
	}
	m.activeWorkers.Inc()
}

func (m *Metrics) WorkerStopped() {
	if m == nil {
		return
	}
	m.activeWorkers.Dec()
}

func (m *Metrics) SubscriberOpened() {
	if m == nil {
		return
	}
	m.liveSubscribers.Inc()
}

func (m *Metrics) SubscriberClosed() {
	if m == nil {
		return
	}
	m.liveSubscribers.Dec()
}

// ObserveHTTP 记录一次 HTTP 请求
func (m *Metrics) ObserveHTTP(route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}
