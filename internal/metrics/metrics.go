// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ライフサイクルサービス・モニター・ストアから利用する。
type MetricsCollector interface {
	RecordCheckIn()
	RecordCheckOut(kind string)
	RecordOverdueAlert()
	RecordNotificationFailure()
	RecordMonitorTickDuration(duration time.Duration)
	RecordResync(result string)
	SetActiveSessions(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	checkins       prometheus.Counter
	checkouts      *prometheus.CounterVec
	overdueAlerts  prometheus.Counter
	notifyFails    prometheus.Counter
	tickDuration   prometheus.Histogram
	resyncs        *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		checkins: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seatman_checkins_total",
			Help: "入館処理の合計数",
		}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seatman_checkouts_total",
			Help: "退館処理の合計数（kind: manual/auto）",
		}, []string{"kind"}),
		overdueAlerts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seatman_overdue_alerts_total",
			Help: "長時間滞在アラート発報の合計数",
		}),
		notifyFails: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "seatman_notification_fail_total",
			Help: "アラート配信失敗の合計数",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "seatman_monitor_tick_duration_seconds",
			Help:    "モニターティック処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		resyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seatman_resync_total",
			Help: "ストア再同期の合計数（result: success/error）",
		}, []string{"result"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "seatman_active_sessions",
			Help: "現在の入館中セッション数",
		}),
	}

	reg.MustRegister(
		c.checkins,
		c.checkouts,
		c.overdueAlerts,
		c.notifyFails,
		c.tickDuration,
		c.resyncs,
		c.activeSessions,
	)

	return c
}

// RecordCheckIn は入館を記録する。
func (c *Collector) RecordCheckIn() {
	c.checkins.Inc()
}

// RecordCheckOut は退館を記録する。
func (c *Collector) RecordCheckOut(kind string) {
	c.checkouts.WithLabelValues(kind).Inc()
}

// RecordOverdueAlert はアラート発報を記録する。
func (c *Collector) RecordOverdueAlert() {
	c.overdueAlerts.Inc()
}

// RecordNotificationFailure はアラート配信失敗を記録する。
func (c *Collector) RecordNotificationFailure() {
	c.notifyFails.Inc()
}

// RecordMonitorTickDuration はモニターティックの処理時間を記録する。
func (c *Collector) RecordMonitorTickDuration(duration time.Duration) {
	c.tickDuration.Observe(duration.Seconds())
}

// RecordResync はストア再同期を記録する。
func (c *Collector) RecordResync(result string) {
	c.resyncs.WithLabelValues(result).Inc()
}

// SetActiveSessions は現在の入館中セッション数を設定する。
func (c *Collector) SetActiveSessions(count int) {
	c.activeSessions.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
