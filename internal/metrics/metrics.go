// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・リアルタイムハブから利用する。
type MetricsCollector interface {
	RecordReadingCreated(kind string)
	RecordStorageFailure(kind string)
	RecordAuthRejection(reason string)
	RecordBroadcast(event string)
	RecordBroadcastDropped(event string)
	SetRealtimeClients(n int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	readingsCreated  *prometheus.CounterVec
	storageFailures  *prometheus.CounterVec
	authRejections   *prometheus.CounterVec
	broadcasts       *prometheus.CounterVec
	broadcastDropped *prometheus.CounterVec
	realtimeClients  prometheus.Gauge
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		readingsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_readings_created_total",
			Help: "種別ごとの計測値登録数",
		}, []string{"kind"}),
		storageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_storage_failures_total",
			Help: "種別ごとのデータベース操作失敗数",
		}, []string{"kind"}),
		authRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_auth_rejections_total",
			Help: "認証ゲートで拒否したリクエスト数",
		}, []string{"reason"}),
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_realtime_broadcasts_total",
			Help: "リアルタイム配信したイベント数",
		}, []string{"event"}),
		broadcastDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_realtime_dropped_total",
			Help: "バッファ満杯で破棄したイベント数",
		}, []string{"event"}),
		realtimeClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "healthtrack_realtime_clients",
			Help: "接続中のリアルタイムクライアント数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "healthtrack_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthtrack_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.readingsCreated,
		c.storageFailures,
		c.authRejections,
		c.broadcasts,
		c.broadcastDropped,
		c.realtimeClients,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordReadingCreated は計測値の登録を記録する。
func (c *Collector) RecordReadingCreated(kind string) {
	c.readingsCreated.WithLabelValues(kind).Inc()
}

// RecordStorageFailure はデータベース操作の失敗を記録する。
func (c *Collector) RecordStorageFailure(kind string) {
	c.storageFailures.WithLabelValues(kind).Inc()
}

// RecordAuthRejection は認証ゲートでの拒否を記録する。reasonはmissing/invalid。
func (c *Collector) RecordAuthRejection(reason string) {
	c.authRejections.WithLabelValues(reason).Inc()
}

// RecordBroadcast はイベント配信を記録する。
func (c *Collector) RecordBroadcast(event string) {
	c.broadcasts.WithLabelValues(event).Inc()
}

// RecordBroadcastDropped はイベント破棄を記録する。
func (c *Collector) RecordBroadcastDropped(event string) {
	c.broadcastDropped.WithLabelValues(event).Inc()
}

// SetRealtimeClients は接続中クライアント数を設定する。
func (c *Collector) SetRealtimeClients(n int) {
	c.realtimeClients.Set(float64(n))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Noop は何も記録しないMetricsCollector。テストやメトリクス無効時に使う。
type Noop struct{}

func (Noop) RecordReadingCreated(string)        {}
func (Noop) RecordStorageFailure(string)        {}
func (Noop) RecordAuthRejection(string)         {}
func (Noop) RecordBroadcast(string)             {}
func (Noop) RecordBroadcastDropped(string)      {}
func (Noop) SetRealtimeClients(int)             {}
func (Noop) RecordHTTPStatus(int)               {}
func (Noop) RecordRequestLatency(time.Duration) {}

// compile-time interface checks
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Noop{}
)
