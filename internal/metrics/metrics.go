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
// 取り込みワーカーやサービス層から利用する。
type MetricsCollector interface {
	RecordIngestRun(tenantID string)
	RecordIngestSummary(newCount, duplicateCount, pairingFailures, skipped int)
	RecordIngestFailure(tenantID string)
	RecordFeedHTTPStatus(statusCode int)
	RecordIngestDuration(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	ingestRuns      *prometheus.CounterVec
	ingestFailures  *prometheus.CounterVec
	recordsNew      prometheus.Counter
	recordsDup      prometheus.Counter
	pairingFailures prometheus.Counter
	recordsSkipped  prometheus.Counter
	feedHTTPStatus  *prometheus.CounterVec
	ingestDuration  prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		ingestRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convlog_ingest_runs_total",
			Help: "テナント別の取り込み実行回数",
		}, []string{"tenant_id"}),
		ingestFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convlog_ingest_failures_total",
			Help: "テナント別の取り込み失敗回数",
		}, []string{"tenant_id"}),
		recordsNew: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convlog_records_new_total",
			Help: "新規挿入された会話レコードの合計数",
		}),
		recordsDup: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convlog_records_duplicate_total",
			Help: "重複によりスキップされた会話レコードの合計数",
		}),
		pairingFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convlog_pairing_failures_total",
			Help: "対応する質問が見つからなかった応答レコードの合計数",
		}),
		recordsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "convlog_records_skipped_total",
			Help: "不正データとして除外された発話の合計数",
		}),
		feedHTTPStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "convlog_feed_http_status_total",
			Help: "管理APIのHTTPステータスコード別レスポンス数",
		}, []string{"status_code"}),
		ingestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "convlog_ingest_duration_seconds",
			Help:    "取り込み実行1回あたりの所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.ingestRuns,
		c.ingestFailures,
		c.recordsNew,
		c.recordsDup,
		c.pairingFailures,
		c.recordsSkipped,
		c.feedHTTPStatus,
		c.ingestDuration,
	)

	return c
}

// RecordIngestRun は取り込み実行を記録する。
func (c *Collector) RecordIngestRun(tenantID string) {
	c.ingestRuns.WithLabelValues(tenantID).Inc()
}

// RecordIngestSummary は取り込み1回分の集計を記録する。
func (c *Collector) RecordIngestSummary(newCount, duplicateCount, pairingFailures, skipped int) {
	c.recordsNew.Add(float64(newCount))
	c.recordsDup.Add(float64(duplicateCount))
	c.pairingFailures.Add(float64(pairingFailures))
	c.recordsSkipped.Add(float64(skipped))
}

// RecordIngestFailure は取り込み失敗を記録する。
func (c *Collector) RecordIngestFailure(tenantID string) {
	c.ingestFailures.WithLabelValues(tenantID).Inc()
}

// RecordFeedHTTPStatus は管理APIのHTTPステータスコードを記録する。
func (c *Collector) RecordFeedHTTPStatus(statusCode int) {
	c.feedHTTPStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordIngestDuration は取り込み実行の所要時間を記録する。
func (c *Collector) RecordIngestDuration(duration time.Duration) {
	c.ingestDuration.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
