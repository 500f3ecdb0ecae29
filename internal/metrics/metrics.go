// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// アナウンスワーカーとRun Fetcherから利用する。
type MetricsCollector interface {
	RecordRunsFetched(count int)
	RecordRunSkipped(reason string)
	RecordMessageSent()
	RecordDeliveryFailure()
	RecordRecordFailure()
	RecordCycleDuration(duration time.Duration)
	RecordSubscriptionProcessed(success bool)
}

// 候補除外理由のラベル値。
const (
	SkipReasonNoVerifyDate     = "no_verify_date"
	SkipReasonBeforeCutoff     = "before_cutoff"
	SkipReasonNoCategory       = "no_category"
	SkipReasonNoPosition       = "no_position"
	SkipReasonAlreadyDelivered = "already_delivered"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	runsFetched      prometheus.Counter
	runsSkipped      *prometheus.CounterVec
	messagesSent     prometheus.Counter
	deliveryFailures prometheus.Counter
	recordFailures   prometheus.Counter
	cycleDuration    prometheus.Histogram
	subscriptions    *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		runsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runherald_runs_fetched_total",
			Help: "取得した検証済み記録の合計数",
		}),
		runsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runherald_runs_skipped_total",
			Help: "適格性判定で除外された候補の理由別合計数",
		}, []string{"reason"}),
		messagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runherald_messages_sent_total",
			Help: "webhookへ送信したメッセージの合計数",
		}),
		deliveryFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runherald_delivery_failures_total",
			Help: "メッセージID取得前に失敗した送信の合計数",
		}),
		recordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "runherald_record_failures_total",
			Help: "送信成功後に台帳記録に失敗した回数（最重要の異常）",
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "runherald_cycle_duration_seconds",
			Help:    "アナウンスサイクル全体の所要時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		subscriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "runherald_subscriptions_processed_total",
			Help: "処理した購読の結果別合計数",
		}, []string{"result"}),
	}

	reg.MustRegister(
		c.runsFetched,
		c.runsSkipped,
		c.messagesSent,
		c.deliveryFailures,
		c.recordFailures,
		c.cycleDuration,
		c.subscriptions,
	)

	return c
}

// RecordRunsFetched は取得した記録数を記録する。
func (c *Collector) RecordRunsFetched(count int) {
	c.runsFetched.Add(float64(count))
}

// RecordRunSkipped は候補除外を理由別に記録する。
func (c *Collector) RecordRunSkipped(reason string) {
	c.runsSkipped.WithLabelValues(reason).Inc()
}

// RecordMessageSent はメッセージ送信成功を記録する。
func (c *Collector) RecordMessageSent() {
	c.messagesSent.Inc()
}

// RecordDeliveryFailure は送信失敗を記録する。
func (c *Collector) RecordDeliveryFailure() {
	c.deliveryFailures.Inc()
}

// RecordRecordFailure は送信後の台帳記録失敗を記録する。
func (c *Collector) RecordRecordFailure() {
	c.recordFailures.Inc()
}

// RecordCycleDuration はサイクルの所要時間を記録する。
func (c *Collector) RecordCycleDuration(duration time.Duration) {
	c.cycleDuration.Observe(duration.Seconds())
}

// RecordSubscriptionProcessed は購読処理の結果を記録する。
func (c *Collector) RecordSubscriptionProcessed(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	c.subscriptions.WithLabelValues(result).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
