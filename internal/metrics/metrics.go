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
// ハンドラーやサービス層から利用する。
type MetricsCollector interface {
	RecordSignIn()
	RecordSignInFailure(reason string)
	RecordCatalogLoad()
	RecordPaperSubmitted()
	RecordCoverUploaded()
	RecordBackendStatus(endpoint string, statusCode int)
	RecordBackendLatency(endpoint string, duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signInSuccess  prometheus.Counter
	signInFail     *prometheus.CounterVec
	catalogLoads   prometheus.Counter
	papersAdded    prometheus.Counter
	coversUploaded prometheus.Counter
	backendStatus  *prometheus.CounterVec
	backendLatency *prometheus.HistogramVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signInSuccess: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kuresearch_sign_in_success_total",
			Help: "サインイン成功の合計数",
		}),
		signInFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kuresearch_sign_in_fail_total",
			Help: "サインイン失敗の合計数（理由別）",
		}, []string{"reason"}),
		catalogLoads: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kuresearch_catalog_load_total",
			Help: "論文カタログのロード成功の合計数",
		}),
		papersAdded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kuresearch_papers_added_total",
			Help: "登録された論文の合計数",
		}),
		coversUploaded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kuresearch_covers_uploaded_total",
			Help: "アップロードされたカバー画像の合計数",
		}),
		backendStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kuresearch_backend_status_total",
			Help: "バックエンドAPI呼び出しのステータスコード別レスポンス数",
		}, []string{"endpoint", "status_code"}),
		backendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kuresearch_backend_latency_seconds",
			Help:    "バックエンドAPI呼び出しのレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}

	reg.MustRegister(
		c.signInSuccess,
		c.signInFail,
		c.catalogLoads,
		c.papersAdded,
		c.coversUploaded,
		c.backendStatus,
		c.backendLatency,
	)

	return c
}

// RecordSignIn はサインイン成功を記録する。
func (c *Collector) RecordSignIn() {
	c.signInSuccess.Inc()
}

// RecordSignInFailure はサインイン失敗を理由付きで記録する。
func (c *Collector) RecordSignInFailure(reason string) {
	c.signInFail.WithLabelValues(reason).Inc()
}

// RecordCatalogLoad はカタログのロード成功を記録する。
func (c *Collector) RecordCatalogLoad() {
	c.catalogLoads.Inc()
}

// RecordPaperSubmitted は論文の登録成功を記録する。
func (c *Collector) RecordPaperSubmitted() {
	c.papersAdded.Inc()
}

// RecordCoverUploaded はカバー画像のアップロード成功を記録する。
func (c *Collector) RecordCoverUploaded() {
	c.coversUploaded.Inc()
}

// RecordBackendStatus はバックエンドAPIのステータスコードを記録する。
func (c *Collector) RecordBackendStatus(endpoint string, statusCode int) {
	c.backendStatus.WithLabelValues(endpoint, strconv.Itoa(statusCode)).Inc()
}

// RecordBackendLatency はバックエンドAPI呼び出しのレイテンシを記録する。
func (c *Collector) RecordBackendLatency(endpoint string, duration time.Duration) {
	c.backendLatency.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
