// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 認証試行の結果ラベル
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordHTTPRequest(statusCode int, duration time.Duration)
	RecordAuthAttempt(method, outcome string)
	RecordPostCreated()
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpDuration prometheus.Histogram
	authAttempts *prometheus.CounterVec
	postsCreated prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkpost_http_requests_total",
			Help: "HTTPステータスコード別のリクエスト数",
		}, []string{"status_code"}),
		httpDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inkpost_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
		authAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inkpost_auth_attempts_total",
			Help: "認証方式・結果別の認証試行数",
		}, []string{"method", "outcome"}),
		postsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inkpost_posts_created_total",
			Help: "作成された記事の合計数",
		}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpDuration,
		c.authAttempts,
		c.postsCreated,
	)

	return c
}

// RecordHTTPRequest はHTTPリクエストのステータスコードと処理時間を記録する。
func (c *Collector) RecordHTTPRequest(statusCode int, duration time.Duration) {
	c.httpRequests.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	c.httpDuration.Observe(duration.Seconds())
}

// RecordAuthAttempt は認証試行を記録する。methodはpassword, register, federatedのいずれか。
func (c *Collector) RecordAuthAttempt(method, outcome string) {
	c.authAttempts.WithLabelValues(method, outcome).Inc()
}

// RecordPostCreated は記事作成を記録する。
func (c *Collector) RecordPostCreated() {
	c.postsCreated.Inc()
}

// Middleware は全リクエストのステータスコードと処理時間を記録するミドルウェアを返す。
func Middleware(collector MetricsCollector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			collector.RecordHTTPRequest(status, time.Since(start))
		})
	}
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
