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
// セッションゲート・ワークスペース・永続化層・HTTP層から利用する。
type MetricsCollector interface {
	RecordSessionTransition(from, to string)
	RecordSignIn(result string)
	RecordRecordMutation(kind, op string)
	ObservePersistence(op string, duration time.Duration, err error)
	RecordHTTPStatus(statusCode int)
	SetActiveWorkspaces(n int)
	RecordWorkspacesEvicted(count int)
}

// サインイン結果のラベル値。
const (
	SignInSuccess    = "success"
	SignInFailure    = "failure"
	SignInSuperseded = "superseded"
)

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	sessionTransitions *prometheus.CounterVec
	signIns            *prometheus.CounterVec
	recordMutations    *prometheus.CounterVec
	persistenceOps     *prometheus.CounterVec
	persistenceLatency *prometheus.HistogramVec
	httpStatus         *prometheus.CounterVec
	activeWorkspaces   prometheus.Gauge
	workspacesEvicted  prometheus.Counter
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uxtemplate_session_transitions_total",
			Help: "セッションゲートの状態遷移数",
		}, []string{"from", "to"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uxtemplate_sign_in_total",
			Help: "結果別のサインイン試行数",
		}, []string{"result"}),
		recordMutations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uxtemplate_record_mutations_total",
			Help: "レコード種別・操作別の変更数",
		}, []string{"kind", "op"}),
		persistenceOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uxtemplate_persistence_operations_total",
			Help: "永続化アダプタの操作数",
		}, []string{"op", "result"}),
		persistenceLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uxtemplate_persistence_latency_seconds",
			Help:    "永続化アダプタの操作レイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uxtemplate_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		activeWorkspaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "uxtemplate_active_workspaces",
			Help: "メモリ上に保持しているワークスペース数",
		}),
		workspacesEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "uxtemplate_workspaces_evicted_total",
			Help: "アイドルにより破棄されたワークスペースの合計数",
		}),
	}

	reg.MustRegister(
		c.sessionTransitions,
		c.signIns,
		c.recordMutations,
		c.persistenceOps,
		c.persistenceLatency,
		c.httpStatus,
		c.activeWorkspaces,
		c.workspacesEvicted,
	)

	return c
}

// RecordSessionTransition はセッションゲートの状態遷移を記録する。
func (c *Collector) RecordSessionTransition(from, to string) {
	c.sessionTransitions.WithLabelValues(from, to).Inc()
}

// RecordSignIn はサインイン試行の結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// RecordRecordMutation はレコードの変更を記録する。opはadd, remove, update, toggle。
func (c *Collector) RecordRecordMutation(kind, op string) {
	c.recordMutations.WithLabelValues(kind, op).Inc()
}

// ObservePersistence は永続化操作の結果とレイテンシを記録する。
func (c *Collector) ObservePersistence(op string, duration time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	c.persistenceOps.WithLabelValues(op, result).Inc()
	c.persistenceLatency.WithLabelValues(op).Observe(duration.Seconds())
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SetActiveWorkspaces は保持中のワークスペース数を設定する。
func (c *Collector) SetActiveWorkspaces(n int) {
	c.activeWorkspaces.Set(float64(n))
}

// RecordWorkspacesEvicted は破棄したワークスペース数を記録する。
func (c *Collector) RecordWorkspacesEvicted(count int) {
	c.workspacesEvicted.Add(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop は何も記録しないMetricsCollector。メトリクスを使わない構成とテストで使用する。
type Nop struct{}

func (Nop) RecordSessionTransition(string, string) {}
func (Nop) RecordSignIn(string) {}
func (Nop) RecordRecordMutation(string, string) {}
func (Nop) ObservePersistence(string, time.Duration, error) {}
func (Nop) RecordHTTPStatus(int) {}
func (Nop) SetActiveWorkspaces(int) {}
func (Nop) RecordWorkspacesEvicted(int) {}

// compile-time interface check
var (
	_ MetricsCollector = (*Collector)(nil)
	_ MetricsCollector = Nop{}
)
