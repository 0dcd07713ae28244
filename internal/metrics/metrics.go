// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/crotonn/writers-backend/internal/identity"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// ミドルウェアやサービス層から利用する。
type MetricsCollector interface {
	RecordSignIn()
	RecordSignUp()
	RecordSignOut()
	RecordRefresh()
	RecordGuardDecision(outcome string)
	RecordHTTPStatus(statusCode int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	signIns        prometheus.Counter
	signUps        prometheus.Counter
	signOuts       prometheus.Counter
	refreshes      prometheus.Counter
	guardDecisions *prometheus.CounterVec
	httpStatus     *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		signIns: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "writers_sign_in_total",
			Help: "サインイン成功の合計数",
		}),
		signUps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "writers_sign_up_total",
			Help: "アカウント作成の合計数",
		}),
		signOuts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "writers_sign_out_total",
			Help: "サインアウトの合計数",
		}),
		refreshes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "writers_session_refresh_total",
			Help: "透過的なセッションリフレッシュの合計数",
		}),
		guardDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writers_guard_decision_total",
			Help: "ルートガード判定の結果別合計数",
		}, []string{"outcome"}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "writers_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.signIns,
		c.signUps,
		c.signOuts,
		c.refreshes,
		c.guardDecisions,
		c.httpStatus,
	)

	return c
}

// RecordSignIn はサインイン成功を記録する。
func (c *Collector) RecordSignIn() {
	c.signIns.Inc()
}

// RecordSignUp はアカウント作成を記録する。
func (c *Collector) RecordSignUp() {
	c.signUps.Inc()
}

// RecordSignOut はサインアウトを記録する。
func (c *Collector) RecordSignOut() {
	c.signOuts.Inc()
}

// RecordRefresh はセッションリフレッシュを記録する。
func (c *Collector) RecordRefresh() {
	c.refreshes.Inc()
}

// RecordGuardDecision はルートガード判定の結果を記録する。
func (c *Collector) RecordGuardDecision(outcome string) {
	c.guardDecisions.WithLabelValues(outcome).Inc()
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// SubscribeEvents はセッション変化イベントを購読してメトリクスに反映する。
// 返された解除関数を呼ぶまでバックグラウンドで集計を続ける。
func (c *Collector) SubscribeEvents(events *identity.Events) func() {
	ch, unsubscribe := events.Subscribe()

	go func() {
		for ev := range ch {
			switch ev.Type {
			case identity.EventSignedIn:
				c.RecordSignIn()
			case identity.EventSignedOut:
				c.RecordSignOut()
			case identity.EventRefreshed:
				c.RecordRefresh()
			}
		}
	}()

	return unsubscribe
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute は/metricsエンドポイントを提供するHTTPハンドラーを返す。
// Prometheusスクレイプに対応する。
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}
