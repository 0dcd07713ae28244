package middleware

import "net/http"

// HTTPStatusMetrics はレスポンスのステータスコードを記録するインターフェース。
type HTTPStatusMetrics interface {
	RecordHTTPStatus(statusCode int)
}

// NewStatusMetricsMiddleware はレスポンスのステータスコードをメトリクスに記録する
// ミドルウェアを返す。metricsはnilを許容する。
func NewStatusMetricsMiddleware(metrics HTTPStatusMetrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rec, r)

			metrics.RecordHTTPStatus(rec.statusCode)
		})
	}
}
