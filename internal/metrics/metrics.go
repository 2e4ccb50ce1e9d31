package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gin-gonic/gin"
)

var (
	// conversionDuration は変換処理の所要時間を形式ペアごとに記録します。
	conversionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "conversion_duration_seconds",
			Help:    "Time spent converting files",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"source_format", "target_format"},
	)

	// filesProcessed は処理したファイル数を系統と結果ごとに数えます。
	filesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "files_processed_total",
			Help: "Number of files processed",
		},
		[]string{"category", "status"},
	)

	// conversionErrors は変換エラーを種類ごとに数えます。
	conversionErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "conversion_errors_total",
			Help: "Number of conversion errors",
		},
		[]string{"error_type"},
	)
)

// ObserveConversion は変換1件の所要時間を記録します。
func ObserveConversion(sourceFormat, targetFormat string, elapsed time.Duration) {
	conversionDuration.WithLabelValues(sourceFormat, targetFormat).Observe(elapsed.Seconds())
}

// CountProcessed は処理済みファイルを1件数えます。status は success / failure です。
func CountProcessed(category, status string) {
	filesProcessed.WithLabelValues(category, status).Inc()
}

// CountError は変換エラーを1件数えます。
func CountError(errorType string) {
	conversionErrors.WithLabelValues(errorType).Inc()
}

// Handler は GET /metrics のハンドラーを返します。
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
