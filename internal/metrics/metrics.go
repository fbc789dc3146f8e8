// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector はゲームセッションとHTTPのPrometheusメトリクスを収集する。
// game.Recorderを満たす。
type Collector struct {
	sessionsStarted     prometheus.Counter
	terminalTransitions *prometheus.CounterVec
	scoreSubmissions    *prometheus.CounterVec
	secondChance        *prometheus.CounterVec
	leaderboardLatency  *prometheus.HistogramVec
	liveSessions        prometheus.Gauge
	httpStatus          *prometheus.CounterVec
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		sessionsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "sixtyk_sessions_started_total",
			Help: "開始したゲームセッションの合計数",
		}),
		terminalTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sixtyk_terminal_transitions_total",
			Help: "終了理由別のプレイ終了数",
		}, []string{"reason"}),
		scoreSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sixtyk_score_submissions_total",
			Help: "結果別のスコア保存数（ok, error, discarded）",
		}, []string{"result"}),
		secondChance: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sixtyk_second_chance_total",
			Help: "結果別のセカンドチャンス数",
		}, []string{"outcome"}),
		leaderboardLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "sixtyk_leaderboard_refresh_seconds",
			Help:    "リーダーボード取得のレイテンシ（秒）",
			Buckets: prometheus.DefBuckets,
		}, []string{"result"}),
		liveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "sixtyk_live_sessions",
			Help: "サーバーが保持しているゲームセッション数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "sixtyk_http_responses_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.terminalTransitions,
		c.scoreSubmissions,
		c.secondChance,
		c.leaderboardLatency,
		c.liveSessions,
		c.httpStatus,
	)

	return c
}

// SessionStarted はゲームセッションの開始を記録する。
func (c *Collector) SessionStarted() {
	c.sessionsStarted.Inc()
}

// TerminalTransition はプレイ終了を記録する。
func (c *Collector) TerminalTransition(reason model.ScoreReason) {
	c.terminalTransitions.WithLabelValues(string(reason)).Inc()
}

// ScoreSubmission はスコア保存の結果を記録する。
func (c *Collector) ScoreSubmission(result string) {
	c.scoreSubmissions.WithLabelValues(result).Inc()
}

// SecondChance はセカンドチャンスの結果を記録する。
func (c *Collector) SecondChance(outcome string) {
	c.secondChance.WithLabelValues(outcome).Inc()
}

// LeaderboardRefreshed はリーダーボード取得のレイテンシを記録する。
func (c *Collector) LeaderboardRefreshed(d time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.leaderboardLatency.WithLabelValues(result).Observe(d.Seconds())
}

// LiveSessions は保持しているゲームセッション数を設定する。
func (c *Collector) LiveSessions(n int) {
	c.liveSessions.Set(float64(n))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
