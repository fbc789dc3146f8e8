package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/sixtyk/internal/model"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func gather(t *testing.T, reg *prometheus.Registry, name string) *dto.MetricFamily {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() == name {
			return mf
		}
	}
	t.Fatalf("%s metric not found", name)
	return nil
}

func labelValue(m *dto.Metric, name string) string {
	for _, lp := range m.GetLabel() {
		if lp.GetName() == name {
			return lp.GetValue()
		}
	}
	return ""
}

// TestSessionStarted_IncrementsCounter はセッション開始カウンタが増加することを検証する。
func TestSessionStarted_IncrementsCounter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.SessionStarted()
	c.SessionStarted()

	mf := gather(t, reg, "sixtyk_sessions_started_total")
	if val := mf.GetMetric()[0].GetCounter().GetValue(); val != 2 {
		t.Errorf("sessions_started_total = %v, want 2", val)
	}
}

// TestTerminalTransition_LabelsByReason は終了理由ごとに集計されることを検証する。
func TestTerminalTransition_LabelsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.TerminalTransition(model.ReasonTimeout)
	c.TerminalTransition(model.ReasonGameEnded)
	c.TerminalTransition(model.ReasonGameEnded)

	mf := gather(t, reg, "sixtyk_terminal_transitions_total")
	got := map[string]float64{}
	for _, m := range mf.GetMetric() {
		got[labelValue(m, "reason")] = m.GetCounter().GetValue()
	}
	if got["Timeout"] != 1 || got["Game Ended"] != 2 {
		t.Errorf("terminal transitions = %v", got)
	}
}

// TestScoreSubmissionAndSecondChance_Labels は結果ラベルが記録されることを検証する。
func TestScoreSubmissionAndSecondChance_Labels(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ScoreSubmission("ok")
	c.ScoreSubmission("error")
	c.SecondChance("won")

	subs := gather(t, reg, "sixtyk_score_submissions_total")
	if len(subs.GetMetric()) != 2 {
		t.Errorf("submission series = %d, want 2", len(subs.GetMetric()))
	}
	sc := gather(t, reg, "sixtyk_second_chance_total")
	if labelValue(sc.GetMetric()[0], "outcome") != "won" {
		t.Errorf("outcome label = %q", labelValue(sc.GetMetric()[0], "outcome"))
	}
}

// TestLeaderboardRefreshed_ObservesLatency はヒストグラムに観測されることを検証する。
func TestLeaderboardRefreshed_ObservesLatency(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.LeaderboardRefreshed(150*time.Millisecond, nil)
	c.LeaderboardRefreshed(2*time.Second, errors.New("boom"))

	mf := gather(t, reg, "sixtyk_leaderboard_refresh_seconds")
	var total uint64
	for _, m := range mf.GetMetric() {
		total += m.GetHistogram().GetSampleCount()
	}
	if total != 2 {
		t.Errorf("sample count = %d, want 2", total)
	}
}

// TestLiveSessions_SetsGauge はゲージが最新値になることを検証する。
func TestLiveSessions_SetsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.LiveSessions(5)
	c.LiveSessions(3)

	mf := gather(t, reg, "sixtyk_live_sessions")
	if val := mf.GetMetric()[0].GetGauge().GetValue(); val != 3 {
		t.Errorf("live_sessions = %v, want 3", val)
	}
}

// TestRecordHTTPStatus_LabelsByCode はステータスコード別に集計されることを検証する。
func TestRecordHTTPStatus_LabelsByCode(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordHTTPStatus(200)
	c.RecordHTTPStatus(429)

	mf := gather(t, reg, "sixtyk_http_responses_total")
	codes := map[string]bool{}
	for _, m := range mf.GetMetric() {
		codes[labelValue(m, "status_code")] = true
	}
	if !codes["200"] || !codes["429"] {
		t.Errorf("status codes = %v", codes)
	}
}
