package game

import (
	"fmt"
	"strings"
	"time"

	"github.com/hitoshi/sixtyk/internal/model"
)

// Policy はセカンドチャンスを提示する条件。
type Policy string

const (
	// PolicyLosing は終了理由に関わらず、スコアが勝利ラインに届かなければ提示する。
	PolicyLosing Policy = "losing"
	// PolicyTimeout は時間切れかつ勝利ライン未満のときだけ提示する。
	PolicyTimeout Policy = "timeout"
	// PolicyNever は提示しない。
	PolicyNever Policy = "never"
)

// ParsePolicy は文字列からPolicyを得る。
func ParsePolicy(s string) (Policy, error) {
	switch p := Policy(strings.ToLower(strings.TrimSpace(s))); p {
	case PolicyLosing, PolicyTimeout, PolicyNever:
		return p, nil
	case "":
		return PolicyLosing, nil
	default:
		return "", fmt.Errorf("unknown second chance policy: %q", s)
	}
}

// Eligible は終了状態とスコアからセカンドチャンスを提示するかを返す。
func (p Policy) Eligible(phase Phase, score, winThreshold int) bool {
	if !phase.Terminal() || score >= winThreshold {
		return false
	}
	switch p {
	case PolicyLosing:
		return true
	case PolicyTimeout:
		return phase == PhaseTimedOut
	default:
		return false
	}
}

// Recorder はセッションのイベントをメトリクスとして記録する。
type Recorder interface {
	SessionStarted()
	TerminalTransition(reason model.ScoreReason)
	ScoreSubmission(result string)
	SecondChance(outcome string)
	LeaderboardRefreshed(d time.Duration, err error)
	LiveSessions(n int)
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted() {}
func (nopRecorder) TerminalTransition(model.ScoreReason) {}
func (nopRecorder) ScoreSubmission(string) {}
func (nopRecorder) SecondChance(string) {}
func (nopRecorder) LeaderboardRefreshed(time.Duration, error) {}
func (nopRecorder) LiveSessions(int) {}
