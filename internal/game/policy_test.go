package game

import "testing"

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"losing", PolicyLosing, false},
		{" Timeout ", PolicyTimeout, false},
		{"NEVER", PolicyNever, false},
		{"", PolicyLosing, false},
		{"sometimes", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, %v", tt.in, got, err)
		}
	}
}

func TestPolicy_Eligible(t *testing.T) {
	const threshold = 20000
	tests := []struct {
		policy Policy
		phase  Phase
		score  int
		want   bool
	}{
		{PolicyLosing, PhaseTimedOut, 19999, true},
		{PolicyLosing, PhaseGameOverPendingChance, 12000, true},
		{PolicyLosing, PhaseTimedOut, 25000, false},
		{PolicyLosing, PhaseTimedOut, 20000, false},
		{PolicyLosing, PhaseActive, 0, false},
		{PolicyLosing, PhaseTerminated, 0, false},
		{PolicyTimeout, PhaseTimedOut, 500, true},
		{PolicyTimeout, PhaseGameOverPendingChance, 500, false},
		{PolicyTimeout, PhaseTimedOut, 30000, false},
		{PolicyNever, PhaseTimedOut, 0, false},
	}
	for _, tt := range tests {
		if got := tt.policy.Eligible(tt.phase, tt.score, threshold); got != tt.want {
			t.Errorf("%s.Eligible(%s, %d) = %v, want %v", tt.policy, tt.phase, tt.score, got, tt.want)
		}
	}
}
