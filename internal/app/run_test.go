package app

import (
	"bytes"
	"testing"
)

// DBに接続できない環境ではserve/workerは接続エラーで即座に戻る。

func TestRun_ServeCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("expected database connection error, got nil")
	}
}

func TestRun_WorkerCommand_FailsWithoutDatabase(t *testing.T) {
	setTestEnv(t)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"worker"}); err == nil {
		t.Fatal("expected database connection error, got nil")
	}
}

func TestRun_ServeCommand_InvalidPolicyFailsBeforeDatabase(t *testing.T) {
	setTestEnv(t)
	t.Setenv("SECOND_CHANCE_POLICY", "sometimes")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("expected config error, got nil")
	}
}

func TestRun_WithMissingEnv_ReturnsError(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("BASE_URL", "")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"serve"}); err == nil {
		t.Fatal("Run with missing env should return error")
	}
}

func TestRun_Healthcheck_FailsWhenNothingListens(t *testing.T) {
	t.Setenv("SERVER_PORT", "1")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"healthcheck"}); err == nil {
		t.Fatal("expected healthcheck error, got nil")
	}
}
