package main

import (
	"os"
	"path/filepath"
	"testing"

	"safespace/internal/report"
)

func TestStatusCommandRendersNodeAndDisplay(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Node Status")
	requireContains(t, out, "node-7")
	requireContains(t, out, "Road Display")
	requireContains(t, out, "Lane")
}

func TestTriggerCommandReportsDuplicateSuppression(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"trigger", "--lane", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	requireContains(t, out, "submitted")

	out, _, err = runCLI(t, []string{"trigger", "--lane", "1"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	requireContains(t, out, "awaiting confirmation")
}

func TestReportsCommandListsTriggeredReport(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"trigger"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	out, _, err := runCLI(t, []string{"reports"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("reports: %v", err)
	}
	requireContains(t, out, "manual")
	requireContains(t, out, "submitted")
}

func TestInstructionsCommandListsCentralUnitDecision(t *testing.T) {
	env := setupCLITestEnv(t)

	env.node.OnInstruction(report.Instruction{IsAccident: true, SpeedLimit: 60})

	out, _, err := runCLI(t, []string{"instructions"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("instructions: %v", err)
	}
	requireContains(t, out, "60")
	requireContains(t, out, "yes")
}

func TestFailuresCommandListsOfflineDrop(t *testing.T) {
	env := setupCLITestEnv(t)

	if _, _, err := runCLI(t, []string{"trigger"}, env.socketPath, env.configPath); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	out, _, err := runCLI(t, []string{"failures"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("failures: %v", err)
	}
	requireContains(t, out, "NetworkError")
}

func TestLogsCommandShowsTail(t *testing.T) {
	env := setupCLITestEnv(t)

	logPath := env.node.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("alpha\nbeta\ngamma\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	out, _, err := runCLI(t, []string{"logs", "--lines", "2"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	requireContains(t, out, "beta")
	requireContains(t, out, "gamma")
	if len(out) > 0 && out[0] == 'a' {
		t.Fatalf("expected only the last two lines, got %q", out)
	}
}

func TestStopCommandStopsNode(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"stop"}, env.socketPath, env.configPath)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	requireContains(t, out, "Daemon stopped")

	status := env.node.Status()
	if status.Running {
		t.Fatal("node should not be running after stop")
	}
}
