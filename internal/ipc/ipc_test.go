package ipc_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"safespace/internal/config"
	"safespace/internal/ipc"
	"safespace/internal/journal"
	"safespace/internal/logging"
	"safespace/internal/node"
	"safespace/internal/report"
)

func newTestNode(t *testing.T) (*node.Node, *config.Config) {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Node.ID = "node-7"
	cfg.Node.LaneCount = 2
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.MediaDir = filepath.Join(base, "media")

	jstore, err := journal.Open(&cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = jstore.Close() })

	n, err := node.New(&cfg, jstore, logging.NewNop())
	if err != nil {
		t.Fatalf("node.New: %v", err)
	}
	return n, &cfg
}

func TestIPCServerClient(t *testing.T) {
	n, cfg := newTestNode(t)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	socket := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socket, n, nil, logging.NewNop())
	if err != nil {
		if strings.Contains(err.Error(), "operation not permitted") {
			t.Skipf("skipping IPC server test: %v", err)
		}
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()
	t.Cleanup(srv.Close)

	time.Sleep(50 * time.Millisecond)

	client, err := ipc.Dial(socket)
	if err != nil {
		t.Fatalf("ipc.Dial: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	status, err := client.Status()
	if err != nil {
		t.Fatalf("Status RPC failed: %v", err)
	}
	if status.NodeID != "node-7" {
		t.Fatalf("NodeID = %q", status.NodeID)
	}
	if len(status.Lanes) != 2 {
		t.Fatalf("lanes = %d, want 2", len(status.Lanes))
	}
	if status.AwaitingConfirmation {
		t.Fatal("fresh node should not be awaiting confirmation")
	}

	triggerResp, err := client.Trigger("1")
	if err != nil {
		t.Fatalf("Trigger failed: %v", err)
	}
	if !triggerResp.Accepted || triggerResp.ReportID == "" {
		t.Fatalf("first trigger should be accepted: %#v", triggerResp)
	}

	rejected, err := client.Trigger("1")
	if err != nil {
		t.Fatalf("second Trigger failed: %v", err)
	}
	if rejected.Accepted {
		t.Fatal("second trigger should be rejected while awaiting confirmation")
	}

	reportsResp, err := client.Reports(10)
	if err != nil {
		t.Fatalf("Reports failed: %v", err)
	}
	if len(reportsResp.Reports) != 1 || reportsResp.Reports[0].ID != triggerResp.ReportID {
		t.Fatalf("unexpected reports: %#v", reportsResp.Reports)
	}

	n.OnInstruction(report.Instruction{IsAccident: true, SpeedLimit: 80})

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status after instruction failed: %v", err)
	}
	if status.AwaitingConfirmation {
		t.Fatal("instruction should clear awaiting flag")
	}
	if !status.AlertActive || status.SpeedLimit != 80 {
		t.Fatalf("display not updated: %#v", status)
	}

	instResp, err := client.Instructions(10)
	if err != nil {
		t.Fatalf("Instructions failed: %v", err)
	}
	if len(instResp.Instructions) != 1 || instResp.Instructions[0].SpeedLimit != 80 {
		t.Fatalf("unexpected instructions: %#v", instResp.Instructions)
	}

	failuresResp, err := client.Failures(10)
	if err != nil {
		t.Fatalf("Failures failed: %v", err)
	}
	if len(failuresResp.Failures) == 0 {
		t.Fatal("offline trigger should have recorded a failure")
	}

	logPath := n.LogPath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0o755); err != nil {
		t.Fatalf("mkdir logs: %v", err)
	}
	if err := os.WriteFile(logPath, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatalf("write log file: %v", err)
	}

	logResp, err := client.LogTail(ipc.LogTailRequest{Offset: -1, Limit: 2})
	if err != nil {
		t.Fatalf("LogTail failed: %v", err)
	}
	if len(logResp.Lines) != 2 || logResp.Lines[0] != "second" || logResp.Lines[1] != "third" {
		t.Fatalf("unexpected log tail response: %#v", logResp.Lines)
	}

	stopResp, err := client.Stop()
	if err != nil {
		t.Fatalf("Stop RPC failed: %v", err)
	}
	if !stopResp.Stopped {
		t.Fatal("expected stop response to be true")
	}

	status, err = client.Status()
	if err != nil {
		t.Fatalf("Status after stop failed: %v", err)
	}
	if status.Running {
		t.Fatal("node should not report running after stop")
	}
}
