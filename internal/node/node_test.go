package node

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"safespace/internal/config"
	"safespace/internal/display"
	"safespace/internal/journal"
	"safespace/internal/report"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	base := t.TempDir()
	cfg := config.Default()
	cfg.Node.ID = "node-7"
	cfg.Node.LaneCount = 3
	cfg.Paths.DataDir = filepath.Join(base, "data")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.MediaDir = filepath.Join(base, "media")

	jstore, err := journal.Open(&cfg)
	if err != nil {
		t.Fatalf("open journal: %v", err)
	}
	t.Cleanup(func() { _ = jstore.Close() })

	n, err := New(&cfg, jstore, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return n
}

func TestNewRequiresConfigAndJournal(t *testing.T) {
	if _, err := New(nil, nil, nil); err == nil {
		t.Fatal("New should reject nil inputs")
	}
}

func TestStatusBeforeStart(t *testing.T) {
	n := newTestNode(t)

	status := n.Status()
	if status.Running {
		t.Fatal("node should not report running before Start")
	}
	if status.NodeID != "node-7" {
		t.Fatalf("NodeID = %q", status.NodeID)
	}
	if status.AwaitingConfirmation {
		t.Fatal("fresh node should not be awaiting confirmation")
	}
	if len(status.Display.Lanes) != 3 {
		t.Fatalf("display lanes = %d, want 3", len(status.Display.Lanes))
	}
}

func TestTriggerReportSuppressesDuplicatesUntilInstruction(t *testing.T) {
	n := newTestNode(t)
	ctx := context.Background()

	id, err := n.TriggerReport(ctx, "2")
	if err != nil {
		t.Fatalf("first trigger: %v", err)
	}
	if id == "" {
		t.Fatal("accepted report should be journaled")
	}

	if _, err := n.TriggerReport(ctx, "2"); !errors.Is(err, report.ErrAwaitingConfirmation) {
		t.Fatalf("second trigger = %v, want ErrAwaitingConfirmation", err)
	}

	n.OnInstruction(report.Instruction{IsAccident: true, SpeedLimit: 80})

	if _, err := n.TriggerReport(ctx, "1"); err != nil {
		t.Fatalf("trigger after instruction: %v", err)
	}
}

func TestInstructionConfirmsJournaledReport(t *testing.T) {
	n := newTestNode(t)
	ctx := context.Background()

	id, err := n.TriggerReport(ctx, "0")
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}

	n.OnInstruction(report.Instruction{IsAccident: false})

	reports, err := n.RecentReports(ctx, 10)
	if err != nil {
		t.Fatalf("RecentReports: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != id {
		t.Fatalf("unexpected journal entries: %+v", reports)
	}
	if reports[0].Status != journal.ReportConfirmed {
		t.Fatalf("report status = %q, want confirmed", reports[0].Status)
	}

	instructions, err := n.RecentInstructions(ctx, 10)
	if err != nil {
		t.Fatalf("RecentInstructions: %v", err)
	}
	if len(instructions) != 1 {
		t.Fatalf("got %d instructions, want 1", len(instructions))
	}
}

func TestInstructionDrivesDisplay(t *testing.T) {
	n := newTestNode(t)

	n.OnInstruction(report.Instruction{
		IsAccident: true,
		SpeedLimit: 60,
		LaneStates: []string{"blocked", "left"},
	})

	state := n.Status().Display
	if !state.AlertActive || state.SpeedLimit != 60 {
		t.Fatalf("display state = %+v", state)
	}
	if state.Lanes[0] != display.LaneBlocked || state.Lanes[1] != display.LaneDivertLeft {
		t.Fatalf("lanes = %v", state.Lanes)
	}
	if state.Lanes[2] != display.LaneOpen {
		t.Fatal("untouched lane should stay open")
	}
}

func TestOfflineTriggerRecordsNetworkFailure(t *testing.T) {
	n := newTestNode(t)

	if _, err := n.TriggerReport(context.Background(), "1"); err != nil {
		t.Fatalf("trigger: %v", err)
	}

	history := n.RecentFailures(10)
	if len(history) == 0 {
		t.Fatal("offline submission should record a failure")
	}
}
