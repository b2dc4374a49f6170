// Package node is the orchestrator: it owns every long-lived component,
// wires detections and instructions to the report machine, and enforces
// single-instance execution through a lock file.
package node

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"safespace/internal/capture"
	"safespace/internal/config"
	"safespace/internal/detection"
	"safespace/internal/display"
	"safespace/internal/failures"
	"safespace/internal/framestore"
	"safespace/internal/journal"
	"safespace/internal/logging"
	"safespace/internal/network"
	"safespace/internal/report"
)

// Status is the runtime summary exposed over IPC.
type Status struct {
	Running              bool
	NodeID               string
	PID                  int
	Online               bool
	CameraActive         bool
	AwaitingConfirmation bool
	Models               []string
	Display              display.State
	LockPath             string
	JournalPath          string
	StartedAt            time.Time
}

// Node coordinates the capture pipeline, detection, reporting, and the
// Central Unit link.
type Node struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *framestore.Store
	board   *display.Board
	tracker *failures.Tracker
	machine *report.Machine

	dispatcher *detection.Dispatcher
	worker     *capture.Worker
	unit       *network.Unit
	journal    *journal.Store

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	cameraOK  atomic.Bool
	startedAt time.Time

	mu            sync.Mutex
	pendingReport string
	cancel        context.CancelFunc
}

// New constructs a node with initialized components. The journal store is
// opened by the caller so the CLI can share the open path logic.
func New(cfg *config.Config, jstore *journal.Store, logger *slog.Logger) (*Node, error) {
	if cfg == nil || jstore == nil {
		return nil, errors.New("node requires config and journal store")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	store := framestore.NewStore()
	board := display.NewBoard(cfg.Node.LaneCount, cfg.Node.DefaultSpeed, logger)
	tracker := failures.NewTracker(cfg.Failures, logger)
	machine := report.NewMachine(cfg.Node, cfg.Network, board, logger)

	backend := detection.NewDNNBackend(logger, true)
	dispatcher := detection.NewDispatcher(backend, store, logger)

	source := capture.NewSource(cfg.Camera)
	worker := capture.NewWorker(cfg.Camera, source, store, logger)

	socket := network.NewSocket(cfg.Network.ServerURL,
		time.Duration(cfg.Network.ReportTimeout)*time.Second, logger)

	lockPath := filepath.Join(cfg.Paths.DataDir, "safespaced.lock")
	n := &Node{
		cfg:        cfg,
		logger:     logging.NewComponentLogger(logger, "node"),
		store:      store,
		board:      board,
		tracker:    tracker,
		machine:    machine,
		dispatcher: dispatcher,
		worker:     worker,
		journal:    jstore,
		lockPath:   lockPath,
		lock:       flock.New(lockPath),
	}
	n.unit = network.NewUnit(cfg.Node, cfg.Network, socket, n, tracker, logger)
	return n, nil
}

// Start acquires the instance lock and brings every component up. Camera
// and network failures degrade rather than abort: a node without a camera
// still displays and accepts manual triggers, a node without the Central
// Unit still captures and detects.
func (n *Node) Start(ctx context.Context) error {
	if n.running.Load() {
		return errors.New("node already running")
	}
	if err := n.cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("ensure directories: %w", err)
	}

	ok, err := n.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another safespace node instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	n.mu.Lock()
	n.cancel = cancel
	n.mu.Unlock()

	loaded := n.dispatcher.LoadEnabled(n.cfg.EnabledModels())
	if loaded == 0 {
		n.logger.Warn("no detection models loaded, automatic reporting disabled")
	}
	n.dispatcher.SetHandler(n)
	n.worker.SetFrameHandler(n.dispatcher)

	if err := n.worker.Start(runCtx); err != nil {
		n.tracker.Record(failures.Wrap(failures.KindCamera, "capture source unavailable", true, err))
		n.logger.Warn("running display-only, camera unavailable", logging.Error(err))
		n.cameraOK.Store(false)
	} else {
		n.cameraOK.Store(true)
	}

	if err := n.unit.Start(runCtx); err != nil {
		n.logger.Warn("running offline, central unit unreachable", logging.Error(err))
	}

	n.startedAt = time.Now()
	n.running.Store(true)
	n.logger.Info("safespace node started",
		logging.String("node_id", n.cfg.Node.ID),
		logging.Int("models", loaded),
		logging.Bool("camera", n.cameraOK.Load()),
		logging.Bool("online", n.unit.Online()))
	return nil
}

// Stop shuts every component down in dependency order and releases the
// lock. Idempotent.
func (n *Node) Stop() {
	if !n.running.Load() {
		return
	}

	n.mu.Lock()
	cancel := n.cancel
	n.cancel = nil
	n.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	n.worker.Stop()
	n.unit.Stop()
	n.dispatcher.Close()

	if err := n.lock.Unlock(); err != nil {
		n.logger.Warn("release node lock", logging.Error(err))
	}
	n.running.Store(false)
	n.logger.Info("safespace node stopped")
}

// Close stops the node and releases held resources.
func (n *Node) Close() error {
	n.Stop()
	return nil
}

// Running reports whether Start has completed and Stop has not.
func (n *Node) Running() bool { return n.running.Load() }

// LogPath returns the daemon log file location.
func (n *Node) LogPath() string {
	if n.cfg.Paths.LogDir == "" {
		return ""
	}
	return filepath.Join(n.cfg.Paths.LogDir, "safespace.log")
}

// Status summarizes node runtime state.
func (n *Node) Status() Status {
	return Status{
		Running:              n.running.Load(),
		NodeID:               n.cfg.Node.ID,
		PID:                  os.Getpid(),
		Online:               n.unit.Online(),
		CameraActive:         n.worker.Running(),
		AwaitingConfirmation: n.machine.Awaiting(),
		Models:               n.dispatcher.ModelNames(),
		Display:              n.board.Snapshot(),
		LockPath:             n.lockPath,
		JournalPath:          n.cfg.JournalPath(),
		StartedAt:            n.startedAt,
	}
}

// TriggerReport handles a manual accident trigger: snapshot the current
// frame, run the check-and-set, journal the outcome, and hand the report
// to the network unit. Returns the journal id of the accepted report.
func (n *Node) TriggerReport(ctx context.Context, laneNumber string) (string, error) {
	var media []string
	if path, err := n.snapshot(); err != nil {
		n.logger.Warn("no snapshot for manual report", logging.Error(err))
	} else {
		media = append(media, path)
	}

	rep, err := n.machine.RequestReport(report.TriggerManual, laneNumber, media)
	if err != nil {
		return "", err
	}
	return n.submit(ctx, rep)
}

// OnDetection implements the detection handler: a qualifying model hit
// becomes an AI-triggered report. Rejections while awaiting confirmation
// are expected and only logged.
func (n *Node) OnDetection(model string, det detection.Detection, frame framestore.Frame) {
	var media []string
	if path, err := n.snapshotFrame(frame); err != nil {
		n.logger.Warn("no snapshot for detection report",
			logging.String(logging.FieldModel, model), logging.Error(err))
	} else {
		media = append(media, path)
	}

	rep, err := n.machine.RequestReport(report.TriggerAIDetected, "0", media)
	if err != nil {
		if !errors.Is(err, report.ErrAwaitingConfirmation) {
			n.logger.Error("detection report failed", logging.Error(err))
		}
		return
	}
	if _, err := n.submit(context.Background(), rep); err != nil {
		n.logger.Error("submit detection report", logging.Error(err))
	}
}

// OnInstruction implements the network instruction sink: journal the
// decision, resolve the pending report, and drive the state machine.
func (n *Node) OnInstruction(inst report.Instruction) {
	ctx := context.Background()
	if err := n.journal.RecordInstruction(ctx, network.EventCentralUnitUpdate, inst); err != nil {
		n.logger.Warn("journal instruction", logging.Error(err))
	}

	n.mu.Lock()
	pending := n.pendingReport
	n.pendingReport = ""
	n.mu.Unlock()
	if pending != "" {
		if err := n.journal.ResolveReport(ctx, pending, journal.ReportConfirmed); err != nil {
			n.logger.Warn("resolve journaled report", logging.Error(err))
		}
	}

	n.machine.OnInstruction(inst)
}

// ProcessLatest runs every loaded model against the current frame
// synchronously without raising report triggers. Used by the CLI's
// on-demand detection query.
func (n *Node) ProcessLatest() (map[string]detection.Detection, error) {
	return n.dispatcher.ProcessLatest()
}

// RecentFailures returns the latest failure records, most recent first.
func (n *Node) RecentFailures(count int) []*failures.NodeError {
	return n.tracker.RecentHistory(count)
}

// RecentReports returns the latest journaled reports.
func (n *Node) RecentReports(ctx context.Context, count int) ([]journal.ReportEntry, error) {
	return n.journal.RecentReports(ctx, count)
}

// RecentInstructions returns the latest journaled instructions.
func (n *Node) RecentInstructions(ctx context.Context, count int) ([]journal.InstructionEntry, error) {
	return n.journal.RecentInstructions(ctx, count)
}

func (n *Node) submit(ctx context.Context, rep report.AccidentReport) (string, error) {
	id, err := n.journal.RecordReport(ctx, rep)
	if err != nil {
		n.logger.Warn("journal report", logging.Error(err))
	} else {
		n.mu.Lock()
		n.pendingReport = id
		n.mu.Unlock()
	}

	n.unit.ReportAccident(rep)
	return id, nil
}

// snapshot captures the latest stored frame to the media directory.
func (n *Node) snapshot() (string, error) {
	frame, ok := n.store.Get()
	if !ok {
		return "", errors.New("no frame captured yet")
	}
	return n.snapshotFrame(frame)
}

func (n *Node) snapshotFrame(frame framestore.Frame) (string, error) {
	if n.cfg.Paths.MediaDir == "" {
		return "", errors.New("media directory not configured")
	}
	name := fmt.Sprintf("accident_%s.jpg", time.Now().UTC().Format("20060102T150405.000"))
	path := filepath.Join(n.cfg.Paths.MediaDir, name)
	if err := capture.SaveFrame(frame, path); err != nil {
		return "", fmt.Errorf("save snapshot: %w", err)
	}
	return path, nil
}
