package network

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"safespace/internal/config"
	"safespace/internal/failures"
	"safespace/internal/logging"
	"safespace/internal/report"
)

// InstructionSink receives decoded Central Unit instructions. The report
// state machine is the production implementation.
type InstructionSink interface {
	OnInstruction(inst report.Instruction)
}

// heartbeatPayload is the periodic keep-alive body.
type heartbeatPayload struct {
	NodeID string `json:"nodeId"`
	Status string `json:"status"`
}

// Unit is the resilience layer above the raw client: it owns the
// heartbeat loop, runs report uploads off the caller's goroutine, and
// turns server pushes into instructions. Individual failures are recorded
// and absorbed; only Stop ends its loops.
type Unit struct {
	nodeID   string
	interval time.Duration
	client   Client
	sink     InstructionSink
	tracker  *failures.Tracker
	logger   *slog.Logger

	mu     sync.Mutex
	online bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewUnit wires the unit to its transport and consumers.
func NewUnit(node config.Node, cfg config.Network, client Client, sink InstructionSink, tracker *failures.Tracker, logger *slog.Logger) *Unit {
	interval := time.Duration(cfg.HeartbeatInterval) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Unit{
		nodeID:   node.ID,
		interval: interval,
		client:   client,
		sink:     sink,
		tracker:  tracker,
		logger:   logging.NewComponentLogger(logger, "network-unit"),
	}
}

// Start subscribes to inbound events and attempts the initial connection.
// A failed connection leaves the unit in offline mode: the error is
// recorded and returned, heartbeats never start, and reports are logged
// rather than uploaded. The node keeps running either way.
func (u *Unit) Start(ctx context.Context) error {
	u.client.Subscribe(u.onEvent)

	if err := u.client.Connect(ctx); err != nil {
		u.tracker.Record(failures.Wrap(failures.KindNetwork, "initial connection failed", true, err))
		return fmt.Errorf("connect to central unit: %w", err)
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	u.mu.Lock()
	u.online = true
	u.cancel = cancel
	u.mu.Unlock()

	u.wg.Add(1)
	go u.heartbeatLoop(loopCtx)
	return nil
}

// Stop ends the heartbeat loop and releases the connection. In-flight
// report uploads run to completion. Idempotent.
func (u *Unit) Stop() {
	u.mu.Lock()
	cancel := u.cancel
	u.cancel = nil
	u.online = false
	u.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	u.wg.Wait()

	if err := u.client.Disconnect(); err != nil {
		u.logger.Warn("disconnect", logging.Error(err))
	}
	u.logger.Info("network unit stopped")
}

// Online reports whether the initial connection succeeded and the unit
// has not been stopped.
func (u *Unit) Online() bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.online
}

// ReportAccident hands the upload to its own goroutine and returns
// immediately. Success or failure never clears the awaiting flag; only an
// inbound instruction does.
func (u *Unit) ReportAccident(rep report.AccidentReport) {
	if !u.Online() {
		u.logger.Warn("offline, report not submitted",
			logging.String(logging.FieldLane, rep.LaneNumber))
		u.tracker.Record(failures.Network("report dropped while offline", false))
		return
	}

	u.logger.Info("submitting accident report",
		logging.String(logging.FieldLane, rep.LaneNumber),
		logging.Bool("ai_detected", rep.AIDetected),
		logging.Int("media", len(rep.MediaPaths)))

	// Not tracked by the wait group: uploads run to completion on their
	// own and shutdown does not await them.
	go u.submit(rep)
}

func (u *Unit) submit(rep report.AccidentReport) {
	fields := map[string]string{
		"nodeId":     rep.NodeID,
		"lat":        strconv.FormatFloat(rep.Lat, 'f', -1, 64),
		"long":       strconv.FormatFloat(rep.Long, 'f', -1, 64),
		"laneNumber": rep.LaneNumber,
	}

	media := rep.MediaPaths
	if len(media) > maxReportMedia {
		media = media[:maxReportMedia]
	}

	status, err := u.client.PostMultipart(ReportPath, fields, media)
	if err != nil {
		u.tracker.Record(failures.Wrap(failures.KindNetwork, "report upload failed", false, err))
		return
	}
	if status != 200 && status != 201 {
		u.tracker.Record(failures.Network(fmt.Sprintf("report rejected with status %d", status), false))
		u.logger.Warn("accident report rejected", logging.Int("status", status))
		return
	}
	u.logger.Info("accident report delivered", logging.Int("status", status))
}

// heartbeatLoop emits the keep-alive on a fixed cadence. A failed emit is
// recorded and the loop continues; one missed beat never stops the next.
func (u *Unit) heartbeatLoop(ctx context.Context) {
	defer u.wg.Done()

	ticker := time.NewTicker(u.interval)
	defer ticker.Stop()

	u.beat()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			u.beat()
		}
	}
}

func (u *Unit) beat() {
	payload := heartbeatPayload{NodeID: u.nodeID, Status: "active"}
	if err := u.client.Emit(EventHeartbeat, payload); err != nil {
		u.tracker.Record(failures.Wrap(failures.KindNetwork, "heartbeat failed", false, err))
		return
	}
	u.logger.Debug("heartbeat sent", logging.String("node_id", u.nodeID))
}

// onEvent translates server pushes into instructions. Unknown events are
// logged at debug and dropped.
func (u *Unit) onEvent(event string, data json.RawMessage) {
	switch event {
	case EventRoadUpdate, EventCentralUnitUpdate, EventAccidentResponse:
		var inst report.Instruction
		if err := json.Unmarshal(data, &inst); err != nil {
			u.logger.Warn("undecodable instruction",
				logging.String(logging.FieldEventType, event), logging.Error(err))
			return
		}
		u.logger.Info("instruction from central unit",
			logging.String(logging.FieldEventType, event))
		u.sink.OnInstruction(inst)
	default:
		u.logger.Debug("ignoring event", logging.String(logging.FieldEventType, event))
	}
}
