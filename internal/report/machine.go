package report

import (
	"log/slog"
	"sync"
	"time"

	"safespace/internal/config"
	"safespace/internal/display"
	"safespace/internal/logging"
)

// Machine is the report state machine. Two states: idle and awaiting
// confirmation. The transition into awaiting is a single check-and-set
// under the mutex, so concurrent manual and AI triggers produce exactly
// one accepted report.
type Machine struct {
	nodeID       string
	lat          float64
	long         float64
	surface      display.Surface
	logger       *slog.Logger
	confirmAfter time.Duration

	mu       sync.Mutex
	awaiting bool
	timer    *time.Timer
	now      func() time.Time
}

// NewMachine wires the state machine to the node identity and the display
// it drives. A zero confirmation timeout disables the stuck-awaiting
// escape hatch.
func NewMachine(cfg config.Node, network config.Network, surface display.Surface, logger *slog.Logger) *Machine {
	return &Machine{
		nodeID:       cfg.ID,
		lat:          cfg.Lat,
		long:         cfg.Long,
		surface:      surface,
		logger:       logging.NewComponentLogger(logger, "report-machine"),
		confirmAfter: time.Duration(network.ConfirmationTimeout) * time.Second,
		now:          time.Now,
	}
}

// Awaiting reports whether a submitted report is still unconfirmed.
func (m *Machine) Awaiting() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.awaiting
}

// RequestReport admits a new accident report unless one is already in
// flight. On acceptance the returned report is ready for submission and
// the machine is in the awaiting state until OnInstruction runs.
func (m *Machine) RequestReport(trigger Trigger, laneNumber string, media []string) (AccidentReport, error) {
	m.mu.Lock()
	if m.awaiting {
		m.mu.Unlock()
		m.logger.Info("report rejected, confirmation pending",
			logging.String("trigger", string(trigger)),
			logging.String(logging.FieldLane, laneNumber))
		return AccidentReport{}, ErrAwaitingConfirmation
	}
	m.awaiting = true
	m.armTimeoutLocked()
	now := m.now()
	m.mu.Unlock()

	rep := AccidentReport{
		NodeID:     m.nodeID,
		Lat:        m.lat,
		Long:       m.long,
		LaneNumber: laneNumber,
		MediaPaths: append([]string(nil), media...),
		AIDetected: trigger.AIDetected(),
		Timestamp:  now,
	}
	m.logger.Info("report accepted",
		logging.String("trigger", string(trigger)),
		logging.String(logging.FieldLane, laneNumber),
		logging.Int("media", len(rep.MediaPaths)))
	return rep, nil
}

// OnInstruction applies a Central Unit decision. The awaiting flag is
// cleared unconditionally, then the display is updated: a non-accident
// verdict resets everything to defaults, an accident verdict raises the
// alert. Speed and lane updates apply when present; lane indices beyond
// the configured lane count are skipped, not errors.
func (m *Machine) OnInstruction(inst Instruction) {
	m.mu.Lock()
	m.awaiting = false
	m.disarmTimeoutLocked()
	m.mu.Unlock()

	m.logger.Info("instruction received",
		logging.Bool("is_accident", inst.IsAccident),
		logging.Int("speed_limit", inst.SpeedLimit),
		logging.Int("lane_states", len(inst.LaneStates)))

	if !inst.IsAccident {
		if err := m.surface.ResetToDefaults(); err != nil {
			m.logger.Warn("reset display", logging.Error(err))
		}
	} else {
		if err := m.surface.SetAlert(true); err != nil {
			m.logger.Warn("set alert", logging.Error(err))
		}
	}

	if inst.SpeedLimit > 0 {
		if err := m.surface.UpdateSpeed(inst.SpeedLimit); err != nil {
			m.logger.Warn("update speed", logging.Error(err))
		}
	}
	for i, raw := range inst.LaneStates {
		status, err := display.ParseLaneStatus(raw)
		if err != nil {
			m.logger.Warn("unknown lane status in instruction",
				logging.Int(logging.FieldLane, i),
				logging.String("value", raw))
			continue
		}
		if err := m.surface.UpdateLane(i, status); err != nil {
			m.logger.Debug("lane index beyond configured count",
				logging.Int(logging.FieldLane, i))
		}
	}
}

// armTimeoutLocked schedules the awaiting flag to auto-clear so the node
// cannot stay stuck when the Central Unit never answers. Caller holds mu.
func (m *Machine) armTimeoutLocked() {
	if m.confirmAfter <= 0 {
		return
	}
	m.timer = time.AfterFunc(m.confirmAfter, m.expireConfirmation)
}

func (m *Machine) disarmTimeoutLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

func (m *Machine) expireConfirmation() {
	m.mu.Lock()
	expired := m.awaiting
	m.awaiting = false
	m.timer = nil
	m.mu.Unlock()
	if expired {
		m.logger.Warn("confirmation timed out, accepting new reports",
			logging.Duration("timeout", m.confirmAfter))
	}
}
