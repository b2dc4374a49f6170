package display

import (
	"fmt"
	"log/slog"
	"sync"

	"safespace/internal/logging"
)

// State is a point-in-time copy of everything the signs show.
type State struct {
	Lanes       []LaneStatus
	SpeedLimit  int
	AlertActive bool
}

// Board tracks displayed state for a fixed number of lanes. It satisfies
// Surface and is safe for concurrent use. Updates are logged so a headless
// node still leaves an audit trail of what drivers were told.
type Board struct {
	mu           sync.Mutex
	lanes        []LaneStatus
	speedLimit   int
	alert        bool
	defaultSpeed int
	logger       *slog.Logger
}

// NewBoard builds a board showing the default state: every lane open,
// the default speed limit, no alert.
func NewBoard(laneCount, defaultSpeed int, logger *slog.Logger) *Board {
	if laneCount <= 0 {
		laneCount = 1
	}
	b := &Board{
		lanes:        make([]LaneStatus, laneCount),
		defaultSpeed: defaultSpeed,
		logger:       logging.NewComponentLogger(logger, "display-board"),
	}
	b.resetLocked()
	return b
}

// UpdateLane sets the guidance for one lane. Indices outside the
// configured lane count are rejected.
func (b *Board) UpdateLane(index int, status LaneStatus) error {
	b.mu.Lock()
	if index < 0 || index >= len(b.lanes) {
		b.mu.Unlock()
		return fmt.Errorf("lane index %d out of range (%d lanes)", index, len(b.lanes))
	}
	b.lanes[index] = status
	b.mu.Unlock()

	b.logger.Info("lane status updated",
		logging.Int(logging.FieldLane, index),
		logging.String("status", string(status)))
	return nil
}

// UpdateSpeed sets the displayed speed limit.
func (b *Board) UpdateSpeed(limit int) error {
	if limit <= 0 {
		return fmt.Errorf("speed limit must be positive, got %d", limit)
	}
	b.mu.Lock()
	b.speedLimit = limit
	b.mu.Unlock()

	b.logger.Info("speed limit updated", logging.Int("limit", limit))
	return nil
}

// SetAlert toggles the accident alert.
func (b *Board) SetAlert(active bool) error {
	b.mu.Lock()
	b.alert = active
	b.mu.Unlock()

	b.logger.Info("accident alert toggled", logging.Bool("active", active))
	return nil
}

// ResetToDefaults reverts to standard highway operation.
func (b *Board) ResetToDefaults() error {
	b.mu.Lock()
	b.resetLocked()
	b.mu.Unlock()

	b.logger.Info("display reset to defaults")
	return nil
}

func (b *Board) resetLocked() {
	for i := range b.lanes {
		b.lanes[i] = LaneOpen
	}
	b.speedLimit = b.defaultSpeed
	b.alert = false
}

// Snapshot returns a copy of the current state.
func (b *Board) Snapshot() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	lanes := make([]LaneStatus, len(b.lanes))
	copy(lanes, b.lanes)
	return State{Lanes: lanes, SpeedLimit: b.speedLimit, AlertActive: b.alert}
}

// LaneCount returns the number of lanes this board drives.
func (b *Board) LaneCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.lanes)
}
