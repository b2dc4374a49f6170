// Package display models the roadside signage this node drives. The
// graphical rendering itself lives outside this core; what the node owns
// is the Surface contract and a thread-safe board-state tracker that
// records what the signs should currently show.
package display

import (
	"fmt"
	"strings"
)

// LaneStatus is the guidance shown above one lane.
type LaneStatus string

const (
	LaneOpen        LaneStatus = "up"
	LaneBlocked     LaneStatus = "blocked"
	LaneDivertLeft  LaneStatus = "left"
	LaneDivertRight LaneStatus = "right"
)

// ParseLaneStatus maps a wire value to a LaneStatus. The Central Unit
// sends the short forms; the long aliases are accepted for operator input.
func ParseLaneStatus(value string) (LaneStatus, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "up", "open":
		return LaneOpen, nil
	case "blocked":
		return LaneBlocked, nil
	case "left", "divert-left":
		return LaneDivertLeft, nil
	case "right", "divert-right":
		return LaneDivertRight, nil
	default:
		return "", fmt.Errorf("unknown lane status %q", value)
	}
}

// Surface is the rendering contract the report machine drives. A real
// implementation pushes to signage hardware or a UI event loop; the Board
// below is the canonical in-process implementation.
type Surface interface {
	UpdateLane(index int, status LaneStatus) error
	UpdateSpeed(limit int) error
	SetAlert(active bool) error
	ResetToDefaults() error
}
