// Package report owns the accident-report lifecycle: the check-and-set
// that admits at most one in-flight report, and the application of
// Central Unit instructions to the display.
package report

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrAwaitingConfirmation is returned when a report request arrives while
// an earlier report is still unconfirmed.
var ErrAwaitingConfirmation = errors.New("report: awaiting confirmation of an earlier report")

// Trigger identifies what raised the report.
type Trigger string

const (
	TriggerManual     Trigger = "manual"
	TriggerAIDetected Trigger = "ai"
)

// AIDetected reports whether the trigger came from a detection model.
func (t Trigger) AIDetected() bool { return t == TriggerAIDetected }

// AccidentReport is the submission handed to the network unit once a
// request is accepted.
type AccidentReport struct {
	NodeID     string
	Lat        float64
	Long       float64
	LaneNumber string
	MediaPaths []string
	AIDetected bool
	Timestamp  time.Time
}

// Instruction is a Central Unit decision applied to the display. Zero
// values for SpeedLimit and LaneStates mean "not present".
type Instruction struct {
	IsAccident bool
	SpeedLimit int
	LaneStates []string
}

// instructionWire tolerates both the camelCase and snake_case field names
// the Central Unit has been observed to send.
type instructionWire struct {
	IsAccident    bool     `json:"isAccident"`
	IsAccidentAlt *bool    `json:"is_accident"`
	SpeedLimit    *int     `json:"speedLimit"`
	SpeedLimitAlt *int     `json:"speed_limit"`
	LaneStates    []string `json:"laneStates"`
	LaneStatesAlt []string `json:"lanes"`
}

// UnmarshalJSON decodes an instruction payload, preferring the camelCase
// spelling when both appear.
func (in *Instruction) UnmarshalJSON(data []byte) error {
	var wire instructionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	in.IsAccident = wire.IsAccident
	if wire.IsAccidentAlt != nil {
		in.IsAccident = *wire.IsAccidentAlt
	}
	in.SpeedLimit = 0
	if wire.SpeedLimit != nil {
		in.SpeedLimit = *wire.SpeedLimit
	} else if wire.SpeedLimitAlt != nil {
		in.SpeedLimit = *wire.SpeedLimitAlt
	}
	in.LaneStates = wire.LaneStates
	if in.LaneStates == nil {
		in.LaneStates = wire.LaneStatesAlt
	}
	return nil
}
