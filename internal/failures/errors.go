package failures

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies a node failure for window counting and reporting.
type Kind string

const (
	KindNetwork Kind = "NetworkError"
	KindConfig  Kind = "ConfigError"
	KindDisplay Kind = "DisplayError"
	KindCamera  Kind = "CameraError"
)

// NodeError is the failure value carried through the tracker. Every
// occurrence records its kind, a human-readable message, whether it is
// critical, and the time it happened.
type NodeError struct {
	Kind      Kind
	Message   string
	Critical  bool
	Timestamp time.Time
	Err       error
}

func (e *NodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *NodeError) Unwrap() error { return e.Err }

// New builds a NodeError stamped with the current time.
func New(kind Kind, message string, critical bool) *NodeError {
	return &NodeError{Kind: kind, Message: message, Critical: critical, Timestamp: time.Now()}
}

// Wrap builds a NodeError around an underlying cause.
func Wrap(kind Kind, message string, critical bool, err error) *NodeError {
	return &NodeError{Kind: kind, Message: message, Critical: critical, Timestamp: time.Now(), Err: err}
}

// Network is shorthand for a network-kind failure.
func Network(message string, critical bool) *NodeError {
	return New(KindNetwork, message, critical)
}

// Config is shorthand for a configuration-kind failure.
func Config(message string, critical bool) *NodeError {
	return New(KindConfig, message, critical)
}

// Display is shorthand for a display-kind failure.
func Display(message string, critical bool) *NodeError {
	return New(KindDisplay, message, critical)
}

// Camera is shorthand for a camera-kind failure.
func Camera(message string, critical bool) *NodeError {
	return New(KindCamera, message, critical)
}

// KindOf returns the failure kind for an arbitrary error. Errors outside
// the taxonomy count under their own bucket so the window still sees them.
func KindOf(err error) Kind {
	var nodeErr *NodeError
	if errors.As(err, &nodeErr) {
		return nodeErr.Kind
	}
	return Kind(fmt.Sprintf("%T", err))
}
