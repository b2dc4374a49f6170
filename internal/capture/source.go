// Package capture runs the frame-acquisition loop. A Source yields frames
// from a live device or a video file; the Worker pulls them at the target
// rate, stores the latest in the frame store, and hands each one to a
// registered handler.
package capture

import (
	"errors"

	"safespace/internal/framestore"
)

// ErrEmptyRead marks a transient empty read. The worker logs it and
// retries after a short delay without terminating the loop.
var ErrEmptyRead = errors.New("capture: empty frame read")

// Source is the acquisition backend. Open must be called before ReadFrame;
// a failed Open means the worker never enters its loop. ReadFrame returns
// ErrEmptyRead for a transient miss and io.EOF when a finite source is
// exhausted.
type Source interface {
	Open() error
	ReadFrame() (framestore.Frame, error)
	Close() error
}

// Rewinder is implemented by finite sources that can restart playback.
// The worker rewinds on end-of-stream when looping is configured.
type Rewinder interface {
	Rewind() error
}

// FrameHandler receives every successfully captured frame. Implementations
// run on the worker goroutine, so a slow handler throttles acquisition;
// a panicking handler is caught and logged without stopping the loop.
type FrameHandler interface {
	OnFrame(frame framestore.Frame)
}

// FrameHandlerFunc adapts a function to the FrameHandler interface.
type FrameHandlerFunc func(frame framestore.Frame)

func (f FrameHandlerFunc) OnFrame(frame framestore.Frame) { f(frame) }
