// Package framestore holds the most recent captured frame in a single
// thread-safe slot. Exactly one producer writes it; any number of readers
// take independent copies so nobody aliases the producer's buffer.
package framestore

import (
	"sync"
	"time"
)

// Frame is one captured image: raw pixel bytes plus geometry and the
// capture timestamp. The pixel layout is whatever the acquisition backend
// produced; the store never interprets it.
type Frame struct {
	Pixels     []byte
	Width      int
	Height     int
	Channels   int
	CapturedAt time.Time
}

// Empty reports whether the frame carries no pixel data.
func (f Frame) Empty() bool {
	return len(f.Pixels) == 0
}

// Clone returns a deep copy with its own pixel buffer.
func (f Frame) Clone() Frame {
	clone := f
	if f.Pixels != nil {
		clone.Pixels = make([]byte, len(f.Pixels))
		copy(clone.Pixels, f.Pixels)
	}
	return clone
}

// Store is the single-slot latest-wins frame cache. The zero value is
// ready to use.
type Store struct {
	mu      sync.Mutex
	current Frame
	written bool
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Put replaces the current frame. The store takes its own copy, so the
// caller may keep mutating the passed buffer afterwards.
func (s *Store) Put(frame Frame) {
	clone := frame.Clone()
	s.mu.Lock()
	s.current = clone
	s.written = true
	s.mu.Unlock()
}

// Get returns a copy of the most recently written frame. The second result
// is false when nothing has ever been written.
func (s *Store) Get() (Frame, bool) {
	s.mu.Lock()
	frame := s.current
	written := s.written
	s.mu.Unlock()
	if !written {
		return Frame{}, false
	}
	return frame.Clone(), true
}
