package detection

import "safespace/internal/framestore"

// Handle is an opaque reference to one loaded detector.
type Handle interface {
	Close() error
}

// Backend is the inference engine behind the dispatcher. Device selection
// (accelerated vs. CPU fallback) is the backend's concern; Accelerated
// only reports which one it landed on.
type Backend interface {
	Load(modelPath, configPath string) (Handle, error)
	Infer(handle Handle, frame framestore.Frame, confidence float64) (Detection, error)
	Accelerated() bool
}
