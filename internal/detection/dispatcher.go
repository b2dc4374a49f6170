package detection

import (
	"fmt"
	"log/slog"
	"sync"

	"safespace/internal/config"
	"safespace/internal/framestore"
	"safespace/internal/logging"
)

// ModelEntry is one loaded model: its identity, threshold, class labels,
// and the backend handle that runs it.
type ModelEntry struct {
	Name       string
	Confidence float64
	Classes    []string
	handle     Handle
}

// Handler receives a detection event per model that found objects during
// automatic dispatch. It runs on the frame producer's goroutine.
type Handler interface {
	OnDetection(model string, det Detection, frame framestore.Frame)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(model string, det Detection, frame framestore.Frame)

func (f HandlerFunc) OnDetection(model string, det Detection, frame framestore.Frame) {
	f(model, det, frame)
}

// Dispatcher maintains the name-to-entry mapping and runs every loaded
// model against incoming frames. Load and unload are guarded so they can
// race with detection calls; iteration always follows configuration order.
type Dispatcher struct {
	backend Backend
	store   *framestore.Store
	logger  *slog.Logger

	mu      sync.RWMutex
	entries map[string]*ModelEntry
	order   []string
	handler Handler
}

// NewDispatcher builds an empty dispatcher over the given backend and
// frame store.
func NewDispatcher(backend Backend, store *framestore.Store, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		backend: backend,
		store:   store,
		logger:  logging.NewComponentLogger(logger, "detection-dispatcher"),
		entries: make(map[string]*ModelEntry),
	}
}

// SetHandler registers the detection-event consumer for automatic mode.
func (d *Dispatcher) SetHandler(handler Handler) {
	d.mu.Lock()
	d.handler = handler
	d.mu.Unlock()
}

// LoadModel resolves the model's artifacts through the backend and stores
// the entry. On failure no entry is created.
func (d *Dispatcher) LoadModel(cfg config.Model) error {
	handle, err := d.backend.Load(cfg.Path, cfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load model %q: %w", cfg.Name, err)
	}

	entry := &ModelEntry{
		Name:       cfg.Name,
		Confidence: cfg.Confidence,
		Classes:    append([]string(nil), cfg.Classes...),
		handle:     handle,
	}

	d.mu.Lock()
	if _, exists := d.entries[cfg.Name]; exists {
		d.mu.Unlock()
		_ = handle.Close()
		return fmt.Errorf("model %q already loaded", cfg.Name)
	}
	d.entries[cfg.Name] = entry
	d.order = append(d.order, cfg.Name)
	d.mu.Unlock()

	d.logger.Info("model loaded",
		logging.String(logging.FieldModel, cfg.Name),
		logging.Float64("confidence", cfg.Confidence),
		logging.Bool("accelerated", d.backend.Accelerated()))
	return nil
}

// LoadEnabled loads every enabled model in configuration order. A model
// that fails to load is logged and skipped; the rest continue. Returns
// the number of models loaded.
func (d *Dispatcher) LoadEnabled(models []config.Model) int {
	loaded := 0
	for _, m := range models {
		if !m.Enabled {
			continue
		}
		if err := d.LoadModel(m); err != nil {
			d.logger.Warn("skipping model",
				logging.String(logging.FieldModel, m.Name),
				logging.Error(err))
			continue
		}
		loaded++
	}
	return loaded
}

// UnloadModel removes the entry and releases its handle.
func (d *Dispatcher) UnloadModel(name string) error {
	d.mu.Lock()
	entry, ok := d.entries[name]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}
	delete(d.entries, name)
	for i, n := range d.order {
		if n == name {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
	d.mu.Unlock()

	if err := entry.handle.Close(); err != nil {
		return fmt.Errorf("release model %q: %w", name, err)
	}
	d.logger.Info("model unloaded", logging.String(logging.FieldModel, name))
	return nil
}

// Detect runs one named model against the frame. An empty result is not
// an error; a backend fault is returned to the caller and is fatal to the
// call, not to the process.
func (d *Dispatcher) Detect(name string, frame framestore.Frame) (Detection, error) {
	d.mu.RLock()
	entry, ok := d.entries[name]
	d.mu.RUnlock()
	if !ok {
		return Detection{}, fmt.Errorf("%w: %q", ErrUnknownModel, name)
	}

	det, err := d.backend.Infer(entry.handle, frame, entry.Confidence)
	if err != nil {
		return Detection{}, fmt.Errorf("infer with model %q: %w", name, err)
	}
	det.Model = name
	return det, nil
}

// OnFrame is the automatic mode: run every loaded model in configuration
// order against the frame and raise one detection event per non-empty
// result. Satisfies the capture worker's frame-handler contract.
func (d *Dispatcher) OnFrame(frame framestore.Frame) {
	d.mu.RLock()
	order := append([]string(nil), d.order...)
	handler := d.handler
	d.mu.RUnlock()

	for _, name := range order {
		det, err := d.Detect(name, frame)
		if err != nil {
			d.logger.Error("detection failed",
				logging.String(logging.FieldModel, name),
				logging.Error(err))
			continue
		}
		if det.Empty() {
			continue
		}
		d.logger.Info("objects detected",
			logging.String(logging.FieldModel, name),
			logging.Int("count", len(det.Boxes)))
		if handler != nil {
			handler.OnDetection(name, det, frame)
		}
	}
}

// ProcessLatest is the pull mode: fetch the current frame and run every
// loaded model against it synchronously, returning the full result set
// including empty results. Raises no events.
func (d *Dispatcher) ProcessLatest() (map[string]Detection, error) {
	frame, ok := d.store.Get()
	if !ok {
		return nil, ErrNoFrame
	}

	d.mu.RLock()
	order := append([]string(nil), d.order...)
	d.mu.RUnlock()

	results := make(map[string]Detection, len(order))
	for _, name := range order {
		det, err := d.Detect(name, frame)
		if err != nil {
			return nil, err
		}
		results[name] = det
	}
	return results, nil
}

// ModelNames returns the loaded model names in configuration order.
func (d *Dispatcher) ModelNames() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]string(nil), d.order...)
}

// Close unloads every model. Used at shutdown.
func (d *Dispatcher) Close() {
	for _, name := range d.ModelNames() {
		if err := d.UnloadModel(name); err != nil {
			d.logger.Warn("unload model", logging.Error(err))
		}
	}
}
