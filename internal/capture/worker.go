package capture

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"safespace/internal/config"
	"safespace/internal/framestore"
	"safespace/internal/logging"
)

const defaultRetryDelay = 100 * time.Millisecond

// Worker drives one Source at a target frame rate and publishes every
// frame to the store before invoking the registered handler inline.
type Worker struct {
	source     Source
	store      *framestore.Store
	logger     *slog.Logger
	interval   time.Duration
	retryDelay time.Duration
	loop       bool

	mu      sync.Mutex
	handler FrameHandler
	running bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewWorker builds a worker for the configured camera. The source decides
// what a frame is; the worker only owns pacing, retries, and dispatch.
func NewWorker(cfg config.Camera, source Source, store *framestore.Store, logger *slog.Logger) *Worker {
	fps := cfg.FPS
	if fps <= 0 {
		fps = 30
	}
	return &Worker{
		source:     source,
		store:      store,
		logger:     logging.NewComponentLogger(logger, "capture-worker"),
		interval:   time.Second / time.Duration(fps),
		retryDelay: defaultRetryDelay,
		loop:       cfg.Loop,
	}
}

// SetFrameHandler registers the handler invoked for each captured frame.
// Safe to call before or after Start.
func (w *Worker) SetFrameHandler(handler FrameHandler) {
	w.mu.Lock()
	w.handler = handler
	w.mu.Unlock()
}

// Start opens the source and launches the acquisition loop. An open
// failure is returned to the caller and the loop never starts.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return errors.New("capture worker already running")
	}
	w.mu.Unlock()

	if err := w.source.Open(); err != nil {
		return fmt.Errorf("open capture source: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.mu.Lock()
	w.running = true
	w.stopped = false
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.run(runCtx)

	w.logger.Info("capture source opened", logging.Duration("frame_interval", w.interval))
	return nil
}

// Stop signals the loop to exit after its current iteration and waits for
// it, then closes the source. Idempotent, and safe to call after the loop
// already exited on its own (end-of-stream).
func (w *Worker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	done := w.stopped
	w.stopped = true
	w.mu.Unlock()
	if done {
		return
	}

	if cancel != nil {
		cancel()
	}
	w.wg.Wait()
	if err := w.source.Close(); err != nil {
		w.logger.Warn("close capture source", logging.Error(err))
	}
	w.logger.Info("capture worker stopped")
}

// Running reports whether the acquisition loop is active.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()
	defer func() {
		w.mu.Lock()
		w.running = false
		w.mu.Unlock()
	}()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, err := w.source.ReadFrame()
		switch {
		case err == nil:
			w.store.Put(frame)
			w.dispatch(frame)
		case errors.Is(err, ErrEmptyRead):
			w.logger.Debug("empty frame read, retrying")
			if !sleepCtx(ctx, w.retryDelay) {
				return
			}
		case errors.Is(err, io.EOF):
			if w.loop {
				if rewinder, ok := w.source.(Rewinder); ok {
					if rerr := rewinder.Rewind(); rerr == nil {
						w.logger.Debug("source exhausted, rewinding")
						continue
					} else {
						w.logger.Warn("rewind failed, stopping capture", logging.Error(rerr))
						return
					}
				}
			}
			w.logger.Info("capture source exhausted")
			return
		default:
			w.logger.Warn("frame read failed", logging.Error(err))
			if !sleepCtx(ctx, w.retryDelay) {
				return
			}
		}
	}
}

// dispatch hands the frame to the handler, containing any panic so a
// faulty consumer cannot kill acquisition.
func (w *Worker) dispatch(frame framestore.Frame) {
	w.mu.Lock()
	handler := w.handler
	w.mu.Unlock()
	if handler == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("frame handler panicked", logging.Any("panic", r))
		}
	}()
	handler.OnFrame(frame)
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
