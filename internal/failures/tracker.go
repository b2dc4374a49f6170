package failures

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"safespace/internal/config"
	"safespace/internal/logging"
)

// Tracker counts failures per kind inside a trailing time window.
// It is safe for concurrent use; the mutex is held only across map and
// slice updates, never across logging I/O callers might block on.
type Tracker struct {
	mu          sync.Mutex
	threshold   int
	window      time.Duration
	maxHistory  int
	logger      *slog.Logger
	now         func() time.Time
	occurrences map[Kind][]time.Time
	history     []*NodeError
}

// NewTracker builds a tracker from the failure-tracking configuration.
func NewTracker(cfg config.Failures, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tracker{
		threshold:   cfg.Threshold,
		window:      time.Duration(cfg.WindowSeconds) * time.Second,
		maxHistory:  cfg.MaxHistory,
		logger:      logging.NewComponentLogger(logger, "failure-tracker"),
		now:         time.Now,
		occurrences: make(map[Kind][]time.Time),
	}
}

// Record appends a timestamped occurrence under the error's kind and keeps
// it in the bounded history. Crossing the threshold only logs a warning;
// acting on it is the orchestrator's call.
func (t *Tracker) Record(err error) {
	if err == nil {
		return
	}
	kind := KindOf(err)

	var nodeErr *NodeError
	if !errors.As(err, &nodeErr) {
		nodeErr = &NodeError{Kind: kind, Message: err.Error(), Timestamp: t.now(), Err: err}
	}

	t.mu.Lock()
	now := t.now()
	t.occurrences[kind] = pruneBefore(append(t.occurrences[kind], now), now.Add(-t.window))
	count := len(t.occurrences[kind])

	t.history = append(t.history, nodeErr)
	if len(t.history) > t.maxHistory {
		t.history = t.history[len(t.history)-t.maxHistory:]
	}
	exceeded := count >= t.threshold
	t.mu.Unlock()

	if nodeErr.Critical {
		t.logger.Error("critical failure recorded",
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.String("message", nodeErr.Message))
	} else {
		t.logger.Warn("failure recorded",
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.String("message", nodeErr.Message))
	}
	if exceeded {
		t.logger.Warn("failure threshold exceeded",
			logging.String(logging.FieldErrorKind, string(kind)),
			logging.Int("count", count),
			logging.Duration("window", t.window))
	}
}

// IsThresholdExceeded reports whether the kind has at least threshold
// occurrences inside the window. Stale entries are pruned first, so the
// answer decays on its own as time passes.
func (t *Tracker) IsThresholdExceeded(kind Kind) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	entries, ok := t.occurrences[kind]
	if !ok {
		return false
	}
	now := t.now()
	entries = pruneBefore(entries, now.Add(-t.window))
	t.occurrences[kind] = entries
	return len(entries) >= t.threshold
}

// RecentHistory returns up to n failures across all kinds, most recent first.
func (t *Tracker) RecentHistory(n int) []*NodeError {
	t.mu.Lock()
	defer t.mu.Unlock()

	if n <= 0 || len(t.history) == 0 {
		return nil
	}
	if n > len(t.history) {
		n = len(t.history)
	}
	out := make([]*NodeError, n)
	for i := 0; i < n; i++ {
		out[i] = t.history[len(t.history)-1-i]
	}
	return out
}

// Clear resets all tracked failures and history.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.occurrences = make(map[Kind][]time.Time)
	t.history = nil
	t.mu.Unlock()
	t.logger.Info("failure history cleared")
}

func pruneBefore(entries []time.Time, cutoff time.Time) []time.Time {
	keep := entries[:0]
	for _, ts := range entries {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	return keep
}
