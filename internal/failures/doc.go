// Package failures defines the node error taxonomy and the sliding-window
// failure tracker used to detect systemic faults.
//
// Errors are classified by kind (network, config, display). The tracker
// counts occurrences per kind inside a trailing time window; exceeding the
// configured threshold is a signal the orchestrator can act on, never an
// automatic action. Pruning of stale entries happens lazily on record and
// query, so the tracker carries no timers of its own.
package failures
