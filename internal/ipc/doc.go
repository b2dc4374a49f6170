// Package ipc exposes the node daemon over JSON-RPC Unix sockets and
// ships the matching client used by the CLI.
//
// It owns socket lifecycle management and the request/response DTOs. The
// server fronts the node orchestrator while the client keeps CLI commands
// failing fast when the daemon is offline.
package ipc
