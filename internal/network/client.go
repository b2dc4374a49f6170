// Package network owns the link to the Central Unit: the persistent
// event socket, the multipart report upload, the heartbeat loop, and the
// translation of server pushes into display instructions.
package network

import (
	"context"
	"encoding/json"
)

// Event names on the Central Unit socket.
const (
	EventHeartbeat         = "heartbeat"
	EventRoadUpdate        = "road_update"
	EventCentralUnitUpdate = "central_unit_update"
	EventAccidentResponse  = "admin_accident_response"
)

// ReportPath is the Central Unit endpoint that accepts accident uploads.
const ReportPath = "/api/accident-detected"

// maxReportMedia caps the attachments on one report upload.
const maxReportMedia = 5

// EventHandler consumes one inbound named event. It runs on the socket's
// read goroutine, so it must not block.
type EventHandler func(event string, data json.RawMessage)

// Client is the low-level transport to the Central Unit. Implementations
// must be safe for concurrent Emit and PostMultipart calls.
type Client interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Connected() bool
	Emit(event string, payload any) error
	PostMultipart(path string, fields map[string]string, mediaPaths []string) (int, error)
	Subscribe(handler EventHandler)
}
