package ipc

// StatusRequest fetches node status.
type StatusRequest struct{}

// LaneState pairs one lane index with its displayed guidance.
type LaneState struct {
	Index  int    `json:"index"`
	Status string `json:"status"`
}

// StatusResponse represents combined node runtime information.
type StatusResponse struct {
	Running              bool        `json:"running"`
	NodeID               string      `json:"node_id"`
	PID                  int         `json:"pid"`
	Online               bool        `json:"online"`
	CameraActive         bool        `json:"camera_active"`
	AwaitingConfirmation bool        `json:"awaiting_confirmation"`
	Models               []string    `json:"models"`
	Lanes                []LaneState `json:"lanes"`
	SpeedLimit           int         `json:"speed_limit"`
	AlertActive          bool        `json:"alert_active"`
	LockPath             string      `json:"lock_path"`
	JournalPath          string      `json:"journal_path"`
	StartedAt            string      `json:"started_at"`
}

// StopRequest asks the daemon process to shut down.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// TriggerRequest raises a manual accident report for a lane.
type TriggerRequest struct {
	Lane string `json:"lane"`
}

// TriggerResponse reports whether the trigger was accepted.
type TriggerResponse struct {
	Accepted bool   `json:"accepted"`
	ReportID string `json:"report_id"`
	Message  string `json:"message"`
}

// DetectRequest runs every loaded model against the current frame.
type DetectRequest struct{}

// DetectResult summarizes one model's outcome.
type DetectResult struct {
	Model string `json:"model"`
	Boxes int    `json:"boxes"`
}

// DetectResponse carries per-model results in configuration order.
type DetectResponse struct {
	Results []DetectResult `json:"results"`
}

// FailuresRequest fetches recent failure records.
type FailuresRequest struct {
	Limit int `json:"limit"`
}

// FailureRecord is one tracked failure occurrence.
type FailureRecord struct {
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	Critical  bool   `json:"critical"`
	Timestamp string `json:"timestamp"`
}

// FailuresResponse carries failure records, most recent first.
type FailuresResponse struct {
	Failures []FailureRecord `json:"failures"`
}

// ReportsRequest fetches recent journaled reports.
type ReportsRequest struct {
	Limit int `json:"limit"`
}

// ReportRecord is one journaled accident report.
type ReportRecord struct {
	ID         string `json:"id"`
	Lane       string `json:"lane"`
	AIDetected bool   `json:"ai_detected"`
	MediaCount int    `json:"media_count"`
	Status     string `json:"status"`
	CreatedAt  string `json:"created_at"`
	ResolvedAt string `json:"resolved_at"`
}

// ReportsResponse carries journaled reports, most recent first.
type ReportsResponse struct {
	Reports []ReportRecord `json:"reports"`
}

// InstructionsRequest fetches recent journaled instructions.
type InstructionsRequest struct {
	Limit int `json:"limit"`
}

// InstructionRecord is one journaled Central Unit decision.
type InstructionRecord struct {
	Event      string   `json:"event"`
	IsAccident bool     `json:"is_accident"`
	SpeedLimit int      `json:"speed_limit"`
	LaneStates []string `json:"lane_states"`
	ReceivedAt string   `json:"received_at"`
}

// InstructionsResponse carries journaled instructions, most recent first.
type InstructionsResponse struct {
	Instructions []InstructionRecord `json:"instructions"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}
