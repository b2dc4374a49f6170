package logging

// Canonical attribute keys shared by every component so log lines stay
// greppable across the daemon.
const (
	FieldComponent = "component"
	FieldEventType = "event_type"
	FieldModel     = "model"
	FieldLane      = "lane"
	FieldReportID  = "report_id"
	FieldErrorKind = "error_kind"
	FieldErrorHint = "hint"
)
