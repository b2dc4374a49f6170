package config

const (
	defaultNodeID              = "safespace-node-1"
	defaultLaneCount           = 3
	defaultSpeedLimit          = 120
	defaultDataDir             = "~/.local/share/safespace"
	defaultLogDir              = "~/.local/share/safespace/logs"
	defaultMediaDir            = "~/.local/share/safespace/media"
	defaultCameraSource        = "live"
	defaultCameraFPS           = 30
	defaultCameraWidth         = 640
	defaultCameraHeight        = 480
	defaultServerURL           = "http://localhost:5000"
	defaultHeartbeatInterval   = 30
	defaultReportTimeout       = 15
	defaultFailureThreshold    = 5
	defaultFailureWindow       = 300
	defaultFailureMaxHistory   = 100
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultConfirmationTimeout = 0
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Node: Node{
			ID:           defaultNodeID,
			LaneCount:    defaultLaneCount,
			DefaultSpeed: defaultSpeedLimit,
		},
		Paths: Paths{
			DataDir:  defaultDataDir,
			LogDir:   defaultLogDir,
			MediaDir: defaultMediaDir,
		},
		Camera: Camera{
			Source:      defaultCameraSource,
			DeviceIndex: 0,
			Loop:        true,
			FPS:         defaultCameraFPS,
			Width:       defaultCameraWidth,
			Height:      defaultCameraHeight,
		},
		Network: Network{
			ServerURL:           defaultServerURL,
			HeartbeatInterval:   defaultHeartbeatInterval,
			ReportTimeout:       defaultReportTimeout,
			ConfirmationTimeout: defaultConfirmationTimeout,
		},
		Failures: Failures{
			Threshold:     defaultFailureThreshold,
			WindowSeconds: defaultFailureWindow,
			MaxHistory:    defaultFailureMaxHistory,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
