package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeNode(); err != nil {
		return err
	}
	c.normalizeCamera()
	if err := c.normalizeModels(); err != nil {
		return err
	}
	c.normalizeNetwork()
	c.normalizeFailures()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.MediaDir, err = ExpandPath(c.Paths.MediaDir); err != nil {
		return fmt.Errorf("paths.media_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNode() error {
	if value, ok := os.LookupEnv("SAFESPACE_NODE_ID"); ok && strings.TrimSpace(value) != "" {
		c.Node.ID = strings.TrimSpace(value)
	}
	c.Node.ID = strings.TrimSpace(c.Node.ID)
	if c.Node.LaneCount <= 0 {
		c.Node.LaneCount = defaultLaneCount
	}
	if c.Node.DefaultSpeed <= 0 {
		c.Node.DefaultSpeed = defaultSpeedLimit
	}
	return nil
}

func (c *Config) normalizeCamera() {
	c.Camera.Source = strings.ToLower(strings.TrimSpace(c.Camera.Source))
	if c.Camera.Source == "" {
		c.Camera.Source = defaultCameraSource
	}
	if c.Camera.FPS <= 0 {
		c.Camera.FPS = defaultCameraFPS
	}
	if c.Camera.Width <= 0 {
		c.Camera.Width = defaultCameraWidth
	}
	if c.Camera.Height <= 0 {
		c.Camera.Height = defaultCameraHeight
	}
}

func (c *Config) normalizeModels() error {
	seen := make(map[string]struct{}, len(c.Models))
	for i := range c.Models {
		m := &c.Models[i]
		m.Name = strings.TrimSpace(m.Name)
		if m.Name == "" {
			return fmt.Errorf("models[%d].name must be set", i)
		}
		if _, dup := seen[m.Name]; dup {
			return fmt.Errorf("models: duplicate name %q", m.Name)
		}
		seen[m.Name] = struct{}{}

		var err error
		if m.Path, err = ExpandPath(m.Path); err != nil {
			return fmt.Errorf("models[%d].path: %w", i, err)
		}
		if m.ConfigPath != "" {
			if m.ConfigPath, err = ExpandPath(m.ConfigPath); err != nil {
				return fmt.Errorf("models[%d].config_path: %w", i, err)
			}
		}
		if m.Confidence <= 0 {
			m.Confidence = 0.5
		}
	}
	return nil
}

func (c *Config) normalizeNetwork() {
	if value, ok := os.LookupEnv("SAFESPACE_SERVER_URL"); ok && strings.TrimSpace(value) != "" {
		c.Network.ServerURL = strings.TrimSpace(value)
	}
	c.Network.ServerURL = strings.TrimRight(strings.TrimSpace(c.Network.ServerURL), "/")
	if c.Network.HeartbeatInterval <= 0 {
		c.Network.HeartbeatInterval = defaultHeartbeatInterval
	}
	if c.Network.ReportTimeout <= 0 {
		c.Network.ReportTimeout = defaultReportTimeout
	}
	if c.Network.ConfirmationTimeout < 0 {
		c.Network.ConfirmationTimeout = 0
	}
}

func (c *Config) normalizeFailures() {
	if c.Failures.Threshold <= 0 {
		c.Failures.Threshold = defaultFailureThreshold
	}
	if c.Failures.WindowSeconds <= 0 {
		c.Failures.WindowSeconds = defaultFailureWindow
	}
	if c.Failures.MaxHistory <= 0 {
		c.Failures.MaxHistory = defaultFailureMaxHistory
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
