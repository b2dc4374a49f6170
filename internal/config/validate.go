package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateNode(); err != nil {
		return err
	}
	if err := c.validateCamera(); err != nil {
		return err
	}
	if err := c.validateModels(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateNode() error {
	if c.Node.ID == "" {
		return errors.New("node.id must be set (or export SAFESPACE_NODE_ID)")
	}
	if c.Node.Lat < -90 || c.Node.Lat > 90 {
		return errors.New("node.lat must be between -90 and 90")
	}
	if c.Node.Long < -180 || c.Node.Long > 180 {
		return errors.New("node.long must be between -180 and 180")
	}
	return nil
}

func (c *Config) validateCamera() error {
	switch c.Camera.Source {
	case "live":
		if c.Camera.DeviceIndex < 0 {
			return errors.New("camera.device_index must not be negative")
		}
	case "file":
		if c.Camera.VideoPath == "" {
			return errors.New("camera.video_path must be set when camera.source is \"file\"")
		}
	default:
		return fmt.Errorf("camera.source must be \"live\" or \"file\", got %q", c.Camera.Source)
	}
	return nil
}

func (c *Config) validateModels() error {
	for i, m := range c.Models {
		if !m.Enabled {
			continue
		}
		if m.Path == "" {
			return fmt.Errorf("models[%d] (%s): path must be set for enabled models", i, m.Name)
		}
		if m.Confidence < 0 || m.Confidence > 1 {
			return fmt.Errorf("models[%d] (%s): confidence must be between 0 and 1", i, m.Name)
		}
	}
	return nil
}

func (c *Config) validateNetwork() error {
	parsed, err := url.Parse(c.Network.ServerURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("network.server_url must be a valid URL, got %q", c.Network.ServerURL)
	}
	switch parsed.Scheme {
	case "http", "https", "ws", "wss":
	default:
		return fmt.Errorf("network.server_url scheme must be http(s) or ws(s), got %q", parsed.Scheme)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	return nil
}
