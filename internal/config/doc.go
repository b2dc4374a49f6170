// Package config loads, normalizes, and validates Safespace node
// configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SAFESPACE_NODE_ID and SAFESPACE_SERVER_URL. The Config type centralizes
// every knob the daemon and CLI need: node identity and geometry, camera
// acquisition, detection models, Central Unit networking, failure-tracking
// thresholds, and log output.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical values, and clear validation errors.
package config
