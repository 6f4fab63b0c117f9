package portal

import (
	"github.com/hazyhaar/baextract/portal/internal/config"
)

// Config is the top-level baextract configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PortalConfig locates the portal and its two display languages.
type PortalConfig = config.PortalConfig

// TimeoutsConfig holds every bounded wait.
type TimeoutsConfig = config.TimeoutsConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// BatchConfig controls batch mode.
type BatchConfig = config.BatchConfig

// DefaultConfig returns the configuration of the live portal.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfigFile reads a YAML configuration file over the built-in defaults.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// ParseConfig decodes YAML over the built-in defaults.
func ParseConfig(data []byte) (*Config, error) {
	return config.Parse(data)
}
