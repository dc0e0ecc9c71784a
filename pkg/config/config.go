package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied when the config leaves chat tunables unset.
const (
	DefaultSessionTimeout = 60 * time.Second
	DefaultPushTimeout    = 5 * time.Second
	DefaultSendBuffer     = 64
	DefaultMaxFrameBytes  = 16 * 1024
	DefaultPerSecond      = 5
	DefaultPerMinute      = 30
	DefaultSweepInterval  = 30 * time.Second
	DefaultLimiterIdle    = time.Hour
	// DefaultLimiterCron evicts idle rate-limiter state hourly.
	DefaultLimiterCron = "0 * * * *"
)

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SessionTimeoutOr returns the configured value or the default.
func (c ChatConfig) SessionTimeoutOr() time.Duration {
	if d := c.SessionTimeout.Duration(); d > 0 {
		return d
	}
	return DefaultSessionTimeout
}

// PushTimeoutOr returns the configured value or the default.
func (c ChatConfig) PushTimeoutOr() time.Duration {
	if d := c.PushTimeout.Duration(); d > 0 {
		return d
	}
	return DefaultPushTimeout
}

// SendBufferOr returns the configured value or the default.
func (c ChatConfig) SendBufferOr() int {
	if c.SendBuffer > 0 {
		return c.SendBuffer
	}
	return DefaultSendBuffer
}

// MaxFrameBytesOr returns the configured value or the default.
func (c ChatConfig) MaxFrameBytesOr() int64 {
	if c.MaxFrameBytes.Int64() > 0 {
		return c.MaxFrameBytes.Int64()
	}
	return DefaultMaxFrameBytes
}

// PerSecondOr returns the configured value or the default.
func (c ChatConfig) PerSecondOr() int {
	if c.PerSecond > 0 {
		return c.PerSecond
	}
	return DefaultPerSecond
}

// PerMinuteOr returns the configured value or the default.
func (c ChatConfig) PerMinuteOr() int {
	if c.PerMinute > 0 {
		return c.PerMinute
	}
	return DefaultPerMinute
}
