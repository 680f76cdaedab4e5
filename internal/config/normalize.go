package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Normalize fills omitted fields with defaults and expands paths. Invalid
// values are left in place for Validate to reject.
func (c *Config) Normalize() {
	c.normalizePipeline()
	c.normalizeRelay()
	for i := range c.Sinks {
		c.Sinks[i].normalize()
	}
}

func (c *Config) normalizePipeline() {
	if strings.TrimSpace(c.Pipeline.DefaultMinimumLevel) == "" {
		c.Pipeline.DefaultMinimumLevel = defaultMinimumLevel
	}
	if strings.TrimSpace(c.Pipeline.Environment) == "" {
		c.Pipeline.Environment = defaultEnvironment
	}
	if c.Pipeline.DiagnosticCapacity <= 0 {
		c.Pipeline.DiagnosticCapacity = defaultDiagnosticCapacity
	}
}

func (c *Config) normalizeRelay() {
	c.Relay.Bind = strings.TrimSpace(c.Relay.Bind)
	if c.Relay.Bind == "" {
		c.Relay.Bind = defaultRelayBind
	}
	c.Relay.CorrelationHeader = strings.TrimSpace(c.Relay.CorrelationHeader)
	if c.Relay.CorrelationHeader == "" {
		c.Relay.CorrelationHeader = defaultCorrelationHeader
	}
	if strings.TrimSpace(c.Relay.LockPath) == "" {
		c.Relay.LockPath = defaultRelayLockPath
	}
	c.Relay.LockPath = expandPath(c.Relay.LockPath)
	if strings.TrimSpace(c.Relay.LogLevel) == "" {
		c.Relay.LogLevel = defaultRelayLogLevel
	}
}

func (s *Sink) normalize() {
	s.Name = strings.TrimSpace(s.Name)
	s.Kind = strings.ToLower(strings.TrimSpace(s.Kind))
	if s.Name == "" {
		s.Name = s.Kind
	}
	if s.BufferCapacity <= 0 {
		s.BufferCapacity = defaultBufferCapacity
	}
	if s.BatchSize <= 0 {
		s.BatchSize = defaultBatchSize
	}
	if s.BatchTimeoutMS <= 0 {
		s.BatchTimeoutMS = defaultBatchTimeoutMS
	}
	s.Overflow = strings.ToLower(strings.TrimSpace(s.Overflow))
	if s.Overflow == "" {
		s.Overflow = defaultOverflow
	}
	if s.Retry.MaxAttempts <= 0 {
		s.Retry.MaxAttempts = defaultRetryMaxAttempts
	}
	if s.Retry.BaseDelayMS <= 0 {
		s.Retry.BaseDelayMS = defaultRetryBaseDelayMS
	}
	if s.Retry.MaxDelayMS <= 0 {
		s.Retry.MaxDelayMS = defaultRetryMaxDelayMS
	}
	s.Path = expandPath(strings.TrimSpace(s.Path))
	s.Endpoint = strings.TrimSpace(s.Endpoint)
}

func expandPath(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}

// LevelOverridePairs returns the override table as a deterministic sorted
// view for display purposes.
func (c *Config) LevelOverridePairs() []string {
	pairs := make([]string, 0, len(c.Pipeline.LevelOverrides))
	for prefix, level := range c.Pipeline.LevelOverrides {
		pairs = append(pairs, fmt.Sprintf("%s=%s", prefix, level))
	}
	sort.Strings(pairs)
	return pairs
}
