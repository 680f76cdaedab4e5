package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

var validLevels = map[string]struct{}{
	"trace": {}, "verbose": {}, "debug": {}, "info": {}, "information": {},
	"warn": {}, "warning": {}, "error": {}, "fatal": {}, "critical": {},
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePipeline(); err != nil {
		return err
	}
	if len(c.Sinks) == 0 {
		return errors.New("at least one sink must be configured")
	}
	seen := make(map[string]struct{}, len(c.Sinks))
	for i := range c.Sinks {
		sink := &c.Sinks[i]
		if err := sink.validate(); err != nil {
			return err
		}
		if _, dup := seen[sink.Name]; dup {
			return fmt.Errorf("sinks: duplicate name %q", sink.Name)
		}
		seen[sink.Name] = struct{}{}
	}
	return nil
}

func (c *Config) validatePipeline() error {
	if err := validateLevel("pipeline.default_minimum_level", c.Pipeline.DefaultMinimumLevel); err != nil {
		return err
	}
	for prefix, level := range c.Pipeline.LevelOverrides {
		if strings.TrimSpace(prefix) == "" {
			return errors.New("pipeline.level_overrides: empty source prefix")
		}
		if err := validateLevel("pipeline.level_overrides["+prefix+"]", level); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sink) validate() error {
	switch s.Kind {
	case "console":
	case "file":
		if s.Path == "" {
			return fmt.Errorf("sinks[%s]: file sink requires path", s.Name)
		}
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("sinks[%s]: sqlite sink requires path", s.Name)
		}
	case "remote":
		if s.Endpoint == "" {
			return fmt.Errorf("sinks[%s]: remote sink requires endpoint", s.Name)
		}
		parsed, err := url.Parse(s.Endpoint)
		if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") {
			return fmt.Errorf("sinks[%s]: endpoint must be an http(s) URL", s.Name)
		}
	case "":
		return fmt.Errorf("sinks[%s]: kind must be set", s.Name)
	default:
		return fmt.Errorf("sinks[%s]: unknown kind %q", s.Name, s.Kind)
	}

	if s.MinimumLevel != "" {
		if err := validateLevel("sinks["+s.Name+"].minimum_level", s.MinimumLevel); err != nil {
			return err
		}
	}
	if s.Overflow != "drop-newest" && s.Overflow != "drop-oldest" {
		return fmt.Errorf("sinks[%s]: overflow must be drop-newest or drop-oldest", s.Name)
	}
	return nil
}

func validateLevel(field, value string) error {
	if _, ok := validLevels[strings.ToLower(strings.TrimSpace(value))]; !ok {
		return fmt.Errorf("%s: unknown level %q", field, value)
	}
	return nil
}
