// Package config defines the process configuration for the logtap pipeline
// and relay daemon.
//
// The in-memory Config struct is the primary surface: a pipeline is built
// from it directly. Load adds a thin TOML layer on top for the relay
// binary, applying defaults, normalization, and validation in that order.
// Configuration is read once at startup and treated as immutable for the
// process lifetime.
package config
