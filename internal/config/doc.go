// Package config provides centralized configuration management for the
// daemon: a JSON configuration file with sensible defaults for every
// subsystem, plus YAML-based network definitions consumed by the chain
// client.
package config
