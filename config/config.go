// Package config loads and persists tempo's TOML configuration.
//
// Precedence, lowest to highest: built-in defaults, /etc/tempo/config.toml,
// user config in ~/.tempo, a project tempo.toml or config.toml found by
// upward search, then TEMPO_* environment variables.
package config

import (
	"fmt"
	"time"
)

// Config represents the tempo configuration
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Server    ServerConfig    `mapstructure:"server"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// DatabaseConfig configures the SQLite database
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ServerConfig configures the tempo control server
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// SchedulerConfig configures executor startup and output buffering
type SchedulerConfig struct {
	Autorun              bool `mapstructure:"autorun"`                // run all executors after the initial sync
	FlushIntervalSeconds int  `mapstructure:"flush_interval_seconds"` // output buffer flush cadence
}

// Server constants
const (
	DefaultServerHost = "127.0.0.1"
	DefaultServerPort = 8690
)

// File system constants
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
)

// GetDatabasePath returns the configured database path
func (c *Config) GetDatabasePath() string {
	if c.Database.Path == "" {
		return "tempo.db" // Fallback default
	}
	return c.Database.Path
}

// Addr returns the host:port the server should bind
func (s *ServerConfig) Addr() string {
	host := s.Host
	if host == "" {
		host = DefaultServerHost
	}
	port := s.Port
	if port == 0 {
		port = DefaultServerPort
	}
	return fmt.Sprintf("%s:%d", host, port)
}

// GetServerAllowedOrigins returns the allowed CORS origins
func (c *Config) GetServerAllowedOrigins() []string {
	if len(c.Server.AllowedOrigins) == 0 {
		return defaultAllowedOrigins()
	}
	return c.Server.AllowedOrigins
}

// FlushInterval returns the output buffer flush cadence
func (s *SchedulerConfig) FlushInterval() time.Duration {
	if s.FlushIntervalSeconds <= 0 {
		return time.Second
	}
	return time.Duration(s.FlushIntervalSeconds) * time.Second
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Database: %s, Server: %s, Scheduler: {Autorun: %t, FlushIntervalSeconds: %d}}",
		c.GetDatabasePath(), c.Server.Addr(), c.Scheduler.Autorun, c.Scheduler.FlushIntervalSeconds)
}
