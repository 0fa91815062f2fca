package config

import (
	"fmt"

	"github.com/spf13/viper"
)

func defaultAllowedOrigins() []string {
	return []string{
		fmt.Sprintf("http://localhost:%d", DefaultServerPort),
		fmt.Sprintf("http://127.0.0.1:%d", DefaultServerPort),
	}
}

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Database defaults
	v.SetDefault("database.path", "tempo.db")

	// Server defaults
	v.SetDefault("server.host", DefaultServerHost)
	v.SetDefault("server.port", DefaultServerPort)
	v.SetDefault("server.allowed_origins", defaultAllowedOrigins())

	// Scheduler defaults
	v.SetDefault("scheduler.autorun", false)
	v.SetDefault("scheduler.flush_interval_seconds", 1)
}
