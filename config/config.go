/*
Package config loads server configuration.

PURPOSE:
  One place for all tunables: server address and timeouts, database
  path, and the workflow knobs (max splits per plan, sibling-department
  conflict scope). Values come from an optional yaml file plus
  VACATION_* environment variables; either source alone is enough.

USAGE:
  cfg, err := config.Load("")          // env + defaults
  cfg, err := config.Load("cfg.yaml")  // file + env overrides
*/
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
}

type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

type WorkflowConfig struct {
	// MaxSplits bounds the number of date ranges per plan.
	MaxSplits int `mapstructure:"max_splits"`

	// IncludeSiblingDepartments widens conflict scans to departments
	// sharing the same parent facility.
	IncludeSiblingDepartments bool `mapstructure:"include_sibling_departments"`
}

// Load reads configuration from the optional file path and the
// environment. Environment variables use the VACATION_ prefix with
// underscores, e.g. VACATION_SERVER_PORT=9090.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 15*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)
	v.SetDefault("database.path", "vacations.db")
	v.SetDefault("workflow.max_splits", 6)
	v.SetDefault("workflow.include_sibling_departments", false)

	v.SetEnvPrefix("VACATION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if cfg.Workflow.MaxSplits <= 0 {
		return nil, fmt.Errorf("workflow.max_splits must be positive, got %d", cfg.Workflow.MaxSplits)
	}
	return &cfg, nil
}
