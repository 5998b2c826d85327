package models

import "time"

// Config represents the guard configuration as read from flags, env and config.yml
type Config struct {
	MaxMemory    string        `mapstructure:"max_memory"`
	Interval     int           `mapstructure:"interval"` // seconds
	CouplingPort int           `mapstructure:"coupling_port"`
	GracePeriod  time.Duration `mapstructure:"grace_period"`
	LogFile      string        `mapstructure:"log_file"`
	LogLevel     string        `mapstructure:"log_level"`
}
