// Package config provides configuration management functionality for the guard
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"memguard/internal/constants"
	"memguard/internal/units"
	"memguard/pkg/models"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// DefaultConfigFile is the default path to the configuration file
	DefaultConfigFile = "/etc/memguard/config.yml"
	// DefaultLogLevel is the default logging level
	DefaultLogLevel = constants.LogLevelInfo
	// EnvPrefix is the prefix for environment overrides (MEMGUARD_MAX_MEMORY, ...)
	EnvPrefix = "MEMGUARD"
)

// flagKeys maps CLI flag names to config keys
var flagKeys = map[string]string{
	"max-memory":   "max_memory",
	"interval":     "interval",
	"port":         "coupling_port",
	"grace-period": "grace_period",
	"log-level":    "log_level",
	"log-file":     "log_file",
}

// Manager handles configuration management
type Manager struct {
	v          *viper.Viper
	config     *models.Config
	configFile string
	maxMemory  uint64
}

// New creates a new configuration manager
func New() *Manager {
	v := viper.New()
	v.SetDefault("max_memory", constants.DefaultMaxMemory)
	v.SetDefault("interval", constants.DefaultInterval)
	v.SetDefault("coupling_port", constants.DefaultCouplePort)
	v.SetDefault("grace_period", constants.DefaultGracePeriod)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("log_file", "")
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	return &Manager{
		v:          v,
		config:     &models.Config{},
		configFile: DefaultConfigFile,
	}
}

// SetConfigFile sets the path to the config file (called from CLI flag)
func (m *Manager) SetConfigFile(path string) {
	m.configFile = path
}

// GetConfigFile returns the path to the config file
func (m *Manager) GetConfigFile() string {
	return m.configFile
}

// GetConfig returns the current configuration
func (m *Manager) GetConfig() *models.Config {
	return m.config
}

// BindFlags binds the known CLI flags in flags to their config keys.
// Flags that are not present are ignored.
func (m *Manager) BindFlags(flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}
		if err := m.v.BindPFlag(key, flag); err != nil {
			return fmt.Errorf("error binding flag --%s: %w", name, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from file, environment and bound flags and validates it.
// A missing config file is not an error.
func (m *Manager) LoadConfig() error {
	if _, err := os.Stat(m.configFile); err == nil {
		m.v.SetConfigFile(m.configFile)
		m.v.SetConfigType("yaml")
		if err := m.v.ReadInConfig(); err != nil {
			return fmt.Errorf("error reading config file: %w", err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error accessing config file: %w", err)
	}

	cfg := &models.Config{}
	if err := m.v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	maxMemory, err := validate(cfg)
	if err != nil {
		return err
	}

	m.config = cfg
	m.maxMemory = maxMemory
	return nil
}

// MaxMemoryBytes returns the parsed memory ceiling. Only valid after LoadConfig.
func (m *Manager) MaxMemoryBytes() uint64 {
	return m.maxMemory
}

// IntervalDuration returns the poll interval as a duration
func (m *Manager) IntervalDuration() time.Duration {
	return time.Duration(m.config.Interval) * time.Second
}

func validate(cfg *models.Config) (uint64, error) {
	maxMemory, err := units.ParseMemory(cfg.MaxMemory)
	if err != nil {
		return 0, fmt.Errorf("invalid max_memory: %w", err)
	}
	if cfg.Interval < 0 {
		return 0, fmt.Errorf("invalid interval: %d (must be >= 0)", cfg.Interval)
	}
	if cfg.CouplingPort < 1 || cfg.CouplingPort > 65535 {
		return 0, fmt.Errorf("invalid coupling_port: %d (must be 1-65535)", cfg.CouplingPort)
	}
	if cfg.GracePeriod < 0 {
		return 0, fmt.Errorf("invalid grace_period: %s (must be >= 0)", cfg.GracePeriod)
	}
	switch cfg.LogLevel {
	case constants.LogLevelDebug, constants.LogLevelInfo, constants.LogLevelWarn, constants.LogLevelError:
	default:
		return 0, fmt.Errorf("invalid log_level: %q (must be debug, info, warn or error)", cfg.LogLevel)
	}
	return maxMemory, nil
}
