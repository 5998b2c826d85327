// Package commands implements the memguard command line
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"memguard/internal/config"
	"memguard/internal/constants"
	"memguard/internal/version"
	"memguard/pkg/models"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	cfgManager *config.Manager
	logger     *logrus.Logger
	configFile string
)

// rootCmd runs the guard loop
var rootCmd = &cobra.Command{
	Use:   "memguard",
	Short: "Memory guard daemon",
	Long: `memguard periodically scans all processes and terminates any process whose
resident memory exceeds the configured limit, together with the process of the
same user listening on the coupling port.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := loadConfig(cmd); err != nil {
			return err
		}
		checkRoot()
		return runAsService()
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cfgManager = config.New()
	logger = logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	flags := rootCmd.Flags()
	flags.StringVar(&configFile, "config", config.DefaultConfigFile, "config file path")
	flags.String("max-memory", constants.DefaultMaxMemory, `maximum memory allowed per process (e.g. "16GB", "1000MB", "8GiB")`)
	flags.Int("interval", constants.DefaultInterval, "check interval in seconds")
	flags.Int("port", constants.DefaultCouplePort, "port whose listener is terminated alongside a violator of the same user")
	flags.Duration("grace-period", constants.DefaultGracePeriod, "wait after SIGTERM before moving on")
	flags.String("log-level", config.DefaultLogLevel, "log level (debug, info, warn, error)")
	flags.String("log-file", "", "log file path (default stderr)")
}

// loadConfig layers flags over env and config.yml and configures logging
func loadConfig(cmd *cobra.Command) error {
	cfgManager.SetConfigFile(configFile)
	if err := cfgManager.BindFlags(cmd.Flags()); err != nil {
		return err
	}
	if err := cfgManager.LoadConfig(); err != nil {
		return err
	}
	return configureLogger(cfgManager.GetConfig())
}

func configureLogger(cfg *models.Config) error {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(level)

	if cfg.LogFile == "" {
		logger.SetOutput(os.Stderr)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0750); err != nil {
		return fmt.Errorf("error creating log directory: %w", err)
	}
	logger.SetOutput(&lumberjack.Logger{
		Filename:   cfg.LogFile,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     14, // days
		Compress:   true,
	})
	return nil
}
