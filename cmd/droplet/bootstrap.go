package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Drop-OSS/droplet/pkg/droplet/config"
	"github.com/Drop-OSS/droplet/pkg/droplet/logging"
	"github.com/Drop-OSS/droplet/pkg/droplet/units"
)

// initializeLogging is the root PersistentPreRunE. It creates the XDG
// directories and starts the file logger.
func initializeLogging(cmd *cobra.Command, args []string) error {
	if err := ensureDirectories(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	consoleLevel := ""
	if getVerbose() && !getQuiet() && !interactiveRun(cmd) {
		consoleLevel = "debug"
	}

	if err := logging.Init(logging.Config{
		Level:        cfg.Logging.Level,
		Path:         cfg.Logging.Path,
		Rotation:     parseRotationConfig(cfg.Logging.Rotation),
		Components:   cfg.Logging.Components,
		ConsoleLevel: consoleLevel,
	}); err != nil {
		return fmt.Errorf("failed to initialize logging: %w", err)
	}

	if cmd != nil {
		logging.Get("cli").Debug("command started", "command", cmd.CommandPath(), "args", args)
	}
	return nil
}

func ensureDirectories() error {
	configDir, err := config.ConfigDir()
	if err != nil {
		return err
	}

	for _, dir := range []string{configDir, config.DataDir(), config.StateDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// parseRotationConfig converts the configured rotation settings. An empty
// or invalid max_size falls back to the default.
func parseRotationConfig(rc config.RotationConfig) logging.RotationConfig {
	maxSize := logging.DefaultRotationConfig().MaxSize
	if rc.MaxSize != "" {
		if parsed, err := units.ParseSize(rc.MaxSize); err == nil && parsed > 0 {
			maxSize = int64(parsed)
		}
	}

	return logging.RotationConfig{
		MaxSize:    maxSize,
		MaxAge:     rc.MaxAge,
		MaxBackups: rc.MaxBackups,
		Daily:      rc.Daily,
	}
}

// interactiveRun reports whether cmd will take over the terminal, in which
// case logs must not be mirrored to stderr.
func interactiveRun(cmd *cobra.Command) bool {
	if cmd == nil {
		return false
	}
	flag := cmd.Flags().Lookup("interactive")
	return flag != nil && flag.Value.String() == "true"
}
