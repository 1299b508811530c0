package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/BadgerOps/craftctl/internal/backup"
	"github.com/BadgerOps/craftctl/internal/catalog"
	"github.com/BadgerOps/craftctl/internal/config"
	"github.com/BadgerOps/craftctl/internal/download"
	"github.com/BadgerOps/craftctl/internal/engine"
	"github.com/BadgerOps/craftctl/internal/instance"
	"github.com/BadgerOps/craftctl/internal/prompt"
	"github.com/BadgerOps/craftctl/internal/store"
	"github.com/BadgerOps/craftctl/internal/versions"
)

var (
	// Global flags
	cfgPath   string
	envFile   string
	dataDir   string
	logLevel  string
	logFormat string
	quiet     bool
	assumeYes bool
	globalCfg *config.Config
	logger    *slog.Logger

	// Global components
	globalStore      *store.Store
	globalVersions   *versions.Store
	globalDecider    prompt.Decider
	globalReconciler *engine.Reconciler
	globalBackups    *backup.Engine
	globalManager    *instance.Manager
)

// progressInterval throttles download progress log lines
const progressInterval = 2 * time.Second

// initializeComponents builds every component from the loaded config
func initializeComponents() error {
	if globalCfg == nil {
		return fmt.Errorf("config not loaded")
	}
	if err := globalCfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	st, err := store.New(globalCfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	globalStore = st

	vs, err := versions.Open(filepath.Join(globalCfg.VersionsDir(), versions.DocumentName), logger)
	if err != nil {
		return fmt.Errorf("failed to open version store: %w", err)
	}
	globalVersions = vs

	globalDecider = newDecider()

	cat := catalog.NewClient(catalog.Options{
		ManifestURL:      globalCfg.Catalog.ManifestURL,
		Timeout:          time.Duration(globalCfg.Catalog.Timeout),
		MaxMetadataBytes: globalCfg.Catalog.MaxMetadataBytes,
	}, logger)
	tracker := engine.NewProgressTracker(progressInterval, engine.LogSink(logger))

	globalReconciler = engine.NewReconciler(engine.Options{
		VersionsDir: globalCfg.VersionsDir(),
		Catalog:     cat,
		Versions:    vs,
		Downloader:  download.NewClient(logger),
		Confirmer:   globalDecider,
		History:     st,
		Logger:      logger,
		OnProgress:  tracker.For,
	})

	format, err := backup.ParseFormat(globalCfg.Backup.Format)
	if err != nil {
		return fmt.Errorf("invalid backup format: %w", err)
	}
	globalBackups = backup.New(backup.Options{
		Format:   format,
		Recorder: st,
		Logger:   logger,
	})

	globalManager = instance.NewManager(instance.Options{
		ServersDir: globalCfg.ServersDir(),
		Reconciler: globalReconciler,
		Archiver:   globalBackups,
		Versions:   vs,
		Launcher:   instance.NewJavaLauncher(globalCfg.Java.Binary, globalCfg.Java.MaxMemory, globalCfg.Java.ExtraArgs, logger),
		Decider:    globalDecider,
		History:    st,
		Scaffold: instance.Scaffold{
			OperatorName: globalCfg.Operator.Name,
			OperatorUUID: globalCfg.Operator.UUID,
			IconPath:     globalCfg.IconPath(),
			MOTD:         globalCfg.Server.MOTD,
			Port:         globalCfg.Server.Port,
		},
		Logger: logger,
	})

	logger.Debug("components initialized", "servers_dir", globalCfg.ServersDir(), "versions_dir", globalCfg.VersionsDir())
	return nil
}

// newDecider picks terminal prompts when a person is there to answer them
func newDecider() prompt.Decider {
	if assumeYes || !stdinIsTerminal() {
		return &prompt.Auto{AssumeYes: assumeYes, Logger: logger}
	}
	return prompt.NewTerminal(os.Getenv("ACCESSIBLE") != "")
}

func stdinIsTerminal() bool {
	info, err := os.Stdin.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

// shouldSkipComponentInit checks if a command should skip component initialization
func shouldSkipComponentInit(cmdName string) bool {
	skipInitCmds := map[string]bool{
		"help":    true,
		"version": true,
		"config":  true,
		"show":    true,
	}
	return skipInitCmds[cmdName]
}

// closeStore closes the global store connection
func closeStore() {
	if globalStore != nil {
		if err := globalStore.Close(); err != nil {
			logger.Error("failed to close store", "error", err)
		}
	}
}

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "craftctl",
		Short: "Create, update, back up and launch local Minecraft servers",
		Long: `craftctl manages locally hosted Minecraft servers. It scaffolds new server
directories, keeps the vanilla and snapshot server jars in step with the
official version manifest, archives and restores worlds, and starts servers
with the jar their launch type resolves to.

Run without a command to be asked what to do.`,
		Example: `  craftctl
  craftctl launch survival
  craftctl launch survival backup
  craftctl launch classic legacy 1.12.2
  craftctl create creative
  craftctl update both
  craftctl update vanilla 1.20.1
  craftctl restore survival 0`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for commands that don't need it
			if shouldSkipConfig(cmd.Name()) {
				setupLogging()
				return nil
			}

			if err := loadConfig(); err != nil {
				return err
			}
			setupLogging()

			if !quiet {
				logger.Debug("config loaded", "path", cfgPath, "data_dir", globalCfg.Paths.DataDir)
			}

			// Initialize components after config is loaded
			if !shouldSkipComponentInit(cmd.Name()) {
				if err := initializeComponents(); err != nil {
					return fmt.Errorf("failed to initialize components: %w", err)
				}
			}

			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			closeStore()
		},
		RunE: rootRun,
	}

	// Add persistent flags
	cmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (auto-discovered if not specified)")
	cmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with CRAFTCTL_* overrides")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "override data directory")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format (text, json or pretty)")
	cmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "suppress non-error output")
	cmd.PersistentFlags().BoolVarP(&assumeYes, "yes", "y", false, "answer every question with its default and approve downloads")

	// Add subcommands
	cmd.AddCommand(
		newLaunchCmd(),
		newCreateCmd(),
		newUpdateCmd(),
		newBackupCmd(),
		newRestoreCmd(),
		newServersCmd(),
		newStatusCmd(),
		newVerifyCmd(),
		newConfigCmd(),
	)

	return cmd
}

// loadConfig reads the config file, then applies env and flag overrides
func loadConfig() error {
	if cfgPath == "" {
		path, err := config.FindConfigFile()
		if err != nil {
			slog.Debug("config file not found, using defaults", "error", err)
		}
		cfgPath = path
	}

	if cfgPath != "" {
		var err error
		globalCfg, err = config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
	} else {
		globalCfg = config.DefaultConfig()
	}

	if err := globalCfg.ApplyEnv(envFile); err != nil {
		return fmt.Errorf("failed to apply environment: %w", err)
	}

	// Override with command-line flags if provided
	if dataDir != "" {
		globalCfg.Paths.DataDir = dataDir
	}
	if logLevel == "" {
		logLevel = globalCfg.Log.Level
	}
	if logFormat == "" {
		logFormat = globalCfg.Log.Format
	}
	return nil
}

// setupLogging initializes the slog logger based on flags
func setupLogging() {
	var level slog.Level
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn", "warning":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	if quiet && level < slog.LevelWarn {
		level = slog.LevelWarn
	}

	var handler slog.Handler
	switch strings.ToLower(logFormat) {
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	case "text":
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	default:
		handler = charmlog.NewWithOptions(os.Stderr, charmlog.Options{
			Level:           charmlog.Level(level),
			ReportTimestamp: true,
			TimeFormat:      time.Kitchen,
		})
	}

	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// shouldSkipConfig checks if a command should skip config loading
func shouldSkipConfig(cmdName string) bool {
	skipConfigCmds := map[string]bool{
		"help":       true,
		"version":    true,
		"completion": true,
	}
	return skipConfigCmds[cmdName]
}

// rootRun asks which action to take when no command is given
func rootRun(cmd *cobra.Command, args []string) error {
	actions := []string{"launch", "create", "update"}
	idx, err := globalDecider.Select(cmd.Context(), "What would you like to do?", actions, 0)
	if err != nil {
		return err
	}

	switch actions[idx] {
	case "create":
		return createRun(cmd, nil)
	case "update":
		return updateRun(cmd, nil)
	default:
		return launchRun(cmd, nil)
	}
}
