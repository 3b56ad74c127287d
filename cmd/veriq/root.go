package main

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/cgast/veriq/internal/config"
	"github.com/cgast/veriq/pkg/events"
)

// app holds state shared by all subcommands.
type app struct {
	verbose    bool
	configPath string
	workdir    string

	cfg       config.Config
	platforms config.PlatformConfig
	logger    *zap.Logger

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr, logger: zap.NewNop()}

	root := &cobra.Command{
		Use:   "veriq",
		Short: "Verify engineering designs against requirements",
		Long: `veriq checks a design instance against the schema derived from its
design model, evaluates calculations and runs every requirement of the
requirements tree, rolling leaf outcomes up to the root.

Exit codes: 0 verified, 1 verification failed, 2 design invalid,
3 usage or declaration error.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRun: func(*cobra.Command, []string) {
			_ = a.logger.Sync()
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: .veriq/config.yaml)")
	root.PersistentFlags().StringVarP(&a.workdir, "workdir", "C", ".", "Project directory holding .veriq/")

	root.AddCommand(
		a.schemaCmd(),
		a.validateCmd(),
		a.verifyCmd(),
		a.historyCmd(),
		a.publishCmd(),
	)
	return root
}

// setup loads configuration and builds the logger.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	path := a.configPath
	if path == "" {
		path = config.ConfigPath(a.workdir)
	}
	cfg, err := config.LoadConfig(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	platforms, err := config.LoadPlatformConfig(config.PlatformsPath(a.workdir))
	if err != nil {
		return err
	}
	a.platforms = platforms

	zcfg := zap.NewProductionConfig()
	zcfg.OutputPaths = []string{"stderr"}
	zcfg.Encoding = "console"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	level, err := zapcore.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zapcore.InfoLevel
	}
	if a.verbose {
		level = zapcore.DebugLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := zcfg.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = logger.Named("veriq")
	a.logger.Debug("configuration loaded",
		zap.String("config", path),
		zap.String("command", cmd.Name()),
	)
	return nil
}

// historyPath resolves the history database path against the workdir.
func (a *app) historyPath() string {
	if filepath.IsAbs(a.cfg.History.Path) {
		return a.cfg.History.Path
	}
	return filepath.Join(a.workdir, a.cfg.History.Path)
}

// logPublisher forwards run events to the debug log.
type logPublisher struct {
	logger *zap.Logger
}

func (p logPublisher) Publish(e events.Event) {
	if ce := p.logger.Check(zapcore.DebugLevel, string(e.Type)); ce != nil {
		fields := []zap.Field{zap.Any("data", e.Data)}
		if e.Requirement != "" {
			fields = append(fields, zap.String("requirement", e.Requirement))
		}
		if e.Duration > 0 {
			fields = append(fields, zap.Duration("duration", e.Duration))
		}
		ce.Write(fields...)
	}
}
