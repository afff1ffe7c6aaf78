package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jlmalone/WhatsLiberation/internal/clock"
	"github.com/jlmalone/WhatsLiberation/internal/cloud"
	"github.com/jlmalone/WhatsLiberation/internal/config"
	"github.com/jlmalone/WhatsLiberation/internal/contacts"
	"github.com/jlmalone/WhatsLiberation/internal/device"
	"github.com/jlmalone/WhatsLiberation/internal/logging"
	"github.com/jlmalone/WhatsLiberation/internal/matcher"
	"github.com/jlmalone/WhatsLiberation/internal/models"
	"github.com/jlmalone/WhatsLiberation/internal/profile"
	"github.com/jlmalone/WhatsLiberation/internal/scanner"
	"github.com/jlmalone/WhatsLiberation/internal/storage"
	"github.com/jlmalone/WhatsLiberation/internal/workflow"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	configPath string
	serial     string
	logLevel   string
	logFormat  string
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "whatsliberation",
		Short:         "Export WhatsApp conversations from an Android device",
		Long:          "WhatsLiberation drives the WhatsApp Android UI over adb to export conversations and collect the exported files.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default ./whatsliberation.toml or ~/.whatsliberation.toml)")
	rootCmd.PersistentFlags().StringVar(&serial, "serial", "", "adb serial of the target device")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format (console or json)")

	rootCmd.AddCommand(newExportCommand())
	rootCmd.AddCommand(newBackupCommand())
	rootCmd.AddCommand(newScanCommand())
	rootCmd.AddCommand(newListCommand())
	rootCmd.AddCommand(newHistoryCommand())
	rootCmd.AddCommand(newForgetCommand())
	rootCmd.AddCommand(newConfigCommand())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// app holds what every device command needs.
type app struct {
	cfg     *config.Config
	profile *models.Profile
	logger  zerolog.Logger
}

func loadApp() (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if serial != "" {
		cfg.Device.Serial = serial
	}
	if logLevel != "" {
		cfg.General.LogLevel = logLevel
	}
	if logFormat != "" {
		cfg.General.LogFormat = logFormat
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := logging.Init(cfg.General.LogLevel, cfg.General.LogFormat); err != nil {
		return nil, err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	p, err := profile.Resolve(cfg.Export.Profile, cfg.Export.ProfileDirs)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}

	logger := logging.New("cli")
	if cfg.Source != "" {
		logger.Debug().Str("config", cfg.Source).Str("profile", p.Name).Msg("configuration loaded")
	}

	return &app{cfg: cfg, profile: p, logger: logger}, nil
}

func (a *app) screen() models.Rect {
	return models.Rect{Right: a.cfg.Device.ScreenWidth, Bottom: a.cfg.Device.ScreenHeight}
}

func (a *app) driver() device.Driver {
	return device.NewADB(device.ExecRunner{}, device.Options{
		AdbPath:        a.cfg.Device.AdbPath,
		Serial:         a.cfg.Device.Serial,
		WorkDir:        a.cfg.Device.RemoteWorkDir,
		CommandTimeout: a.cfg.Device.CommandTimeout,
	}, logging.New("device"))
}

func (a *app) scanner(d device.Driver, limit int) *scanner.Scanner {
	if limit <= 0 {
		limit = a.cfg.Scan.Limit
	}
	return scanner.New(d, scanner.Options{
		RowNameID:       a.profile.ConversationList.RowNameID,
		Limit:           limit,
		MaxScrolls:      a.cfg.Scan.MaxScrolls,
		StagnationLimit: a.cfg.Scan.StagnationLimit,
		Fallback:        a.screen(),
	}, logging.New("scanner"))
}

type workflowOverrides struct {
	shareTarget string
	driveFolder string
}

func (a *app) workflow(d device.Driver, o workflowOverrides) (*workflow.Workflow, error) {
	deps := workflow.Deps{
		Driver:  d,
		Matcher: matcher.New(a.cfg.Matcher.FuzzyThreshold, logging.New("matcher")),
		Clock:   clock.System,
	}

	if a.cfg.Cloud.SyncDir != "" {
		deps.Cloud = cloud.NewFolderDownloader(cloud.FolderOptions{
			SyncDir:      a.cfg.Cloud.SyncDir,
			FilePrefix:   a.profile.Export.FilePrefix,
			PollInterval: a.cfg.Cloud.PollInterval,
			Timeout:      a.cfg.Cloud.Timeout,
		}, clock.System, logging.New("cloud"))
	} else {
		a.logger.Debug().Msg("no cloud sync directory configured, collecting device files only")
	}

	if a.cfg.Export.ContactsFile != "" {
		dir, err := contacts.Load(a.cfg.Export.ContactsFile)
		if err != nil {
			return nil, err
		}
		deps.Contacts = dir
	}

	shareTarget := a.cfg.Export.ShareTarget
	if o.shareTarget != "" {
		shareTarget = o.shareTarget
	}
	driveFolder := a.cfg.Export.DriveFolder
	if o.driveFolder != "" {
		driveFolder = o.driveFolder
	}

	return workflow.New(deps, workflow.Options{
		Profile:             a.profile,
		RemoteWorkDir:       a.cfg.Device.RemoteWorkDir,
		RunsDir:             a.cfg.RunsDir(),
		Channel:             a.cfg.General.ChannelTag,
		RestartApp:          a.cfg.Device.RestartApp,
		ShareTarget:         shareTarget,
		DriveFolder:         driveFolder,
		ShareScrollAttempts: a.cfg.Workflow.ShareScrollAttempts,
		UploadPollAttempts:  a.cfg.Workflow.UploadPollAttempts,
		FolderAttempts:      a.cfg.Workflow.FolderAttempts,
		StepDelay:           a.cfg.Workflow.StepDelay,
		Fallback:            a.screen(),
	}, logging.New("workflow")), nil
}

// registry opens the export registry, or returns nil when it is disabled.
func (a *app) registry() (*storage.Storage, error) {
	if !a.cfg.Registry.Enabled {
		return nil, nil
	}
	store, err := storage.New(a.cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, nil
}

func openStore() (*storage.Storage, error) {
	a, err := loadApp()
	if err != nil {
		return nil, err
	}
	return storage.New(a.cfg.DBPath())
}
