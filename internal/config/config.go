package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const envPrefix = "WHATSLIB_"

type Config struct {
	General  General  `koanf:"general"`
	Device   Device   `koanf:"device"`
	Export   Export   `koanf:"export"`
	Scan     Scan     `koanf:"scan"`
	Matcher  Matcher  `koanf:"matcher"`
	Workflow Workflow `koanf:"workflow"`
	Cloud    Cloud    `koanf:"cloud"`
	Registry Registry `koanf:"registry"`

	// Path of the file the configuration was loaded from, if any.
	Source string `koanf:"-"`
}

type General struct {
	DataDir    string `koanf:"data_dir"`
	LogLevel   string `koanf:"log_level"`
	LogFormat  string `koanf:"log_format"`
	ChannelTag string `koanf:"channel_tag"`
}

type Device struct {
	AdbPath        string        `koanf:"adb_path"`
	Serial         string        `koanf:"serial"`
	RemoteWorkDir  string        `koanf:"remote_work_dir"`
	CommandTimeout time.Duration `koanf:"command_timeout"`
	ScreenWidth    int           `koanf:"screen_width"`
	ScreenHeight   int           `koanf:"screen_height"`
	RestartApp     bool          `koanf:"restart_app"`
}

type Export struct {
	IncludeMedia bool     `koanf:"include_media"`
	ShareTarget  string   `koanf:"share_target"`
	DriveFolder  string   `koanf:"drive_folder"`
	Profile      string   `koanf:"profile"`
	ProfileDirs  []string `koanf:"profile_dirs"`
	ContactsFile string   `koanf:"contacts_file"`
}

type Scan struct {
	Limit           int `koanf:"limit"`
	MaxScrolls      int `koanf:"max_scrolls"`
	StagnationLimit int `koanf:"stagnation_limit"`
}

type Matcher struct {
	FuzzyThreshold int `koanf:"fuzzy_threshold"`
}

type Workflow struct {
	ShareScrollAttempts int           `koanf:"share_scroll_attempts"`
	UploadPollAttempts  int           `koanf:"upload_poll_attempts"`
	FolderAttempts      int           `koanf:"folder_attempts"`
	StepDelay           time.Duration `koanf:"step_delay"`
}

type Cloud struct {
	SyncDir      string        `koanf:"sync_dir"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Timeout      time.Duration `koanf:"timeout"`
}

type Registry struct {
	Enabled   bool          `koanf:"enabled"`
	Freshness time.Duration `koanf:"freshness"`
}

func defaults(dataDir string) map[string]interface{} {
	return map[string]interface{}{
		"general.data_dir":   dataDir,
		"general.log_level":  "info",
		"general.log_format": "console",

		"device.adb_path":        "adb",
		"device.remote_work_dir": "/sdcard/whatsliberation",
		"device.command_timeout": "30s",
		"device.screen_width":    1080,
		"device.screen_height":   2400,
		"device.restart_app":     true,

		"export.include_media": false,
		"export.share_target":  "Drive",
		"export.drive_folder":  "",
		"export.profile":       "",
		"export.profile_dirs":  []string{filepath.Join(dataDir, "profiles"), ".whatsliberation/profiles"},

		"scan.limit":            50,
		"scan.max_scrolls":      40,
		"scan.stagnation_limit": 2,

		"matcher.fuzzy_threshold": 0,

		"workflow.share_scroll_attempts": 3,
		"workflow.upload_poll_attempts":  10,
		"workflow.folder_attempts":       3,
		"workflow.step_delay":            "800ms",

		"cloud.sync_dir":      "",
		"cloud.poll_interval": "5s",
		"cloud.timeout":       "2m",

		"registry.enabled":   true,
		"registry.freshness": "24h",
	}
}

// Load builds the configuration from defaults, a TOML file and WHATSLIB_
// environment variables, in that order. An empty path tries the default
// locations and is not an error when none exists.
func Load(configPath string) (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(defaults(filepath.Join(homeDir, ".whatsliberation")), "."), nil); err != nil {
		return nil, fmt.Errorf("error loading defaults: %w", err)
	}

	source := ""
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), toml.Parser()); err != nil {
			return nil, fmt.Errorf("error loading config: %w", err)
		}
		source = configPath
	} else {
		defaultPaths := []string{"./whatsliberation.toml", filepath.Join(homeDir, ".whatsliberation.toml")}
		for _, path := range defaultPaths {
			if _, err := os.Stat(path); err == nil {
				if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
					return nil, fmt.Errorf("error loading config %s: %w", path, err)
				}
				source = path
				break
			}
		}
	}

	// WHATSLIB_DEVICE__SERIAL -> device.serial
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("error loading environment: %w", err)
	}

	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}
	c.Source = source

	return &c, nil
}

func (c *Config) DBPath() string {
	return filepath.Join(c.General.DataDir, "whatsliberation.db")
}

func (c *Config) RunsDir() string {
	return filepath.Join(c.General.DataDir, "runs")
}

func (c *Config) SummaryDir() string {
	return filepath.Join(c.General.DataDir, "summaries")
}

func (c *Config) EnsureDataDir() error {
	for _, dir := range []string{c.General.DataDir, c.RunsDir(), c.SummaryDir()} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the configuration
func Validate(c *Config) error {
	if c.General.DataDir == "" {
		return fmt.Errorf("general.data_dir is required")
	}

	switch c.General.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("general.log_format must be console or json, got %q", c.General.LogFormat)
	}

	if c.Device.AdbPath == "" {
		return fmt.Errorf("device.adb_path is required")
	}
	if !strings.HasPrefix(c.Device.RemoteWorkDir, "/") {
		return fmt.Errorf("device.remote_work_dir must be an absolute device path")
	}
	if c.Device.CommandTimeout <= 0 {
		return fmt.Errorf("device.command_timeout must be positive")
	}
	if c.Device.ScreenWidth <= 0 || c.Device.ScreenHeight <= 0 {
		return fmt.Errorf("device screen size must be positive")
	}

	if c.Export.ShareTarget == "" {
		return fmt.Errorf("export.share_target is required")
	}

	if c.Scan.Limit < 1 {
		return fmt.Errorf("scan.limit must be at least 1")
	}
	if c.Scan.MaxScrolls < 0 {
		return fmt.Errorf("scan.max_scrolls must not be negative")
	}
	if c.Scan.StagnationLimit < 1 {
		return fmt.Errorf("scan.stagnation_limit must be at least 1")
	}

	if c.Matcher.FuzzyThreshold < 0 {
		return fmt.Errorf("matcher.fuzzy_threshold must not be negative")
	}

	if c.Workflow.ShareScrollAttempts < 0 || c.Workflow.FolderAttempts < 1 || c.Workflow.UploadPollAttempts < 1 {
		return fmt.Errorf("workflow attempt limits out of range")
	}
	if c.Workflow.StepDelay < 0 {
		return fmt.Errorf("workflow.step_delay must not be negative")
	}

	if c.Cloud.SyncDir != "" {
		if c.Cloud.PollInterval <= 0 {
			return fmt.Errorf("cloud.poll_interval must be positive")
		}
		if c.Cloud.Timeout < c.Cloud.PollInterval {
			return fmt.Errorf("cloud.timeout must be at least cloud.poll_interval")
		}
	}

	if c.Registry.Freshness < 0 {
		return fmt.Errorf("registry.freshness must not be negative")
	}

	return nil
}

// InitConfig writes a sample configuration file
func InitConfig(configPath string) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("configuration file already exists at %s", configPath)
	}

	sampleConfig := `# WhatsLiberation configuration
# Every key can be overridden by WHATSLIB_<SECTION>__<KEY>, e.g. WHATSLIB_DEVICE__SERIAL.

[general]
# data_dir = "~/.whatsliberation"
log_level = "info"
log_format = "console"
# Prefix for exported file names, e.g. "WA"
channel_tag = ""

[device]
adb_path = "adb"
serial = ""
remote_work_dir = "/sdcard/whatsliberation"
command_timeout = "30s"
screen_width = 1080
screen_height = 2400
restart_app = true

[export]
include_media = false
share_target = "Drive"
drive_folder = ""
# Built-in profile unless a name or a .yaml path is given
profile = ""
contacts_file = ""

[scan]
limit = 50
max_scrolls = 40
stagnation_limit = 2

[matcher]
# Maximum edit distance for fuzzy name matching; 0 disables it
fuzzy_threshold = 0

[workflow]
share_scroll_attempts = 3
upload_poll_attempts = 10
folder_attempts = 3
step_delay = "800ms"

[cloud]
# Local directory synced with the cloud export folder
sync_dir = ""
poll_interval = "5s"
timeout = "2m"

[registry]
enabled = true
freshness = "24h"
`

	if dir := filepath.Dir(configPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(configPath, []byte(sampleConfig), 0644)
}
