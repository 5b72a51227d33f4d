// Package config provides configuration management for arrhook using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultServerPort      = 8484
	defaultServerTimeout   = 30 * time.Second
	defaultShutdownTimeout = 10 * time.Second
	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxIdleTime = 30 * time.Minute
	defaultHTTPTimeout     = 30 * time.Second
	defaultRetryAttempts   = 3
	defaultRetryDelay      = 1 * time.Second
	defaultProbeTimeout    = 30 * time.Second
	defaultSweepSchedule   = "*/5 * * * *"
	defaultMinimumFileSize = 100 * Mebibyte
)

// Instance modes.
const (
	// ModeRefresh triggers a library refresh (and optional rename) on completion.
	ModeRefresh = "refresh"
	// ModeImport drives the import-scan reconciliation on completion.
	ModeImport = "import"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig     `mapstructure:"server"`
	Database DatabaseConfig   `mapstructure:"database"`
	Logging  LoggingConfig    `mapstructure:"logging"`
	Client   ClientConfig     `mapstructure:"client"`
	Sonarr   []InstanceConfig `mapstructure:"sonarr"`
	Radarr   []InstanceConfig `mapstructure:"radarr"`
	Remux    RemuxConfig      `mapstructure:"remux"`
	Sweep    SweepConfig      `mapstructure:"sweep"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite, postgres, mysql
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"conn_max_idle_time"`
	LogLevel        string        `mapstructure:"log_level"` // silent, error, warn, info
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// ClientConfig holds outbound HTTP client configuration shared by all
// Sonarr/Radarr connections.
type ClientConfig struct {
	Timeout          time.Duration `mapstructure:"timeout"`
	RetryAttempts    int           `mapstructure:"retry_attempts"`
	RetryDelay       time.Duration `mapstructure:"retry_delay"`
	CircuitThreshold int           `mapstructure:"circuit_threshold"`
	CircuitTimeout   time.Duration `mapstructure:"circuit_timeout"`
}

// InstanceConfig describes one Sonarr or Radarr connection and how
// completion events should be delivered to it.
type InstanceConfig struct {
	// Name identifies the instance in logs, history rows, and event payloads.
	Name   string `mapstructure:"name"`
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`

	// Mode selects refresh or import behavior on completion.
	Mode string `mapstructure:"mode"`

	// RenameFiles triggers the instance's file renaming after a refresh.
	// Only meaningful in refresh mode.
	RenameFiles bool `mapstructure:"rename_files"`

	// MinimumFileSize skips import notification for files under this size.
	// Ignored when delayed import is enabled. Zero disables the gate.
	MinimumFileSize ByteSize `mapstructure:"minimum_file_size"`

	// ImportRoot is the root directory completed files are delivered into.
	ImportRoot string `mapstructure:"import_root"`

	// DelayImport withholds notification until every file of a multi-file
	// delivery has arrived from the intermediate directory.
	DelayImport bool `mapstructure:"delay_import"`

	// IntermediateRoot is the directory the mover delivers files from.
	IntermediateRoot string `mapstructure:"intermediate_root"`

	// SourcesRemoved indicates the mover deletes source files after delivery.
	SourcesRemoved bool `mapstructure:"sources_removed"`
}

// EffectiveIntermediateRoot returns the intermediate root to reconcile
// against. When delayed import is disabled the intermediate root equals the
// import root, which disables the delay decision entirely.
func (c InstanceConfig) EffectiveIntermediateRoot() string {
	if c.DelayImport && c.IntermediateRoot != "" {
		return c.IntermediateRoot
	}
	return c.ImportRoot
}

// RemuxConfig holds external tool configuration for the fix pipelines.
type RemuxConfig struct {
	FFmpegPath   string        `mapstructure:"ffmpeg_path"`   // empty = $PATH lookup
	FFprobePath  string        `mapstructure:"ffprobe_path"`  // empty = $PATH lookup
	MKVMergePath string        `mapstructure:"mkvmerge_path"` // empty = $PATH lookup
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`

	// DownmixFormula overrides the pan filter of the stereo downmix.
	// Empty uses the built-in 5.1 formula.
	DownmixFormula string `mapstructure:"downmix_formula"`

	// Faststart adds -movflags +faststart when retagging hev1 files.
	Faststart bool `mapstructure:"faststart"`
}

// SweepConfig holds delayed-delivery sweep configuration.
type SweepConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"` // cron expression
}

// SetDefaults sets default configuration values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", defaultServerPort)
	v.SetDefault("server.read_timeout", defaultServerTimeout)
	v.SetDefault("server.write_timeout", defaultServerTimeout)
	v.SetDefault("server.shutdown_timeout", defaultShutdownTimeout)

	// Database defaults
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "arrhook.db")
	v.SetDefault("database.max_open_conns", defaultMaxOpenConns)
	v.SetDefault("database.max_idle_conns", defaultMaxIdleConns)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.conn_max_idle_time", defaultConnMaxIdleTime)
	v.SetDefault("database.log_level", "warn")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)

	// Client defaults
	v.SetDefault("client.timeout", defaultHTTPTimeout)
	v.SetDefault("client.retry_attempts", defaultRetryAttempts)
	v.SetDefault("client.retry_delay", defaultRetryDelay)
	v.SetDefault("client.circuit_threshold", 5)
	v.SetDefault("client.circuit_timeout", 30*time.Second)

	// Remux defaults
	v.SetDefault("remux.probe_timeout", defaultProbeTimeout)
	v.SetDefault("remux.faststart", true)

	// Sweep defaults
	v.SetDefault("sweep.enabled", true)
	v.SetDefault("sweep.schedule", defaultSweepSchedule)
}

// DecodeHook returns the viper decoder option needed to unmarshal the
// human-readable size and duration strings this package's types accept.
func DecodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		mapstructure.TextUnmarshallerHookFunc(),
	))
}

// Load reads configuration from the given file path (optional), environment
// variables, and defaults. Environment variables use the ARRHOOK_ prefix with
// underscores, e.g. ARRHOOK_SERVER_PORT=9090.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("arrhook")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/arrhook")
	}

	v.SetEnvPrefix("ARRHOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && path != "" {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, DecodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	switch c.Database.Driver {
	case "sqlite", "postgres", "mysql":
	default:
		return fmt.Errorf("database.driver must be sqlite, postgres, or mysql, got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn is required")
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}

	for i := range c.Sonarr {
		if err := c.Sonarr[i].validate(); err != nil {
			return fmt.Errorf("sonarr[%d]: %w", i, err)
		}
	}
	for i := range c.Radarr {
		if err := c.Radarr[i].validate(); err != nil {
			return fmt.Errorf("radarr[%d]: %w", i, err)
		}
	}

	return nil
}

func (c *InstanceConfig) validate() error {
	if c.Name == "" {
		return errors.New("name is required")
	}
	if c.URL == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(c.URL, "http://") && !strings.HasPrefix(c.URL, "https://") {
		return fmt.Errorf("url must start with http:// or https://, got %q", c.URL)
	}
	if c.APIKey == "" {
		return errors.New("api_key is required")
	}

	switch c.Mode {
	case ModeRefresh:
	case ModeImport:
		if c.ImportRoot == "" {
			return errors.New("import_root is required in import mode")
		}
		if c.DelayImport && c.IntermediateRoot == "" {
			return errors.New("intermediate_root is required when delay_import is enabled")
		}
	default:
		return fmt.Errorf("mode must be %q or %q, got %q", ModeRefresh, ModeImport, c.Mode)
	}

	return nil
}

// Instances returns all configured instances with their kind ("sonarr" or
// "radarr") attached, in declaration order.
func (c *Config) Instances() []NamedInstance {
	out := make([]NamedInstance, 0, len(c.Sonarr)+len(c.Radarr))
	for _, inst := range c.Sonarr {
		out = append(out, NamedInstance{Kind: "sonarr", InstanceConfig: inst})
	}
	for _, inst := range c.Radarr {
		out = append(out, NamedInstance{Kind: "radarr", InstanceConfig: inst})
	}
	return out
}

// NamedInstance pairs an instance configuration with its service kind.
type NamedInstance struct {
	Kind string
	InstanceConfig
}
