package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	HostKeyStrict    = "strict"
	HostKeyTOFU      = "tofu"
	HostKeyAcceptAny = "accept-any"

	SettleFixed  = "fixed"
	SettleStable = "stable"

	MediaSCP  = "scp"
	MediaSFTP = "sftp"
)

type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Connection ConnectionConfig `mapstructure:"connection"`
	LoadParams LoadParams       `mapstructure:"load-params"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Settle     SettleConfig     `mapstructure:"settle"`
	Media      MediaConfig      `mapstructure:"media"`
	Offsite    OffsiteConfig    `mapstructure:"offsite"`
	Notify     NotifyConfig     `mapstructure:"notify"`
}

type AppConfig struct {
	Name       string `mapstructure:"name"`
	LogLevel   string `mapstructure:"log_level"`
	LogFile    string `mapstructure:"log_file"`
	MaxSizeMB  int    `mapstructure:"log_max_size_mb"`
	MaxBackups int    `mapstructure:"log_max_backups"`
	MaxAgeDays int    `mapstructure:"log_max_age_days"`
}

type ConnectionConfig struct {
	Host           string        `mapstructure:"host"`
	User           string        `mapstructure:"user"`
	Port           int           `mapstructure:"port"`
	HostKeyPolicy  string        `mapstructure:"host_key_policy"`
	KnownHostsFile string        `mapstructure:"known_hosts_file"`
	IdentityFile   string        `mapstructure:"identity_file"`
	Passphrase     string        `mapstructure:"passphrase"`
	Password       string        `mapstructure:"password"`
	UseAgent       bool          `mapstructure:"use_agent"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

// LoadParams keeps the historical hyphenated key names. Each folder accepts
// either the "-folder" or the "-path" spelling.
type LoadParams struct {
	RemoteDBCopyFolder  string `mapstructure:"remote-dbcopy-folder"`
	RemoteDBCopyPath    string `mapstructure:"remote-dbcopy-path"`
	LocalDBCopyFolder   string `mapstructure:"local-dbcopy-folder"`
	LocalDBCopyPath     string `mapstructure:"local-dbcopy-path"`
	ExpirationDays      int    `mapstructure:"old-db-copies-exp-period"`
	RemoteMediaPath     string `mapstructure:"remote-media-path"`
	LocalMediaPath      string `mapstructure:"local-media-path"`
	LocalExpirationDays int    `mapstructure:"local-copies-exp-period"`
}

type DatabaseConfig struct {
	Type           string `mapstructure:"type"`
	ServiceAccount string `mapstructure:"service_account"`
}

type SettleConfig struct {
	Mode          string        `mapstructure:"mode"`
	Delay         time.Duration `mapstructure:"delay"`
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	StableSamples int           `mapstructure:"stable_samples"`
	MaxWait       time.Duration `mapstructure:"max_wait"`
}

type MediaConfig struct {
	Transport        string `mapstructure:"transport"`
	CleanupOnFailure bool   `mapstructure:"cleanup_on_failure"`
}

type OffsiteConfig struct {
	Compress      bool           `mapstructure:"compress"`
	RetentionDays int            `mapstructure:"retention_days"`
	UploadTargets []UploadTarget `mapstructure:"upload_targets"`
}

type UploadTarget struct {
	Type    string `mapstructure:"type"`
	Enabled bool   `mapstructure:"enabled"`

	// Google Drive
	CredentialsFile string `mapstructure:"credentials_file"`
	FolderID        string `mapstructure:"folder_id"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`

	// Telegram
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	SendFile bool   `mapstructure:"send_file"`
}

type NotifyConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetEnvPrefix("STOWAWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "stowaway")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_max_size_mb", 100)
	v.SetDefault("app.log_max_backups", 3)
	v.SetDefault("app.log_max_age_days", 28)

	v.SetDefault("connection.port", 22)
	v.SetDefault("connection.host_key_policy", HostKeyStrict)
	v.SetDefault("connection.use_agent", true)
	v.SetDefault("connection.timeout", 30*time.Second)

	v.SetDefault("load-params.old-db-copies-exp-period", 7)

	v.SetDefault("database.type", "postgresql")
	v.SetDefault("database.service_account", "postgres")

	v.SetDefault("settle.mode", SettleFixed)
	v.SetDefault("settle.delay", 2*time.Second)
	v.SetDefault("settle.poll_interval", time.Second)
	v.SetDefault("settle.stable_samples", 2)
	v.SetDefault("settle.max_wait", 5*time.Minute)

	v.SetDefault("media.transport", MediaSCP)

	v.SetDefault("offsite.compress", true)
	v.SetDefault("offsite.retention_days", 7)
}

func (c *Config) normalize() {
	lp := &c.LoadParams
	if lp.RemoteDBCopyFolder == "" {
		lp.RemoteDBCopyFolder = lp.RemoteDBCopyPath
	}
	if lp.LocalDBCopyFolder == "" {
		lp.LocalDBCopyFolder = lp.LocalDBCopyPath
	}

	if c.Connection.KnownHostsFile == "" {
		if home, err := os.UserHomeDir(); err == nil {
			c.Connection.KnownHostsFile = filepath.Join(home, ".ssh", "known_hosts")
		}
	}
	c.Connection.KnownHostsFile = expandHome(c.Connection.KnownHostsFile)
	c.Connection.IdentityFile = expandHome(c.Connection.IdentityFile)
	c.Connection.HostKeyPolicy = strings.ToLower(c.Connection.HostKeyPolicy)
}

func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}

func (c *Config) Validate() error {
	conn := c.Connection
	if conn.Host == "" {
		return fmt.Errorf("connection.host is required")
	}
	if conn.User == "" {
		return fmt.Errorf("connection.user is required")
	}
	if conn.Port <= 0 || conn.Port > 65535 {
		return fmt.Errorf("connection.port %d is out of range", conn.Port)
	}

	switch conn.HostKeyPolicy {
	case HostKeyStrict, HostKeyTOFU:
		if conn.KnownHostsFile == "" {
			return fmt.Errorf("connection.known_hosts_file is required for policy %q", conn.HostKeyPolicy)
		}
	case HostKeyAcceptAny:
	default:
		return fmt.Errorf("connection.host_key_policy %q is not one of %s, %s, %s",
			conn.HostKeyPolicy, HostKeyStrict, HostKeyTOFU, HostKeyAcceptAny)
	}

	lp := c.LoadParams
	if lp.RemoteDBCopyFolder == "" {
		return fmt.Errorf("load-params.remote-dbcopy-folder is required")
	}
	if lp.LocalDBCopyFolder == "" {
		return fmt.Errorf("load-params.local-dbcopy-folder is required")
	}
	if lp.ExpirationDays < 0 {
		return fmt.Errorf("load-params.old-db-copies-exp-period must not be negative")
	}
	if lp.RemoteMediaPath == "" {
		return fmt.Errorf("load-params.remote-media-path is required")
	}
	if lp.LocalMediaPath == "" {
		return fmt.Errorf("load-params.local-media-path is required")
	}
	if lp.LocalExpirationDays < 0 {
		return fmt.Errorf("load-params.local-copies-exp-period must not be negative")
	}

	if c.Database.Type != "postgresql" {
		return fmt.Errorf("database.type %q is not supported", c.Database.Type)
	}
	if c.Database.ServiceAccount == "" {
		return fmt.Errorf("database.service_account is required")
	}

	switch c.Settle.Mode {
	case SettleFixed:
	case SettleStable:
		if c.Settle.PollInterval <= 0 || c.Settle.StableSamples < 1 || c.Settle.MaxWait <= 0 {
			return fmt.Errorf("settle: stable mode needs positive poll_interval, stable_samples and max_wait")
		}
	default:
		return fmt.Errorf("settle.mode %q is not one of %s, %s", c.Settle.Mode, SettleFixed, SettleStable)
	}
	if c.Settle.Delay < 0 {
		return fmt.Errorf("settle.delay must not be negative")
	}

	switch c.Media.Transport {
	case MediaSCP, MediaSFTP:
	default:
		return fmt.Errorf("media.transport %q is not one of %s, %s", c.Media.Transport, MediaSCP, MediaSFTP)
	}

	for i, target := range c.GetEnabledUploadTargets() {
		switch target.Type {
		case "s3":
			if target.Bucket == "" {
				return fmt.Errorf("offsite.upload_targets[%d]: bucket is required", i)
			}
		case "gdrive":
			if target.CredentialsFile == "" {
				return fmt.Errorf("offsite.upload_targets[%d]: credentials_file is required", i)
			}
		case "telegram":
			if target.BotToken == "" || target.ChatID == "" {
				return fmt.Errorf("offsite.upload_targets[%d]: bot_token and chat_id are required", i)
			}
		}
	}

	if c.Notify.Telegram.Enabled && (c.Notify.Telegram.BotToken == "" || c.Notify.Telegram.ChatID == "") {
		return fmt.Errorf("notify.telegram: bot_token and chat_id are required when enabled")
	}

	return nil
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.Offsite.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
