package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides, e.g.
// HARMONY_BACKUP_ENCRYPTION_PASSPHRASE.
const EnvPrefix = "HARMONY"

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Backup        BackupConfig        `mapstructure:"backup"`
	Environments  []EnvironmentConfig `mapstructure:"environments" validate:"required,min=1,dive"`
	Locks         LockConfig          `mapstructure:"locks"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Jobs          []JobConfig         `mapstructure:"jobs" validate:"dive"`
}

type AppConfig struct {
	Name          string `mapstructure:"name" validate:"required"`
	LogLevel      string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogFile       string `mapstructure:"log_file"`
	LogMaxSizeMB  int    `mapstructure:"log_max_size_mb" validate:"gte=0"`
	LogMaxBackups int    `mapstructure:"log_max_backups" validate:"gte=0"`
	LogMaxAgeDays int    `mapstructure:"log_max_age_days" validate:"gte=0"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
}

// DatabaseConfig locates the catalog of jobs, executions and files.
type DatabaseConfig struct {
	Path string `mapstructure:"path" validate:"required"`
}

type BackupConfig struct {
	LocalPath            string         `mapstructure:"local_path" validate:"required"`
	Format               string         `mapstructure:"format" validate:"oneof=json csv xml sql"`
	BatchSize            int            `mapstructure:"batch_size" validate:"gte=1"`
	ExecutionTimeout     time.Duration  `mapstructure:"execution_timeout" validate:"gte=0"`
	EncryptionPassphrase string         `mapstructure:"encryption_passphrase"`
	ExportRetention      time.Duration  `mapstructure:"export_retention" validate:"gte=0"`
	StorageQuota         string         `mapstructure:"storage_quota"`
	CleanupSchedule      string         `mapstructure:"cleanup_schedule"`
	VerifySampleSize     int            `mapstructure:"verify_sample_size" validate:"gte=0"`
	UploadTargets        []UploadTarget `mapstructure:"upload_targets" validate:"dive"`
}

// UploadTarget mirrors every artifact to a remote store.
type UploadTarget struct {
	Name    string `mapstructure:"name"`
	Type    string `mapstructure:"type" validate:"oneof=s3 gdrive"`
	Enabled bool   `mapstructure:"enabled"`

	// Google Drive: a service account file, or an OAuth client secret file
	// with a refresh token obtained through the authorize flow.
	CredentialsFile       string `mapstructure:"credentials_file"`
	FolderID              string `mapstructure:"folder_id"`
	OAuthClientSecretFile string `mapstructure:"oauth_client_secret_file"`
	OAuthRefreshToken     string `mapstructure:"oauth_refresh_token"`

	// AWS S3
	Region    string `mapstructure:"region"`
	Bucket    string `mapstructure:"bucket"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
	Endpoint  string `mapstructure:"endpoint"`
}

// EnvironmentConfig is a named content store. The default environment is
// the one backups read from and imports write to.
type EnvironmentConfig struct {
	Name    string `mapstructure:"name" validate:"required"`
	Driver  string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	DSN     string `mapstructure:"dsn" validate:"required"`
	Default bool   `mapstructure:"default"`
}

type LockConfig struct {
	Driver        string        `mapstructure:"driver" validate:"oneof=memory redis"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db" validate:"gte=0"`
	TTL           time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Prefix        string        `mapstructure:"prefix"`
}

type AuthConfig struct {
	// SystemUser runs scheduled and declarative operations.
	SystemUser string       `mapstructure:"system_user" validate:"required"`
	PolicyFile string       `mapstructure:"policy_file"`
	Users      []UserConfig `mapstructure:"users" validate:"dive"`
}

type UserConfig struct {
	ID    string   `mapstructure:"id" validate:"required"`
	Roles []string `mapstructure:"roles" validate:"min=1"`
}

type NotificationConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	BotToken      string `mapstructure:"bot_token"`
	ChatID        string `mapstructure:"chat_id"`
	OnFailureOnly bool   `mapstructure:"on_failure_only"`
}

// JobConfig declares a backup job that is created or updated at startup.
type JobConfig struct {
	Name          string   `mapstructure:"name" validate:"required"`
	Description   string   `mapstructure:"description"`
	Type          string   `mapstructure:"type"`
	ContentTypes  []string `mapstructure:"content_types"`
	Frequency     string   `mapstructure:"frequency"`
	Time          string   `mapstructure:"time"`
	DayOfWeek     *int     `mapstructure:"day_of_week"`
	DayOfMonth    *int     `mapstructure:"day_of_month"`
	CustomCron    string   `mapstructure:"custom_cron"`
	Timezone      string   `mapstructure:"timezone"`
	RetentionDays int      `mapstructure:"retention_days"`
	MaxBackups    int      `mapstructure:"max_backups"`
	Compression   bool     `mapstructure:"compression"`
	Encryption    bool     `mapstructure:"encryption"`
	Enabled       bool     `mapstructure:"enabled"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "harmony")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_max_size_mb", 100)
	v.SetDefault("app.log_max_backups", 3)
	v.SetDefault("app.log_max_age_days", 28)
	v.SetDefault("database.path", "./data/harmony.db")
	v.SetDefault("backup.local_path", "./backups")
	v.SetDefault("backup.format", "json")
	v.SetDefault("backup.batch_size", 500)
	v.SetDefault("backup.execution_timeout", 30*time.Minute)
	v.SetDefault("backup.export_retention", 7*24*time.Hour)
	v.SetDefault("backup.cleanup_schedule", "@hourly")
	v.SetDefault("backup.verify_sample_size", 25)
	v.SetDefault("locks.driver", "memory")
	v.SetDefault("locks.ttl", 10*time.Minute)
	v.SetDefault("locks.prefix", "harmony:lock:")
	v.SetDefault("auth.system_user", "system")

	// Secrets have empty defaults so AutomaticEnv can supply them.
	v.SetDefault("backup.encryption_passphrase", "")
	v.SetDefault("locks.redis_password", "")
	v.SetDefault("notifications.telegram.bot_token", "")
}

func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

var validate = func() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := fld.Tag.Get("mapstructure")
		if name == "" {
			return fld.Name
		}
		return name
	})
	return v
}()

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			e := fieldErrs[0]
			return fmt.Errorf("%s: failed %q rule", strings.TrimPrefix(e.Namespace(), "Config."), e.Tag())
		}
		return err
	}

	defaults := 0
	seen := map[string]bool{}
	for i, env := range c.Environments {
		if seen[env.Name] {
			return fmt.Errorf("environments[%d]: duplicate name %q", i, env.Name)
		}
		seen[env.Name] = true
		if env.Default {
			defaults++
		}
	}
	if defaults > 1 {
		return fmt.Errorf("at most one environment may be the default")
	}

	for i, target := range c.Backup.UploadTargets {
		if !target.Enabled {
			continue
		}
		switch target.Type {
		case "s3":
			if target.Bucket == "" || target.Region == "" {
				return fmt.Errorf("backup.upload_targets[%d]: s3 requires bucket and region", i)
			}
		case "gdrive":
			if target.FolderID == "" {
				return fmt.Errorf("backup.upload_targets[%d]: gdrive requires folder_id", i)
			}
			if target.CredentialsFile == "" && (target.OAuthClientSecretFile == "" || target.OAuthRefreshToken == "") {
				return fmt.Errorf("backup.upload_targets[%d]: gdrive requires credentials_file or an oauth client with refresh token", i)
			}
		}
	}

	if c.Locks.Driver == "redis" && c.Locks.RedisAddr == "" {
		return fmt.Errorf("locks.redis_addr is required for the redis driver")
	}

	tg := c.Notifications.Telegram
	if tg.Enabled && (tg.BotToken == "" || tg.ChatID == "") {
		return fmt.Errorf("notifications.telegram requires bot_token and chat_id")
	}

	if _, err := c.StorageQuotaBytes(); err != nil {
		return err
	}

	jobs := map[string]bool{}
	for i, job := range c.Jobs {
		if jobs[job.Name] {
			return fmt.Errorf("jobs[%d]: duplicate name %q", i, job.Name)
		}
		jobs[job.Name] = true
		if job.Encryption && c.Backup.EncryptionPassphrase == "" {
			return fmt.Errorf("jobs[%d]: encryption requires backup.encryption_passphrase", i)
		}
	}

	return nil
}

// StorageQuotaBytes parses backup.storage_quota ("50GB", "512 MiB"). Zero
// means unlimited.
func (c *Config) StorageQuotaBytes() (int64, error) {
	if strings.TrimSpace(c.Backup.StorageQuota) == "" {
		return 0, nil
	}
	n, err := humanize.ParseBytes(c.Backup.StorageQuota)
	if err != nil {
		return 0, fmt.Errorf("backup.storage_quota: %w", err)
	}
	return int64(n), nil
}

// DefaultEnvironment returns the environment flagged default, or the first.
func (c *Config) DefaultEnvironment() EnvironmentConfig {
	for _, env := range c.Environments {
		if env.Default {
			return env
		}
	}
	return c.Environments[0]
}

func (c *Config) GetEnabledUploadTargets() []UploadTarget {
	var enabled []UploadTarget
	for _, target := range c.Backup.UploadTargets {
		if target.Enabled {
			enabled = append(enabled, target)
		}
	}
	return enabled
}
