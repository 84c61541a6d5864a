package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const sampleConfig = `
app:
  name: harmony-test
  log_level: debug
database:
  path: /tmp/harmony.db
backup:
  local_path: /tmp/harmony-backups
  storage_quota: 2GB
  upload_targets:
    - name: offsite
      type: s3
      enabled: true
      region: eu-west-1
      bucket: sanctuary-backups
environments:
  - name: production
    driver: sqlite
    dsn: /tmp/content.db
    default: true
  - name: staging
    driver: postgres
    dsn: postgres://harmony@localhost/staging
auth:
  users:
    - id: alice
      roles: [admin]
jobs:
  - name: Nightly
    type: full
    content_types: [animals, blog]
    frequency: daily
    time: "02:00"
    retention_days: 30
    max_backups: 5
    enabled: true
`

func writeConfig(dir, body string) string {
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		panic(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	Convey("Given a config file", t, func() {
		dir := t.TempDir()

		Convey("When it is complete", func() {
			cfg, err := Load(writeConfig(dir, sampleConfig))

			Convey("It should load values and defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.App.Name, ShouldEqual, "harmony-test")
				So(cfg.Backup.Format, ShouldEqual, "json")
				So(cfg.Backup.BatchSize, ShouldEqual, 500)
				So(cfg.Backup.ExecutionTimeout, ShouldEqual, 30*time.Minute)
				So(cfg.Locks.Driver, ShouldEqual, "memory")
				So(cfg.Auth.SystemUser, ShouldEqual, "system")
				So(cfg.Jobs, ShouldHaveLength, 1)
				So(cfg.Jobs[0].ContentTypes, ShouldResemble, []string{"animals", "blog"})
				So(cfg.DefaultEnvironment().Name, ShouldEqual, "production")
				So(cfg.GetEnabledUploadTargets(), ShouldHaveLength, 1)

				quota, err := cfg.StorageQuotaBytes()
				So(err, ShouldBeNil)
				So(quota, ShouldEqual, int64(2_000_000_000))
			})
		})

		Convey("When a secret comes from the environment", func() {
			t.Setenv("HARMONY_BACKUP_ENCRYPTION_PASSPHRASE", "correct horse")
			cfg, err := Load(writeConfig(dir, sampleConfig))

			So(err, ShouldBeNil)
			So(cfg.Backup.EncryptionPassphrase, ShouldEqual, "correct horse")
		})

		Convey("When the file does not exist", func() {
			_, err := Load(filepath.Join(dir, "missing.yaml"))

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "failed to read config")
		})

		Convey("When no environment is configured", func() {
			_, err := Load(writeConfig(dir, "app:\n  name: x\n"))

			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "environments")
		})
	})
}

func TestValidate(t *testing.T) {
	Convey("Given a valid config", t, func() {
		cfg := &Config{
			App:          AppConfig{Name: "harmony", LogLevel: "info"},
			Database:     DatabaseConfig{Path: "harmony.db"},
			Backup:       BackupConfig{LocalPath: "backups", Format: "json", BatchSize: 100},
			Environments: []EnvironmentConfig{{Name: "production", Driver: "sqlite", DSN: "content.db"}},
			Locks:        LockConfig{Driver: "memory"},
			Auth:         AuthConfig{SystemUser: "system"},
		}
		So(cfg.Validate(), ShouldBeNil)

		Convey("An unknown backup format is rejected", func() {
			cfg.Backup.Format = "yaml"
			So(cfg.Validate().Error(), ShouldContainSubstring, "backup.format")
		})

		Convey("Duplicate environment names are rejected", func() {
			cfg.Environments = append(cfg.Environments, cfg.Environments[0])
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("The redis lock driver needs an address", func() {
			cfg.Locks.Driver = "redis"
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Locks.RedisAddr = "localhost:6379"
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("Encrypted jobs need a passphrase", func() {
			cfg.Jobs = []JobConfig{{Name: "Users", Encryption: true}}
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Backup.EncryptionPassphrase = "secret"
			So(cfg.Validate(), ShouldBeNil)
		})

		Convey("A malformed quota is rejected", func() {
			cfg.Backup.StorageQuota = "lots"
			So(cfg.Validate(), ShouldNotBeNil)
		})

		Convey("Enabled gdrive targets need credentials", func() {
			cfg.Backup.UploadTargets = []UploadTarget{{Type: "gdrive", Enabled: true, FolderID: "abc"}}
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Backup.UploadTargets[0].OAuthRefreshToken = "token"
			So(cfg.Validate(), ShouldNotBeNil)

			cfg.Backup.UploadTargets[0].OAuthClientSecretFile = "client_secret.json"
			So(cfg.Validate(), ShouldBeNil)
		})
	})
}
