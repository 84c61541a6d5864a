package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"

	"github.com/semmidev/harmony/internal/adapter/auth"
	"github.com/semmidev/harmony/internal/adapter/compressor"
	"github.com/semmidev/harmony/internal/adapter/crypto"
	"github.com/semmidev/harmony/internal/adapter/database"
	"github.com/semmidev/harmony/internal/adapter/lock"
	"github.com/semmidev/harmony/internal/adapter/notifier"
	"github.com/semmidev/harmony/internal/adapter/storage"
	"github.com/semmidev/harmony/internal/config"
	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/infrastructure/logger"
	"github.com/semmidev/harmony/internal/infrastructure/metrics"
	"github.com/semmidev/harmony/internal/infrastructure/scheduler"
	"github.com/semmidev/harmony/internal/usecase"
)

const cleanupKey = "cleanup"

type App struct {
	config        *config.Config
	logger        *logger.Logger
	scheduler     *scheduler.Scheduler
	metrics       *metrics.Metrics
	catalog       *sql.DB
	environments  map[string]*database.Environment
	redis         *redis.Client
	localStorage  *storage.LocalStorage
	uploadTargets []usecase.UploadTarget
	authz         *auth.Authorizer

	Backups    *usecase.Backup
	Exports    *usecase.Export
	Imports    *usecase.Import
	Migrations *usecase.Migration
	Cleanup    *usecase.Cleanup
	Verify     *usecase.Verify
	Restore    *usecase.Restore
	Health     *usecase.Health
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	log, err := logger.New(&cfg.App)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	log.Infof("Starting %s", cfg.App.Name)

	a := &App{
		config:       cfg,
		logger:       log,
		metrics:      metrics.New(),
		environments: make(map[string]*database.Environment),
	}
	if err := a.init(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *App) init(ctx context.Context) error {
	cfg := a.config
	log := a.logger

	catalog, err := database.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open catalog: %w", err)
	}
	a.catalog = catalog
	backups := database.NewBackupStore(catalog)
	jobs := database.NewJobStore(catalog)

	contents := make(map[string]domain.ContentStore, len(cfg.Environments))
	for i := range cfg.Environments {
		envCfg := &cfg.Environments[i]
		env, err := database.OpenEnvironment(ctx, envCfg)
		if err != nil {
			return err
		}
		if err := env.Content.Ping(ctx); err != nil {
			env.Close()
			return fmt.Errorf("failed to connect to %s: %w", envCfg.Name, err)
		}
		a.environments[env.Name] = env
		contents[env.Name] = env.Content
		log.Infof("✓ Connected to environment %s (%s)", env.Name, envCfg.Driver)
	}
	defaultEnv := cfg.DefaultEnvironment()
	content := contents[defaultEnv.Name]

	localStorage, err := storage.NewLocal(cfg.Backup.LocalPath)
	if err != nil {
		return fmt.Errorf("failed to initialize local storage: %w", err)
	}
	a.localStorage = localStorage
	a.uploadTargets = initializeUploadTargets(ctx, cfg, log)

	var enc domain.Encryptor
	if cfg.Backup.EncryptionPassphrase != "" {
		aes, err := crypto.NewAESGCM(cfg.Backup.EncryptionPassphrase)
		if err != nil {
			return fmt.Errorf("failed to initialize encryption: %w", err)
		}
		enc = aes
	}
	packer := usecase.NewPacker(compressor.NewGzip(), enc)

	locks, err := a.initializeLocks(ctx)
	if err != nil {
		return err
	}

	a.authz, err = auth.New(&cfg.Auth, log.Named("auth"))
	if err != nil {
		return fmt.Errorf("failed to initialize authorization: %w", err)
	}

	quota, err := cfg.StorageQuotaBytes()
	if err != nil {
		return err
	}

	a.Backups = usecase.NewBackup(backups, content, localStorage, packer, log.Named("backup"), usecase.BackupOptions{
		Format:            domain.Format(cfg.Backup.Format),
		BatchSize:         cfg.Backup.BatchSize,
		Timeout:           cfg.Backup.ExecutionTimeout,
		SourceEnvironment: defaultEnv.Name,
	})
	a.Backups.UseTargets(a.uploadTargets)
	a.Backups.UseMetrics(a.metrics)

	tg := cfg.Notifications.Telegram
	if tg.Enabled {
		n, err := notifier.NewTelegram(&tg)
		if err != nil {
			log.Errorf("Failed to initialize Telegram notifier: %v", err)
		} else {
			a.Backups.UseNotifier(n, tg.OnFailureOnly)
			log.Infof("✓ Telegram notifications enabled")
		}
	}

	a.Exports = usecase.NewExport(jobs, content, localStorage, log.Named("export"), usecase.ExportOptions{
		Retention: cfg.Backup.ExportRetention,
		BatchSize: cfg.Backup.BatchSize,
	})
	a.Exports.UseMetrics(a.metrics)

	a.Imports = usecase.NewImport(jobs, content, localStorage, locks, defaultEnv.Name, log.Named("import"))
	a.Imports.UseMetrics(a.metrics)

	a.Migrations = usecase.NewMigration(jobs, contents, localStorage, locks, log.Named("migration"), cfg.Backup.BatchSize)
	a.Migrations.UseMetrics(a.metrics)

	a.Cleanup = usecase.NewCleanup(backups, jobs, localStorage, a.uploadTargets, log.Named("cleanup"))
	a.Cleanup.UseMetrics(a.metrics)

	a.Verify = usecase.NewVerify(backups, localStorage, packer, cfg.Backup.VerifySampleSize, log.Named("verify"))
	a.Restore = usecase.NewRestore(backups, localStorage, packer, content, locks, defaultEnv.Name, log.Named("restore"))
	a.Health = usecase.NewHealth(backups, localStorage, quota)

	a.scheduler = scheduler.New(log.Named("scheduler"))
	a.Backups.UseScheduler(a.scheduler, a.System())
	return nil
}

func initializeUploadTargets(ctx context.Context, cfg *config.Config, log *logger.Logger) []usecase.UploadTarget {
	var targets []usecase.UploadTarget

	onStateChange := func(name string, from, to gobreaker.State) {
		log.Warnf("Upload target %s circuit %s -> %s", name, from, to)
	}

	for _, targetCfg := range cfg.GetEnabledUploadTargets() {
		var stor domain.ArtifactStorage
		var err error

		switch targetCfg.Type {
		case "gdrive":
			stor, err = storage.NewGDrive(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize Google Drive: %v", err)
				continue
			}
			log.Infof("✓ Google Drive upload enabled")

		case "s3":
			stor, err = storage.NewS3(ctx, &targetCfg)
			if err != nil {
				log.Errorf("Failed to initialize S3: %v", err)
				continue
			}
			log.Infof("✓ AWS S3 upload enabled (bucket: %s)", targetCfg.Bucket)

		default:
			log.Warnf("Unknown upload target type: %s", targetCfg.Type)
			continue
		}

		name := targetCfg.Name
		if name == "" {
			name = targetCfg.Type
		}
		targets = append(targets, usecase.UploadTarget{
			Name:    name,
			Storage: storage.NewBreaker(name, stor, storage.DefaultBreakerConfig(), onStateChange),
		})
	}

	return targets
}

func (a *App) initializeLocks(ctx context.Context) (domain.Locker, error) {
	lc := a.config.Locks
	if lc.Driver != "redis" {
		return lock.NewMemory(), nil
	}

	client, err := lock.Dial(ctx, lc.RedisAddr, lc.RedisPassword, lc.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	a.redis = client
	a.logger.Infof("✓ Using redis locks at %s", lc.RedisAddr)
	return lock.NewRedis(client, lc.Prefix, lc.TTL), nil
}

// System is the identity of scheduled and declarative operations.
func (a *App) System() domain.AuthContext {
	return a.authz.For(a.config.Auth.SystemUser)
}

// As returns the authorization context of a configured user.
func (a *App) As(userID string) domain.AuthContext {
	return a.authz.For(userID)
}

// Prepare applies the declared jobs and registers schedules without
// starting the scheduler.
func (a *App) Prepare(ctx context.Context) error {
	drafts, err := jobsFromConfig(a.config.Jobs)
	if err != nil {
		return err
	}
	if err := a.Backups.ReconcileJobs(ctx, a.System(), drafts); err != nil {
		return fmt.Errorf("failed to apply configured jobs: %w", err)
	}
	if err := a.Backups.SyncSchedules(ctx); err != nil {
		return fmt.Errorf("failed to sync schedules: %w", err)
	}
	return nil
}

func (a *App) Run(ctx context.Context) error {
	if err := a.Prepare(ctx); err != nil {
		return err
	}

	cleanupSchedule := a.config.Backup.CleanupSchedule
	a.logger.Infof("Scheduling cleanup: %s", cleanupSchedule)
	if err := a.scheduler.AddJob(cleanupKey, cleanupSchedule, a.Cleanup.Execute); err != nil {
		return fmt.Errorf("failed to schedule cleanup: %w", err)
	}

	if addr := a.config.App.MetricsAddr; addr != "" {
		go func() {
			if err := a.metrics.Serve(ctx, addr, a.logger.Named("metrics")); err != nil {
				a.logger.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started with %d entr(ies)", a.scheduler.Len())
	a.logger.Infof("Backup destinations: local + %d remote target(s)", len(a.uploadTargets))

	<-ctx.Done()
	return nil
}

// RunJob executes the named backup job once and waits for it to finish.
func (a *App) RunJob(ctx context.Context, name string) (*domain.BackupExecution, error) {
	jobs, err := a.Backups.ListBackupJobs(ctx)
	if err != nil {
		return nil, err
	}
	for _, job := range jobs {
		if job.Name != name {
			continue
		}
		exec, err := a.Backups.RunBackupJob(ctx, a.System(), job.ID, usecase.TriggerManual)
		if err != nil {
			return nil, err
		}
		return a.Backups.WaitExecution(ctx, exec.ID)
	}
	return nil, &domain.NotFoundError{Kind: "backup job", ID: name}
}

func (a *App) Shutdown() {
	a.logger.Infof("Shutting down application...")
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.Backups != nil {
		done := make(chan struct{})
		go func() {
			a.Backups.Shutdown()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(30 * time.Second):
			a.logger.Warnf("Running backups did not stop in time")
		}
	}
	a.close()
	a.logger.Close()
}

func (a *App) close() {
	var errs []error
	for _, env := range a.environments {
		env.Close()
	}
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	if a.catalog != nil {
		errs = append(errs, a.catalog.Close())
	}
	if err := errors.Join(errs...); err != nil {
		a.logger.Errorf("Failed to release resources: %v", err)
	}
}
