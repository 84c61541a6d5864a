package domain

import (
	"context"
	"time"
)

type BackupRepository interface {
	CreateBackupJob(ctx context.Context, job *BackupJob) error
	GetBackupJob(ctx context.Context, id string) (*BackupJob, error)
	ListBackupJobs(ctx context.Context) ([]BackupJob, error)
	UpdateBackupJob(ctx context.Context, job *BackupJob) error
	DeleteBackupJob(ctx context.Context, id string) error

	CreateExecution(ctx context.Context, exec *BackupExecution) error
	UpdateExecution(ctx context.Context, exec *BackupExecution) error
	GetExecution(ctx context.Context, id string) (*BackupExecution, error)
	ListExecutions(ctx context.Context, jobID string) ([]BackupExecution, error)
	// FinishExecution stores the terminal execution, the job's new
	// lastRun/nextRun/status and the produced file (nil unless completed) in
	// one transaction.
	FinishExecution(ctx context.Context, exec *BackupExecution, job *BackupJob, file *BackupFile) error

	GetBackupFile(ctx context.Context, id string) (*BackupFile, error)
	// ListBackupFiles returns the job's files newest first.
	ListBackupFiles(ctx context.Context, jobID string) ([]BackupFile, error)
	ListAllBackupFiles(ctx context.Context) ([]BackupFile, error)
	DeleteBackupFile(ctx context.Context, id string) error

	// AddVerification stores v and updates the file's verified flag.
	AddVerification(ctx context.Context, v *BackupVerification, verified bool) error
	ListVerifications(ctx context.Context, fileID string) ([]BackupVerification, error)
	LatestVerification(ctx context.Context, fileID string) (*BackupVerification, error)
}

type ExportRepository interface {
	CreateExportJob(ctx context.Context, job *ExportJob) error
	GetExportJob(ctx context.Context, id string) (*ExportJob, error)
	UpdateExportJob(ctx context.Context, job *ExportJob) error
	ListExpiredExports(ctx context.Context, now time.Time) ([]ExportJob, error)
}

type ImportRepository interface {
	CreateImportJob(ctx context.Context, job *ImportJob) error
	GetImportJob(ctx context.Context, id string) (*ImportJob, error)
	UpdateImportJob(ctx context.Context, job *ImportJob) error
}

type MigrationRepository interface {
	CreateMigrationJob(ctx context.Context, job *MigrationJob) error
	GetMigrationJob(ctx context.Context, id string) (*MigrationJob, error)
	UpdateMigrationJob(ctx context.Context, job *MigrationJob) error
}
