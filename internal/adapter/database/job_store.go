package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/semmidev/harmony/internal/domain"
)

const (
	kindExportJob    = "export job"
	kindImportJob    = "import job"
	kindMigrationJob = "migration job"
)

// JobStore keeps the one-shot export, import and migration jobs.
type JobStore struct {
	db *sql.DB
}

func NewJobStore(db *sql.DB) *JobStore {
	return &JobStore{db: db}
}

func (s *JobStore) CreateExportJob(ctx context.Context, job *domain.ExportJob) error {
	data, err := encodeDoc(job)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO export_jobs (id, status, expires_at, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Status, nullStamp(job.ExpiresAt), stamp(job.CreatedAt), data,
	)
	if err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

func (s *JobStore) GetExportJob(ctx context.Context, id string) (*domain.ExportJob, error) {
	return getDoc[domain.ExportJob](ctx, s.db, "export_jobs", kindExportJob, id)
}

func (s *JobStore) UpdateExportJob(ctx context.Context, job *domain.ExportJob) error {
	data, err := encodeDoc(job)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE export_jobs SET status = ?, expires_at = ?, data = ? WHERE id = ?`,
		job.Status, nullStamp(job.ExpiresAt), data, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return requireRow(res, kindExportJob, job.ID)
}

// ListExpiredExports returns completed exports whose download window closed
// before now, oldest expiry first.
func (s *JobStore) ListExpiredExports(ctx context.Context, now time.Time) ([]domain.ExportJob, error) {
	return listDocs[domain.ExportJob](ctx, s.db, "expired exports",
		`SELECT data FROM export_jobs
		 WHERE status = ? AND expires_at IS NOT NULL AND expires_at < ?
		 ORDER BY expires_at, id`,
		domain.ExecutionCompleted, stamp(now))
}

func (s *JobStore) CreateImportJob(ctx context.Context, job *domain.ImportJob) error {
	data, err := encodeDoc(job)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO import_jobs (id, status, created_at, data) VALUES (?, ?, ?, ?)`,
		job.ID, job.Status, stamp(job.CreatedAt), data,
	)
	if err != nil {
		return fmt.Errorf("create import job: %w", err)
	}
	return nil
}

func (s *JobStore) GetImportJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	return getDoc[domain.ImportJob](ctx, s.db, "import_jobs", kindImportJob, id)
}

func (s *JobStore) UpdateImportJob(ctx context.Context, job *domain.ImportJob) error {
	data, err := encodeDoc(job)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE import_jobs SET status = ?, data = ? WHERE id = ?`,
		job.Status, data, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update import job: %w", err)
	}
	return requireRow(res, kindImportJob, job.ID)
}

func (s *JobStore) CreateMigrationJob(ctx context.Context, job *domain.MigrationJob) error {
	data, err := encodeDoc(job)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO migration_jobs (id, status, created_at, data) VALUES (?, ?, ?, ?)`,
		job.ID, job.Status, stamp(job.CreatedAt), data,
	)
	if err != nil {
		return fmt.Errorf("create migration job: %w", err)
	}
	return nil
}

func (s *JobStore) GetMigrationJob(ctx context.Context, id string) (*domain.MigrationJob, error) {
	return getDoc[domain.MigrationJob](ctx, s.db, "migration_jobs", kindMigrationJob, id)
}

func (s *JobStore) UpdateMigrationJob(ctx context.Context, job *domain.MigrationJob) error {
	data, err := encodeDoc(job)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE migration_jobs SET status = ?, data = ? WHERE id = ?`,
		job.Status, data, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update migration job: %w", err)
	}
	return requireRow(res, kindMigrationJob, job.ID)
}
