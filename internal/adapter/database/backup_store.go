package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/semmidev/harmony/internal/domain"
)

const (
	kindBackupJob    = "backup job"
	kindExecution    = "backup execution"
	kindBackupFile   = "backup file"
	kindVerification = "backup verification"
)

// BackupStore keeps backup jobs, their executions, files and verifications.
// Each row carries its entity as a JSON document next to the indexed columns.
type BackupStore struct {
	db *sql.DB
}

func NewBackupStore(db *sql.DB) *BackupStore {
	return &BackupStore{db: db}
}

func (s *BackupStore) CreateBackupJob(ctx context.Context, job *domain.BackupJob) error {
	data, err := encodeDoc(job)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backup_jobs (id, name, status, created_at, data) VALUES (?, ?, ?, ?, ?)`,
		job.ID, job.Name, job.Status, stamp(job.CreatedAt), data,
	)
	if err != nil {
		return fmt.Errorf("create backup job: %w", err)
	}
	return nil
}

func (s *BackupStore) GetBackupJob(ctx context.Context, id string) (*domain.BackupJob, error) {
	return getDoc[domain.BackupJob](ctx, s.db, "backup_jobs", kindBackupJob, id)
}

func (s *BackupStore) ListBackupJobs(ctx context.Context) ([]domain.BackupJob, error) {
	return listDocs[domain.BackupJob](ctx, s.db, "backup jobs",
		`SELECT data FROM backup_jobs ORDER BY created_at, id`)
}

func (s *BackupStore) UpdateBackupJob(ctx context.Context, job *domain.BackupJob) error {
	return updateJob(ctx, s.db, job)
}

func updateJob(ctx context.Context, q querier, job *domain.BackupJob) error {
	data, err := encodeDoc(job)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx,
		`UPDATE backup_jobs SET name = ?, status = ?, data = ? WHERE id = ?`,
		job.Name, job.Status, data, job.ID,
	)
	if err != nil {
		return fmt.Errorf("update backup job: %w", err)
	}
	return requireRow(res, kindBackupJob, job.ID)
}

// DeleteBackupJob removes the job only. Its files and executions stay
// behind as history.
func (s *BackupStore) DeleteBackupJob(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM backup_jobs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete backup job: %w", err)
	}
	return requireRow(res, kindBackupJob, id)
}

func (s *BackupStore) CreateExecution(ctx context.Context, exec *domain.BackupExecution) error {
	data, err := encodeDoc(exec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO backup_executions (id, job_id, status, start_time, data) VALUES (?, ?, ?, ?, ?)`,
		exec.ID, exec.JobID, exec.Status, stamp(exec.StartTime), data,
	)
	if err != nil {
		return fmt.Errorf("create execution: %w", err)
	}
	return nil
}

func (s *BackupStore) UpdateExecution(ctx context.Context, exec *domain.BackupExecution) error {
	return updateExecution(ctx, s.db, exec)
}

func updateExecution(ctx context.Context, q querier, exec *domain.BackupExecution) error {
	data, err := encodeDoc(exec)
	if err != nil {
		return err
	}
	res, err := q.ExecContext(ctx,
		`UPDATE backup_executions SET status = ?, start_time = ?, data = ? WHERE id = ?`,
		exec.Status, stamp(exec.StartTime), data, exec.ID,
	)
	if err != nil {
		return fmt.Errorf("update execution: %w", err)
	}
	return requireRow(res, kindExecution, exec.ID)
}

func (s *BackupStore) GetExecution(ctx context.Context, id string) (*domain.BackupExecution, error) {
	return getDoc[domain.BackupExecution](ctx, s.db, "backup_executions", kindExecution, id)
}

// ListExecutions returns the job's executions newest first.
func (s *BackupStore) ListExecutions(ctx context.Context, jobID string) ([]domain.BackupExecution, error) {
	return listDocs[domain.BackupExecution](ctx, s.db, "executions",
		`SELECT data FROM backup_executions WHERE job_id = ? ORDER BY start_time DESC, id DESC`, jobID)
}

func (s *BackupStore) FinishExecution(ctx context.Context, exec *domain.BackupExecution, job *domain.BackupJob, file *domain.BackupFile) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if err := updateExecution(ctx, tx, exec); err != nil {
			return err
		}
		if job != nil {
			if err := updateJob(ctx, tx, job); err != nil {
				return err
			}
		}
		if file != nil {
			if err := insertFile(ctx, tx, file); err != nil {
				return err
			}
		}
		return nil
	})
}

func insertFile(ctx context.Context, q querier, file *domain.BackupFile) error {
	data, err := encodeDoc(file)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO backup_files (id, job_id, created_at, verified, data) VALUES (?, ?, ?, ?, ?)`,
		file.ID, file.JobID, stamp(file.CreatedAt), file.Verified, data,
	)
	if err != nil {
		return fmt.Errorf("insert backup file: %w", err)
	}
	return nil
}

func (s *BackupStore) GetBackupFile(ctx context.Context, id string) (*domain.BackupFile, error) {
	return getDoc[domain.BackupFile](ctx, s.db, "backup_files", kindBackupFile, id)
}

func (s *BackupStore) ListBackupFiles(ctx context.Context, jobID string) ([]domain.BackupFile, error) {
	return listDocs[domain.BackupFile](ctx, s.db, "backup files",
		`SELECT data FROM backup_files WHERE job_id = ? ORDER BY created_at DESC, id DESC`, jobID)
}

func (s *BackupStore) ListAllBackupFiles(ctx context.Context) ([]domain.BackupFile, error) {
	return listDocs[domain.BackupFile](ctx, s.db, "backup files",
		`SELECT data FROM backup_files ORDER BY created_at DESC, id DESC`)
}

func (s *BackupStore) DeleteBackupFile(ctx context.Context, id string) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM backup_verifications WHERE backup_file_id = ?`, id); err != nil {
			return fmt.Errorf("delete verifications: %w", err)
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM backup_files WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("delete backup file: %w", err)
		}
		return requireRow(res, kindBackupFile, id)
	})
}

func (s *BackupStore) AddVerification(ctx context.Context, v *domain.BackupVerification, verified bool) error {
	return withTx(ctx, s.db, func(tx *sql.Tx) error {
		file, err := getDoc[domain.BackupFile](ctx, tx, "backup_files", kindBackupFile, v.BackupFileID)
		if err != nil {
			return err
		}

		data, err := encodeDoc(v)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO backup_verifications (id, backup_file_id, verified_at, data) VALUES (?, ?, ?, ?)`,
			v.ID, v.BackupFileID, stamp(v.VerifiedAt), data,
		)
		if err != nil {
			return fmt.Errorf("insert verification: %w", err)
		}

		verifiedAt := v.VerifiedAt
		file.Verified = verified
		file.VerifiedAt = &verifiedAt
		fileData, err := encodeDoc(file)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE backup_files SET verified = ?, data = ? WHERE id = ?`,
			file.Verified, fileData, file.ID,
		)
		if err != nil {
			return fmt.Errorf("update backup file: %w", err)
		}
		return nil
	})
}

// ListVerifications returns the file's verifications newest first.
func (s *BackupStore) ListVerifications(ctx context.Context, fileID string) ([]domain.BackupVerification, error) {
	return listDocs[domain.BackupVerification](ctx, s.db, "verifications",
		`SELECT data FROM backup_verifications WHERE backup_file_id = ? ORDER BY verified_at DESC, rowid DESC`, fileID)
}

func (s *BackupStore) LatestVerification(ctx context.Context, fileID string) (*domain.BackupVerification, error) {
	list, err := s.ListVerifications(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, &domain.NotFoundError{Kind: kindVerification, ID: fileID}
	}
	return &list[0], nil
}
