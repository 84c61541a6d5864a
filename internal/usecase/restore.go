package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/harmony/internal/codec"
	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/estimator"
)

// RestoreResult counts the records written back per content type.
type RestoreResult struct {
	FileID   string                     `json:"fileId"`
	Restored map[domain.ContentType]int `json:"restored"`
	Records  int                        `json:"records"`
}

// Restore writes a verified backup artifact back into a content store.
type Restore struct {
	repo        domain.BackupRepository
	storage     domain.ArtifactStorage
	packer      *Packer
	content     domain.ContentStore
	locks       domain.Locker
	environment string
	logger      Logger
}

func NewRestore(
	repo domain.BackupRepository,
	storage domain.ArtifactStorage,
	packer *Packer,
	content domain.ContentStore,
	locks domain.Locker,
	environment string,
	logger Logger,
) *Restore {
	return &Restore{
		repo:        repo,
		storage:     storage,
		packer:      packer,
		content:     content,
		locks:       locks,
		environment: environment,
		logger:      logger,
	}
}

// RestoreBackupFile refuses artifacts that fail the integrity check. Records
// are upserted by id under the write locks of every restored content type.
func (uc *Restore) RestoreBackupFile(ctx context.Context, auth domain.AuthContext, fileID string) (*RestoreResult, error) {
	if err := authorize(auth, resourceContent, actionUpdate); err != nil {
		return nil, err
	}
	file, err := uc.repo.GetBackupFile(ctx, fileID)
	if err != nil {
		return nil, err
	}
	stored, err := uc.storage.Get(ctx, file.Filename)
	if err != nil {
		return nil, fmt.Errorf("load artifact: %w", err)
	}

	report := estimator.VerifyIntegrity(*file, stored, uc.packer.Unpack)
	if !report.IsValid {
		return nil, report.Err()
	}

	c, err := codec.For(file.Format)
	if err != nil {
		return nil, err
	}
	ds, err := c.Decode(report.Payload)
	if err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}

	types := domain.SortContentTypes(ds.ContentTypes())
	release, err := uc.locks.Lock(ctx, contentLockKeys(uc.environment, types)...)
	if err != nil {
		return nil, fmt.Errorf("lock content: %w", err)
	}
	defer release()

	result := &RestoreResult{FileID: file.ID, Restored: make(map[domain.ContentType]int, len(types))}
	for _, ct := range types {
		for _, rec := range ds.Records(ct) {
			if err := uc.content.Upsert(ctx, ct, rec); err != nil {
				return result, fmt.Errorf("restore %s %s: %w", ct, rec.ID(), err)
			}
			result.Restored[ct]++
			result.Records++
		}
	}

	uc.logger.Infof("[%s] Restored %d record(s) into %s", file.Name, result.Records, uc.environment)
	return result, nil
}
