package usecase

import (
	"context"
	"fmt"

	"github.com/semmidev/harmony/internal/domain"
	"github.com/semmidev/harmony/internal/verification"
)

// Verify grades stored backup files and records the verdicts.
type Verify struct {
	repo    domain.BackupRepository
	storage domain.ArtifactStorage
	engine  *verification.Engine
	logger  Logger
}

func NewVerify(repo domain.BackupRepository, storage domain.ArtifactStorage, packer *Packer, sampleSize int, logger Logger) *Verify {
	return &Verify{
		repo:    repo,
		storage: storage,
		engine:  verification.NewEngine(sampleSize, packer.Unpack),
		logger:  logger,
	}
}

// VerifyBackupFile grades the file against content, or against its stored
// artifact when content is nil. The verdict and the file's verified flag
// are saved together.
func (uc *Verify) VerifyBackupFile(ctx context.Context, auth domain.AuthContext, fileID string, content []byte) (*domain.BackupVerification, error) {
	if err := authorize(auth, resourceSettings, actionUpdate); err != nil {
		return nil, err
	}
	file, err := uc.repo.GetBackupFile(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if content == nil {
		stored, err := uc.storage.Get(ctx, file.Filename)
		if err != nil {
			uc.logger.Warnf("[%s] Artifact unavailable, verifying without content: %v", file.Name, err)
		} else {
			content = stored
		}
	}

	v := uc.engine.Verify(*file, content, auth.CurrentUserID())
	if err := uc.repo.AddVerification(ctx, &v, v.Status != domain.VerificationFailed); err != nil {
		return nil, fmt.Errorf("save verification: %w", err)
	}

	switch v.Status {
	case domain.VerificationFailed:
		uc.logger.Errorf("[%s] Verification failed with score %d (%d issue(s))", file.Name, v.Score, len(v.Issues))
	case domain.VerificationWarning:
		uc.logger.Warnf("[%s] Verification passed with warnings, score %d", file.Name, v.Score)
	default:
		uc.logger.Infof("[%s] Verification passed, score %d", file.Name, v.Score)
	}
	return &v, nil
}

func (uc *Verify) ListVerifications(ctx context.Context, fileID string) ([]domain.BackupVerification, error) {
	if _, err := uc.repo.GetBackupFile(ctx, fileID); err != nil {
		return nil, err
	}
	return uc.repo.ListVerifications(ctx, fileID)
}
