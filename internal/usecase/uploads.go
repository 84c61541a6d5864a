package usecase

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	"github.com/semmidev/harmony/internal/domain"
)

// mirror copies an artifact to every remote target concurrently. Failures
// are reported per target and never fail the caller.
func mirror(ctx context.Context, targets []UploadTarget, filename string, data []byte, logger Logger, label string) map[string]error {
	failures := make(map[string]error)
	if len(targets) == 0 {
		return failures
	}

	errs := make([]error, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		g.Go(func() error {
			logger.Infof("[%s] Uploading to %s...", label, t.Name)
			if _, err := t.Storage.Put(ctx, filename, data); err != nil {
				logger.Errorf("[%s] Failed to upload to %s: %v", label, t.Name, err)
				errs[i] = err
				return nil
			}
			logger.Infof("[%s] Successfully uploaded to %s", label, t.Name)
			return nil
		})
	}
	_ = g.Wait()

	for i, err := range errs {
		if err != nil {
			failures[targets[i].Name] = err
		}
	}
	return failures
}

// unmirror removes an artifact from every remote target, best effort.
func unmirror(ctx context.Context, targets []UploadTarget, filename string, logger Logger) {
	var g errgroup.Group
	for _, t := range targets {
		g.Go(func() error {
			if err := t.Storage.Delete(ctx, filename); err != nil && !errors.Is(err, domain.ErrNotFound) {
				logger.Warnf("Failed to delete %s from %s: %v", filename, t.Name, err)
			}
			return nil
		})
	}
	_ = g.Wait()
}
