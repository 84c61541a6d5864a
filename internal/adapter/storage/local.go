package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/semmidev/harmony/internal/domain"
)

type LocalStorage struct {
	basePath string
}

func NewLocal(basePath string) (*LocalStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create backup directory: %w", err)
	}
	return &LocalStorage{basePath: basePath}, nil
}

// resolve maps a slash-separated artifact name below basePath.
func (l *LocalStorage) resolve(name string) (string, error) {
	clean := filepath.Clean(filepath.FromSlash(name))
	if name == "" || filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(l.basePath, clean), nil
}

func (l *LocalStorage) Put(ctx context.Context, filename string, data []byte) (string, error) {
	destPath, err := l.resolve(filename)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create dest dir: %w", err)
	}

	tmp := destPath + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp, destPath); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	abs, err := filepath.Abs(destPath)
	if err != nil {
		abs = destPath
	}
	return "file://" + filepath.ToSlash(abs), nil
}

func (l *LocalStorage) Get(ctx context.Context, filename string) ([]byte, error) {
	path, err := l.resolve(filename)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &domain.NotFoundError{Kind: "artifact", ID: filename}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// List returns every artifact name, slash-separated and relative to the
// base path.
func (l *LocalStorage) List(ctx context.Context) ([]string, error) {
	var files []string
	err := filepath.WalkDir(l.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".part") {
			return nil
		}
		rel, err := filepath.Rel(l.basePath, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}

	return files, nil
}

func (l *LocalStorage) Delete(ctx context.Context, filename string) error {
	filePath, err := l.resolve(filename)
	if err != nil {
		return err
	}
	if err := os.Remove(filePath); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &domain.NotFoundError{Kind: "artifact", ID: filename}
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}
	return nil
}

func (l *LocalStorage) GetPath(filename string) string {
	return filepath.Join(l.basePath, filepath.FromSlash(filename))
}
