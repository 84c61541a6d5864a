package database

import (
	"context"
	"fmt"

	"github.com/semmidev/harmony/internal/config"
	"github.com/semmidev/harmony/internal/domain"
)

// Environment is an opened CMS environment.
type Environment struct {
	Name    string
	Content domain.ContentStore
	close   func()
}

// OpenEnvironment connects to the content store named by cfg.
func OpenEnvironment(ctx context.Context, cfg *config.EnvironmentConfig) (*Environment, error) {
	switch cfg.Driver {
	case "sqlite":
		db, err := Open(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("open environment %s: %w", cfg.Name, err)
		}
		return &Environment{
			Name:    cfg.Name,
			Content: NewSQLiteContent(db),
			close:   func() { _ = db.Close() },
		}, nil
	case "postgres":
		pg, err := NewPostgreSQL(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("open environment %s: %w", cfg.Name, err)
		}
		return &Environment{Name: cfg.Name, Content: pg, close: pg.Close}, nil
	default:
		return nil, fmt.Errorf("environment %s: unsupported driver %q", cfg.Name, cfg.Driver)
	}
}

func (e *Environment) Close() {
	if e.close != nil {
		e.close()
	}
}
