package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/semmidev/harmony/internal/config"
	"github.com/semmidev/harmony/internal/domain"
)

const postgresSchema = `CREATE TABLE IF NOT EXISTS content_records (
	content_type TEXT NOT NULL,
	id           TEXT NOT NULL,
	data         JSONB NOT NULL,
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (content_type, id)
)`

// PostgreSQLContent is a ContentStore for a CMS environment hosted on
// PostgreSQL.
type PostgreSQLContent struct {
	name string
	pool *pgxpool.Pool
}

// NewPostgreSQL connects to the environment and makes sure the content
// table exists.
func NewPostgreSQL(ctx context.Context, cfg *config.EnvironmentConfig) (*PostgreSQLContent, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse %s dsn: %w", cfg.Name, err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", cfg.Name, err)
	}
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("prepare %s schema: %w", cfg.Name, err)
	}
	return &PostgreSQLContent{name: cfg.Name, pool: pool}, nil
}

func (p *PostgreSQLContent) Count(ctx context.Context, ct domain.ContentType) (int, error) {
	var n int
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM content_records WHERE content_type = $1`, string(ct),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", ct, err)
	}
	return n, nil
}

func (p *PostgreSQLContent) StreamRecords(ctx context.Context, ct domain.ContentType, batchSize int, fn func([]domain.Record) error) error {
	if batchSize < 1 {
		batchSize = 1
	}
	after := ""
	for {
		rows, err := p.pool.Query(ctx,
			`SELECT id, data FROM content_records
			 WHERE content_type = $1 AND id > $2
			 ORDER BY id LIMIT $3`, string(ct), after, batchSize,
		)
		if err != nil {
			return fmt.Errorf("stream %s: %w", ct, err)
		}

		var batch []domain.Record
		for rows.Next() {
			var data []byte
			if err := rows.Scan(&after, &data); err != nil {
				rows.Close()
				return fmt.Errorf("scan %s record: %w", ct, err)
			}
			r, err := decodeRecord(data)
			if err != nil {
				rows.Close()
				return err
			}
			batch = append(batch, r)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("stream %s: %w", ct, err)
		}

		if len(batch) == 0 {
			return nil
		}
		if err := fn(batch); err != nil {
			return err
		}
		if len(batch) < batchSize {
			return nil
		}
	}
}

func (p *PostgreSQLContent) Get(ctx context.Context, ct domain.ContentType, id string) (domain.Record, bool, error) {
	var data []byte
	err := p.pool.QueryRow(ctx,
		`SELECT data FROM content_records WHERE content_type = $1 AND id = $2`, string(ct), id,
	).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s %s: %w", ct, id, err)
	}
	r, err := decodeRecord(data)
	if err != nil {
		return nil, false, err
	}
	return r, true, nil
}

func (p *PostgreSQLContent) Upsert(ctx context.Context, ct domain.ContentType, record domain.Record) error {
	id := record.ID()
	if id == "" {
		return fmt.Errorf("upsert %s: %w", ct, ErrMissingID)
	}
	data, err := encodeDoc(record)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO content_records (content_type, id, data, updated_at) VALUES ($1, $2, $3, now())
		 ON CONFLICT (content_type, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`,
		string(ct), id, string(data),
	)
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", ct, id, err)
	}
	return nil
}

func (p *PostgreSQLContent) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return fmt.Errorf("postgresql ping %s failed: %w", p.name, err)
	}
	return nil
}

func (p *PostgreSQLContent) Close() {
	p.pool.Close()
}
