package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/semmidev/harmony/internal/domain"
)

// ErrMissingID is returned when a record without an id is written.
var ErrMissingID = errors.New("record has no id")

// SQLiteContent is a ContentStore over the content_records table.
type SQLiteContent struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteContent(db *sql.DB) *SQLiteContent {
	return &SQLiteContent{db: db, now: time.Now}
}

func (c *SQLiteContent) Count(ctx context.Context, ct domain.ContentType) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM content_records WHERE content_type = ?`, ct,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", ct, err)
	}
	return n, nil
}

func (c *SQLiteContent) StreamRecords(ctx context.Context, ct domain.ContentType, batchSize int, fn func([]domain.Record) error) error {
	if batchSize < 1 {
		batchSize = 1
	}
	after := ""
	for {
		batch, last, err := c.page(ctx, ct, after, batchSize)
		if err != nil {
			return err
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
		after = last
	}
}

// page reads one keyset page. The rows are drained before fn runs so a
// single-connection database is free for the caller.
func (c *SQLiteContent) page(ctx context.Context, ct domain.ContentType, after string, limit int) ([]domain.Record, string, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, data FROM content_records
		 WHERE content_type = ? AND id > ?
		 ORDER BY id LIMIT ?`, ct, after, limit,
	)
	if err != nil {
		return nil, "", fmt.Errorf("stream %s: %w", ct, err)
	}
	defer rows.Close()

	var (
		batch []domain.Record
		last  string
	)
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&last, &data); err != nil {
			return nil, "", fmt.Errorf("scan %s record: %w", ct, err)
		}
		r, err := decodeRecord(data)
		if err != nil {
			return nil, "", err
		}
		batch = append(batch, r)
	}
	return batch, last, rows.Err()
}

func (c *SQLiteContent) Get(ctx context.Context, ct domain.ContentType, id string) (domain.Record, bool, error) {
	var data []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT data FROM content_records WHERE content_type = ? AND id = ?`, ct, id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
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

func (c *SQLiteContent) Upsert(ctx context.Context, ct domain.ContentType, record domain.Record) error {
	id := record.ID()
	if id == "" {
		return fmt.Errorf("upsert %s: %w", ct, ErrMissingID)
	}
	data, err := encodeDoc(record)
	if err != nil {
		return err
	}
	_, err = c.db.ExecContext(ctx,
		`INSERT INTO content_records (content_type, id, data, updated_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT (content_type, id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		ct, id, data, stamp(c.now()),
	)
	if err != nil {
		return fmt.Errorf("upsert %s %s: %w", ct, id, err)
	}
	return nil
}

func (c *SQLiteContent) Ping(ctx context.Context) error {
	if err := c.db.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}
