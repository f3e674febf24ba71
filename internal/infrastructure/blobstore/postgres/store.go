package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/study-vault/internal/core/domain"
	"github.com/kirillkom/study-vault/internal/core/ports"
)

const DefaultChunkSize = 256 << 10

// Store keeps object content as fixed-size chunk rows under a shared id, so
// download streams row by row and large objects never need one contiguous
// allocation. Writes for one object happen inside a single transaction:
// nothing is visible to readers until finalize commits, and any failure
// discards the object entirely.
type Store struct {
	db        *sql.DB
	chunkSize int
}

func NewStore(db *sql.DB, chunkSize int) *Store {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Store{db: db, chunkSize: chunkSize}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (s *Store) EnsureSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across concurrent api startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082801)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS blobs (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	owner_id TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	byte_size BIGINT NOT NULL DEFAULT 0,
	chunk_count INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS blob_chunks (
	blob_id TEXT NOT NULL REFERENCES blobs(id) ON DELETE CASCADE,
	seq INT NOT NULL,
	data BYTEA NOT NULL,
	PRIMARY KEY (blob_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_blobs_owner ON blobs(owner_id);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (s *Store) BeginUpload(ctx context.Context, filename string, meta domain.BlobInfo) (ports.BlobUpload, error) {
	info := domain.BlobInfo{
		ID:        uuid.NewString(),
		Filename:  filename,
		OwnerID:   meta.OwnerID,
		MimeType:  meta.MimeType,
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, domain.WrapError(domain.ErrStorage, "begin upload", err)
	}

	_, err = tx.ExecContext(ctx, `
INSERT INTO blobs (id, filename, owner_id, mime_type, byte_size, chunk_count, created_at)
VALUES ($1,$2,$3,$4,0,0,$5)
`, info.ID, info.Filename, info.OwnerID, info.MimeType, info.CreatedAt)
	if err != nil {
		_ = tx.Rollback()
		return nil, domain.WrapError(domain.ErrStorage, "insert blob record", err)
	}

	return &upload{
		ctx:       ctx,
		tx:        tx,
		info:      info,
		chunkSize: s.chunkSize,
	}, nil
}

func (s *Store) Stat(ctx context.Context, id string) (domain.BlobInfo, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT id, filename, owner_id, mime_type, byte_size, chunk_count, created_at
FROM blobs
WHERE id = $1
`, id)

	var info domain.BlobInfo
	err := row.Scan(&info.ID, &info.Filename, &info.OwnerID, &info.MimeType, &info.Size, &info.ChunkCount, &info.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.BlobInfo{}, domain.WrapError(domain.ErrNotFound, "stat blob", fmt.Errorf("no object for id %s", id))
		}
		return domain.BlobInfo{}, domain.WrapError(domain.ErrStorage, "stat blob", err)
	}
	return info, nil
}

func (s *Store) OpenDownload(ctx context.Context, id string) (domain.BlobInfo, io.ReadCloser, error) {
	info, err := s.Stat(ctx, id)
	if err != nil {
		return domain.BlobInfo{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT data FROM blob_chunks WHERE blob_id = $1 ORDER BY seq
`, id)
	if err != nil {
		return domain.BlobInfo{}, nil, domain.WrapError(domain.ErrStorage, "open download", err)
	}

	return info, &chunkReader{rows: rows}, nil
}

func (s *Store) Delete(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "begin delete", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM blob_chunks WHERE blob_id = $1`, id); err != nil {
		return domain.WrapError(domain.ErrStorage, "delete blob chunks", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM blobs WHERE id = $1`, id)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "delete blob record", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "delete blob record", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrNotFound, "delete blob", fmt.Errorf("no object for id %s", id))
	}

	if err := tx.Commit(); err != nil {
		return domain.WrapError(domain.ErrStorage, "commit delete", err)
	}
	return nil
}

// upload buffers incoming bytes and flushes full chunks as rows inside the
// transaction opened by BeginUpload.
type upload struct {
	ctx       context.Context
	tx        *sql.Tx
	info      domain.BlobInfo
	chunkSize int

	pending []byte
	seq     int
	size    int64
	done    bool
}

func (u *upload) Write(p []byte) (int, error) {
	if u.done {
		return 0, fmt.Errorf("upload already finalized")
	}
	u.pending = append(u.pending, p...)
	u.size += int64(len(p))

	for len(u.pending) >= u.chunkSize {
		if err := u.flushChunk(u.pending[:u.chunkSize]); err != nil {
			return 0, err
		}
		u.pending = u.pending[u.chunkSize:]
	}
	return len(p), nil
}

func (u *upload) Commit(ctx context.Context) (domain.BlobInfo, error) {
	if u.done {
		return domain.BlobInfo{}, fmt.Errorf("upload already finalized")
	}
	if len(u.pending) > 0 {
		if err := u.flushChunk(u.pending); err != nil {
			return domain.BlobInfo{}, err
		}
		u.pending = nil
	}

	_, err := u.tx.ExecContext(ctx, `
UPDATE blobs SET byte_size = $2, chunk_count = $3 WHERE id = $1
`, u.info.ID, u.size, u.seq)
	if err != nil {
		return domain.BlobInfo{}, domain.WrapError(domain.ErrStorage, "finalize blob", err)
	}

	if err := u.tx.Commit(); err != nil {
		return domain.BlobInfo{}, domain.WrapError(domain.ErrStorage, "commit blob", err)
	}
	u.done = true

	u.info.Size = u.size
	u.info.ChunkCount = u.seq
	return u.info, nil
}

func (u *upload) Abort() error {
	if u.done {
		return nil
	}
	u.done = true
	return u.tx.Rollback()
}

func (u *upload) flushChunk(data []byte) error {
	_, err := u.tx.ExecContext(u.ctx, `
INSERT INTO blob_chunks (blob_id, seq, data) VALUES ($1,$2,$3)
`, u.info.ID, u.seq, data)
	if err != nil {
		return domain.WrapError(domain.ErrStorage, "write blob chunk", err)
	}
	u.seq++
	return nil
}

// chunkReader streams chunk rows in creation order, bounded by the
// consumer's read rate.
type chunkReader struct {
	rows    *sql.Rows
	current []byte
}

func (r *chunkReader) Read(p []byte) (int, error) {
	for len(r.current) == 0 {
		if !r.rows.Next() {
			if err := r.rows.Err(); err != nil {
				return 0, err
			}
			return 0, io.EOF
		}
		if err := r.rows.Scan(&r.current); err != nil {
			return 0, err
		}
	}
	n := copy(p, r.current)
	r.current = r.current[n:]
	return n, nil
}

func (r *chunkReader) Close() error {
	return r.rows.Close()
}
