package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/study-vault/internal/core/domain"
)

// ProfileRepository persists owner profiles with their ordered file index
// and gamification state. Save is a plain upsert: the metadata commit is a
// read-modify-write with no compare-and-set, so concurrent uploads by one
// owner can lose counter or badge updates (accepted limitation).
type ProfileRepository struct {
	db *sql.DB
}

func NewProfileRepository(db *sql.DB) *ProfileRepository {
	return &ProfileRepository{db: db}
}

func (r *ProfileRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082802)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS profiles (
	id TEXT PRIMARY KEY,
	files JSONB NOT NULL DEFAULT '[]'::jsonb,
	upload_count INT NOT NULL DEFAULT 0,
	badges JSONB NOT NULL DEFAULT '[]'::jsonb,
	activity JSONB NOT NULL DEFAULT '[]'::jsonb,
	streak JSONB NOT NULL DEFAULT '{}'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ProfileRepository) GetByID(ctx context.Context, ownerID string) (*domain.Profile, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, files, upload_count, badges, activity, streak, created_at, updated_at
FROM profiles
WHERE id = $1
`, ownerID)

	var (
		profile     domain.Profile
		filesRaw    []byte
		badgesRaw   []byte
		activityRaw []byte
		streakRaw   []byte
	)
	err := row.Scan(
		&profile.ID, &filesRaw, &profile.UploadCount, &badgesRaw, &activityRaw, &streakRaw,
		&profile.CreatedAt, &profile.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get profile", fmt.Errorf("no profile for owner %s", ownerID))
		}
		return nil, fmt.Errorf("scan profile: %w", err)
	}

	if err := json.Unmarshal(filesRaw, &profile.Files); err != nil {
		return nil, fmt.Errorf("unmarshal files: %w", err)
	}
	if err := json.Unmarshal(badgesRaw, &profile.Badges); err != nil {
		return nil, fmt.Errorf("unmarshal badges: %w", err)
	}
	if err := json.Unmarshal(activityRaw, &profile.Activity); err != nil {
		return nil, fmt.Errorf("unmarshal activity: %w", err)
	}
	if err := json.Unmarshal(streakRaw, &profile.Streak); err != nil {
		return nil, fmt.Errorf("unmarshal streak: %w", err)
	}
	return &profile, nil
}

func (r *ProfileRepository) Save(ctx context.Context, profile *domain.Profile) error {
	filesJSON, err := json.Marshal(profile.Files)
	if err != nil {
		return fmt.Errorf("marshal files: %w", err)
	}
	badgesJSON, err := json.Marshal(profile.Badges)
	if err != nil {
		return fmt.Errorf("marshal badges: %w", err)
	}
	activityJSON, err := json.Marshal(profile.Activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}
	streakJSON, err := json.Marshal(profile.Streak)
	if err != nil {
		return fmt.Errorf("marshal streak: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO profiles (id, files, upload_count, badges, activity, streak, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT (id) DO UPDATE SET
	files = EXCLUDED.files,
	upload_count = EXCLUDED.upload_count,
	badges = EXCLUDED.badges,
	activity = EXCLUDED.activity,
	streak = EXCLUDED.streak,
	updated_at = EXCLUDED.updated_at
`,
		profile.ID, filesJSON, profile.UploadCount, badgesJSON, activityJSON, streakJSON,
		profile.CreatedAt, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("upsert profile: %w", err)
	}
	return nil
}
