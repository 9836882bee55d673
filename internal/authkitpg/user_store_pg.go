package authkitpg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tyemirov/rebookauth/internal/authkit"
)

var _ authkit.UserStore = (*PostgresUserStore)(nil)

// Querier is the subset of *pgxpool.Pool the store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresUserStore persists user profiles in PostgreSQL through pgx.
type PostgresUserStore struct {
	pool Querier
}

// NewPostgresUserStore constructs a Postgres store.
func NewPostgresUserStore(pool Querier) *PostgresUserStore {
	return &PostgresUserStore{pool: pool}
}

// Exists reports whether a row exists for userID.
func (store *PostgresUserStore) Exists(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := store.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("user_store_pg.exists: %w", err)
	}
	return exists, nil
}

// InsertIfAbsent inserts the profile; a concurrent insert for the same id wins silently.
func (store *PostgresUserStore) InsertIfAbsent(ctx context.Context, profile authkit.UserProfile) (bool, error) {
	tag, err := store.pool.Exec(ctx, `
INSERT INTO users (user_id, nickname, profile_image_url, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (user_id) DO NOTHING
`, profile.UserID, profile.Nickname, profile.ProfileImageURL, profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return false, fmt.Errorf("user_store_pg.insert: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetUserProfile loads the profile for userID.
func (store *PostgresUserStore) GetUserProfile(ctx context.Context, userID string) (authkit.UserProfile, error) {
	var profile authkit.UserProfile
	row := store.pool.QueryRow(ctx, `
SELECT user_id, nickname, profile_image_url, created_at, updated_at
FROM users
WHERE user_id = $1
`, userID)
	scanErr := row.Scan(&profile.UserID, &profile.Nickname, &profile.ProfileImageURL, &profile.CreatedAt, &profile.UpdatedAt)
	if scanErr != nil {
		if errors.Is(scanErr, pgx.ErrNoRows) {
			return authkit.UserProfile{}, fmt.Errorf("user_store_pg.get: %w", authkit.ErrUserProfileNotFound)
		}
		return authkit.UserProfile{}, fmt.Errorf("user_store_pg.get: %w", scanErr)
	}
	return profile, nil
}
