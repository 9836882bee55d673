package authkitpg

import (
	"context"
	"errors"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/tyemirov/rebookauth/internal/authkit"
)

var (
	existsQuery = regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)")
	insertQuery = regexp.QuoteMeta("INSERT INTO users (user_id, nickname, profile_image_url, created_at, updated_at)")
	selectQuery = regexp.QuoteMeta("SELECT user_id, nickname, profile_image_url, created_at, updated_at")
	profileCols = []string{"user_id", "nickname", "profile_image_url", "created_at", "updated_at"}
)

func newMockUserStore(t *testing.T) (*PostgresUserStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("create pgx mock: %v", err)
	}
	t.Cleanup(mockPool.Close)
	return NewPostgresUserStore(mockPool), mockPool
}

func assertExpectations(t *testing.T, mockPool pgxmock.PgxPoolIface) {
	t.Helper()
	if err := mockPool.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet pgx expectations: %v", err)
	}
}

func TestPostgresUserStoreInsertIfAbsentKeepsFirstRow(t *testing.T) {
	t.Parallel()

	store, mockPool := newMockUserStore(t)
	createdAt := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	original := authkit.UserProfile{UserID: "user-1", Nickname: "닉네임ab12", ProfileImageURL: "https://cdn.example.com/default.png", CreatedAt: createdAt, UpdatedAt: createdAt}
	challenger := authkit.UserProfile{UserID: "user-1", Nickname: "닉네임zz99", ProfileImageURL: "https://cdn.example.com/other.png", CreatedAt: createdAt.Add(time.Hour), UpdatedAt: createdAt.Add(time.Hour)}

	mockPool.ExpectExec(insertQuery).
		WithArgs(original.UserID, original.Nickname, original.ProfileImageURL, original.CreatedAt, original.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockPool.ExpectExec(insertQuery).
		WithArgs(challenger.UserID, challenger.Nickname, challenger.ProfileImageURL, challenger.CreatedAt, challenger.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	mockPool.ExpectQuery(selectQuery).
		WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows(profileCols).AddRow(original.UserID, original.Nickname, original.ProfileImageURL, original.CreatedAt, original.UpdatedAt))

	inserted, err := store.InsertIfAbsent(context.Background(), original)
	if err != nil || !inserted {
		t.Fatalf("expected first insert to win, got inserted=%v err=%v", inserted, err)
	}
	inserted, err = store.InsertIfAbsent(context.Background(), challenger)
	if err != nil || inserted {
		t.Fatalf("expected second insert to be ignored, got inserted=%v err=%v", inserted, err)
	}
	stored, err := store.GetUserProfile(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if stored.Nickname != original.Nickname || stored.ProfileImageURL != original.ProfileImageURL {
		t.Fatalf("expected original profile, got %+v", stored)
	}
	assertExpectations(t, mockPool)
}

func TestPostgresUserStoreGetUserProfileMissing(t *testing.T) {
	t.Parallel()

	store, mockPool := newMockUserStore(t)
	mockPool.ExpectQuery(selectQuery).WithArgs("ghost").WillReturnError(pgx.ErrNoRows)

	_, err := store.GetUserProfile(context.Background(), "ghost")
	if !errors.Is(err, authkit.ErrUserProfileNotFound) {
		t.Fatalf("expected ErrUserProfileNotFound, got %v", err)
	}
	assertExpectations(t, mockPool)
}

func TestPostgresUserStoreExists(t *testing.T) {
	t.Parallel()

	store, mockPool := newMockUserStore(t)
	mockPool.ExpectQuery(existsQuery).WithArgs("user-1").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))
	mockPool.ExpectQuery(existsQuery).WithArgs("ghost").WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

	exists, err := store.Exists(context.Background(), "user-1")
	if err != nil || !exists {
		t.Fatalf("expected user-1 to exist, got exists=%v err=%v", exists, err)
	}
	exists, err = store.Exists(context.Background(), "ghost")
	if err != nil || exists {
		t.Fatalf("expected ghost to be absent, got exists=%v err=%v", exists, err)
	}
	assertExpectations(t, mockPool)
}

func TestPostgresUserStoreWrapsDriverErrors(t *testing.T) {
	t.Parallel()

	store, mockPool := newMockUserStore(t)
	driverErr := errors.New("connection reset")
	mockPool.ExpectQuery(existsQuery).WithArgs("user-1").WillReturnError(driverErr)
	mockPool.ExpectExec(insertQuery).WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).WillReturnError(driverErr)
	mockPool.ExpectQuery(selectQuery).WithArgs("user-1").WillReturnError(driverErr)

	if _, err := store.Exists(context.Background(), "user-1"); !errors.Is(err, driverErr) {
		t.Fatalf("expected wrapped driver error from exists, got %v", err)
	}
	if _, err := store.InsertIfAbsent(context.Background(), authkit.UserProfile{UserID: "user-1"}); !errors.Is(err, driverErr) {
		t.Fatalf("expected wrapped driver error from insert, got %v", err)
	}
	_, err := store.GetUserProfile(context.Background(), "user-1")
	if !errors.Is(err, driverErr) || errors.Is(err, authkit.ErrUserProfileNotFound) {
		t.Fatalf("expected wrapped driver error from get, got %v", err)
	}
	assertExpectations(t, mockPool)
}

// TestPostgresUserStoreAgainstDatabase runs the same flow against a live
// server when APP_TEST_DATABASE_URL is set.
func TestPostgresUserStoreAgainstDatabase(t *testing.T) {
	databaseURL := os.Getenv("APP_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("APP_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	store, pool, err := OpenUserStore(ctx, databaseURL)
	if err != nil {
		t.Fatalf("open user store: %v", err)
	}
	t.Cleanup(pool.Close)

	userID := "it-" + uuid.NewString()
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DELETE FROM users WHERE user_id = $1", userID)
	})
	now := time.Now().UTC().Truncate(time.Microsecond)
	first := authkit.UserProfile{UserID: userID, Nickname: "first", ProfileImageURL: "https://cdn.example.com/a.png", CreatedAt: now, UpdatedAt: now}
	second := authkit.UserProfile{UserID: userID, Nickname: "second", ProfileImageURL: "https://cdn.example.com/b.png", CreatedAt: now, UpdatedAt: now}

	inserted, err := store.InsertIfAbsent(ctx, first)
	if err != nil || !inserted {
		t.Fatalf("expected first insert to win, got inserted=%v err=%v", inserted, err)
	}
	inserted, err = store.InsertIfAbsent(ctx, second)
	if err != nil || inserted {
		t.Fatalf("expected second insert to be ignored, got inserted=%v err=%v", inserted, err)
	}
	stored, err := store.GetUserProfile(ctx, userID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if stored.Nickname != "first" {
		t.Fatalf("expected first nickname to survive, got %q", stored.Nickname)
	}
	if _, missingErr := store.GetUserProfile(ctx, "it-missing-"+uuid.NewString()); !errors.Is(missingErr, authkit.ErrUserProfileNotFound) {
		t.Fatalf("expected ErrUserProfileNotFound, got %v", missingErr)
	}
}
