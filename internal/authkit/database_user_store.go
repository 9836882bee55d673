package authkit

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	sqliteDialector "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

var (
	// ErrUnsupportedDialect indicates that no GORM dialector is available for the scheme.
	ErrUnsupportedDialect = errors.New("user_store.unsupported_dialect")

	errEmptyDatabaseURL    = errors.New("user_store.empty_database_url")
	errSQLiteEmptyPath     = errors.New("user_store.sqlite.empty_path")
	errSQLiteInvalidURL    = errors.New("user_store.sqlite.invalid_url")
	errUnsupportedNoScheme = errors.New("user_store.unsupported_no_scheme")
)

// DatabaseUserStore persists user profiles using GORM.
type DatabaseUserStore struct {
	db          *gorm.DB
	driverLabel string
}

// Driver exposes the selected database driver label.
func (store *DatabaseUserStore) Driver() string {
	return store.driverLabel
}

type userRecord struct {
	UserID          string    `gorm:"column:user_id;primaryKey"`
	Nickname        string    `gorm:"column:nickname;not null"`
	ProfileImageURL string    `gorm:"column:profile_image_url;not null;default:''"`
	CreatedAt       time.Time `gorm:"column:created_at;not null"`
	UpdatedAt       time.Time `gorm:"column:updated_at;not null"`
}

func (userRecord) TableName() string {
	return "users"
}

func (record userRecord) profile() UserProfile {
	return UserProfile{
		UserID:          record.UserID,
		Nickname:        record.Nickname,
		ProfileImageURL: record.ProfileImageURL,
		CreatedAt:       record.CreatedAt,
		UpdatedAt:       record.UpdatedAt,
	}
}

// NewDatabaseUserStore opens the database named by databaseURL and migrates the users table.
func NewDatabaseUserStore(ctx context.Context, databaseURL string) (*DatabaseUserStore, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("user_store.open: %w", errEmptyDatabaseURL)
	}
	dialector, driverLabel, err := resolveDialector(databaseURL)
	if err != nil {
		return nil, err
	}
	gormDB, openErr := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if openErr != nil {
		return nil, fmt.Errorf("user_store.open.%s: %w", driverLabel, openErr)
	}
	if migrateErr := gormDB.WithContext(ctx).AutoMigrate(&userRecord{}); migrateErr != nil {
		return nil, fmt.Errorf("user_store.migrate.%s: %w", driverLabel, migrateErr)
	}
	return &DatabaseUserStore{
		db:          gormDB,
		driverLabel: driverLabel,
	}, nil
}

// Exists reports whether a profile is stored for userID.
func (store *DatabaseUserStore) Exists(ctx context.Context, userID string) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).Model(&userRecord{}).Where("user_id = ?", userID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("user_store.exists.%s: %w", store.driverLabel, err)
	}
	return count > 0, nil
}

// InsertIfAbsent inserts the profile, leaving any existing row untouched.
func (store *DatabaseUserStore) InsertIfAbsent(ctx context.Context, profile UserProfile) (bool, error) {
	record := userRecord{
		UserID:          profile.UserID,
		Nickname:        profile.Nickname,
		ProfileImageURL: profile.ProfileImageURL,
		CreatedAt:       profile.CreatedAt,
		UpdatedAt:       profile.UpdatedAt,
	}
	result := store.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&record)
	if result.Error != nil {
		return false, fmt.Errorf("user_store.insert.%s: %w", store.driverLabel, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// GetUserProfile loads the profile for userID.
func (store *DatabaseUserStore) GetUserProfile(ctx context.Context, userID string) (UserProfile, error) {
	var record userRecord
	err := store.db.WithContext(ctx).Where("user_id = ?", userID).Take(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return UserProfile{}, fmt.Errorf("user_store.get.%s: %w", store.driverLabel, ErrUserProfileNotFound)
		}
		return UserProfile{}, fmt.Errorf("user_store.get.%s: %w", store.driverLabel, err)
	}
	return record.profile(), nil
}

func resolveDialector(databaseURL string) (gorm.Dialector, string, error) {
	parsed, err := url.Parse(databaseURL)
	if err != nil {
		return nil, "", fmt.Errorf("user_store.parse_url: %w", err)
	}
	if parsed.Scheme == "" {
		return nil, "", fmt.Errorf("user_store.dialect: %w", errUnsupportedNoScheme)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "postgres", "postgresql":
		return postgres.Open(databaseURL), "postgres", nil
	case "sqlite", "sqlite3":
		dsn, dsnErr := buildSQLiteDSN(parsed)
		if dsnErr != nil {
			return nil, "", fmt.Errorf("user_store.sqlite: %w", dsnErr)
		}
		return sqliteDialector.Open(dsn), "sqlite", nil
	default:
		return nil, "", fmt.Errorf("user_store.dialect.%s: %w", strings.ToLower(parsed.Scheme), ErrUnsupportedDialect)
	}
}

func buildSQLiteDSN(parsed *url.URL) (string, error) {
	if parsed == nil {
		return "", errSQLiteInvalidURL
	}
	var builder strings.Builder
	switch {
	case parsed.Opaque != "":
		builder.WriteString(parsed.Opaque)
	case parsed.Host != "":
		builder.WriteString(parsed.Host)
		if parsed.Path != "" {
			if !strings.HasPrefix(parsed.Path, "/") {
				builder.WriteString("/")
			}
			builder.WriteString(parsed.Path)
		}
	default:
		builder.WriteString(parsed.Path)
	}
	if builder.Len() == 0 {
		return "", errSQLiteEmptyPath
	}
	if parsed.RawQuery != "" {
		builder.WriteString("?")
		builder.WriteString(parsed.RawQuery)
	}
	return builder.String(), nil
}
