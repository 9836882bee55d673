package authkit

import (
	"context"
	"time"
)

// UserProfile is the locally persisted projection of a resolved identity.
type UserProfile struct {
	UserID          string
	Nickname        string
	ProfileImageURL string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UserStore persists and retrieves application users keyed by user id.
type UserStore interface {
	Exists(ctx context.Context, userID string) (bool, error)
	// InsertIfAbsent stores the profile unless one already exists for its user id.
	// It must be atomic; inserted is false when another writer got there first.
	InsertIfAbsent(ctx context.Context, profile UserProfile) (inserted bool, err error)
	GetUserProfile(ctx context.Context, userID string) (UserProfile, error)
}

// KeyValueCache is the minimal cache contract used by the refresh registry.
type KeyValueCache interface {
	// Set stores value under key. A non-positive ttl keeps the entry until deleted or evicted.
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (value string, found bool, err error)
	Delete(ctx context.Context, key string) error
}
