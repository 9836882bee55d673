package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// RefreshKeyPrefix namespaces refresh token liveness entries in the cache.
// Other tools may scan by this prefix.
const RefreshKeyPrefix = "refresh:"

const refreshLiveMarker = "true"

// RefreshRegistry tracks which refresh tokens are currently honourable.
type RefreshRegistry struct {
	cache       KeyValueCache
	livenessTTL time.Duration
}

// NewRefreshRegistry wraps cache. livenessTTL bounds how long a marked token stays live.
func NewRefreshRegistry(cache KeyValueCache, livenessTTL time.Duration) (*RefreshRegistry, error) {
	if cache == nil {
		return nil, errors.New("refresh_registry.new: cache is required")
	}
	if livenessTTL <= 0 {
		return nil, errors.New("refresh_registry.new: liveness ttl must be greater than zero")
	}
	return &RefreshRegistry{cache: cache, livenessTTL: livenessTTL}, nil
}

// RefreshKey returns the cache key for a refresh token.
func RefreshKey(refreshToken string) string {
	return RefreshKeyPrefix + refreshToken
}

// MarkLive records the token as usable. Marking twice only renews the entry.
func (registry *RefreshRegistry) MarkLive(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return fmt.Errorf("refresh_registry.mark_live: %w", ErrInvalidToken)
	}
	if err := registry.cache.Set(ctx, RefreshKey(refreshToken), refreshLiveMarker, registry.livenessTTL); err != nil {
		return fmt.Errorf("refresh_registry.mark_live: %w: %w", ErrCacheUnavailable, err)
	}
	return nil
}

// IsLive reports whether the token has a registry entry.
// Expired, evicted, revoked, and never-issued tokens are indistinguishable.
func (registry *RefreshRegistry) IsLive(ctx context.Context, refreshToken string) (bool, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return false, nil
	}
	_, found, err := registry.cache.Get(ctx, RefreshKey(refreshToken))
	if err != nil {
		return false, fmt.Errorf("refresh_registry.is_live: %w: %w", ErrCacheUnavailable, err)
	}
	return found, nil
}

// Revoke removes the token's entry so later refreshes fail.
func (registry *RefreshRegistry) Revoke(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	if err := registry.cache.Delete(ctx, RefreshKey(refreshToken)); err != nil {
		return fmt.Errorf("refresh_registry.revoke: %w: %w", ErrCacheUnavailable, err)
	}
	return nil
}
