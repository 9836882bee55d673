package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/tyemirov/rebookauth/internal/authkit"
	"github.com/tyemirov/rebookauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

var _ authkit.UserStore = (*InMemoryUsers)(nil)

// InMemoryUsers is a user store for local runs without a database.
type InMemoryUsers struct {
	mutex sync.RWMutex
	users map[string]authkit.UserProfile
}

// NewInMemoryUsers constructs an empty store.
func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{users: make(map[string]authkit.UserProfile)}
}

// Exists reports whether a profile is stored for userID.
func (store *InMemoryUsers) Exists(ctx context.Context, userID string) (bool, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	_, ok := store.users[userID]
	return ok, nil
}

// InsertIfAbsent stores profile unless its user id is already taken.
func (store *InMemoryUsers) InsertIfAbsent(ctx context.Context, profile authkit.UserProfile) (bool, error) {
	store.mutex.Lock()
	defer store.mutex.Unlock()
	if _, ok := store.users[profile.UserID]; ok {
		return false, nil
	}
	store.users[profile.UserID] = profile
	return true, nil
}

// GetUserProfile returns a profile by user id.
func (store *InMemoryUsers) GetUserProfile(ctx context.Context, userID string) (authkit.UserProfile, error) {
	store.mutex.RLock()
	defer store.mutex.RUnlock()
	profile, ok := store.users[userID]
	if !ok {
		return authkit.UserProfile{}, fmt.Errorf("web.users.get: %w", authkit.ErrUserProfileNotFound)
	}
	return profile, nil
}

// HandleWhoAmI returns the provisioned profile of the bearer token's subject.
func HandleWhoAmI(logger *zap.Logger, users authkit.UserStore) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	if users == nil {
		panic("user store is required")
	}

	return func(contextGin *gin.Context) {
		claimsValue, found := contextGin.Get(sessionvalidator.DefaultContextKey)
		if !found {
			logger.Warn("missing auth claims on context",
				zap.String("code", "api.me.missing_claims"))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}
		claims, ok := claimsValue.(*sessionvalidator.Claims)
		if !ok || claims.GetUserID() == "" {
			logger.Warn("invalid auth claims on context",
				zap.String("code", "api.me.invalid_claims"))
			contextGin.AbortWithStatus(http.StatusUnauthorized)
			return
		}

		profile, profileErr := users.GetUserProfile(contextGin.Request.Context(), claims.GetUserID())
		if profileErr != nil {
			if errors.Is(profileErr, authkit.ErrUserProfileNotFound) {
				logger.Warn("user profile missing",
					zap.String("code", "api.me.profile_missing"),
					zap.String("user_id", claims.GetUserID()))
				contextGin.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "profile_not_found"})
				return
			}
			logger.Error("user profile lookup error",
				zap.String("code", "api.me.profile_error"),
				zap.String("user_id", claims.GetUserID()),
				zap.Error(profileErr))
			contextGin.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
			return
		}

		contextGin.JSON(http.StatusOK, gin.H{
			"userId":          profile.UserID,
			"nickname":        profile.Nickname,
			"profileImageUrl": profile.ProfileImageURL,
			"expires":         claims.GetExpiresAt(),
		})
	}
}
