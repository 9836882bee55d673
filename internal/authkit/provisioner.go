package authkit

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// UserProvisioner makes sure a local profile exists for every resolved identity.
// Existing profiles are never refreshed from provider data.
type UserProvisioner struct {
	users                  UserStore
	defaultNicknamePrefix  string
	defaultProfileImageURL string
	clock                  Clock
	logger                 *zap.Logger
	metrics                MetricsRecorder
}

// ProvisionerConfig configures first-login defaults.
type ProvisionerConfig struct {
	DefaultNicknamePrefix  string
	DefaultProfileImageURL string
}

// NewUserProvisioner wires the provisioner. Nil clock, logger, and metrics get defaults.
func NewUserProvisioner(users UserStore, configuration ProvisionerConfig, clock Clock, logger *zap.Logger, metrics MetricsRecorder) *UserProvisioner {
	if users == nil {
		panic("user store is required")
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewCounterMetrics()
	}
	return &UserProvisioner{
		users:                  users,
		defaultNicknamePrefix:  configuration.DefaultNicknamePrefix,
		defaultProfileImageURL: configuration.DefaultProfileImageURL,
		clock:                  clock,
		logger:                 logger,
		metrics:                metrics,
	}
}

// EnsureProvisioned creates the profile on first sight and does nothing afterwards.
func (provisioner *UserProvisioner) EnsureProvisioned(ctx context.Context, identity Identity) error {
	if strings.TrimSpace(identity.UserID) == "" {
		return fmt.Errorf("provisioner.ensure: %w: identity has no user id", ErrProviderUserInfo)
	}
	exists, existsErr := provisioner.users.Exists(ctx, identity.UserID)
	if existsErr != nil {
		return fmt.Errorf("provisioner.exists: %w: %w", ErrStoreUnavailable, existsErr)
	}
	if exists {
		return nil
	}

	now := provisioner.clock.Now().UTC()
	profile := UserProfile{
		UserID:          identity.UserID,
		Nickname:        provisioner.defaultNicknamePrefix + identity.UserID,
		ProfileImageURL: provisioner.defaultProfileImageURL,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	inserted, insertErr := provisioner.users.InsertIfAbsent(ctx, profile)
	if insertErr != nil {
		return fmt.Errorf("provisioner.insert: %w: %w", ErrStoreUnavailable, insertErr)
	}
	if !inserted {
		provisioner.logger.Info("user already provisioned by a concurrent login",
			zap.String("code", "auth.provision.race_lost"),
			zap.String("user_id", identity.UserID))
		return nil
	}
	provisioner.metrics.Increment(MetricProvisionCreated)
	provisioner.logger.Info("user provisioned",
		zap.String("code", "auth.provision.created"),
		zap.String("user_id", identity.UserID))
	return nil
}
