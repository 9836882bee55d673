package authkit

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// TokenPair is the result of a successful login.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService runs the login and refresh flows.
type AuthService struct {
	resolver    *IdentityResolver
	provisioner *UserProvisioner
	codec       *TokenCodec
	registry    *RefreshRegistry
	logger      *zap.Logger
	metrics     MetricsRecorder
}

// NewAuthService composes the auth core. Nil logger and metrics get defaults.
func NewAuthService(resolver *IdentityResolver, provisioner *UserProvisioner, codec *TokenCodec, registry *RefreshRegistry, logger *zap.Logger, metrics MetricsRecorder) *AuthService {
	if resolver == nil || provisioner == nil || codec == nil || registry == nil {
		panic("auth service dependencies are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewCounterMetrics()
	}
	return &AuthService{
		resolver:    resolver,
		provisioner: provisioner,
		codec:       codec,
		registry:    registry,
		logger:      logger,
		metrics:     metrics,
	}
}

// Login exchanges code for a verified identity, provisions the user on first
// sight, and issues a token pair whose refresh token is live.
// The refresh token is marked live only after both tokens exist.
func (service *AuthService) Login(ctx context.Context, code string) (TokenPair, error) {
	identity, resolveErr := service.resolver.Resolve(ctx, code)
	if resolveErr != nil {
		return TokenPair{}, service.loginFailed("auth.login.provider_error", resolveErr)
	}
	if provisionErr := service.provisioner.EnsureProvisioned(ctx, identity); provisionErr != nil {
		return TokenPair{}, service.loginFailed("auth.login.provision_error", provisionErr)
	}

	accessToken, accessErr := service.codec.CreateAccessToken(identity.UserID)
	if accessErr != nil {
		return TokenPair{}, service.loginFailed("auth.login.mint_error", accessErr)
	}
	refreshToken, refreshErr := service.codec.CreateRefreshToken(identity.UserID)
	if refreshErr != nil {
		return TokenPair{}, service.loginFailed("auth.login.mint_error", refreshErr)
	}
	if markErr := service.registry.MarkLive(ctx, refreshToken); markErr != nil {
		return TokenPair{}, service.loginFailed("auth.login.registry_error", markErr)
	}

	service.metrics.Increment(MetricLoginSuccess)
	service.logger.Info("login succeeded",
		zap.String("code", "auth.login.success"),
		zap.String("user_id", identity.UserID))
	return TokenPair{AccessToken: accessToken, RefreshToken: refreshToken}, nil
}

// Refresh issues a new access token for a live refresh token.
// Tokens absent from the registry fail with MissingDataError before any
// signature check. The registry entry is left as is.
func (service *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	live, liveErr := service.registry.IsLive(ctx, refreshToken)
	if liveErr != nil {
		return "", service.refreshFailed("auth.refresh.registry_error", liveErr)
	}
	if !live {
		return "", service.refreshFailed("auth.refresh.not_live", newInvalidRefreshTokenError())
	}

	userID, extractErr := service.codec.ExtractUserID(refreshToken, TokenTypeRefresh)
	if extractErr != nil {
		return "", service.refreshFailed("auth.refresh.token_rejected", extractErr)
	}
	accessToken, mintErr := service.codec.CreateAccessToken(userID)
	if mintErr != nil {
		return "", service.refreshFailed("auth.refresh.mint_error", mintErr)
	}

	service.metrics.Increment(MetricRefreshSuccess)
	service.logger.Debug("refresh succeeded",
		zap.String("code", "auth.refresh.success"),
		zap.String("user_id", userID))
	return accessToken, nil
}

func (service *AuthService) loginFailed(code string, err error) error {
	service.metrics.Increment(MetricLoginFailure)
	service.logger.Warn("login failed", zap.String("code", code), zap.Error(err))
	return fmt.Errorf("auth.login: %w", err)
}

func (service *AuthService) refreshFailed(code string, err error) error {
	service.metrics.Increment(MetricRefreshFailure)
	service.logger.Warn("refresh failed", zap.String("code", code), zap.Error(err))
	return fmt.Errorf("auth.refresh: %w", err)
}
