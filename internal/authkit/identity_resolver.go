package authkit

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var errEmptyAuthorizationCode = errors.New("authorization code must be non-empty")

// Identity is a verified user identity produced by the identity provider.
type Identity struct {
	UserID            string
	DisplayAttributes map[string]string
}

// ProviderToken holds the credentials returned by the provider's code exchange.
type ProviderToken struct {
	AccessToken string
	IDToken     string
}

// IdentityProvider performs the two provider calls of a login.
type IdentityProvider interface {
	ExchangeCode(ctx context.Context, code string) (ProviderToken, error)
	FetchIdentity(ctx context.Context, token ProviderToken) (Identity, error)
}

// IdentityResolver turns an authorization code into a verified identity.
// It does not retry; retries belong to the transport.
type IdentityResolver struct {
	provider IdentityProvider
}

// NewIdentityResolver wraps provider.
func NewIdentityResolver(provider IdentityProvider) *IdentityResolver {
	if provider == nil {
		panic("identity provider is required")
	}
	return &IdentityResolver{provider: provider}
}

// Resolve exchanges code for a provider token and fetches the identity behind it.
func (resolver *IdentityResolver) Resolve(ctx context.Context, code string) (Identity, error) {
	if strings.TrimSpace(code) == "" {
		return Identity{}, fmt.Errorf("identity_resolver.exchange: %w: %w", ErrProviderExchange, errEmptyAuthorizationCode)
	}
	providerToken, exchangeErr := resolver.provider.ExchangeCode(ctx, code)
	if exchangeErr != nil {
		return Identity{}, fmt.Errorf("identity_resolver.exchange: %w: %w", ErrProviderExchange, exchangeErr)
	}
	if strings.TrimSpace(providerToken.AccessToken) == "" {
		return Identity{}, fmt.Errorf("identity_resolver.exchange: %w: provider returned no access token", ErrProviderExchange)
	}
	identity, userInfoErr := resolver.provider.FetchIdentity(ctx, providerToken)
	if userInfoErr != nil {
		return Identity{}, fmt.Errorf("identity_resolver.userinfo: %w: %w", ErrProviderUserInfo, userInfoErr)
	}
	if strings.TrimSpace(identity.UserID) == "" {
		return Identity{}, fmt.Errorf("identity_resolver.userinfo: %w: provider returned no subject", ErrProviderUserInfo)
	}
	return identity, nil
}
