package authkit

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"
)

var googleIssuers = map[string]struct{}{
	"https://accounts.google.com": {},
	"accounts.google.com":         {},
}

// GoogleTokenValidator verifies Google ID tokens.
type GoogleTokenValidator interface {
	Validate(ctx context.Context, token string, audience string) (*idtoken.Payload, error)
}

// NewGoogleTokenValidator returns the production validator backed by Google's certificates.
func NewGoogleTokenValidator(ctx context.Context) (GoogleTokenValidator, error) {
	return idtoken.NewValidator(ctx)
}

// GoogleProvider exchanges codes with Google and verifies the returned ID token.
type GoogleProvider struct {
	oauthConfig *oauth2.Config
	validator   GoogleTokenValidator
	httpClient  *http.Client
}

// NewGoogleProvider builds a provider using Google's endpoints unless overridden.
func NewGoogleProvider(configuration ProviderConfig, validator GoogleTokenValidator) (*GoogleProvider, error) {
	if strings.TrimSpace(configuration.ClientID) == "" {
		return nil, errMissingClientID
	}
	if validator == nil {
		return nil, errors.New("identity_provider.missing_google_validator")
	}
	endpoint := google.Endpoint
	if configuration.AuthURL != "" {
		endpoint.AuthURL = configuration.AuthURL
	}
	if configuration.TokenURL != "" {
		endpoint.TokenURL = configuration.TokenURL
	}
	if len(configuration.Scopes) == 0 {
		configuration.Scopes = []string{"openid", "email", "profile"}
	}
	return &GoogleProvider{
		oauthConfig: newOAuthConfig(configuration, endpoint),
		validator:   validator,
		httpClient:  newProviderHTTPClient(configuration.Timeout),
	}, nil
}

// ExchangeCode trades the authorization code for Google tokens.
func (provider *GoogleProvider) ExchangeCode(ctx context.Context, code string) (ProviderToken, error) {
	return exchangeAuthorizationCode(ctx, provider.oauthConfig, provider.httpClient, code)
}

// FetchIdentity verifies the ID token that accompanied the exchange.
func (provider *GoogleProvider) FetchIdentity(ctx context.Context, token ProviderToken) (Identity, error) {
	if strings.TrimSpace(token.IDToken) == "" {
		return Identity{}, errors.New("google.userinfo: exchange returned no id_token")
	}
	payload, validateErr := provider.validator.Validate(ctx, token.IDToken, provider.oauthConfig.ClientID)
	if validateErr != nil {
		return Identity{}, fmt.Errorf("google.userinfo.validate: %w", validateErr)
	}
	issuer, _ := payload.Claims["iss"].(string)
	if _, ok := googleIssuers[issuer]; !ok {
		return Identity{}, fmt.Errorf("google.userinfo: unexpected issuer %q", issuer)
	}
	if emailVerified, present := payload.Claims["email_verified"].(bool); present && !emailVerified {
		return Identity{}, errors.New("google.userinfo: email not verified")
	}
	return identityFromClaims(payload.Claims)
}
