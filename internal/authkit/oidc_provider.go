package authkit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	defaultProviderTimeout = 10 * time.Second
	maxUserInfoBytes       = 1 << 20
)

// protocolClaims are token bookkeeping, not display attributes.
var protocolClaims = map[string]struct{}{
	"sub":     {},
	"iss":     {},
	"aud":     {},
	"azp":     {},
	"nonce":   {},
	"at_hash": {},
	"sid":     {},
}

var (
	errMissingClientID    = errors.New("identity_provider.missing_client_id")
	errMissingTokenURL    = errors.New("identity_provider.missing_token_url")
	errMissingUserInfoURL = errors.New("identity_provider.missing_userinfo_url")
)

// OIDCProvider exchanges codes at an OAuth2 token endpoint and reads the
// OpenID Connect userinfo endpoint (Keycloak and similar servers).
type OIDCProvider struct {
	oauthConfig *oauth2.Config
	userInfoURL string
	httpClient  *http.Client
}

// NewOIDCProvider validates configuration and builds the provider.
func NewOIDCProvider(configuration ProviderConfig) (*OIDCProvider, error) {
	if strings.TrimSpace(configuration.ClientID) == "" {
		return nil, errMissingClientID
	}
	if strings.TrimSpace(configuration.TokenURL) == "" {
		return nil, errMissingTokenURL
	}
	if strings.TrimSpace(configuration.UserInfoURL) == "" {
		return nil, errMissingUserInfoURL
	}
	return &OIDCProvider{
		oauthConfig: newOAuthConfig(configuration, oauth2.Endpoint{
			AuthURL:   configuration.AuthURL,
			TokenURL:  configuration.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		}),
		userInfoURL: configuration.UserInfoURL,
		httpClient:  newProviderHTTPClient(configuration.Timeout),
	}, nil
}

// ExchangeCode trades the authorization code for provider tokens.
func (provider *OIDCProvider) ExchangeCode(ctx context.Context, code string) (ProviderToken, error) {
	return exchangeAuthorizationCode(ctx, provider.oauthConfig, provider.httpClient, code)
}

// FetchIdentity calls the userinfo endpoint with the provider access token.
func (provider *OIDCProvider) FetchIdentity(ctx context.Context, token ProviderToken) (Identity, error) {
	request, requestErr := http.NewRequestWithContext(ctx, http.MethodGet, provider.userInfoURL, nil)
	if requestErr != nil {
		return Identity{}, fmt.Errorf("oidc.userinfo.request: %w", requestErr)
	}
	request.Header.Set("Authorization", "Bearer "+token.AccessToken)
	request.Header.Set("Accept", "application/json")

	response, doErr := provider.httpClient.Do(request)
	if doErr != nil {
		return Identity{}, fmt.Errorf("oidc.userinfo.call: %w", doErr)
	}
	defer func() { _ = response.Body.Close() }()

	if response.StatusCode != http.StatusOK {
		return Identity{}, fmt.Errorf("oidc.userinfo.status: provider returned %d", response.StatusCode)
	}

	var claims map[string]interface{}
	if decodeErr := json.NewDecoder(io.LimitReader(response.Body, maxUserInfoBytes)).Decode(&claims); decodeErr != nil {
		return Identity{}, fmt.Errorf("oidc.userinfo.decode: %w", decodeErr)
	}
	return identityFromClaims(claims)
}

func newOAuthConfig(configuration ProviderConfig, endpoint oauth2.Endpoint) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     configuration.ClientID,
		ClientSecret: configuration.ClientSecret,
		RedirectURL:  configuration.RedirectURL,
		Scopes:       configuration.Scopes,
		Endpoint:     endpoint,
	}
}

func newProviderHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	return &http.Client{Timeout: timeout}
}

func exchangeAuthorizationCode(ctx context.Context, oauthConfig *oauth2.Config, httpClient *http.Client, code string) (ProviderToken, error) {
	exchangeContext := context.WithValue(ctx, oauth2.HTTPClient, httpClient)
	token, exchangeErr := oauthConfig.Exchange(exchangeContext, code)
	if exchangeErr != nil {
		return ProviderToken{}, fmt.Errorf("oauth2.exchange: %w", exchangeErr)
	}
	idToken, _ := token.Extra("id_token").(string)
	return ProviderToken{AccessToken: token.AccessToken, IDToken: idToken}, nil
}

// identityFromClaims keeps the subject as user id and the remaining string claims as display attributes.
func identityFromClaims(claims map[string]interface{}) (Identity, error) {
	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return Identity{}, errors.New("identity.claims: missing sub")
	}
	attributes := make(map[string]string, len(claims))
	for name, value := range claims {
		if _, skip := protocolClaims[name]; skip {
			continue
		}
		if text, ok := value.(string); ok && text != "" {
			attributes[name] = text
		}
	}
	return Identity{UserID: subject, DisplayAttributes: attributes}, nil
}
