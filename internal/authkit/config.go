package authkit

import "time"

// Provider kinds accepted by ProviderConfig.Kind.
const (
	ProviderKindOIDC   = "oidc"
	ProviderKindGoogle = "google"
)

// ServerConfig carries the immutable settings loaded once at startup.
type ServerConfig struct {
	SigningKey             []byte
	Issuer                 string
	AccessTTL              time.Duration
	RefreshTTL             time.Duration
	RefreshLivenessTTL     time.Duration
	DefaultNicknamePrefix  string
	DefaultProfileImageURL string
	Provider               ProviderConfig
}

// ProviderConfig describes the single identity provider of a deployment.
type ProviderConfig struct {
	Kind         string
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	UserInfoURL  string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration
}

// TokenConfig returns the codec settings derived from the server configuration.
func (configuration ServerConfig) TokenConfig() TokenConfig {
	return TokenConfig{
		SigningKey: configuration.SigningKey,
		Issuer:     configuration.Issuer,
		AccessTTL:  configuration.AccessTTL,
		RefreshTTL: configuration.RefreshTTL,
	}
}

// LivenessTTL returns the registry entry lifetime, defaulting to the refresh token TTL.
func (configuration ServerConfig) LivenessTTL() time.Duration {
	if configuration.RefreshLivenessTTL > 0 {
		return configuration.RefreshLivenessTTL
	}
	return configuration.RefreshTTL
}
