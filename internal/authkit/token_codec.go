package authkit

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenType separates access credentials from refresh credentials.
type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

const notBeforeSkew = 30 * time.Second

var errEmptySubject = errors.New("subject must be non-empty")

// TokenConfig configures a TokenCodec.
type TokenConfig struct {
	SigningKey []byte
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// TokenClaims are embedded in both access and refresh tokens.
type TokenClaims struct {
	TokenType TokenType `json:"token_type"`
	jwt.RegisteredClaims
}

// TokenCodec mints and verifies HS256 session tokens.
type TokenCodec struct {
	configuration TokenConfig
	clock         Clock
}

// NewTokenCodec constructs a codec. A nil clock falls back to the system clock.
func NewTokenCodec(configuration TokenConfig, clock Clock) (*TokenCodec, error) {
	if len(configuration.SigningKey) == 0 {
		return nil, errors.New("token_codec.new: signing key must be provided")
	}
	if configuration.AccessTTL <= 0 || configuration.RefreshTTL <= 0 {
		return nil, errors.New("token_codec.new: token ttl must be greater than zero")
	}
	if clock == nil {
		clock = NewSystemClock()
	}
	return &TokenCodec{configuration: configuration, clock: clock}, nil
}

// CreateAccessToken signs a short-lived access token for the user.
func (codec *TokenCodec) CreateAccessToken(userID string) (string, error) {
	return codec.mint(userID, TokenTypeAccess, codec.configuration.AccessTTL)
}

// CreateRefreshToken signs a long-lived refresh token for the user.
func (codec *TokenCodec) CreateRefreshToken(userID string) (string, error) {
	return codec.mint(userID, TokenTypeRefresh, codec.configuration.RefreshTTL)
}

// ExtractUserID verifies the token and returns its subject.
func (codec *TokenCodec) ExtractUserID(tokenString string, expected TokenType) (string, error) {
	claims, err := codec.Parse(tokenString, expected)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}

// Parse verifies signature, issuer, expiry, and token type.
func (codec *TokenCodec) Parse(tokenString string, expected TokenType) (*TokenClaims, error) {
	if strings.TrimSpace(tokenString) == "" {
		return nil, fmt.Errorf("token_codec.parse: %w", ErrInvalidToken)
	}
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(codec.configuration.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(codec.clock.Now),
	)
	parsedToken, parseErr := parser.ParseWithClaims(tokenString, &TokenClaims{}, func(parsed *jwt.Token) (interface{}, error) {
		return codec.configuration.SigningKey, nil
	})
	if parseErr != nil {
		if errors.Is(parseErr, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("token_codec.parse: %w", ErrExpiredToken)
		}
		return nil, fmt.Errorf("token_codec.parse: %w", ErrInvalidToken)
	}
	claims, ok := parsedToken.Claims.(*TokenClaims)
	if !ok || !parsedToken.Valid {
		return nil, fmt.Errorf("token_codec.parse: %w", ErrInvalidToken)
	}
	if claims.TokenType != expected {
		return nil, fmt.Errorf("token_codec.parse.%s: %w", expected, ErrInvalidToken)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("token_codec.parse: %w", ErrInvalidToken)
	}
	return claims, nil
}

func (codec *TokenCodec) mint(userID string, tokenType TokenType, ttl time.Duration) (string, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("token_codec.mint.%s: %w", tokenType, errEmptySubject)
	}
	issuedAt := codec.clock.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, TokenClaims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    codec.configuration.Issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt.Add(-notBeforeSkew)),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	signed, err := token.SignedString(codec.configuration.SigningKey)
	if err != nil {
		return "", fmt.Errorf("token_codec.mint.%s: %w", tokenType, err)
	}
	return signed, nil
}
