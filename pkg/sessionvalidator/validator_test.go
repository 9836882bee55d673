package sessionvalidator

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/tyemirov/rebookauth/internal/authkit"
)

type fixedClock struct {
	current time.Time
}

func (clock fixedClock) Now() time.Time {
	return clock.current
}

func mintToken(t *testing.T, signingKey []byte, issuer string, tokenType string, issuedAt time.Time, ttl time.Duration) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "user-123",
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
		},
	})
	result, err := token.SignedString(signingKey)
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return result
}

func newTestValidator(t *testing.T, now time.Time) *Validator {
	t.Helper()
	validator, err := New(Config{
		SigningKey: []byte("secret-key"),
		Issuer:     "issuer",
		Clock:      fixedClock{current: now},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return validator
}

func TestNewValidatorRequiresSigningKey(t *testing.T) {
	t.Parallel()

	_, err := New(Config{Issuer: "issuer"})
	if err == nil || !errors.Is(err, ErrMissingSigningKey) {
		t.Fatalf("expected missing signing key error, got %v", err)
	}
	_, err = New(Config{SigningKey: []byte("secret")})
	if err == nil || !errors.Is(err, ErrMissingIssuer) {
		t.Fatalf("expected missing issuer error, got %v", err)
	}
}

func TestNewValidatorDefaults(t *testing.T) {
	t.Parallel()

	validator, err := New(Config{
		SigningKey: []byte("secret"),
		Issuer:     "issuer",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if validator.clock == nil {
		t.Fatalf("expected default clock to be set")
	}
}

func TestValidateTokenSuccess(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	validator := newTestValidator(t, now)
	tokenValue := mintToken(t, []byte("secret-key"), "issuer", "access", now, time.Minute)

	claims, validateErr := validator.ValidateToken(tokenValue)
	if validateErr != nil {
		t.Fatalf("unexpected validation error: %v", validateErr)
	}
	if claims.GetUserID() != "user-123" {
		t.Fatalf("unexpected claims: %#v", claims)
	}
	if !claims.GetExpiresAt().Equal(now.Add(time.Minute)) {
		t.Fatalf("unexpected expiry: %v", claims.GetExpiresAt())
	}
}

func TestValidateTokenAcceptsIssuedAccessTokens(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	codec, err := authkit.NewTokenCodec(authkit.TokenConfig{
		SigningKey: []byte("secret-key"),
		Issuer:     "issuer",
		AccessTTL:  time.Minute,
		RefreshTTL: time.Hour,
	}, fixedClock{current: now})
	if err != nil {
		t.Fatalf("unexpected codec error: %v", err)
	}
	validator := newTestValidator(t, now)

	accessToken, _ := codec.CreateAccessToken("u1")
	claims, validateErr := validator.ValidateToken(accessToken)
	if validateErr != nil || claims.GetUserID() != "u1" {
		t.Fatalf("expected issued access token to validate for u1, got %v (%v)", claims, validateErr)
	}

	refreshToken, _ := codec.CreateRefreshToken("u1")
	if _, refreshErr := validator.ValidateToken(refreshToken); !errors.Is(refreshErr, ErrWrongTokenType) {
		t.Fatalf("expected refresh token to be rejected, got %v", refreshErr)
	}
}

func TestValidateTokenRejectsInvalidCases(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tests := []struct {
		name      string
		tokenFunc func() string
		expectErr error
	}{
		{
			name:      "empty token",
			tokenFunc: func() string { return "" },
			expectErr: ErrMissingToken,
		},
		{
			name: "bad signature",
			tokenFunc: func() string {
				return mintToken(t, []byte("other-key"), "issuer", "access", now, time.Minute)
			},
			expectErr: ErrInvalidToken,
		},
		{
			name: "wrong issuer",
			tokenFunc: func() string {
				return mintToken(t, []byte("secret-key"), "other-issuer", "access", now, time.Minute)
			},
			expectErr: ErrInvalidIssuer,
		},
		{
			name: "refresh token",
			tokenFunc: func() string {
				return mintToken(t, []byte("secret-key"), "issuer", "refresh", now, time.Minute)
			},
			expectErr: ErrWrongTokenType,
		},
		{
			name: "untyped token",
			tokenFunc: func() string {
				return mintToken(t, []byte("secret-key"), "issuer", "", now, time.Minute)
			},
			expectErr: ErrWrongTokenType,
		},
		{
			name: "expired",
			tokenFunc: func() string {
				return mintToken(t, []byte("secret-key"), "issuer", "access", now.Add(-2*time.Minute), time.Minute)
			},
			expectErr: ErrTokenExpired,
		},
	}

	validator := newTestValidator(t, now)

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			_, validateErr := validator.ValidateToken(testCase.tokenFunc())
			if validateErr == nil || !errors.Is(validateErr, testCase.expectErr) {
				t.Fatalf("expected %v, got %v", testCase.expectErr, validateErr)
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	tokenValue := mintToken(t, []byte("secret-key"), "issuer", "access", now, time.Minute)
	validator := newTestValidator(t, now)

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "Bearer "+tokenValue)
	claims, validateErr := validator.ValidateRequest(request)
	if validateErr != nil {
		t.Fatalf("unexpected validation error: %v", validateErr)
	}
	if claims.GetUserID() != "user-123" {
		t.Fatalf("unexpected user: %v", claims.GetUserID())
	}

	for _, header := range []string{"", "Bearer", "Basic dXNlcjpwYXNz", tokenValue} {
		badRequest := httptest.NewRequest(http.MethodGet, "/protected", nil)
		if header != "" {
			badRequest.Header.Set("Authorization", header)
		}
		_, missingErr := validator.ValidateRequest(badRequest)
		if missingErr == nil || !errors.Is(missingErr, ErrMissingToken) {
			t.Fatalf("header %q: expected missing token error, got %v", header, missingErr)
		}
	}
}

func TestGinMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Unix(1700000000, 0).UTC()
	tokenValue := mintToken(t, []byte("secret-key"), "issuer", "access", now, time.Minute)
	validator := newTestValidator(t, now)

	router := gin.New()
	router.Use(validator.GinMiddleware("claims"))
	router.GET("/protected", func(contextGin *gin.Context) {
		value, exists := contextGin.Get("claims")
		if !exists {
			t.Fatalf("claims missing")
		}
		if _, ok := value.(*Claims); !ok {
			t.Fatalf("unexpected claims type: %T", value)
		}
		contextGin.Status(http.StatusOK)
	})

	request := httptest.NewRequest(http.MethodGet, "/protected", nil)
	request.Header.Set("Authorization", "bearer "+tokenValue)
	response := httptest.NewRecorder()
	router.ServeHTTP(response, request)
	if response.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", response.Code)
	}

	requestMissing := httptest.NewRequest(http.MethodGet, "/protected", nil)
	responseMissing := httptest.NewRecorder()
	router.ServeHTTP(responseMissing, requestMissing)
	if responseMissing.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for missing token, got %d", responseMissing.Code)
	}
	if responseMissing.Header().Get("WWW-Authenticate") == "" {
		t.Fatalf("expected WWW-Authenticate challenge")
	}
}
