package authkit

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	errorCodeInvalidJSON      = "invalid_json"
	errorCodeProviderExchange = "provider_exchange_failed"
	errorCodeProviderUserInfo = "provider_userinfo_failed"
	errorCodeStoreUnavailable = "store_unavailable"
	errorCodeCacheUnavailable = "cache_unavailable"
	errorCodeInvalidToken     = "invalid_token"
	errorCodeExpiredToken     = "expired_token"
	errorCodeInternal         = "internal_error"
)

const (
	maxAuthRequestBytes = 16 << 10
	maxCredentialLength = 4096
)

type loginRequest struct {
	Code string `json:"code"`
}

type loginResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// MountAuthRoutes registers /auth/login and /auth/refresh.
func MountAuthRoutes(router gin.IRouter, service *AuthService, logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}

	router.POST("/auth/login", func(contextGin *gin.Context) {
		var inbound loginRequest
		if !bindCredential(contextGin, &inbound, func() string { return inbound.Code }) {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidJSON})
			return
		}
		pair, loginErr := service.Login(contextGin.Request.Context(), inbound.Code)
		if loginErr != nil {
			abortWithAuthError(contextGin, logger, loginErr)
			return
		}
		contextGin.JSON(http.StatusOK, loginResponse{
			AccessToken:  pair.AccessToken,
			RefreshToken: pair.RefreshToken,
		})
	})

	router.POST("/auth/refresh", func(contextGin *gin.Context) {
		var inbound refreshRequest
		if !bindCredential(contextGin, &inbound, func() string { return inbound.RefreshToken }) {
			contextGin.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": errorCodeInvalidJSON})
			return
		}
		accessToken, refreshErr := service.Refresh(contextGin.Request.Context(), inbound.RefreshToken)
		if refreshErr != nil {
			abortWithAuthError(contextGin, logger, refreshErr)
			return
		}
		contextGin.JSON(http.StatusOK, refreshResponse{AccessToken: accessToken})
	})
}

// bindCredential decodes a bounded JSON body and requires a non-blank credential
// no longer than maxCredentialLength.
func bindCredential(contextGin *gin.Context, inbound any, credential func() string) bool {
	contextGin.Request.Body = http.MaxBytesReader(contextGin.Writer, contextGin.Request.Body, maxAuthRequestBytes)
	if err := contextGin.ShouldBindJSON(inbound); err != nil {
		return false
	}
	value := credential()
	return strings.TrimSpace(value) != "" && len(value) <= maxCredentialLength
}

// abortWithAuthError answers with the error kind only; details stay in the logs.
func abortWithAuthError(contextGin *gin.Context, logger *zap.Logger, err error) {
	status, code := classifyAuthError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("auth request failed",
			zap.String("code", "auth.http.error"),
			zap.String("path", contextGin.FullPath()),
			zap.Int("status", status),
			zap.Error(err))
	}
	contextGin.AbortWithStatusJSON(status, gin.H{"error": code})
}

func classifyAuthError(err error) (int, string) {
	var missingData *MissingDataError
	switch {
	case errors.As(err, &missingData):
		return http.StatusUnauthorized, missingData.Message
	case errors.Is(err, ErrProviderExchange):
		return http.StatusUnauthorized, errorCodeProviderExchange
	case errors.Is(err, ErrProviderUserInfo):
		return http.StatusUnauthorized, errorCodeProviderUserInfo
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable, errorCodeStoreUnavailable
	case errors.Is(err, ErrCacheUnavailable):
		return http.StatusServiceUnavailable, errorCodeCacheUnavailable
	case errors.Is(err, ErrExpiredToken):
		return http.StatusUnauthorized, errorCodeExpiredToken
	case errors.Is(err, ErrInvalidToken):
		return http.StatusUnauthorized, errorCodeInvalidToken
	default:
		return http.StatusInternalServerError, errorCodeInternal
	}
}
