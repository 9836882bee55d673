package web

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errWildcardOrigin      = errors.New("cors: wildcard origin not allowed")
	errEmptyAllowedOrigins = errors.New("cors: no explicit origins provided")
	errInvalidOrigin       = errors.New("cors: invalid origin format")
)

// ConfigureCORS enables cross-origin requests from the supplied browser origins.
// Tokens travel in headers and bodies, so credentials are not allowed.
func ConfigureCORS(logger *zap.Logger, allowedOrigins []string) (gin.HandlerFunc, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	origins := make([]string, 0, len(allowedOrigins))
	seen := make(map[string]bool, len(allowedOrigins))
	for _, candidate := range allowedOrigins {
		origin, err := bearerOrigin(candidate)
		if err != nil {
			return nil, err
		}
		if origin == "" || seen[origin] {
			continue
		}
		seen[origin] = true
		origins = append(origins, origin)
	}
	if len(origins) == 0 {
		return nil, errEmptyAllowedOrigins
	}

	config := cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		ExposeHeaders:    []string{"Content-Type", "WWW-Authenticate"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidOrigin, err)
	}
	logger.Info("cors enabled",
		zap.String("code", "cors.enabled"),
		zap.Strings("origins", origins))
	return cors.New(config), nil
}

// bearerOrigin reduces a configured origin to scheme://host. Blank entries yield "".
func bearerOrigin(candidate string) (string, error) {
	trimmed := strings.TrimSpace(candidate)
	switch trimmed {
	case "":
		return "", nil
	case "*":
		return "", errWildcardOrigin
	}
	parsed, err := url.Parse(trimmed)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: %s", errInvalidOrigin, trimmed)
	}
	if strings.Trim(parsed.Path, "/") != "" || parsed.RawQuery != "" || parsed.Fragment != "" {
		return "", fmt.Errorf("%w: %s is not a bare origin", errInvalidOrigin, trimmed)
	}
	return parsed.Scheme + "://" + strings.ToLower(parsed.Host), nil
}
