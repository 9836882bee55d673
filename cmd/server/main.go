package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/tyemirov/rebookauth/internal/authkit"
	"github.com/tyemirov/rebookauth/internal/authkitpg"
	"github.com/tyemirov/rebookauth/internal/web"
	"github.com/tyemirov/rebookauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

var serveHTTP = func(server *http.Server) error {
	return server.ListenAndServe()
}

var buildGoogleTokenValidator = func(ctx context.Context) (authkit.GoogleTokenValidator, error) {
	return authkit.NewGoogleTokenValidator(ctx)
}

var buildIdentityProvider = func(ctx context.Context, configuration authkit.ProviderConfig) (authkit.IdentityProvider, error) {
	switch configuration.Kind {
	case authkit.ProviderKindGoogle:
		validator, validatorErr := buildGoogleTokenValidator(ctx)
		if validatorErr != nil {
			return nil, validatorErr
		}
		return authkit.NewGoogleProvider(configuration, validator)
	default:
		return authkit.NewOIDCProvider(configuration)
	}
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "rebookauth",
		Short:   "Authentication core: provider code login, JWT access tokens, and revocable refresh tokens",
		PreRunE: prepareServerConfig,
		RunE:    runServer,
	}

	rootCmd.Flags().String("env_file", "", "Optional .env file loaded before configuration is read")
	rootCmd.Flags().String("listen_addr", ":8080", "HTTP listen address")
	rootCmd.Flags().String("jwt_signing_key", "", "HS256 signing secret for access and refresh tokens")
	rootCmd.Flags().String("jwt_issuer", "rebook-auth", "Issuer claim for minted tokens")
	rootCmd.Flags().Duration("access_ttl", 30*time.Minute, "Access token TTL")
	rootCmd.Flags().Duration("refresh_ttl", 14*24*time.Hour, "Refresh token TTL")
	rootCmd.Flags().Duration("refresh_liveness_ttl", 0, "Refresh registry entry lifetime; 0 uses refresh_ttl")
	rootCmd.Flags().String("default_nickname_prefix", "닉네임", "Nickname prefix for newly provisioned users")
	rootCmd.Flags().String("default_profile_image_url", "", "Profile image URL for newly provisioned users")
	rootCmd.Flags().String("provider_kind", authkit.ProviderKindOIDC, "Identity provider kind (oidc or google)")
	rootCmd.Flags().String("provider_client_id", "", "OAuth client ID registered with the identity provider")
	rootCmd.Flags().String("provider_client_secret", "", "OAuth client secret")
	rootCmd.Flags().String("provider_auth_url", "", "Provider authorization endpoint")
	rootCmd.Flags().String("provider_token_url", "", "Provider token endpoint")
	rootCmd.Flags().String("provider_userinfo_url", "", "Provider user info endpoint")
	rootCmd.Flags().String("provider_redirect_url", "", "Redirect URL used when the code was issued")
	rootCmd.Flags().StringSlice("provider_scopes", []string{}, "Scopes requested from the provider")
	rootCmd.Flags().Duration("provider_timeout", 10*time.Second, "Timeout for provider HTTP calls")
	rootCmd.Flags().String("redis_url", "", "Redis URL for the refresh registry (leave empty for in-memory cache)")
	rootCmd.Flags().String("database_url", "", "Database URL for user profiles (postgres:// or sqlite://; leave empty for in-memory store)")
	rootCmd.Flags().String("user_store_backend", userStoreBackendGORM, "User store driver for database_url (gorm or pgx)")
	rootCmd.Flags().Bool("enable_cors", false, "Enable CORS for browser clients")
	rootCmd.Flags().StringSlice("cors_allowed_origins", []string{}, "Allowed origins when CORS is enabled (required if enable_cors is true)")

	rootCmd.Flags().VisitAll(func(flag *pflag.Flag) {
		_ = viper.BindPFlag(flag.Name, flag)
	})

	viper.SetEnvPrefix("APP")
	viper.AutomaticEnv()

	return rootCmd
}

const (
	userStoreBackendGORM = "gorm"
	userStoreBackendPGX  = "pgx"

	configCodeMissingJWTSigningKey       = "config.missing_jwt_signing_key"
	configCodeInvalidAccessTTL           = "config.invalid_access_ttl"
	configCodeInvalidRefreshTTL          = "config.invalid_refresh_ttl"
	configCodeInvalidRefreshLivenessTTL  = "config.invalid_refresh_liveness_ttl"
	configCodeMissingDefaultProfileImage = "config.missing_default_profile_image_url"
	configCodeMissingProviderClientID    = "config.missing_provider_client_id"
	configCodeMissingProviderTokenURL    = "config.missing_provider_token_url"
	configCodeMissingProviderUserInfoURL = "config.missing_provider_userinfo_url"
	configCodeUnsupportedProviderKind    = "config.unsupported_provider_kind"
	configCodeUnsupportedUserStore       = "config.unsupported_user_store_backend"
	configCodeUninitializedServerConf    = "config.uninitialized_server_config"
	configCodeProviderInit               = "config.provider_init"
	configCodeEnvFile                    = "config.env_file"
)

type contextKey string

const serverConfigContextKey contextKey = "serverConfig"

func prepareServerConfig(command *cobra.Command, arguments []string) error {
	if envFile := strings.TrimSpace(viper.GetString("env_file")); envFile != "" {
		if loadErr := godotenv.Load(envFile); loadErr != nil {
			return fmt.Errorf("%s: %w", configCodeEnvFile, loadErr)
		}
	}
	serverConfig, loadErr := LoadServerConfig()
	if loadErr != nil {
		return loadErr
	}
	existingContext := command.Context()
	if existingContext == nil {
		existingContext = context.Background()
	}
	command.SetContext(context.WithValue(existingContext, serverConfigContextKey, serverConfig))
	return nil
}

func configError(code, message string) error {
	return fmt.Errorf("%s: %s", code, message)
}

func LoadServerConfig() (authkit.ServerConfig, error) {
	jwtSigningKey := viper.GetString("jwt_signing_key")
	if jwtSigningKey == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingJWTSigningKey, "jwt_signing_key must be provided")
	}

	accessTTL := viper.GetDuration("access_ttl")
	if accessTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidAccessTTL, "access_ttl must be greater than zero")
	}

	refreshTTL := viper.GetDuration("refresh_ttl")
	if refreshTTL <= 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshTTL, "refresh_ttl must be greater than zero")
	}

	livenessTTL := viper.GetDuration("refresh_liveness_ttl")
	if livenessTTL < 0 {
		return authkit.ServerConfig{}, configError(configCodeInvalidRefreshLivenessTTL, "refresh_liveness_ttl must not be negative")
	}

	defaultProfileImageURL := strings.TrimSpace(viper.GetString("default_profile_image_url"))
	if defaultProfileImageURL == "" {
		return authkit.ServerConfig{}, configError(configCodeMissingDefaultProfileImage, "default_profile_image_url must be provided")
	}

	providerConfig, providerErr := loadProviderConfig()
	if providerErr != nil {
		return authkit.ServerConfig{}, providerErr
	}

	backend := strings.ToLower(strings.TrimSpace(viper.GetString("user_store_backend")))
	if backend != "" && backend != userStoreBackendGORM && backend != userStoreBackendPGX {
		return authkit.ServerConfig{}, configError(configCodeUnsupportedUserStore, fmt.Sprintf("user_store_backend %q is not supported", backend))
	}

	issuer := viper.GetString("jwt_issuer")
	if strings.TrimSpace(issuer) == "" {
		issuer = "rebook-auth"
	}

	return authkit.ServerConfig{
		SigningKey:             []byte(jwtSigningKey),
		Issuer:                 issuer,
		AccessTTL:              accessTTL,
		RefreshTTL:             refreshTTL,
		RefreshLivenessTTL:     livenessTTL,
		DefaultNicknamePrefix:  viper.GetString("default_nickname_prefix"),
		DefaultProfileImageURL: defaultProfileImageURL,
		Provider:               providerConfig,
	}, nil
}

func loadProviderConfig() (authkit.ProviderConfig, error) {
	kind := strings.ToLower(strings.TrimSpace(viper.GetString("provider_kind")))
	if kind == "" {
		kind = authkit.ProviderKindOIDC
	}
	if kind != authkit.ProviderKindOIDC && kind != authkit.ProviderKindGoogle {
		return authkit.ProviderConfig{}, configError(configCodeUnsupportedProviderKind, fmt.Sprintf("provider_kind %q is not supported", kind))
	}

	providerConfig := authkit.ProviderConfig{
		Kind:         kind,
		ClientID:     strings.TrimSpace(viper.GetString("provider_client_id")),
		ClientSecret: viper.GetString("provider_client_secret"),
		AuthURL:      strings.TrimSpace(viper.GetString("provider_auth_url")),
		TokenURL:     strings.TrimSpace(viper.GetString("provider_token_url")),
		UserInfoURL:  strings.TrimSpace(viper.GetString("provider_userinfo_url")),
		RedirectURL:  strings.TrimSpace(viper.GetString("provider_redirect_url")),
		Scopes:       viper.GetStringSlice("provider_scopes"),
		Timeout:      viper.GetDuration("provider_timeout"),
	}
	if providerConfig.ClientID == "" {
		return authkit.ProviderConfig{}, configError(configCodeMissingProviderClientID, "provider_client_id must be provided")
	}
	if kind == authkit.ProviderKindOIDC {
		if providerConfig.TokenURL == "" {
			return authkit.ProviderConfig{}, configError(configCodeMissingProviderTokenURL, "provider_token_url must be provided for oidc providers")
		}
		if providerConfig.UserInfoURL == "" {
			return authkit.ProviderConfig{}, configError(configCodeMissingProviderUserInfoURL, "provider_userinfo_url must be provided for oidc providers")
		}
	}
	return providerConfig, nil
}

func runServer(command *cobra.Command, arguments []string) error {
	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return loggerErr
	}
	defer func() { _ = logger.Sync() }()

	commandContext := command.Context()
	var contextValue any
	if commandContext != nil {
		contextValue = commandContext.Value(serverConfigContextKey)
	}
	serverConfig, ok := contextValue.(authkit.ServerConfig)
	if !ok {
		return configError(configCodeUninitializedServerConf, "server configuration not prepared; PreRunE must execute before RunE")
	}

	listenAddr := viper.GetString("listen_addr")
	redisURL := viper.GetString("redis_url")
	databaseURL := viper.GetString("database_url")
	userStoreBackend := strings.ToLower(strings.TrimSpace(viper.GetString("user_store_backend")))
	enableCORS := viper.GetBool("enable_cors")
	corsAllowedOrigins := viper.GetStringSlice("cors_allowed_origins")

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(zapLoggerMiddleware(logger))

	if enableCORS {
		corsMiddleware, corsErr := web.ConfigureCORS(logger, corsAllowedOrigins)
		if corsErr != nil {
			return corsErr
		}
		router.Use(corsMiddleware)
	}

	clock := authkit.NewSystemClock()
	metricsRecorder := authkit.NewCounterMetrics()

	var userStore authkit.UserStore
	switch {
	case databaseURL == "":
		userStore = web.NewInMemoryUsers()
		logger.Info("using in-memory user store")
	case userStoreBackend == userStoreBackendPGX:
		pgStore, pool, storeErr := authkitpg.OpenUserStore(context.Background(), databaseURL)
		if storeErr != nil {
			return storeErr
		}
		defer pool.Close()
		userStore = pgStore
		logger.Info("using persistent user store", zap.String("driver", "pgx"))
	default:
		gormStore, storeErr := authkit.NewDatabaseUserStore(context.Background(), databaseURL)
		if storeErr != nil {
			return storeErr
		}
		userStore = gormStore
		logger.Info("using persistent user store", zap.String("driver", gormStore.Driver()))
	}

	var cache authkit.KeyValueCache
	if redisURL != "" {
		redisCache, cacheErr := authkit.NewRedisCache(context.Background(), redisURL)
		if cacheErr != nil {
			return cacheErr
		}
		defer func() { _ = redisCache.Close() }()
		cache = redisCache
		logger.Info("using redis refresh registry")
	} else {
		cache = authkit.NewMemoryCache(clock)
		logger.Info("using in-memory refresh registry")
	}

	provider, providerErr := buildIdentityProvider(command.Context(), serverConfig.Provider)
	if providerErr != nil {
		return fmt.Errorf("%s: %w", configCodeProviderInit, providerErr)
	}

	codec, codecErr := authkit.NewTokenCodec(serverConfig.TokenConfig(), clock)
	if codecErr != nil {
		return codecErr
	}
	registry, registryErr := authkit.NewRefreshRegistry(cache, serverConfig.LivenessTTL())
	if registryErr != nil {
		return registryErr
	}
	provisioner := authkit.NewUserProvisioner(userStore, authkit.ProvisionerConfig{
		DefaultNicknamePrefix:  serverConfig.DefaultNicknamePrefix,
		DefaultProfileImageURL: serverConfig.DefaultProfileImageURL,
	}, clock, logger, metricsRecorder)
	authService := authkit.NewAuthService(authkit.NewIdentityResolver(provider), provisioner, codec, registry, logger, metricsRecorder)

	sessionValidator, validatorErr := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: serverConfig.SigningKey,
		Issuer:     serverConfig.Issuer,
		Clock:      clock,
	})
	if validatorErr != nil {
		return validatorErr
	}

	router.GET("/healthz", func(contextGin *gin.Context) {
		contextGin.Status(http.StatusNoContent)
	})

	authkit.MountAuthRoutes(router, authService, logger)

	protected := router.Group("/api")
	protected.Use(sessionValidator.GinMiddleware(sessionvalidator.DefaultContextKey))
	protected.GET("/me", web.HandleWhoAmI(logger, userStore))

	server := &http.Server{
		Addr:              listenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	shutdownCtx, shutdownCancel := context.WithCancel(context.Background())
	defer shutdownCancel()

	go func() {
		stopSignals := make(chan os.Signal, 1)
		signal.Notify(stopSignals, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(stopSignals)
		select {
		case <-stopSignals:
		case <-shutdownCtx.Done():
			return
		}
		graceCtx, graceCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
		defer graceCancel()
		if err := server.Shutdown(graceCtx); err != nil {
			logger.Error("server shutdown error", zap.Error(err))
		}
	}()

	logger.Info("listening", zap.String("addr", listenAddr))
	if err := serveHTTP(server); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen error: %w", err)
	}
	return nil
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(contextGin *gin.Context) {
		startTime := time.Now()
		contextGin.Next()
		duration := time.Since(startTime)
		logger.Info("http",
			zap.String("method", contextGin.Request.Method),
			zap.String("path", contextGin.Request.URL.Path),
			zap.Int("status", contextGin.Writer.Status()),
			zap.String("ip", contextGin.ClientIP()),
			zap.Duration("elapsed", duration),
		)
	}
}
