package authkit

import "errors"

var (
	// ErrProviderExchange indicates the authorization code could not be exchanged for a provider token.
	ErrProviderExchange = errors.New("identity_provider.exchange_failed")
	// ErrProviderUserInfo indicates the provider token could not be turned into a verified identity.
	ErrProviderUserInfo = errors.New("identity_provider.userinfo_failed")
	// ErrStoreUnavailable indicates the user store failed while provisioning.
	ErrStoreUnavailable = errors.New("user_store.unavailable")
	// ErrCacheUnavailable indicates the key-value cache behind the refresh registry failed.
	ErrCacheUnavailable = errors.New("refresh_registry.unavailable")
	// ErrInvalidToken indicates a malformed token, a bad signature, or a token of the wrong type.
	ErrInvalidToken = errors.New("token.invalid")
	// ErrExpiredToken indicates a token past its embedded expiry.
	ErrExpiredToken = errors.New("token.expired")
	// ErrMissingData matches every MissingDataError.
	ErrMissingData = errors.New("missing_data")
	// ErrUserProfileNotFound is returned by user stores when no profile exists for an id.
	ErrUserProfileNotFound = errors.New("user_store.not_found")
)

const invalidRefreshTokenMessage = "Invalid refresh token"

// MissingDataError reports that a record required by the request does not exist.
type MissingDataError struct {
	Message string
}

func (missingDataError *MissingDataError) Error() string {
	return missingDataError.Message
}

// Is reports whether target is ErrMissingData.
func (missingDataError *MissingDataError) Is(target error) bool {
	return target == ErrMissingData
}

func newInvalidRefreshTokenError() error {
	return &MissingDataError{Message: invalidRefreshTokenMessage}
}
