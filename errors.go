package authgate

import "errors"

var (
	// ErrEngineNotReady is returned when an Engine method is called on a
	// nil or incompletely built engine.
	ErrEngineNotReady = errors.New("engine not ready")
	// ErrChallengeInvalid is returned when a challenge token is unknown,
	// expired, already consumed, or its response failed verification.
	ErrChallengeInvalid = errors.New("challenge invalid")
	// ErrChallengeRequired is returned when a login is submitted without a
	// verified challenge token.
	ErrChallengeRequired = errors.New("challenge required")
	// ErrChallengeUnavailable is returned when the challenge backend cannot
	// be reached.
	ErrChallengeUnavailable = errors.New("challenge backend unavailable")
	// ErrInvalidCredentials is returned when the username or password does
	// not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountNotFound is the sentinel [AccountProvider] implementations
	// return on lookup misses.
	ErrAccountNotFound = errors.New("account not found")
	// ErrAccountLocked is returned when the account exists but is locked.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDeleted is returned when the account exists but is deleted.
	ErrAccountDeleted = errors.New("account deleted")
	// ErrProvisioningAborted is returned when a pending provisioning request
	// is cancelled; no account is created.
	ErrProvisioningAborted = errors.New("provisioning aborted")
	// ErrProvisioningNotFound is returned when resolving a provisioning
	// request that does not exist or already resolved.
	ErrProvisioningNotFound = errors.New("provisioning request not found")
	// ErrProviderExchangeFailed is returned when the identity provider
	// rejects or cannot service the token exchange.
	ErrProviderExchangeFailed = errors.New("provider token exchange failed")
	// ErrLoginRateLimited is returned when the login attempt budget for an
	// identifier or address is exhausted.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrSessionCreationFailed is returned when the session store cannot
	// persist a newly issued session.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrSessionNotFound is returned when invalidating a session token that
	// does not resolve to a stored session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrPasswordPolicy is returned when a provisioned password violates the
	// configured policy.
	ErrPasswordPolicy = errors.New("password policy violation")
)

// accountStatusToError maps a non-active account status to its sentinel.
// Each status stays a distinct error: signal consumers key user-visible
// messaging off the kind.
func accountStatusToError(status AccountStatus) error {
	switch status {
	case AccountLocked:
		return ErrAccountLocked
	case AccountDeleted:
		return ErrAccountDeleted
	}
	return nil
}
