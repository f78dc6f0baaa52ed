package authgate

import "context"

// AccountStatus represents the lifecycle state of a local account.
type AccountStatus uint8

const (
	// AccountActive is the normal state; the account may log in.
	AccountActive AccountStatus = iota
	// AccountLocked blocks login until an administrator unlocks the account.
	AccountLocked
	// AccountDeleted marks a tombstoned account; it never logs in again.
	AccountDeleted
)

// Role is the closed set of authorization tiers an account can hold.
// Roles are a fixed enumeration, never free-form strings.
type Role uint8

const (
	// RoleUser is the default tier for provisioned and self-registered accounts.
	RoleUser Role = iota
	// RoleAdmin is the elevated management tier.
	RoleAdmin
	// RoleSuperAdmin is the top tier reserved for system operators.
	RoleSuperAdmin
)

// String returns the canonical lowercase name of the role.
func (r Role) String() string {
	switch r {
	case RoleSuperAdmin:
		return "superadmin"
	case RoleAdmin:
		return "admin"
	default:
		return "user"
	}
}

// AccountRecord is the full account record returned by [AccountProvider].
// It carries the credential hash, lifecycle status, role, and the federated
// subject the account is bound to (empty for password-only accounts).
type AccountRecord struct {
	AccountID    string
	Username     string
	Email        string
	PasswordHash string
	Status       AccountStatus
	Role         Role
	// ProviderSubjectID links the account to a federated identity.
	ProviderSubjectID string
}

// FederatedIdentity is an immutable snapshot of a user identity asserted by
// an external identity provider for a single login attempt.
type FederatedIdentity struct {
	ProviderSubjectID string
	Email             string
	DisplayName       string
	PhotoRef          string
}

// CreateAccountInput describes the account created when provisioning a
// first-time federated identity. The password hash is produced by the
// engine before the provider is called; providers never see plaintext.
type CreateAccountInput struct {
	Username          string
	Email             string
	PasswordHash      string
	Role              Role
	ProviderSubjectID string
}

// AccountProvider is the persistence interface callers must implement to
// integrate authgate with their account store. Lookup misses are reported
// with [ErrAccountNotFound]; every other error is treated as a backend
// failure and surfaced unchanged.
type AccountProvider interface {
	GetAccountByUsername(ctx context.Context, username string) (AccountRecord, error)
	GetAccountByID(ctx context.Context, accountID string) (AccountRecord, error)
	// GetAccountBySubject looks up the account bound to a federated subject;
	// whether to fall back to email matching is the provider's choice.
	GetAccountBySubject(ctx context.Context, providerSubjectID, email string) (AccountRecord, error)
	CreateAccount(ctx context.Context, input CreateAccountInput) (AccountRecord, error)
}

// IdentityProvider exchanges an opaque provider token for a verified
// [FederatedIdentity]. The oidc subpackage provides an OpenID Connect
// implementation; tests supply fakes.
type IdentityProvider interface {
	ExchangeToken(ctx context.Context, providerToken string) (FederatedIdentity, error)
}

// ChallengeVerifier checks a challenge response against the external
// bot-mitigation service. It judges only the response; single-use and
// expiry bookkeeping belong to the engine.
type ChallengeVerifier interface {
	VerifyResponse(ctx context.Context, token, response string) (bool, error)
}

// LoginInput carries one credential-based login submission.
type LoginInput struct {
	Username          string
	Password          string
	ChallengeToken    string
	ChallengeResponse string
}

// FederatedLoginInput carries one federated login submission.
type FederatedLoginInput struct {
	ProviderToken     string
	ChallengeToken    string
	ChallengeResponse string
}

// ProvisioningRequest is handed to the configured [ProvisioningNotifier]
// when a federated login needs a first-time password. The flow that opened
// it stays suspended until [Engine.ResolveProvisioning] or
// [Engine.CancelProvisioning] is called with the RequestID.
type ProvisioningRequest struct {
	RequestID string
	Identity  FederatedIdentity
}

// ProvisioningNotifier receives pending provisioning requests so an
// out-of-band surface (a setup dialog, an operator console) can collect the
// password. A nil notifier means unknown federated identities cannot
// complete login.
type ProvisioningNotifier interface {
	ProvisioningRequired(req ProvisioningRequest)
}

// ProvisioningNotifierFunc adapts a function to [ProvisioningNotifier].
type ProvisioningNotifierFunc func(req ProvisioningRequest)

// ProvisioningRequired calls the wrapped function.
func (f ProvisioningNotifierFunc) ProvisioningRequired(req ProvisioningRequest) { f(req) }
