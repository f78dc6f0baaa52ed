// Package authgate implements an authentication and session-orchestration
// core: challenge-gated credential and federated logins, out-of-band
// provisioning for first-time federated identities, single-active-session
// enforcement, and exactly-once delivery of session-termination signals.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// authgate is the public surface. It exposes [Engine], [Builder], [Config],
// and value types (Session, FederatedIdentity, TerminationSignal). Account
// persistence, identity federation, and challenge verification are supplied
// by the embedder through [AccountProvider], [IdentityProvider], and
// [ChallengeVerifier]; the engine never talks to a user database directly.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or key layouts in its public API.
//   - Render anything: the same Engine drives a web login page, a CLI, or an
//     API gateway identically.
//   - Choose security policy for the embedder: hashing cost, challenge TTL,
//     and rate-limit budgets are configuration, not constants.
package authgate
