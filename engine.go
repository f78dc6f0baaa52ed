package authgate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/veldtlabs/authgate/internal"
	"github.com/veldtlabs/authgate/internal/rate"
	"github.com/veldtlabs/authgate/jwt"
	"github.com/veldtlabs/authgate/password"
	"github.com/veldtlabs/authgate/session"
)

// Session is the outcome of a successful login: the account it belongs to
// and an opaque signed token the caller hands to its transport layer.
type Session struct {
	AccountID string
	SessionID string
	Token     string
	IssuedAt  time.Time
}

// Engine is the authentication and session-orchestration core. Engines are
// built once through [Builder.Build] and safe for concurrent use.
type Engine struct {
	config            Config
	accounts          AccountProvider
	identity          IdentityProvider
	challengeVerifier ChallengeVerifier
	notifier          ProvisioningNotifier

	challenges   *challengeStore
	signals      *signalStore
	sessions     *session.Store
	rateLimiter  *rate.Limiter
	provisioning *provisioningRegistry
	passwordHash *password.Argon2
	tokens       *jwt.Manager
	audit        *auditDispatcher
	metrics      *Metrics
}

// Close stops background machinery, draining buffered audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped reports how many audit events were shed under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot copies the engine's counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{Counters: map[MetricID]uint64{}}
	}
	return e.metrics.Snapshot()
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// issueSession mints a session for the account. The store's issue step is
// atomic: a prior active session is marked superseded and its conflict
// signal recorded in the same operation, so concurrent logins for one
// account leave exactly one active session and one pending signal.
func (e *Engine) issueSession(ctx context.Context, account AccountRecord) (*Session, error) {
	sid, err := internal.NewSessionID()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	now := time.Now().UTC()

	prior, err := e.sessions.Issue(ctx, account.AccountID, sid.String(), now)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}
	if prior != "" {
		e.metricInc(MetricSessionSuperseded)
		e.emitAudit(ctx, auditEventSessionSuperseded, true, account.AccountID, prior, nil, func() map[string]string {
			return map[string]string{
				"superseded_by": sid.String(),
			}
		})
	}

	token, err := e.tokens.CreateSessionToken(account.AccountID, sid.String())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSessionCreationFailed, err)
	}

	e.metricInc(MetricSessionIssued)
	e.emitAudit(ctx, auditEventSessionIssued, true, account.AccountID, sid.String(), nil, nil)

	return &Session{
		AccountID: account.AccountID,
		SessionID: sid.String(),
		Token:     token,
		IssuedAt:  now,
	}, nil
}

// Invalidate ends a session out of band and records reason in the
// account's termination slot. Out-of-band causes are [SignalLocked],
// [SignalDeleted], and [SignalExpired]; conflict signals are written only
// by session supersession, never through this path.
func (e *Engine) Invalidate(ctx context.Context, sessionToken string, reason TerminationSignal) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	switch reason {
	case SignalLocked, SignalDeleted, SignalExpired:
	default:
		return fmt.Errorf("invalid termination reason %q", reason)
	}

	claims, err := e.tokens.ParseSessionToken(sessionToken)
	if err != nil {
		return ErrSessionNotFound
	}

	if err := e.sessions.Invalidate(ctx, claims.SID, string(reason)); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventSessionInvalidated, true, claims.AID, claims.SID, nil, func() map[string]string {
		return map[string]string{
			"reason": string(reason),
		}
	})
	return nil
}

// InvalidateSessionID is the variant used by background processes that
// track session IDs directly (expiry sweeps, admin tooling).
func (e *Engine) InvalidateSessionID(ctx context.Context, sessionID string, reason TerminationSignal) error {
	if e == nil || e.sessions == nil {
		return ErrEngineNotReady
	}
	switch reason {
	case SignalLocked, SignalDeleted, SignalExpired:
	default:
		return fmt.Errorf("invalid termination reason %q", reason)
	}

	rec, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	if err := e.sessions.Invalidate(ctx, sessionID, string(reason)); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return err
	}

	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventSessionInvalidated, true, rec.AccountID, sessionID, nil, func() map[string]string {
		return map[string]string{
			"reason": string(reason),
		}
	})
	return nil
}

// ActiveSession reports the account's current active session ID, empty
// when none exists.
func (e *Engine) ActiveSession(ctx context.Context, accountID string) (string, error) {
	if e == nil || e.sessions == nil {
		return "", ErrEngineNotReady
	}
	return e.sessions.ActiveSessionID(ctx, accountID)
}
