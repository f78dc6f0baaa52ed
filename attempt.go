package authgate

import (
	"context"
	"sync"
)

// AttemptPhase is the position of a [LoginAttempt] in its state machine.
type AttemptPhase uint8

const (
	// PhaseIdle is the zero state before a challenge exists.
	PhaseIdle AttemptPhase = iota
	// PhaseChallengeIssued means a challenge token is held, not yet verified.
	PhaseChallengeIssued
	// PhaseChallengeVerified means the challenge cleared; the attempt may submit.
	PhaseChallengeVerified
	// PhaseAuthenticating means credentials or a provider token are being checked.
	PhaseAuthenticating
	// PhaseProvisioning means the attempt is suspended on an out-of-band
	// provisioning request.
	PhaseProvisioning
	// PhaseSucceeded is terminal: a session was issued.
	PhaseSucceeded
	// PhaseFailed is terminal: the attempt ended in an AuthError. A new
	// attempt starts over with a fresh challenge.
	PhaseFailed
)

// String names the phase for diagnostics.
func (p AttemptPhase) String() string {
	switch p {
	case PhaseChallengeIssued:
		return "challenge_issued"
	case PhaseChallengeVerified:
		return "challenge_verified"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseProvisioning:
		return "provisioning"
	case PhaseSucceeded:
		return "succeeded"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// LoginAttempt is the flow object for one user-initiated login. It walks
// Idle → ChallengeIssued → ChallengeVerified → Authenticating →
// {Provisioning} → Succeeded|Failed. The attempt is owned by the flow that
// created it; Phase is safe to read from other goroutines, the transition
// methods are not meant to be called concurrently.
type LoginAttempt struct {
	engine *Engine

	mu        sync.Mutex
	phase     AttemptPhase
	challenge ChallengeToken
	verified  bool
}

// NewAttempt starts a login attempt by issuing its first challenge token.
func (e *Engine) NewAttempt(ctx context.Context) (*LoginAttempt, error) {
	if e == nil || e.challenges == nil {
		return nil, ErrEngineNotReady
	}

	token, err := e.IssueChallenge(ctx)
	if err != nil {
		return nil, err
	}

	return &LoginAttempt{
		engine:    e,
		phase:     PhaseChallengeIssued,
		challenge: token,
	}, nil
}

// Phase reports the attempt's current state.
func (a *LoginAttempt) Phase() AttemptPhase {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.phase
}

// Challenge returns the token the caller must solve. After a failed
// verification this is already the fresh replacement token.
func (a *LoginAttempt) Challenge() ChallengeToken {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.challenge
}

func (a *LoginAttempt) setPhase(p AttemptPhase) {
	a.mu.Lock()
	a.phase = p
	a.mu.Unlock()
}

// VerifyChallenge submits the response for the held token. Success moves
// the attempt to ChallengeVerified. Failure discards the token, issues a
// fresh one, and loops the attempt back to ChallengeIssued; the old token
// can never be retried.
func (a *LoginAttempt) VerifyChallenge(ctx context.Context, response string) error {
	a.mu.Lock()
	if a.phase != PhaseChallengeIssued {
		a.mu.Unlock()
		return ErrChallengeRequired
	}
	token := a.challenge.Value
	a.mu.Unlock()

	if err := a.engine.VerifyChallenge(ctx, token, response); err != nil {
		fresh, issueErr := a.engine.IssueChallenge(ctx)
		if issueErr != nil {
			return issueErr
		}
		a.mu.Lock()
		a.challenge = fresh
		a.phase = PhaseChallengeIssued
		a.mu.Unlock()
		return err
	}

	a.mu.Lock()
	a.verified = true
	a.phase = PhaseChallengeVerified
	a.mu.Unlock()
	return nil
}

// beginSubmit consumes the attempt's verified challenge and moves to
// Authenticating. Each verified token covers exactly one submission.
func (a *LoginAttempt) beginSubmit() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.phase != PhaseChallengeVerified || !a.verified {
		return ErrChallengeRequired
	}
	a.verified = false
	a.phase = PhaseAuthenticating
	return nil
}

func (a *LoginAttempt) finish(sess *Session, err error) (*Session, error) {
	if err != nil {
		a.setPhase(PhaseFailed)
		return nil, err
	}
	a.setPhase(PhaseSucceeded)
	return sess, nil
}

// Submit runs the credential path for this attempt. Any AuthError is
// terminal: the attempt moves to Failed and a new attempt (with a fresh
// challenge) is required.
func (a *LoginAttempt) Submit(ctx context.Context, username, pass string) (*Session, error) {
	if err := a.beginSubmit(); err != nil {
		return nil, err
	}

	e := a.engine
	account, err := e.verifyCredentials(ctx, username, pass)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return a.finish(nil, err)
	}

	sess, err := e.issueSession(ctx, account)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return a.finish(nil, err)
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.AccountID, sess.SessionID, nil, nil)
	return a.finish(sess, nil)
}

// SubmitFederated runs the federated path for this attempt. For a
// first-time identity the attempt parks in Provisioning until the request
// is resolved or cancelled.
func (a *LoginAttempt) SubmitFederated(ctx context.Context, providerToken string) (*Session, error) {
	if err := a.beginSubmit(); err != nil {
		return nil, err
	}

	e := a.engine
	if e.identity == nil {
		return a.finish(nil, ErrEngineNotReady)
	}

	account, err := e.authenticateFederated(ctx, providerToken, func() {
		a.setPhase(PhaseProvisioning)
	})
	if err != nil {
		e.metricInc(MetricFederatedFailure)
		return a.finish(nil, err)
	}

	sess, err := e.issueSession(ctx, account)
	if err != nil {
		e.metricInc(MetricFederatedFailure)
		return a.finish(nil, err)
	}

	e.metricInc(MetricFederatedSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.AccountID, sess.SessionID, nil, func() map[string]string {
		return map[string]string{"method": "federated"}
	})
	return a.finish(sess, nil)
}
