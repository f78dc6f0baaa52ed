package authgate

import (
	"context"
	"errors"
	"log"
)

// Login runs one credential-based login attempt: challenge gate first,
// then credential verification, then session issuance. Whatever the
// outcome, the challenge token is spent; resubmission needs a fresh one.
func (e *Engine) Login(ctx context.Context, in LoginInput) (*Session, error) {
	if e == nil || e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.gateChallenge(ctx, in.ChallengeToken, in.ChallengeResponse); err != nil {
		return nil, err
	}

	account, err := e.verifyCredentials(ctx, in.Username, in.Password)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	sess, err := e.issueSession(ctx, account)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.AccountID, sess.SessionID, nil, nil)
	return sess, nil
}

// gateChallenge enforces the bot-mitigation gate shared by both login
// paths. The token is consumed on success and discarded on failure, so it
// can never be replayed into a second submission.
func (e *Engine) gateChallenge(ctx context.Context, token, response string) error {
	if token == "" {
		e.emitAudit(ctx, auditEventChallengeRejected, false, "", "", ErrChallengeRequired, nil)
		return ErrChallengeRequired
	}
	return e.VerifyChallenge(ctx, token, response)
}

// verifyCredentials delegates to the account store and maps every failure
// to a distinct reason. Locked and deleted accounts are never collapsed
// into a generic failure: signal consumers key messaging off the kind.
func (e *Engine) verifyCredentials(ctx context.Context, username, pass string) (AccountRecord, error) {
	ip := clientIPFromContext(ctx)

	if e.rateLimiter != nil {
		if err := e.rateLimiter.CheckLogin(ctx, username, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{"identifier": username}
			})
			return AccountRecord{}, ErrLoginRateLimited
		}
	}

	if pass == "" {
		return AccountRecord{}, e.failLogin(ctx, username, ip, "", "empty_password")
	}

	account, err := e.accounts.GetAccountByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return AccountRecord{}, e.failLogin(ctx, username, ip, "", "account_not_found")
		}
		return AccountRecord{}, err
	}

	ok, err := e.passwordHash.Verify(pass, account.PasswordHash)
	if err != nil || !ok {
		return AccountRecord{}, e.failLogin(ctx, username, ip, account.AccountID, "password_mismatch")
	}

	if statusErr := accountStatusToError(account.Status); statusErr != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", statusErr, func() map[string]string {
			return map[string]string{"identifier": username, "reason": "account_status"}
		})
		return AccountRecord{}, statusErr
	}

	if e.rateLimiter != nil {
		// Counter reset is best-effort and must not block a valid login.
		if err := e.rateLimiter.ResetLogin(ctx, username, ip); err != nil {
			log.Print("authgate: login throttle reset failed")
		}
	}

	return account, nil
}

// failLogin records a failed credential attempt against the throttle and
// returns the uniform invalid-credentials error.
func (e *Engine) failLogin(ctx context.Context, username, ip, accountID, reason string) error {
	if e.rateLimiter != nil {
		if err := e.rateLimiter.IncrementLogin(ctx, username, ip); err != nil {
			e.metricInc(MetricLoginRateLimited)
			e.emitAudit(ctx, auditEventLoginRateLimited, false, accountID, "", ErrLoginRateLimited, func() map[string]string {
				return map[string]string{"identifier": username}
			})
			return ErrLoginRateLimited
		}
	}
	e.emitAudit(ctx, auditEventLoginFailure, false, accountID, "", ErrInvalidCredentials, func() map[string]string {
		return map[string]string{"identifier": username, "reason": reason}
	})
	return ErrInvalidCredentials
}
