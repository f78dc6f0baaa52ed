package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// LoginFederated runs one federated login attempt: challenge gate, provider
// token exchange, local account lookup, and session issuance. A first-time
// identity suspends here until its provisioning request is resolved or
// cancelled; only the issuing attempt blocks, never the engine.
func (e *Engine) LoginFederated(ctx context.Context, in FederatedLoginInput) (*Session, error) {
	if e == nil || e.accounts == nil || e.identity == nil {
		return nil, ErrEngineNotReady
	}

	if err := e.gateChallenge(ctx, in.ChallengeToken, in.ChallengeResponse); err != nil {
		return nil, err
	}

	account, err := e.authenticateFederated(ctx, in.ProviderToken, nil)
	if err != nil {
		e.metricInc(MetricFederatedFailure)
		return nil, err
	}

	sess, err := e.issueSession(ctx, account)
	if err != nil {
		e.metricInc(MetricFederatedFailure)
		e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", err, nil)
		return nil, err
	}

	e.metricInc(MetricFederatedSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, account.AccountID, sess.SessionID, nil, func() map[string]string {
		return map[string]string{"method": "federated"}
	})
	return sess, nil
}

// authenticateFederated exchanges the provider token and resolves it to a
// local account, provisioning one when the identity is unknown. Locked and
// deleted accounts fail with their own kinds and never enter provisioning.
// onProvision, when non-nil, fires as the flow enters its provisioning
// suspension so state-machine observers can track the transition.
func (e *Engine) authenticateFederated(ctx context.Context, providerToken string, onProvision func()) (AccountRecord, error) {
	identity, err := e.identity.ExchangeToken(ctx, providerToken)
	if err != nil {
		e.emitAudit(ctx, auditEventFederatedExchange, false, "", "", ErrProviderExchangeFailed, nil)
		return AccountRecord{}, fmt.Errorf("%w: %v", ErrProviderExchangeFailed, err)
	}

	account, err := e.accounts.GetAccountBySubject(ctx, identity.ProviderSubjectID, identity.Email)
	if err == nil {
		if statusErr := accountStatusToError(account.Status); statusErr != nil {
			e.emitAudit(ctx, auditEventLoginFailure, false, account.AccountID, "", statusErr, func() map[string]string {
				return map[string]string{"method": "federated", "reason": "account_status"}
			})
			return AccountRecord{}, statusErr
		}
		return account, nil
	}
	if !errors.Is(err, ErrAccountNotFound) {
		return AccountRecord{}, err
	}

	return e.provisionAccount(ctx, identity, onProvision)
}

// provisionAccount opens the out-of-band provisioning request for a
// first-time federated identity and suspends until it settles. Cancel
// leaves no partial writes: the account is created only after a password
// resolution arrives.
func (e *Engine) provisionAccount(ctx context.Context, identity FederatedIdentity, onProvision func()) (AccountRecord, error) {
	if e.notifier == nil {
		e.emitAudit(ctx, auditEventProvisioningAborted, false, "", "", ErrProvisioningAborted, func() map[string]string {
			return map[string]string{"reason": "no_notifier"}
		})
		return AccountRecord{}, ErrProvisioningAborted
	}

	req := ProvisioningRequest{
		RequestID: uuid.NewString(),
		Identity:  identity,
	}
	prompt := newProvisioningPrompt(req)
	e.provisioning.add(prompt)
	defer e.provisioning.remove(req.RequestID)

	e.metricInc(MetricProvisioningOpened)
	e.emitAudit(ctx, auditEventProvisioningOpened, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"request_id": req.RequestID,
			"subject":    identity.ProviderSubjectID,
		}
	})

	// The notifier hands the request to the out-of-band surface; it must
	// not block, or the login attempt stalls before it can suspend.
	e.notifier.ProvisioningRequired(req)

	if onProvision != nil {
		onProvision()
	}

	pw, err := prompt.await(ctx)
	if err != nil || pw == nil {
		e.metricInc(MetricProvisioningAborted)
		e.emitAudit(ctx, auditEventProvisioningAborted, false, "", "", ErrProvisioningAborted, func() map[string]string {
			return map[string]string{"request_id": req.RequestID}
		})
		return AccountRecord{}, ErrProvisioningAborted
	}

	if len(*pw) < e.config.Password.MinLength {
		return AccountRecord{}, ErrPasswordPolicy
	}
	hash, err := e.passwordHash.Hash(*pw)
	if err != nil {
		return AccountRecord{}, fmt.Errorf("%w: %v", ErrPasswordPolicy, err)
	}

	account, err := e.accounts.CreateAccount(ctx, CreateAccountInput{
		Username:          identity.Email,
		Email:             identity.Email,
		PasswordHash:      hash,
		Role:              e.config.Provisioning.DefaultRole,
		ProviderSubjectID: identity.ProviderSubjectID,
	})
	if err != nil {
		return AccountRecord{}, err
	}

	e.metricInc(MetricProvisioningResolved)
	e.emitAudit(ctx, auditEventProvisioningResolved, true, account.AccountID, "", nil, func() map[string]string {
		return map[string]string{"request_id": req.RequestID}
	})
	return account, nil
}
