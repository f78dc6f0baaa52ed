package authgate

import (
	"context"
	"sync"
)

// provisioningPrompt is the promise half of one out-of-band provisioning
// interaction. Resolution is terminal and single-fire: the resolver is
// consumed on first use and later calls are ignored.
type provisioningPrompt struct {
	req  ProvisioningRequest
	ch   chan *string
	once sync.Once
}

func newProvisioningPrompt(req ProvisioningRequest) *provisioningPrompt {
	return &provisioningPrompt{
		req: req,
		ch:  make(chan *string, 1),
	}
}

// resolve delivers the outcome: a password, or nil for cancel. Returns
// false when the prompt was already resolved.
func (p *provisioningPrompt) resolve(password *string) bool {
	fired := false
	p.once.Do(func() {
		p.ch <- password
		fired = true
	})
	return fired
}

// await blocks the issuing login attempt (and only it) until resolution or
// ctx cancellation. Caller-driven abandonment arrives as a nil password.
func (p *provisioningPrompt) await(ctx context.Context) (*string, error) {
	select {
	case password := <-p.ch:
		return password, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// provisioningRegistry tracks pending prompts by request ID so the
// out-of-band surface can resolve them.
type provisioningRegistry struct {
	mu      sync.Mutex
	pending map[string]*provisioningPrompt
}

func newProvisioningRegistry() *provisioningRegistry {
	return &provisioningRegistry{
		pending: make(map[string]*provisioningPrompt),
	}
}

func (r *provisioningRegistry) add(p *provisioningPrompt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pending[p.req.RequestID] = p
}

func (r *provisioningRegistry) remove(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.pending, requestID)
}

func (r *provisioningRegistry) get(requestID string) (*provisioningPrompt, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.pending[requestID]
	return p, ok
}

// ResolveProvisioning supplies the first-time password for a pending
// federated provisioning request. The suspended login flow resumes,
// creates the account, and issues its session. Resolving an unknown or
// already-resolved request fails with [ErrProvisioningNotFound].
func (e *Engine) ResolveProvisioning(requestID, password string) error {
	if e == nil || e.provisioning == nil {
		return ErrEngineNotReady
	}

	prompt, ok := e.provisioning.get(requestID)
	if !ok {
		return ErrProvisioningNotFound
	}
	if !prompt.resolve(&password) {
		return ErrProvisioningNotFound
	}
	return nil
}

// CancelProvisioning abandons a pending provisioning request. The
// suspended flow fails with [ErrProvisioningAborted] and no account is
// created. Cancelling an unknown or already-settled request is a no-op.
func (e *Engine) CancelProvisioning(requestID string) error {
	if e == nil || e.provisioning == nil {
		return ErrEngineNotReady
	}

	if prompt, ok := e.provisioning.get(requestID); ok {
		prompt.resolve(nil)
	}
	return nil
}
