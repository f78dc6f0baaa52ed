package authgate

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return mr, client
}

type mockAccountProvider struct {
	mu         sync.Mutex
	accounts   map[string]AccountRecord
	byUsername map[string]string
	bySubject  map[string]string

	createErr   error
	createCalls int
}

func newMockAccountProvider() *mockAccountProvider {
	return &mockAccountProvider{
		accounts:   map[string]AccountRecord{},
		byUsername: map[string]string{},
		bySubject:  map[string]string{},
	}
}

func (m *mockAccountProvider) add(rec AccountRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[rec.AccountID] = rec
	if rec.Username != "" {
		m.byUsername[rec.Username] = rec.AccountID
	}
	if rec.ProviderSubjectID != "" {
		m.bySubject[rec.ProviderSubjectID] = rec.AccountID
	}
}

func (m *mockAccountProvider) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.accounts)
}

func (m *mockAccountProvider) GetAccountByUsername(_ context.Context, username string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.byUsername[username]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return m.accounts[id], nil
}

func (m *mockAccountProvider) GetAccountByID(_ context.Context, accountID string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.accounts[accountID]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return rec, nil
}

func (m *mockAccountProvider) GetAccountBySubject(_ context.Context, subject, email string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id, ok := m.bySubject[subject]; ok {
		return m.accounts[id], nil
	}
	for _, rec := range m.accounts {
		if email != "" && rec.Email == email {
			return rec, nil
		}
	}
	return AccountRecord{}, ErrAccountNotFound
}

func (m *mockAccountProvider) CreateAccount(_ context.Context, input CreateAccountInput) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createCalls++
	if m.createErr != nil {
		return AccountRecord{}, m.createErr
	}

	rec := AccountRecord{
		AccountID:         "acct-" + input.Username,
		Username:          input.Username,
		Email:             input.Email,
		PasswordHash:      input.PasswordHash,
		Status:            AccountActive,
		Role:              input.Role,
		ProviderSubjectID: input.ProviderSubjectID,
	}
	m.accounts[rec.AccountID] = rec
	m.byUsername[rec.Username] = rec.AccountID
	if rec.ProviderSubjectID != "" {
		m.bySubject[rec.ProviderSubjectID] = rec.AccountID
	}
	return rec, nil
}

var errUnknownProviderToken = errors.New("unknown provider token")

type fakeIdentityProvider struct {
	identities map[string]FederatedIdentity
	err        error
}

func (f *fakeIdentityProvider) ExchangeToken(_ context.Context, providerToken string) (FederatedIdentity, error) {
	if f.err != nil {
		return FederatedIdentity{}, f.err
	}
	identity, ok := f.identities[providerToken]
	if !ok {
		return FederatedIdentity{}, errUnknownProviderToken
	}
	return identity, nil
}

// fakeChallengeVerifier accepts exactly the response "solved".
type fakeChallengeVerifier struct {
	err error
}

func (f *fakeChallengeVerifier) VerifyResponse(_ context.Context, _, response string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return response == "solved", nil
}

type recordingNotifier struct {
	mu       sync.Mutex
	requests []ProvisioningRequest
}

func (n *recordingNotifier) ProvisioningRequired(req ProvisioningRequest) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.requests = append(n.requests, req)
}

func (n *recordingNotifier) last() (ProvisioningRequest, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.requests) == 0 {
		return ProvisioningRequest{}, false
	}
	return n.requests[len(n.requests)-1], true
}

func loginTestConfig() Config {
	cfg := defaultConfig()
	// Cheapest cost the hasher accepts, to keep tests fast.
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.MinLength = 5
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	return cfg
}

type testEngineOptions struct {
	identity IdentityProvider
	notifier ProvisioningNotifier
	verifier ChallengeVerifier
	sink     AuditSink
}

func newLoginTestEngine(t *testing.T, cfg Config, accounts AccountProvider, opts testEngineOptions) (*Engine, *miniredis.Miniredis, func()) {
	t.Helper()

	mr, rdb := newTestRedis(t)

	verifier := opts.verifier
	if verifier == nil {
		verifier = &fakeChallengeVerifier{}
	}

	builder := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithAccountProvider(accounts).
		WithChallengeVerifier(verifier)
	if opts.identity != nil {
		builder = builder.WithIdentityProvider(opts.identity)
	}
	if opts.notifier != nil {
		builder = builder.WithProvisioningNotifier(opts.notifier)
	}
	if opts.sink != nil {
		builder = builder.WithAuditSink(opts.sink)
	}

	engine, err := builder.Build()
	if err != nil {
		mr.Close()
		t.Fatalf("Build failed: %v", err)
	}

	return engine, mr, func() {
		engine.Close()
		mr.Close()
	}
}

func seedAccount(t *testing.T, e *Engine, m *mockAccountProvider, id, username, pass string, status AccountStatus) {
	t.Helper()

	hash, err := e.passwordHash.Hash(pass)
	if err != nil {
		t.Fatalf("hash failed: %v", err)
	}
	m.add(AccountRecord{
		AccountID:    id,
		Username:     username,
		Email:        username + "@example.com",
		PasswordHash: hash,
		Status:       status,
		Role:         RoleUser,
	})
}

func newChallengeToken(t *testing.T, e *Engine) string {
	t.Helper()

	token, err := e.IssueChallenge(context.Background())
	if err != nil {
		t.Fatalf("IssueChallenge failed: %v", err)
	}
	return token.Value
}
