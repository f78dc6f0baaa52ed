package authgate

import (
	"context"
	"errors"
	"testing"
)

func TestBuildRequiresRedis(t *testing.T) {
	_, err := New().
		WithAccountProvider(newMockAccountProvider()).
		WithChallengeVerifier(&fakeChallengeVerifier{}).
		Build()
	if err == nil {
		t.Fatal("expected error without redis client")
	}
}

func TestBuildRequiresAccountProvider(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	_, err := New().
		WithRedis(rdb).
		WithChallengeVerifier(&fakeChallengeVerifier{}).
		Build()
	if err == nil {
		t.Fatal("expected error without account provider")
	}
}

func TestBuildRequiresChallengeVerifier(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	_, err := New().
		WithRedis(rdb).
		WithAccountProvider(newMockAccountProvider()).
		Build()
	if err == nil {
		t.Fatal("expected error without challenge verifier")
	}
}

func TestBuildGeneratesEphemeralKeys(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	// Default config: ed25519 with no key material supplied.
	engine, err := New().
		WithRedis(rdb).
		WithAccountProvider(newMockAccountProvider()).
		WithChallengeVerifier(&fakeChallengeVerifier{}).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer engine.Close()

	token, err := engine.tokens.CreateSessionToken("acct-1", "sess-1")
	if err != nil {
		t.Fatalf("CreateSessionToken failed: %v", err)
	}
	if _, err := engine.tokens.ParseSessionToken(token); err != nil {
		t.Fatalf("token minted with ephemeral keys does not parse: %v", err)
	}
}

func TestBuilderIsSingleUse(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	b := New().
		WithRedis(rdb).
		WithAccountProvider(newMockAccountProvider()).
		WithChallengeVerifier(&fakeChallengeVerifier{})

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("first Build failed: %v", err)
	}
	defer engine.Close()

	if _, err := b.Build(); err == nil {
		t.Fatal("second Build succeeded")
	}
}

func TestBuildZeroAttemptsDisablesThrottle(t *testing.T) {
	cfg := loginTestConfig()
	cfg.RateLimit.MaxLoginAttempts = 0

	accounts := newMockAccountProvider()
	engine, _, done := newLoginTestEngine(t, cfg, accounts, testEngineOptions{})
	defer done()

	if engine.rateLimiter != nil {
		t.Fatal("expected nil limiter with zero budget")
	}

	seedAccount(t, engine, accounts, "u1", "alice", "correct-password-123", AccountActive)
	// Many failures in a row never trip a throttle.
	for i := 0; i < 5; i++ {
		_, err := engine.Login(context.Background(), LoginInput{
			Username:          "alice",
			Password:          "wrong",
			ChallengeToken:    newChallengeToken(t, engine),
			ChallengeResponse: "solved",
		})
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: got %v", i, err)
		}
	}
}

func TestFederatedLoginWithoutIdentityProvider(t *testing.T) {
	accounts := newMockAccountProvider()
	engine, _, done := newLoginTestEngine(t, loginTestConfig(), accounts, testEngineOptions{})
	defer done()

	_, err := engine.LoginFederated(context.Background(), FederatedLoginInput{
		ProviderToken:     "tok",
		ChallengeToken:    newChallengeToken(t, engine),
		ChallengeResponse: "solved",
	})
	if !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
}
