package authgate

import (
	"context"
	"sync"
	"testing"
)

func TestPeekTerminationDeliversExactlyOnce(t *testing.T) {
	accounts := newMockAccountProvider()
	engine, _, done := newLoginTestEngine(t, loginTestConfig(), accounts, testEngineOptions{})
	defer done()

	if err := engine.signals.Write(context.Background(), "u1", SignalLocked); err != nil {
		t.Fatalf("signal write failed: %v", err)
	}

	sig, ok, err := engine.PeekTermination(context.Background(), "u1")
	if err != nil || !ok || sig != SignalLocked {
		t.Fatalf("first peek: sig=%v ok=%v err=%v", sig, ok, err)
	}

	_, ok, err = engine.PeekTermination(context.Background(), "u1")
	if err != nil {
		t.Fatalf("second peek errored: %v", err)
	}
	if ok {
		t.Fatal("signal delivered twice")
	}
}

func TestPeekTerminationNonePending(t *testing.T) {
	accounts := newMockAccountProvider()
	engine, _, done := newLoginTestEngine(t, loginTestConfig(), accounts, testEngineOptions{})
	defer done()

	_, ok, err := engine.PeekTermination(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("peek errored: %v", err)
	}
	if ok {
		t.Fatal("expected no pending signal")
	}
}

func TestTerminationSignalLastWriteWins(t *testing.T) {
	accounts := newMockAccountProvider()
	engine, _, done := newLoginTestEngine(t, loginTestConfig(), accounts, testEngineOptions{})
	defer done()

	ctx := context.Background()
	if err := engine.signals.Write(ctx, "u1", SignalConflict); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := engine.signals.Write(ctx, "u1", SignalDeleted); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	sig, ok, err := engine.PeekTermination(ctx, "u1")
	if err != nil || !ok {
		t.Fatalf("peek failed: ok=%v err=%v", ok, err)
	}
	if sig != SignalDeleted {
		t.Fatalf("expected last write to win, got %v", sig)
	}
	if _, ok, _ := engine.PeekTermination(ctx, "u1"); ok {
		t.Fatal("overwritten slot delivered twice")
	}
}

func TestInvalidateWritesMatchingSignal(t *testing.T) {
	accounts := newMockAccountProvider()
	engine, _, done := newLoginTestEngine(t, loginTestConfig(), accounts, testEngineOptions{})
	defer done()

	seedAccount(t, engine, accounts, "u1", "alice", "correct-password-123", AccountActive)

	for _, reason := range []TerminationSignal{SignalExpired, SignalLocked, SignalDeleted} {
		sess, err := engine.Login(context.Background(), LoginInput{
			Username:          "alice",
			Password:          "correct-password-123",
			ChallengeToken:    newChallengeToken(t, engine),
			ChallengeResponse: "solved",
		})
		if err != nil {
			t.Fatalf("%s: login failed: %v", reason, err)
		}
		// The login above may have left a conflict signal from superseding
		// the previous iteration's session; clear it first.
		_, _, _ = engine.PeekTermination(context.Background(), "u1")

		if err := engine.Invalidate(context.Background(), sess.Token, reason); err != nil {
			t.Fatalf("%s: invalidate failed: %v", reason, err)
		}

		sig, ok, err := engine.PeekTermination(context.Background(), "u1")
		if err != nil || !ok || sig != reason {
			t.Fatalf("%s: peek got sig=%v ok=%v err=%v", reason, sig, ok, err)
		}
	}
}

func TestInvalidateRejectsConflictReason(t *testing.T) {
	accounts := newMockAccountProvider()
	engine, _, done := newLoginTestEngine(t, loginTestConfig(), accounts, testEngineOptions{})
	defer done()

	if err := engine.Invalidate(context.Background(), "whatever", SignalConflict); err == nil {
		t.Fatal("expected error for conflict reason")
	}
}

func TestConcurrentLoginsLeaveOneActiveSessionAndOneConflict(t *testing.T) {
	accounts := newMockAccountProvider()
	engine, _, done := newLoginTestEngine(t, loginTestConfig(), accounts, testEngineOptions{})
	defer done()

	seedAccount(t, engine, accounts, "u1", "alice", "correct-password-123", AccountActive)

	const workers = 6
	var wg sync.WaitGroup
	sessions := make([]*Session, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sess, err := engine.Login(context.Background(), LoginInput{
				Username:          "alice",
				Password:          "correct-password-123",
				ChallengeToken:    newChallengeToken(t, engine),
				ChallengeResponse: "solved",
			})
			if err != nil {
				t.Errorf("worker %d login failed: %v", i, err)
				return
			}
			sessions[i] = sess
		}(i)
	}
	wg.Wait()

	active, err := engine.ActiveSession(context.Background(), "u1")
	if err != nil || active == "" {
		t.Fatalf("no active session after concurrent logins: %v", err)
	}

	activeCount := 0
	for _, sess := range sessions {
		if sess == nil {
			continue
		}
		rec, err := engine.sessions.Get(context.Background(), sess.SessionID)
		if err != nil {
			t.Fatalf("get session %s failed: %v", sess.SessionID, err)
		}
		if rec.Active() {
			activeCount++
			if rec.SessionID != active {
				t.Fatalf("unsuperseded session %s is not the active pointer %s", rec.SessionID, active)
			}
		}
	}
	if activeCount != 1 {
		t.Fatalf("expected exactly one active session, got %d", activeCount)
	}

	// The displaced logins produced conflict signals; the slot holds at
	// most one, delivered exactly once.
	sig, ok, err := engine.PeekTermination(context.Background(), "u1")
	if err != nil || !ok || sig != SignalConflict {
		t.Fatalf("expected one pending conflict, got sig=%v ok=%v err=%v", sig, ok, err)
	}
	if _, ok, _ := engine.PeekTermination(context.Background(), "u1"); ok {
		t.Fatal("conflict signal delivered twice")
	}
}
