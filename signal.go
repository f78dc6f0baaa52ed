package authgate

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// TerminationSignal is the reason code explaining why an account's prior
// session ended. One slot exists per account: a second write before the
// first is read overwrites it (last-write-wins), and a read clears the
// slot so no signal is ever delivered twice.
type TerminationSignal string

const (
	// SignalExpired means the session aged out.
	SignalExpired TerminationSignal = "expired"
	// SignalLocked means the account was locked while logged in.
	SignalLocked TerminationSignal = "locked"
	// SignalConflict means a newer login superseded the session.
	SignalConflict TerminationSignal = "conflict"
	// SignalDeleted means the account was deleted while logged in.
	SignalDeleted TerminationSignal = "deleted"
)

func parseTerminationSignal(s string) (TerminationSignal, bool) {
	switch TerminationSignal(s) {
	case SignalExpired, SignalLocked, SignalConflict, SignalDeleted:
		return TerminationSignal(s), true
	}
	return "", false
}

type signalStore struct {
	redis  redis.UniversalClient
	prefix string
}

func newSignalStore(redisClient redis.UniversalClient, prefix string) *signalStore {
	return &signalStore{
		redis:  redisClient,
		prefix: prefix,
	}
}

func (s *signalStore) key(accountID string) string {
	return s.prefix + ":" + accountID
}

// Write records the signal, overwriting any unread one.
func (s *signalStore) Write(ctx context.Context, accountID string, sig TerminationSignal) error {
	if err := s.redis.Set(ctx, s.key(accountID), string(sig), 0).Err(); err != nil {
		return fmt.Errorf("signal write: %w", err)
	}
	return nil
}

// PeekAndClear atomically reads and removes the pending signal. The second
// of two back-to-back reads sees nothing.
func (s *signalStore) PeekAndClear(ctx context.Context, accountID string) (TerminationSignal, bool, error) {
	val, err := s.redis.GetDel(ctx, s.key(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		// Leave the slot intact on backend failure; an unread signal must
		// not vanish because one read attempt failed.
		return "", false, fmt.Errorf("signal read: %w", err)
	}

	sig, ok := parseTerminationSignal(val)
	if !ok {
		return "", false, fmt.Errorf("signal read: unknown kind %q", val)
	}
	return sig, true, nil
}

// PeekTermination is called when a login boundary becomes active. It
// delivers the pending termination signal for the account exactly once,
// or reports none pending. This is poll-on-activation: a user logged out
// elsewhere learns why on their next visit, not in real time.
func (e *Engine) PeekTermination(ctx context.Context, accountID string) (TerminationSignal, bool, error) {
	if e == nil || e.signals == nil {
		return "", false, ErrEngineNotReady
	}

	sig, ok, err := e.signals.PeekAndClear(ctx, accountID)
	if err != nil {
		return "", false, err
	}
	if ok {
		e.metricInc(MetricSignalDelivered)
	}
	return sig, ok, nil
}
