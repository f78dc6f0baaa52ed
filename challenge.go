package authgate

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ChallengeToken is a single-use proof that a login attempt passed bot
// mitigation. Expiry is enforced by the store; consumption is
// compare-and-swap so two concurrent verifications of one token cannot
// both succeed.
type ChallengeToken struct {
	Value    string
	IssuedAt time.Time
}

const (
	consumeStatusMissing  int64 = 0
	consumeStatusConsumed int64 = 1
	consumeStatusReplay   int64 = 2
)

// The check-unconsumed-then-consume step must be atomic: without it two
// concurrent verifications of the same token could both observe
// consumed=0 and both succeed.
const consumeChallengeScript = `
local consumed = redis.call("HGET", KEYS[1], "consumed")
if not consumed then
  return 0
end
if consumed == "1" then
  return 2
end
redis.call("HSET", KEYS[1], "consumed", "1")
return 1
`

var consumeChallengeLua = redis.NewScript(consumeChallengeScript)

type challengeStore struct {
	redis  redis.UniversalClient
	prefix string
	ttl    time.Duration
}

func newChallengeStore(redisClient redis.UniversalClient, cfg ChallengeConfig) *challengeStore {
	return &challengeStore{
		redis:  redisClient,
		prefix: cfg.RedisPrefix,
		ttl:    cfg.TokenTTL,
	}
}

func (s *challengeStore) key(value string) string {
	return s.prefix + ":" + value
}

// Issue mints a fresh token. The Redis TTL is the provider-defined expiry:
// an expired token simply stops existing and fails verification.
func (s *challengeStore) Issue(ctx context.Context) (ChallengeToken, error) {
	token := ChallengeToken{
		Value:    uuid.NewString(),
		IssuedAt: time.Now().UTC(),
	}

	err := s.redis.HSet(ctx, s.key(token.Value),
		"issued_at", strconv.FormatInt(token.IssuedAt.Unix(), 10),
		"consumed", "0",
	).Err()
	if err != nil {
		return ChallengeToken{}, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	if err := s.redis.Expire(ctx, s.key(token.Value), s.ttl).Err(); err != nil {
		return ChallengeToken{}, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return token, nil
}

// Peek reports whether the token exists and is still unconsumed, without
// consuming it.
func (s *challengeStore) Peek(ctx context.Context, value string) (bool, error) {
	consumed, err := s.redis.HGet(ctx, s.key(value), "consumed").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return consumed == "0", nil
}

// Consume marks the token consumed exactly once. Unknown, expired, and
// already-consumed tokens all fail with [ErrChallengeInvalid].
func (s *challengeStore) Consume(ctx context.Context, value string) error {
	status, err := consumeChallengeLua.Run(ctx, s.redis, []string{s.key(value)}).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	switch status {
	case consumeStatusConsumed:
		return nil
	case consumeStatusMissing, consumeStatusReplay:
		return ErrChallengeInvalid
	}
	return ErrChallengeInvalid
}

// Discard removes the token so it can never verify. Discarding an unknown
// token is a no-op.
func (s *challengeStore) Discard(ctx context.Context, value string) error {
	if err := s.redis.Del(ctx, s.key(value)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	return nil
}

// IssueChallenge mints a new challenge token for a login attempt.
func (e *Engine) IssueChallenge(ctx context.Context) (ChallengeToken, error) {
	if e == nil || e.challenges == nil {
		return ChallengeToken{}, ErrEngineNotReady
	}

	token, err := e.challenges.Issue(ctx)
	if err != nil {
		return ChallengeToken{}, err
	}
	e.metricInc(MetricChallengeIssued)
	e.emitAudit(ctx, auditEventChallengeIssued, true, "", "", nil, nil)
	return token, nil
}

// VerifyChallenge checks the response with the external verifier and, on
// success, consumes the token. A token that fails verification is discarded:
// the caller must request a fresh one, never retry the same token.
func (e *Engine) VerifyChallenge(ctx context.Context, token, response string) error {
	if e == nil || e.challenges == nil {
		return ErrEngineNotReady
	}

	ok, err := e.challenges.Peek(ctx, token)
	if err != nil {
		return err
	}
	if !ok {
		e.metricInc(MetricChallengeRejected)
		e.emitAudit(ctx, auditEventChallengeRejected, false, "", "", ErrChallengeInvalid, nil)
		return ErrChallengeInvalid
	}

	valid, err := e.challengeVerifier.VerifyResponse(ctx, token, response)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrChallengeUnavailable, err)
	}
	if !valid {
		// Failed response burns the token.
		_ = e.challenges.Discard(ctx, token)
		e.metricInc(MetricChallengeRejected)
		e.emitAudit(ctx, auditEventChallengeRejected, false, "", "", ErrChallengeInvalid, nil)
		return ErrChallengeInvalid
	}

	if err := e.challenges.Consume(ctx, token); err != nil {
		e.metricInc(MetricChallengeRejected)
		e.emitAudit(ctx, auditEventChallengeRejected, false, "", "", err, nil)
		return err
	}

	e.metricInc(MetricChallengeVerified)
	e.emitAudit(ctx, auditEventChallengeVerified, true, "", "", nil, nil)
	return nil
}
