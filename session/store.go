package session

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a session ID resolves to nothing.
var ErrNotFound = errors.New("session not found")

// ErrRedisUnavailable wraps backend failures.
var ErrRedisUnavailable = errors.New("redis unavailable")

// SignalConflict is the reason recorded for a displaced session. It must
// match the conflict kind the engine's signal reader understands.
const SignalConflict = "conflict"

// Config tunes the store's key layout and lifetime handling.
type Config struct {
	// Prefix namespaces session keys.
	Prefix string
	// SignalPrefix namespaces the per-account termination-signal slots the
	// issue script writes conflicts into.
	SignalPrefix string
	// TTL is the absolute session lifetime; zero disables expiry.
	TTL time.Duration
}

// Store owns the accountID -> active session mapping. All invariant-bearing
// transitions run as single Lua scripts so concurrent logins for one
// account race safely: the last writer becomes active and the loser is
// marked superseded in the same atomic step.
type Store struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a session [Store] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Store {
	return &Store{
		redis:  redisClient,
		config: cfg,
	}
}

// The read-active + mark-superseded + write-new + write-conflict sequence
// is one script: splitting it would let two concurrent issues both observe
// no active session, or leave a superseded record without its signal.
const issueScript = `
local prior = redis.call("GET", KEYS[1])
if prior then
  redis.call("HSET", ARGV[4] .. prior, "superseded_by", ARGV[1])
  redis.call("SET", KEYS[3], "conflict")
end
redis.call("SET", KEYS[1], ARGV[1])
redis.call("HSET", KEYS[2],
  "account_id", ARGV[2],
  "issued_at", ARGV[3],
  "expires_at", ARGV[6],
  "superseded_by", "")
if tonumber(ARGV[5]) > 0 then
  redis.call("EXPIRE", KEYS[1], ARGV[5])
  redis.call("EXPIRE", KEYS[2], ARGV[5])
end
if prior then
  return prior
end
return ""
`

var issueLua = redis.NewScript(issueScript)

const invalidateScript = `
local account = redis.call("HGET", KEYS[1], "account_id")
if not account then
  return 0
end
local activekey = ARGV[1] .. account
if redis.call("GET", activekey) == ARGV[4] then
  redis.call("DEL", activekey)
end
redis.call("DEL", KEYS[1])
redis.call("SET", ARGV[2] .. account, ARGV[3])
return 1
`

var invalidateLua = redis.NewScript(invalidateScript)

func (s *Store) activeKey(accountID string) string {
	return s.config.Prefix + ":active:" + accountID
}

func (s *Store) recordKey(sessionID string) string {
	return s.config.Prefix + ":rec:" + sessionID
}

func (s *Store) recordPrefix() string {
	return s.config.Prefix + ":rec:"
}

func (s *Store) activePrefix() string {
	return s.config.Prefix + ":active:"
}

func (s *Store) signalKey(accountID string) string {
	return s.config.SignalPrefix + ":" + accountID
}

// Issue writes sessionID as the account's active session. If a prior
// active session exists it is marked superseded and a conflict signal is
// recorded for the account, all in one atomic step. The superseded
// session's ID is returned, empty when there was none.
func (s *Store) Issue(ctx context.Context, accountID, sessionID string, now time.Time) (string, error) {
	ttlSeconds := int64(0)
	expiresAt := int64(0)
	if s.config.TTL > 0 {
		ttlSeconds = int64(s.config.TTL / time.Second)
		expiresAt = now.Add(s.config.TTL).Unix()
	}

	prior, err := issueLua.Run(ctx, s.redis,
		[]string{s.activeKey(accountID), s.recordKey(sessionID), s.signalKey(accountID)},
		sessionID,
		accountID,
		strconv.FormatInt(now.Unix(), 10),
		s.recordPrefix(),
		strconv.FormatInt(ttlSeconds, 10),
		strconv.FormatInt(expiresAt, 10),
	).Text()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return prior, nil
}

// Invalidate removes the session and records reason in the account's
// signal slot (last-write-wins). Invalidating an unknown session returns
// [ErrNotFound] and writes nothing.
func (s *Store) Invalidate(ctx context.Context, sessionID, reason string) error {
	n, err := invalidateLua.Run(ctx, s.redis,
		[]string{s.recordKey(sessionID)},
		s.activePrefix(),
		s.config.SignalPrefix+":",
		reason,
		sessionID,
	).Int64()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Get loads one session record.
func (s *Store) Get(ctx context.Context, sessionID string) (Session, error) {
	fields, err := s.redis.HGetAll(ctx, s.recordKey(sessionID)).Result()
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if len(fields) == 0 {
		return Session{}, ErrNotFound
	}

	issuedAt, _ := strconv.ParseInt(fields["issued_at"], 10, 64)
	expiresAt, _ := strconv.ParseInt(fields["expires_at"], 10, 64)

	return Session{
		SessionID:    sessionID,
		AccountID:    fields["account_id"],
		IssuedAt:     issuedAt,
		ExpiresAt:    expiresAt,
		SupersededBy: fields["superseded_by"],
	}, nil
}

// ActiveSessionID returns the account's current active session ID, empty
// when the account has no active session.
func (s *Store) ActiveSessionID(ctx context.Context, accountID string) (string, error) {
	id, err := s.redis.Get(ctx, s.activeKey(accountID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return id, nil
}
