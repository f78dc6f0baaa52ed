// Package session persists issued sessions in Redis and enforces the
// single-active-session invariant: for any account, at most one session is
// unsuperseded at a time. Issuing a new session atomically supersedes the
// prior one and records a conflict signal for the displaced context.
package session
