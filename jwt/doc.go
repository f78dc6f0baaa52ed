// Package jwt mints and parses the signed session tokens the engine hands
// back on successful login. The token is opaque to callers; it carries the
// account and session identifiers so transport layers can route it without
// an extra store lookup.
package jwt
