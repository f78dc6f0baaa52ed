// Package internal holds identifier and token helpers shared by the engine
// and its stores. Nothing here is part of the public API.
package internal

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
)

// SessionID is a 16-byte random identifier, rendered as unpadded base64url.
type SessionID [16]byte

// NewSessionID draws a fresh random session identifier.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

// Bytes returns the raw identifier.
func (s SessionID) Bytes() []byte {
	return s[:]
}

// String renders the identifier as base64url, no padding, compact.
func (s SessionID) String() string {
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// ParseSessionID decodes a string produced by [SessionID.String].
func ParseSessionID(sessionID string) (SessionID, error) {
	var sid SessionID

	raw, err := base64.RawURLEncoding.DecodeString(sessionID)
	if err != nil {
		return sid, err
	}
	if len(raw) != len(sid) {
		return sid, errors.New("invalid session id size")
	}

	copy(sid[:], raw)
	return sid, nil
}
