package session

// Session is one issued login session. SupersededBy is empty while the
// session is the account's active one and carries the successor's ID after
// a newer login displaces it.
type Session struct {
	SessionID    string
	AccountID    string
	IssuedAt     int64
	ExpiresAt    int64
	SupersededBy string
}

// Active reports whether the session has not been displaced.
func (s Session) Active() bool {
	return s.SupersededBy == ""
}
