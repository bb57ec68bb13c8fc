package session

import "time"

// Session is one login instance of a user on one client.
type Session struct {
	SessionID        string
	UserID           string
	ClientDescriptor string
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// Expired reports whether the session is past its expiry at now.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Remaining is the lifetime left at now, never negative.
func (s *Session) Remaining(now time.Time) time.Duration {
	d := s.ExpiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
