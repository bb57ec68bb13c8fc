package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/cookieauth/jwt"
	"github.com/MrEthical07/cookieauth/session"
)

// ErrSessionNotOwned is returned when a caller targets someone else's session.
var ErrSessionNotOwned = errors.New("session not owned by caller")

// ListSessions returns the caller's live sessions, newest first.
func ListSessions(ctx context.Context, userID string, sessions SessionStore) ([]*session.Session, error) {
	return sessions.ListActive(ctx, userID)
}

// RevokeSession deletes sessionID if it belongs to userID. Foreign and
// missing sessions are indistinguishable to the caller.
func RevokeSession(ctx context.Context, userID, sessionID string, sessions SessionStore) error {
	sess, err := sessions.Get(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.UserID != userID {
		return ErrSessionNotOwned
	}
	return sessions.Delete(ctx, sessionID)
}

// Authenticate verifies an access token. It performs no I/O.
func Authenticate(accessToken string, tokens TokenCodec) (*jwt.AccessClaims, error) {
	return tokens.VerifyAccess(accessToken)
}
