package flows

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/cookieauth/session"
)

// RefreshFailureKind classifies refresh flow failures for root-level mapping.
type RefreshFailureKind int

const (
	RefreshFailureNone RefreshFailureKind = iota
	RefreshFailureDecode
	RefreshFailureSessionNotFound
	RefreshFailureSessionLookup
	RefreshFailureExtend
	RefreshFailureIssueAccess
	RefreshFailureIssueRefresh
)

// RefreshResult carries the new access token and, when the session was
// extended, a rotated refresh token.
type RefreshResult struct {
	Failure      RefreshFailureKind
	Err          error
	SessionID    string
	UserID       string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Extended     bool
}

// RefreshDeps captures refresh flow dependencies.
type RefreshDeps struct {
	Tokens    TokenCodec
	Sessions  SessionStore
	Threshold time.Duration
	Now       func() time.Time
}

// RunRefresh exchanges a refresh token for a new access token. Sessions with
// less than Threshold remaining are extended by one full session TTL and get
// a new refresh token bound to the same session id. The user id always comes
// from the session row.
func RunRefresh(ctx context.Context, refreshToken string, deps RefreshDeps) RefreshResult {
	claims, err := deps.Tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureDecode, Err: err}
	}
	sessionID := claims.SessionID

	sess, err := deps.Sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err, SessionID: sessionID}
		}
		return RefreshResult{Failure: RefreshFailureSessionLookup, Err: err, SessionID: sessionID}
	}

	now := deps.Now()
	if sess.Expired(now) {
		return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: session.ErrSessionNotFound, SessionID: sessionID}
	}

	result := RefreshResult{
		SessionID: sess.SessionID,
		UserID:    sess.UserID,
		ExpiresAt: sess.ExpiresAt,
	}

	if sess.Remaining(now) < deps.Threshold {
		newExpiry := now.Add(deps.Sessions.TTL())
		if err := deps.Sessions.Extend(ctx, sess.SessionID, newExpiry); err != nil {
			if errors.Is(err, session.ErrSessionNotFound) {
				return RefreshResult{Failure: RefreshFailureSessionNotFound, Err: err, SessionID: sessionID, UserID: sess.UserID}
			}
			return RefreshResult{Failure: RefreshFailureExtend, Err: err, SessionID: sessionID, UserID: sess.UserID}
		}
		result.Extended = true
		result.ExpiresAt = newExpiry

		refresh, err := deps.Tokens.SignRefresh(sess.SessionID)
		if err != nil {
			return RefreshResult{Failure: RefreshFailureIssueRefresh, Err: err, SessionID: sessionID, UserID: sess.UserID}
		}
		result.RefreshToken = refresh
	}

	access, err := deps.Tokens.SignAccess(sess.UserID, sess.SessionID)
	if err != nil {
		return RefreshResult{Failure: RefreshFailureIssueAccess, Err: err, SessionID: sessionID, UserID: sess.UserID}
	}
	result.AccessToken = access
	return result
}
