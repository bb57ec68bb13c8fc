package cookieauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/cookieauth/internal/flows"
	"github.com/MrEthical07/cookieauth/session"
)

const msgSessionNotFound = "Session not found"

// GetUser returns the public projection of userID.
func (e *Engine) GetUser(ctx context.Context, userID string) (_ PublicUser, err error) {
	ctx, span := e.startSpan(ctx, "GetUser")
	defer func() { endSpan(span, err) }()

	u, err := e.users.FindByID(ctx, userID)
	if err != nil {
		if isStoreNotFound(err) {
			return PublicUser{}, notFound(msgUserNotFound, err)
		}
		return PublicUser{}, e.fail(ctx, "get_user", internal("Failed to load user", err))
	}
	return Omit(*u), nil
}

// ListSessions returns the live sessions of userID, newest first, marking
// currentSessionID as current.
func (e *Engine) ListSessions(ctx context.Context, userID, currentSessionID string) (_ []SessionView, err error) {
	ctx, span := e.startSpan(ctx, "ListSessions")
	defer func() { endSpan(span, err) }()

	sessions, err := flows.ListSessions(ctx, userID, e.sessions)
	if err != nil {
		return nil, e.fail(ctx, "list_sessions", internal("Failed to list sessions", err))
	}
	out := make([]SessionView, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, SessionView{
			ID:        s.SessionID,
			UserAgent: s.ClientDescriptor,
			CreatedAt: s.CreatedAt,
			ExpiresAt: s.ExpiresAt,
			IsCurrent: s.SessionID == currentSessionID,
		})
	}
	return out, nil
}

// RevokeSession deletes one of the caller's sessions. Sessions owned by
// someone else are reported as not found.
func (e *Engine) RevokeSession(ctx context.Context, userID, sessionID string) (err error) {
	ctx, span := e.startSpan(ctx, "RevokeSession")
	defer func() { endSpan(span, err) }()

	if err := flows.RevokeSession(ctx, userID, sessionID, e.sessions); err != nil {
		var aerr *Error
		if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, flows.ErrSessionNotOwned) {
			aerr = notFound(msgSessionNotFound, err)
		} else {
			aerr = internal("Failed to revoke session", err)
		}
		e.emitAudit(ctx, auditEventSessionRevoked, userID, sessionID, aerr, nil)
		return e.fail(ctx, "revoke_session", aerr)
	}

	e.metricInc(MetricSessionInvalidated)
	e.emitAudit(ctx, auditEventSessionRevoked, userID, sessionID, nil, nil)
	return nil
}
