package flows

import "context"

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Tokens   TokenCodec
	Sessions SessionStore
}

// LogoutResult reports what a best-effort logout touched. Err is either the
// token verification error (nothing deleted) or the store error from Delete.
type LogoutResult struct {
	SessionID string
	UserID    string
	Deleted   bool
	Err       error
}

// RunLogout deletes the session named by a verifiable access token.
func RunLogout(ctx context.Context, accessToken string, deps LogoutDeps) LogoutResult {
	claims, err := deps.Tokens.VerifyAccess(accessToken)
	if err != nil {
		return LogoutResult{Err: err}
	}
	if err := deps.Sessions.Delete(ctx, claims.SessionID); err != nil {
		return LogoutResult{SessionID: claims.SessionID, UserID: claims.UserID, Err: err}
	}
	return LogoutResult{SessionID: claims.SessionID, UserID: claims.UserID, Deleted: true}
}
