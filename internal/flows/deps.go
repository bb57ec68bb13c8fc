package flows

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/cookieauth/internal/rate"
	"github.com/MrEthical07/cookieauth/internal/stores"
	"github.com/MrEthical07/cookieauth/jwt"
	"github.com/MrEthical07/cookieauth/session"
	"github.com/MrEthical07/cookieauth/userstore"
)

// UserStore is the account persistence used by the flows.
type UserStore = userstore.Store

// SessionStore is the subset of *session.Store the flows call.
type SessionStore interface {
	TTL() time.Duration
	Create(ctx context.Context, userID, clientDescriptor string) (*session.Session, error)
	Get(ctx context.Context, sessionID string) (*session.Session, error)
	Extend(ctx context.Context, sessionID string, newExpiry time.Time) error
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	ListActive(ctx context.Context, userID string) ([]*session.Session, error)
}

// CodeStore is the subset of *stores.VerificationStore the flows call.
type CodeStore interface {
	Issue(ctx context.Context, userID string, purpose stores.Purpose, ttl time.Duration) (*stores.VerificationCode, error)
	Consume(ctx context.Context, code string, purpose stores.Purpose) (*stores.VerificationCode, error)
	CountRecentByPurpose(ctx context.Context, userID string, purpose stores.Purpose, since time.Time) (int, error)
	DeleteForUser(ctx context.Context, userID string, purpose stores.Purpose) (int, error)
}

// TokenCodec is the subset of *jwt.Codec the flows call.
type TokenCodec interface {
	SignAccess(userID, sessionID string) (string, error)
	SignRefresh(sessionID string) (string, error)
	VerifyAccess(token string) (*jwt.AccessClaims, error)
	VerifyRefresh(token string) (*jwt.RefreshClaims, error)
}

// PasswordHasher is the subset of *password.Hasher the flows call.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, digest string) (bool, error)
	NeedsRehash(digest string) bool
}

// LoginLimiter throttles failed logins. A nil LoginLimiter disables throttling.
type LoginLimiter interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier, ip string) error
}

// issueTokens mints the access and refresh pair for sess.
func issueTokens(codec TokenCodec, sess *session.Session) (access, refresh string, err error) {
	access, err = codec.SignAccess(sess.UserID, sess.SessionID)
	if err != nil {
		return "", "", err
	}
	refresh, err = codec.SignRefresh(sess.SessionID)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func warn(ctx context.Context, logger *slog.Logger, msg string, args ...any) {
	if logger == nil {
		return
	}
	logger.WarnContext(ctx, msg, args...)
}

func isRateLimited(err error) bool {
	return errors.Is(err, rate.ErrRateLimited)
}
