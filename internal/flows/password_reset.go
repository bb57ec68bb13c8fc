package flows

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/cookieauth/internal/stores"
	"github.com/MrEthical07/cookieauth/mail"
	"github.com/MrEthical07/cookieauth/userstore"
)

// ResetRequestFailureKind classifies password reset request failures.
type ResetRequestFailureKind int

const (
	ResetRequestFailureNone ResetRequestFailureKind = iota
	ResetRequestFailureUserNotFound
	ResetRequestFailureLookup
	ResetRequestFailureRateLimited
	ResetRequestFailureCount
	ResetRequestFailureIssue
	ResetRequestFailureRender
	ResetRequestFailureSend
)

// ErrResetRateLimited is returned once a user has too many recent reset codes.
var ErrResetRateLimited = errors.New("too many password reset requests")

// ResetRequestResult reports the sent message. Concealed is set when an
// unknown email was answered with a silent success.
type ResetRequestResult struct {
	Failure   ResetRequestFailureKind
	Err       error
	UserID    string
	MessageID string
	URL       string
	Concealed bool
}

// ResetRequestDeps captures password reset request dependencies.
type ResetRequestDeps struct {
	Users               UserStore
	Codes               CodeStore
	Mailer              mail.Mailer
	ResetTTL            time.Duration
	Window              time.Duration
	MaxPerWindow        int
	ConcealUnknownEmail bool
	ResetURL            func(code string, expiresAt time.Time) string
	Now                 func() time.Time
}

// RunRequestPasswordReset issues a reset code and mails its link. Mail
// failures are fatal here, unlike registration.
func RunRequestPasswordReset(ctx context.Context, email string, deps ResetRequestDeps) ResetRequestResult {
	user, err := deps.Users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			if deps.ConcealUnknownEmail {
				return ResetRequestResult{Concealed: true}
			}
			return ResetRequestResult{Failure: ResetRequestFailureUserNotFound, Err: err}
		}
		return ResetRequestResult{Failure: ResetRequestFailureLookup, Err: err}
	}

	since := deps.Now().Add(-deps.Window)
	count, err := deps.Codes.CountRecentByPurpose(ctx, user.ID, stores.PurposePasswordReset, since)
	if err != nil {
		return ResetRequestResult{Failure: ResetRequestFailureCount, Err: err, UserID: user.ID}
	}
	if count >= deps.MaxPerWindow {
		return ResetRequestResult{Failure: ResetRequestFailureRateLimited, Err: ErrResetRateLimited, UserID: user.ID}
	}

	code, err := deps.Codes.Issue(ctx, user.ID, stores.PurposePasswordReset, deps.ResetTTL)
	if err != nil {
		return ResetRequestResult{Failure: ResetRequestFailureIssue, Err: err, UserID: user.ID}
	}

	url := deps.ResetURL(code.Code, code.ExpiresAt)
	msg, err := mail.PasswordReset(user.Email, url)
	if err != nil {
		return ResetRequestResult{Failure: ResetRequestFailureRender, Err: err, UserID: user.ID}
	}
	if deps.Mailer == nil {
		return ResetRequestResult{Failure: ResetRequestFailureSend, Err: errors.New("no mailer configured"), UserID: user.ID}
	}
	id, err := deps.Mailer.Send(ctx, msg)
	if err != nil {
		return ResetRequestResult{Failure: ResetRequestFailureSend, Err: err, UserID: user.ID}
	}
	return ResetRequestResult{UserID: user.ID, MessageID: id, URL: url}
}

// ResetConfirmFailureKind classifies password reset confirmation failures.
type ResetConfirmFailureKind int

const (
	ResetConfirmFailureNone ResetConfirmFailureKind = iota
	ResetConfirmFailureCodeNotFound
	ResetConfirmFailureCodeExpired
	ResetConfirmFailureConsume
	ResetConfirmFailureHash
	ResetConfirmFailureUpdate
	ResetConfirmFailureSessions
)

// ResetConfirmResult carries the updated account.
type ResetConfirmResult struct {
	Failure         ResetConfirmFailureKind
	Err             error
	User            *userstore.User
	SessionsRevoked int
}

// ResetConfirmDeps captures password reset confirmation dependencies.
type ResetConfirmDeps struct {
	Codes    CodeStore
	Users    UserStore
	Sessions SessionStore
	Hasher   PasswordHasher
	Logger   *slog.Logger
}

// RunResetPassword redeems a reset code, replaces the digest and revokes every
// session of the account. Remaining reset codes are deleted best effort.
func RunResetPassword(ctx context.Context, code, newPassword string, deps ResetConfirmDeps) ResetConfirmResult {
	vc, err := deps.Codes.Consume(ctx, code, stores.PurposePasswordReset)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrCodeNotFound):
			return ResetConfirmResult{Failure: ResetConfirmFailureCodeNotFound, Err: err}
		case errors.Is(err, stores.ErrCodeExpired):
			return ResetConfirmResult{Failure: ResetConfirmFailureCodeExpired, Err: err}
		default:
			return ResetConfirmResult{Failure: ResetConfirmFailureConsume, Err: err}
		}
	}

	digest, err := deps.Hasher.Hash(newPassword)
	if err != nil {
		return ResetConfirmResult{Failure: ResetConfirmFailureHash, Err: err}
	}

	user, err := deps.Users.UpdatePasswordHash(ctx, vc.UserID, digest)
	if err != nil {
		return ResetConfirmResult{Failure: ResetConfirmFailureUpdate, Err: err}
	}

	revoked, err := deps.Sessions.DeleteAllForUser(ctx, user.ID)
	if err != nil {
		return ResetConfirmResult{Failure: ResetConfirmFailureSessions, Err: err, User: user}
	}

	if _, err := deps.Codes.DeleteForUser(ctx, user.ID, stores.PurposePasswordReset); err != nil {
		warn(ctx, deps.Logger, "reset code cleanup failed", "user_id", user.ID, "error", err)
	}

	return ResetConfirmResult{User: user, SessionsRevoked: revoked}
}
