package flows

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/MrEthical07/cookieauth/internal/stores"
	"github.com/MrEthical07/cookieauth/mail"
	"github.com/MrEthical07/cookieauth/session"
	"github.com/MrEthical07/cookieauth/userstore"
)

// RegisterFailureKind classifies register flow failures for root-level mapping.
type RegisterFailureKind int

const (
	RegisterFailureNone RegisterFailureKind = iota
	RegisterFailureEmailTaken
	RegisterFailureLookup
	RegisterFailureHash
	RegisterFailureCreate
	RegisterFailureIssueCode
	RegisterFailureSession
	RegisterFailureSign
)

// RegisterRequest is the already-validated register input.
type RegisterRequest struct {
	Email            string
	Password         string
	ClientDescriptor string
}

// RegisterResult carries the new account and its first session.
type RegisterResult struct {
	Failure          RegisterFailureKind
	Err              error
	User             *userstore.User
	Session          *session.Session
	AccessToken      string
	RefreshToken     string
	VerificationSent bool
}

// RegisterDeps captures register flow dependencies.
type RegisterDeps struct {
	Users           UserStore
	Sessions        SessionStore
	Codes           CodeStore
	Tokens          TokenCodec
	Hasher          PasswordHasher
	Mailer          mail.Mailer
	VerificationTTL time.Duration
	VerifyURL       func(code string) string
	Logger          *slog.Logger
}

// RunRegister creates an unverified account, sends its verification link and
// opens the first session. A mail failure is logged and does not abort.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) RegisterResult {
	existing, err := deps.Users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil && existing != nil:
		return RegisterResult{Failure: RegisterFailureEmailTaken, Err: userstore.ErrEmailTaken}
	case err != nil && !errors.Is(err, userstore.ErrNotFound):
		return RegisterResult{Failure: RegisterFailureLookup, Err: err}
	}

	digest, err := deps.Hasher.Hash(req.Password)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureHash, Err: err}
	}

	user, err := deps.Users.Create(ctx, req.Email, digest)
	if err != nil {
		if errors.Is(err, userstore.ErrEmailTaken) {
			return RegisterResult{Failure: RegisterFailureEmailTaken, Err: err}
		}
		return RegisterResult{Failure: RegisterFailureCreate, Err: err}
	}

	code, err := deps.Codes.Issue(ctx, user.ID, stores.PurposeEmailVerification, deps.VerificationTTL)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureIssueCode, Err: err, User: user}
	}

	sent := sendVerification(ctx, deps, user, code.Code)

	sess, err := deps.Sessions.Create(ctx, user.ID, req.ClientDescriptor)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureSession, Err: err, User: user}
	}

	access, refresh, err := issueTokens(deps.Tokens, sess)
	if err != nil {
		return RegisterResult{Failure: RegisterFailureSign, Err: err, User: user, Session: sess}
	}

	return RegisterResult{
		User:             user,
		Session:          sess,
		AccessToken:      access,
		RefreshToken:     refresh,
		VerificationSent: sent,
	}
}

func sendVerification(ctx context.Context, deps RegisterDeps, user *userstore.User, code string) bool {
	if deps.Mailer == nil {
		warn(ctx, deps.Logger, "verification email skipped: no mailer configured", "user_id", user.ID)
		return false
	}
	msg, err := mail.VerifyEmail(user.Email, deps.VerifyURL(code))
	if err != nil {
		warn(ctx, deps.Logger, "verification email render failed", "user_id", user.ID, "error", err)
		return false
	}
	if _, err := deps.Mailer.Send(ctx, msg); err != nil {
		warn(ctx, deps.Logger, "verification email send failed", "user_id", user.ID, "error", err)
		return false
	}
	return true
}
