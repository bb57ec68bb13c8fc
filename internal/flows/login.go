package flows

import (
	"context"
	"errors"
	"log/slog"

	"github.com/MrEthical07/cookieauth/session"
	"github.com/MrEthical07/cookieauth/userstore"
)

// LoginFailureKind classifies login flow failures for root-level mapping.
type LoginFailureKind int

const (
	LoginFailureNone LoginFailureKind = iota
	LoginFailureRateLimited
	LoginFailureThrottle
	LoginFailureInvalidCredentials
	LoginFailureLookup
	LoginFailureVerify
	LoginFailureSession
	LoginFailureSign
)

// ErrInvalidCredentials is reported for both unknown accounts and wrong passwords.
var ErrInvalidCredentials = errors.New("invalid email or password")

// LoginRequest is the already-validated login input.
type LoginRequest struct {
	Email            string
	Password         string
	ClientDescriptor string
}

// LoginResult carries the opened session and its token pair.
type LoginResult struct {
	Failure      LoginFailureKind
	Err          error
	User         *userstore.User
	Session      *session.Session
	AccessToken  string
	RefreshToken string
	Rehashed     bool
}

// LoginDeps captures login flow dependencies.
type LoginDeps struct {
	Users               UserStore
	Sessions            SessionStore
	Tokens              TokenCodec
	Hasher              PasswordHasher
	Limiter             LoginLimiter
	ClientIPFromContext func(context.Context) string
	Logger              *slog.Logger
}

// RunLogin checks credentials and opens a session.
func RunLogin(ctx context.Context, req LoginRequest, deps LoginDeps) LoginResult {
	ip := ""
	if deps.ClientIPFromContext != nil {
		ip = deps.ClientIPFromContext(ctx)
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.CheckLogin(ctx, req.Email, ip); err != nil {
			if isRateLimited(err) {
				return LoginResult{Failure: LoginFailureRateLimited, Err: err}
			}
			return LoginResult{Failure: LoginFailureThrottle, Err: err}
		}
	}

	user, err := deps.Users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, userstore.ErrNotFound) {
			recordFailure(ctx, deps, req.Email, ip)
			return LoginResult{Failure: LoginFailureInvalidCredentials, Err: ErrInvalidCredentials}
		}
		return LoginResult{Failure: LoginFailureLookup, Err: err}
	}

	ok, err := deps.Hasher.Verify(req.Password, user.PasswordHash)
	if err != nil {
		return LoginResult{Failure: LoginFailureVerify, Err: err, User: user}
	}
	if !ok {
		recordFailure(ctx, deps, req.Email, ip)
		return LoginResult{Failure: LoginFailureInvalidCredentials, Err: ErrInvalidCredentials, User: user}
	}

	if deps.Limiter != nil {
		if err := deps.Limiter.ResetLogin(ctx, req.Email, ip); err != nil {
			warn(ctx, deps.Logger, "login throttle reset failed", "error", err)
		}
	}

	rehashed := false
	if deps.Hasher.NeedsRehash(user.PasswordHash) {
		rehashed = rehash(ctx, deps, user, req.Password)
	}

	sess, err := deps.Sessions.Create(ctx, user.ID, req.ClientDescriptor)
	if err != nil {
		return LoginResult{Failure: LoginFailureSession, Err: err, User: user}
	}

	access, refresh, err := issueTokens(deps.Tokens, sess)
	if err != nil {
		return LoginResult{Failure: LoginFailureSign, Err: err, User: user, Session: sess}
	}

	return LoginResult{
		User:         user,
		Session:      sess,
		AccessToken:  access,
		RefreshToken: refresh,
		Rehashed:     rehashed,
	}
}

func recordFailure(ctx context.Context, deps LoginDeps, email, ip string) {
	if deps.Limiter == nil {
		return
	}
	if err := deps.Limiter.IncrementLogin(ctx, email, ip); err != nil && !isRateLimited(err) {
		warn(ctx, deps.Logger, "login throttle increment failed", "error", err)
	}
}

func rehash(ctx context.Context, deps LoginDeps, user *userstore.User, plain string) bool {
	digest, err := deps.Hasher.Hash(plain)
	if err != nil {
		warn(ctx, deps.Logger, "password rehash failed", "user_id", user.ID, "error", err)
		return false
	}
	updated, err := deps.Users.UpdatePasswordHash(ctx, user.ID, digest)
	if err != nil {
		warn(ctx, deps.Logger, "password rehash update failed", "user_id", user.ID, "error", err)
		return false
	}
	*user = *updated
	return true
}
