package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/cookieauth/internal/stores"
	"github.com/MrEthical07/cookieauth/userstore"
)

// VerifyEmailFailureKind classifies email verification failures.
type VerifyEmailFailureKind int

const (
	VerifyEmailFailureNone VerifyEmailFailureKind = iota
	VerifyEmailFailureCodeNotFound
	VerifyEmailFailureCodeExpired
	VerifyEmailFailureConsume
	VerifyEmailFailureUpdate
)

// VerifyEmailResult carries the now-verified account.
type VerifyEmailResult struct {
	Failure VerifyEmailFailureKind
	Err     error
	User    *userstore.User
}

// VerifyEmailDeps captures email verification dependencies.
type VerifyEmailDeps struct {
	Codes CodeStore
	Users UserStore
}

// RunVerifyEmail redeems an email verification code. The code is gone once
// Consume succeeds, even if marking the account fails afterwards.
func RunVerifyEmail(ctx context.Context, code string, deps VerifyEmailDeps) VerifyEmailResult {
	vc, err := deps.Codes.Consume(ctx, code, stores.PurposeEmailVerification)
	if err != nil {
		switch {
		case errors.Is(err, stores.ErrCodeNotFound):
			return VerifyEmailResult{Failure: VerifyEmailFailureCodeNotFound, Err: err}
		case errors.Is(err, stores.ErrCodeExpired):
			return VerifyEmailResult{Failure: VerifyEmailFailureCodeExpired, Err: err}
		default:
			return VerifyEmailResult{Failure: VerifyEmailFailureConsume, Err: err}
		}
	}

	user, err := deps.Users.MarkVerified(ctx, vc.UserID)
	if err != nil {
		return VerifyEmailResult{Failure: VerifyEmailFailureUpdate, Err: err}
	}
	return VerifyEmailResult{User: user}
}
