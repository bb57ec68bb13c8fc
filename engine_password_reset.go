package cookieauth

import (
	"context"
	"strconv"

	"github.com/MrEthical07/cookieauth/internal/flows"
)

const (
	msgUserNotFound      = "User not found"
	msgResetRateLimited  = "Too many password reset requests, please try again later."
	msgResetFailed       = "Failed to reset password"
	msgResetEmailFailure = "Failed to send password reset email"
)

// RequestPasswordReset issues a one-hour reset code for email and mails the
// reset link. At most Reset.MaxPerWindow codes are issued per Reset.Window.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (_ *ResetRequestResult, err error) {
	ctx, span := e.startSpan(ctx, "RequestPasswordReset")
	defer func() { endSpan(span, err) }()

	if err := validateResetEmail(email); err != nil {
		e.emitAudit(ctx, auditEventPasswordResetRequest, "", "", err, nil)
		return nil, err
	}

	res := flows.RunRequestPasswordReset(ctx, email, flows.ResetRequestDeps{
		Users:               e.users,
		Codes:               e.codes,
		Mailer:              e.mailer,
		ResetTTL:            e.config.Reset.TTL,
		Window:              e.config.Reset.Window,
		MaxPerWindow:        e.config.Reset.MaxPerWindow,
		ConcealUnknownEmail: e.config.Reset.ConcealUnknownEmail,
		ResetURL:            e.resetURL,
		Now:                 e.now,
	})

	if res.Failure != flows.ResetRequestFailureNone {
		var aerr *Error
		switch res.Failure {
		case flows.ResetRequestFailureUserNotFound:
			aerr = notFound(msgUserNotFound, res.Err)
		case flows.ResetRequestFailureRateLimited:
			e.metricInc(MetricPasswordResetRateLimited)
			aerr = newError(KindTooManyRequests, msgResetRateLimited, res.Err)
		case flows.ResetRequestFailureRender, flows.ResetRequestFailureSend:
			aerr = internal(msgResetEmailFailure, res.Err)
		default:
			aerr = internal("Failed to request password reset", res.Err)
		}
		e.emitAudit(ctx, auditEventPasswordResetRequest, res.UserID, "", aerr, nil)
		return nil, e.fail(ctx, "request_password_reset", aerr)
	}

	e.metricInc(MetricPasswordResetRequest)
	e.emitAudit(ctx, auditEventPasswordResetRequest, res.UserID, "", nil, func() map[string]string {
		return map[string]string{"concealed": strconv.FormatBool(res.Concealed)}
	})
	return &ResetRequestResult{MessageID: res.MessageID}, nil
}

// ResetPassword redeems a reset code, stores the new password digest and
// revokes every session of the account.
func (e *Engine) ResetPassword(ctx context.Context, in ResetPasswordInput) (_ PublicUser, err error) {
	ctx, span := e.startSpan(ctx, "ResetPassword")
	defer func() { endSpan(span, err) }()

	if err := in.validate(e.config.Password); err != nil {
		e.metricInc(MetricPasswordResetConfirmFailure)
		e.emitAudit(ctx, auditEventPasswordResetConfirm, "", "", err, nil)
		return PublicUser{}, err
	}

	res := flows.RunResetPassword(ctx, in.Code, in.Password, flows.ResetConfirmDeps{
		Codes:    e.codes,
		Users:    e.users,
		Sessions: e.sessions,
		Hasher:   e.hasher,
		Logger:   e.logger,
	})

	if res.Failure != flows.ResetConfirmFailureNone {
		e.metricInc(MetricPasswordResetConfirmFailure)
		var aerr *Error
		switch res.Failure {
		case flows.ResetConfirmFailureCodeNotFound:
			aerr = notFound(msgInvalidCode, res.Err)
		case flows.ResetConfirmFailureCodeExpired:
			aerr = notFound(msgInvalidCode, res.Err).withCode(CodeExpiredVerificationCode)
		case flows.ResetConfirmFailureUpdate:
			if isStoreNotFound(res.Err) {
				aerr = internal(msgResetFailed+": account vanished", res.Err)
			} else {
				aerr = internal(msgResetFailed, res.Err)
			}
		default:
			aerr = internal(msgResetFailed, res.Err)
		}
		userID := ""
		if res.User != nil {
			userID = res.User.ID
		}
		e.emitAudit(ctx, auditEventPasswordResetConfirm, userID, "", aerr, nil)
		return PublicUser{}, e.fail(ctx, "reset_password", aerr)
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	for i := 0; i < res.SessionsRevoked; i++ {
		e.metricInc(MetricSessionInvalidated)
	}
	e.emitAudit(ctx, auditEventPasswordResetConfirm, res.User.ID, "", nil, func() map[string]string {
		return map[string]string{"sessions_revoked": strconv.Itoa(res.SessionsRevoked)}
	})
	return Omit(*res.User), nil
}
