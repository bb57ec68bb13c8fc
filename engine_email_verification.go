package cookieauth

import (
	"context"

	"github.com/MrEthical07/cookieauth/internal/flows"
)

const msgInvalidCode = "Invalid or expired verification code"

// VerifyEmail redeems an email verification code and returns the verified
// account. Absent, wrong-purpose and expired codes are NotFound; an expired
// code additionally carries CodeExpiredVerificationCode.
func (e *Engine) VerifyEmail(ctx context.Context, code string) (_ PublicUser, err error) {
	ctx, span := e.startSpan(ctx, "VerifyEmail")
	defer func() { endSpan(span, err) }()

	if err := validateVerificationCode(code); err != nil {
		e.metricInc(MetricEmailVerificationFailure)
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, "", "", err, nil)
		return PublicUser{}, err
	}

	res := flows.RunVerifyEmail(ctx, code, flows.VerifyEmailDeps{
		Codes: e.codes,
		Users: e.users,
	})

	if res.Failure != flows.VerifyEmailFailureNone {
		e.metricInc(MetricEmailVerificationFailure)
		var aerr *Error
		switch res.Failure {
		case flows.VerifyEmailFailureCodeNotFound:
			aerr = notFound(msgInvalidCode, res.Err)
		case flows.VerifyEmailFailureCodeExpired:
			aerr = notFound(msgInvalidCode, res.Err).withCode(CodeExpiredVerificationCode)
		default:
			aerr = internal("Failed to verify email", res.Err)
		}
		e.emitAudit(ctx, auditEventEmailVerificationConfirm, "", "", aerr, nil)
		return PublicUser{}, e.fail(ctx, "verify_email", aerr)
	}

	e.metricInc(MetricEmailVerificationSuccess)
	e.emitAudit(ctx, auditEventEmailVerificationConfirm, res.User.ID, "", nil, nil)
	return Omit(*res.User), nil
}
