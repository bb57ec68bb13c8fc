package cookieauth

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/MrEthical07/cookieauth/internal/flows"
	"github.com/MrEthical07/cookieauth/jwt"
	"github.com/MrEthical07/cookieauth/session"
)

const (
	msgInvalidCredentials = "Invalid email or password"
	msgEmailTaken         = "Email already in use"
	msgLoginThrottled     = "Too many login attempts, please try again later."
	msgMissingRefresh     = "Missing refresh token"
	msgInvalidRefresh     = "Invalid refresh token"
	msgSessionExpired     = "Session expired"
	msgNotAuthorized      = "Not authorized"
	msgTokenExpired       = "Token expired"
	msgInvalidToken       = "Invalid token"
)

// Register creates an unverified account, mails its verification link and
// opens the first session. A mail failure does not fail the call.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (_ *AuthResult, err error) {
	ctx, span := e.startSpan(ctx, "Register")
	defer func() { endSpan(span, err) }()

	if err := in.validate(e.config.Password); err != nil {
		e.metricInc(MetricRegisterFailure)
		e.emitAudit(ctx, auditEventRegisterFailure, "", "", err, nil)
		return nil, err
	}

	res := flows.RunRegister(ctx, flows.RegisterRequest{
		Email:            in.Email,
		Password:         in.Password,
		ClientDescriptor: in.ClientDescriptor,
	}, flows.RegisterDeps{
		Users:           e.users,
		Sessions:        e.sessions,
		Codes:           e.codes,
		Tokens:          e.codec,
		Hasher:          e.hasher,
		Mailer:          e.mailer,
		VerificationTTL: e.config.Verification.EmailTTL,
		VerifyURL:       e.verifyURL,
		Logger:          e.logger,
	})

	if res.Failure != flows.RegisterFailureNone {
		var aerr *Error
		if res.Failure == flows.RegisterFailureEmailTaken {
			e.metricInc(MetricRegisterDuplicate)
			aerr = newError(KindConflict, msgEmailTaken, res.Err)
		} else {
			e.metricInc(MetricRegisterFailure)
			aerr = internal("Failed to create account", res.Err)
		}
		userID := ""
		if res.User != nil {
			userID = res.User.ID
		}
		e.emitAudit(ctx, auditEventRegisterFailure, userID, "", aerr, nil)
		return nil, e.fail(ctx, "register", aerr)
	}

	e.metricInc(MetricRegisterSuccess)
	e.metricInc(MetricSessionCreated)
	if !res.VerificationSent {
		e.metricInc(MetricVerificationEmailFailed)
	}
	e.emitAudit(ctx, auditEventRegisterSuccess, res.User.ID, res.Session.SessionID, nil, func() map[string]string {
		if res.VerificationSent {
			return nil
		}
		return map[string]string{"verification_email": "failed"}
	})

	return authResult(res.User, res.Session, res.AccessToken, res.RefreshToken), nil
}

// Login checks credentials and opens a new session. Unknown accounts and bad
// passwords give the same Unauthorized error.
func (e *Engine) Login(ctx context.Context, in LoginInput) (_ *AuthResult, err error) {
	ctx, span := e.startSpan(ctx, "Login")
	defer func() { endSpan(span, err) }()

	started := time.Now()
	defer func() {
		if e.metrics != nil {
			e.metrics.Observe(MetricLoginLatency, time.Since(started))
		}
	}()

	if err := in.validate(e.config.Password); err != nil {
		e.metricInc(MetricLoginFailure)
		e.emitAudit(ctx, auditEventLoginFailure, "", "", err, nil)
		return nil, err
	}

	res := flows.RunLogin(ctx, flows.LoginRequest{
		Email:            in.Email,
		Password:         in.Password,
		ClientDescriptor: in.ClientDescriptor,
	}, flows.LoginDeps{
		Users:               e.users,
		Sessions:            e.sessions,
		Tokens:              e.codec,
		Hasher:              e.hasher,
		Limiter:             e.loginLimiter(),
		ClientIPFromContext: ClientIPFromContext,
		Logger:              e.logger,
	})

	userID := ""
	if res.User != nil {
		userID = res.User.ID
	}

	switch res.Failure {
	case flows.LoginFailureNone:
	case flows.LoginFailureRateLimited:
		e.metricInc(MetricLoginRateLimited)
		aerr := newError(KindTooManyRequests, msgLoginThrottled, res.Err)
		e.emitAudit(ctx, auditEventLoginRateLimited, "", "", aerr, nil)
		return nil, e.fail(ctx, "login", aerr)
	case flows.LoginFailureInvalidCredentials:
		e.metricInc(MetricLoginFailure)
		aerr := unauthorized(msgInvalidCredentials, res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, userID, "", aerr, nil)
		return nil, e.fail(ctx, "login", aerr)
	default:
		e.metricInc(MetricLoginFailure)
		aerr := internal("Login failed", res.Err)
		e.emitAudit(ctx, auditEventLoginFailure, userID, "", aerr, nil)
		return nil, e.fail(ctx, "login", aerr)
	}

	e.metricInc(MetricLoginSuccess)
	e.metricInc(MetricSessionCreated)
	if res.Rehashed {
		e.metricInc(MetricPasswordRehashed)
	}
	e.emitAudit(ctx, auditEventLoginSuccess, res.User.ID, res.Session.SessionID, nil, nil)

	return authResult(res.User, res.Session, res.AccessToken, res.RefreshToken), nil
}

// Refresh exchanges a refresh token for a new access token. When the session
// is close to expiry it is extended and a new refresh token is returned too.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (_ *RefreshResult, err error) {
	ctx, span := e.startSpan(ctx, "Refresh")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		e.metricInc(MetricRefreshFailure)
		aerr := unauthorized(msgMissingRefresh, nil)
		e.emitAudit(ctx, auditEventRefreshFailure, "", "", aerr, nil)
		return nil, aerr
	}

	res := flows.RunRefresh(ctx, refreshToken, flows.RefreshDeps{
		Tokens:    e.codec,
		Sessions:  e.sessions,
		Threshold: e.config.Session.RefreshThreshold,
		Now:       e.now,
	})

	if res.Failure != flows.RefreshFailureNone {
		e.metricInc(MetricRefreshFailure)
		var aerr *Error
		switch res.Failure {
		case flows.RefreshFailureDecode:
			aerr = unauthorized(msgInvalidRefresh, res.Err)
		case flows.RefreshFailureSessionNotFound:
			e.metricInc(MetricSessionInvalidated)
			aerr = unauthorized(msgSessionExpired, res.Err)
		default:
			aerr = internal("Failed to refresh session", res.Err)
		}
		e.emitAudit(ctx, auditEventRefreshFailure, res.UserID, res.SessionID, aerr, nil)
		return nil, e.fail(ctx, "refresh", aerr)
	}

	e.metricInc(MetricRefreshSuccess)
	if res.Extended {
		e.metricInc(MetricRefreshRotated)
	}
	span.SetAttributes(attribute.Bool("cookieauth.session_extended", res.Extended))
	e.emitAudit(ctx, auditEventRefreshSuccess, res.UserID, res.SessionID, nil, func() map[string]string {
		if !res.Extended {
			return nil
		}
		return map[string]string{"extended": "true"}
	})

	return &RefreshResult{
		AccessToken:      res.AccessToken,
		RefreshToken:     res.RefreshToken,
		SessionExpiresAt: res.ExpiresAt,
	}, nil
}

// Logout deletes the session named by accessToken. It is best effort: an
// unverifiable token or a store failure is logged and otherwise ignored.
func (e *Engine) Logout(ctx context.Context, accessToken string) {
	ctx, span := e.startSpan(ctx, "Logout")
	defer span.End()

	if accessToken == "" {
		return
	}

	res := flows.RunLogout(ctx, accessToken, flows.LogoutDeps{
		Tokens:   e.codec,
		Sessions: e.sessions,
	})
	switch {
	case res.Deleted:
		e.metricInc(MetricLogout)
		e.metricInc(MetricSessionInvalidated)
		e.emitAudit(ctx, auditEventLogout, res.UserID, res.SessionID, nil, nil)
	case res.SessionID != "":
		e.logger.WarnContext(ctx, "logout: session delete failed", "session_id", res.SessionID, "error", res.Err)
		e.emitAudit(ctx, auditEventLogout, res.UserID, res.SessionID, res.Err, nil)
	default:
		e.logger.DebugContext(ctx, "logout: access token rejected", "error", res.Err)
	}
}

// Authenticate verifies an access token without touching Redis.
func (e *Engine) Authenticate(ctx context.Context, accessToken string) (*Principal, error) {
	if accessToken == "" {
		e.metricInc(MetricAuthenticateFailure)
		return nil, unauthorized(msgNotAuthorized, nil).withCode(CodeInvalidAccessToken)
	}
	claims, err := flows.Authenticate(accessToken, e.codec)
	if err != nil {
		e.metricInc(MetricAuthenticateFailure)
		if errors.Is(err, jwt.ErrExpired) {
			return nil, unauthorized(msgTokenExpired, err).withCode(CodeInvalidAccessToken)
		}
		return nil, unauthorized(msgInvalidToken, err).withCode(CodeInvalidAccessToken)
	}
	p := &Principal{UserID: claims.UserID, SessionID: claims.SessionID}
	if claims.ExpiresAt != nil {
		p.ExpiresAt = claims.ExpiresAt.Time
	}
	return p, nil
}

func authResult(u *User, sess *session.Session, access, refresh string) *AuthResult {
	return &AuthResult{
		User:             Omit(*u),
		SessionID:        sess.SessionID,
		AccessToken:      access,
		RefreshToken:     refresh,
		SessionExpiresAt: sess.ExpiresAt,
	}
}
