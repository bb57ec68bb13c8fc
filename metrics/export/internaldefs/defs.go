package internaldefs

import (
	"github.com/MrEthical07/cookieauth"
)

// CounterDef binds an Engine counter to its exported name.
type CounterDef struct {
	ID   cookieauth.MetricID
	Name string
	Help string
}

// HistogramDef binds an Engine histogram to its exported name.
type HistogramDef struct {
	ID   cookieauth.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: cookieauth.MetricRegisterSuccess, Name: "cookieauth_register_success_total", Help: "Accounts created."},
	{ID: cookieauth.MetricRegisterDuplicate, Name: "cookieauth_register_duplicate_total", Help: "Registrations rejected because the email exists."},
	{ID: cookieauth.MetricRegisterFailure, Name: "cookieauth_register_failure_total", Help: "Registrations that failed for other reasons."},
	{ID: cookieauth.MetricVerificationEmailFailed, Name: "cookieauth_verification_email_failed_total", Help: "Verification emails that could not be sent."},
	{ID: cookieauth.MetricLoginSuccess, Name: "cookieauth_login_success_total", Help: "Successful logins."},
	{ID: cookieauth.MetricLoginFailure, Name: "cookieauth_login_failure_total", Help: "Failed logins."},
	{ID: cookieauth.MetricLoginRateLimited, Name: "cookieauth_login_rate_limited_total", Help: "Logins rejected by the failure throttle."},
	{ID: cookieauth.MetricPasswordRehashed, Name: "cookieauth_password_rehashed_total", Help: "Digests upgraded on login."},
	{ID: cookieauth.MetricRefreshSuccess, Name: "cookieauth_refresh_success_total", Help: "Successful refreshes."},
	{ID: cookieauth.MetricRefreshFailure, Name: "cookieauth_refresh_failure_total", Help: "Failed refreshes."},
	{ID: cookieauth.MetricRefreshRotated, Name: "cookieauth_refresh_rotated_total", Help: "Refreshes that extended the session and rotated the refresh token."},
	{ID: cookieauth.MetricSessionCreated, Name: "cookieauth_session_created_total", Help: "Sessions created."},
	{ID: cookieauth.MetricSessionInvalidated, Name: "cookieauth_session_invalidated_total", Help: "Sessions deleted by revoke or password reset."},
	{ID: cookieauth.MetricLogout, Name: "cookieauth_logout_total", Help: "Logout requests."},
	{ID: cookieauth.MetricEmailVerificationSuccess, Name: "cookieauth_email_verification_success_total", Help: "Emails verified."},
	{ID: cookieauth.MetricEmailVerificationFailure, Name: "cookieauth_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: cookieauth.MetricPasswordResetRequest, Name: "cookieauth_password_reset_request_total", Help: "Password reset emails sent."},
	{ID: cookieauth.MetricPasswordResetRateLimited, Name: "cookieauth_password_reset_rate_limited_total", Help: "Password reset requests rejected by the rate limit."},
	{ID: cookieauth.MetricPasswordResetConfirmSuccess, Name: "cookieauth_password_reset_confirm_success_total", Help: "Passwords reset."},
	{ID: cookieauth.MetricPasswordResetConfirmFailure, Name: "cookieauth_password_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: cookieauth.MetricAuthenticateFailure, Name: "cookieauth_authenticate_failure_total", Help: "Requests rejected for a missing or invalid access token."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: cookieauth.MetricLoginLatency, Name: "cookieauth_login_duration_seconds", Help: "Login latency."},
}

// HistogramBounds are the finite upper bounds, in seconds, of the Engine
// histogram buckets. The eighth bucket is +Inf.
var HistogramBounds = []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// HistogramBoundSuffix names each bucket for exporters that flatten them.
var HistogramBoundSuffix = []string{
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
