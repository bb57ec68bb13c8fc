package cookieauth

import (
	"time"

	"github.com/MrEthical07/cookieauth/userstore"
)

// User is a stored account, including its password digest.
type User = userstore.User

// PublicUser is the account projection returned to callers. It never
// carries the password digest.
type PublicUser struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Omit strips the password digest from u.
func Omit(u User) PublicUser {
	return PublicUser{
		ID:        u.ID,
		Email:     u.Email,
		Verified:  u.Verified,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

// RegisterInput is the register request. ClientDescriptor is normally the
// caller's User-Agent.
type RegisterInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	ConfirmPassword  string `json:"confirmPassword"`
	ClientDescriptor string `json:"-"`
}

// LoginInput is the login request.
type LoginInput struct {
	Email            string `json:"email"`
	Password         string `json:"password"`
	ClientDescriptor string `json:"-"`
}

// ResetPasswordInput redeems a password reset code.
type ResetPasswordInput struct {
	Code     string `json:"verificationCode"`
	Password string `json:"password"`
}

// AuthResult is returned by Register and Login.
type AuthResult struct {
	User             PublicUser
	SessionID        string
	AccessToken      string
	RefreshToken     string
	SessionExpiresAt time.Time
}

// RefreshResult is returned by Refresh. RefreshToken is empty unless the
// session was extended, in which case the caller must replace its refresh
// credential.
type RefreshResult struct {
	AccessToken      string
	RefreshToken     string
	SessionExpiresAt time.Time
}

// Rotated reports whether a new refresh token was issued.
func (r RefreshResult) Rotated() bool { return r.RefreshToken != "" }

// ResetRequestResult identifies the sent reset email. MessageID is empty when
// an unknown address was answered silently.
type ResetRequestResult struct {
	MessageID string
}

// SessionView is one entry of ListSessions.
type SessionView struct {
	ID        string    `json:"id"`
	UserAgent string    `json:"userAgent,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
	IsCurrent bool      `json:"isCurrent,omitempty"`
}

// Principal is the identity proven by a valid access token.
type Principal struct {
	UserID    string
	SessionID string
	ExpiresAt time.Time
}
