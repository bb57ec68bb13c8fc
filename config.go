package cookieauth

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Config holds every Engine tunable. Field tags name the keys used by the
// server's YAML configuration.
type Config struct {
	// AppOrigin is the web application base URL used in emailed links.
	AppOrigin    string             `koanf:"app_origin"`
	JWT          JWTConfig          `koanf:"jwt"`
	Session      SessionConfig      `koanf:"session"`
	Verification VerificationConfig `koanf:"verification"`
	Password     PasswordConfig     `koanf:"password"`
	Reset        ResetConfig        `koanf:"reset"`
	Login        LoginConfig        `koanf:"login"`
	Mail         MailConfig         `koanf:"mail"`
	Cookie       CookieConfig       `koanf:"cookie"`
	Audit        AuditConfig        `koanf:"audit"`
	Metrics      MetricsConfig      `koanf:"metrics"`
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig configures the access and refresh token codec. The two secrets
// must differ.
type JWTConfig struct {
	AccessSecret  string        `koanf:"access_secret"`
	RefreshSecret string        `koanf:"refresh_secret"`
	AccessTTL     time.Duration `koanf:"access_ttl"`
	RefreshTTL    time.Duration `koanf:"refresh_ttl"`
	Audience      string        `koanf:"audience"`
	Leeway        time.Duration `koanf:"leeway"`
}

/*
====================================
SESSION CONFIG
====================================
*/

// SessionConfig configures the Redis session store. RedisPrefix namespaces
// every key the Engine writes, including verification codes and throttles.
type SessionConfig struct {
	RedisPrefix      string        `koanf:"redis_prefix"`
	TTL              time.Duration `koanf:"ttl"`
	RefreshThreshold time.Duration `koanf:"refresh_threshold"`
}

/*
====================================
VERIFICATION / RESET CONFIG
====================================
*/

type VerificationConfig struct {
	EmailTTL time.Duration `koanf:"email_ttl"`
}

// ResetConfig governs password reset codes. At most MaxPerWindow codes may
// be issued to one account within Window.
type ResetConfig struct {
	TTL          time.Duration `koanf:"ttl"`
	Window       time.Duration `koanf:"window"`
	MaxPerWindow int           `koanf:"max_per_window"`
	// ConcealUnknownEmail answers reset requests for unknown addresses with
	// success instead of NotFound.
	ConcealUnknownEmail bool `koanf:"conceal_unknown_email"`
}

/*
====================================
PASSWORD CONFIG
====================================
*/

type PasswordConfig struct {
	Memory      uint32 `koanf:"memory"`
	Time        uint32 `koanf:"time"`
	Parallelism uint8  `koanf:"parallelism"`
	SaltLength  uint32 `koanf:"salt_length"`
	KeyLength   uint32 `koanf:"key_length"`
	MinLength   int    `koanf:"min_length"`
	MaxLength   int    `koanf:"max_length"`
}

/*
====================================
LOGIN THROTTLE CONFIG
====================================
*/

type LoginConfig struct {
	ThrottleEnabled  bool          `koanf:"throttle_enabled"`
	EnableIPThrottle bool          `koanf:"enable_ip_throttle"`
	MaxAttempts      int           `koanf:"max_attempts"`
	Cooldown         time.Duration `koanf:"cooldown"`
}

/*
====================================
MAIL / COOKIE CONFIG
====================================
*/

// MailConfig selects the outbound mailer. Provider is "log" or "resend".
type MailConfig struct {
	Provider     string `koanf:"provider"`
	From         string `koanf:"from"`
	ResendAPIKey string `koanf:"resend_api_key"`
	RedirectTo   string `koanf:"redirect_to"`
}

// CookieConfig controls the auth cookies. SameSite is "strict", "lax" or "none".
type CookieConfig struct {
	Secure      bool   `koanf:"secure"`
	SameSite    string `koanf:"same_site"`
	Domain      string `koanf:"domain"`
	RefreshPath string `koanf:"refresh_path"`
}

// SameSiteMode converts SameSite to its net/http value.
func (c CookieConfig) SameSiteMode() http.SameSite {
	switch strings.ToLower(c.SameSite) {
	case "lax":
		return http.SameSiteLaxMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteStrictMode
	}
}

/*
====================================
AUDIT / METRICS CONFIG
====================================
*/

type AuditConfig struct {
	Enabled    bool `koanf:"enabled"`
	BufferSize int  `koanf:"buffer_size"`
	DropIfFull bool `koanf:"drop_if_full"`
}

type MetricsConfig struct {
	Enabled                 bool `koanf:"enabled"`
	EnableLatencyHistograms bool `koanf:"enable_latency_histograms"`
}

// DefaultConfig returns the production defaults. Secrets and AppOrigin are
// left empty and must be supplied.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			Audience:   "user",
		},
		Session: SessionConfig{
			RedisPrefix:      "ca",
			TTL:              30 * 24 * time.Hour,
			RefreshThreshold: 24 * time.Hour,
		},
		Verification: VerificationConfig{
			EmailTTL: 365 * 24 * time.Hour,
		},
		Password: PasswordConfig{
			Memory:      64 * 1024,
			Time:        3,
			Parallelism: 2,
			SaltLength:  16,
			KeyLength:   32,
			MinLength:   6,
			MaxLength:   255,
		},
		Reset: ResetConfig{
			TTL:          time.Hour,
			Window:       5 * time.Minute,
			MaxPerWindow: 1,
		},
		Login: LoginConfig{
			ThrottleEnabled: true,
			MaxAttempts:     10,
			Cooldown:        15 * time.Minute,
		},
		Mail: MailConfig{
			Provider: "log",
		},
		Cookie: CookieConfig{
			Secure:      true,
			SameSite:    "strict",
			RefreshPath: "/auth/refresh",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	// Origin
	if c.AppOrigin == "" {
		return errors.New("AppOrigin is required")
	}
	if u, err := url.Parse(c.AppOrigin); err != nil || u.Scheme == "" || u.Host == "" {
		return errors.New("AppOrigin must be an absolute URL")
	}

	// JWT
	if c.JWT.AccessSecret == "" || c.JWT.RefreshSecret == "" {
		return errors.New("JWT AccessSecret and RefreshSecret are required")
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.Leeway < 0 {
		return errors.New("JWT Leeway must be >= 0")
	}

	// Session
	if c.Session.TTL <= 0 {
		return errors.New("Session TTL must be > 0")
	}
	if c.Session.RefreshThreshold <= 0 || c.Session.RefreshThreshold >= c.Session.TTL {
		return errors.New("Session RefreshThreshold must be > 0 and < TTL")
	}
	if c.JWT.RefreshTTL < c.Session.TTL {
		return errors.New("JWT RefreshTTL must be >= Session TTL")
	}

	// Codes
	if c.Verification.EmailTTL <= 0 {
		return errors.New("Verification EmailTTL must be > 0")
	}
	if c.Reset.TTL <= 0 {
		return errors.New("Reset TTL must be > 0")
	}
	if c.Reset.Window <= 0 || c.Reset.MaxPerWindow < 1 {
		return errors.New("Reset Window must be > 0 and MaxPerWindow >= 1")
	}

	// Password
	if c.Password.MinLength < 1 || c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password length bounds are invalid")
	}
	if c.Password.Memory < 8*1024 {
		return errors.New("Password Memory must be >= 8192 KB")
	}
	if c.Password.Time < 1 || c.Password.Parallelism < 1 {
		return errors.New("Password Time and Parallelism must be >= 1")
	}
	if c.Password.SaltLength < 16 || c.Password.KeyLength < 16 {
		return errors.New("Password SaltLength and KeyLength must be >= 16")
	}

	// Login throttle
	if c.Login.ThrottleEnabled && (c.Login.MaxAttempts < 1 || c.Login.Cooldown <= 0) {
		return errors.New("Login MaxAttempts must be >= 1 and Cooldown > 0 when throttling")
	}

	// Mail
	switch c.Mail.Provider {
	case "", "log":
	case "resend":
		if c.Mail.ResendAPIKey == "" || c.Mail.From == "" {
			return errors.New("resend mail provider requires ResendAPIKey and From")
		}
	default:
		return errors.New("Mail Provider must be 'log' or 'resend'")
	}

	// Cookie
	switch strings.ToLower(c.Cookie.SameSite) {
	case "", "strict", "lax":
	case "none":
		if !c.Cookie.Secure {
			return errors.New("Cookie SameSite=none requires Secure")
		}
	default:
		return errors.New("Cookie SameSite must be 'strict', 'lax' or 'none'")
	}
	if c.Cookie.RefreshPath != "" && !strings.HasPrefix(c.Cookie.RefreshPath, "/") {
		return errors.New("Cookie RefreshPath must start with '/'")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0")
	}

	return nil
}
