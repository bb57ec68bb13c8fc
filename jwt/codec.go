package jwt

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrExpired is returned when a token carries a valid signature but its expiry has passed.
	ErrExpired = errors.New("token expired")
	// ErrMalformed is returned for any signature, algorithm, audience or structural failure.
	ErrMalformed = errors.New("token malformed")
)

// DefaultAudience is stamped into every token when Config.Audience is empty.
const DefaultAudience = "user"

// Config holds the signing material and lifetimes for both token types.
//
// AccessSecret and RefreshSecret must differ so a leaked secret for one token
// type cannot mint the other.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Audience      string
	Leeway        time.Duration

	// Now overrides the clock used for iat/exp and for validation. Tests only.
	Now func() time.Time
}

// Codec mints and verifies access and refresh tokens.
type Codec struct {
	config Config
}

// AccessClaims is the claim set of an access token.
type AccessClaims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// RefreshClaims is the claim set of a refresh token. It intentionally carries no
// user id: the owner is always read back from the session row.
type RefreshClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// NewCodec validates cfg and returns a ready codec.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.AccessSecret) == 0 || len(cfg.RefreshSecret) == 0 {
		return nil, errors.New("access and refresh secrets are required")
	}
	if bytes.Equal(cfg.AccessSecret, cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.Audience = strings.TrimSpace(cfg.Audience)
	if cfg.Audience == "" {
		cfg.Audience = DefaultAudience
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Codec{config: cfg}, nil
}

// AccessTTL reports the configured access token lifetime.
func (c *Codec) AccessTTL() time.Duration { return c.config.AccessTTL }

// RefreshTTL reports the configured refresh token lifetime.
func (c *Codec) RefreshTTL() time.Duration { return c.config.RefreshTTL }

// SignAccess mints an access token for the user and session.
func (c *Codec) SignAccess(userID, sessionID string) (string, error) {
	if userID == "" || sessionID == "" {
		return "", errors.New("access token requires user and session id")
	}
	claims := &AccessClaims{UserID: userID, SessionID: sessionID}
	return c.Sign(claims, &claims.RegisteredClaims, c.config.AccessTTL, c.config.AccessSecret)
}

// SignRefresh mints a refresh token bound to sessionID.
func (c *Codec) SignRefresh(sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("refresh token requires session id")
	}
	claims := &RefreshClaims{SessionID: sessionID}
	return c.Sign(claims, &claims.RegisteredClaims, c.config.RefreshTTL, c.config.RefreshSecret)
}

// VerifyAccess verifies an access token signed with the access secret.
func (c *Codec) VerifyAccess(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := c.Verify(token, c.config.AccessSecret, claims); err != nil {
		return nil, err
	}
	if claims.UserID == "" || claims.SessionID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// VerifyRefresh verifies a refresh token signed with the refresh secret.
func (c *Codec) VerifyRefresh(token string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := c.Verify(token, c.config.RefreshSecret, claims); err != nil {
		return nil, err
	}
	if claims.SessionID == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Sign stamps iat, exp and aud into registered and signs claims with HS256.
func (c *Codec) Sign(claims jwt.Claims, registered *jwt.RegisteredClaims, ttl time.Duration, secret []byte) (string, error) {
	if ttl <= 0 {
		return "", errors.New("invalid TTL")
	}
	if len(secret) == 0 {
		return "", errors.New("empty signing secret")
	}
	now := c.config.Now()
	registered.IssuedAt = jwt.NewNumericDate(now)
	registered.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	registered.Audience = jwt.ClaimStrings{c.config.Audience}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses token into claims. The only two outcomes on failure are
// ErrExpired and ErrMalformed.
func (c *Codec) Verify(token string, secret []byte, claims jwt.Claims) error {
	if token == "" {
		return ErrMalformed
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(c.config.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.config.Now),
	}
	if c.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(c.config.Leeway))
	}

	parser := jwt.NewParser(options...)
	parsed, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return secret, nil
	})
	if err != nil {
		// Only report expiry once the signature has been checked; an expired
		// token with a forged signature is still malformed.
		if errors.Is(err, jwt.ErrTokenExpired) && !errors.Is(err, jwt.ErrTokenSignatureInvalid) {
			return ErrExpired
		}
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !parsed.Valid {
		return ErrMalformed
	}
	return nil
}
