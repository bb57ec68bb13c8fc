// Package transport moves tokens between the Engine and browser cookies.
package transport

import (
	"net/http"
	"time"

	"github.com/MrEthical07/cookieauth"
)

// Cookie names.
const (
	AccessCookie  = "accessToken"
	RefreshCookie = "refreshToken"
)

// DefaultRefreshPath scopes the refresh cookie to the refresh endpoint so the
// browser never sends it anywhere else.
const DefaultRefreshPath = "/auth/refresh"

// Cookies writes and reads the token cookies. Both are HttpOnly; Secure and
// SameSite follow the fields.
type Cookies struct {
	Secure      bool
	SameSite    http.SameSite
	Domain      string
	RefreshPath string

	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (c Cookies) refreshPath() string {
	if c.RefreshPath == "" {
		return DefaultRefreshPath
	}
	return c.RefreshPath
}

func (c Cookies) sameSite() http.SameSite {
	if c.SameSite == 0 || c.SameSite == http.SameSiteDefaultMode {
		return http.SameSiteStrictMode
	}
	return c.SameSite
}

func (c Cookies) cookie(name, value, path string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		Domain:   c.Domain,
		MaxAge:   int(ttl / time.Second),
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: c.sameSite(),
	}
}

// SetBoth writes the access cookie and, when refresh is non-empty, the
// refresh cookie.
func (c Cookies) SetBoth(w http.ResponseWriter, access, refresh string) {
	c.SetAccess(w, access)
	if refresh != "" {
		c.SetRefresh(w, refresh)
	}
}

func (c Cookies) SetAccess(w http.ResponseWriter, access string) {
	http.SetCookie(w, c.cookie(AccessCookie, access, "/", c.AccessTTL))
}

func (c Cookies) SetRefresh(w http.ResponseWriter, refresh string) {
	http.SetCookie(w, c.cookie(RefreshCookie, refresh, c.refreshPath(), c.RefreshTTL))
}

// Clear expires both cookies. Paths must match the ones they were set with
// or the browser keeps them.
func (c Cookies) Clear(w http.ResponseWriter) {
	access := c.cookie(AccessCookie, "", "/", 0)
	access.MaxAge = -1
	access.Expires = time.Unix(0, 0)
	http.SetCookie(w, access)

	refresh := c.cookie(RefreshCookie, "", c.refreshPath(), 0)
	refresh.MaxAge = -1
	refresh.Expires = time.Unix(0, 0)
	http.SetCookie(w, refresh)
}

// AccessToken returns the access cookie value, or "".
func AccessToken(r *http.Request) string {
	return cookieValue(r, AccessCookie)
}

// RefreshToken returns the refresh cookie value, or "".
func RefreshToken(r *http.Request) string {
	return cookieValue(r, RefreshCookie)
}

func cookieValue(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

// NewCookies derives cookie settings from the Engine configuration.
func NewCookies(cfg cookieauth.Config) Cookies {
	return Cookies{
		Secure:      cfg.Cookie.Secure,
		SameSite:    cfg.Cookie.SameSiteMode(),
		Domain:      cfg.Cookie.Domain,
		RefreshPath: cfg.Cookie.RefreshPath,
		AccessTTL:   cfg.JWT.AccessTTL,
		RefreshTTL:  cfg.JWT.RefreshTTL,
	}
}
