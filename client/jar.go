package client

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"

	"golang.org/x/net/publicsuffix"
)

// Jar is a publicsuffix-aware cookie jar that can be emptied.
type Jar struct {
	mu    sync.RWMutex
	inner *cookiejar.Jar
}

// NewJar returns an empty Jar.
func NewJar() *Jar {
	return &Jar{inner: newCookieJar()}
}

func newCookieJar() *cookiejar.Jar {
	// cookiejar.New never returns a non-nil error.
	j, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	return j
}

func (j *Jar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	j.inner.SetCookies(u, cookies)
}

func (j *Jar) Cookies(u *url.URL) []*http.Cookie {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.inner.Cookies(u)
}

// Clear drops every cookie.
func (j *Jar) Clear() {
	j.mu.Lock()
	j.inner = newCookieJar()
	j.mu.Unlock()
}
