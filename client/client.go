package client

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultRefreshPath matches the server's refresh route.
const DefaultRefreshPath = "/auth/refresh"

// Options configures NewClient.
type Options struct {
	// BaseURL is the API origin, e.g. "https://api.example.com".
	BaseURL     string
	RefreshPath string
	Base        http.RoundTripper
	Cache       Cache
	Navigator   Navigator
	Logger      *slog.Logger
	Timeout     time.Duration
}

// NewClient returns an http.Client with a cookie jar and the refresh
// interceptor installed.
func NewClient(opts Options) (*http.Client, error) {
	if opts.BaseURL == "" {
		return nil, errors.New("client: BaseURL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, err
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.New("client: BaseURL must be absolute")
	}

	path := opts.RefreshPath
	if path == "" {
		path = DefaultRefreshPath
	}
	// JoinPath drops the leading slash when base has no path, and the jar
	// matches cookies against the path as stored.
	refreshURL := base.JoinPath(strings.TrimPrefix(path, "/"))
	if !strings.HasPrefix(refreshURL.Path, "/") {
		refreshURL.Path = "/" + refreshURL.Path
		refreshURL.RawPath = ""
	}

	jar := NewJar()
	return &http.Client{
		Jar:     jar,
		Timeout: opts.Timeout,
		Transport: &Transport{
			Base:       opts.Base,
			RefreshURL: refreshURL,
			Jar:        jar,
			Cache:      opts.Cache,
			Navigator:  opts.Navigator,
			Logger:     opts.Logger,
		},
	}, nil
}
