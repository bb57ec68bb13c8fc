package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/singleflight"
)

const (
	// invalidAccessToken is the errorCode that marks a refreshable 401.
	invalidAccessToken = "InvalidAccessToken"

	maxErrorBody   = 64 << 10
	refreshTimeout = 15 * time.Second
)

// Cache is application data that must be dropped when the session ends.
type Cache interface {
	Clear()
}

// Transport refreshes an expired access token and replays the request.
// The zero value is not usable; set RefreshURL at least.
type Transport struct {
	// Base performs the actual requests. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// RefreshURL is the GET endpoint that reissues the access cookie.
	RefreshURL *url.URL
	// Jar supplies cookies to the refresh call and the replay. It should be
	// the jar of the http.Client using this Transport.
	Jar *Jar
	// Cache is cleared when the refresh fails. Optional.
	Cache Cache
	// Navigator overrides the process-wide NavigationHandler.
	Navigator Navigator
	Logger    *slog.Logger

	group singleflight.Group
}

func (t *Transport) base() http.RoundTripper {
	if t.Base != nil {
		return t.Base
	}
	return http.DefaultTransport
}

func (t *Transport) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

func (t *Transport) navigator() Navigator {
	if t.Navigator != nil {
		return t.Navigator
	}
	return NavigationHandler()
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.base().RoundTrip(req)
	if err != nil || resp.StatusCode != http.StatusUnauthorized || t.isRefreshCall(req) {
		return resp, err
	}

	rejected, err := accessTokenRejected(resp)
	if err != nil {
		return nil, err
	}
	if !rejected {
		return resp, nil
	}
	if req.Body != nil && req.Body != http.NoBody && req.GetBody == nil {
		// The body is gone and cannot be sent twice.
		return resp, nil
	}

	refreshed, err := t.refresh(req)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	if !refreshed {
		return resp, nil
	}

	retry, err := t.replayRequest(req)
	if err != nil {
		resp.Body.Close()
		return nil, err
	}
	resp.Body.Close()

	return t.base().RoundTrip(retry)
}

func (t *Transport) isRefreshCall(req *http.Request) bool {
	return t.RefreshURL != nil &&
		req.URL.Host == t.RefreshURL.Host &&
		req.URL.Path == t.RefreshURL.Path
}

// accessTokenRejected reads the 401 body and puts it back so the response can
// still be returned to the caller.
func accessTokenRejected(resp *http.Response) (bool, error) {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	resp.Body.Close()
	if err != nil {
		return false, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))

	var body struct {
		ErrorCode string `json:"errorCode"`
	}
	if json.Unmarshal(data, &body) != nil {
		return false, nil
	}
	return body.ErrorCode == invalidAccessToken, nil
}

// refresh joins the in-flight refresh or starts one. The shared call outlives
// any single caller's context; a caller whose context ends stops waiting.
func (t *Transport) refresh(req *http.Request) (bool, error) {
	ctx := req.Context()
	from := Destination{Path: req.URL.Path}

	ch := t.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()

		if t.doRefresh(rctx) {
			return true, nil
		}
		t.endSession(rctx, from)
		return false, nil
	})

	select {
	case <-ctx.Done():
		return false, ctx.Err()
	case res := <-ch:
		return res.Val.(bool), nil
	}
}

func (t *Transport) doRefresh(ctx context.Context) bool {
	if t.RefreshURL == nil {
		return false
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.RefreshURL.String(), nil)
	if err != nil {
		return false
	}
	if t.Jar != nil {
		for _, c := range t.Jar.Cookies(t.RefreshURL) {
			req.AddCookie(c)
		}
	}

	resp, err := t.base().RoundTrip(req)
	if err != nil {
		t.logger().WarnContext(ctx, "token refresh failed", slog.Any("error", err))
		return false
	}
	defer func() {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
		resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		t.logger().DebugContext(ctx, "token refresh rejected", slog.Int("status", resp.StatusCode))
		return false
	}
	if t.Jar != nil {
		t.Jar.SetCookies(t.RefreshURL, resp.Cookies())
	}
	return true
}

func (t *Transport) endSession(ctx context.Context, from Destination) {
	if t.Cache != nil {
		t.Cache.Clear()
	}
	if t.Jar != nil {
		t.Jar.Clear()
	}
	if n := t.navigator(); n != nil {
		n.Navigate(ctx, LoginPath, from)
	}
}

// replayRequest clones req with a fresh body and the jar's current cookies.
func (t *Transport) replayRequest(req *http.Request) (*http.Request, error) {
	retry := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, err
		}
		retry.Body = body
	}
	if t.Jar != nil {
		retry.Header.Del("Cookie")
		for _, c := range t.Jar.Cookies(retry.URL) {
			retry.AddCookie(c)
		}
	}
	return retry, nil
}
