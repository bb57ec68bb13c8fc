package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrEthical07/cookieauth"
	"github.com/MrEthical07/cookieauth/client"
	"github.com/MrEthical07/cookieauth/httpapi"
	"github.com/MrEthical07/cookieauth/mail"
	"github.com/MrEthical07/cookieauth/transport"
	"github.com/MrEthical07/cookieauth/userstore/memory"
)

type discardMailer struct{}

func (discardMailer) Send(context.Context, mail.Message) (string, error) { return "id", nil }

type loginRecorder struct {
	mu    sync.Mutex
	froms []client.Destination
}

func (n *loginRecorder) Navigate(_ context.Context, _ string, from client.Destination) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.froms = append(n.froms, from)
}

func newAuthServer(t *testing.T) *httptest.Server {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := cookieauth.DefaultConfig()
	cfg.AppOrigin = "https://app.example.com"
	cfg.JWT.AccessSecret = "access-secret-for-tests-0123456789"
	cfg.JWT.RefreshSecret = "refresh-secret-for-tests-0123456789"
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Cookie.Secure = false

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine, err := cookieauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithUserStore(memory.New()).
		WithMailer(discardMailer{}).
		WithLogger(logger).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	srv := httptest.NewServer(httpapi.NewRouter(httpapi.Config{
		Service: engine,
		Cookies: transport.NewCookies(cfg),
		Logger:  logger,
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestSilentRefreshAgainstRouter(t *testing.T) {
	srv := newAuthServer(t)
	nav := &loginRecorder{}

	c, err := client.NewClient(client.Options{BaseURL: srv.URL, Navigator: nav})
	require.NoError(t, err)

	body, err := json.Marshal(map[string]string{
		"email": "alice@example.com", "password": "hunter22", "confirmPassword": "hunter22",
	})
	require.NoError(t, err)
	resp, err := c.Post(srv.URL+"/auth/register", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	c.Jar.SetCookies(u, []*http.Cookie{{Name: transport.AccessCookie, Value: "stale", Path: "/"}})

	resp, err = c.Get(srv.URL + "/user")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	var user map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&user))
	assert.Equal(t, "alice@example.com", user["email"])

	nav.mu.Lock()
	defer nav.mu.Unlock()
	assert.Empty(t, nav.froms)
}
