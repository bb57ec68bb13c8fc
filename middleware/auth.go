package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/cookieauth"
	"github.com/MrEthical07/cookieauth/transport"
)

// Authenticator is the part of *cookieauth.Engine RequireAuth needs.
type Authenticator interface {
	Authenticate(ctx context.Context, accessToken string) (*cookieauth.Principal, error)
}

// RequireAuth rejects requests without a valid access cookie. The 401 body
// carries errorCode InvalidAccessToken so clients know to refresh.
func RequireAuth(auth Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, err := auth.Authenticate(r.Context(), transport.AccessToken(r))
			if err != nil {
				transport.WriteError(w, r, logger, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(cookieauth.WithPrincipal(r.Context(), p)))
		})
	}
}
