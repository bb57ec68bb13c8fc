package middleware

import (
	"net"
	"net/http"

	"github.com/MrEthical07/cookieauth"
)

// ClientInfo copies the client IP and User-Agent into the request context.
// Put chi's RealIP in front of it when running behind a trusted proxy.
func ClientInfo(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := cookieauth.WithClientIP(r.Context(), clientIP(r))
		ctx = cookieauth.WithUserAgent(ctx, r.UserAgent())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
