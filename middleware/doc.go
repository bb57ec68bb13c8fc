// Package middleware holds the HTTP middleware placed in front of the
// cookieauth handlers.
//
//   - [RequireAuth] reads the access cookie, calls Engine.Authenticate and
//     stores the resulting principal in the request context.
//   - [ClientInfo] records the caller's IP and User-Agent for the login
//     throttle and audit events.
//   - [IPRateLimiter] bounds request rates per client IP.
//   - [AccessLog] writes one structured log line per request.
//
// # What this package must NOT do
//
//   - Parse or create JWTs directly (delegates to the Engine).
//   - Access Redis.
package middleware
