// Package cookieauth is a cookie-based authentication engine: account
// registration, email verification, password login and reset, and
// Redis-backed sessions addressed by short-lived access tokens and
// long-lived refresh tokens.
//
// Engine methods are safe to call from multiple goroutines once the Engine
// has been produced by [Builder.Build].
//
// # Architecture boundaries
//
// cookieauth is the public surface. It exposes [Engine], [Builder], [Config],
// the typed [Error] and value types (AuthResult, SessionView, Principal).
// Flow orchestration, verification code storage, the login throttle and
// audit dispatch live under internal/ and are never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients or internal stores in its public API.
//   - Touch HTTP. Cookies and routing live in transport, middleware and httpapi.
//   - Import any sub-package that re-imports cookieauth (no import cycles).
//
// # Performance contract
//
// Authenticate is the hot path. It verifies the access token signature and
// never touches Redis, so a deleted session stays usable until its access
// token expires. Refresh costs one Redis read, plus a script call when the
// session is extended.
package cookieauth
