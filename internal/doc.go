// Package internal holds helpers private to cookieauth, mainly secure random
// generation for verification codes.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: the register/login/refresh/logout/verify/reset orchestration
//   - rate: Redis-backed fixed-window counters
//   - stores: the verification code store
package internal
