// Package rate implements the Redis-backed failed-login throttle.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key suffixes
// under the configured prefix:
//   - al:  login failures per identifier (lowercased email)
//   - ali: login failures per client IP
//
// A successful login deletes both counters.
package rate
