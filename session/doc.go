// Package session persists login sessions in Redis.
//
// # Layout
//
// Each session is one binary blob under <prefix>:s:<sessionID>; each user has a
// set of their session ids under <prefix>:u:<userID>. The Redis key TTL tracks
// the session expiry, so expired rows disappear on their own; until then a row
// whose ExpiresAt has passed is treated as absent.
//
// # Binary encoding
//
// The blob always ends with the big-endian unix-millisecond expiry so the Lua
// scripts can read and rewrite it without decoding the rest.
//
// # What this package must NOT do
//
//   - Interpret tokens or make authorization decisions.
//   - Resurrect a deleted session: Extend only touches an existing, unexpired row.
package session
