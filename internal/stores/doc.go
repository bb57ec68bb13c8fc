// Package stores persists one-time verification codes in Redis.
//
// # Design
//
// A code is 32 random bytes, hex encoded, and is stored only by its sha256.
// Consume runs one Lua script that reads the record, checks the purpose and the
// expiry, and deletes it, so two concurrent consumers of the same value cannot
// both succeed. A per-user, per-purpose sorted set records issue times for
// rate limiting.
//
// # What this package must NOT do
//
//   - Import cookieauth or any sibling internal package other than the random helpers.
//   - Store or log plaintext codes.
//   - Decide whether a caller is allowed to request a code; that is the flows' job.
package stores
