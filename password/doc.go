// Package password hashes and verifies stored password digests.
//
// New digests are Argon2id in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// bcrypt digests ($2a$, $2b$, $2y$) are still accepted by [Hasher.Verify] so rows
// imported from older deployments keep working; [Hasher.NeedsRehash] reports them
// so the caller can replace the digest after the next successful login.
//
// This package owns hashing only. It never stores, logs or returns plaintext,
// and it does not import any other package of this module.
package password
