// Package jwt signs and verifies the access and refresh tokens carried by the
// cookie transport. Verification is pure: it never touches a store and it never
// returns claims from a token that failed verification.
package jwt
