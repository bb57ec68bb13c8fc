// Package flows contains the orchestration for every Engine operation.
//
// Each Run* function accepts a typed dependency struct and returns a result
// carrying either the produced values or a failure kind. The root package maps
// failure kinds onto its error taxonomy; flows never build HTTP-facing errors.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root cookieauth package.
//   - Perform I/O directly. All I/O goes through dependency interfaces.
package flows
