// Package client is the Go counterpart of a browser talking to the cookie API.
//
// Transport wraps an http.RoundTripper. When the server answers 401 with
// errorCode InvalidAccessToken it calls the refresh endpoint once, shared by
// every request failing at the same time, and replays the original request.
// If the refresh itself fails, cached data and cookies are dropped and the
// registered Navigator is sent to the login route.
package client
