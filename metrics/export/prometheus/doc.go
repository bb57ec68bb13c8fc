// Package prometheus exposes Engine metrics through client_golang.
//
// [NewCollector] wraps anything with MetricsSnapshot and AuditDropped (an
// *cookieauth.Engine in practice) as a prometheus.Collector. Counter names
// are prefixed cookieauth_ and suffixed _total; the single histogram is
// cookieauth_login_duration_seconds.
//
// Nothing is registered globally. Callers register the Collector, or use
// [NewRegistry], and mount promhttp themselves.
package prometheus
