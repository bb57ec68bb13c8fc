package cookieauth

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/cookieauth/internal/audit"
	"github.com/MrEthical07/cookieauth/internal/flows"
	"github.com/MrEthical07/cookieauth/internal/rate"
	"github.com/MrEthical07/cookieauth/internal/stores"
	"github.com/MrEthical07/cookieauth/jwt"
	"github.com/MrEthical07/cookieauth/mail"
	"github.com/MrEthical07/cookieauth/password"
	"github.com/MrEthical07/cookieauth/session"
	"github.com/MrEthical07/cookieauth/userstore"
)

// Engine runs the authentication flows. It is safe for concurrent use once
// returned by [Builder.Build]; Close releases the audit dispatcher.
type Engine struct {
	config Config
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time

	redis    redis.UniversalClient
	users    userstore.Store
	sessions *session.Store
	codes    *stores.VerificationStore
	codec    *jwt.Codec
	hasher   *password.Hasher
	mailer   mail.Mailer
	limiter  *rate.Limiter

	audit   *audit.Dispatcher
	metrics *Metrics
}

// Close flushes pending audit events.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns the number of audit events dropped due to backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot returns a point-in-time copy of the Engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Config returns a copy of the Engine configuration.
func (e *Engine) Config() Config {
	return e.config
}

// AccessTTL is the lifetime of minted access tokens.
func (e *Engine) AccessTTL() time.Duration { return e.codec.AccessTTL() }

// RefreshTTL is the lifetime of minted refresh tokens.
func (e *Engine) RefreshTTL() time.Duration { return e.codec.RefreshTTL() }

type pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks Redis and, when the user store supports it, the database.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.redis.Ping(ctx).Err(); err != nil {
		return internal("redis ping failed", err)
	}
	if p, ok := e.users.(pinger); ok {
		if err := p.Ping(ctx); err != nil {
			return internal("user store ping failed", err)
		}
	}
	return nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "cookieauth."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, KindOf(err).String())
	}
	span.End()
}

// fail logs internal errors and passes everything else through.
func (e *Engine) fail(ctx context.Context, op string, err *Error) *Error {
	if err.Kind == KindInternal {
		e.logger.ErrorContext(ctx, "auth operation failed", "op", op, "error", err)
	} else {
		e.logger.DebugContext(ctx, "auth operation rejected", "op", op, "kind", err.Kind.String(), "message", err.Message)
	}
	return err
}

func (e *Engine) verifyURL(code string) string {
	return strings.TrimRight(e.config.AppOrigin, "/") + "/email/verify/" + url.PathEscape(code)
}

func (e *Engine) resetURL(code string, expiresAt time.Time) string {
	q := url.Values{}
	q.Set("code", code)
	q.Set("exp", strconv.FormatInt(expiresAt.UnixMilli(), 10))
	return strings.TrimRight(e.config.AppOrigin, "/") + "/password/reset?" + q.Encode()
}

func (e *Engine) loginLimiter() flows.LoginLimiter {
	if e.limiter == nil {
		return nil
	}
	return e.limiter
}

func isStoreNotFound(err error) bool {
	return errors.Is(err, userstore.ErrNotFound)
}
