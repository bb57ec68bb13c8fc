package cookieauth

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/MrEthical07/cookieauth/internal/rate"
	"github.com/MrEthical07/cookieauth/internal/stores"
	"github.com/MrEthical07/cookieauth/jwt"
	"github.com/MrEthical07/cookieauth/mail"
	"github.com/MrEthical07/cookieauth/password"
	"github.com/MrEthical07/cookieauth/session"
	"github.com/MrEthical07/cookieauth/userstore"
)

// TracerName is the instrumentation scope used when no tracer is supplied.
const TracerName = "github.com/MrEthical07/cookieauth"

// Builder assembles an Engine.
//
// Builder instances are configured during initialization and used once.
type Builder struct {
	config Config
	redis  redis.UniversalClient
	users  userstore.Store
	mailer mail.Mailer

	logger    *slog.Logger
	tracer    trace.Tracer
	now       func() time.Time
	auditSink AuditSink

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the client backing sessions, verification codes and the
// login throttle. Required.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithUserStore sets the account store. Required.
func (b *Builder) WithUserStore(store userstore.Store) *Builder {
	b.users = store
	return b
}

// WithMailer overrides the mailer derived from Config.Mail.
func (b *Builder) WithMailer(m mail.Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

func (b *Builder) WithTracer(tracer trace.Tracer) *Builder {
	b.tracer = tracer
	return b
}

// WithClock overrides time.Now for every time-dependent component. Tests only.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithAuditSink sets the audit destination. It has no effect unless
// Config.Audit.Enabled is set.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the Engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}
	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	cfg := b.config
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}
	tracer := b.tracer
	if tracer == nil {
		tracer = otel.Tracer(TracerName)
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	mailer := b.mailer
	if mailer == nil {
		m, err := mailerFromConfig(cfg.Mail, logger)
		if err != nil {
			return nil, err
		}
		mailer = m
	}

	// -------- TOKENS --------
	codec, err := jwt.NewCodec(jwt.Config{
		AccessSecret:  []byte(cfg.JWT.AccessSecret),
		RefreshSecret: []byte(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- PASSWORDS --------
	hasher, err := password.New(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
		MinLength:   cfg.Password.MinLength,
		MaxLength:   cfg.Password.MaxLength,
	})
	if err != nil {
		return nil, err
	}

	// -------- REDIS STORES --------
	engine := &Engine{
		config: cfg,
		logger: logger,
		tracer: tracer,
		now:    now,
		redis:  b.redis,
		users:  b.users,
		sessions: session.NewStore(b.redis, session.Config{
			Prefix: cfg.Session.RedisPrefix,
			TTL:    cfg.Session.TTL,
			Now:    now,
		}),
		codes: stores.NewVerificationStore(b.redis, stores.VerificationConfig{
			Prefix: cfg.Session.RedisPrefix,
			Now:    now,
		}),
		codec:   codec,
		hasher:  hasher,
		mailer:  mailer,
		metrics: NewMetrics(cfg.Metrics),
	}

	if cfg.Login.ThrottleEnabled {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:                cfg.Session.RedisPrefix,
			EnableIPThrottle:      cfg.Login.EnableIPThrottle,
			MaxLoginAttempts:      cfg.Login.MaxAttempts,
			LoginCooldownDuration: cfg.Login.Cooldown,
		})
	}

	engine.audit = newAuditDispatcher(cfg.Audit, b.auditSink, logger)

	b.built = true

	return engine, nil
}

func mailerFromConfig(cfg MailConfig, logger *slog.Logger) (mail.Mailer, error) {
	switch cfg.Provider {
	case "", "log":
		return mail.NewLogMailer(logger), nil
	case "resend":
		return mail.NewResendMailer(mail.ResendConfig{
			APIKey:     cfg.ResendAPIKey,
			From:       cfg.From,
			RedirectTo: cfg.RedirectTo,
		})
	default:
		return nil, errors.New("unknown mail provider " + cfg.Provider)
	}
}
