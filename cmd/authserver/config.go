package main

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/cookieauth"
)

// serverConfig is the YAML document read by serve and migrate. The auth
// section maps onto cookieauth.Config.
type serverConfig struct {
	Addr            string        `koanf:"addr"`
	DatabaseURL     string        `koanf:"database_url"`
	RedisURL        string        `koanf:"redis_url"`
	MigrateOnStart  bool          `koanf:"migrate_on_start"`
	CORSOrigin      string        `koanf:"cors_origin"`
	TrustProxy      bool          `koanf:"trust_proxy"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	ConnectRetries  uint64        `koanf:"connect_retries"`

	RateLimit rateLimitConfig  `koanf:"rate_limit"`
	Auth      cookieauth.Config `koanf:"auth"`
}

type rateLimitConfig struct {
	Enabled bool    `koanf:"enabled"`
	RPS     float64 `koanf:"rps"`
	Burst   int     `koanf:"burst"`
}

func defaultServerConfig() serverConfig {
	return serverConfig{
		Addr:            ":8080",
		RedisURL:        "redis://localhost:6379/0",
		ShutdownTimeout: 10 * time.Second,
		ConnectRetries:  5,
		RateLimit: rateLimitConfig{
			Enabled: true,
			RPS:     1,
			Burst:   20,
		},
		Auth: cookieauth.DefaultConfig(),
	}
}

// flagKeys maps flags whose names do not follow the dash-to-underscore rule.
var flagKeys = map[string]string{
	"app-origin":         "auth.app_origin",
	"jwt-access-secret":  "auth.jwt.access_secret",
	"jwt-refresh-secret": "auth.jwt.refresh_secret",
	"resend-api-key":     "auth.mail.resend_api_key",
	"mail-provider":      "auth.mail.provider",
	"mail-from":          "auth.mail.from",
}

// registerConfigFlags adds the flags that may override the config file. Flag
// defaults mirror defaultServerConfig so an unset flag never changes a value.
func registerConfigFlags(fs *pflag.FlagSet) {
	d := defaultServerConfig()
	fs.String("addr", d.Addr, "HTTP listen address")
	fs.String("database-url", d.DatabaseURL, "PostgreSQL URL (empty = in-memory user store)")
	fs.String("redis-url", d.RedisURL, "Redis URL")
	fs.Bool("migrate-on-start", d.MigrateOnStart, "apply database migrations before serving")
	fs.String("cors-origin", d.CORSOrigin, "allowed CORS origin (empty = CORS disabled)")
	fs.Bool("trust-proxy", d.TrustProxy, "take the client IP from X-Forwarded-For")
	fs.String("app-origin", d.Auth.AppOrigin, "web application origin used in emailed links")
	fs.String("jwt-access-secret", "", "access token signing secret")
	fs.String("jwt-refresh-secret", "", "refresh token signing secret")
	fs.String("mail-provider", d.Auth.Mail.Provider, "mail provider (log or resend)")
	fs.String("mail-from", d.Auth.Mail.From, "sender address")
	fs.String("resend-api-key", "", "Resend API key")
}

func flagKey(name string) string {
	if k, ok := flagKeys[name]; ok {
		return k
	}
	return strings.ReplaceAll(name, "-", "_")
}

// loadConfig layers defaults, the YAML file (when path is set) and changed
// flags, in that order.
func loadConfig(path string, fs *pflag.FlagSet) (serverConfig, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return serverConfig{}, oops.Code("CONFIG_LOAD_FAILED").With("path", path).Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			return flagKey(f.Name), posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return serverConfig{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	cfg := defaultServerConfig()
	if err := k.Unmarshal("", &cfg); err != nil {
		return serverConfig{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	return cfg, nil
}
