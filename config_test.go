package cookieauth

import (
	"net/http"
	"testing"
	"time"
)

func TestDefaultConfigNeedsSecretsAndOrigin(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected default config without secrets to fail")
	}
	tc := testConfig()
	if err := tc.Validate(); err != nil {
		t.Fatalf("expected test config to validate: %v", err)
	}
}

func TestDefaultConfigValues(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.JWT.AccessTTL != 15*time.Minute || cfg.JWT.RefreshTTL != 30*24*time.Hour {
		t.Fatalf("unexpected token lifetimes %+v", cfg.JWT)
	}
	if cfg.Session.TTL != 30*24*time.Hour || cfg.Session.RefreshThreshold != 24*time.Hour {
		t.Fatalf("unexpected session config %+v", cfg.Session)
	}
	if cfg.Reset.TTL != time.Hour || cfg.Reset.Window != 5*time.Minute || cfg.Reset.MaxPerWindow != 1 {
		t.Fatalf("unexpected reset config %+v", cfg.Reset)
	}
	if cfg.Cookie.SameSiteMode() != http.SameSiteStrictMode || !cfg.Cookie.Secure {
		t.Fatalf("unexpected cookie config %+v", cfg.Cookie)
	}
}

func TestConfigValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"relative origin", func(c *Config) { c.AppOrigin = "/app" }},
		{"same secrets", func(c *Config) { c.JWT.RefreshSecret = c.JWT.AccessSecret }},
		{"zero access ttl", func(c *Config) { c.JWT.AccessTTL = 0 }},
		{"threshold above ttl", func(c *Config) { c.Session.RefreshThreshold = c.Session.TTL }},
		{"refresh token shorter than session", func(c *Config) { c.JWT.RefreshTTL = time.Hour }},
		{"zero reset window", func(c *Config) { c.Reset.Window = 0 }},
		{"weak argon memory", func(c *Config) { c.Password.Memory = 1024 }},
		{"inverted password bounds", func(c *Config) { c.Password.MinLength = 300 }},
		{"throttle without attempts", func(c *Config) { c.Login.MaxAttempts = 0 }},
		{"resend without key", func(c *Config) { c.Mail.Provider = "resend" }},
		{"unknown mail provider", func(c *Config) { c.Mail.Provider = "smtp" }},
		{"samesite none insecure", func(c *Config) { c.Cookie.SameSite = "none"; c.Cookie.Secure = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCookieSameSiteMode(t *testing.T) {
	cases := map[string]http.SameSite{
		"":       http.SameSiteStrictMode,
		"Strict": http.SameSiteStrictMode,
		"lax":    http.SameSiteLaxMode,
		"none":   http.SameSiteNoneMode,
	}
	for in, want := range cases {
		if got := (CookieConfig{SameSite: in}).SameSiteMode(); got != want {
			t.Fatalf("%q: expected %v, got %v", in, want, got)
		}
	}
}
