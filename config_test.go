package lilac

import (
	"testing"
	"time"

	glog "github.com/labstack/gommon/log"
)

func TestConfigDefaults(t *testing.T) {
	var cfg Config
	cfg.setDefaults()

	if cfg.Backend != BackendFilesystem || cfg.ImageBackend != BackendFilesystem {
		t.Errorf("backends = %q/%q", cfg.Backend, cfg.ImageBackend)
	}
	if cfg.TokenTTL != 10*time.Minute {
		t.Errorf("TokenTTL = %v", cfg.TokenTTL)
	}
	if cfg.MaxUploadSize != 5<<20 {
		t.Errorf("MaxUploadSize = %d", cfg.MaxUploadSize)
	}
	if cfg.DefaultPageLimit != 12 || cfg.MaxPageLimit != 50 {
		t.Errorf("page limits = %d/%d", cfg.DefaultPageLimit, cfg.MaxPageLimit)
	}
}

func TestConfigImageBackendFollowsBackend(t *testing.T) {
	tests := []struct {
		backend string
		want    string
	}{
		{BackendMemory, BackendMemory},
		{BackendMongoDB, BackendMongoDB},
		{BackendSQLite, BackendFilesystem},
	}
	for _, tt := range tests {
		cfg := Config{Backend: tt.backend}
		cfg.setDefaults()
		if cfg.ImageBackend != tt.want {
			t.Errorf("Backend %q: ImageBackend = %q, want %q", tt.backend, cfg.ImageBackend, tt.want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("NEXTAUTH_SECRET", "fallback")
	t.Setenv("LILAC_BACKEND", "memory")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := ConfigFromEnv()
	if cfg.JWTSecret != "fallback" {
		t.Errorf("JWTSecret = %q, want NEXTAUTH_SECRET fallback", cfg.JWTSecret)
	}
	if cfg.Backend != BackendMemory || !cfg.CookieSecure {
		t.Errorf("cfg = %+v", cfg)
	}

	t.Setenv("JWT_SECRET", "primary")
	if cfg := ConfigFromEnv(); cfg.JWTSecret != "primary" {
		t.Errorf("JWTSecret = %q, want primary", cfg.JWTSecret)
	}
}

func TestSetupRequiresSecrets(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no admin", Config{JWTSecret: "s", Backend: BackendMemory}},
		{"no secret", Config{AdminUsername: "a", AdminPasswordHash: "h", Backend: BackendMemory}},
		{"unknown backend", Config{AdminUsername: "a", AdminPasswordHash: "h", JWTSecret: "s", Backend: "redis"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.LogLevel = "off"
			a := New(tt.cfg)
			defer a.Close()
			if err := a.Setup(t.Context()); err == nil {
				t.Fatal("expected Setup to fail")
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	for in, want := range map[string]glog.Lvl{"debug": glog.DEBUG, "WARN": glog.WARN, "error": glog.ERROR, "off": glog.OFF, "": glog.INFO} {
		if got := logLevel(in); got != want {
			t.Errorf("logLevel(%q) = %d, want %d", in, got, want)
		}
	}
}
