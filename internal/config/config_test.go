package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("waitrain-api", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8000" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("waitrain-api", mapLookup(map[string]string{"WAITRAIN_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	cfg, err := Load("waitrain-api", mapLookup(map[string]string{
		"WAITRAIN_PROFILE":            "test",
		"WAITRAIN_SERVICE_NAME":       "waitrain-custom",
		"WAITRAIN_HTTP_ADDR":          ":9999",
		"WAITRAIN_HTTP_READ_TIMEOUT":  "2s",
		"WAITRAIN_HTTP_WRITE_TIMEOUT": "3s",
		"WAITRAIN_HTTP_IDLE_TIMEOUT":  "4s",
		"WAITRAIN_LOG_LEVEL":          "error",
		"WAITRAIN_LOG_JSON":           "false",
	}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "waitrain-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.HTTP.WriteTimeout != 3*time.Second {
		t.Fatalf("HTTP.WriteTimeout = %s", cfg.HTTP.WriteTimeout)
	}
	if cfg.HTTP.IdleTimeout != 4*time.Second {
		t.Fatalf("HTTP.IdleTimeout = %s", cfg.HTTP.IdleTimeout)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Observability.LogJSON {
		t.Fatal("LogJSON = true, want false")
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"WAITRAIN_PROFILE": "oops"},
		{"WAITRAIN_HTTP_READ_TIMEOUT": "NaN"},
		{"WAITRAIN_LOG_JSON": "not-bool"},
		{"WAITRAIN_LOG_LEVEL": "verbose"},
		{"WAITRAIN_HTTP_ADDR": "  "},
	}
	for _, env := range tests {
		_, err := Load("waitrain-api", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
