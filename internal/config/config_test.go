package config

import (
	"testing"
	"time"
)

func validLocal() Config {
	return Config{
		App:     AppConfig{Env: "local", Port: 8080},
		Backend: BackendConfig{BaseURL: "http://localhost:8081/api/v1"},
	}
}

func TestLoad_ReportsMissingRequired(t *testing.T) {
	c := Config{}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestValidate_LocalDefaults(t *testing.T) {
	c := validLocal()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.Session.Store != StoreMemory || c.Audit.Store != StoreMemory {
		t.Fatalf("expected memory stores, got %q/%q", c.Session.Store, c.Audit.Store)
	}
	if c.Session.Timeout != 30*time.Minute || c.Session.Warning != 5*time.Minute {
		t.Fatalf("unexpected session defaults: %+v", c.Session)
	}
	if c.Backend.Timeout != 15*time.Second {
		t.Fatalf("unexpected backend timeout: %v", c.Backend.Timeout)
	}
	if c.RateLimit.LoginPerMinute != 10 || c.RateLimit.Burst != 10 {
		t.Fatalf("unexpected rate limit defaults: %+v", c.RateLimit)
	}
}

func TestValidate_RedisStoreRequiresHost(t *testing.T) {
	c := validLocal()
	c.Session.Store = StoreRedis
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for redis store without REDIS_HOST")
	}
}

func TestValidate_PostgresAuditDefaultsSSLMode(t *testing.T) {
	c := validLocal()
	c.Audit.Store = StorePostgres
	c.DB = DBConfig{Host: "localhost", Port: 5432, User: "postgres", Password: "x", Name: "sbs"}
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if c.DB.SSLMode != "disable" {
		t.Fatalf("expected sslmode disable default, got %q", c.DB.SSLMode)
	}
}

func TestValidate_ProductionRequirements(t *testing.T) {
	c := Config{
		App:     AppConfig{Env: "production", Port: 8080},
		Backend: BackendConfig{BaseURL: "https://bank.example"},
	}
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for production with memory session store and no JWT_SECRET")
	}
}

func TestValidate_WarningMustBeShorterThanTimeout(t *testing.T) {
	c := validLocal()
	c.Session.Timeout = time.Minute
	c.Session.Warning = 2 * time.Minute
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error")
	}
}
