package config

import (
	"strings"
	"testing"
	"time"
)

func validConfig() AppConfig {
	return AppConfig{
		Environment: "development",
		HTTP:        HTTPConfig{Host: "0.0.0.0", Port: 3000},
		API:         APIConfig{BaseURL: "http://localhost:8080/api", Timeout: 30 * time.Second, Envelope: "detect"},
		Upload: UploadConfig{
			MaxSize:    1024,
			ImageTypes: []string{"image/png"},
			PDFTypes:   []string{"application/pdf"},
		},
		Security: SecurityConfig{JWTSecret: "secret"},
	}
}

func TestValidate_Accepts(t *testing.T) {
	c := validConfig()
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	c := AppConfig{}
	err := c.Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"http.port", "api.baseurl", "api.timeout", "api.envelope", "upload.maxsize", "security.jwtsecret"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in error, got %v", want, err)
		}
	}
}

func TestValidate_RelativeBaseURL(t *testing.T) {
	c := validConfig()
	c.API.BaseURL = "/api"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for relative api.baseurl")
	}
}

func TestValidate_ProductionRequiresSecureCookies(t *testing.T) {
	c := validConfig()
	c.Environment = "production"
	if err := c.Validate(); err == nil {
		t.Fatalf("expected error for insecure cookies in production")
	}
	c.Security.CookieSecure = true
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateWorker_RequiresDSN(t *testing.T) {
	c := validConfig()
	c.Audit = AuditConfig{Stream: "s", Group: "g", Consumer: "c", ClaimInterval: time.Second}
	if err := c.ValidateWorker(); err == nil {
		t.Fatalf("expected error without postgres dsn")
	}
	c.Postgres = PostgresConfig{DSN: "postgres://localhost/submita", MaxOpen: 10, MaxIdle: 2}
	if err := c.ValidateWorker(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestValidateWorker_BoundsPool(t *testing.T) {
	cases := []struct {
		name string
		pg   PostgresConfig
		want string
	}{
		{"zero max", PostgresConfig{MaxOpen: 0}, "postgres.maxopen"},
		{"overflow", PostgresConfig{MaxOpen: 1 << 40}, "postgres.maxopen"},
		{"idle above max", PostgresConfig{MaxOpen: 4, MaxIdle: 5}, "postgres.maxidle"},
		{"negative idle", PostgresConfig{MaxOpen: 4, MaxIdle: -1}, "postgres.maxidle"},
		{"negative timeout", PostgresConfig{MaxOpen: 4, StatementTimeout: -time.Second}, "postgres.statementtimeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := validConfig()
			c.Audit = AuditConfig{Stream: "s", Group: "g", Consumer: "c", ClaimInterval: time.Second}
			c.Postgres = tc.pg
			c.Postgres.DSN = "postgres://localhost/submita"
			err := c.ValidateWorker()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected %q error, got %v", tc.want, err)
			}
		})
	}
}

func TestValidate_NegativeRedisPool(t *testing.T) {
	c := validConfig()
	c.Redis.PoolSize = -1
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "redis.poolsize") {
		t.Fatalf("expected redis.poolsize error, got %v", err)
	}
}

func TestValidate_MetricsPort(t *testing.T) {
	c := validConfig()
	c.HTTP.MetricsPort = c.HTTP.Port
	if err := c.Validate(); err == nil || !strings.Contains(err.Error(), "http.metricsport") {
		t.Fatalf("expected metrics port clash, got %v", err)
	}
	c.HTTP.MetricsPort = 9091
	if err := c.Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got := c.MetricsAddr(); got != "0.0.0.0:9091" {
		t.Fatalf("unexpected metrics addr %q", got)
	}
}

func TestHTTPAddr(t *testing.T) {
	c := validConfig()
	if got := c.HTTPAddr(); got != "0.0.0.0:3000" {
		t.Fatalf("unexpected addr %q", got)
	}
}
