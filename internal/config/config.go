package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

type HTTPConfig struct {
	Host         string
	Port         int
	// MetricsPort serves /metrics on its own listener; 0 disables it.
	MetricsPort  int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type AppInfo struct {
	Name      string
	PublicURL string
}

// APIConfig describes the external Submita backend.
type APIConfig struct {
	BaseURL  string
	Timeout  time.Duration
	Retries  int
	Envelope string
}

type UploadConfig struct {
	MaxSize    int64
	ImageTypes []string
	PDFTypes   []string
}

type SecurityConfig struct {
	JWTSecret    string
	JWTPublicKey string
	JWTIssuer    string
	CookieSecure bool
	CookieDomain string
	ProfileTTL   time.Duration
}

type PostgresConfig struct {
	DSN              string
	MaxOpen          int
	MaxIdle          int
	ConnMaxLifetime  time.Duration
	ApplicationName  string
	StatementTimeout time.Duration
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	ClientName   string
	PoolSize     int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type StorageConfig struct {
	Endpoint   string
	AccessKey  string
	SecretKey  string
	UseSSL     bool
	Region     string
	PresignTTL time.Duration
}

type AuditConfig struct {
	Stream        string
	Group         string
	Consumer      string
	ClaimInterval time.Duration
	Retention     time.Duration
}

type NotifyConfig struct {
	TTL time.Duration
}

type AppConfig struct {
	Environment      string
	HTTP             HTTPConfig
	App              AppInfo
	API              APIConfig
	Upload           UploadConfig
	Security         SecurityConfig
	Postgres         PostgresConfig
	Redis            RedisConfig
	Storage          StorageConfig
	Audit            AuditConfig
	Notify           NotifyConfig
	AllowCORSOrigins []string
}

func Load() (*AppConfig, error) {
	cfg, err := load("config", "SUBMITA", nil)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func load(name, envPrefix string, defaults func(*viper.Viper)) (*AppConfig, error) {
	// .env is a development convenience; a missing file is fine.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName(name)
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("../config")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	if defaults != nil {
		defaults(v)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 3000)
	v.SetDefault("http.metricsport", 9091)
	v.SetDefault("http.readtimeout", "10s")
	v.SetDefault("http.writetimeout", "60s")
	v.SetDefault("http.idletimeout", "60s")

	v.SetDefault("app.name", "Submita")
	v.SetDefault("app.publicurl", "http://localhost:3000")

	v.SetDefault("api.baseurl", "http://localhost:8080/api")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.retries", 0)
	v.SetDefault("api.envelope", "detect")

	v.SetDefault("upload.maxsize", 10*1024*1024)
	v.SetDefault("upload.imagetypes", []string{"image/jpeg", "image/png", "image/webp"})
	v.SetDefault("upload.pdftypes", []string{"application/pdf"})

	// Keys without a real default still need one so AutomaticEnv picks them up on Unmarshal.
	v.SetDefault("security.jwtsecret", "")
	v.SetDefault("security.jwtpublickey", "")
	v.SetDefault("security.jwtissuer", "")
	v.SetDefault("security.cookiedomain", "")
	v.SetDefault("security.cookiesecure", false)
	v.SetDefault("security.profilettl", "1m")

	v.SetDefault("postgres.dsn", "")
	v.SetDefault("postgres.maxopen", 10)
	v.SetDefault("postgres.maxidle", 2)
	v.SetDefault("postgres.connmaxlifetime", "30m")
	v.SetDefault("postgres.applicationname", "submita")
	v.SetDefault("postgres.statementtimeout", "15s")

	v.SetDefault("redis.addr", "127.0.0.1:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.clientname", "submita-portal")
	v.SetDefault("redis.poolsize", 20)
	v.SetDefault("redis.dialtimeout", "2s")
	// Flash and profile reads sit on the page path; keep them short.
	v.SetDefault("redis.readtimeout", "500ms")
	v.SetDefault("redis.writetimeout", "500ms")

	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.accesskey", "")
	v.SetDefault("storage.secretkey", "")
	v.SetDefault("storage.usessl", false)
	v.SetDefault("storage.region", "us-east-1")
	v.SetDefault("storage.presignttl", "15m")

	v.SetDefault("audit.stream", "submita:audit")
	v.SetDefault("audit.group", "submita-audit")
	v.SetDefault("audit.consumer", "worker-1")
	v.SetDefault("audit.claiminterval", "30s")
	v.SetDefault("audit.retention", "2160h") // 90 days

	v.SetDefault("notify.ttl", "2m")

	v.SetDefault("allowcorsorigins", []string{})
}

func (c *AppConfig) Validate() error {
	var errs []error

	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port must be a valid port, got %d", c.HTTP.Port))
	}
	if c.HTTP.MetricsPort < 0 || c.HTTP.MetricsPort > 65535 || (c.HTTP.MetricsPort != 0 && c.HTTP.MetricsPort == c.HTTP.Port) {
		errs = append(errs, fmt.Errorf("http.metricsport must be 0 or a port other than http.port, got %d", c.HTTP.MetricsPort))
	}

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.baseurl is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.baseurl must be an absolute URL, got %q", c.API.BaseURL))
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, errors.New("api.timeout must be positive"))
	}
	if c.API.Retries < 0 {
		errs = append(errs, errors.New("api.retries must not be negative"))
	}
	switch c.API.Envelope {
	case "detect", "always", "never":
	default:
		errs = append(errs, fmt.Errorf("api.envelope must be one of detect, always, never, got %q", c.API.Envelope))
	}

	if c.Upload.MaxSize <= 0 {
		errs = append(errs, errors.New("upload.maxsize must be positive"))
	}
	if len(c.Upload.PDFTypes) == 0 || len(c.Upload.ImageTypes) == 0 {
		errs = append(errs, errors.New("upload.pdftypes and upload.imagetypes must not be empty"))
	}

	if c.Security.JWTSecret == "" && c.Security.JWTPublicKey == "" {
		errs = append(errs, errors.New("security.jwtsecret or security.jwtpublickey is required"))
	}
	if c.IsProduction() && !c.Security.CookieSecure {
		errs = append(errs, errors.New("security.cookiesecure must be enabled in production"))
	}

	if c.Redis.PoolSize < 0 {
		errs = append(errs, errors.New("redis.poolsize must not be negative"))
	}

	return errors.Join(errs...)
}

func (c *AppConfig) IsProduction() bool {
	return c.Environment == "production"
}

func (c *AppConfig) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.Port)
}

func (c *AppConfig) MetricsAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTP.Host, c.HTTP.MetricsPort)
}
