package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

const maxPoolConns = 1000

// LoadWorker reads the worker configuration. It shares keys with the portal
// but uses its own file name and env prefix.
func LoadWorker() (*AppConfig, error) {
	cfg, err := load("worker", "SUBMITA_WORKER", func(v *viper.Viper) {
		// metrics and health only
		v.SetDefault("http.port", 9090)
		v.SetDefault("postgres.applicationname", "submita-worker")
		v.SetDefault("redis.clientname", "submita-worker")
		// the consumer blocks on XREADGROUP for up to 5s
		v.SetDefault("redis.readtimeout", "10s")
	})
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateWorker(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) ValidateWorker() error {
	var errs []error
	if c.Postgres.DSN == "" {
		errs = append(errs, errors.New("postgres.dsn is required"))
	}
	if c.Postgres.MaxOpen < 1 || c.Postgres.MaxOpen > maxPoolConns {
		errs = append(errs, fmt.Errorf("postgres.maxopen must be between 1 and %d, got %d", maxPoolConns, c.Postgres.MaxOpen))
	}
	if c.Postgres.MaxIdle < 0 || c.Postgres.MaxIdle > c.Postgres.MaxOpen {
		errs = append(errs, fmt.Errorf("postgres.maxidle must be between 0 and postgres.maxopen, got %d", c.Postgres.MaxIdle))
	}
	if c.Postgres.StatementTimeout < 0 {
		errs = append(errs, errors.New("postgres.statementtimeout must not be negative"))
	}
	if c.Audit.Stream == "" || c.Audit.Group == "" || c.Audit.Consumer == "" {
		errs = append(errs, errors.New("audit.stream, audit.group and audit.consumer are required"))
	}
	if c.Audit.ClaimInterval <= 0 {
		errs = append(errs, fmt.Errorf("audit.claiminterval must be positive, got %s", c.Audit.ClaimInterval))
	}
	return errors.Join(errs...)
}
