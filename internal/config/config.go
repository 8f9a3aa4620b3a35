// Package config loads application configuration from environment
// variables and optional .env files via viper.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"go.uber.org/fx"
)

type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	DB      DBConfig      `mapstructure:"db"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Billing BillingConfig `mapstructure:"billing"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"`
}

type DBConfig struct {
	// Driver is "postgres" or "sqlite".
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type BillingConfig struct {
	// DefaultClosingDay is used when a tenant has no active payment
	// provider configured.
	DefaultClosingDay int `mapstructure:"default_closing_day"`
	// IdempotencyTTLSeconds bounds how long a purchase-confirmation
	// token is held in redis.
	IdempotencyTTLSeconds int `mapstructure:"idempotency_ttl_seconds"`
}

var Module = fx.Module("config",
	fx.Provide(Load),
)

func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("MANABILL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("db.driver", "sqlite")
	v.SetDefault("db.dsn", "file:manabill.db?cache=shared")
	v.SetDefault("redis.addr", "")
	v.SetDefault("billing.default_closing_day", 25)
	v.SetDefault("billing.idempotency_ttl_seconds", 86400)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
