package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

type LogConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
	JSON    bool   `mapstructure:"json"`
	File    string `mapstructure:"file"`
	Otel    bool   `mapstructure:"otel"`
}

type ServiceConfig struct {
	Id string `mapstructure:"id"`
}

type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

type PubsubConfig struct {
	Driver string `mapstructure:"driver"`
	URL    string `mapstructure:"url"`
}

// IdpConfig of the identity provider REST endpoint.
type IdpConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// StateConfig of the local persisted auth state.
type StateConfig struct {
	// Path of the state file ; empty for the per-user default
	Path string `mapstructure:"path"`
}

type Config struct {
	Log      LogConfig      `mapstructure:"log"`
	Service  ServiceConfig  `mapstructure:"service"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Pubsub   PubsubConfig   `mapstructure:"pubsub"`
	Idp      IdpConfig      `mapstructure:"idp"`
	State    StateConfig    `mapstructure:"state"`
}

// LoadConfig reads the optional config file and applies STW_*
// environment overrides, e.g. STW_POSTGRES_DSN, STW_IDP_URL.
// A missing file is fine: env-only runs are supported.
func LoadConfig(file string) (*Config, error) {

	v := viper.New()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("identity-context")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/stayware")
	}

	v.SetEnvPrefix("STW")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("log.level", "info")
	v.SetDefault("pubsub.driver", "amqp")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) || file != "" {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// env-only ; no file is not an error
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.Service.Id == "" {
		// per-node identity ; exclusive broker queues key off it
		cfg.Service.Id = uuid.NewString()
	}

	return &cfg, nil
}
