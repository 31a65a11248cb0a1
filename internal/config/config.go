package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Port           int           `validate:"min=1,max=65535"`
	Env            string        `validate:"oneof=development staging production"`
	LogLevel       string        `validate:"oneof=trace debug info warn error"`
	DatabaseURL    string        `validate:"omitempty,url"`
	RequestTimeout time.Duration `validate:"gt=0"`
	MaxUploadMB    int64         `validate:"min=1,max=50"`
	DemoCount      int           `validate:"min=1,max=100000"`
}

// Addr is the listen address for the HTTP server.
func (c Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Persistence reports whether run summaries should be written to Postgres.
func (c Config) Persistence() bool {
	return c.DatabaseURL != ""
}

// Load reads configuration from the environment, optionally seeded by a
// .env file in the working directory. Environment variables win.
func Load() (Config, error) {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
			return Config{}, fmt.Errorf("read .env: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	cfg := Config{
		Port:           v.GetInt("PORT"),
		Env:            strings.ToLower(strings.TrimSpace(v.GetString("APP_ENV"))),
		LogLevel:       strings.ToLower(strings.TrimSpace(v.GetString("LOG_LEVEL"))),
		DatabaseURL:    strings.TrimSpace(v.GetString("DATABASE_URL")),
		RequestTimeout: v.GetDuration("REQUEST_TIMEOUT"),
		MaxUploadMB:    v.GetInt64("MAX_UPLOAD_MB"),
		DemoCount:      v.GetInt("DEMO_COUNT"),
	}

	if err := validator.New().Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", 8080)
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("DATABASE_URL", "")
	v.SetDefault("REQUEST_TIMEOUT", 60*time.Second)
	v.SetDefault("MAX_UPLOAD_MB", 50)
	v.SetDefault("DEMO_COUNT", 150)
}
