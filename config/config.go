package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Refresh token reuse behaviors.
const (
	RefreshRotationRotate = "rotate" // A redeemed refresh token is invalidated and replaced
	RefreshRotationReject = "reject" // A refresh token stays valid until expiry; reuse of a rotated one is rejected
)

// EngineConfig holds the token engine's configuration.
// Tags use mapstructure for Viper unmarshalling.
type EngineConfig struct {
	Issuer string `mapstructure:"ISSUER"`

	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogPretty bool   `mapstructure:"LOG_PRETTY"`

	// Token defaults. Clients may narrow the access token lifetime but the
	// server default applies when they declare none.
	DefaultSigningAlg   string        `mapstructure:"DEFAULT_SIGNING_ALG"`
	AccessTokenTTL      time.Duration `mapstructure:"ACCESS_TOKEN_TTL"`
	RefreshTokenTTL     time.Duration `mapstructure:"REFRESH_TOKEN_TTL"`
	AuthCodeTTL         time.Duration `mapstructure:"AUTH_CODE_TTL"`
	RefreshRotationMode string        `mapstructure:"REFRESH_ROTATION_MODE"`

	// Device flow (RFC 8628).
	DeviceCodeTTL             time.Duration `mapstructure:"DEVICE_CODE_TTL"`
	DevicePollInterval        time.Duration `mapstructure:"DEVICE_POLL_INTERVAL"`
	DeviceVerificationBaseURI string        `mapstructure:"DEVICE_VERIFICATION_BASE_URI"`

	// UMA.
	TicketTTL time.Duration `mapstructure:"TICKET_TTL"`
	// DefaultPolicyOpen controls the fallback for resource sets without
	// rules: deny (false) unless explicitly configured open.
	DefaultPolicyOpen bool `mapstructure:"DEFAULT_POLICY_OPEN"`
}

// LoadConfig reads configuration from file, environment variables, and
// defaults.
func LoadConfig() (*EngineConfig, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/shadow-uma/")
	v.AddConfigPath("$HOME/.shadow-uma")
	v.AddConfigPath(".")

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("ISSUER", "https://localhost:8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PRETTY", true)
	v.SetDefault("DEFAULT_SIGNING_ALG", "RS256")
	v.SetDefault("ACCESS_TOKEN_TTL", time.Hour)
	v.SetDefault("REFRESH_TOKEN_TTL", 30*24*time.Hour)
	v.SetDefault("AUTH_CODE_TTL", 10*time.Minute)
	v.SetDefault("REFRESH_ROTATION_MODE", RefreshRotationRotate)
	v.SetDefault("DEVICE_CODE_TTL", 5*time.Minute)
	v.SetDefault("DEVICE_POLL_INTERVAL", 5*time.Second)
	v.SetDefault("DEVICE_VERIFICATION_BASE_URI", "https://localhost:8080")
	v.SetDefault("TICKET_TTL", 5*time.Minute)
	v.SetDefault("DEFAULT_POLICY_OPEN", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Missing config file is fine; defaults and env vars apply.
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &cfg, nil
}

// Default returns the engine defaults without touching files or env.
func Default() *EngineConfig {
	return &EngineConfig{
		Issuer:                    "https://localhost:8080",
		LogLevel:                  "info",
		DefaultSigningAlg:         "RS256",
		AccessTokenTTL:            time.Hour,
		RefreshTokenTTL:           30 * 24 * time.Hour,
		AuthCodeTTL:               10 * time.Minute,
		RefreshRotationMode:       RefreshRotationRotate,
		DeviceCodeTTL:             5 * time.Minute,
		DevicePollInterval:        5 * time.Second,
		DeviceVerificationBaseURI: "https://localhost:8080",
		TicketTTL:                 5 * time.Minute,
		DefaultPolicyOpen:         false,
	}
}
