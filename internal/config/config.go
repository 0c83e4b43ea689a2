package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog/log"
)

var knownWeakSecrets = []string{
	"change-me", "dev-secret-change-me", "secret", "admin", "password",
}

type Config struct {
	Port                      int    `env:"PORT" envDefault:"8080"`
	DatabaseURL               string `env:"DATABASE_URL,required"`
	RedisURL                  string `env:"REDIS_URL,required"`
	TelegramBotToken          string `env:"TELEGRAM_BOT_TOKEN"`
	SessionSecret             string `env:"SESSION_SECRET"`
	AllowInsecureAuth         bool   `env:"ALLOW_INSECURE_AUTH" envDefault:"false"`
	InitDataMaxAgeSeconds     int    `env:"INIT_DATA_MAX_AGE_SECONDS" envDefault:"3600"`
	SessionTTLHours           int    `env:"SESSION_TTL_HOURS" envDefault:"24"`
	IdempotencyRetentionHours int    `env:"IDEMPOTENCY_RETENTION_HOURS" envDefault:"24"`
	PlatformFeeBps            int    `env:"PLATFORM_FEE_BPS" envDefault:"250"`
	EscrowWalletAddress       string `env:"ESCROW_WALLET_ADDRESS"`
	ChatRateLimitPerMin       int    `env:"CHAT_RATE_LIMIT_PER_MIN" envDefault:"60"`
	LogLevel                  string `env:"LOG_LEVEL" envDefault:"info"`
}

func (c *Config) InitDataMaxAge() time.Duration {
	return time.Duration(c.InitDataMaxAgeSeconds) * time.Second
}

func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

func (c *Config) IdempotencyRetention() time.Duration {
	return time.Duration(c.IdempotencyRetentionHours) * time.Hour
}

func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}

func (c *Config) Validate(isProduction bool) error {
	if c.PlatformFeeBps < 0 || c.PlatformFeeBps > 10000 {
		return fmt.Errorf("PLATFORM_FEE_BPS must be between 0 and 10000")
	}

	if isProduction {
		if c.AllowInsecureAuth {
			return fmt.Errorf("ALLOW_INSECURE_AUTH must not be enabled in production")
		}
		if c.TelegramBotToken == "" {
			return fmt.Errorf("TELEGRAM_BOT_TOKEN is required in production")
		}
		if err := validateSecret("SESSION_SECRET", c.SessionSecret); err != nil {
			return err
		}
		if c.EscrowWalletAddress == "" {
			return fmt.Errorf("ESCROW_WALLET_ADDRESS is required in production")
		}
		if strings.HasPrefix(c.RedisURL, "redis://") {
			log.Warn().Msg("REDIS_URL uses redis:// (not TLS) in production: consider using rediss://")
		}
	} else if c.TelegramBotToken == "" && !c.AllowInsecureAuth {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is empty: set it, or set ALLOW_INSECURE_AUTH=true for local development")
	}

	return nil
}

func validateSecret(name, value string) error {
	if len(value) < 32 {
		return fmt.Errorf("%s must be at least 32 characters in production (generate with: openssl rand -base64 32)", name)
	}
	for _, weak := range knownWeakSecrets {
		if value == weak {
			return fmt.Errorf("%s is a known weak default; set a strong secret in production", name)
		}
	}
	return nil
}

func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
