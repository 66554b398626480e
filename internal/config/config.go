package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env         string
	Port        string
	DatabaseURL string
	RedisURL    string

	JWTSecret        string
	JWTRefreshSecret string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	CookieSecure     bool

	MaxMediaSize  int64
	MaxTextLength int

	LoginRateLimit  int
	LoginRateWindow time.Duration

	EventsPerSecond float64
	EventBurst      int

	KafkaBrokers []string
	KafkaTopic   string

	AllowedOrigins []string
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Load читает .env.local / .env (если есть) и переменные окружения
func Load() (*Config, error) {
	if err := godotenv.Load(".env.local"); err != nil {
		_ = godotenv.Load()
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("PORT", "8080")
	v.SetDefault("REDIS_URL", "redis://localhost:6379/0")
	v.SetDefault("JWT_ACCESS_TTL", "15m")
	v.SetDefault("JWT_REFRESH_TTL", "168h")
	v.SetDefault("MAX_MEDIA_SIZE", 1<<20)
	v.SetDefault("MAX_TEXT_LENGTH", 5000)
	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_WINDOW", "15m")
	v.SetDefault("WS_EVENTS_PER_SECOND", 20)
	v.SetDefault("WS_EVENT_BURST", 40)
	v.SetDefault("KAFKA_TOPIC", "chat.messages")
}

func fromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Env:              v.GetString("APP_ENV"),
		Port:             v.GetString("PORT"),
		DatabaseURL:      v.GetString("DATABASE_URL"),
		RedisURL:         v.GetString("REDIS_URL"),
		JWTSecret:        v.GetString("JWT_SECRET"),
		JWTRefreshSecret: v.GetString("JWT_REFRESH_SECRET"),
		AccessTTL:        v.GetDuration("JWT_ACCESS_TTL"),
		RefreshTTL:       v.GetDuration("JWT_REFRESH_TTL"),
		CookieSecure:     v.GetBool("COOKIE_SECURE"),
		MaxMediaSize:     v.GetInt64("MAX_MEDIA_SIZE"),
		MaxTextLength:    v.GetInt("MAX_TEXT_LENGTH"),
		LoginRateLimit:   v.GetInt("LOGIN_RATE_LIMIT"),
		LoginRateWindow:  v.GetDuration("LOGIN_RATE_WINDOW"),
		EventsPerSecond:  v.GetFloat64("WS_EVENTS_PER_SECOND"),
		EventBurst:       v.GetInt("WS_EVENT_BURST"),
		KafkaBrokers:     splitList(v.GetString("KAFKA_BROKERS")),
		KafkaTopic:       v.GetString("KAFKA_TOPIC"),
		AllowedOrigins:   splitList(v.GetString("ALLOWED_ORIGINS")),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is not set")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is not set")
	}
	if cfg.JWTRefreshSecret == "" {
		cfg.JWTRefreshSecret = cfg.JWTSecret + "_refresh"
	}
	if cfg.JWTRefreshSecret == cfg.JWTSecret {
		return nil, errors.New("JWT_REFRESH_SECRET must differ from JWT_SECRET")
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
