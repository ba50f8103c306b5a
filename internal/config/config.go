package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort  string
	SwaggerHost string
	CORSOrigins []string
	ResetDB     bool

	DBDriver string
	DBDSN    string

	RedisAddr string
	RedisDB   int
	RedisPass string

	JWTSecret       string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
	BcryptCost      int

	RabbitMQURL string

	RateLimit RateLimitConfig

	BookingMaxRetries int

	LogLevel       string
	LogDevelopment bool

	Admin AdminConfig
}

// RateLimitConfig controls the token buckets applied at the HTTP edge.
type RateLimitConfig struct {
	Enabled     bool
	Window      time.Duration
	MaxRequests int
}

// AdminConfig is the bootstrap admin account created by cmd/seed.
type AdminConfig struct {
	Name           string
	Email          string
	Password       string
	SeedDemoEvents bool
}

// Load builds Config from the environment, reading .env files first when present.
func Load() *Config {
	// Missing .env files are fine; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return &Config{
		ServerPort:  v.GetString("SERVER_PORT"),
		SwaggerHost: v.GetString("SWAGGER_HOST"),
		CORSOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		ResetDB:     v.GetBool("RESET_DB"),

		DBDriver: strings.ToLower(v.GetString("DB_DRIVER")),
		DBDSN:    v.GetString("DB_DSN"),

		RedisAddr: v.GetString("REDIS_ADDR"),
		RedisDB:   v.GetInt("REDIS_DB"),
		RedisPass: v.GetString("REDIS_PASSWORD"),

		JWTSecret:       v.GetString("JWT_SECRET"),
		AccessTokenTTL:  v.GetDuration("ACCESS_TOKEN_TTL"),
		RefreshTokenTTL: v.GetDuration("REFRESH_TOKEN_TTL"),
		BcryptCost:      v.GetInt("BCRYPT_COST"),

		RabbitMQURL: v.GetString("RABBITMQ_URL"),

		RateLimit: RateLimitConfig{
			Enabled:     v.GetBool("RATE_LIMIT_ENABLED"),
			Window:      v.GetDuration("RATE_LIMIT_WINDOW"),
			MaxRequests: v.GetInt("RATE_LIMIT_MAX_REQUESTS"),
		},

		BookingMaxRetries: v.GetInt("BOOKING_MAX_RETRIES"),

		LogLevel:       v.GetString("LOG_LEVEL"),
		LogDevelopment: v.GetBool("LOG_DEVELOPMENT"),

		Admin: AdminConfig{
			Name:           v.GetString("ADMIN_NAME"),
			Email:          strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
			Password:       v.GetString("ADMIN_PASSWORD"),
			SeedDemoEvents: v.GetBool("SEED_DEMO_EVENTS"),
		},
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("RESET_DB", false)

	v.SetDefault("DB_DRIVER", "mysql")
	v.SetDefault("DB_DSN", "user:password@tcp(localhost:3306)/ticketing?charset=utf8mb4&parseTime=True&loc=UTC")

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "change-me")
	v.SetDefault("ACCESS_TOKEN_TTL", "15m")
	v.SetDefault("REFRESH_TOKEN_TTL", "168h")
	v.SetDefault("BCRYPT_COST", 10)

	v.SetDefault("RATE_LIMIT_ENABLED", true)
	v.SetDefault("RATE_LIMIT_WINDOW", "15m")
	v.SetDefault("RATE_LIMIT_MAX_REQUESTS", 100)

	v.SetDefault("BOOKING_MAX_RETRIES", 5)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_DEVELOPMENT", false)

	v.SetDefault("ADMIN_NAME", "System Admin")
	v.SetDefault("ADMIN_EMAIL", "admin@example.com")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("SEED_DEMO_EVENTS", false)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
