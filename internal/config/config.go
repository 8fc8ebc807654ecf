package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v9"
	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv  string `env:"APP_ENV" envDefault:"development"`
	AppPort string `env:"APP_PORT" envDefault:"8080"`

	// DBURL wins over the discrete DB_* parts when both are set.
	DBURL      string `env:"DB_URL"`
	DBHost     string `env:"DB_HOST"`
	DBUser     string `env:"DB_USER"`
	DBPassword string `env:"DB_PASSWORD"`
	DBName     string `env:"DB_NAME"`
	DBPort     string `env:"DB_PORT" envDefault:"5432"`

	SupabaseDBURL string `env:"SUPABASE_DB_URL"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`
	StripeReturnURL     string `env:"STRIPE_RETURN_URL" envDefault:"https://paylive.cc/checkout/return?session_id={CHECKOUT_SESSION_ID}"`

	ClerkJWTKey          string `env:"CLERK_JWT_KEY"`
	ClerkJWTPublicKeyPEM string `env:"CLERK_JWT_PUBLIC_KEY_PEM"`

	BoxtalAccessKey string `env:"BOXTAL_ACCESS_KEY"`
	BoxtalSecretKey string `env:"BOXTAL_SECRET_KEY"`
	BoxtalBaseURL   string `env:"BOXTAL_BASE_URL" envDefault:"https://api.boxtal.com"`

	NominatimBaseURL string `env:"NOMINATIM_BASE_URL" envDefault:"https://nominatim.openstreetmap.org"`

	InseeAPIKey  string `env:"INSEE_API_KEY"`
	InseeBaseURL string `env:"INSEE_BASE_URL" envDefault:"https://api.insee.fr/api-sirene/3.11"`
	BCEAPIKey    string `env:"BCE_API_KEY"`
	BCEBaseURL   string `env:"BCE_BASE_URL" envDefault:"https://api.kbodata.app/v2"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"Paylive <contact@paylive.cc>"`

	APIBaseURL  string        `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"15s"`

	InternalSecretKey string `env:"INTERNAL_SECRET_KEY"`
}

// Load reads .env (if any) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if cfg.DatabaseURL() == "" {
		return nil, errors.New("database not configured: set DB_URL or DB_HOST")
	}

	return cfg, nil
}

func LoadConfig() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("Environment variables not loaded properly: %v", err)
	}
	return cfg
}

func (c *Config) DatabaseURL() string {
	if c.DBURL != "" {
		return c.DBURL
	}
	if c.DBHost == "" {
		return ""
	}
	return fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		c.DBHost, c.DBUser, c.DBPassword, c.DBName, c.DBPort,
	)
}

// FormsDatabaseURL falls back to the main database when no Supabase DSN is set.
func (c *Config) FormsDatabaseURL() string {
	if c.SupabaseDBURL != "" {
		return c.SupabaseDBURL
	}
	return c.DatabaseURL()
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
