package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AmadeusClientID     string
	AmadeusClientSecret string
	AmadeusEnv          string

	GoogleMapsKey string

	OpenAIKey   string
	OpenAIModel string
	HFKey       string
	HFModel     string

	DatabaseDriver string
	DatabaseURL    string

	Port         string
	FrontendURLs []string
	ReleaseMode  bool

	HTTPTimeout      time.Duration
	TokenMaxRetries  int
	TokenRetryDelay  time.Duration
	LocationCacheTTL time.Duration
	SessionIdleTTL   time.Duration
	ExceptionsFile   string

	MinBudget        decimal.Decimal
	MaxFlightOptions int
	MaxHotelOptions  int
}

// Load reads .env (when present) and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found — using environment variables")
	}

	cfg := &Config{
		AmadeusClientID:     os.Getenv("AMADEUS_CLIENT_ID"),
		AmadeusClientSecret: os.Getenv("AMADEUS_CLIENT_SECRET"),
		AmadeusEnv:          getEnv("AMADEUS_ENV", "test"),
		GoogleMapsKey:       os.Getenv("GOOGLE_MAPS_API_KEY"),
		OpenAIKey:           strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		HFKey:               os.Getenv("HUGGINGFACE_API_KEY"),
		HFModel:             getEnv("HF_MODEL", "mistralai/Mistral-7B-Instruct-v0.3"),
		DatabaseDriver:      getEnv("DATABASE_DRIVER", "sqlite"),
		Port:                getEnv("PORT", "8080"),
		ReleaseMode:         os.Getenv("GIN_MODE") == "release",
		HTTPTimeout:         time.Duration(getInt("HTTP_TIMEOUT_SECONDS", 5)) * time.Second,
		TokenMaxRetries:     getInt("TOKEN_MAX_RETRIES", 3),
		TokenRetryDelay:     time.Duration(getInt("TOKEN_RETRY_DELAY_SECONDS", 2)) * time.Second,
		LocationCacheTTL:    time.Duration(getInt("LOCATION_CACHE_MINUTES", 30)) * time.Minute,
		SessionIdleTTL:      time.Duration(getInt("SESSION_IDLE_MINUTES", 120)) * time.Minute,
		ExceptionsFile:      os.Getenv("LOCATION_EXCEPTIONS_FILE"),
		MaxFlightOptions:    getInt("MAX_FLIGHT_OPTIONS", 3),
		MaxHotelOptions:     getInt("MAX_HOTEL_OPTIONS", 3),
	}

	minBudget, err := decimal.NewFromString(getEnv("MIN_BUDGET", "100"))
	if err != nil {
		return nil, fmt.Errorf("invalid MIN_BUDGET: %w", err)
	}
	cfg.MinBudget = minBudget

	switch cfg.DatabaseDriver {
	case "postgres":
		cfg.DatabaseURL = buildDSN()
	case "sqlite":
		cfg.DatabaseURL = getEnv("DATABASE_URL", "file:tripplanner.db")
	default:
		return nil, fmt.Errorf("unsupported DATABASE_DRIVER %q (postgres or sqlite)", cfg.DatabaseDriver)
	}

	cfg.FrontendURLs = []string{"http://localhost:5173", "http://localhost:3000"}
	for _, u := range strings.Split(os.Getenv("FRONTEND_URL"), ",") {
		if u = strings.TrimSpace(u); u != "" {
			cfg.FrontendURLs = append(cfg.FrontendURLs, u)
		}
	}

	if cfg.TokenMaxRetries < 1 {
		cfg.TokenMaxRetries = 1
	}
	return cfg, nil
}

// AmadeusConfigured reports whether live flight search is available.
func (c *Config) AmadeusConfigured() bool {
	return c.AmadeusClientID != "" && c.AmadeusClientSecret != ""
}

func (c *Config) AmadeusBaseURL() string {
	if c.AmadeusEnv == "production" {
		return "https://api.amadeus.com"
	}
	return "https://test.api.amadeus.com"
}

func buildDSN() string {
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	host := getEnv("DB_HOST", "localhost")
	port := getEnv("DB_PORT", "5432")
	user := getEnv("DB_USER", "postgres")
	pass := getEnv("DB_PASSWORD", "postgres")
	name := getEnv("DB_NAME", "tripplanner")
	sslmode := getEnv("DB_SSLMODE", "disable")

	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		host, port, user, pass, name, sslmode)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Printf("⚠️  %s=%q is not a valid number — using %d", key, v, fallback)
		return fallback
	}
	return n
}
