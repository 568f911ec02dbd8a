package config

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration.
type Config struct {
	DatabaseURL  string
	Port         string
	IsProduction bool
	AllowOrigin  string
	LogLevel     string

	// Matching thresholds. The defaults (50/85) are a conservative starting
	// point; tune against observed false-positive rates.
	SuggestThreshold    int
	AutoAcceptThreshold int
	AmbiguityMargin     int
	AmountTolerance     float64
	MaxCandidates       int
	SuggestionCount     int
}

// Load reads configuration from environment variables, with a .env file as
// fallback for local development.
func Load() (*Config, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	viper.SetDefault("PGSQL_URL", "")
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("IS_PRODUCTION", false)
	viper.SetDefault("ALLOW_ORIGIN", "http://localhost:3000")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("SUGGEST_THRESHOLD", 50)
	viper.SetDefault("AUTO_ACCEPT_THRESHOLD", 85)
	viper.SetDefault("AMBIGUITY_MARGIN", 10)
	viper.SetDefault("AMOUNT_TOLERANCE", 0.02)
	viper.SetDefault("MAX_CANDIDATES", 5)
	viper.SetDefault("SUGGESTION_COUNT", 3)

	viper.AutomaticEnv()

	cfg := &Config{
		DatabaseURL:         viper.GetString("PGSQL_URL"),
		Port:                viper.GetString("PORT"),
		IsProduction:        viper.GetBool("IS_PRODUCTION"),
		AllowOrigin:         viper.GetString("ALLOW_ORIGIN"),
		LogLevel:            viper.GetString("LOG_LEVEL"),
		SuggestThreshold:    viper.GetInt("SUGGEST_THRESHOLD"),
		AutoAcceptThreshold: viper.GetInt("AUTO_ACCEPT_THRESHOLD"),
		AmbiguityMargin:     viper.GetInt("AMBIGUITY_MARGIN"),
		AmountTolerance:     viper.GetFloat64("AMOUNT_TOLERANCE"),
		MaxCandidates:       viper.GetInt("MAX_CANDIDATES"),
		SuggestionCount:     viper.GetInt("SUGGESTION_COUNT"),
	}

	if cfg.DatabaseURL == "" {
		log.Println("Warning: PGSQL_URL environment variable not set.")
	}

	return cfg, nil
}
