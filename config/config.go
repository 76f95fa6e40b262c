package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// LoadENV loads environment variables from .env unless GO_ENV points at a
// deployed environment where they come from the platform.
func LoadENV() error {
	goEnv := os.Getenv("GO_ENV")

	if goEnv == "" || goEnv == "development" {
		err := godotenv.Load()
		if err != nil {
			return err
		}
	}

	return nil
}

type EnviornmentVariable struct {
	GO_ENV       string
	DB_USER_NAME string
	DB_PASSWORD  string
	DB_NAME      string
	DB_HOST      string
	DB_PORT      string
	DB_SSL_MODE  string
	PORT         int
	// JWT Configuration
	JWT_SECRET string
	JWT_ISSUER string
	// Redis Configuration
	REDIS_URL string
	// OpenRouter Configuration
	OPENROUTER_API_KEY  string
	OPENROUTER_BASE_URL string
	OPENROUTER_MODEL    string
	// Misc
	CRON_ENABLED    string
	ALLOWED_ORIGINS string
}

func Get() (*EnviornmentVariable, error) {

	port, err := strconv.Atoi(os.Getenv("PORT"))
	if err != nil {
		port = 8080
	}

	// Database defaults
	dbHost := os.Getenv("DB_HOST")
	if dbHost == "" {
		dbHost = "localhost"
	}

	dbPort := os.Getenv("DB_PORT")
	if dbPort == "" {
		dbPort = "5432"
	}

	envVariables := &EnviornmentVariable{
		GO_ENV:       os.Getenv("GO_ENV"),
		DB_USER_NAME: os.Getenv("DB_USER_NAME"),
		DB_PASSWORD:  os.Getenv("DB_PASSWORD"),
		DB_NAME:      os.Getenv("DB_NAME"),
		DB_HOST:      dbHost,
		DB_PORT:      dbPort,
		DB_SSL_MODE:  os.Getenv("DB_SSL_MODE"),
		PORT:         port,
		// JWT
		JWT_SECRET: os.Getenv("JWT_SECRET"),
		JWT_ISSUER: os.Getenv("JWT_ISSUER"),
		// Redis
		REDIS_URL: os.Getenv("REDIS_URL"),
		// OpenRouter
		OPENROUTER_API_KEY:  os.Getenv("OPENROUTER_API_KEY"),
		OPENROUTER_BASE_URL: os.Getenv("OPENROUTER_BASE_URL"),
		OPENROUTER_MODEL:    os.Getenv("OPENROUTER_MODEL"),
		// Misc
		CRON_ENABLED:    os.Getenv("CRON_ENABLED"),
		ALLOWED_ORIGINS: os.Getenv("ALLOWED_ORIGINS"),
	}

	return envVariables, nil
}
