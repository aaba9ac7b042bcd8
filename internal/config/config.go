package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	GoogleCloudProject string
	BigtableInstanceID string
	BigtableTableID    string
	GeminiAPIKey       string
	GoogleClientID     string
	GoogleClientSecret string
	OAuthRedirectURL   string
	HTTPPort           string
	LogLevel           string
	JWTSecret          string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		GoogleCloudProject: getEnv("GOOGLE_CLOUD_PROJECT", ""),
		BigtableInstanceID: getEnv("BIGTABLE_INSTANCE_ID", "chatssi-csdb"),
		BigtableTableID:    getEnv("BIGTABLE_TABLE_ID", "users"),
		GeminiAPIKey:       getEnv("GEMINI_API_KEY", ""),
		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		OAuthRedirectURL:   getEnv("OAUTH_REDIRECT_URL", "http://localhost:8080/oauth/google"),
		HTTPPort:           getEnv("HTTP_PORT", "8080"),
		LogLevel:           getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
	}

	if AppConfig.GoogleCloudProject == "" {
		log.Fatal("GOOGLE_CLOUD_PROJECT environment variable is required")
	}

	if AppConfig.GeminiAPIKey == "" {
		log.Fatal("GEMINI_API_KEY environment variable is required")
	}

	if AppConfig.GoogleClientID == "" || AppConfig.GoogleClientSecret == "" {
		log.Fatal("GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET environment variables are required")
	}

	if AppConfig.JWTSecret == "" {
		log.Fatal("JWT_SECRET environment variable is required")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
