package config

import (
	"log"
	"os"

	"github.com/joho/godotenv"
)

type Config struct {
	EmbeddingAPIURL string
	EmbeddingAPIKey string
	DOAPIURL        string
	DOAPIKey        string
	OllamaAPIURL    string
	OllamaModel     string
	DatabaseURL     string
	HTTPHost        string
	HTTPPort        string
	LogLevel        string
}

var AppConfig Config

func LoadConfig() {
	err := godotenv.Load() // Load .env file if it exists
	if err != nil {
		log.Println("No .env file found, relying on environment variables")
	}

	AppConfig = Config{
		EmbeddingAPIURL: getEnv("EMBEDDING_API_URL", "http://localhost:8001"),
		EmbeddingAPIKey: getEnv("EMBEDDING_API_KEY", ""),
		DOAPIURL:        getEnv("DO_API_URL", ""),
		DOAPIKey:        getEnv("DO_API_KEY", ""),
		OllamaAPIURL:    getEnv("OLLAMA_API_URL", "http://localhost:11434/api/generate"),
		OllamaModel:     getEnv("OLLAMA_MODEL", "deepseek-r1"),
		DatabaseURL:     getEnv("DATABASE_URL", "assistant.db"),
		HTTPHost:        getEnv("HTTP_HOST", "0.0.0.0"),
		HTTPPort:        getEnv("HTTP_PORT", "8002"),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
	}

	if AppConfig.DOAPIURL == "" {
		log.Println("Warning: DO_API_URL is not set, Digital Ocean queries will fail")
	}
}

func getEnv(key string, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
