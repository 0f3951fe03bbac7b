package configs

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port          string
	DBHost        string
	DBPort        int
	DBUser        string
	DBPassword    string
	DBName        string
	DBNameTest    string
	DBSSLMode     string
	RedisHost     string
	RedisPort     int
	RedisPassword string

	JWTSecret     string
	JWTTTLHours   int
	EncryptionKey string

	LogDir       string
	UploadDir    string
	FrontendURL  string
	CORSOrigins  string
	RateLimitMax int

	GitHubClientID      string
	GitHubClientSecret  string
	GitHubRedirectURL   string
	GitHubEmailFallback bool
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getEnvBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func LoadConfig() Config {
	// Muat file .env
	if err := godotenv.Load(); err != nil {
		// Hanya log jika tidak dalam mode test
		if os.Getenv("GO_ENV") != "test" {
			log.Println("No .env file found, using default values")
		}
	}

	return Config{
		Port:          getEnv("PORT", "3001"),
		DBHost:        getEnv("DB_HOST", "localhost"),
		DBPort:        getEnvInt("DB_PORT", 5432),
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBName:        os.Getenv("DB_NAME"),
		DBNameTest:    os.Getenv("DB_NAME_TEST"),
		DBSSLMode:     getEnv("DB_SSLMODE", "disable"),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnvInt("REDIS_PORT", 6379),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),

		JWTSecret:     getEnv("JWT_SECRET", "default_secret"),
		JWTTTLHours:   getEnvInt("JWT_TTL_HOURS", 168),
		EncryptionKey: getEnv("ENCRYPTION_KEY", "devpulse-local-encryption-key"),

		LogDir:       getEnv("LOG_DIR", "logs"),
		UploadDir:    getEnv("UPLOAD_DIR", "uploads"),
		FrontendURL:  getEnv("FRONTEND_URL", "http://localhost:3000"),
		CORSOrigins:  getEnv("CORS_ORIGINS", "*"),
		RateLimitMax: getEnvInt("RATE_LIMIT_MAX", 100),

		GitHubClientID:      os.Getenv("GITHUB_CLIENT_ID"),
		GitHubClientSecret:  os.Getenv("GITHUB_CLIENT_SECRET"),
		GitHubRedirectURL:   os.Getenv("GITHUB_REDIRECT_URL"),
		GitHubEmailFallback: getEnvBool("GITHUB_EMAIL_FALLBACK", true),
	}
}

// GitHubConfigured reports whether OAuth client credentials are present.
func (c Config) GitHubConfigured() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}
