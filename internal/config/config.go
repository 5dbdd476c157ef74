// Package config loads application configuration from environment variables and .env files.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string

	OTLPEndpoint string

	DatabaseURL       string
	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	CORSOrigins     []string
	DownloadsHosts  []string
	AttachmentMaxMB int64

	// DefaultCompanyID seeds a single-tenant dev environment; production deployments
	// resolve the company from the authenticated session instead.
	DefaultCompanyID int64

	OpenAIAPIKey  string
	OpenAIBaseURL string
	ExtractorMode string // "mock" or "openai"
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	environment := getenv("APP_ENV", "development")

	cfg := Config{
		AppName:     getenv("APP_SERVICE", "baytretail-core"),
		AppVersion:  getenv("APP_VERSION", "0.1.0"),
		Environment: environment,

		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DatabaseURL: strings.TrimSpace(getenv("DATABASE_URL", "")),
		DBType:      getenv("DB_TYPE", "postgres"),
		DBHost:      getenv("DB_HOST", "localhost"),
		DBPort:      getenv("DB_PORT", "5432"),
		DBName:      getenv("DB_NAME", "baytretail"),
		DBUser:      getenv("DB_USER", "postgres"),
		DBPassword:  getenv("DB_PASSWORD", ""),
		DBSSLMode:   getenv("DB_SSL_MODE", "disable"),

		RedisAddr:     getenv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getenv("REDIS_PASSWORD", ""),
		RedisDB:       int(getenvInt64("REDIS_DB", 0)),

		CORSOrigins:     parseList(getenv("CORS_ORIGINS", "")),
		DownloadsHosts:  parseList(getenv("DOWNLOADS_HOSTS", "")),
		AttachmentMaxMB: getenvInt64("ATTACHMENT_MAX_MB", 15),

		DefaultCompanyID: getenvInt64("DEFAULT_COMPANY_ID", 0),

		OpenAIAPIKey:  strings.TrimSpace(getenv("OPENAI_API_KEY", "")),
		OpenAIBaseURL: strings.TrimSpace(getenv("OPENAI_BASE_URL", "")),
		ExtractorMode: getenv("EXTRACTOR_MODE", "mock"),
	}

	return cfg
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}
