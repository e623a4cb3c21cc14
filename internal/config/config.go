package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	Port     string
	Env      string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	SessionTTL    time.Duration

	OniBaseURL string
	OniTimeout time.Duration
	OniConvANS string
	OniPlanID  string
	OniSuperID string

	// Tenant defaults used when the conversation has not resolved a city yet.
	DefaultMunicipalityID   string
	DefaultMunicipalityName string
	DefaultMunicipalityUF   string
	ConsultationProcCode    string

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAITemperature float64
	OpenAIMaxTokens   int

	WhatsAppSendURL      string
	OutboundMaxAttempts  int
	OutboundBackoffStep  time.Duration
	MaxDispatchHops      int
	AdminJWTSecret       string
	CORSAllowedOriginsCS string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:     getEnv("PORT", "8080"),
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 6*time.Hour),

		OniBaseURL: getEnv("ONI_API_BASE_URL", "https://api.onisaude.example/v1"),
		OniTimeout: getEnvAsDuration("ONI_API_TIMEOUT", 30*time.Second),
		OniConvANS: getEnv("ONI_CONV_ANS", "422037"),
		OniPlanID:  getEnv("ONI_PLANO_ID", "1"),
		OniSuperID: getEnv("ONI_SUPER_ID", "2"),

		DefaultMunicipalityID:   getEnv("ONI_MUNIC_ID_PADRAO", "941"),
		DefaultMunicipalityName: getEnv("ONI_MUNIC_NOME_PADRAO", "Goiânia"),
		DefaultMunicipalityUF:   getEnv("ONI_MUNIC_UF_PADRAO", "GO"),
		ConsultationProcCode:    getEnv("ONI_PROC_CONSULTA", "10101012"),

		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAITemperature: getEnvAsFloat("OPENAI_TEMPERATURE", 0.7),
		OpenAIMaxTokens:   getEnvAsInt("OPENAI_MAX_TOKENS", 800),

		WhatsAppSendURL:      getEnv("WHATSAPP_SEND_URL", ""),
		OutboundMaxAttempts:  getEnvAsInt("OUTBOUND_MAX_ATTEMPTS", 3),
		OutboundBackoffStep:  getEnvAsDuration("OUTBOUND_BACKOFF_STEP", time.Second),
		MaxDispatchHops:      getEnvAsInt("MAX_DISPATCH_HOPS", 10),
		AdminJWTSecret:       getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOriginsCS: getEnv("CORS_ALLOWED_ORIGINS", ""),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
