package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Remote ticketing service
	APIBaseURL     string
	VerifyBaseURL  string
	RequestTimeout time.Duration
	Environment    string

	// Redis configuration (session persistence)
	RedisURL      string
	RedisPassword string
	RedisDB       int
	SessionKey    string

	// Booking flow pacing
	GatewayDelay    time.Duration
	SettleDelay     time.Duration
	ProgressTick    time.Duration
	ProgressStep    float64
	ProgressCeiling float64

	// Credential QR rendering
	QRSize   int
	QRMargin int

	// Dev stub service
	Port       string
	AdminPhone string
	OTPLength  int
	OTPTTL     time.Duration

	// Monitoring
	EnableMetrics bool
	MetricsPort   string
}

func LoadConfig() *Config {
	cfg := &Config{
		// Remote service
		APIBaseURL:     getEnv("API_BASE_URL", "http://localhost:3000"),
		VerifyBaseURL:  getEnv("VERIFY_BASE_URL", ""),
		RequestTimeout: getEnvAsDuration("REQUEST_TIMEOUT", "10s"),
		Environment:    getEnv("ENVIRONMENT", "development"),

		// Redis
		RedisURL:      getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		SessionKey:    getEnv("SESSION_KEY", "session:current"),

		// Booking flow
		GatewayDelay:    getEnvAsDuration("GATEWAY_DELAY", "2s"),
		SettleDelay:     getEnvAsDuration("SETTLE_DELAY", "400ms"),
		ProgressTick:    getEnvAsDuration("PROGRESS_TICK", "150ms"),
		ProgressStep:    getEnvAsFloat("PROGRESS_STEP", 0.05),
		ProgressCeiling: getEnvAsFloat("PROGRESS_CEILING", 0.9),

		// QR
		QRSize:   getEnvAsInt("QR_SIZE", 300),
		QRMargin: getEnvAsInt("QR_MARGIN", 2),

		// Stub
		Port:       getEnv("PORT", "3000"),
		AdminPhone: getEnv("ADMIN_PHONE", "9999999999"),
		OTPLength:  getEnvAsInt("OTP_LENGTH", 6),
		OTPTTL:     getEnvAsDuration("OTP_TTL", "5m"),

		// Monitoring
		EnableMetrics: getEnvAsBool("ENABLE_METRICS", true),
		MetricsPort:   getEnv("METRICS_PORT", "9090"),
	}

	// Credential payloads point at the same deployment as the API unless
	// overridden.
	if cfg.VerifyBaseURL == "" {
		cfg.VerifyBaseURL = cfg.APIBaseURL
	}

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
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

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	// If parsing fails, try to parse default value
	duration, _ := time.ParseDuration(defaultValue)
	return duration
}
