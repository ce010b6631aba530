package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host string
	Port string
}

// TLSConfig holds TLS settings
type TLSConfig struct {
	Enabled    bool
	CertFile   string
	KeyFile    string
	MinVersion string
}

// EngineConfig tunes the session engine
type EngineConfig struct {
	CodeLength      int
	MaxCodeAttempts int
	EvictionGrace   time.Duration
	IdleTimeout     time.Duration
	DisconnectGrace time.Duration
	SweepInterval   time.Duration
	SendBufferSize  int
	EventRate       float64
	EventBurst      int
}

// AuthConfig holds presenter auth settings
type AuthConfig struct {
	JWTSecret   string
	Environment string
}

// Config is the full server configuration
type Config struct {
	Server   ServerConfig
	TLS      TLSConfig
	Engine   EngineConfig
	Auth     AuthConfig
	DBPath   string
	DataPath string
}

// LoadConfig reads configuration from the environment, with an optional
// .env file for local development
func LoadConfig() *Config {
	if err := godotenv.Load(); err == nil {
		log.Println("Loaded configuration from .env")
	}

	return &Config{
		Server: ServerConfig{
			Host: getEnv("HOST", "0.0.0.0"),
			Port: getEnv("PORT", "8080"),
		},
		TLS: TLSConfig{
			Enabled:    getEnvBool("TLS_ENABLED", false),
			CertFile:   getEnv("TLS_CERT_FILE", ""),
			KeyFile:    getEnv("TLS_KEY_FILE", ""),
			MinVersion: getEnv("TLS_MIN_VERSION", "1.2"),
		},
		Engine: EngineConfig{
			CodeLength:      getEnvInt("SESSION_CODE_LENGTH", 4),
			MaxCodeAttempts: getEnvInt("SESSION_CODE_ATTEMPTS", 10),
			EvictionGrace:   getEnvDuration("SESSION_EVICTION_GRACE", 5*time.Minute),
			IdleTimeout:     getEnvDuration("SESSION_IDLE_TIMEOUT", 10*time.Minute),
			DisconnectGrace: getEnvDuration("PARTICIPANT_DISCONNECT_GRACE", 60*time.Second),
			SweepInterval:   getEnvDuration("SESSION_SWEEP_INTERVAL", 15*time.Second),
			SendBufferSize:  getEnvInt("WS_SEND_BUFFER", 256),
			EventRate:       float64(getEnvInt("WS_EVENT_RATE", 10)),
			EventBurst:      getEnvInt("WS_EVENT_BURST", 20),
		},
		Auth: AuthConfig{
			JWTSecret:   getEnv("JWT_SECRET", "dev-secret"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		DBPath:   getEnv("DB_PATH", "./data/sessions.db"),
		DataPath: getEnv("DATA_PATH", "./data"),
	}
}

// IsProduction reports whether the server runs with production settings
func (c *Config) IsProduction() bool {
	return c.Auth.Environment == "production"
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid value for %s, using default %d: %v", key, fallback, err)
		return fallback
	}
	return parsed
}

func getEnvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		log.Printf("Invalid value for %s, using default %v: %v", key, fallback, err)
		return fallback
	}
	return parsed
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("Invalid value for %s, using default %v: %v", key, fallback, err)
		return fallback
	}
	return parsed
}
