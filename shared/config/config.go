package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Application
	Environment string
	Port        string
	ServiceName string
	PublicDir   string
	// EnvFile is the .env path that was loaded, empty when only the process
	// environment was used.
	EnvFile     string

	// Database
	DatabaseURL string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string

	// JWT
	JWTSecret      string
	JWTExpireHours int

	// Policies
	OneNPOPerUser         bool
	ModeratorsCanModerate bool

	// Super Admin
	SuperAdminEmail    string
	SuperAdminPassword string

	// Redis
	CacheEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Email Configuration
	EmailFrom     string
	EmailFromName string
	SMTPHost      string
	SMTPPort      string
	SMTPUsername  string
	SMTPPassword  string
	SMTPUseTLS    bool

	// Rate Limiting
	RateLimitRPM   int
	RateLimitBurst int

	// Login Rate Limiting
	LoginRateLimitMaxAttempts   int
	LoginRateLimitWindowSeconds int
	LoginRateLimitBlockMinutes  int

	// Register Rate Limiting
	RegisterRateLimitMaxAttempts int
	RegisterRateLimitWindowHours int
	RegisterRateLimitBlockHours  int

	// Password Reset Rate Limiting
	PasswordResetMaxAttempts   int
	PasswordResetWindowMinutes int
	PasswordResetBlockHours    int
	PasswordResetTokenTTL      time.Duration

	// Frontend / CORS
	FrontendURL        string
	CORSAllowedOrigins []string

	// MinIO Configuration
	UploadsEnabled    bool
	MinIOServerURL    string
	MinIORootUser     string
	MinIORootPassword string
	MinIOUseSSL       bool
	MinIOBucketName   string
	LogoMaxBytes      int64
	PresignTTL        time.Duration

	// Telemetry
	TelemetryEndpoint string
	TelemetryInsecure bool
}

const defaultJWTSecret = "change-me-in-development"

var defaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:10000",
	"http://127.0.0.1:10000",
}

var cfg *Config

// LoadConfig loads configuration from environment variables
func LoadConfig() {
	envPaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	envFile := ""
	for _, path := range envPaths {
		if err := godotenv.Load(path); err == nil {
			envFile = path
			break
		}
	}

	cfg = &Config{
		EnvFile:     envFile,
		Environment: getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "10000"),
		ServiceName: getEnv("SERVICE_NAME", "nko-map-backend"),
		PublicDir:   getEnv("PUBLIC_DIR", "public"),

		// Database
		DatabaseURL: os.Getenv("DATABASE_URL"),
		DBHost:      getEnv("DB_HOST", "localhost"),
		DBPort:      getEnv("DB_PORT", "5432"),
		DBUser:      getEnv("DB_USER", "postgres"),
		DBPassword:  getEnv("DB_PASSWORD", ""),
		DBName:      getEnv("DB_NAME", "nko_map"),
		DBSSLMode:   getEnv("DB_SSLMODE", "disable"),

		// JWT
		JWTSecret:      os.Getenv("JWT_SECRET"),
		JWTExpireHours: getEnvAsInt("JWT_EXPIRE_HOURS", 24),

		// Policies
		OneNPOPerUser:         getEnvAsBool("ONE_NPO_PER_USER", true),
		ModeratorsCanModerate: getEnvAsBool("MODERATORS_CAN_MODERATE", false),

		// Super Admin
		SuperAdminEmail:    getEnv("SUPER_ADMIN_EMAIL", "admin@nko-map.ru"),
		SuperAdminPassword: getEnv("SUPER_ADMIN_PASSWORD", ""),

		// Redis
		CacheEnabled:  getEnvAsBool("CACHE_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 60)) * time.Second,

		// Email Configuration
		EmailFrom:     getEnv("EMAIL_FROM", "noreply@nko-map.ru"),
		EmailFromName: getEnv("EMAIL_FROM_NAME", "Карта НКО"),
		SMTPHost:      getEnv("SMTP_HOST", ""),
		SMTPPort:      getEnv("SMTP_PORT", "587"),
		SMTPUsername:  getEnv("SMTP_USERNAME", ""),
		SMTPPassword:  getEnv("SMTP_PASSWORD", ""),
		SMTPUseTLS:    getEnvAsBool("SMTP_USE_TLS", false),

		// 100 requests per 15 minutes per IP on /api
		RateLimitRPM:   getEnvAsInt("RATE_LIMIT_RPM", 7),
		RateLimitBurst: getEnvAsInt("RATE_LIMIT_BURST", 100),

		// Login Rate Limiting
		LoginRateLimitMaxAttempts:   getEnvAsInt("LOGIN_RATE_LIMIT_MAX_ATTEMPTS", 5),
		LoginRateLimitWindowSeconds: getEnvAsInt("LOGIN_RATE_LIMIT_WINDOW_SECONDS", 300),
		LoginRateLimitBlockMinutes:  getEnvAsInt("LOGIN_RATE_LIMIT_BLOCK_MINUTES", 30),

		// Register Rate Limiting
		RegisterRateLimitMaxAttempts: getEnvAsInt("REGISTER_RATE_LIMIT_MAX_ATTEMPTS", 5),
		RegisterRateLimitWindowHours: getEnvAsInt("REGISTER_RATE_LIMIT_WINDOW_HOURS", 1),
		RegisterRateLimitBlockHours:  getEnvAsInt("REGISTER_RATE_LIMIT_BLOCK_HOURS", 1),

		// Password Reset Rate Limiting
		PasswordResetMaxAttempts:   getEnvAsInt("PASSWORD_RESET_MAX_ATTEMPTS", 3),
		PasswordResetWindowMinutes: getEnvAsInt("PASSWORD_RESET_WINDOW_MINUTES", 60),
		PasswordResetBlockHours:    getEnvAsInt("PASSWORD_RESET_BLOCK_HOURS", 24),
		PasswordResetTokenTTL:      time.Duration(getEnvAsInt("PASSWORD_RESET_TOKEN_MINUTES", 60)) * time.Minute,

		// Frontend / CORS
		FrontendURL:        getEnv("FRONTEND_URL", "http://localhost:10000"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", defaultOrigins),

		// MinIO Configuration
		UploadsEnabled:    getEnvAsBool("UPLOADS_ENABLED", false),
		MinIOServerURL:    getEnv("MINIO_SERVER_URL", "http://localhost:9000"),
		MinIORootUser:     getEnv("MINIO_ROOT_USER", "minioadmin"),
		MinIORootPassword: getEnv("MINIO_ROOT_PASSWORD", "minioadmin"),
		MinIOUseSSL:       getEnvAsBool("MINIO_USE_SSL", false),
		MinIOBucketName:   getEnv("MINIO_BUCKET_NAME", "nko-logos"),
		LogoMaxBytes:      int64(getEnvAsInt("LOGO_MAX_BYTES", 2<<20)),
		PresignTTL:        time.Duration(getEnvAsInt("PRESIGN_TTL_MINUTES", 60)) * time.Minute,

		// Telemetry
		TelemetryEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure: getEnvAsBool("OTEL_EXPORTER_OTLP_INSECURE", true),
	}

	if cfg.JWTSecret == "" && cfg.IsDevelopment() {
		cfg.JWTSecret = defaultJWTSecret
	}
}

// GetConfig returns the current configuration
func GetConfig() *Config {
	if cfg == nil {
		LoadConfig()
	}
	return cfg
}

// Load returns the configuration and fails when values required to serve
// traffic are missing.
func Load() (*Config, error) {
	c := GetConfig()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks invariants that must hold before the server starts.
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	}
	if c.JWTExpireHours <= 0 {
		errs = append(errs, fmt.Errorf("JWT_EXPIRE_HOURS must be positive, got %d", c.JWTExpireHours))
	}
	if c.DatabaseURL == "" && c.DBName == "" {
		errs = append(errs, errors.New("DATABASE_URL or DB_NAME is required"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// JWTTTL returns the access token lifetime.
func (c *Config) JWTTTL() time.Duration {
	return time.Duration(c.JWTExpireHours) * time.Hour
}

// DSN returns DATABASE_URL when set, otherwise a key/value DSN built from DB_* variables.
func (c *Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		c.DBHost,
		c.DBUser,
		c.DBPassword,
		c.DBName,
		c.DBPort,
		c.DBSSLMode,
	)
}

// RedisAddr returns host:port for the redis client.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// SMTPConfigured reports whether outgoing mail can be sent.
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != ""
}

// getEnv gets environment variable with default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer with default value
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
