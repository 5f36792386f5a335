package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Config struct {
	// Server settings
	ServerPort   string        `json:"server_port"`
	ReadTimeout  time.Duration `json:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout"`
	IdleTimeout  time.Duration `json:"idle_timeout"`
	Debug        bool          `json:"debug"`

	// Application paths
	LogDir    string `json:"log_dir"`
	LogLevel  string `json:"log_level"`
	StaticDir string `json:"static_dir"`

	Middleware MiddlewareConfig `json:"middleware"`
	CORS       CORSConfig       `json:"cors"`
	RateLimit  RateLimitConfig  `json:"rate_limit"`
	Database   DatabaseConfig   `json:"database"`
	YouTube    YouTubeConfig    `json:"youtube"`
	Spaces     SpacesConfig     `json:"spaces"`

	Version string `json:"version"`

	// RequestTimeout bounds metadata requests only. Downloads run until the
	// upstream stream ends or the client goes away.
	RequestTimeout  time.Duration `json:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

type MiddlewareConfig struct {
	EnableRecover   bool `json:"enable_recover"`
	EnableRequestID bool `json:"enable_request_id"`
	EnableLogger    bool `json:"enable_logger"`
	EnableTimeout   bool `json:"enable_timeout"`
	EnableCORS      bool `json:"enable_cors"`
	EnableRateLimit bool `json:"enable_rate_limit"`
}

type DatabaseConfig struct {
	Path               string        `json:"path"`
	MaxConnections     int           `json:"max_connections"`
	MaxIdleConnections int           `json:"max_idle_connections"`
	ConnMaxLifetime    time.Duration `json:"conn_max_lifetime"`
}

type YouTubeConfig struct {
	HTTPTimeout time.Duration `json:"http_timeout"`
	ChunkSize   int64         `json:"chunk_size"`
}

type CORSConfig struct {
	Enabled          bool     `json:"enabled"`
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	ExposedHeaders   []string `json:"exposed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	MaxAge           int      `json:"max_age"`
}

type RateLimitConfig struct {
	Enabled           bool `json:"enabled"`
	RequestsPerMinute int  `json:"requests_per_minute"`
	BurstSize         int  `json:"burst_size"`

	// TrustedProxies lists IPs or CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string `json:"trusted_proxies"`
}

type SpacesConfig struct {
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Region    string `json:"region"`
	Endpoint  string `json:"endpoint"`
	Bucket    string `json:"bucket"`
}

// Enabled reports whether enough is configured to talk to the bucket.
func (s SpacesConfig) Enabled() bool {
	return s.Bucket != "" && s.AccessKey != "" && s.SecretKey != ""
}

func defaultDevConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableTimeout:   false, // Disabled for easier debugging
		EnableCORS:      true,
		EnableRateLimit: false,
	}
}

func defaultProdConfig() MiddlewareConfig {
	return MiddlewareConfig{
		EnableRecover:   true,
		EnableRequestID: true,
		EnableLogger:    true,
		EnableTimeout:   true,
		EnableCORS:      true,
		EnableRateLimit: true,
	}
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		ServerPort:   getEnv("PORT", getEnv("SERVER_PORT", "3001")),
		ReadTimeout:  getEnvAsDuration("READ_TIMEOUT", 15*time.Second),
		WriteTimeout: getEnvAsDuration("WRITE_TIMEOUT", 0),
		IdleTimeout:  getEnvAsDuration("IDLE_TIMEOUT", 60*time.Second),
		Debug:        getEnvAsBool("DEBUG", false),

		LogDir:    getEnv("LOG_DIR", "/var/log/ytdl-web"),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		StaticDir: getEnv("STATIC_DIR", "./static"),

		Version: getEnv("VERSION", "1.0.0"),

		RequestTimeout:  getEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout: getEnvAsDuration("SHUTDOWN_TIMEOUT", 30*time.Second),

		CORS: CORSConfig{
			Enabled:        getEnvAsBool("CORS_ENABLED", true),
			AllowedOrigins: getEnvAsStringSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
			AllowedMethods: getEnvAsStringSlice(
				"CORS_ALLOWED_METHODS",
				[]string{"GET", "POST", "OPTIONS"},
			),
			AllowedHeaders: getEnvAsStringSlice("CORS_ALLOWED_HEADERS", []string{"Content-Type"}),
			ExposedHeaders: getEnvAsStringSlice(
				"CORS_EXPOSED_HEADERS",
				[]string{"Content-Disposition", "X-Request-ID"},
			),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 86400),
		},

		RateLimit: RateLimitConfig{
			Enabled:           getEnvAsBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_RPM", 60),
			BurstSize:         getEnvAsInt("RATE_LIMIT_BURST", 10),
			TrustedProxies:    getEnvAsStringSlice("RATE_LIMIT_TRUSTED_PROXIES", nil),
		},

		Database: DatabaseConfig{
			Path:               getEnv("DB_PATH", "/var/lib/ytdl-web/history.db"),
			MaxConnections:     getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConnections: getEnvAsInt("DB_MAX_IDLE_CONNECTIONS", 5),
			ConnMaxLifetime:    getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
		},

		YouTube: YouTubeConfig{
			HTTPTimeout: getEnvAsDuration("YOUTUBE_HTTP_TIMEOUT", 0),
			ChunkSize:   getEnvAsInt64("YOUTUBE_CHUNK_SIZE", 10*1024*1024),
		},

		Spaces: SpacesConfig{
			AccessKey: getEnv("SPACES_ACCESS_KEY", ""),
			SecretKey: getEnv("SPACES_SECRET_KEY", ""),
			Region:    getEnv("SPACES_REGION", "us-east-1"),
			Endpoint:  getEnv("SPACES_ENDPOINT", ""),
			Bucket:    getEnv("SPACES_BUCKET", ""),
		},

		Middleware: defaultDevConfig(),
	}

	if os.Getenv("ENV") == "production" {
		cfg.Middleware = defaultProdConfig()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if err := validateServer(c); err != nil {
		return err
	}

	if err := validateTimeouts(c); err != nil {
		return err
	}

	if err := validatePaths(c); err != nil {
		return err
	}

	return nil
}

func validateServer(c *Config) error {
	if c.ServerPort == "" {
		return errors.New("server port is required")
	}
	if _, err := strconv.Atoi(c.ServerPort); err != nil {
		return errors.Wrapf(err, "server port %q is not a number", c.ServerPort)
	}
	if c.RateLimit.Enabled && c.RateLimit.RequestsPerMinute <= 0 {
		return errors.New("rate limit requests per minute must be positive")
	}
	if c.YouTube.ChunkSize < 0 {
		return errors.New("youtube chunk size must not be negative")
	}
	for _, proxy := range c.RateLimit.TrustedProxies {
		if _, err := netip.ParsePrefix(proxy); err == nil {
			continue
		}
		if _, err := netip.ParseAddr(proxy); err != nil {
			return errors.Wrapf(err, "trusted proxy %q is not an IP or CIDR", proxy)
		}
	}
	return nil
}

func validateTimeouts(c *Config) error {
	if c.ReadTimeout <= 0 {
		return errors.New("read timeout must be positive")
	}
	// Zero disables the write deadline so long downloads are not cut off.
	if c.WriteTimeout < 0 {
		return errors.New("write timeout must not be negative")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("request timeout must be positive")
	}
	if c.ShutdownTimeout <= 0 {
		return errors.New("shutdown timeout must be positive")
	}
	return nil
}

func validatePaths(c *Config) error {
	paths := []struct {
		path string
		name string
	}{
		{c.LogDir, "log directory"},
		{filepath.Dir(c.Database.Path), "database directory"},
	}

	for _, p := range paths {
		if p.path == "" {
			continue
		}
		if err := os.MkdirAll(p.path, 0755); err != nil {
			return errors.Wrapf(err, "failed to create %s", p.name)
		}
	}

	return nil
}

// Helper functions for reading environment variables
func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
		warnInvalid(key, value, defaultValue, "Invalid integer, using default")
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
		warnInvalid(key, value, defaultValue, "Invalid boolean, using default")
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		warnInvalid(key, value, defaultValue, "Invalid duration, using default")
	}
	return defaultValue
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	if value, exists := os.LookupEnv(key); exists {
		if value = strings.TrimSpace(value); value != "" {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			return parts
		}
	}
	return defaultValue
}

func warnInvalid(key, value string, defaultValue interface{}, msg string) {
	logrus.WithFields(logrus.Fields{
		"key":          key,
		"value":        value,
		"defaultValue": defaultValue,
	}).Warn(msg)
}
