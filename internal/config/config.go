package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Object store drivers understood by Load.
const (
	DriverMinIO  = "minio"
	DriverS3     = "s3"
	DriverMemory = "memory"
)

// DefaultAllowedContentTypes lists the media types accepted for upload when
// FILEHUB_ALLOWED_CONTENT_TYPES is not set.
var DefaultAllowedContentTypes = []string{
	"image/jpeg", "image/png", "image/gif", "image/webp",
	"video/mp4", "video/quicktime", "video/x-matroska", "video/webm", "video/avi",
}

// Config aggregates runtime configuration for the FileHub API.
type Config struct {
	Server      ServerConfig
	Postgres    PostgresConfig
	ObjectStore ObjectStoreConfig
	Storage     StorageConfig
	Album       AlbumConfig
	Auth        AuthConfig
	RabbitMQ    RabbitMQConfig
	Telemetry   TelemetryConfig
	Metrics     MetricsConfig
}

// ServerConfig parameterizes the HTTP server.
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	AllowedOrigins []string
}

// Address returns the listen address in host:port form.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// PostgresConfig contains PostgreSQL connection details.
type PostgresConfig struct {
	Host           string
	Port           int
	User           string
	Password       string
	Database       string
	SSLMode        string
	MigrateOnStart bool
	MaxConns       int
	MinConns       int
	MaxConnIdle    time.Duration
}

// DSN returns the PostgreSQL DSN string.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

// ObjectStoreConfig selects and configures the bucket backend.
type ObjectStoreConfig struct {
	Driver          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	UseSSL          bool
	Region          string
}

// StorageConfig holds the object lifecycle limits.
type StorageConfig struct {
	QuotaMB             float64
	PresignTTL          time.Duration
	AllowedContentTypes []string
	MaxUploadBytes      int64
}

// AlbumConfig holds album sharing settings.
type AlbumConfig struct {
	ShareTTL        time.Duration
	ShareCodeLength int
}

// AuthConfig groups authentication-related settings.
type AuthConfig struct {
	AccessTokenSecret  string
	AccessTokenTTL     time.Duration
	VerificationSecret string
	PublicBaseURL      string
	BcryptCost         int
}

// RabbitMQConfig configures the event producer. An empty URL disables publishing.
type RabbitMQConfig struct {
	URL string
}

// TelemetryConfig configures trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string
	ServiceName  string
	Insecure     bool
}

// MetricsConfig groups observability settings.
type MetricsConfig struct {
	PrometheusPath string
}

// Load reads configuration values from environment variables, applying defaults.
func Load() (Config, error) {
	cfg := Config{
		Server: ServerConfig{
			Host:           getString("FILEHUB_API_HOST", "0.0.0.0"),
			Port:           getInt("FILEHUB_API_PORT", 8080),
			ReadTimeout:    getDuration("FILEHUB_API_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:   getDuration("FILEHUB_API_WRITE_TIMEOUT", 60*time.Second),
			IdleTimeout:    getDuration("FILEHUB_API_IDLE_TIMEOUT", 60*time.Second),
			AllowedOrigins: getList("FILEHUB_CORS_ORIGINS", []string{"http://localhost:5173"}),
		},
		Postgres: PostgresConfig{
			Host:           getString("POSTGRES_HOST", "localhost"),
			Port:           getInt("POSTGRES_PORT", 5432),
			User:           getString("POSTGRES_USER", "filehub_app"),
			Password:       getString("POSTGRES_PASSWORD", "change-me"),
			Database:       getString("POSTGRES_DB", "filehub"),
			SSLMode:        strings.ToLower(getString("POSTGRES_SSL_MODE", "disable")),
			MigrateOnStart: getBool("POSTGRES_MIGRATE_ON_START", true),
			MaxConns:       getInt("POSTGRES_MAX_CONNS", 10),
			MinConns:       getInt("POSTGRES_MIN_CONNS", 0),
			MaxConnIdle:    getDuration("POSTGRES_MAX_CONN_IDLE", 5*time.Minute),
		},
		ObjectStore: ObjectStoreConfig{
			Driver:          strings.ToLower(getString("OBJECT_STORE_DRIVER", DriverMinIO)),
			Endpoint:        getString("OBJECT_STORE_ENDPOINT", "localhost:9000"),
			AccessKeyID:     getString("OBJECT_STORE_ACCESS_KEY", "filehub"),
			SecretAccessKey: getString("OBJECT_STORE_SECRET_KEY", "change-me-strong-password"),
			Bucket:          getString("OBJECT_STORE_BUCKET", "filehub"),
			UseSSL:          getBool("OBJECT_STORE_USE_SSL", false),
			Region:          getString("OBJECT_STORE_REGION", "us-east-1"),
		},
		Storage: StorageConfig{
			QuotaMB:             getFloat("FILEHUB_QUOTA_MB", 1024),
			PresignTTL:          getDuration("FILEHUB_PRESIGN_TTL", 10*time.Minute),
			AllowedContentTypes: getList("FILEHUB_ALLOWED_CONTENT_TYPES", DefaultAllowedContentTypes),
			MaxUploadBytes:      getInt64("FILEHUB_MAX_UPLOAD_BYTES", 512<<20),
		},
		Album: AlbumConfig{
			ShareTTL:        getDuration("FILEHUB_ALBUM_SHARE_TTL", 7*24*time.Hour),
			ShareCodeLength: getInt("FILEHUB_ALBUM_SHARE_CODE_LENGTH", 8),
		},
		Auth: loadAuthConfig(),
		RabbitMQ: RabbitMQConfig{
			URL: getString("RABBITMQ_URL", ""),
		},
		Telemetry: TelemetryConfig{
			OTLPEndpoint: getString("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
			ServiceName:  getString("OTEL_SERVICE_NAME", "filehub-api"),
			Insecure:     getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		},
		Metrics: MetricsConfig{
			PrometheusPath: getString("FILEHUB_METRICS_PATH", "/metrics"),
		},
	}

	switch cfg.ObjectStore.Driver {
	case DriverMinIO, DriverS3, DriverMemory:
	default:
		return Config{}, fmt.Errorf("unknown object store driver %q", cfg.ObjectStore.Driver)
	}
	if cfg.Storage.QuotaMB <= 0 {
		return Config{}, fmt.Errorf("quota must be positive, got %v", cfg.Storage.QuotaMB)
	}
	if cfg.Album.ShareCodeLength < 6 || cfg.Album.ShareCodeLength > 32 {
		cfg.Album.ShareCodeLength = 8
	}

	return cfg, nil
}

func getString(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseInt(val, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "1", "true", "t", "yes", "y":
			return true
		case "0", "false", "f", "no", "n":
			return false
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
	}
	return fallback
}

// getList splits a comma separated value. A variable set to the empty string
// yields an empty list, which callers treat as "no restriction".
func getList(key string, fallback []string) []string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadAuthConfig() AuthConfig {
	cost := getInt("FILEHUB_AUTH_BCRYPT_COST", 12)
	if cost < 4 || cost > 31 {
		cost = 12
	}

	return AuthConfig{
		AccessTokenSecret:  getString("FILEHUB_JWT_SECRET", "change-me-to-a-32-byte-secret"),
		AccessTokenTTL:     getDuration("FILEHUB_AUTH_ACCESS_TOKEN_TTL", 24*time.Hour),
		VerificationSecret: getString("FILEHUB_VERIFICATION_SECRET", "change-me-verification-secret"),
		PublicBaseURL:      strings.TrimRight(getString("FILEHUB_PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		BcryptCost:         cost,
	}
}
