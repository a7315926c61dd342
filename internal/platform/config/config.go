// Package config builds the application configuration from environment
// variables so main stays lean.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	pstrings "kyc-core/pkg/platform/strings"
)

type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
	RequestTimeout  time.Duration
}

type PostgresConfig struct {
	URL string
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

type ObjectStorageConfig struct {
	Endpoint      string
	AccessKey     string
	SecretKey     string
	Bucket        string
	UseSSL        bool
	PublicBaseURL string
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// CoreUserConfig points at the core user platform. An empty BaseURL selects
// the deterministic mock, for local development.
type CoreUserConfig struct {
	BaseURL string
	Timeout time.Duration
}

// AdminConfig is one configured admin: "email:bcrypt-hash:level".
type AdminConfig struct {
	Email        string
	PasswordHash string
	Level        int
}

type AuthConfig struct {
	SessionTTL      time.Duration
	FormTokenSecret string
	FormTokenTTL    time.Duration
	Admins          []AdminConfig
}

type Config struct {
	Server        Server
	Postgres      PostgresConfig
	Redis         RedisConfig
	SMTP          SMTPConfig
	ObjectStorage ObjectStorageConfig
	Kafka         KafkaConfig
	CoreUser      CoreUserConfig
	Auth          AuthConfig
	// SweepInterval paces the periodic expiration sweep.
	SweepInterval time.Duration
}

// FromEnv reads the whole configuration, applying development defaults for
// everything but credentials.
func FromEnv() (Config, error) {
	cfg := Config{
		Server: Server{
			Addr:            getenv("KYC_ADDR", ":8080"),
			ShutdownTimeout: getenvDuration("KYC_SHUTDOWN_TIMEOUT", 15*time.Second),
			RequestTimeout:  getenvDuration("KYC_REQUEST_TIMEOUT", 30*time.Second),
		},
		Postgres: PostgresConfig{
			URL: os.Getenv("KYC_POSTGRES_URL"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("KYC_REDIS_URL"),
			PoolSize:     getenvInt("KYC_REDIS_POOL_SIZE", 10),
			MinIdleConns: getenvInt("KYC_REDIS_MIN_IDLE", 2),
			DialTimeout:  getenvDuration("KYC_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getenvDuration("KYC_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getenvDuration("KYC_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("KYC_SMTP_HOST"),
			Port:     getenv("KYC_SMTP_PORT", "587"),
			Username: os.Getenv("KYC_SMTP_USERNAME"),
			Password: os.Getenv("KYC_SMTP_PASSWORD"),
			From:     os.Getenv("KYC_SMTP_FROM"),
			FromName: getenv("KYC_SMTP_FROM_NAME", "Compliance"),
		},
		ObjectStorage: ObjectStorageConfig{
			Endpoint:      os.Getenv("KYC_S3_ENDPOINT"),
			AccessKey:     os.Getenv("KYC_S3_ACCESS_KEY"),
			SecretKey:     os.Getenv("KYC_S3_SECRET_KEY"),
			Bucket:        getenv("KYC_S3_BUCKET", "kyc-documents"),
			UseSSL:        os.Getenv("KYC_S3_USE_SSL") == "true",
			PublicBaseURL: os.Getenv("KYC_S3_PUBLIC_BASE_URL"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("KYC_KAFKA_BROKERS")),
			Topic:   getenv("KYC_KAFKA_TOPIC", "kyc.status-changes"),
		},
		CoreUser: CoreUserConfig{
			BaseURL: os.Getenv("KYC_CORE_USER_URL"),
			Timeout: getenvDuration("KYC_CORE_USER_TIMEOUT", 10*time.Second),
		},
		Auth: AuthConfig{
			SessionTTL:      getenvDuration("KYC_ADMIN_SESSION_TTL", 12*time.Hour),
			FormTokenSecret: getenv("KYC_FORM_TOKEN_SECRET", "dev-secret-change-in-production"),
			FormTokenTTL:    getenvDuration("KYC_FORM_TOKEN_TTL", time.Hour),
		},
		SweepInterval: getenvDuration("KYC_SWEEP_INTERVAL", time.Hour),
	}

	admins, err := parseAdmins(os.Getenv("KYC_ADMINS"))
	if err != nil {
		return Config{}, err
	}
	cfg.Auth.Admins = admins
	return cfg, nil
}

// parseAdmins reads comma-separated "email:bcrypt-hash:level" entries. The
// hash itself contains no colons outside its $ sections, so the first and
// last colon bound it.
func parseAdmins(raw string) ([]AdminConfig, error) {
	var out []AdminConfig
	for _, entry := range splitNonEmpty(raw) {
		first := strings.Index(entry, ":")
		last := strings.LastIndex(entry, ":")
		if first <= 0 || last <= first {
			return nil, fmt.Errorf("invalid admin entry %q, want email:hash:level", entry)
		}
		level, err := strconv.Atoi(entry[last+1:])
		if err != nil || level < 0 || level > 2 {
			return nil, fmt.Errorf("invalid admin level in %q", entry)
		}
		out = append(out, AdminConfig{
			Email:        entry[:first],
			PasswordHash: entry[first+1 : last],
			Level:        level,
		})
	}
	return out, nil
}

func splitNonEmpty(raw string) []string {
	out := pstrings.DedupeAndTrim(strings.Split(raw, ","))
	if len(out) == 0 {
		return nil
	}
	return out
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getenvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
