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

const (
	NotifierLog      = "log"
	NotifierSMTP     = "smtp"
	NotifierRabbitMQ = "rabbitmq"
)

type Config struct {
	// HTTP
	HTTPAddr         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration

	// Store
	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	// Accounts
	VerificationPolicy   string
	VerificationTokenTTL time.Duration
	VerifyEmailBaseURL   string
	BcryptCost           int

	// Notifications
	Notifier       string
	SMTPHost       string
	SMTPPort       int
	SMTPUser       string
	SMTPPassword   string
	SMTPFrom       string
	RabbitURL      string
	RabbitExchange string

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads envFile (when it exists) into the environment and builds the
// config from it. Variables already set in the environment win.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8090"),
		MongoURI:           os.Getenv("MONGO_URI"),
		MongoDatabase:      getEnv("MONGO_DATABASE", "accounts"),
		MongoCollection:    getEnv("MONGO_COLLECTION", "accounts"),
		VerificationPolicy: getEnv("VERIFICATION_POLICY", "gated"),
		VerifyEmailBaseURL: getEnv("VERIFY_EMAIL_BASE_URL", "http://localhost:8090/verify-email?token="),
		Notifier:           strings.ToLower(getEnv("NOTIFIER", NotifierLog)),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPUser:           os.Getenv("SMTP_USER"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:           os.Getenv("SMTP_FROM"),
		RabbitURL:          os.Getenv("RABBIT_URL"),
		RabbitExchange:     getEnv("RABBIT_EXCHANGE", "accounts.events"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "console"),
	}

	if cfg.MongoURI == "" {
		return nil, fmt.Errorf("missing required env var: MONGO_URI")
	}

	if !strings.Contains(cfg.VerifyEmailBaseURL, "token=") {
		return nil, fmt.Errorf("VERIFY_EMAIL_BASE_URL must contain `token=`")
	}

	var err error
	if cfg.VerificationTokenTTL, err = getDuration("VERIFICATION_TOKEN_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.HTTPReadTimeout, err = getDuration("HTTP_READ_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.HTTPWriteTimeout, err = getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getDuration("SHUTDOWN_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.BcryptCost, err = getInt("BCRYPT_COST", 10); err != nil {
		return nil, err
	}
	if cfg.SMTPPort, err = getInt("SMTP_PORT", 587); err != nil {
		return nil, err
	}

	switch cfg.Notifier {
	case NotifierLog:
	case NotifierSMTP:
		if cfg.SMTPHost == "" || cfg.SMTPFrom == "" {
			return nil, fmt.Errorf("NOTIFIER=smtp requires SMTP_HOST and SMTP_FROM")
		}
	case NotifierRabbitMQ:
		if cfg.RabbitURL == "" {
			return nil, fmt.Errorf("NOTIFIER=rabbitmq requires RABBIT_URL")
		}
	default:
		return nil, fmt.Errorf("unknown NOTIFIER %q", cfg.Notifier)
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration for %s: %q: %w", key, v, err)
	}
	return d, nil
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer for %s: %q: %w", key, v, err)
	}
	return n, nil
}
