package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"payout-service/internal/domain"

	"github.com/shopspring/decimal"
)

type Config struct {
	Server     ServerConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	Auth       AuthConfig
	Clients    ClientsConfig
	Resilience ResilienceConfig
	RateLimit  RateLimitConfig
	Withdrawal WithdrawalConfig
	Dispatcher DispatcherConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

func (c DatabaseConfig) ConnString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type ClientsConfig struct {
	WalletBaseURL   string
	PaymentsBaseURL string
	AccountsBaseURL string
	Timeout         time.Duration
}

type ResilienceConfig struct {
	MaxAttempts     int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	BreakerFailures int
	BreakerTimeout  time.Duration
}

type RateLimitConfig struct {
	RequestsPerMinute int
	Burst             int
}

// WithdrawalConfig carries the business parameters of the payout saga: the
// fee rate applied to every withdrawal, the company settlement account
// payments are sent from, and the retention of cached outcomes.
type WithdrawalConfig struct {
	FeeRate        decimal.Decimal
	CompanyAccount domain.CompanyAccount
	CacheTTL       time.Duration
}

type DispatcherConfig struct {
	Workers   int
	QueueSize int
}

func Load() (*Config, error) {
	feeRate, err := decimal.NewFromString(getEnv("WITHDRAWAL_FEE_RATE", "0.10"))
	if err != nil {
		return nil, fmt.Errorf("invalid WITHDRAWAL_FEE_RATE: %w", err)
	}
	if feeRate.IsNegative() {
		return nil, fmt.Errorf("WITHDRAWAL_FEE_RATE must not be negative")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8030"),
			Env:  getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "payouts"),
			SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			TokenTTL:  getEnvDuration("JWT_TOKEN_TTL", 15*time.Minute),
		},
		Clients: ClientsConfig{
			WalletBaseURL:   getEnv("WALLET_BASE_URL", "http://localhost:8090"),
			PaymentsBaseURL: getEnv("PAYMENTS_BASE_URL", "http://localhost:8091"),
			AccountsBaseURL: getEnv("ACCOUNTS_BASE_URL", "http://localhost:8092"),
			Timeout:         getEnvDuration("CLIENT_TIMEOUT", 10*time.Second),
		},
		Resilience: ResilienceConfig{
			MaxAttempts:     getEnvInt("CLIENT_MAX_ATTEMPTS", 3),
			InitialInterval: getEnvDuration("CLIENT_RETRY_INITIAL_INTERVAL", 200*time.Millisecond),
			MaxInterval:     getEnvDuration("CLIENT_RETRY_MAX_INTERVAL", 2*time.Second),
			BreakerFailures: getEnvInt("CLIENT_BREAKER_FAILURES", 5),
			BreakerTimeout:  getEnvDuration("CLIENT_BREAKER_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvInt("RATE_LIMIT_PER_MINUTE", 5),
			Burst:             getEnvInt("RATE_LIMIT_BURST", 5),
		},
		Withdrawal: WithdrawalConfig{
			FeeRate: feeRate,
			CompanyAccount: domain.CompanyAccount{
				Name:          getEnv("COMPANY_ACCOUNT_NAME", "PAYOUT SETTLEMENT"),
				AccountNumber: getEnv("COMPANY_ACCOUNT_NUMBER", "0245253419"),
				RoutingNumber: getEnv("COMPANY_ROUTING_NUMBER", "028444018"),
				Currency:      getEnv("COMPANY_ACCOUNT_CURRENCY", "USD"),
			},
			CacheTTL: getEnvDuration("IDEMPOTENCY_CACHE_TTL", time.Minute),
		},
		Dispatcher: DispatcherConfig{
			Workers:   getEnvInt("DISPATCHER_WORKERS", 4),
			QueueSize: getEnvInt("DISPATCHER_QUEUE_SIZE", 64),
		},
	}

	if cfg.Auth.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
