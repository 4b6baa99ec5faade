package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

const (
	StorageDriverMySQL    = "mysql"
	StorageDriverDynamoDB = "dynamodb"
)

type Config struct {
	App               AppConfig
	HTTP              ServerConfig
	Storage           StorageConfig
	MySQL             MySQLConfig
	DynamoDB          DynamoDBConfig
	Redis             RedisConfig
	Log               LogConfig
	Sentry            SentryConfig
	InternalEndpoints InternalEndpointsConfig
	GoCardless        GoCardlessConfig
	Payments          PaymentsConfig
	Jobs              JobsConfig
}

type AppConfig struct {
	ServiceName string
	APIKey      string
}

type ServerConfig struct {
	Host string
	Port string
}

type StorageConfig struct {
	Driver string
}

type MySQLConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type DynamoDBConfig struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	PaymentsTable   string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type LogConfig struct {
	Level string
}

type SentryConfig struct {
	DSN         string
	Environment string
}

type InternalEndpointsConfig struct {
	AuthGRPCAddr string
}

type GoCardlessConfig struct {
	TestMode            bool
	AccessToken         string
	CreditorID          string
	AllowOneOffPayments bool
	Endpoint            string
	Timeout             time.Duration
}

type PaymentsConfig struct {
	PublicBaseURL        string
	SignatureSecret      string
	FinishSuccessURL     string
	FinishFailureURL     string
	AbandonedFlowTimeout time.Duration
	LockTTL              time.Duration
}

type JobsConfig struct {
	AbandonedFlowInterval time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	accessToken := os.Getenv("GOCARDLESS_ACCESS_TOKEN")
	if accessToken == "" {
		return nil, errors.New("GOCARDLESS_ACCESS_TOKEN environment variable is required")
	}
	signatureSecret := os.Getenv("RETURN_SIGNATURE_SECRET")
	if signatureSecret == "" {
		return nil, errors.New("RETURN_SIGNATURE_SECRET environment variable is required")
	}

	driver := strings.ToLower(getEnv("STORAGE_DRIVER", StorageDriverMySQL))
	mysqlDSN := os.Getenv("MYSQL_DSN")
	switch driver {
	case StorageDriverMySQL:
		if mysqlDSN == "" {
			return nil, errors.New("MYSQL_DSN environment variable is required")
		}
		dsn, err := normalizeMySQLDSN(mysqlDSN)
		if err != nil {
			return nil, err
		}
		mysqlDSN = dsn
	case StorageDriverDynamoDB:
	default:
		return nil, errors.New("STORAGE_DRIVER must be mysql or dynamodb")
	}

	return &Config{
		App: AppConfig{
			ServiceName: getEnv("APP_SERVICE_NAME", "gocardless-payments-service"),
			APIKey:      getEnv("APP_API_KEY", ""),
		},
		HTTP: ServerConfig{
			Host: getEnv("HTTP_HOST", "0.0.0.0"),
			Port: getEnv("HTTP_PORT", "8080"),
		},
		Storage: StorageConfig{Driver: driver},
		MySQL: MySQLConfig{
			DSN:             mysqlDSN,
			MaxOpenConns:    getIntEnv("MYSQL_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getIntEnv("MYSQL_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDurationEnv("MYSQL_CONN_MAX_LIFETIME_MINUTES", 30*time.Minute),
		},
		DynamoDB: DynamoDBConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("DYNAMODB_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", "local"),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", "local"),
			PaymentsTable:   getEnv("DYNAMODB_PAYMENTS_TABLE", "gocardless_payments"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},
		Log: LogConfig{Level: getEnv("LOG_LEVEL", "info")},
		Sentry: SentryConfig{
			DSN:         getEnv("SENTRY_DSN", ""),
			Environment: getEnv("SENTRY_ENVIRONMENT", "production"),
		},
		InternalEndpoints: InternalEndpointsConfig{
			AuthGRPCAddr: getEnv("AUTH_SERVICE_GRPC_ADDR", "localhost:9090"),
		},
		GoCardless: GoCardlessConfig{
			TestMode:            getBoolEnv("GOCARDLESS_TEST_MODE", false),
			AccessToken:         accessToken,
			CreditorID:          getEnv("GOCARDLESS_CREDITOR_ID", ""),
			AllowOneOffPayments: getBoolEnv("GOCARDLESS_ALLOW_ONE_OFF_PAYMENTS", true),
			Endpoint:            getEnv("GOCARDLESS_ENDPOINT", ""),
			Timeout:             getSecondsEnv("GOCARDLESS_TIMEOUT_SECONDS", 30*time.Second),
		},
		Payments: PaymentsConfig{
			PublicBaseURL:        strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
			SignatureSecret:      signatureSecret,
			FinishSuccessURL:     getEnv("FINISH_SUCCESS_URL", ""),
			FinishFailureURL:     getEnv("FINISH_FAILURE_URL", ""),
			AbandonedFlowTimeout: getDurationEnv("ABANDONED_FLOW_TIMEOUT_MINUTES", 30*time.Minute),
			LockTTL:              getSecondsEnv("PAYMENT_LOCK_TTL_SECONDS", 2*time.Minute),
		},
		Jobs: JobsConfig{
			AbandonedFlowInterval: getDurationEnv("ABANDONED_FLOW_INTERVAL_MINUTES", 5*time.Minute),
		},
	}, nil
}

// normalizeMySQLDSN validates the DSN and turns on parseTime, which the
// payment repository needs to scan DATETIME columns into time.Time.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid MYSQL_DSN: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getSecondsEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return defaultValue
}
