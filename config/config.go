package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	HTTP     HTTPConfig
	Logger   LoggerConfig
	Database DatabaseConfig
	Postgres PostgresConfig
	SQLite   SQLiteConfig
	Ledger   LedgerConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
}

type ServerConfig struct {
	AppEnv   string
	HTTPPort string
}

type HTTPConfig struct {
	JWTSecret      string // empty disables bearer token checks
	AllowedOrigins []string
}

type LoggerConfig struct {
	Level             string
	Encoding          string
	DisableCaller     bool
	DisableStacktrace bool
}

type DatabaseConfig struct {
	Driver string // postgres or sqlite
}

type PostgresConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int
	ConnMaxIdleTime int
}

type SQLiteConfig struct {
	Path string
}

type LedgerConfig struct {
	LockTimeout              time.Duration
	DefaultLowStockThreshold int64
	DefaultReorderPoint      int64
	DefaultReorderQuantity   int64
	VerifyOwners             bool
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	CacheTTL time.Duration
}

type KafkaConfig struct {
	Enabled    bool
	Brokers    []string
	Topic      string
	GroupID    string
	StockTopic string
}

func LoadEnv() *Config {
	return &Config{
		Server: ServerConfig{
			AppEnv:   getEnv("APP_ENV", "dev"),
			HTTPPort: getEnv("HTTP_PORT", ":8082"),
		},
		HTTP: HTTPConfig{
			JWTSecret:      getEnv("JWT_SECRET_KEY", ""),
			AllowedOrigins: getEnvSlice("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Logger: LoggerConfig{
			Level:             getEnv("LOGGER_LEVEL", "debug"),
			Encoding:          getEnv("LOGGER_ENCODING", "console"),
			DisableCaller:     getEnvBool("LOGGER_DISABLE_CALLER", false),
			DisableStacktrace: getEnvBool("LOGGER_DISABLE_STACKTRACE", true),
		},
		Database: DatabaseConfig{
			Driver: getEnv("DB_DRIVER", "postgres"),
		},
		Postgres: PostgresConfig{
			Host:            getEnv("POSTGRES_HOST", "localhost"),
			Port:            getEnv("POSTGRES_PORT", "5433"),
			User:            getEnv("POSTGRES_USER", "omnipos"),
			Password:        getEnv("POSTGRES_PASSWORD", "omnipos"),
			DBName:          getEnv("POSTGRES_DB", "omnipos_inventory"),
			SSLMode:         getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns:    getEnvInt("POSTGRES_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvInt("POSTGRES_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvInt("POSTGRES_CONN_MAX_LIFETIME", 300),
			ConnMaxIdleTime: getEnvInt("POSTGRES_CONN_MAX_IDLE_TIME", 60),
		},
		SQLite: SQLiteConfig{
			Path: getEnv("SQLITE_PATH", "inventory.db"),
		},
		Ledger: LedgerConfig{
			LockTimeout:              time.Duration(getEnvInt("LEDGER_LOCK_TIMEOUT_MS", 5000)) * time.Millisecond,
			DefaultLowStockThreshold: int64(getEnvInt("LEDGER_DEFAULT_LOW_STOCK_THRESHOLD", 10)),
			DefaultReorderPoint:      int64(getEnvInt("LEDGER_DEFAULT_REORDER_POINT", 0)),
			DefaultReorderQuantity:   int64(getEnvInt("LEDGER_DEFAULT_REORDER_QUANTITY", 0)),
			VerifyOwners:             getEnvBool("LEDGER_VERIFY_OWNERS", false),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
			CacheTTL: time.Duration(getEnvInt("REDIS_CACHE_TTL_SECONDS", 300)) * time.Second,
		},
		Kafka: KafkaConfig{
			Enabled:    getEnvBool("KAFKA_ENABLED", true),
			Brokers:    getEnvSlice("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:      getEnv("KAFKA_TOPIC_ORDERS", "orders.events"),
			GroupID:    getEnv("KAFKA_GROUP_INVENTORY", "inventory"),
			StockTopic: getEnv("KAFKA_TOPIC_STOCK", "inventory.stock-events"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvSlice(key string, fallback []string) []string {
	if value, ok := os.LookupEnv(key); ok {
		parts := strings.Split(value, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	return fallback
}
