package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Драйверы хранилищ
const (
	StoreDriverMongo   = "mongo"
	StoreDriverMemory  = "memory"
	AssetsDriverGCS    = "gcs"
	AssetsDriverMemory = "memory"
)

type Config struct {
	Server  ServerConfig
	Store   StoreConfig
	MongoDB MongoDBConfig
	Redis   RedisConfig
	Kafka   KafkaConfig
	JWT     JWTConfig
	Assets  AssetsConfig
	Audit   AuditConfig
	Log     LogConfig
}

type ServerConfig struct {
	Host string // Адрес хоста (по умолчанию 0.0.0.0)
	Port string // Порт сервера (по умолчанию 8084)
}

type StoreConfig struct {
	Driver        string // mongo или memory
	MaxTxAttempts int    // Лимит попыток транзакции при конфликтах
}

type MongoDBConfig struct {
	URI      string // URI подключения к MongoDB (нужен replica set)
	Database string // Имя базы данных
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	CacheTTL time.Duration // Время жизни снимка списка заведений; 0 - кеш выключен
}

type KafkaConfig struct {
	Brokers []string // Список брокеров Kafka (формат: host:port); пусто - события не отправляются
	Topic   string   // Топик для событий REVIEW_CREATED
}

type JWTConfig struct {
	Secret string // Секретный ключ для проверки JWT токенов (должен совпадать с Auth Service)
}

type AssetsConfig struct {
	Driver        string // gcs или memory
	Bucket        string
	PublicBaseURL string
	EmulatorHost  string
}

type AuditConfig struct {
	Schedule string // cron-выражение проверки агрегатов; пусто - проверка выключена
}

type LogConfig struct {
	Level        string
	LogstashAddr string
}

func Load() (*Config, error) {
	maxTxAttempts, err := getEnvInt("STORE_MAX_TX_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	if maxTxAttempts < 1 {
		return nil, fmt.Errorf("STORE_MAX_TX_ATTEMPTS must be positive, got %d", maxTxAttempts)
	}
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvDuration("CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8084"),
		},
		Store: StoreConfig{
			Driver:        getEnv("STORE_DRIVER", StoreDriverMongo),
			MaxTxAttempts: maxTxAttempts,
		},
		MongoDB: MongoDBConfig{
			URI:      getEnv("MONGODB_URI", "mongodb://localhost:27017/?replicaSet=rs0"),
			Database: getEnv("MONGODB_DATABASE", "listings_service"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       redisDB,
			CacheTTL: cacheTTL,
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnv("KAFKA_TOPIC", "review_events"),
		},
		JWT: JWTConfig{
			Secret: getEnv("JWT_SECRET", "your-secret-key-change-this-in-production"),
		},
		Assets: AssetsConfig{
			Driver:        getEnv("ASSETS_DRIVER", AssetsDriverMemory),
			Bucket:        getEnv("GCS_BUCKET", ""),
			PublicBaseURL: getEnv("ASSETS_PUBLIC_BASE_URL", ""),
			EmulatorHost:  getEnv("STORAGE_EMULATOR_HOST", ""),
		},
		Audit: AuditConfig{
			Schedule: getEnv("AUDIT_SCHEDULE", "0 */30 * * * *"),
		},
		Log: LogConfig{
			Level:        getEnv("LOG_LEVEL", "info"),
			LogstashAddr: getEnv("LOGSTASH_ADDR", ""),
		},
	}

	switch cfg.Store.Driver {
	case StoreDriverMongo, StoreDriverMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.Store.Driver)
	}
	switch cfg.Assets.Driver {
	case AssetsDriverGCS:
		if cfg.Assets.Bucket == "" {
			return nil, fmt.Errorf("GCS_BUCKET is required when ASSETS_DRIVER=gcs")
		}
	case AssetsDriverMemory:
	default:
		return nil, fmt.Errorf("unknown ASSETS_DRIVER %q", cfg.Assets.Driver)
	}

	return cfg, nil
}

func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

func (c *RedisConfig) Address() string {
	return c.Host + ":" + c.Port
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s=%q: %w", key, raw, err)
	}
	return v, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
