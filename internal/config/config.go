package config

import (
	"os"
	"strconv"
	"time"
)

type MonitoringServiceConfig struct {
	Port        string
	ServiceKey  string
	PostgresCfg PostgresConfig
	RedisCfg    RedisConfig
	RabbitMQCfg RabbitMQConfig
	MinioCfg    MinioConfig
	EngineCfg   EngineConfig
	SMTPCfg     SMTPConfig
	GatewayCfg  MessageGatewayConfig
	ImageryCfg  ImageryConfig
}

type PostgresConfig struct {
	DBname   string
	Username string
	Password string
	Host     string
	Port     string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type RabbitMQConfig struct {
	Username string
	Password string
	Host     string
	Port     string
}

type MinioConfig struct {
	MinioURL         string
	MinioAccessKey   string
	MinioSecretKey   string
	MinioLocation    string
	MinioSecure      string
	EvidenceBucket   string
	MinioResourceURL string
}

// EngineConfig carries the change-detection and delivery tunables.
type EngineConfig struct {
	DuplicateReadingPolicy string
	NotifyMaxRetries       int
	NotifyTimeout          time.Duration
	ScanWorkers            int
	ScanQueueSize          int
	ScanInterval           time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// ImageryConfig points at the satellite imagery analysis provider.
type ImageryConfig struct {
	ProviderURL string
	APIKey      string
	Timeout     time.Duration
}

// MessageGatewayConfig points at the WhatsApp/SMS HTTP gateway.
type MessageGatewayConfig struct {
	Host     string
	Port     string
	Username string
	Password string
}

func New() *MonitoringServiceConfig {
	return &MonitoringServiceConfig{
		Port:       getEnvOrDefault("PORT", "8085"),
		ServiceKey: getEnvOrDefault("SERVICE_KEY", ""),
		PostgresCfg: PostgresConfig{
			DBname:   getEnvOrDefault("POSTGRES_DB", "satteli"),
			Username: getEnvOrDefault("POSTGRES_USER", "postgres"),
			Password: getEnvOrDefault("POSTGRES_PASSWORD", "postgres"),
			Host:     getEnvOrDefault("POSTGRES_HOST", "localhost"),
			Port:     getEnvOrDefault("POSTGRES_PORT", "5432"),
		},
		RedisCfg: RedisConfig{
			Host:     getEnvOrDefault("REDIS_HOST", "localhost"),
			Port:     getEnvOrDefault("REDIS_PORT", "6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       0,
		},
		RabbitMQCfg: RabbitMQConfig{
			Username: getEnvOrDefault("RABBITMQ_USER", "admin"),
			Password: getEnvOrDefault("RABBITMQ_PWD", "admin"),
			Host:     getEnvOrDefault("RABBITMQ_HOST", "localhost"),
			Port:     getEnvOrDefault("RABBITMQ_PORT", "5672"),
		},
		MinioCfg: MinioConfig{
			MinioURL:         getEnvOrDefault("MINIO_ENDPOINT", "http://localhost:9407"),
			MinioAccessKey:   getEnvOrDefault("MINIO_ACCESS_KEY", "minio"),
			MinioSecretKey:   getEnvOrDefault("MINIO_SECRET_KEY", "minio123"),
			MinioLocation:    getEnvOrDefault("MINIO_LOCATION", "us-east-1"),
			MinioSecure:      getEnvOrDefault("MINIO_SECURE", "false"),
			EvidenceBucket:   getEnvOrDefault("MINIO_EVIDENCE_BUCKET", "alert-evidence"),
			MinioResourceURL: getEnvOrDefault("MINIO_RESOURCE_URL", "http://localhost:9407/"),
		},
		EngineCfg: EngineConfig{
			DuplicateReadingPolicy: getEnvOrDefault("READING_DUPLICATE_POLICY", "reject"),
			NotifyMaxRetries:       getEnvIntOrDefault("NOTIFY_MAX_RETRIES", 3),
			NotifyTimeout:          getEnvDurationOrDefault("NOTIFY_TIMEOUT", 30*time.Second),
			ScanWorkers:            getEnvIntOrDefault("SCAN_WORKERS", 5),
			ScanQueueSize:          getEnvIntOrDefault("SCAN_QUEUE_SIZE", 100),
			ScanInterval:           getEnvDurationOrDefault("SCAN_INTERVAL", 7*24*time.Hour),
		},
		SMTPCfg: SMTPConfig{
			Host:     getEnvOrDefault("SMTP_HOST", "localhost"),
			Port:     getEnvIntOrDefault("SMTP_PORT", 587),
			Username: getEnvOrDefault("SMTP_USER", ""),
			Password: getEnvOrDefault("SMTP_PASSWORD", ""),
			From:     getEnvOrDefault("SMTP_FROM", "alerts@satteli.com"),
		},
		GatewayCfg: MessageGatewayConfig{
			Host:     getEnvOrDefault("MSG_GATEWAY_HOST", "http://localhost"),
			Port:     getEnvOrDefault("MSG_GATEWAY_PORT", "8090"),
			Username: getEnvOrDefault("MSG_GATEWAY_USER", ""),
			Password: getEnvOrDefault("MSG_GATEWAY_PASSWORD", ""),
		},
		ImageryCfg: ImageryConfig{
			ProviderURL: getEnvOrDefault("IMAGERY_PROVIDER_URL", "http://localhost:8091"),
			APIKey:      getEnvOrDefault("IMAGERY_API_KEY", ""),
			Timeout:     getEnvDurationOrDefault("IMAGERY_TIMEOUT", 60*time.Second),
		},
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
