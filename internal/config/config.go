package config

import (
	"sync"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	MinIO    MinIOConfig
	Kafka    KafkaConfig
	JWT      JWTConfig
	OTP      OTPConfig
	LogLevel string
}

type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	PoolSize     int
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type KafkaConfig struct {
	Brokers    []string
	MailTopic  string
	ClientID   string
	MaxRetries int
}

type JWTConfig struct {
	Secret         string
	ExpirationTime time.Duration
	// ResolveTimeout bounds token verification during websocket setup.
	ResolveTimeout time.Duration
}

type OTPConfig struct {
	TTL time.Duration
}

var (
	instance *Config
	once     sync.Once
)

// Load reads configuration from environment variables with sane defaults.
// Safe to call from multiple places; the config is built once.
func Load() (*Config, error) {
	once.Do(func() {
		viper.SetDefault("CHATHUB_HOST", "0.0.0.0")
		viper.SetDefault("CHATHUB_PORT", "8080")
		viper.SetDefault("CHATHUB_READ_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHATHUB_WRITE_TIMEOUT", 30*time.Second)
		viper.SetDefault("CHATHUB_IDLE_TIMEOUT", 60*time.Second)
		viper.SetDefault("CHATHUB_LOG_LEVEL", "info")
		viper.SetDefault("CHATHUB_JWT_SECRET", "secret")
		viper.SetDefault("CHATHUB_JWT_EXPIRE", 168*time.Hour)
		viper.SetDefault("CHATHUB_AUTH_TIMEOUT", 5*time.Second)
		viper.SetDefault("CHATHUB_OTP_TTL", 5*time.Minute)
		viper.SetDefault("MYSQL_USER", "chathub")
		viper.SetDefault("MYSQL_PASSWORD", "password")
		viper.SetDefault("MYSQL_HOST", "localhost")
		viper.SetDefault("MYSQL_PORT", "3306")
		viper.SetDefault("MYSQL_DB", "chathub")
		viper.SetDefault("REDIS_ADDR", "localhost:6379")
		viper.SetDefault("REDIS_PASSWORD", "")
		viper.SetDefault("REDIS_DB", 0)
		viper.SetDefault("REDIS_DIAL_TIMEOUT", 5*time.Second)
		viper.SetDefault("REDIS_READ_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_WRITE_TIMEOUT", 3*time.Second)
		viper.SetDefault("REDIS_POOL_SIZE", 100)
		viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
		viper.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
		viper.SetDefault("MINIO_SECRET_KEY", "minioadmin")
		viper.SetDefault("MINIO_BUCKET", "chathub-attachments")
		viper.SetDefault("MINIO_USE_SSL", false)
		viper.SetDefault("KAFKA_BROKERS", []string{"localhost:9092"})
		viper.SetDefault("KAFKA_MAIL_TOPIC", "chathub.mail")
		viper.SetDefault("KAFKA_CLIENT_ID", "chathub")
		viper.SetDefault("KAFKA_MAX_RETRIES", 5)
		viper.AutomaticEnv()

		instance = &Config{
			Server: ServerConfig{
				Host:         viper.GetString("CHATHUB_HOST"),
				Port:         viper.GetString("CHATHUB_PORT"),
				ReadTimeout:  viper.GetDuration("CHATHUB_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("CHATHUB_WRITE_TIMEOUT"),
				IdleTimeout:  viper.GetDuration("CHATHUB_IDLE_TIMEOUT"),
			},
			Database: DatabaseConfig{
				Host:     viper.GetString("MYSQL_HOST"),
				Port:     viper.GetString("MYSQL_PORT"),
				User:     viper.GetString("MYSQL_USER"),
				Password: viper.GetString("MYSQL_PASSWORD"),
				DBName:   viper.GetString("MYSQL_DB"),
			},
			Redis: RedisConfig{
				Addr:         viper.GetString("REDIS_ADDR"),
				Password:     viper.GetString("REDIS_PASSWORD"),
				DB:           viper.GetInt("REDIS_DB"),
				DialTimeout:  viper.GetDuration("REDIS_DIAL_TIMEOUT"),
				ReadTimeout:  viper.GetDuration("REDIS_READ_TIMEOUT"),
				WriteTimeout: viper.GetDuration("REDIS_WRITE_TIMEOUT"),
				PoolSize:     viper.GetInt("REDIS_POOL_SIZE"),
			},
			MinIO: MinIOConfig{
				Endpoint:  viper.GetString("MINIO_ENDPOINT"),
				AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
				SecretKey: viper.GetString("MINIO_SECRET_KEY"),
				Bucket:    viper.GetString("MINIO_BUCKET"),
				UseSSL:    viper.GetBool("MINIO_USE_SSL"),
			},
			Kafka: KafkaConfig{
				Brokers:    viper.GetStringSlice("KAFKA_BROKERS"),
				MailTopic:  viper.GetString("KAFKA_MAIL_TOPIC"),
				ClientID:   viper.GetString("KAFKA_CLIENT_ID"),
				MaxRetries: viper.GetInt("KAFKA_MAX_RETRIES"),
			},
			JWT: JWTConfig{
				Secret:         viper.GetString("CHATHUB_JWT_SECRET"),
				ExpirationTime: viper.GetDuration("CHATHUB_JWT_EXPIRE"),
				ResolveTimeout: viper.GetDuration("CHATHUB_AUTH_TIMEOUT"),
			},
			OTP: OTPConfig{
				TTL: viper.GetDuration("CHATHUB_OTP_TTL"),
			},
			LogLevel: viper.GetString("CHATHUB_LOG_LEVEL"),
		}
	})

	return instance, nil
}
