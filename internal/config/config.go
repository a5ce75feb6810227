package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Config 全局配置结构
type Config struct {
	Server ServerConfig `mapstructure:"server"`
	MySQL  MySQLConfig  `mapstructure:"mysql"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Kafka  KafkaConfig  `mapstructure:"kafka"`
	Outbox OutboxConfig `mapstructure:"outbox"`
	Ledger LedgerConfig `mapstructure:"ledger"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type KafkaConfig struct {
	Brokers []string         `mapstructure:"brokers"`
	Topic   KafkaTopicConfig `mapstructure:"topic"`
}

type KafkaTopicConfig struct {
	PaymentEvents string `mapstructure:"payment_events"`
	SagaEvents    string `mapstructure:"saga_events"`
	LedgerEvents  string `mapstructure:"ledger_events"`
}

type OutboxConfig struct {
	IntervalMS int `mapstructure:"interval_ms"` // 轮询间隔
	BatchSize  int `mapstructure:"batch_size"`  // 每轮最多取多少条
	Workers    int `mapstructure:"workers"`     // 并发发送上限
}

type LedgerConfig struct {
	DefaultCurrency          string `mapstructure:"default_currency"`
	LockTTLSeconds           int    `mapstructure:"lock_ttl_seconds"`
	LockRetryIntervalMS      int    `mapstructure:"lock_retry_interval_ms"`
	LockMaxRetries           int    `mapstructure:"lock_max_retries"`
	ReconcileIntervalSeconds int    `mapstructure:"reconcile_interval_seconds"`
	ReconcileBatchSize       int    `mapstructure:"reconcile_batch_size"`
}

// LoadConfig 加载配置文件
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.SetDefault("server.port", 8080)
	viper.SetDefault("kafka.topic.payment_events", "payment-events")
	viper.SetDefault("kafka.topic.saga_events", "saga-events")
	viper.SetDefault("kafka.topic.ledger_events", "ledger-events")
	viper.SetDefault("outbox.interval_ms", 10000)
	viper.SetDefault("outbox.batch_size", 50)
	viper.SetDefault("outbox.workers", 10)
	viper.SetDefault("ledger.default_currency", "NGN")
	viper.SetDefault("ledger.lock_ttl_seconds", 30)
	viper.SetDefault("ledger.lock_retry_interval_ms", 100)
	viper.SetDefault("ledger.lock_max_retries", 30)
	viper.SetDefault("ledger.reconcile_interval_seconds", 300)
	viper.SetDefault("ledger.reconcile_batch_size", 200)

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("读取配置文件失败: %w", err)
	}

	config := &Config{}
	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("解析配置文件失败: %w", err)
	}

	return config, nil
}
