// Package config loads the ledger settings from a .env file and the
// environment. Every key is flat (SERVER_PORT, LEDGER_STORAGE, ...) and
// is grouped into one struct per subsystem.
package config

import (
	"errors"
	"strings"
	"time"
)

type Config struct {
	Application ApplicationConfig `mapstructure:",squash"`
	Logging     LoggingConfig     `mapstructure:",squash"`
	Server      ServerConfig      `mapstructure:",squash"`
	Kafka       KafkaConfig       `mapstructure:",squash"`
	Postgres    PostgresConfig    `mapstructure:",squash"`
	MongoDB     MongoDBConfig     `mapstructure:",squash"`
	Redis       RedisConfig       `mapstructure:",squash"`
	Outbox      OutboxConfig      `mapstructure:",squash"`
	WorkerPool  WorkerPoolConfig  `mapstructure:",squash"`
	Ledger      LedgerConfig      `mapstructure:",squash"`
	Metrics     MetricsConfig     `mapstructure:",squash"`
}

type ApplicationConfig struct {
	Env  string `mapstructure:"app_env"`
	Name string `mapstructure:"app_name"`
}

type LoggingConfig struct {
	Level string `mapstructure:"log_level"`
}

// ServerConfig is the HTTP listener. The ledger processor only serves metrics on it.
type ServerConfig struct {
	Port            int           `mapstructure:"server_port"`
	ShutdownTimeout time.Duration `mapstructure:"server_shutdown_timeout"`
	ReadTimeout     time.Duration `mapstructure:"server_read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"server_write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"server_idle_timeout"`
}

type KafkaConfig struct {
	Brokers           string        `mapstructure:"kafka_brokers"` // comma separated
	CommandsTopic     string        `mapstructure:"kafka_commands_topic"`
	EventsTopic       string        `mapstructure:"kafka_events_topic"`
	DLQTopic          string        `mapstructure:"kafka_dlq_topic"`
	NumPartitions     int           `mapstructure:"kafka_num_partitions"`
	ReplicationFactor int           `mapstructure:"kafka_replication_factor"`
	ConsumerGroup     string        `mapstructure:"kafka_consumer_group"`
	MinBytes          int           `mapstructure:"kafka_consumer_min_bytes"`
	MaxBytes          int           `mapstructure:"kafka_consumer_max_bytes"`
	MaxWait           time.Duration `mapstructure:"kafka_consumer_max_wait"`
	StartOffset       int64         `mapstructure:"kafka_consumer_start_offset"`

	// Breaker guarding the event topic writes
	BreakerMaxRequests         uint32        `mapstructure:"kafka_breaker_max_requests"`
	BreakerInterval            time.Duration `mapstructure:"kafka_breaker_interval"`
	BreakerTimeout             time.Duration `mapstructure:"kafka_breaker_timeout"`
	BreakerConsecutiveFailures uint32        `mapstructure:"kafka_breaker_consecutive_failures"`
}

type PostgresConfig struct {
	URL             string        `mapstructure:"postgres_url"`
	MaxConns        int32         `mapstructure:"postgres_max_conns"`
	MinConns        int32         `mapstructure:"postgres_min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"postgres_max_conn_lifetime"`
	ConnMaxIdleTime time.Duration `mapstructure:"postgres_max_conn_idle_time"`
	MigrationsPath  string        `mapstructure:"postgres_migrations_path"`
}

// MongoDBConfig is the transaction read model store
type MongoDBConfig struct {
	URI             string        `mapstructure:"mongo_uri"`
	Database        string        `mapstructure:"mongo_database"`
	Timeout         time.Duration `mapstructure:"mongo_timeout"`
	MaxPoolSize     uint64        `mapstructure:"mongo_max_pool_size"`
	MinPoolSize     uint64        `mapstructure:"mongo_min_pool_size"`
	MaxConnIdleTime time.Duration `mapstructure:"mongo_max_conn_idle_time"`
}

type OutboxConfig struct {
	PollingInterval  time.Duration `mapstructure:"outbox_polling_interval"`
	BatchSize        int           `mapstructure:"outbox_batch_size"`
	MaxRetryAttempts int           `mapstructure:"outbox_max_retry_attempts"`
}

// RedisConfig backs the latest status index and the cross-instance chain lock
type RedisConfig struct {
	Enabled        bool          `mapstructure:"redis_enabled"`
	Addr           string        `mapstructure:"redis_addr"`
	Password       string        `mapstructure:"redis_password"`
	DB             int           `mapstructure:"redis_db"`
	StatusIndexTTL time.Duration `mapstructure:"redis_status_index_ttl"`
}

type WorkerPoolConfig struct {
	Size int `mapstructure:"worker_pool_size"`
}

type LedgerConfig struct {
	Storage            string        `mapstructure:"ledger_storage"`
	MaxAppendAttempts  int           `mapstructure:"ledger_max_append_attempts"`
	RetryBaseDelay     time.Duration `mapstructure:"ledger_retry_base_delay"`
	RetryMaxDelay      time.Duration `mapstructure:"ledger_retry_max_delay"`
	TransitionPolicy   string        `mapstructure:"ledger_transition_policy"`
	SigningEnabled     bool          `mapstructure:"ledger_signing_enabled"`
	SigningKeySeed     string        `mapstructure:"ledger_signing_key_seed"` // hex Ed25519 seed
	EnforceLocks       bool          `mapstructure:"ledger_enforce_locks"`
	VerifyTailOnAppend bool          `mapstructure:"ledger_verify_tail_on_append"`
	VerifyInterval     time.Duration `mapstructure:"ledger_verify_interval"` // 0 disables the background verifier
	VerifyBatchSize    int           `mapstructure:"ledger_verify_batch_size"`
	ChainLock          string        `mapstructure:"ledger_chain_lock"`
	ChainLockExpiry    time.Duration `mapstructure:"ledger_chain_lock_expiry"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"metrics_enabled"`
	Path      string `mapstructure:"metrics_path"`
	Namespace string `mapstructure:"metrics_namespace"`
}

const (
	StoragePostgres = "postgres"
	StorageMemory   = "memory"
)

const (
	ChainLockNone  = "none"
	ChainLockRedis = "redis"
)

const (
	PolicyPermissive = "permissive"
	PolicyStrict     = "strict"
)

// problems accumulates every configuration error so one start reports them all
type problems []string

func (p *problems) check(ok bool, msg string) {
	if !ok {
		*p = append(*p, msg)
	}
}

func (p *problems) required(key, value string) {
	p.check(value != "", key+" is required")
}

func positive[T ~int | ~int32 | ~int64 | ~uint32 | ~uint64](p *problems, key string, value T) {
	p.check(value > 0, key+" must be greater than 0")
}

func (p *problems) err() error {
	if len(*p) == 0 {
		return nil
	}
	return errors.New(strings.Join(*p, ", "))
}

func (c *Config) validate() error {
	var p problems

	positive(&p, "SERVER_PORT", c.Server.Port)
	positive(&p, "SERVER_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)
	positive(&p, "SERVER_READ_TIMEOUT", c.Server.ReadTimeout)
	positive(&p, "SERVER_WRITE_TIMEOUT", c.Server.WriteTimeout)
	positive(&p, "SERVER_IDLE_TIMEOUT", c.Server.IdleTimeout)

	p.required("KAFKA_BROKERS", c.Kafka.Brokers)
	p.required("KAFKA_COMMANDS_TOPIC", c.Kafka.CommandsTopic)
	p.required("KAFKA_EVENTS_TOPIC", c.Kafka.EventsTopic)
	p.required("KAFKA_DLQ_TOPIC", c.Kafka.DLQTopic)
	p.required("KAFKA_CONSUMER_GROUP", c.Kafka.ConsumerGroup)
	positive(&p, "KAFKA_CONSUMER_MIN_BYTES", c.Kafka.MinBytes)
	positive(&p, "KAFKA_CONSUMER_MAX_BYTES", c.Kafka.MaxBytes)
	positive(&p, "KAFKA_CONSUMER_MAX_WAIT", c.Kafka.MaxWait)
	positive(&p, "KAFKA_BREAKER_CONSECUTIVE_FAILURES", c.Kafka.BreakerConsecutiveFailures)
	positive(&p, "KAFKA_BREAKER_TIMEOUT", c.Kafka.BreakerTimeout)

	p.required("POSTGRES_URL", c.Postgres.URL)
	positive(&p, "POSTGRES_MAX_CONNS", c.Postgres.MaxConns)
	positive(&p, "POSTGRES_MIN_CONNS", c.Postgres.MinConns)
	positive(&p, "POSTGRES_MAX_CONN_LIFETIME", c.Postgres.ConnMaxLifetime)
	positive(&p, "POSTGRES_MAX_CONN_IDLE_TIME", c.Postgres.ConnMaxIdleTime)

	p.required("MONGO_URI", c.MongoDB.URI)
	p.required("MONGO_DATABASE", c.MongoDB.Database)
	positive(&p, "MONGO_TIMEOUT", c.MongoDB.Timeout)
	positive(&p, "MONGO_MAX_POOL_SIZE", c.MongoDB.MaxPoolSize)
	positive(&p, "MONGO_MIN_POOL_SIZE", c.MongoDB.MinPoolSize)
	positive(&p, "MONGO_MAX_CONN_IDLE_TIME", c.MongoDB.MaxConnIdleTime)

	positive(&p, "OUTBOX_POLLING_INTERVAL", c.Outbox.PollingInterval)
	positive(&p, "OUTBOX_BATCH_SIZE", c.Outbox.BatchSize)
	positive(&p, "OUTBOX_MAX_RETRY_ATTEMPTS", c.Outbox.MaxRetryAttempts)

	p.check(!c.Redis.Enabled || c.Redis.Addr != "", "REDIS_ADDR is required when REDIS_ENABLED is true")
	positive(&p, "WORKER_POOL_SIZE", c.WorkerPool.Size)

	p.check(c.Ledger.Storage == StoragePostgres || c.Ledger.Storage == StorageMemory,
		"LEDGER_STORAGE must be one of postgres, memory")
	positive(&p, "LEDGER_MAX_APPEND_ATTEMPTS", c.Ledger.MaxAppendAttempts)
	p.check(c.Ledger.RetryBaseDelay >= 0 && c.Ledger.RetryMaxDelay >= c.Ledger.RetryBaseDelay,
		"LEDGER_RETRY_MAX_DELAY must not be lower than LEDGER_RETRY_BASE_DELAY")
	p.check(c.Ledger.TransitionPolicy == PolicyPermissive || c.Ledger.TransitionPolicy == PolicyStrict,
		"LEDGER_TRANSITION_POLICY must be one of permissive, strict")
	p.check(!c.Ledger.SigningEnabled || c.Ledger.SigningKeySeed != "",
		"LEDGER_SIGNING_KEY_SEED is required when LEDGER_SIGNING_ENABLED is true")
	p.check(c.Ledger.VerifyInterval >= 0, "LEDGER_VERIFY_INTERVAL must not be negative")
	positive(&p, "LEDGER_VERIFY_BATCH_SIZE", c.Ledger.VerifyBatchSize)
	switch c.Ledger.ChainLock {
	case ChainLockNone:
	case ChainLockRedis:
		p.check(c.Redis.Enabled, "LEDGER_CHAIN_LOCK=redis requires REDIS_ENABLED")
		positive(&p, "LEDGER_CHAIN_LOCK_EXPIRY", c.Ledger.ChainLockExpiry)
	default:
		p.check(false, "LEDGER_CHAIN_LOCK must be one of none, redis")
	}

	p.check(!c.Metrics.Enabled || c.Metrics.Path != "", "METRICS_PATH is required when METRICS_ENABLED is true")

	return p.err()
}
