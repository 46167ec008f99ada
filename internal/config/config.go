package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/CutzuDev/itec2025/pkg/config"
	"github.com/CutzuDev/itec2025/pkg/database"
	"github.com/CutzuDev/itec2025/pkg/pubsub"
	"github.com/CutzuDev/itec2025/pkg/storage"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Database  database.Config `mapstructure:"database"`
	Store     StoreConfig     `mapstructure:"store"`
	Cassandra CassandraConfig `mapstructure:"cassandra"`
	PubSub    pubsub.Config   `mapstructure:"pubsub"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Storage   storage.Config  `mapstructure:"storage"`
	Chat      ChatConfig      `mapstructure:"chat"`
	ID        IDConfig        `mapstructure:"id"`
	Log       LogConfig       `mapstructure:"log"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type GRPCConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"-"` // websocket.ping_interval
	PongWait       time.Duration `mapstructure:"-"` // websocket.pong_wait
	WriteWait      time.Duration `mapstructure:"-"` // websocket.write_wait
	MaxMessageSize int64         `mapstructure:"max_message_size"`
}

type AuthConfig struct {
	PublicKeyPath string `mapstructure:"public_key_path"`
	Issuer        string `mapstructure:"issuer"`
	// DevSigning makes the service generate its own key pair and log a token
	// at startup. For local development only.
	DevSigning bool `mapstructure:"dev_signing"`
}

// StoreConfig selects the message store: "sql" (GORM) or "cassandra".
type StoreConfig struct {
	Driver string `mapstructure:"driver"`
}

type CassandraConfig struct {
	Hosts          []string      `mapstructure:"hosts"`
	Keyspace       string        `mapstructure:"keyspace"`
	Consistency    string        `mapstructure:"consistency"`
	ConnectTimeout time.Duration `mapstructure:"-"` // cassandra.connect_timeout
	Timeout        time.Duration `mapstructure:"-"` // cassandra.timeout
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Prefix  string        `mapstructure:"prefix"`
	TTL     time.Duration `mapstructure:"-"` // cache.ttl
}

type ChatConfig struct {
	TypingQuietPeriod time.Duration `mapstructure:"-"` // chat.typing_quiet_period
	TypingExpiry      time.Duration `mapstructure:"-"` // chat.typing_expiry
	PublishTimeout    time.Duration `mapstructure:"-"` // chat.publish_timeout
	MaxAttachments    int           `mapstructure:"max_attachments"`
	MaxUploadBytes    int64         `mapstructure:"max_upload_bytes"`
	AttachmentPrefix  string        `mapstructure:"attachment_prefix"`
}

type IDConfig struct {
	Strategy string `mapstructure:"strategy"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// Load reads ./config/config.yaml (optional), defaults and environment.
func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}
	return load(v)
}

func load(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	// Override from environment
	v.BindEnv("server.port", "PORT")
	v.BindEnv("grpc.port", "GRPC_PORT")
	v.BindEnv("auth.public_key_path", "JWT_PUBLIC_KEY_PATH")
	v.BindEnv("auth.issuer", "JWT_ISSUER")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("store.driver", "STORE_DRIVER")
	v.BindEnv("cassandra.keyspace", "CASSANDRA_KEYSPACE")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Durations are skipped by Unmarshal and parsed here, so a malformed
	// value falls back to its default instead of failing the load.
	cfg.WebSocket.PingInterval = pkgconfig.ParseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.ParseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.ParseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Cassandra.ConnectTimeout = pkgconfig.ParseDuration(v, "cassandra.connect_timeout", 10*time.Second)
	cfg.Cassandra.Timeout = pkgconfig.ParseDuration(v, "cassandra.timeout", 5*time.Second)
	cfg.PubSub.Redis.ReadTimeout = pkgconfig.ParseDuration(v, "pubsub.redis.read_timeout", 3*time.Second)
	cfg.PubSub.Redis.WriteTimeout = pkgconfig.ParseDuration(v, "pubsub.redis.write_timeout", 3*time.Second)
	cfg.Cache.TTL = pkgconfig.ParseDuration(v, "cache.ttl", 5*time.Minute)
	cfg.Chat.TypingQuietPeriod = pkgconfig.ParseDuration(v, "chat.typing_quiet_period", 2*time.Second)
	cfg.Chat.TypingExpiry = pkgconfig.ParseDuration(v, "chat.typing_expiry", 2*time.Second)
	cfg.Chat.PublishTimeout = pkgconfig.ParseDuration(v, "chat.publish_timeout", 2*time.Second)

	// CASSANDRA_HOSTS: comma-separated, e.g. "cassandra:9042" or "host1:9042,host2:9042"
	if hosts := os.Getenv("CASSANDRA_HOSTS"); hosts != "" {
		cfg.Cassandra.Hosts = splitList(hosts)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8088)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50062)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 16384)
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.dev_signing", false)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "studygroup")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", 30)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("store.driver", "sql")
	v.SetDefault("cassandra.hosts", []string{"localhost:9042"})
	v.SetDefault("cassandra.keyspace", "chat")
	v.SetDefault("cassandra.consistency", "LOCAL_QUORUM")
	v.SetDefault("cassandra.connect_timeout", "10s")
	v.SetDefault("cassandra.timeout", "5s")
	v.SetDefault("pubsub.driver", "redis")
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.redis.pool_size", 10)
	v.SetDefault("pubsub.redis.buffer_size", 100)
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "chat-sync")
	v.SetDefault("pubsub.kafka.partitions", 4)
	v.SetDefault("pubsub.kafka.buffer_size", 100)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.prefix", "chat:profile")
	v.SetDefault("cache.ttl", "5m")
	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.base_path", "./data/files")
	v.SetDefault("storage.local.public_url", "http://localhost:8088/files")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("chat.typing_quiet_period", "2s")
	v.SetDefault("chat.typing_expiry", "2s")
	v.SetDefault("chat.publish_timeout", "2s")
	v.SetDefault("chat.max_attachments", 10)
	v.SetDefault("chat.max_upload_bytes", 10<<20)
	v.SetDefault("chat.attachment_prefix", "chat_attachments")
	v.SetDefault("id.strategy", "ksuid")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

func splitList(s string) []string {
	parts := strings.Split(strings.TrimSpace(s), ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
