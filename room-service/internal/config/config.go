package config

import (
	"time"

	pkgconfig "github.com/weiawesome/wes-io-live/pkg/config"
	"github.com/weiawesome/wes-io-live/pkg/pubsub"
	"github.com/weiawesome/wes-io-live/pkg/storage"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Cache     CacheConfig
	PubSub    pubsub.Config `mapstructure:"pubsub"`
	Kafka     KafkaConfig
	Storage   storage.Config
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Scheduler SchedulerConfig
	Room      RoomConfig
	Log       LogConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	InstanceID  string        `mapstructure:"instance_id"`
	ReadTimeout time.Duration `mapstructure:"-"` // no write timeout: event streams stay open
}

type DatabaseConfig struct {
	Driver          string `mapstructure:"driver"`
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	FilePath        string `mapstructure:"file_path"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	LogLevel        string `mapstructure:"log_level"`
}

// RedisConfig configures the catalog cache. An empty address disables it.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

type CacheConfig struct {
	Prefix string
	TTL    time.Duration `mapstructure:"-"`
}

// KafkaConfig configures the room lifecycle event producer and the
// movie-updated consumer. Empty brokers disables both; an empty MovieTopic
// disables the consumer.
type KafkaConfig struct {
	Brokers    string
	Topic      string
	MovieTopic string `mapstructure:"movie_topic"`
	GroupID    string `mapstructure:"group_id"`
}

type WebSocketConfig struct {
	ReadBufferSize  int      `mapstructure:"read_buffer_size"`
	WriteBufferSize int      `mapstructure:"write_buffer_size"`
	SendBufferSize  int      `mapstructure:"send_buffer_size"`
	MaxMessageSize  int64    `mapstructure:"max_message_size"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`

	WriteWait    time.Duration `mapstructure:"-"`
	PongWait     time.Duration `mapstructure:"-"`
	PingInterval time.Duration `mapstructure:"-"`
}

type SchedulerConfig struct {
	PromotionInterval time.Duration `mapstructure:"-"`
	ReconcileInterval time.Duration `mapstructure:"-"`
	CleanupInterval   time.Duration `mapstructure:"-"`
	Retention         time.Duration `mapstructure:"-"`
}

type RoomConfig struct {
	// PauseWhenEmpty freezes a playing room when its last viewer leaves.
	PauseWhenEmpty bool `mapstructure:"pause_when_empty"`

	// PresenceDriver is "memory" or "redis". Run redis when the pub/sub
	// relay spans several instances.
	PresenceDriver string `mapstructure:"presence_driver"`

	PresenceTTL       time.Duration `mapstructure:"-"`
	HeartbeatInterval time.Duration `mapstructure:"-"`
	MediaURLExpiry    time.Duration `mapstructure:"-"`
}

type LogConfig struct {
	Level  string
	Pretty bool
}

// Presence drivers.
const (
	PresenceMemory = "memory"
	PresenceRedis  = "redis"
)

// Reconciliation cadence bounds.
const (
	MinReconcileInterval = time.Second
	MaxReconcileInterval = 30 * time.Second
)

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	// Set defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8083)
	v.SetDefault("server.instance_id", "")
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "watch_rooms")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.file_path", "./data/room.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.address", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("cache.prefix", "watch")
	v.SetDefault("pubsub.driver", pubsub.DriverNone)
	v.SetDefault("pubsub.redis.address", "localhost:6379")
	v.SetDefault("pubsub.kafka.brokers", "localhost:9092")
	v.SetDefault("pubsub.kafka.group_id", "room-service")
	v.SetDefault("pubsub.kafka.partitions", 3)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "room-events")
	v.SetDefault("kafka.movie_topic", "movie-events")
	v.SetDefault("kafka.group_id", "room-service")
	v.SetDefault("storage.driver", storage.DriverLocal)
	v.SetDefault("storage.local.base_path", "./data/media")
	v.SetDefault("storage.local.public_url", "")
	v.SetDefault("storage.s3.region", "us-east-1")
	v.SetDefault("websocket.read_buffer_size", 1024)
	v.SetDefault("websocket.write_buffer_size", 1024)
	v.SetDefault("websocket.send_buffer_size", 256)
	v.SetDefault("websocket.max_message_size", 8192)
	v.SetDefault("room.pause_when_empty", true)
	v.SetDefault("room.presence_driver", PresenceMemory)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// Bind environment variables
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.instance_id", "INSTANCE_ID")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.sslmode", "DB_SSLMODE")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("database.max_idle_conns", "DB_MAX_IDLE_CONNS")
	v.BindEnv("database.max_open_conns", "DB_MAX_OPEN_CONNS")
	v.BindEnv("database.conn_max_lifetime", "DB_CONN_MAX_LIFETIME")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("redis.db", "REDIS_DB")
	v.BindEnv("cache.ttl", "CACHE_TTL")
	v.BindEnv("pubsub.driver", "PUBSUB_DRIVER")
	v.BindEnv("pubsub.redis.address", "PUBSUB_REDIS_ADDRESS")
	v.BindEnv("pubsub.redis.password", "PUBSUB_REDIS_PASSWORD")
	v.BindEnv("pubsub.kafka.brokers", "PUBSUB_KAFKA_BROKERS")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("kafka.movie_topic", "KAFKA_MOVIE_TOPIC")
	v.BindEnv("kafka.group_id", "KAFKA_GROUP_ID")
	v.BindEnv("storage.driver", "STORAGE_DRIVER")
	v.BindEnv("storage.local.base_path", "STORAGE_LOCAL_BASE_PATH")
	v.BindEnv("storage.local.public_url", "STORAGE_LOCAL_PUBLIC_URL")
	v.BindEnv("storage.s3.endpoint", "S3_ENDPOINT")
	v.BindEnv("storage.s3.region", "S3_REGION")
	v.BindEnv("storage.s3.bucket", "S3_BUCKET")
	v.BindEnv("storage.s3.access_key_id", "S3_ACCESS_KEY_ID")
	v.BindEnv("storage.s3.secret_access_key", "S3_SECRET_ACCESS_KEY")
	v.BindEnv("storage.s3.use_path_style", "S3_USE_PATH_STYLE")
	v.BindEnv("storage.s3.public_url", "S3_PUBLIC_URL")
	v.BindEnv("scheduler.promotion_interval", "SCHEDULER_PROMOTION_INTERVAL")
	v.BindEnv("scheduler.reconcile_interval", "SCHEDULER_RECONCILE_INTERVAL")
	v.BindEnv("scheduler.cleanup_interval", "SCHEDULER_CLEANUP_INTERVAL")
	v.BindEnv("scheduler.retention", "SCHEDULER_RETENTION")
	v.BindEnv("room.pause_when_empty", "ROOM_PAUSE_WHEN_EMPTY")
	v.BindEnv("room.heartbeat_interval", "ROOM_HEARTBEAT_INTERVAL")
	v.BindEnv("room.presence_driver", "ROOM_PRESENCE_DRIVER")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.Server.ReadTimeout = pkgconfig.Duration(v, "server.read_timeout", 15*time.Second)
	cfg.Cache.TTL = pkgconfig.Duration(v, "cache.ttl", 5*time.Minute)
	cfg.WebSocket.WriteWait = pkgconfig.Duration(v, "websocket.write_wait", 10*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.Duration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.PingInterval = pkgconfig.Duration(v, "websocket.ping_interval", 54*time.Second)
	cfg.Scheduler.PromotionInterval = pkgconfig.Duration(v, "scheduler.promotion_interval", 5*time.Second)
	cfg.Scheduler.ReconcileInterval = clampReconcile(pkgconfig.Duration(v, "scheduler.reconcile_interval", 5*time.Second))
	cfg.Scheduler.CleanupInterval = pkgconfig.Duration(v, "scheduler.cleanup_interval", time.Hour)
	cfg.Scheduler.Retention = pkgconfig.Duration(v, "scheduler.retention", 24*time.Hour)
	cfg.Room.HeartbeatInterval = pkgconfig.Duration(v, "room.heartbeat_interval", time.Second)
	cfg.Room.MediaURLExpiry = pkgconfig.Duration(v, "room.media_url_expiry", 6*time.Hour)
	cfg.Room.PresenceTTL = pkgconfig.Duration(v, "room.presence_ttl", 24*time.Hour)

	if cfg.WebSocket.PingInterval >= cfg.WebSocket.PongWait {
		cfg.WebSocket.PingInterval = cfg.WebSocket.PongWait * 9 / 10
	}

	return &cfg, nil
}

func clampReconcile(d time.Duration) time.Duration {
	if d < MinReconcileInterval {
		return MinReconcileInterval
	}
	if d > MaxReconcileInterval {
		return MaxReconcileInterval
	}
	return d
}
