package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	AlertSinkLog      = "log"
	AlertSinkRabbitMQ = "rabbitmq"
	AlertSinkKafka    = "kafka"
)

// Configはアプリ全体の設定
type Config struct {
	Port string // サーバーポート（8080）

	ServiceName    string
	ServiceVersion string
	GoEnv          string // dev/prod

	StoreDriver string // postgres / memory

	DatabaseURL      string // あれば最優先
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresHost     string
	PostgresPort     int
	PostgresSSLMode  string

	JWTSecret string // JWT署名シークレット

	// 期限切れ掃除
	SweepInterval  time.Duration
	SweepBatchSize int

	// 楽観ロック競合時のリトライ
	MutationMaxAttempts  int
	MutationRetryBackoff time.Duration

	ReservationDefaultTTL time.Duration
	ReservationMaxTTL     time.Duration

	AlertSink        string // log / rabbitmq / kafka
	AlertTimeout     time.Duration
	RabbitMQURL      string
	RabbitMQExchange string
	KafkaBrokers     []string
	KafkaAlertTopic  string

	// 空ならカタログのキャッシュなし
	RedisAddr       string
	CatalogCacheTTL time.Duration
	// trueならカタログに無い商品の入荷を拒否する。falseは警告だけ
	CatalogStrict bool

	// 空ならトレースは出さない
	OtelEndpoint string
}

// Loadは環境変数
func Load() (Config, error) {
	var err error
	cfg := Config{
		Port:           getenv("PORT", "8080"),
		ServiceName:    getenv("SERVICE_NAME", "inventory-service"),
		ServiceVersion: getenv("SERVICE_VERSION", "1.0.0"),
		GoEnv:          getenv("GO_ENV", "dev"),

		StoreDriver: getenv("STORE_DRIVER", StoreDriverPostgres),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret: os.Getenv("JWT_SECRET"),

		AlertSink:        getenv("ALERT_SINK", AlertSinkLog),
		RabbitMQURL:      os.Getenv("RABBITMQ_URL"),
		RabbitMQExchange: getenv("RABBITMQ_EXCHANGE", "inventory_alerts"),
		KafkaBrokers:     splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaAlertTopic:  getenv("KAFKA_ALERT_TOPIC", "inventory.low-stock"),

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		OtelEndpoint: os.Getenv("OTEL_EXPORTER_ENDPOINT"),
	}

	if cfg.PostgresPort, err = atoiDefault("POSTGRES_PORT", 5432); err != nil {
		return Config{}, err
	}
	if cfg.SweepInterval, err = durationDefault("SWEEP_INTERVAL", 5*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.SweepBatchSize, err = atoiDefault("SWEEP_BATCH_SIZE", 100); err != nil {
		return Config{}, err
	}
	if cfg.MutationMaxAttempts, err = atoiDefault("MUTATION_MAX_ATTEMPTS", 5); err != nil {
		return Config{}, err
	}
	if cfg.MutationRetryBackoff, err = durationDefault("MUTATION_RETRY_BACKOFF", 10*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.ReservationDefaultTTL, err = durationDefault("RESERVATION_DEFAULT_TTL", 15*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.ReservationMaxTTL, err = durationDefault("RESERVATION_MAX_TTL", 24*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.AlertTimeout, err = durationDefault("ALERT_TIMEOUT", 3*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.CatalogCacheTTL, err = durationDefault("CATALOG_CACHE_TTL", 5*time.Minute); err != nil {
		return Config{}, err
	}
	if cfg.CatalogStrict, err = boolDefault("CATALOG_STRICT", false); err != nil {
		return Config{}, err
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

//必須チェック
func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or memory")
	}
	switch c.AlertSink {
	case AlertSinkLog:
	case AlertSinkRabbitMQ:
		if c.RabbitMQURL == "" {
			return fmt.Errorf("RABBITMQ_URL is required")
		}
	case AlertSinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("KAFKA_BROKERS is required")
		}
	default:
		return fmt.Errorf("ALERT_SINK must be log, rabbitmq or kafka")
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be > 0")
	}
	if c.SweepBatchSize <= 0 {
		return fmt.Errorf("SWEEP_BATCH_SIZE must be > 0")
	}
	if c.MutationMaxAttempts <= 0 {
		return fmt.Errorf("MUTATION_MAX_ATTEMPTS must be > 0")
	}
	if c.ReservationDefaultTTL <= 0 || c.ReservationDefaultTTL > c.ReservationMaxTTL {
		return fmt.Errorf("RESERVATION_DEFAULT_TTL must be in (0, RESERVATION_MAX_TTL]")
	}
	return nil
}

// 本番かどうか（ログの形式などで使う）
func (c Config) IsProduction() bool {
	return c.GoEnv == "prod" || c.GoEnv == "production"
}

func (c Config) PostgresDSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiDefault(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationDefault(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration (e.g. 5s): %w", key, err)
	}
	return d, nil
}

func boolDefault(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s must be true/false: %w", key, err)
	}
	return b, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	out := make([]string, 0)
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
