package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full server configuration. Values load from an
// optional YAML file and individual environment variables override
// file values, so containers can tweak a single knob without shipping
// a new file.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	MySQL       MySQLConfig       `yaml:"mysql"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	Reservation ReservationConfig `yaml:"reservation"`
	ExpiredCart ExpiredCartConfig `yaml:"expired_cart"`
}

// Duration is a time.Duration that unmarshals from YAML strings like
// "15m" instead of raw nanosecond integers.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

type HTTPConfig struct {
	Addr            string   `yaml:"addr"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

type MySQLConfig struct {
	DSN            string `yaml:"dsn"`
	MaxOpenConns   int    `yaml:"max_open_conns"`
	MaxIdleConns   int    `yaml:"max_idle_conns"`
	MigrationsPath string `yaml:"migrations_path"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type ReservationConfig struct {
	DefaultDuration Duration `yaml:"default_duration"`
	MaxDuration     Duration `yaml:"max_duration"`
	CleanupInterval Duration `yaml:"cleanup_interval"`
}

type ExpiredCartConfig struct {
	DedupeWindow Duration `yaml:"dedupe_window"`
	Retention    Duration `yaml:"retention"`
}

// Default returns the configuration used when no file and no
// environment overrides are present. Suitable for local development.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration(5 * time.Second),
		},
		MySQL: MySQLConfig{
			DSN:            "root:root@tcp(localhost:3306)/sneakermarket?parseTime=true&multiStatements=true",
			MaxOpenConns:   50,
			MaxIdleConns:   25,
			MigrationsPath: "internal/adapter/storage/migrations",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		Kafka: KafkaConfig{
			Topic: "sneaker-market.orders",
		},
		Reservation: ReservationConfig{
			DefaultDuration: Duration(15 * time.Minute),
			MaxDuration:     Duration(time.Hour),
			CleanupInterval: Duration(time.Minute),
		},
		ExpiredCart: ExpiredCartConfig{
			DedupeWindow: Duration(time.Hour),
			Retention:    Duration(90 * 24 * time.Hour),
		},
	}
}

// Load builds the config from defaults, then the YAML file at path (if
// path is non-empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if cfg.Reservation.DefaultDuration > cfg.Reservation.MaxDuration {
		return Config{}, fmt.Errorf("reservation default duration %s exceeds max %s",
			cfg.Reservation.DefaultDuration.Std(), cfg.Reservation.MaxDuration.Std())
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.HTTP.Addr, "HTTP_ADDR")
	setString(&c.MySQL.DSN, "MYSQL_DSN")
	setInt(&c.MySQL.MaxOpenConns, "MYSQL_MAX_OPEN_CONNS")
	setInt(&c.MySQL.MaxIdleConns, "MYSQL_MAX_IDLE_CONNS")
	setString(&c.MySQL.MigrationsPath, "MYSQL_MIGRATIONS_PATH")
	setString(&c.Redis.Addr, "REDIS_ADDR")
	setInt(&c.Redis.PoolSize, "REDIS_POOL_SIZE")
	setString(&c.Kafka.Topic, "KAFKA_TOPIC")
	setDuration(&c.Reservation.DefaultDuration, "RESERVATION_DEFAULT_DURATION")
	setDuration(&c.Reservation.MaxDuration, "RESERVATION_MAX_DURATION")
	setDuration(&c.Reservation.CleanupInterval, "RESERVATION_CLEANUP_INTERVAL")
	setDuration(&c.ExpiredCart.DedupeWindow, "EXPIRED_CART_DEDUPE_WINDOW")
	setDuration(&c.ExpiredCart.Retention, "EXPIRED_CART_RETENTION")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		var brokers []string
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		c.Kafka.Brokers = brokers
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = Duration(d)
		}
	}
}
