package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/sakashimaa/order-orchestrator/pkg/utils"
)

type Config struct {
	Env      string   `yaml:"env" env:"ENV" env-default:"local"`
	Log      Log      `yaml:"log"`
	HTTP     HTTP     `yaml:"http"`
	Postgres PG       `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Kafka    Kafka    `yaml:"kafka"`
	Services Services `yaml:"services"`
	Breaker  Breaker  `yaml:"breaker"`
	Auth     Auth     `yaml:"auth"`
	Outbox   Outbox   `yaml:"outbox"`
	Limiter  Limiter  `yaml:"limiter"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type HTTP struct {
	Port    string        `yaml:"port" env:"HTTP_PORT" env-default:":3000"`
	Timeout time.Duration `yaml:"timeout" env-default:"10s"`
}

type PG struct {
	URL           string `yaml:"url" env:"DB_URL"`
	MaxConns      int32  `yaml:"max_conns" env-default:"10"`
	MinConns      int32  `yaml:"min_conns" env-default:"2"`
	MigrationsDir string `yaml:"migrations_dir" env:"MIGRATIONS_DIR" env-default:"./migrations"`
}

type Redis struct {
	Addr           string        `yaml:"addr" env:"REDIS_ADDR" env-default:"localhost:6379"`
	IdempotencyTTL time.Duration `yaml:"idempotency_ttl" env-default:"24h"`
}

type Kafka struct {
	Brokers    []string `yaml:"brokers" env:"KAFKA_BROKERS" env-separator:"," env-default:"localhost:9092"`
	OrderTopic string   `yaml:"order_topic" env-default:"order_events"`
	AuditTopic string   `yaml:"audit_topic" env-default:"order_audit"`
	ClientID   string   `yaml:"client_id" env-default:"ordering-service"`
	MaxRetries int      `yaml:"max_retries" env-default:"5"`
}

// Services holds the addresses of the remote collaborators. The URL scheme
// selects the transport: http(s):// or grpc://.
type Services struct {
	IdentityURL string        `yaml:"identity_url" env:"IDENTITY_SERVICE_URL" env-default:"http://localhost:8081"`
	CatalogURL  string        `yaml:"catalog_url" env:"CATALOG_SERVICE_URL" env-default:"http://localhost:8082"`
	Timeout     time.Duration `yaml:"timeout" env:"REMOTE_TIMEOUT" env-default:"2s"`
}

type Breaker struct {
	FailureThreshold uint32        `yaml:"failure_threshold" env:"BREAKER_FAILURE_THRESHOLD" env-default:"5"`
	Interval         time.Duration `yaml:"interval" env:"BREAKER_INTERVAL" env-default:"30s"`
	Cooldown         time.Duration `yaml:"cooldown" env:"BREAKER_COOLDOWN" env-default:"10s"`
}

type Auth struct {
	AccessSecret string `yaml:"access_secret" env:"ACCESS_SECRET"`
}

type Outbox struct {
	BatchSize int           `yaml:"batch_size" env-default:"50"`
	Interval  time.Duration `yaml:"interval" env-default:"500ms"`
}

type Limiter struct {
	Max        int           `yaml:"max" env-default:"20"`
	Expiration time.Duration `yaml:"expiration" env-default:"5s"`
}

func Load() (*Config, error) {
	configPath := utils.EnvOr("CONFIG_PATH", "./config/local.yaml")

	var cfg Config

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		if err := cleanenv.ReadEnv(&cfg); err != nil {
			return nil, fmt.Errorf("error reading env: %w", err)
		}

		return &cfg, nil
	}

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		return nil, fmt.Errorf("error reading config %s: %w", configPath, err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}

	return cfg
}
