// Package config loads quoter settings: built-in defaults, then an
// optional YAML file, then GIGADEX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/gagliardetto/solana-go"
	"gopkg.in/yaml.v3"
)

const EnvPrefix = "GIGADEX_"

type Config struct {
	Market    Market    `yaml:"market" envPrefix:"MARKET_"`
	RPC       RPC       `yaml:"rpc" envPrefix:"RPC_"`
	Kafka     Kafka     `yaml:"kafka" envPrefix:"KAFKA_"`
	Redis     Redis     `yaml:"redis" envPrefix:"REDIS_"`
	Journal   Journal   `yaml:"journal" envPrefix:"JOURNAL_"`
	Store     Store     `yaml:"store" envPrefix:"STORE_"`
	GRPC      Listener  `yaml:"grpc" envPrefix:"GRPC_"`
	HTTP      Listener  `yaml:"http" envPrefix:"HTTP_"`
	Broadcast Broadcast `yaml:"broadcast" envPrefix:"BROADCAST_"`
	Log       Log       `yaml:"log" envPrefix:"LOG_"`
}

type Market struct {
	// Address is the base58 market account.
	Address string `yaml:"address" env:"ADDRESS"`
}

type RPC struct {
	Endpoint string        `yaml:"endpoint" env:"ENDPOINT"`
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

type Kafka struct {
	Brokers       []string `yaml:"brokers" env:"BROKERS" envSeparator:","`
	AccountsTopic string   `yaml:"accounts_topic" env:"ACCOUNTS_TOPIC"`
	GroupID       string   `yaml:"group_id" env:"GROUP_ID"`
	EventsTopic   string   `yaml:"events_topic" env:"EVENTS_TOPIC"`
}

// Enabled reports whether a broker list was configured.
func (k Kafka) Enabled() bool { return len(k.Brokers) > 0 }

type Redis struct {
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

func (r Redis) Enabled() bool { return r.Addr != "" }

type Journal struct {
	Dir            string `yaml:"dir" env:"DIR"`
	SegmentSize    int64  `yaml:"segment_size" env:"SEGMENT_SIZE"`
	SyncEveryWrite bool   `yaml:"sync_every_write" env:"SYNC_EVERY_WRITE"`
}

type Store struct {
	Dir string `yaml:"dir" env:"DIR"`
}

type Listener struct {
	Addr string `yaml:"addr" env:"ADDR"`
}

type Broadcast struct {
	Interval time.Duration `yaml:"interval" env:"INTERVAL"`
}

type Log struct {
	Level       string `yaml:"level" env:"LEVEL"`
	Development bool   `yaml:"development" env:"DEVELOPMENT"`
}

func Default() Config {
	return Config{
		RPC: RPC{
			Endpoint: "https://api.mainnet-beta.solana.com",
			Interval: 2 * time.Second,
			Timeout:  5 * time.Second,
		},
		Kafka: Kafka{
			AccountsTopic: "gigadex.accounts",
			GroupID:       "gigadex-quoter",
			EventsTopic:   "gigadex.top",
		},
		Redis:     Redis{TTL: 30 * time.Second},
		Journal:   Journal{Dir: "data/journal", SegmentSize: 64 << 20},
		Store:     Store{Dir: "data/accounts"},
		GRPC:      Listener{Addr: ":9090"},
		HTTP:      Listener{Addr: ":8080"},
		Broadcast: Broadcast{Interval: 250 * time.Millisecond},
		Log:       Log{Level: "info"},
	}
}

// Load builds a Config. path may be empty to skip the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, cfg.Validate()
}

// MarketKey parses Market.Address.
func (c Config) MarketKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(c.Market.Address)
}

func (c Config) Validate() error {
	var errs []error
	if c.Market.Address == "" {
		errs = append(errs, errors.New("market.address is required"))
	} else if _, err := c.MarketKey(); err != nil {
		errs = append(errs, fmt.Errorf("market.address: %w", err))
	}
	if c.RPC.Endpoint == "" {
		errs = append(errs, errors.New("rpc.endpoint is required"))
	}
	if c.RPC.Interval < 100*time.Millisecond {
		errs = append(errs, fmt.Errorf("rpc.interval %s below 100ms", c.RPC.Interval))
	}
	if c.RPC.Timeout <= 0 {
		errs = append(errs, errors.New("rpc.timeout must be positive"))
	}
	if c.Kafka.Enabled() && c.Kafka.AccountsTopic == "" && c.Kafka.EventsTopic == "" {
		errs = append(errs, errors.New("kafka: brokers set but no topic"))
	}
	if c.Broadcast.Interval <= 0 {
		errs = append(errs, errors.New("broadcast.interval must be positive"))
	}
	if c.Journal.Dir == "" || c.Store.Dir == "" {
		errs = append(errs, errors.New("journal.dir and store.dir are required"))
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q", c.Log.Level))
	}
	return errors.Join(errs...)
}
