package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Coordinator  CoordinatorConfig  `yaml:"coordinator"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Bridge       BridgeConfig       `yaml:"bridge"`
	NATS         NATSConfig         `yaml:"nats"`
	Store        StoreConfig        `yaml:"store"`
	Vault        VaultConfig        `yaml:"vault"`
	Web          WebConfig          `yaml:"web"`
	Cron         CronConfig         `yaml:"cron"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Nodes        []NodeSeed         `yaml:"nodes"`
}

type CoordinatorConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

type OrchestratorConfig struct {
	DispatchInterval   time.Duration `yaml:"dispatch_interval"`
	DispatchBatch      int           `yaml:"dispatch_batch"`
	HealthInterval     time.Duration `yaml:"health_interval"`
	ReapInterval       time.Duration `yaml:"reap_interval"`
	ReapDelay          time.Duration `yaml:"reap_delay"`
	Workers            int           `yaml:"workers"`
	StalenessThreshold time.Duration `yaml:"staleness_threshold"`
}

type BridgeConfig struct {
	DispatchTimeout time.Duration `yaml:"dispatch_timeout"`
	PingTimeout     time.Duration `yaml:"ping_timeout"`
}

type NATSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	DataDir string `yaml:"data_dir"`
}

type StoreConfig struct {
	Path string `yaml:"path"`
}

// VaultConfig enables sealed secret storage when a passphrase is set.
type VaultConfig struct {
	Passphrase string `yaml:"passphrase"`
}

type WebConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Auth    string `yaml:"auth"`
}

type CronConfig struct {
	Enabled      bool          `yaml:"enabled"`
	PollInterval time.Duration `yaml:"poll_interval"`
}

type TelegramConfig struct {
	Token     string  `yaml:"token"`
	AllowFrom []int64 `yaml:"allow_from"`
}

// NodeSeed declares a worker node registered with the bridge at startup.
type NodeSeed struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Endpoint     string   `yaml:"endpoint"`
	Arch         string   `yaml:"arch"`
	Capabilities []string `yaml:"capabilities"`
	AuthToken    string   `yaml:"auth_token"`
}

func defaults() Config {
	return Config{
		Coordinator: CoordinatorConfig{
			ID:   "coordinator",
			Name: "hivemind",
		},
		Orchestrator: OrchestratorConfig{
			DispatchInterval:   time.Second,
			DispatchBatch:      10,
			HealthInterval:     60 * time.Second,
			ReapInterval:       15 * time.Second,
			ReapDelay:          10 * time.Second,
			Workers:            4,
			StalenessThreshold: 180 * time.Second,
		},
		Bridge: BridgeConfig{
			DispatchTimeout: 60 * time.Second,
			PingTimeout:     5 * time.Second,
		},
		NATS: NATSConfig{
			Enabled: true,
			Port:    4222,
			DataDir: "data/nats",
		},
		Store: StoreConfig{
			Path: "data/hivemind.db",
		},
		Web: WebConfig{
			Enabled: true,
			Port:    8080,
		},
		Cron: CronConfig{
			Enabled:      true,
			PollInterval: 30 * time.Second,
		},
	}
}

func Load() (*Config, error) {
	cfg := defaults()

	path := os.Getenv("HIVEMIND_CONFIG")
	if path == "" {
		path = "config/hivemind.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file not found, use defaults + env
	} else {
		// Expand environment variables in YAML
		expanded := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("HIVEMIND_COORDINATOR_ID"); v != "" {
		cfg.Coordinator.ID = v
	}
	if v := os.Getenv("HIVEMIND_TELEGRAM_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("HIVEMIND_WEB_PASSWORD"); v != "" {
		cfg.Web.Auth = v
	}
	if v := os.Getenv("HIVEMIND_WEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Web.Port = port
		}
	}
	if v := os.Getenv("HIVEMIND_NATS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.NATS.Port = port
		}
	}
	if v := os.Getenv("HIVEMIND_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HIVEMIND_VAULT_PASSPHRASE"); v != "" {
		cfg.Vault.Passphrase = v
	}
}
