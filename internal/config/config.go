package config

import (
	"io/ioutil"
	"os"

	"gopkg.in/yaml.v3"
)

// Config top-level struct
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	RateLimit RateLimitConfig `yaml:"ratelimit"`
	Vendor    VendorConfig    `yaml:"vendor"`
	Funding   FundingConfig   `yaml:"funding"`
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type RateLimitConfig struct {
	RPS   int `yaml:"rps"`
	Burst int `yaml:"burst"`
}

// VendorConfig carries the VTU provider credentials and timeout.
type VendorConfig struct {
	BaseURL        string `yaml:"base_url"`
	UserID         string `yaml:"user_id"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// FundingConfig holds deposit policy knobs.
type FundingConfig struct {
	MinAmount string `yaml:"min_amount"`
}

// Load reads yaml file
func Load(path string) (*Config, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	// secrets come from the environment, never from the yaml file
	if pw := os.Getenv("POSTGRES_PASSWORD"); pw != "" {
		cfg.Postgres.DSN = cfg.Postgres.DSN + " password=" + pw
	}
	if v := os.Getenv("VTU_API_USERID"); v != "" {
		cfg.Vendor.UserID = v
	}
	if v := os.Getenv("VTU_API_KEY"); v != "" {
		cfg.Vendor.APIKey = v
	}
	if cfg.Vendor.TimeoutSeconds <= 0 {
		cfg.Vendor.TimeoutSeconds = 30
	}
	if cfg.Funding.MinAmount == "" {
		cfg.Funding.MinAmount = "100"
	}
	return &cfg, nil
}
