package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ResultsMemory   = "memory"
	ResultsPostgres = "postgres"
	ResultsSQLite   = "sqlite"
)

type Config struct {
	Server struct {
		Port           string   `yaml:"port"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"server"`
	Redis struct {
		Addr         string `yaml:"addr"`
		Password     string `yaml:"password"`
		DB           int    `yaml:"db"`
		TTL          string `yaml:"ttl"`
		ResultStream string `yaml:"result_stream"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Mongo struct {
		URI      string `yaml:"uri"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`
	AMQP struct {
		URL      string `yaml:"url"`
		Exchange string `yaml:"exchange"`
	} `yaml:"amqp"`
	Evaluation struct {
		TTL     string `yaml:"ttl"`
		BankDir string `yaml:"bank_dir"`
		// MaxAttempts applies to evaluations that do not set their own limit.
		MaxAttempts int `yaml:"max_attempts"`
	} `yaml:"evaluation"`
	Results struct {
		// Driver is memory, postgres or sqlite; empty picks the first configured database.
		Driver string `yaml:"driver"`
	} `yaml:"results"`
}

// Load reads YAML config from path. ${VAR} references are expanded from the
// environment first, so secrets can live in .env files.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ResultsDriver resolves where recorded results are kept.
func (c Config) ResultsDriver() string {
	switch {
	case c.Results.Driver != "":
		return c.Results.Driver
	case c.Postgres.URL != "":
		return ResultsPostgres
	case c.SQLite.Path != "":
		return ResultsSQLite
	default:
		return ResultsMemory
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
