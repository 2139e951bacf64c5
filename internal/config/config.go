package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Grouping struct {
		DefaultSize int `yaml:"default_size"`
		MinSize     int `yaml:"min_size"`
		MaxSize     int `yaml:"max_size"`
	} `yaml:"grouping"`
	Live struct {
		SnapshotTTL string `yaml:"snapshot_ttl"`
		CodeLength  int    `yaml:"code_length"`
		// RoomIdleTTL drops unwatched rooms from memory after this long
		// without changes; their snapshots still restore them.
		RoomIdleTTL string `yaml:"room_idle_ttl"`
	} `yaml:"live"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Load reads YAML config from path and fills unset values with defaults.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	cfg.Defaults()
	return cfg, nil
}

// Defaults fills zero values. Grouping bounds that contradict each other fall
// back to 2..8 with a default of 4.
func (c *Config) Defaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	g := &c.Grouping
	if g.MinSize <= 0 {
		g.MinSize = 2
	}
	if g.MaxSize <= 0 {
		g.MaxSize = 8
	}
	if g.MinSize > g.MaxSize {
		g.MinSize, g.MaxSize = 2, 8
	}
	if g.DefaultSize < g.MinSize || g.DefaultSize > g.MaxSize {
		g.DefaultSize = 4
		if g.DefaultSize < g.MinSize || g.DefaultSize > g.MaxSize {
			g.DefaultSize = g.MinSize
		}
	}
	if c.Live.CodeLength < 4 {
		c.Live.CodeLength = 6
	}
	if c.Log.Level == "" {
		c.Log.Level = os.Getenv("LOG_LEVEL")
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
