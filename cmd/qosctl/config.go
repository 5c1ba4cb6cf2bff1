package main

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/vnykmshr/volqos/pkg/qos"
	"github.com/vnykmshr/volqos/pkg/qos/store"
)

// Store backends.
const (
	backendMemory = "memory"
	backendRedis  = "redis"
	backendMongo  = "mongo"
)

// Config is the qosctl configuration file.
type Config struct {
	// Store selects the limit store: memory, redis or mongo.
	Store string `toml:"store"`

	// Origin names this process in published updates. Defaults to a random id.
	Origin string `toml:"origin"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `toml:"log_level"`

	Redis   RedisSection   `toml:"redis"`
	Mongo   MongoSection   `toml:"mongo"`
	NATS    qos.NATSConfig `toml:"nats"`
	Metrics MetricsSection `toml:"metrics"`
}

// RedisSection configures the redis store and locker.
type RedisSection struct {
	Addr     string        `toml:"addr"`
	Password string        `toml:"password"`
	DB       int           `toml:"db"`
	Prefix   string        `toml:"prefix"`
	Timeout  time.Duration `toml:"timeout"`
	LockTTL  time.Duration `toml:"lock_ttl"`
}

// MongoSection configures the mongo store.
type MongoSection struct {
	URI        string        `toml:"uri"`
	Username   string        `toml:"username"`
	Password   string        `toml:"password"`
	Database   string        `toml:"database"`
	Collection string        `toml:"collection"`
	Timeout    time.Duration `toml:"timeout"`
}

// MetricsSection configures the /metrics listener of the watch command.
type MetricsSection struct {
	Addr string `toml:"addr"`
}

func defaultConfig() *Config {
	nc := qos.DefaultNATSConfig()
	// Updates are only published when a server is configured.
	nc.URL = ""

	rc := store.DefaultRedisConfig()
	return &Config{
		Store:    backendRedis,
		LogLevel: "info",
		Redis: RedisSection{
			Addr:    rc.Addr,
			Prefix:  rc.Prefix,
			Timeout: rc.Timeout,
			LockTTL: rc.LockTTL,
		},
		NATS:    nc,
		Metrics: MetricsSection{Addr: ":9464"},
	}
}

// loadConfig reads path over the defaults. An empty path yields the defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case backendMemory, backendRedis, backendMongo:
	default:
		return fmt.Errorf("unknown store %q (use memory, redis or mongo)", c.Store)
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

func (c *Config) redisConfig() store.RedisConfig {
	return store.RedisConfig{
		Addr:     c.Redis.Addr,
		Password: c.Redis.Password,
		DB:       c.Redis.DB,
		Prefix:   c.Redis.Prefix,
		Timeout:  c.Redis.Timeout,
		LockTTL:  c.Redis.LockTTL,
	}
}

func (c *Config) mongoConfig() store.MongoConfig {
	return store.MongoConfig{
		URI:        c.Mongo.URI,
		Username:   c.Mongo.Username,
		Password:   c.Mongo.Password,
		Database:   c.Mongo.Database,
		Collection: c.Mongo.Collection,
		Timeout:    c.Mongo.Timeout,
	}
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}
