// Package config loads runtime settings from flags, AUCTION_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Config holds every setting the server reads at startup
type Config struct {
	Port     string
	LogLevel string
	Driver   string
	Seed     bool
	Redis    RedisConfig
}

// RedisConfig configures the redis-backed store
type RedisConfig struct {
	Addr      string
	Password  string
	Prefix    string
	MaxIdle   int
	MaxActive int
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("store.driver", DriverMemory)
	v.SetDefault("store.seed", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.prefix", "auction")
	v.SetDefault("redis.max_idle", 16)
	v.SetDefault("redis.max_active", 64)
}

// Load parses args (without the program name) and resolves the config
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("bidout-auction", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	fs.String("port", "", "HTTP listen port")
	fs.String("log-level", "", "log level (debug, info, warn, error)")
	fs.String("store", "", "store driver (memory, redis)")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"server.port":  "port",
		"log.level":    "log-level",
		"store.driver": "store",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("config: bind flag %s: %w", flag, err)
		}
	}

	if *configFile != "" {
		v.SetConfigType("yaml")
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", *configFile, err)
		}
	}

	cfg := &Config{
		Port:     v.GetString("server.port"),
		LogLevel: v.GetString("log.level"),
		Driver:   strings.ToLower(v.GetString("store.driver")),
		Seed:     v.GetBool("store.seed"),
		Redis: RedisConfig{
			Addr:      v.GetString("redis.addr"),
			Password:  v.GetString("redis.password"),
			Prefix:    v.GetString("redis.prefix"),
			MaxIdle:   v.GetInt("redis.max_idle"),
			MaxActive: v.GetInt("redis.max_active"),
		},
	}

	// PORT is the conventional override on hosted platforms
	if port := os.Getenv("PORT"); port != "" && !fs.Changed("port") {
		cfg.Port = port
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Port == "" {
		return errors.New("config: server port is empty")
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	switch c.Driver {
	case DriverMemory:
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("config: redis store needs redis.addr")
		}
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Driver)
	}
	return nil
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}
