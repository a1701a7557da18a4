// Package config loads chronicle settings from a YAML file and the
// environment.
//
// Priority is environment, then file, then env-default tags. The decoded
// value is checked against an embedded CUE schema and then by Validate for
// rules that span fields.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Config is the root configuration.
type Config struct {
	Storage    StorageConfig     `yaml:"storage"    json:"storage"`
	Recorder   RecorderConfig    `yaml:"recorder"   json:"recorder"`
	Query      QueryConfig       `yaml:"query"      json:"query"`
	Actionable ActionableConfig  `yaml:"actionable" json:"actionable"`
	Identities map[string]string `yaml:"identities" json:"identities"`
	Log        LogConfig         `yaml:"log"        json:"log"`
}

// StorageConfig selects and configures the storage backend.
type StorageConfig struct {
	Backend       string `yaml:"backend"        json:"backend"        env:"CHRONICLE_STORAGE_BACKEND"  env-default:"sqlite"`
	DSN           string `yaml:"dsn"            json:"dsn"            env:"CHRONICLE_STORAGE_DSN"      env-default:"chronicle.db"`
	Driver        string `yaml:"driver"         json:"driver"         env:"CHRONICLE_STORAGE_DRIVER"   env-default:"sqlite3"`
	Database      string `yaml:"database"       json:"database"       env:"CHRONICLE_STORAGE_DATABASE" env-default:"chronicle"`
	MaxConns      int32  `yaml:"max_conns"      json:"max_conns"      env:"CHRONICLE_STORAGE_MAX_CONNS" env-default:"8"`
	CompressExtra bool   `yaml:"compress_extra" json:"compress_extra" env:"CHRONICLE_STORAGE_COMPRESS" env-default:"false"`
}

// RecorderConfig controls the write-behind queue.
type RecorderConfig struct {
	FlushInterval time.Duration `yaml:"flush_interval" json:"flush_interval" env:"CHRONICLE_FLUSH_INTERVAL" env-default:"1s"`
}

// QueryConfig holds lookup defaults and caps.
type QueryConfig struct {
	DefaultRadius int           `yaml:"default_radius" json:"default_radius" env:"CHRONICLE_DEFAULT_RADIUS" env-default:"5"`
	MaxRadius     int           `yaml:"max_radius"     json:"max_radius"     env:"CHRONICLE_MAX_RADIUS"     env-default:"128"`
	DefaultLimit  int           `yaml:"default_limit"  json:"default_limit"  env:"CHRONICLE_DEFAULT_LIMIT"  env-default:"25"`
	MaxLimit      int           `yaml:"max_limit"      json:"max_limit"      env:"CHRONICLE_MAX_LIMIT"      env-default:"1000"`
	DefaultSince  time.Duration `yaml:"default_since"  json:"default_since"  env:"CHRONICLE_DEFAULT_SINCE"  env-default:"72h"`
}

// ActionableConfig lists block ids the actionable engine treats specially.
type ActionableConfig struct {
	Blacklist []string `yaml:"blacklist" json:"blacklist" env:"CHRONICLE_BLACKLIST" env-default:"bedrock,tnt,end_portal"`
	Liquids   []string `yaml:"liquids"   json:"liquids"   env:"CHRONICLE_LIQUIDS"   env-default:"water,lava"`
	Hazards   []string `yaml:"hazards"   json:"hazards"   env:"CHRONICLE_HAZARDS"   env-default:"fire,lava,tnt"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  json:"level"  env:"CHRONICLE_LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" json:"format" env:"CHRONICLE_LOG_FORMAT" env-default:"text"`
}

// SlogLevel maps Level to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate checks rules the schema cannot express.
func (c *Config) Validate() error {
	if c.Query.DefaultRadius > c.Query.MaxRadius {
		return fmt.Errorf("query.default_radius %d exceeds query.max_radius %d", c.Query.DefaultRadius, c.Query.MaxRadius)
	}
	if c.Query.DefaultLimit > c.Query.MaxLimit {
		return fmt.Errorf("query.default_limit %d exceeds query.max_limit %d", c.Query.DefaultLimit, c.Query.MaxLimit)
	}
	switch c.Storage.Backend {
	case "postgres":
		if !strings.HasPrefix(c.Storage.DSN, "postgres://") && !strings.HasPrefix(c.Storage.DSN, "postgresql://") {
			return fmt.Errorf("storage.dsn: postgres backend needs a postgres:// URL")
		}
	case "mongo":
		if !strings.HasPrefix(c.Storage.DSN, "mongodb://") && !strings.HasPrefix(c.Storage.DSN, "mongodb+srv://") {
			return fmt.Errorf("storage.dsn: mongo backend needs a mongodb:// URI")
		}
	}
	for _, id := range c.Actionable.Blacklist {
		if id == "air" {
			return fmt.Errorf("actionable.blacklist: air cannot be blacklisted")
		}
	}
	return nil
}
